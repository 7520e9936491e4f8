package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/errors"
)

func TestWrapPattern(t *testing.T) {
	base := stderrors.New("disk full")
	err := errors.Wrap(base, "Store", "UpsertNode", "insert node row")

	require.Error(t, err)
	assert.Equal(t, "Store.UpsertNode: insert node row failed: disk full", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, errors.Wrap(nil, "c", "m", "a"))
	assert.NoError(t, errors.WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, errors.WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, errors.WrapFatal(nil, "c", "m", "a"))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorClass
	}{
		{
			name: "explicit transient wrap",
			err:  errors.WrapTransient(stderrors.New("boom"), "Store", "SavePacket", "insert"),
			want: errors.ErrorTransient,
		},
		{
			name: "explicit invalid wrap",
			err:  errors.WrapInvalid(stderrors.New("bad"), "Normalizer", "Normalize", "decode"),
			want: errors.ErrorInvalid,
		},
		{
			name: "explicit fatal wrap",
			err:  errors.WrapFatal(stderrors.New("corrupt"), "Store", "Open", "schema"),
			want: errors.ErrorFatal,
		},
		{
			name: "storage sentinel is transient",
			err:  errors.ErrStorageUnavailable,
			want: errors.ErrorTransient,
		},
		{
			name: "invalid event sentinel",
			err:  errors.ErrInvalidEvent,
			want: errors.ErrorInvalid,
		},
		{
			name: "missing config is fatal",
			err:  errors.ErrMissingConfig,
			want: errors.ErrorFatal,
		},
		{
			name: "sqlite busy message is transient",
			err:  stderrors.New("database is locked"),
			want: errors.ErrorTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Classify(tt.err))
		})
	}
}

func TestClassifiedUnwrap(t *testing.T) {
	base := errors.ErrNoActiveSession
	err := errors.WrapInvalid(base, "Engine", "Reconcile", "session lookup")

	assert.True(t, errors.Is(err, base))

	var ce *errors.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Engine", ce.Component)
	assert.Equal(t, "Reconcile", ce.Operation)
}

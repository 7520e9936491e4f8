package timestamp_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/c360/meshview/pkg/timestamp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{
			name:  "nil input",
			input: nil,
			want:  0,
		},
		{
			name:  "seconds are scaled to milliseconds",
			input: int64(1700000000),
			want:  1700000000000,
		},
		{
			name:  "milliseconds pass through",
			input: int64(1700000000000),
			want:  1700000000000,
		},
		{
			name:  "float seconds",
			input: float64(1700000000),
			want:  1700000000000,
		},
		{
			name:  "RFC3339 string",
			input: "2023-11-14T22:13:20Z",
			want:  1700000000000,
		},
		{
			name:  "numeric string",
			input: "1700000000",
			want:  1700000000000,
		},
		{
			name:  "garbage string",
			input: "not-a-time",
			want:  0,
		},
		{
			name:  "zero int",
			input: int64(0),
			want:  0,
		},
		{
			name:  "time.Time value",
			input: time.UnixMilli(1700000000000),
			want:  1700000000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timestamp.Parse(tt.input))
		})
	}
}

func TestZeroValueRoundTrips(t *testing.T) {
	assert.True(t, timestamp.FromUnixMs(0).IsZero())
	assert.Equal(t, int64(0), timestamp.ToUnixMs(time.Time{}))
	assert.Equal(t, "", timestamp.Format(0))
	assert.True(t, timestamp.IsZero(0))
	assert.Equal(t, time.Duration(0), timestamp.Since(0))
	assert.Equal(t, int64(0), timestamp.Sub(0, time.Minute))
}

func TestSub(t *testing.T) {
	base := int64(1700000000000)
	assert.Equal(t, base-60_000, timestamp.Sub(base, time.Minute))
}

package session_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/live"
	"github.com/c360/meshview/model"
	"github.com/c360/meshview/session"
	"github.com/c360/meshview/store"
)

func newManager(t *testing.T) (*session.Manager, *store.Store, *live.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "meshview.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	lv := live.NewStore()
	return session.NewManager(st, lv, nil), st, lv
}

func TestStartEnforcesSingleActiveSession(t *testing.T) {
	m, st, _ := newManager(t)
	ctx := context.Background()

	first, err := m.Start(ctx)
	require.NoError(t, err)

	second, err := m.Start(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Exactly one active session remains, and the previous one is stamped.
	active, err := st.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	prev, err := st.Session(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, prev.Active)
	assert.NotZero(t, prev.EndedAt)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
}

func TestStartResetsLiveState(t *testing.T) {
	m, _, lv := newManager(t)
	ctx := context.Background()

	_, err := m.Start(ctx)
	require.NoError(t, err)

	lv.UpsertNode(model.NewNode("!a1b2c3d4"))
	lv.AppendMessage(model.TextMessage{Text: "hi"})

	_, err = m.Start(ctx)
	require.NoError(t, err)

	nodes, links := lv.Counts()
	assert.Equal(t, 0, nodes)
	assert.Equal(t, 0, links)
	assert.Empty(t, lv.Snapshot(0).Messages)
}

func TestEndWithoutActiveSessionIsNoop(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.End(ctx))

	_, ok := m.Current()
	assert.False(t, ok)
}

func TestEndDeactivatesSession(t *testing.T) {
	m, st, _ := newManager(t)
	ctx := context.Background()

	sess, err := m.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, m.End(ctx))

	_, ok := m.Current()
	assert.False(t, ok)

	ended, err := st.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)

	_, err = m.CurrentDetail(ctx)
	assert.True(t, errors.Is(err, errors.ErrNoActiveSession))
}

func TestManagerAdoptsExistingActiveSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshview.db")

	st, err := store.Open(path, nil)
	require.NoError(t, err)
	sess, err := st.StartSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := store.Open(path, nil)
	require.NoError(t, err)
	defer st2.Close()

	m := session.NewManager(st2, live.NewStore(), nil)
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, sess.ID, cur.ID)
}

func TestAdoptionRehydratesLiveState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshview.db")
	ctx := context.Background()

	st, err := store.Open(path, nil)
	require.NoError(t, err)
	sess, err := st.StartSession(ctx)
	require.NoError(t, err)

	node := model.NewNode("!a1b2c3d4")
	node.ShortName = "ALFA"
	battery := 77
	node.BatteryLevel = &battery
	node.LastHeard = model.NowMs()
	require.NoError(t, st.UpsertNode(ctx, sess.ID, node))
	_, err = st.UpsertLink(ctx, sess.ID, "!a1b2c3d4", "!eeff0011", model.LinkObservation{
		RSSI: intPtr(-70), HopCount: model.HopCountUnknown, SeenAt: model.NowMs(),
	})
	require.NoError(t, err)
	require.NoError(t, st.SaveMessage(ctx, sess.ID, model.TextMessage{
		FromID: "!a1b2c3d4", Text: "before restart", Timestamp: model.NowMs(),
	}))
	require.NoError(t, st.Close())

	st2, err := store.Open(path, nil)
	require.NoError(t, err)
	defer st2.Close()

	lv := live.NewStore()
	session.NewManager(st2, lv, nil)

	restored, ok := lv.Node("!a1b2c3d4")
	require.True(t, ok)
	assert.Equal(t, "ALFA", restored.ShortName)
	require.NotNil(t, restored.BatteryLevel)
	assert.Equal(t, 77, *restored.BatteryLevel)

	_, ok = lv.Link("!a1b2c3d4", "!eeff0011")
	assert.True(t, ok)

	msgs := lv.Snapshot(0).Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "before restart", msgs[0].Text)

	// A partial update after the restart merges against the restored
	// record instead of a blank one.
	partial := model.NewNode("!a1b2c3d4")
	partial.ShortName = "ALFA"
	merged := lv.UpsertNode(partial)
	require.NotNil(t, merged.BatteryLevel)
	assert.Equal(t, 77, *merged.BatteryLevel)
}

func intPtr(v int) *int { return &v }

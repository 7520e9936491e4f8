package nats

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	natspkg "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/engine"
	"github.com/c360/meshview/fanout"
	"github.com/c360/meshview/live"
	"github.com/c360/meshview/session"
	"github.com/c360/meshview/store"
)

type recordingHub struct {
	mu   sync.Mutex
	sent []fanout.Notification
}

func (h *recordingHub) Broadcast(n fanout.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, n)
}

func (h *recordingHub) kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sent))
	for i, n := range h.sent {
		out[i] = n.Kind
	}
	return out
}

func newIngest(t *testing.T, options ...Option) (*Ingest, *recordingHub) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "meshview.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	lv := live.NewStore()
	sm := session.NewManager(st, lv, nil)
	hub := &recordingHub{}
	eng := engine.New(lv, st, sm, engine.WithBroadcaster(hub))

	opts := append([]Option{WithBroadcaster(hub)}, options...)
	return NewIngest("nats://localhost:4222", "mesh.events", "meshview", eng, opts...), hub
}

func bridgeMsg(t *testing.T, kind string, data map[string]any) *natspkg.Msg {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"kind": kind, "data": data})
	require.NoError(t, err)
	return &natspkg.Msg{Subject: "mesh.events", Data: payload}
}

func TestIngest_InitializeValidation(t *testing.T) {
	in, _ := newIngest(t)
	require.NoError(t, in.Initialize())

	bad := NewIngest("", "mesh.events", "meshview", in.engine)
	assert.Error(t, bad.Initialize())

	bad = NewIngest("nats://localhost:4222", "", "meshview", in.engine)
	assert.Error(t, bad.Initialize())

	bad = NewIngest("nats://localhost:4222", "mesh.events", "meshview", nil)
	assert.Error(t, bad.Initialize())
}

func TestIngest_HandleMessageDecoding(t *testing.T) {
	in, _ := newIngest(t)

	in.handleMessage(&natspkg.Msg{Subject: "mesh.events", Data: []byte("not json")})
	assert.Equal(t, int64(0), in.queue.Stats().Writes())

	in.handleMessage(&natspkg.Msg{Subject: "mesh.events", Data: []byte(`{"data":{"id":"!aa"}}`)})
	assert.Equal(t, int64(0), in.queue.Stats().Writes(), "record without kind is discarded")

	in.handleMessage(bridgeMsg(t, "node_info", map[string]any{
		"node": map[string]any{"id": "!aa", "short_name": "ALFA"},
	}))
	assert.Equal(t, int64(1), in.queue.Stats().Writes())
}

func TestIngest_ProcessPipeline(t *testing.T) {
	in, hub := newIngest(t)

	in.handleMessage(bridgeMsg(t, "node_info", map[string]any{
		"node": map[string]any{"id": "!aa", "short_name": "ALFA"},
	}))
	in.drain(context.Background())

	// The first event transparently starts a session, so subscribers see
	// the session reset before the node update.
	assert.Equal(t, []string{fanout.KindSessionReset, "node_info"}, hub.kinds())
}

func TestIngest_NoOpEventsProduceNoNotification(t *testing.T) {
	in, hub := newIngest(t)

	// Position for a node that was never announced is discarded.
	in.handleMessage(bridgeMsg(t, "position_update", map[string]any{
		"id": "!ghost", "latitude": 40.0, "longitude": -74.0,
	}))
	in.drain(context.Background())

	assert.Empty(t, hub.kinds())
}

func TestIngest_InvalidEventsRejected(t *testing.T) {
	in, hub := newIngest(t)

	// Self-loop links never pass validation.
	in.handleMessage(bridgeMsg(t, "network_link", map[string]any{
		"from_id": "!aa", "to_id": "!aa",
	}))
	in.drain(context.Background())

	assert.Empty(t, hub.kinds())
}

func TestIngest_BufferOverflowDropsOldest(t *testing.T) {
	in, _ := newIngest(t, WithBufferSize(2))

	for i := 0; i < 3; i++ {
		in.handleMessage(bridgeMsg(t, "text_message", map[string]any{
			"from_id": "!aa", "text": "hello",
		}))
	}

	assert.Equal(t, int64(1), in.queue.Stats().Drops())
	assert.Equal(t, int64(2), in.queue.Stats().CurrentSize())
}

func TestIngest_StopBeforeStartIsNoOp(t *testing.T) {
	in, _ := newIngest(t)
	require.NoError(t, in.Initialize())
	assert.NoError(t, in.Stop(0))
}

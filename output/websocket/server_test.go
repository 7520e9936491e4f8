package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/fanout"
	"github.com/c360/meshview/model"
	"github.com/c360/meshview/pkg/timestamp"
)

func testHub(t *testing.T) *fanout.Hub {
	t.Helper()
	hub := fanout.NewHub(
		fanout.WithLogger(slog.Default()),
		fanout.WithSnapshot(func() fanout.Notification {
			snap := model.Snapshot{
				Nodes:   []model.Node{{ID: "!aa", ShortName: "alpha"}},
				TakenAt: timestamp.Now(),
			}
			return fanout.SnapshotNotification(snap)
		}),
	)
	t.Cleanup(hub.Close)
	return hub
}

func startServer(t *testing.T, port int, hub *fanout.Hub) *Server {
	t.Helper()
	srv := NewServer(port, "/ws", hub, slog.Default())
	require.NoError(t, srv.Initialize())
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(2 * time.Second) })
	// Give the listener a moment to bind.
	time.Sleep(50 * time.Millisecond)
	return srv
}

func dial(t *testing.T, port int) *gws.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://127.0.0.1:%d/ws", port)
	var conn *gws.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, _, err = gws.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNotification(t *testing.T, conn *gws.Conn) fanout.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var n fanout.Notification
	require.NoError(t, json.Unmarshal(data, &n))
	return n
}

func TestServer_SnapshotThenDeltas(t *testing.T) {
	hub := testHub(t)
	startServer(t, 18791, hub)

	conn := dial(t, 18791)

	first := readNotification(t, conn)
	assert.Equal(t, fanout.KindSnapshot, first.Kind)

	hub.Broadcast(fanout.NewNotification("node_info", map[string]any{"id": "!bb"}))

	second := readNotification(t, conn)
	assert.Equal(t, "node_info", second.Kind)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestServer_MultipleClients(t *testing.T) {
	hub := testHub(t)
	startServer(t, 18792, hub)

	a := dial(t, 18792)
	b := dial(t, 18792)

	readNotification(t, a)
	readNotification(t, b)

	hub.Broadcast(fanout.NewNotification("text_message", map[string]any{"text": "hi"}))

	assert.Equal(t, "text_message", readNotification(t, a).Kind)
	assert.Equal(t, "text_message", readNotification(t, b).Kind)
}

func TestServer_ClientDisconnectRemoves(t *testing.T) {
	hub := testHub(t)
	startServer(t, 18793, hub)

	conn := dial(t, 18793)
	readNotification(t, conn)

	waitForCount(t, hub, 1)
	require.NoError(t, conn.Close())
	waitForCount(t, hub, 0)
}

func TestServer_Lifecycle(t *testing.T) {
	hub := testHub(t)
	srv := NewServer(18794, "/ws", hub, slog.Default())

	// Start before Initialize must fail.
	err := srv.Start(context.Background())
	require.Error(t, err)

	require.NoError(t, srv.Initialize())
	require.NoError(t, srv.Start(context.Background()))

	err = srv.Start(context.Background())
	require.Error(t, err)

	require.NoError(t, srv.Stop(2*time.Second))
	// Stop is idempotent.
	require.NoError(t, srv.Stop(2*time.Second))
}

func TestServer_InvalidConfig(t *testing.T) {
	srv := NewServer(0, "/ws", testHub(t), slog.Default())
	assert.Error(t, srv.Initialize())

	srv = NewServer(8765, "/ws", nil, slog.Default())
	assert.Error(t, srv.Initialize())
}

func waitForCount(t *testing.T, hub *fanout.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, want, hub.SubscriberCount())
}

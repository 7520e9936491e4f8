package fanout_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/event"
	"github.com/c360/meshview/fanout"
	"github.com/c360/meshview/model"
)

// testSubscriber records received notifications and can be told to fail.
type testSubscriber struct {
	id   string
	fail bool

	mu       sync.Mutex
	received []fanout.Notification
	closed   bool
}

func (s *testSubscriber) ID() string { return s.id }

func (s *testSubscriber) Send(n fanout.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("send failed")
	}
	s.received = append(s.received, n)
	return nil
}

func (s *testSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *testSubscriber) notifications() []fanout.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fanout.Notification, len(s.received))
	copy(out, s.received)
	return out
}

func (s *testSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestBroadcastSurvivesFailingSubscriber(t *testing.T) {
	hub := fanout.NewHub()
	defer hub.Close()

	good1 := &testSubscriber{id: "good-1"}
	good2 := &testSubscriber{id: "good-2"}
	bad := &testSubscriber{id: "bad", fail: true}

	hub.Register(good1)
	hub.Register(good2)
	hub.Register(bad)

	hub.Broadcast(fanout.NewNotification(event.KindNodeInfo, "payload"))

	// The two healthy subscribers get the notification; the failing one
	// is removed and closed.
	waitFor(t, func() bool {
		return len(good1.notifications()) == 1 && len(good2.notifications()) == 1
	})
	waitFor(t, func() bool { return hub.SubscriberCount() == 2 })
	assert.True(t, bad.isClosed())
	assert.False(t, good1.isClosed())
}

func TestNewSubscriberReceivesSnapshotFirst(t *testing.T) {
	snap := model.Snapshot{
		Nodes:   []model.Node{model.NewNode("!a1b2c3d4"), model.NewNode("!b2c3d4e5")},
		TakenAt: model.NowMs(),
	}
	hub := fanout.NewHub(fanout.WithSnapshot(func() fanout.Notification {
		return fanout.SnapshotNotification(snap)
	}))
	defer hub.Close()

	sub := &testSubscriber{id: "sub-1"}
	hub.Register(sub)
	hub.Broadcast(fanout.NewNotification(event.KindTextMessage, "delta"))

	waitFor(t, func() bool { return len(sub.notifications()) == 2 })

	got := sub.notifications()
	require.Equal(t, fanout.KindSnapshot, got[0].Kind)
	payload, ok := got[0].Payload.(model.Snapshot)
	require.True(t, ok)
	assert.Len(t, payload.Nodes, 2)
	assert.Equal(t, string(event.KindTextMessage), got[1].Kind)
}

func TestSendTimeoutRemovesSubscriber(t *testing.T) {
	hub := fanout.NewHub(fanout.WithSendTimeout(20 * time.Millisecond))
	defer hub.Close()

	stuck := &blockedSubscriber{id: "stuck", release: make(chan struct{})}
	defer close(stuck.release)
	hub.Register(stuck)

	hub.Broadcast(fanout.NewNotification(event.KindNodeInfo, "x"))

	waitFor(t, func() bool { return hub.SubscriberCount() == 0 })
}

type blockedSubscriber struct {
	id      string
	release chan struct{}
}

func (s *blockedSubscriber) ID() string { return s.id }

func (s *blockedSubscriber) Send(fanout.Notification) error {
	<-s.release
	return nil
}

func (s *blockedSubscriber) Close() error { return nil }

// gatedSubscriber blocks every Send until its gate is closed, then
// records notifications normally.
type gatedSubscriber struct {
	id   string
	gate chan struct{}

	mu       sync.Mutex
	received []fanout.Notification
}

func (s *gatedSubscriber) ID() string { return s.id }

func (s *gatedSubscriber) Send(n fanout.Notification) error {
	<-s.gate
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return nil
}

func (s *gatedSubscriber) Close() error { return nil }

func (s *gatedSubscriber) notifications() []fanout.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fanout.Notification, len(s.received))
	copy(out, s.received)
	return out
}

func TestSnapshotSurvivesBroadcastBurstDuringRegistration(t *testing.T) {
	snap := model.Snapshot{TakenAt: model.NowMs()}
	hub := fanout.NewHub(
		fanout.WithQueueSize(2),
		fanout.WithSnapshot(func() fanout.Notification {
			return fanout.SnapshotNotification(snap)
		}),
	)
	defer hub.Close()

	sub := &gatedSubscriber{id: "slow", gate: make(chan struct{})}
	hub.Register(sub)

	// Overflow the queue before the subscriber accepts anything. The
	// oldest deltas are dropped; the snapshot must not be.
	for i := 0; i < 5; i++ {
		hub.Broadcast(fanout.NewNotification(event.KindTextMessage, fmt.Sprintf("delta-%d", i)))
	}
	close(sub.gate)

	waitFor(t, func() bool { return len(sub.notifications()) == 3 })

	got := sub.notifications()
	require.Equal(t, fanout.KindSnapshot, got[0].Kind)
	assert.Equal(t, "delta-3", got[1].Payload)
	assert.Equal(t, "delta-4", got[2].Payload)
}

func TestReplacedSubscriberIsClosed(t *testing.T) {
	hub := fanout.NewHub()
	defer hub.Close()

	old := &testSubscriber{id: "dup"}
	hub.Register(old)

	replacement := &testSubscriber{id: "dup"}
	hub.Register(replacement)

	assert.Equal(t, 1, hub.SubscriberCount())
	assert.True(t, old.isClosed())
	assert.False(t, replacement.isClosed())

	hub.Broadcast(fanout.NewNotification(event.KindNodeInfo, "x"))
	waitFor(t, func() bool { return len(replacement.notifications()) == 1 })
	assert.Empty(t, old.notifications())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := fanout.NewHub()
	defer hub.Close()

	sub := &testSubscriber{id: "sub-1"}
	hub.Register(sub)
	hub.Unregister(sub)
	hub.Unregister(sub)

	assert.Equal(t, 0, hub.SubscriberCount())
	assert.True(t, sub.isClosed())
}

func TestBroadcastAfterCloseIsNoop(t *testing.T) {
	hub := fanout.NewHub()
	sub := &testSubscriber{id: "sub-1"}
	hub.Register(sub)
	hub.Close()

	hub.Broadcast(fanout.NewNotification(event.KindNodeInfo, "x"))
	assert.Equal(t, 0, hub.SubscriberCount())

	// Registration after close immediately closes the subscriber.
	late := &testSubscriber{id: "late"}
	hub.Register(late)
	assert.True(t, late.isClosed())
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestNotificationIDsAreUnique(t *testing.T) {
	a := fanout.NewNotification(event.KindNodeInfo, nil)
	b := fanout.NewNotification(event.KindNodeInfo, nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

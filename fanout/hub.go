package fanout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/meshview/pkg/buffer"
)

// Subscriber is a live observer of the pipeline. Send must be safe to
// call from the hub's pump goroutine; a Send error or timeout gets the
// subscriber unregistered and closed.
type Subscriber interface {
	ID() string
	Send(Notification) error
	Close() error
}

// SnapshotFunc produces the full-state notification delivered to a
// subscriber immediately on registration.
type SnapshotFunc func() Notification

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 5 * time.Second
)

type subscriberState struct {
	sub   Subscriber
	queue buffer.Buffer[Notification]
	// snapshot is pinned outside the queue so a broadcast burst during
	// registration can never evict it. Set once before the pump starts.
	snapshot *Notification
	wake     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (st *subscriberState) signal() {
	select {
	case st.wake <- struct{}{}:
	default:
	}
}

// Hub maintains the subscriber set and fans every notification out to
// all of them. Each subscriber has a bounded queue drained by its own
// pump goroutine, so one slow consumer only loses its own deltas.
type Hub struct {
	log         *slog.Logger
	metrics     *hubMetrics
	snapshot    SnapshotFunc
	queueSize   int
	sendTimeout time.Duration

	mu          sync.RWMutex
	subscribers map[string]*subscriberState
	wg          sync.WaitGroup
	closed      bool
}

// NewHub creates a Hub.
func NewHub(options ...Option) *Hub {
	h := &Hub{
		log:         slog.Default(),
		queueSize:   defaultQueueSize,
		sendTimeout: defaultSendTimeout,
		subscribers: make(map[string]*subscriberState),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Register adds a subscriber. Its first queued notification is the full
// current snapshot, so its view is complete before any delta arrives.
func (h *Hub) Register(sub Subscriber) {
	st := &subscriberState{
		sub: sub,
		queue: buffer.NewCircular[Notification](h.queueSize,
			buffer.WithOverflowPolicy[Notification](buffer.DropOldest)),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = sub.Close()
		return
	}
	if prev, exists := h.subscribers[sub.ID()]; exists {
		prev.once.Do(func() { close(prev.done) })
		if prev.sub != sub {
			_ = prev.sub.Close()
		}
	}
	h.subscribers[sub.ID()] = st

	// The snapshot is pinned on the state rather than queued, so it is
	// delivered first even when broadcasts racing with registration
	// overflow the queue.
	if h.snapshot != nil {
		snap := h.snapshot()
		st.snapshot = &snap
		st.signal()
	}

	h.wg.Add(1)
	go h.pump(st)
	count := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.subscriberCount(count)
	h.log.Debug("subscriber registered", "subscriber_id", sub.ID())
}

// Unregister removes and closes a subscriber. Unknown ids are a no-op.
func (h *Hub) Unregister(sub Subscriber) {
	h.remove(sub.ID())
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	st, exists := h.subscribers[id]
	if exists {
		delete(h.subscribers, id)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if !exists {
		return
	}
	st.once.Do(func() { close(st.done) })
	_ = st.sub.Close()

	h.metrics.subscriberCount(count)
	h.log.Debug("subscriber removed", "subscriber_id", id)
}

// Broadcast queues the notification for every subscriber. It never
// blocks: a full queue drops its oldest entry instead.
func (h *Hub) Broadcast(n Notification) {
	h.mu.RLock()
	states := make([]*subscriberState, 0, len(h.subscribers))
	for _, st := range h.subscribers {
		states = append(states, st)
	}
	h.mu.RUnlock()

	for _, st := range states {
		before := st.queue.Stats().Drops()
		_ = st.queue.Write(n)
		if dropped := st.queue.Stats().Drops() - before; dropped > 0 {
			h.metrics.dropped(dropped)
		}
		st.signal()
	}
	h.metrics.broadcast()
}

// SubscriberCount returns the current number of subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close removes all subscribers and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.remove(id)
	}
	h.wg.Wait()
}

// pump drains one subscriber's queue. A failed or timed-out send removes
// the subscriber; membership is self-healing, never manually cleaned.
func (h *Hub) pump(st *subscriberState) {
	defer h.wg.Done()

	for {
		select {
		case <-st.done:
			return
		case <-st.wake:
		}

		if st.snapshot != nil {
			snap := *st.snapshot
			st.snapshot = nil
			if !h.deliver(st, snap) {
				return
			}
		}

		for {
			n, ok := st.queue.Read()
			if !ok {
				break
			}
			if !h.deliver(st, n) {
				return
			}
		}
	}
}

// deliver sends one notification with a timeout. Returns false once the
// subscriber has been removed.
func (h *Hub) deliver(st *subscriberState, n Notification) bool {
	errCh := make(chan error, 1)
	go func() {
		errCh <- st.sub.Send(n)
	}()

	timer := time.NewTimer(h.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			h.log.Warn("subscriber send failed, removing",
				"subscriber_id", st.sub.ID(), "error", err)
			h.metrics.sendFailure()
			h.remove(st.sub.ID())
			return false
		}
		h.metrics.delivered()
		return true
	case <-timer.C:
		h.log.Warn("subscriber send timed out, removing",
			"subscriber_id", st.sub.ID(), "timeout", h.sendTimeout)
		h.metrics.sendFailure()
		h.remove(st.sub.ID())
		return false
	case <-st.done:
		return false
	}
}

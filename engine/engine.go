// Package engine orchestrates reconciliation: each normalized event is
// applied to the live store, written through to persistence, and turned
// into exactly one outbound notification.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/event"
	"github.com/c360/meshview/fanout"
	"github.com/c360/meshview/live"
	"github.com/c360/meshview/model"
	"github.com/c360/meshview/session"
	"github.com/c360/meshview/store"
)

// processingBudget is the per-event latency target. Exceeding it logs a
// warning, never an error.
const processingBudget = 100 * time.Millisecond

// Broadcaster receives notifications the engine emits outside the
// Reconcile return path, such as transparent session resets.
type Broadcaster interface {
	Broadcast(fanout.Notification)
}

// Engine applies events to live and durable state. Reconcile never
// panics past its boundary: internal failures degrade to a no-op for the
// offending event so one malformed record cannot halt the stream.
type Engine struct {
	live     *live.Store
	store    *store.Store
	sessions *session.Manager
	log      *slog.Logger
	metrics  *engineMetrics
	hub      Broadcaster

	mu          sync.RWMutex
	localNodeID string
}

// New creates an Engine.
func New(lv *live.Store, st *store.Store, sm *session.Manager, options ...Option) *Engine {
	e := &Engine{
		live:     lv,
		store:    st,
		sessions: sm,
		log:      slog.Default(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// SetLocalNode records the local node's identity once the device reports
// it. A node's routing of its own traffic is not a link.
func (e *Engine) SetLocalNode(id string) {
	e.mu.Lock()
	e.localNodeID = id
	e.mu.Unlock()
}

// LocalNode returns the recorded local node id, if known.
func (e *Engine) LocalNode() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.localNodeID
}

// Reconcile applies one event and returns its notification. A nil error
// with the notification means the event took effect. ErrUnknownNode and
// validation failures are expected no-ops; persistence failures return
// the notification together with the error, because live state already
// reflects the event and only durability was violated.
func (e *Engine) Reconcile(ctx context.Context, ev event.Event) (n fanout.Notification, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("reconcile panicked", "kind", ev.Kind(), "panic", r)
			err = errors.WrapInvalid(fmt.Errorf("panic: %v", r), "Engine", "Reconcile", "recovered")
		}
		elapsed := time.Since(start)
		e.metrics.observe(string(ev.Kind()), elapsed, err == nil)
		if elapsed > processingBudget {
			e.log.Warn("reconcile exceeded processing budget",
				"kind", ev.Kind(), "elapsed", elapsed, "budget", processingBudget)
		}
	}()

	switch v := ev.(type) {
	case *event.NodeInfo:
		return e.reconcileNodeInfo(ctx, v)
	case *event.PositionUpdate:
		return e.reconcilePosition(ctx, v)
	case *event.Telemetry:
		return e.reconcileTelemetry(ctx, v)
	case *event.TextMessage:
		return e.reconcileMessage(ctx, v)
	case *event.NetworkLink:
		return e.reconcileLink(ctx, v)
	case *event.GenericPacket:
		return e.reconcilePacket(ctx, v)
	case *event.ConnectionStatus:
		return e.reconcileConnection(v)
	default:
		return fanout.Notification{}, errors.WrapInvalid(errors.ErrUnknownKind,
			"Engine", "Reconcile", "unhandled event variant")
	}
}

// ensureSession returns the active session, starting one transparently
// when a write needs it. Data is never dropped for want of bookkeeping.
func (e *Engine) ensureSession(ctx context.Context) (model.Session, error) {
	if sess, ok := e.sessions.Current(); ok {
		return sess, nil
	}

	sess, err := e.sessions.Start(ctx)
	if err != nil {
		return model.Session{}, errors.Wrap(err, "Engine", "ensureSession", "transparent session start")
	}
	e.log.Info("session started transparently", "session_id", sess.ID)
	if e.hub != nil {
		e.hub.Broadcast(fanout.SessionResetNotification(sess))
	}
	return sess, nil
}

func (e *Engine) reconcileNodeInfo(ctx context.Context, ev *event.NodeInfo) (fanout.Notification, error) {
	sess, err := e.ensureSession(ctx)
	if err != nil {
		return fanout.Notification{}, err
	}

	merged := e.live.UpsertNode(ev.Node)
	n := fanout.NewNotification(ev.Kind(), merged)

	if err := e.store.UpsertNode(ctx, sess.ID, merged); err != nil {
		return n, errors.Wrap(err, "Engine", "reconcileNodeInfo", "write-through")
	}
	return n, nil
}

func (e *Engine) reconcilePosition(ctx context.Context, ev *event.PositionUpdate) (fanout.Notification, error) {
	merged, ok := e.live.MergePosition(ev.NodeID, ev.Latitude, ev.Longitude, ev.Altitude, ev.Timestamp)
	if !ok {
		// Position without identity cannot be meaningfully placed.
		e.log.Debug("position for unknown node discarded", "node_id", ev.NodeID)
		return fanout.Notification{}, errors.WrapInvalid(errors.ErrUnknownNode,
			"Engine", "reconcilePosition", "position for unknown node")
	}

	sess, err := e.ensureSession(ctx)
	if err != nil {
		return fanout.Notification{}, err
	}

	n := fanout.NewNotification(ev.Kind(), merged)
	if err := e.store.UpsertNode(ctx, sess.ID, merged); err != nil {
		return n, errors.Wrap(err, "Engine", "reconcilePosition", "write-through")
	}
	return n, nil
}

func (e *Engine) reconcileTelemetry(ctx context.Context, ev *event.Telemetry) (fanout.Notification, error) {
	sess, err := e.ensureSession(ctx)
	if err != nil {
		return fanout.Notification{}, err
	}

	merged, created := e.live.MergeTelemetry(ev.Merge())
	if created {
		e.log.Debug("placeholder node synthesized for telemetry", "node_id", ev.NodeID)
	}

	n := fanout.NewNotification(ev.Kind(), merged)
	if err := e.store.UpsertNode(ctx, sess.ID, merged); err != nil {
		return n, errors.Wrap(err, "Engine", "reconcileTelemetry", "write-through")
	}
	return n, nil
}

func (e *Engine) reconcileMessage(ctx context.Context, ev *event.TextMessage) (fanout.Notification, error) {
	sess, err := e.ensureSession(ctx)
	if err != nil {
		return fanout.Notification{}, err
	}

	msg := ev.Model()
	e.live.AppendMessage(msg)

	n := fanout.NewNotification(ev.Kind(), msg)
	if err := e.store.SaveMessage(ctx, sess.ID, msg); err != nil {
		return n, errors.Wrap(err, "Engine", "reconcileMessage", "persist message")
	}
	return n, nil
}

func (e *Engine) reconcileLink(ctx context.Context, ev *event.NetworkLink) (fanout.Notification, error) {
	if local := e.LocalNode(); local != "" && ev.FromID == local {
		return fanout.Notification{}, errors.WrapInvalid(errors.ErrInvalidEvent,
			"Engine", "reconcileLink", "own traffic is not a link")
	}

	sess, err := e.ensureSession(ctx)
	if err != nil {
		return fanout.Notification{}, err
	}

	obs := ev.Observation()
	link := e.live.UpsertLink(ev.FromID, ev.ToID, obs)

	n := fanout.NewNotification(ev.Kind(), link)
	if _, err := e.store.UpsertLink(ctx, sess.ID, ev.FromID, ev.ToID, obs); err != nil {
		return n, errors.Wrap(err, "Engine", "reconcileLink", "persist link")
	}
	return n, nil
}

func (e *Engine) reconcilePacket(ctx context.Context, ev *event.GenericPacket) (fanout.Notification, error) {
	sess, err := e.ensureSession(ctx)
	if err != nil {
		return fanout.Notification{}, err
	}

	pkt := ev.Model()
	n := fanout.NewNotification(ev.Kind(), pkt)
	if err := e.store.SavePacket(ctx, sess.ID, pkt); err != nil {
		return n, errors.Wrap(err, "Engine", "reconcilePacket", "persist packet")
	}
	return n, nil
}

func (e *Engine) reconcileConnection(ev *event.ConnectionStatus) (fanout.Notification, error) {
	if ev.Connected && ev.LocalNodeID != "" {
		e.SetLocalNode(ev.LocalNodeID)
	}
	if !ev.Connected {
		e.log.Warn("device connection lost")
	}
	return fanout.NewNotification(ev.Kind(), ev), nil
}

// Package nats subscribes to the radio bridge's event stream and drives
// each record through normalization and reconciliation.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/meshview/engine"
	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/event"
	"github.com/c360/meshview/fanout"
	"github.com/c360/meshview/pkg/buffer"
)

const defaultBufferSize = 1024

// envelope is the wire record published by the radio bridge: the event
// kind plus the raw payload the bridge extracted from the packet.
type envelope struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

// Broadcaster receives the notification produced for each reconciled
// event. *fanout.Hub satisfies it.
type Broadcaster interface {
	Broadcast(fanout.Notification)
}

// Ingest consumes bridge events from a NATS subject and feeds the
// reconciliation engine. Subscription callbacks only decode and buffer;
// a single worker goroutine does the reconciliation so events for the
// same node are never processed out of order.
type Ingest struct {
	url     string
	subject string
	name    string

	engine *engine.Engine
	norm   *event.Normalizer
	hub    Broadcaster
	log    *slog.Logger

	queue   buffer.Buffer[envelope]
	wake    chan struct{}
	metrics *ingestMetrics

	conn *nats.Conn
	sub  *nats.Subscription

	mu          sync.Mutex
	shutdown    chan struct{}
	wg          sync.WaitGroup
	initialized bool
	running     atomic.Bool
}

// NewIngest creates an Ingest for the given broker URL and subject.
func NewIngest(url, subject, name string, eng *engine.Engine, options ...Option) *Ingest {
	in := &Ingest{
		url:     url,
		subject: subject,
		name:    name,
		engine:  eng,
		norm:    event.NewNormalizer(),
		log:     slog.Default(),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range options {
		opt(in)
	}
	if in.queue == nil {
		in.queue = buffer.NewCircular[envelope](defaultBufferSize)
	}
	return in
}

// Initialize validates configuration before any connection is made.
func (in *Ingest) Initialize() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.url == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Ingest", "Initialize", "broker URL is required")
	}
	if in.subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Ingest", "Initialize", "subject is required")
	}
	if in.engine == nil {
		return errors.WrapFatal(fmt.Errorf("nil engine"), "Ingest", "Initialize", "engine is required")
	}
	in.shutdown = make(chan struct{})
	in.initialized = true
	return nil
}

// Start connects to the broker, subscribes, and launches the worker.
func (in *Ingest) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.initialized {
		return errors.WrapInvalid(errors.ErrNotStarted, "Ingest", "Start", "not initialized")
	}
	if in.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Ingest", "Start", "already running")
	}

	conn, err := nats.Connect(in.url,
		nats.Name(in.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			in.log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			in.log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return errors.WrapTransient(err, "Ingest", "Start", fmt.Sprintf("connect to %s", in.url))
	}
	in.conn = conn

	sub, err := conn.Subscribe(in.subject, in.handleMessage)
	if err != nil {
		conn.Close()
		in.conn = nil
		return errors.WrapTransient(err, "Ingest", "Start", fmt.Sprintf("subscribe to %s", in.subject))
	}
	in.sub = sub

	in.wg.Add(1)
	go in.worker(ctx)

	in.running.Store(true)
	in.log.Info("ingest started", "url", in.url, "subject", in.subject)
	return nil
}

// Stop unsubscribes, drains buffered events, and closes the connection.
func (in *Ingest) Stop(timeout time.Duration) error {
	in.mu.Lock()
	if !in.running.Load() {
		in.mu.Unlock()
		return nil
	}
	in.running.Store(false)

	if in.sub != nil {
		_ = in.sub.Unsubscribe()
		in.sub = nil
	}
	close(in.shutdown)
	conn := in.conn
	in.conn = nil
	in.mu.Unlock()

	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = errors.WrapTransient(errors.ErrShuttingDown, "Ingest", "Stop", "worker did not drain in time")
	}

	if conn != nil {
		conn.Close()
	}
	return err
}

// handleMessage runs on the NATS delivery goroutine and must stay cheap:
// decode, enqueue, signal.
func (in *Ingest) handleMessage(msg *nats.Msg) {
	in.metrics.received(len(msg.Data))

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		in.metrics.decodeFailure()
		in.log.Debug("undecodable bridge record", "subject", msg.Subject, "error", err)
		return
	}
	if env.Kind == "" {
		in.metrics.decodeFailure()
		in.log.Debug("bridge record missing kind", "subject", msg.Subject)
		return
	}

	before := in.queue.Stats().Drops()
	_ = in.queue.Write(env)
	if in.queue.Stats().Drops() > before {
		in.metrics.dropped()
		in.log.Warn("ingest buffer full, oldest event dropped", "kind", env.Kind)
	}

	select {
	case in.wake <- struct{}{}:
	default:
	}
}

func (in *Ingest) worker(ctx context.Context) {
	defer in.wg.Done()

	for {
		select {
		case <-in.shutdown:
			in.drain(ctx)
			return
		case <-ctx.Done():
			return
		case <-in.wake:
			in.drain(ctx)
		}
	}
}

func (in *Ingest) drain(ctx context.Context) {
	for {
		env, ok := in.queue.Read()
		if !ok {
			return
		}
		in.process(ctx, env)
	}
}

// process normalizes and reconciles one record. No-op outcomes produce
// no notification; a persistence failure still broadcasts because the
// live state already reflects the event.
func (in *Ingest) process(ctx context.Context, env envelope) {
	ev, err := in.norm.Normalize(env.Kind, env.Data)
	if err != nil {
		in.metrics.normalizeFailure()
		in.log.Debug("event rejected by normalizer", "kind", env.Kind, "error", err)
		return
	}

	n, err := in.engine.Reconcile(ctx, ev)
	if err != nil {
		if errors.Is(err, errors.ErrUnknownNode) || errors.Is(err, errors.ErrInvalidEvent) {
			in.log.Debug("event discarded", "kind", ev.Kind(), "reason", err)
			return
		}
		in.metrics.reconcileFailure()
		in.log.Error("reconcile failed", "kind", ev.Kind(), "error", err)
		if n.ID == "" {
			return
		}
	}

	in.metrics.reconciled()
	if in.hub != nil {
		in.hub.Broadcast(n)
	}
}

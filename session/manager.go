// Package session owns the single active observation session and the
// boundary at which live state is reset.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/live"
	"github.com/c360/meshview/model"
	"github.com/c360/meshview/store"
)

// Manager tracks the active session. It is the only writer of the
// active-session pointer; everything else reads through Current.
type Manager struct {
	store *store.Store
	live  *live.Store
	log   *slog.Logger

	mu      sync.RWMutex
	current *model.Session
}

// NewManager creates a Manager. On construction it adopts a session left
// active in the store by a previous run, so a restart does not orphan it;
// the live store is rehydrated from the session's durable rows so later
// partial updates merge against the full known records.
func NewManager(st *store.Store, lv *live.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{store: st, live: lv, log: logger}

	if sess, err := st.ActiveSession(context.Background()); err == nil {
		m.current = &sess
		m.rehydrate(sess.ID)
		m.log.Info("adopted active session", "session_id", sess.ID)
	}
	return m
}

// rehydrate loads the adopted session's nodes, links, and recent messages
// back into the live store. Failures leave live state partially seeded
// and are logged; reconciliation remains correct for whatever loaded.
func (m *Manager) rehydrate(sessionID int64) {
	ctx := context.Background()

	nodes, err := m.store.SessionNodes(ctx, sessionID)
	if err != nil {
		m.log.Warn("session rehydration: nodes", "session_id", sessionID, "error", err)
	}
	links, err := m.store.Topology(ctx, sessionID)
	if err != nil {
		m.log.Warn("session rehydration: links", "session_id", sessionID, "error", err)
	}
	msgs, err := m.store.RecentMessages(ctx, sessionID, live.MessageRingSize)
	if err != nil {
		m.log.Warn("session rehydration: messages", "session_id", sessionID, "error", err)
	}

	m.live.Restore(nodes, links, msgs)
	m.log.Info("live state rehydrated",
		"session_id", sessionID, "nodes", len(nodes), "links", len(links), "messages", len(msgs))
}

// Start begins a new session. Any previously active session is
// deactivated and stamped with an end time first; the live store is then
// cleared. This is the only place live state is reset.
func (m *Manager) Start(ctx context.Context) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.StartSession(ctx)
	if err != nil {
		return model.Session{}, errors.Wrap(err, "Manager", "Start", "start session")
	}

	m.live.Reset()
	m.current = &sess
	return sess, nil
}

// End deactivates the tracked session. A no-op when none is active.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	if err := m.store.EndSession(ctx, m.current.ID); err != nil {
		return errors.Wrap(err, "Manager", "End", "end session")
	}
	m.log.Info("session ended", "session_id", m.current.ID)
	m.current = nil
	return nil
}

// Current returns the active session. The second return is false when no
// session is active; callers must not assume one always exists.
func (m *Manager) Current() (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return model.Session{}, false
	}
	return *m.current, true
}

// CurrentDetail returns the active session with up-to-date counters from
// the store.
func (m *Manager) CurrentDetail(ctx context.Context) (model.Session, error) {
	m.mu.RLock()
	id := int64(-1)
	if m.current != nil {
		id = m.current.ID
	}
	m.mu.RUnlock()

	if id < 0 {
		return model.Session{}, errors.ErrNoActiveSession
	}
	return m.store.Session(ctx, id)
}

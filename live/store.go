// Package live holds the in-memory view of the mesh for the active
// session: current nodes, recent messages, and inferred links. It is the
// single source of truth for "now"; durable history lives in store.
package live

import (
	"sync"
	"time"

	"github.com/c360/meshview/model"
	"github.com/c360/meshview/pkg/buffer"
)

// MessageRingSize is the default bound on the live message history.
const MessageRingSize = 100

// Store is the mutable live-state cache. All mutation goes through its
// methods; snapshots copy under the same lock so readers never observe a
// half-applied event.
type Store struct {
	freshness time.Duration

	mu       sync.RWMutex
	nodes    map[string]model.Node
	links    map[string]model.NetworkLink
	messages buffer.Buffer[model.TextMessage]
}

// Option configures a Store.
type Option func(*Store)

// WithMessageRing bounds the live message history.
func WithMessageRing(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.messages = buffer.NewCircular[model.TextMessage](size)
		}
	}
}

// WithFreshnessWindow sets the liveness window snapshots derive the
// per-node active flag from.
func WithFreshnessWindow(window time.Duration) Option {
	return func(s *Store) {
		if window > 0 {
			s.freshness = window
		}
	}
}

// NewStore creates an empty live store.
func NewStore(options ...Option) *Store {
	s := &Store{
		freshness: model.FreshnessWindow,
		nodes:     make(map[string]model.Node),
		links:     make(map[string]model.NetworkLink),
		messages:  buffer.NewCircular[model.TextMessage](MessageRingSize),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// UpsertNode merges the update into the stored record, creating it when
// absent, and returns the merged result. Merge semantics are union: the
// update never nulls out fields it does not mention.
func (s *Store) UpsertNode(update model.Node) model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.nodes[update.ID]
	if !ok {
		current = model.NewNode(update.ID)
	}
	merged := current.Merge(update)
	s.nodes[update.ID] = merged
	return merged
}

// Node returns the current record for id.
func (s *Store) Node(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// MergePosition applies a position update to a known node. Position for
// an unknown node is discarded: a location without an identity cannot be
// meaningfully placed.
func (s *Store) MergePosition(id string, lat, lon, alt *float64, seenAt int64) (model.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}

	update := model.NewNode(id)
	update.Latitude = lat
	update.Longitude = lon
	update.Altitude = alt
	update.LastHeard = seenAt

	merged := current.Merge(update)
	s.nodes[id] = merged
	return merged, true
}

// MergeTelemetry applies a telemetry-derived partial record. Unlike
// position, telemetry for an unknown node synthesizes a placeholder so
// the metrics are not silently lost. The second return reports whether
// the node had to be created.
func (s *Store) MergeTelemetry(update model.Node) (model.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.nodes[update.ID]
	if !ok {
		current = model.NewNode(update.ID)
	}
	merged := current.Merge(update)
	s.nodes[update.ID] = merged
	return merged, !ok
}

// AppendMessage adds a message to the bounded ring; the oldest message
// is evicted once the ring is full.
func (s *Store) AppendMessage(msg model.TextMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.messages.Write(msg)
}

// UpsertLink folds one observation into the link for the ordered pair,
// creating the link on first sight, and returns the updated link.
func (s *Store) UpsertLink(fromID, toID string, obs model.LinkObservation) model.NetworkLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.LinkKey(fromID, toID)
	link, ok := s.links[key]
	if !ok {
		link = model.NewLink(fromID, toID, obs)
	} else {
		link.Observe(obs)
	}
	s.links[key] = link
	return link
}

// Link returns the current link for the ordered pair.
func (s *Store) Link(fromID, toID string) (model.NetworkLink, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[model.LinkKey(fromID, toID)]
	return l, ok
}

// Counts returns the number of live nodes and links.
func (s *Store) Counts() (nodes, links int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.links)
}

// Snapshot returns a point-in-time copy of the live state with at most
// maxMessages of the newest messages, oldest first. maxMessages <= 0
// means all buffered messages.
func (s *Store) Snapshot(maxMessages int) model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.Snapshot{
		Nodes:   make([]model.Node, 0, len(s.nodes)),
		Links:   make([]model.NetworkLink, 0, len(s.links)),
		TakenAt: model.NowMs(),
	}
	for _, n := range s.nodes {
		n.IsActive = n.ActiveWithin(s.freshness, snap.TakenAt)
		snap.Nodes = append(snap.Nodes, n)
	}
	for _, l := range s.links {
		snap.Links = append(snap.Links, l)
	}

	msgs := s.messages.Snapshot()
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	snap.Messages = msgs

	return snap
}

// Restore seeds the live state from durable records, replacing whatever
// is held. Used when a restart adopts a still-active session, so later
// partial updates merge against the full known record instead of a blank
// one. Messages are applied oldest first.
func (s *Store) Restore(nodes []model.Node, links []model.NetworkLink, msgs []model.TextMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	s.links = make(map[string]model.NetworkLink, len(links))
	for _, l := range links {
		s.links[model.LinkKey(l.FromID, l.ToID)] = l
	}
	s.messages.Clear()
	for _, m := range msgs {
		_ = s.messages.Write(m)
	}
}

// Reset clears all live state. Called only at session boundaries.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]model.Node)
	s.links = make(map[string]model.NetworkLink)
	s.messages.Clear()
}

// Package fanout delivers reconciliation notifications to live
// subscribers. Delivery is fire-and-forget per subscriber: a slow or
// dead subscriber is shed, never allowed to stall ingestion.
package fanout

import (
	"github.com/google/uuid"

	"github.com/c360/meshview/event"
	"github.com/c360/meshview/model"
)

// Notification kinds beyond the event kinds themselves.
const (
	KindSnapshot     = "snapshot"
	KindSessionReset = "session_reset"
)

// Notification is one outbound update: the event kind and its normalized
// payload. Exactly one is produced per reconciled event.
type Notification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// NewNotification builds a notification for an event kind.
func NewNotification(kind event.Kind, payload any) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      string(kind),
		Payload:   payload,
		Timestamp: model.NowMs(),
	}
}

// SnapshotNotification wraps a full live-state snapshot. It is always the
// first notification a new subscriber receives.
func SnapshotNotification(snap model.Snapshot) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      KindSnapshot,
		Payload:   snap,
		Timestamp: snap.TakenAt,
	}
}

// SessionResetNotification announces a new session to all subscribers.
func SessionResetNotification(sess model.Session) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      KindSessionReset,
		Payload:   sess,
		Timestamp: model.NowMs(),
	}
}

// Package model defines the domain records reconciled by the pipeline:
// nodes, sessions, network links, text messages, and mesh packets.
//
// Records use pointer fields for values the radio may simply not report.
// A nil field means "never observed", which is distinct from an observed
// zero; merge semantics depend on that distinction.
package model

import (
	"encoding/json"
	"time"

	"github.com/c360/meshview/pkg/timestamp"
)

// BroadcastID is the canonical destination identifier for packets addressed
// to all nodes. Protocol-reserved broadcast markers ("^all", 0xFFFFFFFF)
// normalize to this value, which never collides with a real node id.
const BroadcastID = "broadcast"

// Role identifies the function a node performs in the mesh.
type Role string

// Node roles as reported by the device firmware.
const (
	RoleClient       Role = "CLIENT"
	RoleClientMute   Role = "CLIENT_MUTE"
	RoleRouter       Role = "ROUTER"
	RoleRouterClient Role = "ROUTER_CLIENT"
	RoleRepeater     Role = "REPEATER"
	RoleTracker      Role = "TRACKER"
)

// RoleFromCode maps a firmware role code to a Role.
// Unrecognized codes map to RoleClient.
func RoleFromCode(code int) Role {
	switch code {
	case 0:
		return RoleClient
	case 1:
		return RoleClientMute
	case 2:
		return RoleRouter
	case 3:
		return RoleRouterClient
	case 4:
		return RoleRepeater
	case 5:
		return RoleTracker
	default:
		return RoleClient
	}
}

// RoleFromString parses a role name, falling back to RoleClient for
// anything unrecognized.
func RoleFromString(s string) Role {
	switch Role(s) {
	case RoleClient, RoleClientMute, RoleRouter, RoleRouterClient, RoleRepeater, RoleTracker:
		return Role(s)
	default:
		return RoleClient
	}
}

// SignalQuality buckets received signal strength into a coarse rating.
// The zero value means "unknown" (no RSSI observed yet).
type SignalQuality string

// Signal quality buckets derived from RSSI in dBm.
const (
	QualityUnknown   SignalQuality = ""
	QualityExcellent SignalQuality = "excellent" // > -75 dBm
	QualityGood      SignalQuality = "good"      // (-85, -75]
	QualityWeak      SignalQuality = "weak"      // (-95, -85]
	QualityPoor      SignalQuality = "poor"      // <= -95
)

// QualityFromRSSI buckets an RSSI reading. The function is total and
// deterministic; boundary values fall into the weaker bucket
// (-75 is GOOD territory's upper neighbor: -75 itself is GOOD).
func QualityFromRSSI(rssi int) SignalQuality {
	switch {
	case rssi > -75:
		return QualityExcellent
	case rssi > -85:
		return QualityGood
	case rssi > -95:
		return QualityWeak
	default:
		return QualityPoor
	}
}

// HopCount is the number of intermediate relays a packet traversed.
// HopCountUnknown marks packets whose hop accounting was unavailable;
// it is never conflated with zero hops, because zero hops implies a
// direct neighbor link.
type HopCount int

// HopCountUnknown is the sentinel for unavailable hop accounting.
const HopCountUnknown HopCount = -1

// Known reports whether the hop count was actually observed.
func (h HopCount) Known() bool {
	return h >= 0
}

// Direct reports whether the hop count indicates at most one relay.
// An unknown hop count is never direct.
func (h HopCount) Direct() bool {
	return h.Known() && h <= 1
}

// MarshalJSON encodes unknown hop counts as null so consumers cannot
// mistake them for zero.
func (h HopCount) MarshalJSON() ([]byte, error) {
	if !h.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(int(h))
}

// UnmarshalJSON decodes null as unknown.
func (h *HopCount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = HopCountUnknown
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v < 0 {
		*h = HopCountUnknown
		return nil
	}
	*h = HopCount(v)
	return nil
}

// HopCountFrom derives a hop count from the hop-start/hop-limit pair
// carried on mesh packets. A non-positive hop start means the firmware
// did not fill in hop accounting, so the result is unknown.
func HopCountFrom(hopStart, hopLimit int) HopCount {
	if hopStart <= 0 {
		return HopCountUnknown
	}
	hops := hopStart - hopLimit
	if hops < 0 {
		return HopCountUnknown
	}
	return HopCount(hops)
}

// Session is a bounded observation window. Exactly one session is active
// at a time; all live state and persisted rows are scoped to it.
type Session struct {
	ID           int64 `json:"id"`
	StartedAt    int64 `json:"started_at"`
	EndedAt      int64 `json:"ended_at,omitempty"`
	Active       bool  `json:"active"`
	NodeCount    int   `json:"node_count"`
	MessageCount int   `json:"message_count"`
}

// TextMessage is an immutable, append-only chat message scoped to a session.
type TextMessage struct {
	FromID    string   `json:"from_id"`
	FromName  string   `json:"from_name"`
	ToID      string   `json:"to_id"`
	ToName    string   `json:"to_name"`
	Text      string   `json:"text"`
	RSSI      *int     `json:"rssi,omitempty"`
	SNR       *float64 `json:"snr,omitempty"`
	HopCount  HopCount `json:"hop_count"`
	Channel   int      `json:"channel"`
	Timestamp int64    `json:"timestamp"`
}

// MeshPacket is a generic routed packet kept for forensic history.
// It never mutates live state.
type MeshPacket struct {
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	PacketType string         `json:"packet_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	RSSI       *int           `json:"rssi,omitempty"`
	SNR        *float64       `json:"snr,omitempty"`
	HopCount   HopCount       `json:"hop_count"`
	Channel    int            `json:"channel"`
	Timestamp  int64          `json:"timestamp"`
}

// Snapshot is the point-in-time view delivered to a newly registered
// subscriber: current session, all live nodes, the most recent messages,
// and all current links.
type Snapshot struct {
	Session  *Session      `json:"session,omitempty"`
	Nodes    []Node        `json:"nodes"`
	Messages []TextMessage `json:"messages"`
	Links    []NetworkLink `json:"links"`
	TakenAt  int64         `json:"taken_at"`
}

// ActiveWithin reports whether the node was heard within the freshness
// window ending now.
func (n *Node) ActiveWithin(window time.Duration, now int64) bool {
	if n.LastHeard == 0 {
		return false
	}
	return now-n.LastHeard < window.Milliseconds()
}

// FreshnessWindow is the default liveness window for nodes.
const FreshnessWindow = 300 * time.Second

// PlaceholderName derives a display name for a node that has not yet
// announced its identity.
func PlaceholderName(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "Node-" + id
}

// NowMs returns the current timestamp in the canonical representation.
// Thin alias so model tests and callers need not import pkg/timestamp.
func NowMs() int64 {
	return timestamp.Now()
}

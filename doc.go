// Package meshview turns a mesh radio's raw telemetry stream into a
// consistent, queryable picture of the network.
//
// # Architecture
//
// The pipeline is a single directed flow from the radio bridge to
// websocket subscribers:
//
//	┌──────────────┐    NATS     ┌──────────────┐
//	│ radio bridge │ ──────────▶ │ input/nats   │  decode + buffer
//	└──────────────┘             └──────┬───────┘
//	                                    ▼
//	                             ┌──────────────┐
//	                             │ event        │  normalize raw records
//	                             └──────┬───────┘
//	                                    ▼
//	                             ┌──────────────┐
//	                             │ engine       │  reconcile per event
//	                             └──┬───────┬───┘
//	                        live ◀──┘       └──▶ store (SQLite)
//	                                    │
//	                                    ▼
//	                             ┌──────────────┐
//	                             │ fanout       │  notify subscribers
//	                             └──────┬───────┘
//	                                    ▼
//	                             ┌──────────────┐
//	                             │ output/      │  websocket clients
//	                             │ websocket    │
//	                             └──────────────┘
//
// Every inbound record becomes exactly one typed event, every event is
// applied to the in-memory live state and the durable store inside one
// reconcile call, and every successful reconcile produces exactly one
// notification. New subscribers always receive a full state snapshot
// before their first incremental update.
//
// Durable history is grouped into sessions. A session spans one radio
// connection epoch; starting a new one resets the live state while the
// previous session's rows remain queryable until retention cleanup
// removes them.
package meshview

// Package store is the durable, session-scoped persistence layer: nodes
// with append-only history, packets, messages, and network links with
// rolling statistics, all keyed by session.
package store

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/c360/meshview/errors"
)

// Schema for the mesh telemetry store. Timestamps are Unix milliseconds.
// hop_count is NULL when unknown; it is never stored as zero in that case.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at      INTEGER NOT NULL,
    ended_at        INTEGER,
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    node_count      INTEGER NOT NULL DEFAULT 0,
    message_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS nodes (
    id              TEXT NOT NULL,
    session_id      INTEGER NOT NULL REFERENCES sessions(id),
    short_name      TEXT NOT NULL,
    long_name       TEXT,
    hardware_model  TEXT,
    role            TEXT NOT NULL DEFAULT 'CLIENT',
    is_licensed     BOOLEAN NOT NULL DEFAULT FALSE,
    battery_level   INTEGER,
    voltage         REAL,
    channel_util    REAL,
    air_util_tx     REAL,
    uptime_seconds  INTEGER,
    temperature     REAL,
    humidity        REAL,
    pressure        REAL,
    rssi            INTEGER,
    snr             REAL,
    hop_count       INTEGER,
    latitude        REAL,
    longitude       REAL,
    altitude        REAL,
    last_heard      INTEGER NOT NULL,
    signal_quality  TEXT,
    PRIMARY KEY (id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_session ON nodes(session_id);
CREATE INDEX IF NOT EXISTS idx_nodes_last_heard ON nodes(last_heard DESC);

CREATE TABLE IF NOT EXISTS nodes_history (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id         TEXT NOT NULL,
    session_id      INTEGER NOT NULL REFERENCES sessions(id),
    short_name      TEXT NOT NULL,
    battery_level   INTEGER,
    voltage         REAL,
    channel_util    REAL,
    air_util_tx     REAL,
    uptime_seconds  INTEGER,
    temperature     REAL,
    humidity        REAL,
    pressure        REAL,
    rssi            INTEGER,
    snr             REAL,
    hop_count       INTEGER,
    latitude        REAL,
    longitude       REAL,
    altitude        REAL,
    timestamp       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_node ON nodes_history(node_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON nodes_history(timestamp);

CREATE TABLE IF NOT EXISTS mesh_packets (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      INTEGER NOT NULL REFERENCES sessions(id),
    from_id         TEXT NOT NULL,
    to_id           TEXT NOT NULL,
    packet_type     TEXT NOT NULL,
    payload         TEXT,
    rssi            INTEGER,
    snr             REAL,
    hop_count       INTEGER,
    channel         INTEGER NOT NULL DEFAULT 0,
    timestamp       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_packets_session ON mesh_packets(session_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_packets_timestamp ON mesh_packets(timestamp);

CREATE TABLE IF NOT EXISTS text_messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      INTEGER NOT NULL REFERENCES sessions(id),
    from_id         TEXT NOT NULL,
    from_name       TEXT NOT NULL,
    to_id           TEXT NOT NULL,
    to_name         TEXT,
    message         TEXT NOT NULL,
    rssi            INTEGER,
    snr             REAL,
    hop_count       INTEGER,
    channel         INTEGER NOT NULL DEFAULT 0,
    timestamp       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON text_messages(session_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON text_messages(timestamp);

CREATE TABLE IF NOT EXISTS network_links (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      INTEGER NOT NULL REFERENCES sessions(id),
    from_id         TEXT NOT NULL,
    to_id           TEXT NOT NULL,
    rssi            INTEGER,
    snr             REAL,
    success_rate    REAL NOT NULL DEFAULT 1.0,
    last_seen       INTEGER NOT NULL,
    is_direct       BOOLEAN NOT NULL DEFAULT FALSE,
    packet_count    INTEGER NOT NULL DEFAULT 0,
    avg_rssi        REAL NOT NULL DEFAULT 0,
    avg_snr         REAL NOT NULL DEFAULT 0,
    avg_hop_count   REAL NOT NULL DEFAULT 0,
    UNIQUE(session_id, from_id, to_id)
);

CREATE INDEX IF NOT EXISTS idx_links_session ON network_links(session_id, last_seen DESC);
`

// Store wraps the SQLite database holding durable mesh state.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapFatal(err, "Store", "Open", "create database directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "Open", "open database")
	}

	// The sqlite3 driver serializes writes per connection; a single
	// connection avoids SQLITE_BUSY between concurrent upserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "Store", "Open", "apply schema")
	}

	logger.Debug("store opened", "path", path)
	return &Store{db: db, log: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// nullInt converts an optional int for storage.
func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// nullInt64 converts an optional int64 for storage.
func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// nullFloat converts an optional float for storage.
func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

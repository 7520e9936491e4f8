package store

import (
	"context"
	"time"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// retention cleanup covers the append-only tables; current nodes and
// links age out with their session instead.
var retentionTables = []struct {
	name   string
	column string
}{
	{"nodes_history", "timestamp"},
	{"mesh_packets", "timestamp"},
	{"text_messages", "timestamp"},
	{"network_links", "last_seen"},
}

// Cleanup deletes rows older than the retention window and reports how
// many each table lost. Counts come from the DELETE itself, so rows
// inserted concurrently are never miscounted.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (map[string]int64, error) {
	cutoff := model.NowMs() - retention.Milliseconds()
	deleted := make(map[string]int64, len(retentionTables))

	for _, t := range retentionTables {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+t.name+` WHERE `+t.column+` < ?`, cutoff,
		)
		if err != nil {
			return deleted, errors.WrapTransient(err, "Store", "Cleanup", "delete from "+t.name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, errors.WrapTransient(err, "Store", "Cleanup", "count deletions for "+t.name)
		}
		deleted[t.name] = n
	}

	s.log.Info("retention cleanup complete",
		"cutoff", cutoff,
		"nodes_history", deleted["nodes_history"],
		"mesh_packets", deleted["mesh_packets"],
		"text_messages", deleted["text_messages"],
		"network_links", deleted["network_links"],
	)
	return deleted, nil
}

// Stats reports row counts per table and the database size in bytes.
type Stats struct {
	SizeBytes int64            `json:"size_bytes"`
	Tables    map[string]int64 `json:"tables"`
}

// DatabaseStats collects table row counts and the on-disk size.
func (s *Store) DatabaseStats(ctx context.Context) (Stats, error) {
	stats := Stats{Tables: make(map[string]int64)}

	row := s.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`,
	)
	if err := row.Scan(&stats.SizeBytes); err != nil {
		return stats, errors.WrapTransient(err, "Store", "DatabaseStats", "read database size")
	}

	for _, table := range []string{"sessions", "nodes", "nodes_history", "mesh_packets", "text_messages", "network_links"} {
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			return stats, errors.WrapTransient(err, "Store", "DatabaseStats", "count rows in "+table)
		}
		stats.Tables[table] = count
	}
	return stats, nil
}

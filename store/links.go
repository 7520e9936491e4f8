package store

import (
	"context"
	"database/sql"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// UpsertLink folds one observation into the stored link for the ordered
// pair, creating it on first sight. The read-modify-write runs in one
// transaction: a failure can never leave an incremented packet_count next
// to a stale mean.
func (s *Store) UpsertLink(ctx context.Context, sessionID int64, fromID, toID string, obs model.LinkObservation) (model.NetworkLink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NetworkLink{}, errors.WrapTransient(err, "Store", "UpsertLink", "begin transaction")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT rssi, snr, success_rate, last_seen, is_direct,
		       packet_count, avg_rssi, avg_snr, avg_hop_count
		FROM network_links
		WHERE session_id = ? AND from_id = ? AND to_id = ?`,
		sessionID, fromID, toID,
	)

	link := model.NetworkLink{SessionID: sessionID, FromID: fromID, ToID: toID}
	var rssi sql.NullInt64
	var snr sql.NullFloat64
	err = row.Scan(&rssi, &snr, &link.SuccessRate, &link.LastSeen, &link.Direct,
		&link.PacketCount, &link.AvgRSSI, &link.AvgSNR, &link.AvgHopCount)
	switch {
	case err == sql.ErrNoRows:
		link = model.NewLink(fromID, toID, obs)
		link.SessionID = sessionID
	case err != nil:
		return model.NetworkLink{}, errors.WrapTransient(err, "Store", "UpsertLink", "read link row")
	default:
		link.RSSI = intPtr(rssi)
		link.SNR = floatPtr(snr)
		link.Observe(obs)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO network_links (
			session_id, from_id, to_id, rssi, snr, success_rate,
			last_seen, is_direct, packet_count, avg_rssi, avg_snr, avg_hop_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, from_id, to_id) DO UPDATE SET
			rssi = excluded.rssi,
			snr = excluded.snr,
			success_rate = excluded.success_rate,
			last_seen = excluded.last_seen,
			is_direct = excluded.is_direct,
			packet_count = excluded.packet_count,
			avg_rssi = excluded.avg_rssi,
			avg_snr = excluded.avg_snr,
			avg_hop_count = excluded.avg_hop_count`,
		sessionID, fromID, toID, nullInt(link.RSSI), nullFloat(link.SNR),
		link.SuccessRate, link.LastSeen, link.Direct, link.PacketCount,
		link.AvgRSSI, link.AvgSNR, link.AvgHopCount,
	)
	if err != nil {
		return model.NetworkLink{}, errors.WrapTransient(err, "Store", "UpsertLink", "write link row")
	}

	if err := tx.Commit(); err != nil {
		return model.NetworkLink{}, errors.WrapTransient(err, "Store", "UpsertLink", "commit")
	}
	return link, nil
}

// Topology returns all links in the session, most recently seen first.
func (s *Store) Topology(ctx context.Context, sessionID int64) ([]model.NetworkLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_id, to_id, rssi, snr, success_rate, last_seen,
		       is_direct, packet_count, avg_rssi, avg_snr, avg_hop_count
		FROM network_links
		WHERE session_id = ?
		ORDER BY last_seen DESC`,
		sessionID,
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Topology", "query links")
	}
	defer rows.Close()

	var links []model.NetworkLink
	for rows.Next() {
		link := model.NetworkLink{SessionID: sessionID}
		var rssi sql.NullInt64
		var snr sql.NullFloat64
		err := rows.Scan(&link.FromID, &link.ToID, &rssi, &snr,
			&link.SuccessRate, &link.LastSeen, &link.Direct,
			&link.PacketCount, &link.AvgRSSI, &link.AvgSNR, &link.AvgHopCount)
		if err != nil {
			return nil, errors.WrapTransient(err, "Store", "Topology", "scan link row")
		}
		link.RSSI = intPtr(rssi)
		link.SNR = floatPtr(snr)
		links = append(links, link)
	}
	return links, rows.Err()
}

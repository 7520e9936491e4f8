package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// SaveMessage appends a text message and increments the session's message
// counter in the same transaction, so the counter never drifts from the
// stored rows.
func (s *Store) SaveMessage(ctx context.Context, sessionID int64, msg model.TextMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "Store", "SaveMessage", "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO text_messages (
			session_id, from_id, from_name, to_id, to_name,
			message, rssi, snr, hop_count, channel, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, msg.FromID, msg.FromName, msg.ToID, msg.ToName,
		msg.Text, nullInt(msg.RSSI), nullFloat(msg.SNR), nullHop(msg.HopCount),
		msg.Channel, msg.Timestamp,
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "SaveMessage", "insert message row")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1 WHERE id = ?`,
		sessionID,
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "SaveMessage", "increment message count")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "Store", "SaveMessage", "commit")
	}
	return nil
}

// RecentMessages returns the most recent limit messages in chronological
// order. Storage order is recency-first; the result is reversed before
// returning.
func (s *Store) RecentMessages(ctx context.Context, sessionID int64, limit int) ([]model.TextMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_id, from_name, to_id, to_name, message,
		       rssi, snr, hop_count, channel, timestamp
		FROM text_messages
		WHERE session_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "RecentMessages", "query messages")
	}
	defer rows.Close()

	var messages []model.TextMessage
	for rows.Next() {
		var (
			msg        model.TextMessage
			toName     sql.NullString
			rssi, hops sql.NullInt64
			snr        sql.NullFloat64
		)
		err := rows.Scan(&msg.FromID, &msg.FromName, &msg.ToID, &toName,
			&msg.Text, &rssi, &snr, &hops, &msg.Channel, &msg.Timestamp)
		if err != nil {
			return nil, errors.WrapTransient(err, "Store", "RecentMessages", "scan message row")
		}
		msg.ToName = toName.String
		msg.RSSI = intPtr(rssi)
		msg.SNR = floatPtr(snr)
		msg.HopCount = hopFrom(hops)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "RecentMessages", "iterate rows")
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SavePacket appends a generic mesh packet for forensic history. The
// payload is stored as JSON; normalization already reduced it to scalars.
func (s *Store) SavePacket(ctx context.Context, sessionID int64, pkt model.MeshPacket) error {
	var payload sql.NullString
	if len(pkt.Payload) > 0 {
		data, err := json.Marshal(pkt.Payload)
		if err != nil {
			return errors.WrapInvalid(err, "Store", "SavePacket", "encode payload")
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mesh_packets (
			session_id, from_id, to_id, packet_type, payload,
			rssi, snr, hop_count, channel, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, pkt.FromID, pkt.ToID, pkt.PacketType, payload,
		nullInt(pkt.RSSI), nullFloat(pkt.SNR), nullHop(pkt.HopCount),
		pkt.Channel, pkt.Timestamp,
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "SavePacket", "insert packet row")
	}
	return nil
}

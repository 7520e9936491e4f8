package store

import (
	"context"
	"database/sql"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// StartSession deactivates any active session, stamping its end time, and
// creates a fresh active one. Both steps commit in a single transaction
// so there is never a moment with two active sessions on disk.
func (s *Store) StartSession(ctx context.Context) (model.Session, error) {
	now := model.NowMs()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "StartSession", "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE, ended_at = ? WHERE is_active = TRUE`,
		now,
	); err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "StartSession", "deactivate previous session")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (started_at, is_active) VALUES (?, TRUE)`,
		now,
	)
	if err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "StartSession", "insert session row")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "StartSession", "read session id")
	}

	if err := tx.Commit(); err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "StartSession", "commit")
	}

	s.log.Info("session started", "session_id", id)
	return model.Session{ID: id, StartedAt: now, Active: true}, nil
}

// EndSession deactivates the session and stamps its end time. Ending a
// session that is already ended is a no-op.
func (s *Store) EndSession(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE, ended_at = ? WHERE id = ? AND is_active = TRUE`,
		model.NowMs(), sessionID,
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "EndSession", "update session row")
	}
	return nil
}

// ActiveSession returns the active session, or ErrNoActiveSession.
func (s *Store) ActiveSession(ctx context.Context) (model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, is_active, node_count, message_count
		 FROM sessions WHERE is_active = TRUE LIMIT 1`,
	)

	var (
		sess    model.Session
		endedAt sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.StartedAt, &endedAt, &sess.Active, &sess.NodeCount, &sess.MessageCount)
	if err == sql.ErrNoRows {
		return model.Session{}, errors.ErrNoActiveSession
	}
	if err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "ActiveSession", "query session")
	}
	sess.EndedAt = int64Value(endedAt)
	return sess, nil
}

// Session returns the session with the given id, or ErrNotFound.
func (s *Store) Session(ctx context.Context, id int64) (model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, is_active, node_count, message_count
		 FROM sessions WHERE id = ?`, id,
	)

	var (
		sess    model.Session
		endedAt sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.StartedAt, &endedAt, &sess.Active, &sess.NodeCount, &sess.MessageCount)
	if err == sql.ErrNoRows {
		return model.Session{}, errors.ErrNotFound
	}
	if err != nil {
		return model.Session{}, errors.WrapTransient(err, "Store", "Session", "query session")
	}
	sess.EndedAt = int64Value(endedAt)
	return sess, nil
}

func int64Value(v sql.NullInt64) int64 {
	if !v.Valid {
		return 0
	}
	return v.Int64
}

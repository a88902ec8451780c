package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateSession starts a new trace session. Its ID is a UUIDv7 and its seq
// follows the last session's.
func (s *Store) CreateSession(ctx context.Context, label, configHash string) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	sess := Session{ID: id.String(), Label: label, ConfigHash: configHash}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, seq, label, config_hash)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions), ?, ?)
		RETURNING seq
	`, sess.ID, sess.Label, sess.ConfigHash).Scan(&sess.Seq)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// WriteDispatch inserts a dispatch record.
// Uses ON CONFLICT DO NOTHING so a record written twice is stored once.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteDispatch(ctx context.Context, d Dispatch) error {
	diags, err := marshalDiagnostics(d.Diagnostics)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(session_id, seq, routine, route, result, command, diagnostics, fault)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		d.SessionID,
		d.Seq,
		d.Routine,
		d.Route,
		int64(d.Result), // go-sqlite3 rejects uint64 values with the high bit set
		marshalCommand(d.Command),
		diags,
		d.Fault,
	)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fnmodels/internal/command"
)

// Session is one recorded dispatcher run.
type Session struct {
	ID         string
	Seq        int64
	Label      string
	ConfigHash string
}

// Dispatch is one recorded call.
type Dispatch struct {
	SessionID   string
	Seq         int64
	Routine     string
	Route       string
	Result      uint64
	Command     *command.Command
	Diagnostics []string
	Fault       string
}

// Sessions returns every session in creation order.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, label, config_hash
		FROM sessions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Seq, &sess.Label, &sess.ConfigHash); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Session returns the session with the given ID, or the latest one when id
// is empty. ErrNotFound when there is no such session.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	query := `SELECT id, seq, label, config_hash FROM sessions WHERE id = ?`
	args := []any{id}
	if id == "" {
		query = `SELECT id, seq, label, config_hash FROM sessions ORDER BY seq DESC LIMIT 1`
		args = nil
	}

	var sess Session
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&sess.ID, &sess.Seq, &sess.Label, &sess.ConfigHash)
	if errors.Is(err, sql.ErrNoRows) {
		if id == "" {
			return Session{}, fmt.Errorf("%w: no sessions", ErrNotFound)
		}
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

// ReadDispatches returns the dispatches of a session ordered by seq.
// A non-empty routine restricts the result to that routine.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) ReadDispatches(ctx context.Context, sessionID, routine string) ([]Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, routine, route, result, command, diagnostics, fault
		FROM dispatches
		WHERE session_id = ? AND (? = '' OR routine = ?)
		ORDER BY seq ASC
	`, sessionID, routine, routine)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	dispatches := []Dispatch{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return dispatches, nil
}

// RouteCounts tallies the routes taken in a session.
func (s *Store) RouteCounts(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT route, COUNT(*)
		FROM dispatches
		WHERE session_id = ?
		GROUP BY route
		ORDER BY route ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query route counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var route string
		var n int
		if err := rows.Scan(&route, &n); err != nil {
			return nil, fmt.Errorf("scan route count: %w", err)
		}
		counts[route] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate route counts: %w", err)
	}
	return counts, nil
}

func scanDispatch(rows *sql.Rows) (Dispatch, error) {
	var (
		d      Dispatch
		result int64
		raw    []byte
		diags  string
	)
	if err := rows.Scan(&d.SessionID, &d.Seq, &d.Routine, &d.Route, &result, &raw, &diags, &d.Fault); err != nil {
		return Dispatch{}, fmt.Errorf("scan dispatch: %w", err)
	}
	d.Result = uint64(result)

	cmd, err := unmarshalCommand(raw)
	if err != nil {
		return Dispatch{}, err
	}
	d.Command = cmd

	d.Diagnostics, err = unmarshalDiagnostics(diags)
	if err != nil {
		return Dispatch{}, err
	}
	return d, nil
}

package store

import (
	"context"
	"fmt"
	"time"
)

// Input kinds recorded in the journal.
const (
	InputStart   = "start"
	InputPointer = "pointer"
	InputKey     = "key"
	InputExit    = "exit"
)

// Input is one journaled game event.
//
// Position is the active layer's along-axis position when the event was
// applied, which is all a replay needs to reproduce the cut. X and Y are the
// normalized pointer offsets and are only meaningful when HasPointer is set.
type Input struct {
	SessionID  string
	Seq        int64
	Kind       string
	At         time.Time
	Position   float64
	HasPointer bool
	X          float64
	Y          float64
}

// AppendInput adds an event to a session's journal.
// Uses ON CONFLICT DO NOTHING so a retried append is harmless.
func (s *Store) AppendInput(ctx context.Context, in Input) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inputs
		(session_id, seq, kind, at_ms, position, has_pointer, x, y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		in.SessionID,
		in.Seq,
		in.Kind,
		toMillis(in.At),
		in.Position,
		in.HasPointer,
		in.X,
		in.Y,
	)
	if err != nil {
		return fmt.Errorf("append input: %w", err)
	}
	return nil
}

// ReadInputs returns a session's journal in seq order.
func (s *Store) ReadInputs(ctx context.Context, sessionID string) ([]Input, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, at_ms, position, has_pointer, x, y
		FROM inputs
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	defer rows.Close()

	var inputs []Input
	for rows.Next() {
		var (
			in   Input
			atMs int64
		)
		if err := rows.Scan(&in.SessionID, &in.Seq, &in.Kind, &atMs, &in.Position, &in.HasPointer, &in.X, &in.Y); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		in.At = fromMillis(atMs)
		inputs = append(inputs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	return inputs, nil
}

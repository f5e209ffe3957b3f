package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Receipt is an accepted score.
type Receipt struct {
	ID         string
	SessionID  string
	Player     string
	Score      int
	Clicks     int
	DurationMs int64
	AcceptedAt time.Time

	// ReplayScore is set once the journal has been re-simulated.
	ReplayScore *int

	// Disputed marks a receipt whose journal did not reproduce it. Disputed
	// receipts stay on record but never rank or reach the reward contract.
	Disputed bool

	// Seq orders receipts by acceptance. Assigned by RedeemSession.
	Seq int64
}

// RedeemSession consumes a session and records its receipt atomically.
//
// Returns inserted=false, with no error, if the session was already consumed.
// Returns an error wrapping ErrNotFound if the session does not exist.
func (s *Store) RedeemSession(ctx context.Context, r Receipt) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("redeem session: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL
	`, toMillis(r.AcceptedAt), r.SessionID)
	if err != nil {
		return false, fmt.Errorf("redeem session: consume: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("redeem session: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, r.SessionID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("redeem session: %w", ErrNotFound)
		}
		if err != nil {
			return false, fmt.Errorf("redeem session: %w", err)
		}
		return false, nil
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM receipts`).Scan(&seq); err != nil {
		return false, fmt.Errorf("redeem session: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts
		(id, session_id, player, score, clicks, duration_ms, accepted_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.SessionID,
		r.Player,
		r.Score,
		r.Clicks,
		r.DurationMs,
		toMillis(r.AcceptedAt),
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("redeem session: insert receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("redeem session: commit: %w", err)
	}
	return true, nil
}

// SetReplayScore records the re-simulated score for a receipt.
func (s *Store) SetReplayScore(ctx context.Context, receiptID string, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE receipts SET replay_score = ? WHERE id = ?`, score, receiptID)
	if err != nil {
		return fmt.Errorf("set replay score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set replay score: receipt %s: %w", receiptID, ErrNotFound)
	}
	return nil
}

// MarkDisputed flags a receipt whose replay disagreed with it.
func (s *Store) MarkDisputed(ctx context.Context, receiptID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE receipts SET disputed = 1 WHERE id = ?`, receiptID)
	if err != nil {
		return fmt.Errorf("mark disputed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark disputed: receipt %s: %w", receiptID, ErrNotFound)
	}
	return nil
}

const receiptColumns = `id, session_id, player, score, clicks, duration_ms, accepted_at, replay_score, disputed, seq`

// ReadReceipt retrieves the receipt for a session.
func (s *Store) ReadReceipt(ctx context.Context, sessionID string) (Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE session_id = ?`, sessionID)
	if err != nil {
		return Receipt{}, fmt.Errorf("read receipt: %w", err)
	}
	receipts, err := scanReceipts(rows)
	if err != nil {
		return Receipt{}, err
	}
	if len(receipts) == 0 {
		return Receipt{}, fmt.Errorf("receipt for %s: %w", sessionID, ErrNotFound)
	}
	return receipts[0], nil
}

// TopReceipts returns up to limit undisputed receipts, best score first.
// Ties go to the earlier receipt, so the first player to reach a score
// keeps it.
func (s *Store) TopReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE disputed = 0
		ORDER BY score DESC, seq ASC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top receipts: %w", err)
	}
	return scanReceipts(rows)
}

// PlayerReceipts returns a player's receipts in acceptance order.
func (s *Store) PlayerReceipts(ctx context.Context, player string) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE player = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, player)
	if err != nil {
		return nil, fmt.Errorf("player receipts: %w", err)
	}
	return scanReceipts(rows)
}

// ReceiptsSince returns every receipt accepted at or after since, in
// acceptance order.
func (s *Store) ReceiptsSince(ctx context.Context, since time.Time) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts
		WHERE accepted_at >= ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("receipts since: %w", err)
	}
	return scanReceipts(rows)
}

func scanReceipts(rows *sql.Rows) ([]Receipt, error) {
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var (
			r          Receipt
			acceptedAt int64
			replay     sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Player, &r.Score, &r.Clicks, &r.DurationMs, &acceptedAt, &replay, &r.Disputed, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		r.AcceptedAt = fromMillis(acceptedAt)
		if replay.Valid {
			score := int(replay.Int64)
			r.ReplayScore = &score
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan receipts: %w", err)
	}
	return out, nil
}

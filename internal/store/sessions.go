package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is an issued play session.
type Session struct {
	ID        string
	Token     string
	Nonce     string
	Player    string
	Profile   string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// ConsumedAt is nil until the session is redeemed or closed.
	ConsumedAt *time.Time
}

// Consumed reports whether the session can no longer be redeemed.
func (s Session) Consumed() bool {
	return s.ConsumedAt != nil
}

// WriteSession records an issued session.
// Uses ON CONFLICT(id) DO NOTHING for idempotency. A different session reusing
// an existing token still fails on the UNIQUE constraint.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, token, nonce, player, profile, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Token,
		sess.Nonce,
		sess.Player,
		sess.Profile,
		toMillis(sess.IssuedAt),
		toMillis(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// ReadSession retrieves a session by ID.
// Returns an error wrapping ErrNotFound if it does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, nonce, player, profile, issued_at, expires_at, consumed_at
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

// ReadSessionByToken retrieves the session a token was issued for.
// Returns an error wrapping ErrNotFound if no session carries the token.
func (s *Store) ReadSessionByToken(ctx context.Context, token string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, nonce, player, profile, issued_at, expires_at, consumed_at
		FROM sessions
		WHERE token = ?
	`, token)
	return scanSession(row)
}

// CloseSession marks a session consumed without a receipt.
// Returns closed=false if it was already consumed.
func (s *Store) CloseSession(ctx context.Context, id string, at time.Time) (closed bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL
	`, toMillis(at), id)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	if n == 0 {
		if _, err := s.ReadSession(ctx, id); err != nil {
			return false, fmt.Errorf("close session: %w", err)
		}
	}
	return n == 1, nil
}

func scanSession(row *sql.Row) (Session, error) {
	var (
		sess       Session
		issuedAt   int64
		expiresAt  int64
		consumedAt sql.NullInt64
	)
	err := row.Scan(
		&sess.ID,
		&sess.Token,
		&sess.Nonce,
		&sess.Player,
		&sess.Profile,
		&issuedAt,
		&expiresAt,
		&consumedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	sess.IssuedAt = fromMillis(issuedAt)
	sess.ExpiresAt = fromMillis(expiresAt)
	if consumedAt.Valid {
		at := fromMillis(consumedAt.Int64)
		sess.ConsumedAt = &at
	}
	return sess, nil
}

package attest

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/stacktower/internal/canonical"
	"github.com/roach88/stacktower/internal/session"
	"github.com/roach88/stacktower/internal/store"
)

const tracerName = "github.com/roach88/stacktower/internal/attest"

// Ledger is the host's record of issued sessions. Implemented by *store.Store.
type Ledger interface {
	ReadSession(ctx context.Context, id string) (store.Session, error)
	RedeemSession(ctx context.Context, r store.Receipt) (bool, error)
}

// TokenParser validates session tokens. Implemented by *session.Issuer.
type TokenParser interface {
	Parse(token string) (session.Claims, error)
}

// Verifier is the host side of the attestation handshake.
//
// Thread-safety: safe for concurrent use; redemption atomicity is provided by
// the ledger.
type Verifier struct {
	ledger Ledger
	tokens TokenParser
	cfg    Config
	now    func() time.Time
	tracer trace.Tracer
	logger *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierConfig sets the gate re-applied on the host.
func WithVerifierConfig(cfg Config) VerifierOption {
	return func(v *Verifier) {
		v.cfg = cfg
	}
}

// WithVerifierNow overrides the wall clock.
func WithVerifierNow(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = l
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) VerifierOption {
	return func(v *Verifier) {
		v.tracer = t
	}
}

// NewVerifier creates a verifier over ledger and tokens.
func NewVerifier(ledger Ledger, tokens TokenParser, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		ledger: ledger,
		tokens: tokens,
		cfg:    DefaultConfig(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyMessage parses raw and verifies it against sessionID.
func (v *Verifier) VerifyMessage(ctx context.Context, sessionID string, raw []byte) (store.Receipt, error) {
	p, err := ParsePayload(raw)
	if err != nil {
		return store.Receipt{}, err
	}
	return v.Verify(ctx, sessionID, p)
}

// Verify checks that p belongs to the session the host issued as sessionID
// and redeems it.
//
// On success the returned receipt has been recorded and the session can
// never be redeemed again. Every failure is a *VerifyError, except ledger I/O
// errors which are returned wrapped.
func (v *Verifier) Verify(ctx context.Context, sessionID string, p Payload) (store.Receipt, error) {
	ctx, span := v.tracer.Start(ctx, "attest.Verify",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("score", p.Score),
			attribute.Int("clicks", p.Clicks),
			attribute.Int64("duration_ms", p.DurationMs),
		))
	defer span.End()

	r, err := v.verify(ctx, sessionID, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var ve *VerifyError
		if errors.As(err, &ve) {
			span.SetAttributes(attribute.String("verify.code", string(ve.Code)))
		}
		v.logger.Info("score rejected", "session", sessionID, "error", err)
		return store.Receipt{}, err
	}

	span.SetAttributes(attribute.String("receipt.id", r.ID))
	v.logger.Info("score accepted", "session", sessionID, "score", r.Score, "receipt", r.ID)
	return r, nil
}

func (v *Verifier) verify(ctx context.Context, sessionID string, p Payload) (store.Receipt, error) {
	if err := p.Validate(); err != nil {
		var ve *VerifyError
		if errors.As(err, &ve) {
			ve.SessionID = sessionID
		}
		return store.Receipt{}, err
	}

	claims, err := v.tokens.Parse(p.Token)
	switch {
	case errors.Is(err, session.ErrExpired):
		return store.Receipt{}, verifyErr(ErrCodeExpired, sessionID, "session token expired")
	case err != nil:
		return store.Receipt{}, verifyErr(ErrCodeBadSignature, sessionID, "%v", err)
	}
	if claims.SessionID != sessionID {
		return store.Receipt{}, verifyErr(ErrCodeTokenMismatch, sessionID, "token was issued for another session")
	}

	sess, err := v.ledger.ReadSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Receipt{}, verifyErr(ErrCodeUnknownSession, sessionID, "session was never issued")
	}
	if err != nil {
		return store.Receipt{}, err
	}

	if subtle.ConstantTimeCompare([]byte(sess.Token), []byte(p.Token)) != 1 {
		return store.Receipt{}, verifyErr(ErrCodeTokenMismatch, sessionID, "token does not match issued token")
	}
	if p.Nonce != "" && subtle.ConstantTimeCompare([]byte(sess.Nonce), []byte(p.Nonce)) != 1 {
		return store.Receipt{}, verifyErr(ErrCodeTokenMismatch, sessionID, "nonce does not match issued nonce")
	}
	if sess.Consumed() {
		return store.Receipt{}, verifyErr(ErrCodeAlreadyConsumed, sessionID, "session already consumed")
	}

	now := v.now().UTC()
	duration := time.Duration(p.DurationMs) * time.Millisecond
	if duration > now.Sub(sess.IssuedAt) {
		return store.Receipt{}, verifyErr(ErrCodeImplausible, sessionID, "duration %s exceeds session age %s", duration, now.Sub(sess.IssuedAt))
	}
	if _, err := Gate(v.cfg, Summary{
		Token:    p.Token,
		Nonce:    p.Nonce,
		Score:    p.Score,
		Clicks:   p.Clicks,
		Duration: duration,
	}); err != nil {
		return store.Receipt{}, verifyErr(ErrCodeImplausible, sessionID, "%v", err)
	}

	id, err := canonical.ReceiptID(sessionID, p.Token, p.Score, p.Clicks, p.DurationMs)
	if err != nil {
		return store.Receipt{}, err
	}
	r := store.Receipt{
		ID:         id,
		SessionID:  sessionID,
		Player:     sess.Player,
		Score:      p.Score,
		Clicks:     p.Clicks,
		DurationMs: p.DurationMs,
		AcceptedAt: now,
	}
	inserted, err := v.ledger.RedeemSession(ctx, r)
	if err != nil {
		return store.Receipt{}, err
	}
	if !inserted {
		return store.Receipt{}, verifyErr(ErrCodeAlreadyConsumed, sessionID, "session already consumed")
	}
	return r, nil
}

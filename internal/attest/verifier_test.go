package attest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stacktower/internal/session"
	"github.com/roach88/stacktower/internal/store"
)

var secret = []byte("verifier-test-secret-0123456789")

type verifierFixture struct {
	store    *store.Store
	issuer   *session.Issuer
	verifier *Verifier
	now      time.Time
}

func newFixture(t *testing.T) *verifierFixture {
	t.Helper()

	f := &verifierFixture{now: time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	f.store = s

	iss, err := session.NewIssuer(secret,
		session.WithGenerator(session.NewFixedGenerator("sess-a", "nonce-a", "sess-b", "nonce-b", "sess-c", "nonce-c")),
		session.WithNow(clock),
	)
	require.NoError(t, err)
	f.issuer = iss

	f.verifier = NewVerifier(s, iss,
		WithVerifierNow(clock),
		WithVerifierLogger(quietLogger()),
	)
	return f
}

// issue creates a session and records it in the ledger.
func (f *verifierFixture) issue(t *testing.T) session.Grant {
	t.Helper()
	g, err := f.issuer.Issue("0xking", "pro")
	require.NoError(t, err)
	require.NoError(t, f.store.WriteSession(context.Background(), store.Session{
		ID:        g.SessionID,
		Token:     g.Token,
		Nonce:     g.Nonce,
		Player:    g.Player,
		Profile:   g.Profile,
		IssuedAt:  g.IssuedAt,
		ExpiresAt: g.ExpiresAt,
	}))
	return g
}

func payloadFor(g session.Grant, score int, dur time.Duration) Payload {
	return Payload{
		Type:       MessageType,
		Score:      score,
		Token:      g.Token,
		Nonce:      g.Nonce,
		Clicks:     score + 1,
		DurationMs: dur.Milliseconds(),
	}
}

func TestVerify_AcceptsIssuedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.issue(t)
	f.now = f.now.Add(30 * time.Second)

	r, err := f.verifier.Verify(ctx, g.SessionID, payloadFor(g, 14, 25*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "sess-a", r.SessionID)
	assert.Equal(t, "0xking", r.Player)
	assert.Equal(t, 14, r.Score)
	assert.Len(t, r.ID, 64)

	stored, err := f.store.ReadReceipt(ctx, g.SessionID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)
}

func TestVerify_RejectsMismatchedToken(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t)
	b := f.issue(t)
	f.now = f.now.Add(time.Minute)

	// b's genuine token presented for session a.
	_, err := f.verifier.Verify(context.Background(), a.SessionID, payloadFor(b, 5, 20*time.Second))
	assert.True(t, IsVerifyError(err, ErrCodeTokenMismatch), "got %v", err)

	// The session stays redeemable with its own token.
	_, err = f.verifier.Verify(context.Background(), a.SessionID, payloadFor(a, 5, 20*time.Second))
	assert.NoError(t, err)
}

func TestVerify_RejectsMismatchedNonce(t *testing.T) {
	f := newFixture(t)
	g := f.issue(t)
	f.now = f.now.Add(time.Minute)

	p := payloadFor(g, 5, 20*time.Second)
	p.Nonce = "nonce-forged"
	_, err := f.verifier.Verify(context.Background(), g.SessionID, p)
	assert.True(t, IsVerifyError(err, ErrCodeTokenMismatch))

	// A missing nonce is allowed.
	p.Nonce = ""
	_, err = f.verifier.Verify(context.Background(), g.SessionID, p)
	assert.NoError(t, err)
}

func TestVerify_RedeemsOnce(t *testing.T) {
	f := newFixture(t)
	g := f.issue(t)
	f.now = f.now.Add(time.Minute)
	p := payloadFor(g, 5, 20*time.Second)

	_, err := f.verifier.Verify(context.Background(), g.SessionID, p)
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), g.SessionID, p)
	assert.True(t, IsVerifyError(err, ErrCodeAlreadyConsumed))
}

func TestVerify_UnknownSession(t *testing.T) {
	f := newFixture(t)
	g, err := f.issuer.Issue("", "pro") // signed but never recorded
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)

	_, err = f.verifier.Verify(context.Background(), g.SessionID, payloadFor(g, 5, 20*time.Second))
	assert.True(t, IsVerifyError(err, ErrCodeUnknownSession))
}

func TestVerify_BadSignature(t *testing.T) {
	f := newFixture(t)
	g := f.issue(t)
	f.now = f.now.Add(time.Minute)

	other, err := session.NewIssuer([]byte("a-completely-different-secret!!"),
		session.WithGenerator(session.NewFixedGenerator(g.SessionID, g.Nonce)),
		session.WithNow(func() time.Time { return f.now }))
	require.NoError(t, err)
	forged, err := other.Issue("0xking", "pro")
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), g.SessionID, payloadFor(forged, 5, 20*time.Second))
	assert.True(t, IsVerifyError(err, ErrCodeBadSignature))
}

func TestVerify_Expired(t *testing.T) {
	f := newFixture(t)
	g := f.issue(t)
	f.now = f.now.Add(session.DefaultTTL + time.Second)

	_, err := f.verifier.Verify(context.Background(), g.SessionID, payloadFor(g, 5, 20*time.Second))
	assert.True(t, IsVerifyError(err, ErrCodeExpired))
}

func TestVerify_Implausible(t *testing.T) {
	f := newFixture(t)
	g := f.issue(t)
	f.now = f.now.Add(10 * time.Second)

	_, err := f.verifier.Verify(context.Background(), g.SessionID, payloadFor(g, 5, 20*time.Second))
	assert.True(t, IsVerifyError(err, ErrCodeImplausible), "duration longer than the session has existed")

	_, err = f.verifier.Verify(context.Background(), g.SessionID, payloadFor(g, 5, 2*time.Second))
	assert.True(t, IsVerifyError(err, ErrCodeImplausible), "host re-applies the minimum duration")
}

func TestVerifyMessage_ParsesRaw(t *testing.T) {
	f := newFixture(t)
	g := f.issue(t)
	f.now = f.now.Add(time.Minute)

	_, err := f.verifier.VerifyMessage(context.Background(), g.SessionID, []byte(`{"type":"HELLO"}`))
	assert.True(t, IsVerifyError(err, ErrCodeWrongType))

	raw := []byte(`{"type":"GAME_OVER","score":3,"token":"` + g.Token + `","clicks":3,"durationMs":8000}`)
	r, err := f.verifier.VerifyMessage(context.Background(), g.SessionID, raw)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Score)
}

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stacktower/internal/testutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndParse_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	iss, err := NewIssuer(testSecret,
		WithGenerator(NewFixedGenerator("sess-1", "nonce-1")),
		WithNow(fixedNow(now)),
	)
	require.NoError(t, err)

	g, err := iss.Issue(" 0xabc ", "pro")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", g.SessionID)
	assert.Equal(t, "nonce-1", g.Nonce)
	assert.Equal(t, "0xabc", g.Player)
	assert.Equal(t, now.Add(DefaultTTL), g.ExpiresAt)
	assert.Equal(t, 2, strings.Count(g.Token, "."), "compact JWS")

	c, err := iss.Parse(g.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{
		SessionID: "sess-1",
		Player:    "0xabc",
		Profile:   "pro",
		Nonce:     "nonce-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(DefaultTTL),
	}, c)
}

func TestParse_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := now
	iss, err := NewIssuer(testSecret,
		WithTTL(time.Minute),
		WithNow(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	g, err := iss.Issue("", "classic")
	require.NoError(t, err)

	clock = now.Add(time.Minute)
	_, err = iss.Parse(g.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestParse_RejectsOtherSecret(t *testing.T) {
	a, err := NewIssuer(testSecret)
	require.NoError(t, err)
	b, err := NewIssuer([]byte("another-secret-of-32-bytes-long!"))
	require.NoError(t, err)

	g, err := a.Issue("", "pro")
	require.NoError(t, err)

	_, err = b.Parse(g.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsTampering(t *testing.T) {
	iss, err := NewIssuer(testSecret)
	require.NoError(t, err)
	g, err := iss.Issue("", "pro")
	require.NoError(t, err)

	parts := strings.Split(g.Token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = iss.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsUnsignedAndGarbage(t *testing.T) {
	iss, err := NewIssuer(testSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "sess-x",
			Issuer:    DefaultIssuerName,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{unsigned, "", "   ", "not-a-token", "a.b.c"} {
		_, err := iss.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestParse_RejectsForeignIssuer(t *testing.T) {
	other, err := NewIssuer(testSecret, WithName("elsewhere"))
	require.NoError(t, err)
	iss, err := NewIssuer(testSecret)
	require.NoError(t, err)

	g, err := other.Issue("", "pro")
	require.NoError(t, err)

	_, err = iss.Parse(g.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer([]byte("short"))
	assert.Error(t, err)

	_, err = NewIssuer(testSecret, WithTTL(0))
	assert.Error(t, err)
}

func TestUUIDv7Generator(t *testing.T) {
	var gen UUIDv7Generator
	a, b := gen.Generate(), gen.Generate()

	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator_Exhausts(t *testing.T) {
	gen := NewFixedGenerator("a")
	assert.Equal(t, "a", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestIssue_DeterministicWithFixedIDs(t *testing.T) {
	issue := func() Grant {
		iss, err := NewIssuer(testSecret,
			WithGenerator(testutil.NewFixedTokens("sess-fixed")),
			WithNow(fixedNow(testutil.Epoch)),
		)
		require.NoError(t, err)
		g, err := iss.Issue("", "pro")
		require.NoError(t, err)
		return g
	}

	a, b := issue(), issue()
	assert.Equal(t, "sess-fixed", a.SessionID)
	assert.Equal(t, "sess-fixed", a.Nonce)
	assert.Equal(t, a.Token, b.Token, "same ids and clock sign the same token")
}

// Package session issues and parses the credentials a host hands to a game
// instance at bootstrap.
//
// A session token is an HS256-signed JWT whose jti is the session ID. To the
// game it is an opaque string: the game only echoes it back in the GAME_OVER
// payload. The host parses it again on receipt, so a forged or altered token
// never matches an issued session.
//
// The nonce is a second, independent identifier. It is optional on the wire
// and carried inside the token so the verifier can cross-check it.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long an issued session may stay open.
const DefaultTTL = 30 * time.Minute

// DefaultIssuerName is the iss claim on every token.
const DefaultIssuerName = "stacktower"

var (
	// ErrInvalidToken means the token is malformed, unsigned or signed with a
	// different key.
	ErrInvalidToken = errors.New("session token is invalid")

	// ErrExpired means the token's exp claim has passed.
	ErrExpired = errors.New("session token is expired")
)

// Grant is everything the host needs to start a game and later verify it.
type Grant struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	Nonce     string    `json:"nonce"`
	Player    string    `json:"player,omitempty"`
	Profile   string    `json:"profile"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the validated contents of a session token.
type Claims struct {
	SessionID string
	Player    string
	Profile   string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the JWT wire shape.
type tokenClaims struct {
	jwt.RegisteredClaims
	Player  string `json:"player,omitempty"`
	Profile string `json:"profile"`
	Nonce   string `json:"nonce"`
}

// Issuer signs and parses session tokens.
//
// Thread-safety: safe for concurrent use once constructed.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	ids    Generator
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// WithGenerator sets the source of session IDs and nonces.
func WithGenerator(g Generator) Option {
	return func(i *Issuer) {
		i.ids = g
	}
}

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithName sets the iss claim.
func WithName(name string) Option {
	return func(i *Issuer) {
		i.name = name
	}
}

// NewIssuer creates an issuer signing with secret.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes, got %d", len(secret))
	}
	i := &Issuer{
		secret: secret,
		name:   DefaultIssuerName,
		ttl:    DefaultTTL,
		ids:    UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", i.ttl)
	}
	return i, nil
}

// Issue creates a new session for player on profile.
// player may be empty for anonymous play.
func (i *Issuer) Issue(player, profile string) (Grant, error) {
	now := i.now().UTC().Truncate(time.Second)
	g := Grant{
		SessionID: i.ids.Generate(),
		Nonce:     i.ids.Generate(),
		Player:    strings.TrimSpace(player),
		Profile:   profile,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        g.SessionID,
			Issuer:    i.name,
			IssuedAt:  jwt.NewNumericDate(g.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
		Player:  g.Player,
		Profile: g.Profile,
		Nonce:   g.Nonce,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Grant{}, fmt.Errorf("sign session token: %w", err)
	}
	g.Token = token
	return g, nil
}

// Parse verifies the signature and expiry of token and returns its claims.
//
// Returns ErrInvalidToken or ErrExpired, wrapped with detail.
func (i *Issuer) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != i.name {
		return Claims{}, fmt.Errorf("%w: issuer %q", ErrInvalidToken, parsed.Issuer)
	}
	if parsed.ID == "" {
		return Claims{}, fmt.Errorf("%w: jti is required", ErrInvalidToken)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp is required", ErrInvalidToken)
	}
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(i.now().UTC()) {
		return Claims{}, ErrExpired
	}

	c := Claims{
		SessionID: parsed.ID,
		Player:    parsed.Player,
		Profile:   parsed.Profile,
		Nonce:     parsed.Nonce,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		c.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return c, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature", ErrInvalidToken)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: algorithm", ErrInvalidToken)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

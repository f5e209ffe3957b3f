package testutil

// FixedTokens hands out the same id every time.
//
// Use it where every session in a scenario should share one token, such as
// golden traces that must be byte-identical across runs. For a distinct id
// per call use session.FixedGenerator.
//
// Thread-safety: FixedTokens is stateless and safe for concurrent use.
type FixedTokens struct {
	token string
}

// NewFixedTokens creates a generator for token.
//
// If token is empty, Generate returns "test-session-default".
func NewFixedTokens(token string) *FixedTokens {
	if token == "" {
		token = "test-session-default"
	}
	return &FixedTokens{token: token}
}

// Generate returns the fixed token. Implements session.Generator.
func (g *FixedTokens) Generate() string {
	return g.token
}

// Package attest decides whether a finished session's score may leave the
// game, and verifies it on the host side when it arrives.
//
// # Emission gate
//
// A score is emitted only if all hold:
//   - the sentinel never flagged the session
//   - score > 0
//   - a session token was supplied at bootstrap
//   - the session lasted at least MinSessionDuration
//   - above PerBlockAfter blocks, at least MinTimePerBlock per block
//
// Otherwise the score is dropped silently: nothing is sent and the player
// sees the same "Game Over" as a zero score. The reason is only ever logged
// on the host side.
//
// # Verification
//
// The host never trusts the emitter. Verifier re-checks the token signature,
// matches the token and nonce against the issued session, re-applies the
// duration gate against its own clock and redeems the session exactly once.
package attest

import (
	"fmt"
	"time"
)

// Defaults for the emission gate.
const (
	DefaultMinSessionDuration = 3500 * time.Millisecond
	DefaultMinTimePerBlock    = 200 * time.Millisecond
	DefaultPerBlockAfter      = 10
)

// Config holds the gate thresholds.
type Config struct {
	// MinSessionDuration is the shortest session whose score is trusted.
	MinSessionDuration time.Duration

	// MinTimePerBlock applies once the score exceeds PerBlockAfter.
	// Zero disables the check.
	MinTimePerBlock time.Duration
	PerBlockAfter   int
}

// DefaultConfig returns the canonical gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinSessionDuration: DefaultMinSessionDuration,
		MinTimePerBlock:    DefaultMinTimePerBlock,
		PerBlockAfter:      DefaultPerBlockAfter,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.MinSessionDuration < 0 {
		return fmt.Errorf("min session duration must be non-negative, got %s", c.MinSessionDuration)
	}
	if c.MinTimePerBlock < 0 {
		return fmt.Errorf("min time per block must be non-negative, got %s", c.MinTimePerBlock)
	}
	if c.PerBlockAfter < 0 {
		return fmt.Errorf("per-block threshold must be non-negative, got %d", c.PerBlockAfter)
	}
	return nil
}

// Summary is the finished session as the game saw it.
type Summary struct {
	Token    string
	Nonce    string
	Score    int
	Clicks   int
	Duration time.Duration
	Flagged  bool
}

// Gate applies the emission rules to s.
// Returns the payload to send, or a *DropError.
func Gate(cfg Config, s Summary) (Payload, error) {
	if s.Flagged {
		return Payload{}, &DropError{Reason: DropSuspectedAutomation}
	}
	if s.Score <= 0 {
		return Payload{}, &DropError{Reason: DropZeroScore}
	}
	if s.Token == "" {
		return Payload{}, &DropError{Reason: DropUntrustedSession}
	}
	if s.Duration < cfg.MinSessionDuration {
		return Payload{}, &DropError{
			Reason: DropSessionTooShort,
			Detail: fmt.Sprintf("%s < %s", s.Duration, cfg.MinSessionDuration),
		}
	}
	if tooFast(cfg, s.Score, s.Duration) {
		return Payload{}, &DropError{
			Reason: DropSessionTooShort,
			Detail: fmt.Sprintf("%d blocks in %s", s.Score, s.Duration),
		}
	}

	return Payload{
		Type:       MessageType,
		Score:      s.Score,
		Token:      s.Token,
		Nonce:      s.Nonce,
		Clicks:     s.Clicks,
		DurationMs: s.Duration.Milliseconds(),
	}, nil
}

func tooFast(cfg Config, score int, d time.Duration) bool {
	if cfg.MinTimePerBlock <= 0 || score <= cfg.PerBlockAfter {
		return false
	}
	return d < time.Duration(score)*cfg.MinTimePerBlock
}

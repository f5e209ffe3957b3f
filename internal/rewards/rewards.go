// Package rewards is the boundary to the reward contract that settles scores.
//
// The game core never talks to it. The host submits a score only after the
// payload has passed the attestation gate and the verifier.
package rewards

import (
	"context"
	"fmt"
	"time"
)

// ZeroAddress is reported as the king while nobody holds the high score.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// State is the contract's view for one player.
type State struct {
	PotSize     uint64 `json:"pot_size"`
	HighScore   int    `json:"high_score"`
	KingAddress string `json:"king_address"`
	Level       int    `json:"level"`
	TicketCount int    `json:"ticket_count"`
	XP          int    `json:"xp"`
}

// Result is what a submission changed.
type Result struct {
	NewKing   bool   `json:"new_king"`
	Payout    uint64 `json:"payout"`
	HighScore int    `json:"high_score"`
}

// Contract is the reward contract a verified score is submitted to.
type Contract interface {
	GameState(ctx context.Context, player string) (State, error)
	SubmitScore(ctx context.Context, player string, score int) (Result, error)
}

// Policy is the round economics.
type Policy struct {
	// ResetScore is the high score a fresh round starts from. A player must
	// beat it to take the pot.
	ResetScore int `json:"reset_score"`

	// WinnerPercent of the pot goes to a new king; the rest carries over.
	WinnerPercent int `json:"winner_percent"`

	// ResetAfter is how long a high score stands before the round resets.
	ResetAfter time.Duration `json:"reset_after"`
}

// DefaultPolicy returns 180 to beat, an 80/20 split and a 48 hour round.
func DefaultPolicy() Policy {
	return Policy{
		ResetScore:    180,
		WinnerPercent: 80,
		ResetAfter:    48 * time.Hour,
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.ResetScore < 0 {
		return fmt.Errorf("reset score must not be negative, got %d", p.ResetScore)
	}
	if p.WinnerPercent < 0 || p.WinnerPercent > 100 {
		return fmt.Errorf("winner percent must be within [0,100], got %d", p.WinnerPercent)
	}
	if p.ResetAfter <= 0 {
		return fmt.Errorf("reset timer must be positive, got %s", p.ResetAfter)
	}
	return nil
}

// Split divides pot between the winner and the next round.
// Rounding favours the carry-over.
func (p Policy) Split(pot uint64) (winner, carry uint64) {
	winner = pot / 100 * uint64(p.WinnerPercent)
	winner += pot % 100 * uint64(p.WinnerPercent) / 100
	return winner, pot - winner
}

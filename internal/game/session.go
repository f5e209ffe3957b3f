package game

import (
	"time"

	"github.com/roach88/stacktower/internal/tower"
)

// Hue progression of placed layers, in degrees.
const (
	startHue = 210
	hueStep  = 4
)

// Session is everything that lives for one game and is discarded with it.
type Session struct {
	Token     string
	Nonce     string
	StartedAt time.Time // zero until play begins
	Clicks    int
	Combo     int
	Hue       int

	stack   *tower.Stack
	outcome chan Outcome
	ended   bool
	final   int
}

func newSession(b Bootstrap, p tower.Profile) *Session {
	return &Session{
		Token:   b.Token,
		Nonce:   b.Nonce,
		Hue:     startHue,
		stack:   tower.New(p),
		outcome: make(chan Outcome, 1),
	}
}

// Score is the live score, or the frozen final score once ended.
func (s *Session) Score() int {
	if s.ended {
		return s.final
	}
	return s.stack.Score()
}

// Ended reports whether the outcome has been delivered.
func (s *Session) Ended() bool {
	return s.ended
}

// finish freezes the score and delivers o exactly once.
func (s *Session) finish(o Outcome) bool {
	if s.ended {
		return false
	}
	s.ended = true
	s.final = o.Score
	s.outcome <- o
	close(s.outcome)
	return true
}

func (s *Session) advanceHue() {
	s.Hue = (s.Hue + hueStep) % 360
}

package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/store"
)

// ReplayResult is the outcome of re-simulating a journal.
type ReplayResult struct {
	SessionID string `json:"session_id"`
	Score     int    `json:"score"`
	Clicks    int    `json:"clicks"`
	Ended     bool   `json:"ended"`
	Aborted   bool   `json:"aborted"`
	Flagged   bool   `json:"flagged"`
	Entries   int    `json:"entries"`
}

// replayClock serves journal timestamps to the machine.
type replayClock struct {
	now time.Time
}

func (c *replayClock) Now() time.Time { return c.now }

// Replay re-runs a session journal through a fresh machine.
//
// Each placement is re-applied at the position the live layer held when the
// input arrived, so the replayed score depends only on the journal, not on
// frame timing. Transition delays are skipped. The live machine already
// hands the sentinel millisecond timestamps, the resolution the journal
// keeps, so the replayed samples are identical and Flagged is reproduced.
//
// An unfinished journal is not an error: Ended is false and Score is the
// score reached so far.
func Replay(cfg game.Config, inputs []store.Input) (ReplayResult, error) {
	if len(inputs) == 0 {
		return ReplayResult{}, &ReplayError{Code: ErrCodeEmptyJournal, Message: "journal has no entries"}
	}

	sessionID := inputs[0].SessionID
	res := ReplayResult{SessionID: sessionID, Entries: len(inputs)}
	if inputs[0].Kind != store.InputStart {
		return res, &ReplayError{Code: ErrCodeMissingStart, SessionID: sessionID, Seq: inputs[0].Seq,
			Message: "journal must begin with a start entry"}
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &replayClock{now: inputs[0].At}
	cfg.Timing = game.Timing{}
	m := game.NewMachine(cfg, attest.NewChannel(attest.DefaultConfig(), nil, attest.WithLogger(quiet)),
		game.WithClock(clock),
		game.WithLogger(quiet),
	)

	ctx := context.Background()
	var prev store.Input
	for i, in := range inputs {
		if i > 0 && (in.Seq <= prev.Seq || in.At.Before(prev.At)) {
			return res, &ReplayError{Code: ErrCodeOutOfOrder, SessionID: sessionID, Seq: in.Seq,
				Message: "entries must be strictly ordered by seq and time"}
		}
		prev = in
		clock.now = in.At

		var (
			step game.Step
			ok   bool
		)
		switch in.Kind {
		case store.InputStart:
			if i > 0 {
				return res, rejected(sessionID, in, "second start in one journal")
			}
			_, ok = m.Start(game.Bootstrap{Token: "replay"})
		case store.InputPointer, store.InputKey:
			m.SetActivePosition(in.Position)
			step, ok = m.Input(ctx, journalInput(in))
		case store.InputExit:
			step, ok = m.Exit(ctx)
		default:
			return res, &ReplayError{Code: ErrCodeUnknownKind, SessionID: sessionID, Seq: in.Seq,
				Message: "unknown entry kind " + in.Kind}
		}
		if !ok {
			return res, rejected(sessionID, in, in.Kind+" not accepted in state "+m.State().String())
		}
		if step.Ended {
			res.Ended = true
			res.Aborted = step.Outcome.Aborted
		}
	}

	res.Flagged = m.Flagged()
	if s := m.Session(); s != nil {
		res.Score = s.Score()
		res.Clicks = s.Clicks
	}
	return res, nil
}

// journalInput rebuilds a machine input from a journal entry. Normalized
// offsets are mapped onto a unit viewport.
func journalInput(in store.Input) game.Input {
	if in.Kind == store.InputKey {
		return game.Key()
	}
	if !in.HasPointer {
		return game.Input{Kind: game.InputPointer}
	}
	return game.Pointer(in.X+0.5, in.Y+0.5, 1, 1)
}

func rejected(sessionID string, in store.Input, msg string) *ReplayError {
	return &ReplayError{Code: ErrCodeRejected, SessionID: sessionID, Seq: in.Seq, Message: msg}
}

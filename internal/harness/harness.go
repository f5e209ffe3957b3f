package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/camera"
	"github.com/roach88/stacktower/internal/engine"
	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/tower"
	"github.com/roach88/stacktower/internal/testutil"
)

// Harness executes one scenario against a fresh machine.
type Harness struct {
	machine *game.Machine
	clock   *testutil.ManualClock
	seq     *engine.Sequence
	logger  *slog.Logger

	bootstrap game.Bootstrap
	ended     bool
	aborted   bool
	emitted   bool
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	sink attest.Sink
}

// WithSink hands every emitted GAME_OVER payload to sink. Without one the
// payload is only recorded in the trace.
func WithSink(sink attest.Sink) Option {
	return func(c *runConfig) {
		c.sink = sink
	}
}

// Run executes a scenario and returns the result.
//
// The returned error covers setup failures only; failed expectations are
// reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	h, err := newHarness(scenario, rc.sink)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		times := max(step.Repeat, 1)
		for n := 0; n < times; n++ {
			ev, err := h.execute(ctx, step)
			if err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
			}
			result.AddTrace(ev)
			if len(step.Expect) > 0 && !matchFields(ev.Fields(), step.Expect) {
				result.AddError(fmt.Sprintf("step %d (%s): expected %v, got %v", i, step.Action, step.Expect, ev.Fields()))
			}
		}
	}

	result.Final = h.final()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, sink attest.Sink) (*Harness, error) {
	cfg := game.DefaultConfig()
	profile, err := tower.ProfileByName(scenario.Profile)
	if err != nil {
		return nil, err
	}
	cfg.Profile = profile

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewManualClock(time.Time{})
	m := game.NewMachine(cfg,
		attest.NewChannel(attest.DefaultConfig(), sink, attest.WithLogger(logger)),
		game.WithClock(clock),
		game.WithLogger(logger),
		game.WithCamera(camera.New(cfg.Camera, camera.WithSeed(0))),
	)

	return &Harness{
		machine:   m,
		clock:     clock,
		seq:       engine.NewSequence(),
		logger:    logger,
		bootstrap: game.Bootstrap{Token: scenario.Token, Nonce: scenario.Nonce},
	}, nil
}

// execute applies one step and describes what it did.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{Seq: h.seq.Next(), Action: step.Action, Accepted: true}

	switch step.Action {
	case ActionStart:
		_, ok := h.machine.Start(h.bootstrap)
		ev.Accepted = ok
		if ok {
			h.ended, h.aborted, h.emitted = false, false, false
		}

	case ActionWait, ActionTick:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return TraceEvent{}, err
		}
		h.clock.Advance(d)
		if step.Action == ActionWait {
			d = 0
		}
		h.machine.Tick(d)

	case ActionKey, ActionClick:
		if step.Position != nil {
			h.machine.SetActivePosition(*step.Position)
		}
		in := game.Key()
		if step.Action == ActionClick {
			in = game.Pointer(step.X, step.Y, step.ViewportW, step.ViewportH)
		}
		s, ok := h.machine.Input(ctx, in)
		ev.Accepted = ok
		if ok {
			ev.Input = true
			ev.Placed = s.Placed
			if s.Placed {
				ev.Perfect = s.Cut.Perfect
				ev.OverlapMilli = milli(s.Cut.Overlap)
			}
			for _, d := range s.Triggered {
				ev.Triggered = append(ev.Triggered, string(d))
			}
			h.observe(s)
		}

	case ActionExit:
		s, ok := h.machine.Exit(ctx)
		ev.Accepted = ok
		if ok {
			h.observe(s)
		}

	default:
		return TraceEvent{}, fmt.Errorf("unknown action %q", step.Action)
	}

	snap := h.machine.Snapshot()
	ev.State = snap.State.String()
	ev.Score = snap.Score
	ev.Ended = h.ended
	ev.Aborted = h.aborted
	ev.Emitted = h.emitted
	return ev, nil
}

func (h *Harness) observe(s game.Step) {
	if !s.Ended {
		return
	}
	h.ended = true
	h.aborted = s.Outcome.Aborted
	h.emitted = s.Emitted
	h.logger.Debug("scenario session ended", "score", s.Score, "emitted", s.Emitted)
}

func (h *Harness) final() FinalState {
	snap := h.machine.Snapshot()
	return FinalState{
		State:   snap.State.String(),
		Score:   snap.Score,
		Clicks:  snap.Clicks,
		Combo:   snap.Combo,
		Hue:     snap.Hue,
		Layers:  len(snap.Layers),
		Flagged: h.machine.Flagged(),
		Ended:   h.ended,
		Aborted: h.aborted,
		Emitted: h.emitted,
	}
}

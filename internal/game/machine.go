// Package game runs one tower session at a time.
//
// Machine is the only owner of the Session, the Stack and the sentinel
// state. Callers drive it with Start, Input, Exit and Tick from a single
// goroutine (see engine.Engine); none of its methods block.
//
// Lifecycle:
//
//	ReadyToStart -Start-> Animating -entry delay-> Playing
//	Playing -miss|Exit-> GameOver -tick-> Animating -exit delay-> ReadyToStart
//
// Input outside Playing is ignored and reported as not accepted. It is never
// an error.
package game

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/camera"
	"github.com/roach88/stacktower/internal/geometry"
	"github.com/roach88/stacktower/internal/sentinel"
	"github.com/roach88/stacktower/internal/tower"
)

// Config aggregates the tuning of every component the machine owns.
type Config struct {
	Profile   tower.Profile      `json:"profile"`
	Tolerance geometry.Tolerance `json:"tolerance"`
	Sentinel  sentinel.Config    `json:"sentinel"`
	Timing    Timing             `json:"timing"`
	Camera    camera.Config      `json:"camera"`
}

// DefaultConfig returns the "pro" tower with standard thresholds.
func DefaultConfig() Config {
	return Config{
		Profile:   tower.Pro(),
		Tolerance: geometry.DefaultTolerance(),
		Sentinel:  sentinel.DefaultConfig(),
		Timing:    DefaultTiming(),
		Camera:    camera.DefaultConfig(),
	}
}

// Step reports the effect of one accepted Input or Exit.
type Step struct {
	// Placed is true when the active layer was cut and a new one spawned.
	Placed bool
	Cut    geometry.Cut
	Score  int

	// Triggered lists sentinel detectors that fired on this input.
	Triggered []sentinel.Detector

	// Ended is true when this step finished the session.
	Ended   bool
	Outcome Outcome

	// Emitted is true when the score passed the gate and reached the sink.
	Emitted bool
	Payload attest.Payload
}

// Snapshot is a read-only view for renderers.
type Snapshot struct {
	State  State            `json:"state"`
	Score  int              `json:"score"`
	Combo  int              `json:"combo"`
	Clicks int              `json:"clicks"`
	Hue    int              `json:"hue"`
	Layers []tower.Layer    `json:"layers,omitempty"`
	Debris []tower.Fragment `json:"debris,omitempty"`
	Camera camera.View      `json:"camera"`
}

// Machine is the game state machine. Not safe for concurrent use.
type Machine struct {
	cfg      Config
	channel  *attest.Channel
	clock    Clock
	logger   *slog.Logger
	sentinel *sentinel.Sentinel
	camera   *camera.Follower
	debris   tower.Debris

	state    State
	entering bool // which animation is running
	deadline time.Time
	session  *Session
	view     camera.View
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the wall clock used for transition timers and durations.
func WithClock(c Clock) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithCamera replaces the camera follower, e.g. with a fixed jitter seed.
func WithCamera(f *camera.Follower) Option {
	return func(m *Machine) {
		m.camera = f
	}
}

// NewMachine creates a machine in ReadyToStart that reports scores through ch.
func NewMachine(cfg Config, ch *attest.Channel, opts ...Option) *Machine {
	m := &Machine{
		cfg:      cfg,
		channel:  ch,
		clock:    systemClock{},
		logger:   slog.Default(),
		sentinel: sentinel.New(cfg.Sentinel),
		state:    StateReadyToStart,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.camera == nil {
		m.camera = camera.New(cfg.Camera)
	}
	return m
}

// Config returns the machine's tuning.
func (m *Machine) Config() Config {
	return m.cfg
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.state
}

// Session returns the live session, or nil in ReadyToStart.
func (m *Machine) Session() *Session {
	return m.session
}

// Flagged reports whether the sentinel has flagged the live session.
func (m *Machine) Flagged() bool {
	return m.sentinel.Flagged()
}

// SentinelState returns a copy of the detector state.
func (m *Machine) SentinelState() sentinel.State {
	return m.sentinel.State()
}

// Start begins a session from ReadyToStart.
//
// The returned channel receives exactly one Outcome and is then closed.
// Returns false, and no channel, when a session is already running.
func (m *Machine) Start(b Bootstrap) (<-chan Outcome, bool) {
	if m.state != StateReadyToStart {
		return nil, false
	}

	m.session = newSession(b, m.cfg.Profile)
	m.sentinel.Reset()
	m.debris.Reset()
	m.camera.Reset()

	now := m.clock.Now()
	m.logger.Info("session started", "profile", m.cfg.Profile.Name, "has_token", b.Token != "")

	if m.cfg.Timing.Entry <= 0 {
		m.beginPlay(now)
	} else {
		m.state = StateAnimating
		m.entering = true
		m.deadline = now.Add(m.cfg.Timing.Entry)
	}
	return m.session.outcome, true
}

// Input applies one placement trigger.
//
// Pointer input is recorded by the sentinel before the cut; keyboard input
// and pointer input without a viewport skip the sentinel but still place.
// Returns false when not Playing.
func (m *Machine) Input(ctx context.Context, in Input) (Step, bool) {
	if m.state != StatePlaying {
		return Step{}, false
	}
	if in.Kind != InputPointer && in.Kind != InputKey {
		return Step{}, false
	}

	s := m.session
	stack := s.stack
	var step Step

	if in.Kind == InputPointer {
		s.Clicks++
		// Whole milliseconds, as the input journal stores them, so a replay
		// feeds the sentinel identical timestamps.
		at := m.clock.Now().Truncate(time.Millisecond)
		sample, err := sentinel.NormalizeSample(at, in.ClientX, in.ClientY, in.ViewportW, in.ViewportH)
		if err == nil {
			step.Triggered = m.sentinel.Record(sample, stack.Score())
			if len(step.Triggered) > 0 {
				m.logger.Debug("sentinel triggered", "detectors", step.Triggered, "score", stack.Score())
			}
		}
	}

	cut, ok := stack.Place(m.cfg.Tolerance)
	if !ok {
		return m.end(ctx, step, false), true
	}

	step.Placed = true
	step.Cut = cut
	step.Score = stack.Score()

	if cut.Perfect {
		s.Combo++
	} else {
		s.Combo = 0
	}
	s.advanceHue()

	if cut.HasDebris {
		m.debris.Spawn(cut.Debris, cut.Layer.Axis, cut.Delta)
	}

	m.logger.Debug("layer placed",
		"score", step.Score,
		"overlap", cut.Overlap,
		"perfect", cut.Perfect,
		"combo", s.Combo)
	return step, true
}

// Exit ends the session as if the player missed, with the score frozen.
//
// Accepted during the entry animation and while Playing. A second Exit, or an
// Exit after a miss, is a no-op.
func (m *Machine) Exit(ctx context.Context) (Step, bool) {
	if m.session == nil || m.session.ended {
		return Step{}, false
	}
	if m.state != StatePlaying && m.state != StateAnimating {
		return Step{}, false
	}
	return m.end(ctx, Step{}, true), true
}

// Tick advances motion by dt and fires any due transition.
func (m *Machine) Tick(dt time.Duration) {
	now := m.clock.Now()

	switch m.state {
	case StateAnimating:
		if now.Before(m.deadline) {
			break
		}
		if m.entering {
			m.beginPlay(now)
		} else {
			m.reset()
		}
	case StatePlaying:
		m.session.stack.Advance(dt)
	case StateGameOver:
		m.state = StateAnimating
		m.entering = false
		m.deadline = now.Add(m.cfg.Timing.Exit)
	}

	m.debris.Advance(dt)
	m.view = m.camera.Update(m.focusY(), dt)
}

// ActivePosition returns the along-axis position of the moving layer.
func (m *Machine) ActivePosition() float64 {
	if m.session == nil {
		return 0
	}
	top := m.session.stack.Active()
	return top.Position.Along(top.Axis)
}

// SetActivePosition moves the active layer to pos on its axis. Only
// meaningful while Playing; used to re-apply journaled input.
func (m *Machine) SetActivePosition(pos float64) {
	if m.state != StatePlaying {
		return
	}
	m.session.stack.SetActivePosition(pos)
}

// Snapshot returns the current render state.
func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{
		State:  m.state,
		Debris: m.debris.Pieces(),
		Camera: m.view,
	}
	if s := m.session; s != nil {
		snap.Score = s.Score()
		snap.Combo = s.Combo
		snap.Clicks = s.Clicks
		snap.Hue = s.Hue
		snap.Layers = s.stack.Layers()
	}
	return snap
}

func (m *Machine) beginPlay(now time.Time) {
	m.state = StatePlaying
	m.entering = false
	m.session.StartedAt = now
}

// end freezes the score, runs the gate and delivers the outcome.
func (m *Machine) end(ctx context.Context, step Step, aborted bool) Step {
	s := m.session
	now := m.clock.Now()

	score := s.stack.Score()
	if top, ok := s.stack.Drop(); ok {
		m.debris.Spawn(top.Box, top.Axis, math.Copysign(1, top.Position.Along(top.Axis)))
	}

	var duration time.Duration
	if !s.StartedAt.IsZero() {
		duration = now.Sub(s.StartedAt)
	}

	payload, err := m.channel.Emit(ctx, attest.Summary{
		Token:    s.Token,
		Nonce:    s.Nonce,
		Score:    score,
		Clicks:   s.Clicks,
		Duration: duration,
		Flagged:  m.sentinel.Flagged(),
	})
	if err == nil {
		step.Emitted = true
		step.Payload = payload
	}

	step.Ended = true
	step.Score = score
	step.Outcome = Outcome{Score: score, Aborted: aborted}
	s.finish(step.Outcome)

	m.state = StateGameOver
	m.logger.Info("session ended",
		"score", score,
		"aborted", aborted,
		"clicks", s.Clicks,
		"duration_ms", duration.Milliseconds())
	return step
}

// reset discards the session and returns to ReadyToStart.
func (m *Machine) reset() {
	m.session = nil
	m.sentinel.Reset()
	m.state = StateReadyToStart
	m.entering = false
	m.deadline = time.Time{}
}

func (m *Machine) focusY() float64 {
	if m.session == nil {
		return 0
	}
	return m.session.stack.Height()
}

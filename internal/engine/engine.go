package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/sentinel"
	"github.com/roach88/stacktower/internal/store"
)

// DefaultEndingBuffer is the capacity of the Endings channel.
const DefaultEndingBuffer = 8

// Journal records accepted input. Implemented by *store.Store.
type Journal interface {
	AppendInput(ctx context.Context, in store.Input) error
}

// Ending is emitted once per session when the machine delivers its outcome.
type Ending struct {
	SessionID string
	Outcome   game.Outcome
	Clicks    int
	Flagged   bool

	// Emitted is true when the score passed the gate; Payload is then the
	// message that was delivered.
	Emitted bool
	Payload attest.Payload
}

// Engine is the single-writer loop around one game.Machine.
//
// Thread-safety model:
//   - Enqueue, Start, Input, Exit, Tick, Snapshot: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Every Machine method is called from Run, so inputs apply strictly in
// arrival order and no partially applied input is ever visible.
type Engine struct {
	machine *game.Machine
	journal Journal
	seq     *Sequence
	clock   game.Clock
	logger  *slog.Logger
	inbox   *inbox
	endings chan Ending

	tickInterval time.Duration

	sessionID string // owned by Run

	mu   sync.RWMutex
	snap game.Snapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every accepted input.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithClock sets the wall clock used to stamp journaled input. It should be
// the same clock the machine was built with.
func WithClock(c game.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTickInterval makes Run tick the machine on a timer.
//
// Zero (the default) means ticks only arrive through Tick.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.tickInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSequence resumes journal numbering, e.g. after a restart.
func WithSequence(s *Sequence) Option {
	return func(e *Engine) {
		e.seq = s
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// New creates an engine around m.
func New(m *game.Machine, opts ...Option) *Engine {
	e := &Engine{
		machine: m,
		seq:     NewSequence(),
		clock:   wallClock{},
		logger:  slog.Default(),
		inbox:   newInbox(),
		endings: make(chan Ending, DefaultEndingBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.snap = m.Snapshot()
	return e
}

// Enqueue submits an event. Returns false once the engine has stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.inbox.push(ev)
}

// Start requests a new session identified by sessionID.
func (e *Engine) Start(sessionID string, b game.Bootstrap) bool {
	return e.Enqueue(Event{Type: EventStart, SessionID: sessionID, Bootstrap: b})
}

// Input requests a placement.
func (e *Engine) Input(in game.Input) bool {
	return e.Enqueue(Event{Type: EventInput, Input: in})
}

// Exit requests a player exit.
func (e *Engine) Exit() bool {
	return e.Enqueue(Event{Type: EventExit})
}

// Tick requests a motion step of dt.
func (e *Engine) Tick(dt time.Duration) bool {
	return e.Enqueue(Event{Type: EventTick, Dt: dt})
}

// Endings delivers one Ending per finished session to a single consumer.
// When more than DefaultEndingBuffer endings are pending, Run waits for the
// consumer.
func (e *Engine) Endings() <-chan Ending {
	return e.endings
}

// Snapshot returns the state as of the last processed event.
func (e *Engine) Snapshot() game.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Run processes events until ctx is cancelled or Stop is called.
//
// ERROR HANDLING: a failed journal write is logged with the event and
// processing continues. The game itself never fails.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "tick_interval", e.tickInterval)

	var tick <-chan time.Time
	if e.tickInterval > 0 {
		t := time.NewTicker(e.tickInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.inbox.shutdown()
			return ctx.Err()

		case <-tick:
			_ = e.process(ctx, Event{Type: EventTick, Dt: e.tickInterval})

		case <-e.inbox.wake():
			batch, shut := e.inbox.drain()
			for _, ev := range batch {
				if err := e.process(ctx, ev); err != nil {
					e.logger.Error("event processing failed",
						"error", err,
						"event", ev.Type.String(),
						"session", e.sessionID)
				}
			}
			if shut {
				e.logger.Info("engine stopping: inbox closed")
				return nil
			}
		}
	}
}

// Stop refuses further events; Run returns after processing those already queued.
func (e *Engine) Stop() {
	e.inbox.shutdown()
}

// process applies one event. Called only from Run.
func (e *Engine) process(ctx context.Context, ev Event) error {
	defer e.publish()

	switch ev.Type {
	case EventStart:
		return e.start(ctx, ev)
	case EventInput:
		return e.input(ctx, ev.Input)
	case EventExit:
		step, ok := e.machine.Exit(ctx)
		if !ok {
			return nil
		}
		err := e.record(ctx, store.Input{Kind: store.InputExit})
		e.finish(ctx, step)
		return err
	case EventTick:
		e.machine.Tick(ev.Dt)
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

func (e *Engine) start(ctx context.Context, ev Event) error {
	if _, ok := e.machine.Start(ev.Bootstrap); !ok {
		e.logger.Debug("start ignored", "session", ev.SessionID, "state", e.machine.State().String())
		return nil
	}
	e.sessionID = ev.SessionID
	return e.record(ctx, store.Input{Kind: store.InputStart})
}

func (e *Engine) input(ctx context.Context, in game.Input) error {
	pos := e.machine.ActivePosition()
	step, ok := e.machine.Input(ctx, in)
	if !ok {
		return nil
	}

	rec := store.Input{Kind: store.InputKey, Position: pos}
	if in.Kind == game.InputPointer {
		rec.Kind = store.InputPointer
		if s, err := sentinel.NormalizeSample(time.Time{}, in.ClientX, in.ClientY, in.ViewportW, in.ViewportH); err == nil {
			rec.HasPointer = true
			rec.X = s.X
			rec.Y = s.Y
		}
	}
	err := e.record(ctx, rec)
	if step.Ended {
		e.finish(ctx, step)
	}
	return err
}

// record journals in for the current session.
func (e *Engine) record(ctx context.Context, in store.Input) error {
	if e.journal == nil || e.sessionID == "" {
		return nil
	}
	in.SessionID = e.sessionID
	in.Seq = e.seq.Next()
	in.At = e.clock.Now()
	if err := e.journal.AppendInput(ctx, in); err != nil {
		return fmt.Errorf("journal %s: %w", in.Kind, err)
	}
	return nil
}

// finish publishes the session's ending. Once the buffer is full it waits
// for the reader, so no ending is lost while ctx is live.
func (e *Engine) finish(ctx context.Context, step game.Step) {
	end := Ending{
		SessionID: e.sessionID,
		Outcome:   step.Outcome,
		Flagged:   e.machine.Flagged(),
		Emitted:   step.Emitted,
		Payload:   step.Payload,
	}
	if s := e.machine.Session(); s != nil {
		end.Clicks = s.Clicks
	}

	select {
	case e.endings <- end:
	case <-ctx.Done():
		e.logger.Warn("ending undelivered: engine stopping", "session", e.sessionID)
	}
}

func (e *Engine) publish() {
	snap := e.machine.Snapshot()
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
}

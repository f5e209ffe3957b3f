package engine

import (
	"sync"
	"time"

	"github.com/roach88/stacktower/internal/game"
)

// EventType distinguishes event kinds.
type EventType int

const (
	// EventStart begins a session.
	EventStart EventType = iota + 1
	// EventInput is a pointer or keyboard placement.
	EventInput
	// EventExit is a player-initiated exit.
	EventExit
	// EventTick advances motion and timers.
	EventTick
)

var eventNames = map[EventType]string{
	EventStart: "start",
	EventInput: "input",
	EventExit:  "exit",
	EventTick:  "tick",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is one unit of work for the Run loop. Only the fields of its Type
// are set: SessionID and Bootstrap for a start, Input for an input, Dt for
// a tick.
type Event struct {
	Type EventType

	SessionID string
	Bootstrap game.Bootstrap
	Input     game.Input
	Dt        time.Duration
}

// inbox collects events from any goroutine for the single Run loop, which
// takes them in batches. Pushing never blocks.
type inbox struct {
	mu      sync.Mutex
	pending []Event
	shut    bool
	ready   chan struct{}
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

// push queues ev and reports whether the inbox still accepts events.
func (b *inbox) push(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shut {
		return false
	}
	b.pending = append(b.pending, ev)
	b.poke()
	return true
}

// poke leaves at most one wakeup outstanding. Callers hold mu.
func (b *inbox) poke() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// drain hands over everything queued so far, oldest first. shut reports
// that nothing more will arrive.
func (b *inbox) drain() (batch []Event, shut bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch, b.pending = b.pending, nil
	return batch, b.shut
}

// wake fires after a push or shutdown.
func (b *inbox) wake() <-chan struct{} {
	return b.ready
}

// shutdown refuses later pushes. Repeated calls are no-ops.
func (b *inbox) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.shut {
		b.shut = true
		b.poke()
	}
}

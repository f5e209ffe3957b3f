package game

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// State is a phase of the game machine.
type State int

const (
	// StateReadyToStart has no session and accepts a single start trigger.
	StateReadyToStart State = iota

	// StateAnimating is a fixed-length entry or exit transition. Input is
	// ignored.
	StateAnimating

	// StatePlaying accepts placement input.
	StatePlaying

	// StateGameOver is the terminal frame of a session. The outcome has
	// already been delivered; the next tick starts the exit animation.
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateReadyToStart:
		return "ready"
	case StateAnimating:
		return "animating"
	case StatePlaying:
		return "playing"
	case StateGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Default transition lengths.
const (
	DefaultEntryDelay = 600 * time.Millisecond
	DefaultExitDelay  = 800 * time.Millisecond
)

// Timing holds the animate-then-continue delays.
type Timing struct {
	Entry time.Duration `json:"entry"`
	Exit  time.Duration `json:"exit"`
}

// DefaultTiming returns the standard transition delays.
func DefaultTiming() Timing {
	return Timing{Entry: DefaultEntryDelay, Exit: DefaultExitDelay}
}

// Validate checks the delays.
func (t Timing) Validate() error {
	if t.Entry < 0 || t.Exit < 0 {
		return fmt.Errorf("transition delays must be non-negative, got entry=%s exit=%s", t.Entry, t.Exit)
	}
	return nil
}

// Clock reads host wall-clock time. Only transition timers and the session
// duration depend on it; motion is driven by Tick.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Bootstrap carries the credentials handed to a session at start.
type Bootstrap struct {
	// Token is required for a score to ever leave the machine.
	Token string `json:"token"`

	// Nonce is optional and echoed when present.
	Nonce string `json:"nonce,omitempty"`
}

// BootstrapFromQuery reads the token and nonce query parameters.
func BootstrapFromQuery(q url.Values) Bootstrap {
	return Bootstrap{
		Token: strings.TrimSpace(q.Get("token")),
		Nonce: strings.TrimSpace(q.Get("nonce")),
	}
}

// Outcome is the single result delivered to the host per session.
type Outcome struct {
	Score int `json:"score"`

	// Aborted is true when the player exited instead of missing.
	Aborted bool `json:"aborted,omitempty"`
}

// InputKind distinguishes placement triggers.
type InputKind int

const (
	// InputPointer is a mouse or touch press with coordinates.
	InputPointer InputKind = iota + 1

	// InputKey is a keyboard confirm. It carries no coordinates and is not
	// recorded by the sentinel.
	InputKey
)

func (k InputKind) String() string {
	switch k {
	case InputPointer:
		return "pointer"
	case InputKey:
		return "key"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// Input is one placement trigger.
type Input struct {
	Kind InputKind `json:"kind"`

	// Pointer position and viewport size in pixels. Ignored for keys.
	ClientX   float64 `json:"client_x,omitempty"`
	ClientY   float64 `json:"client_y,omitempty"`
	ViewportW float64 `json:"viewport_w,omitempty"`
	ViewportH float64 `json:"viewport_h,omitempty"`
}

// Pointer builds a pointer input.
func Pointer(x, y, viewportW, viewportH float64) Input {
	return Input{Kind: InputPointer, ClientX: x, ClientY: y, ViewportW: viewportW, ViewportH: viewportH}
}

// Key builds a keyboard input.
func Key() Input {
	return Input{Kind: InputKey}
}

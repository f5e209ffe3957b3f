package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stacktower/internal/tower"
)

// Scenario scripts one play session and states what it must produce.
// Name doubles as the golden file name. An empty Profile plays "pro", and
// an empty Token plays an untrusted session whose score is never emitted.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Profile     string      `yaml:"profile,omitempty"`
	Token       string      `yaml:"token,omitempty"`
	Nonce       string      `yaml:"nonce,omitempty"`
	Steps       []Step      `yaml:"steps"`
	Assertions  []Assertion `yaml:"assertions"`
}

// Step is one scripted action.
type Step struct {
	// Action is start, wait, tick, key, click or exit.
	Action string `yaml:"action"`

	// Duration is a Go duration string for wait and tick.
	Duration string `yaml:"duration,omitempty"`

	// Position pins the active layer before a key or click.
	Position *float64 `yaml:"position,omitempty"`

	// Pointer coordinates for click.
	X         float64 `yaml:"x,omitempty"`
	Y         float64 `yaml:"y,omitempty"`
	ViewportW float64 `yaml:"viewport_w,omitempty"`
	ViewportH float64 `yaml:"viewport_h,omitempty"`

	// Repeat runs the step this many times. Zero means once.
	Repeat int `yaml:"repeat,omitempty"`

	// Expect is a subset of the fields this step's trace event must carry.
	// With Repeat it applies to every repetition.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionStart = "start"
	ActionWait  = "wait"
	ActionTick  = "tick"
	ActionKey   = "key"
	ActionClick = "click"
	ActionExit  = "exit"
)

// Assertion is checked once every step has run. Which fields matter
// depends on Type:
//
//	trace_contains  Action, optional Fields subset
//	trace_count     Action, Count
//	trace_order     Actions as a subsequence of the trace
//	final_state     Expect subset of the final state
type Assertion struct {
	Type    string         `yaml:"type"`
	Action  string         `yaml:"action,omitempty"`
	Fields  map[string]any `yaml:"fields,omitempty"`
	Actions []string       `yaml:"actions,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads a scenario file. See ParseScenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML. Unknown keys are an error, and every
// problem Validate finds is reported at once.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return &sc, nil
}

// Validate checks that the scenario can be run.
func (s *Scenario) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.Name == "" {
		fail("missing name")
	}
	if s.Description == "" {
		fail("missing description")
	}
	if _, err := tower.ProfileByName(s.Profile); err != nil {
		errs = append(errs, err)
	}
	if len(s.Steps) == 0 {
		fail("no steps")
	}
	if len(s.Assertions) == 0 {
		fail("no assertions")
	}
	for i, st := range s.Steps {
		if err := st.check(); err != nil {
			fail("step %d: %w", i+1, err)
		}
	}
	for i, a := range s.Assertions {
		if err := a.check(); err != nil {
			fail("assertion %d: %w", i+1, err)
		}
	}
	return errors.Join(errs...)
}

func (st Step) check() error {
	if st.Repeat < 0 {
		return fmt.Errorf("negative repeat %d", st.Repeat)
	}
	switch st.Action {
	case ActionStart, ActionKey, ActionClick, ActionExit:
		return nil
	case ActionWait, ActionTick:
		d, err := time.ParseDuration(st.Duration)
		switch {
		case err != nil:
			return fmt.Errorf("%s: bad duration %q", st.Action, st.Duration)
		case d < 0:
			return fmt.Errorf("%s: negative duration %s", st.Action, d)
		}
		return nil
	case "":
		return errors.New("missing action")
	}
	return fmt.Errorf("unknown action %q", st.Action)
}

func (a Assertion) check() error {
	var missing string
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			missing = "action"
		}
	case AssertTraceCount:
		if a.Action == "" {
			missing = "action"
		} else if a.Count < 0 {
			return fmt.Errorf("%s: negative count %d", a.Type, a.Count)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			missing = "actions"
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			missing = "expect"
		}
	case "":
		return errors.New("missing type")
	default:
		return fmt.Errorf("unknown type %q", a.Type)
	}
	if missing != "" {
		return fmt.Errorf("%s: missing %s", a.Type, missing)
	}
	return nil
}

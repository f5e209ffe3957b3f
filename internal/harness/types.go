package harness

import "math"

// TraceEvent is the observable effect of one scenario step.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Action   string `json:"action"`
	State    string `json:"state"`
	Accepted bool   `json:"accepted"`
	Score    int    `json:"score"`

	// Input is true for key and click steps the machine accepted.
	Input        bool     `json:"-"`
	Placed       bool     `json:"placed,omitempty"`
	Perfect      bool     `json:"perfect,omitempty"`
	OverlapMilli int64    `json:"overlap_milli,omitempty"`
	Triggered    []string `json:"triggered,omitempty"`

	Ended   bool `json:"ended,omitempty"`
	Aborted bool `json:"aborted,omitempty"`
	Emitted bool `json:"emitted,omitempty"`
}

// Fields returns the event as a map with canonical-JSON-safe values.
// Input-only fields appear only on accepted input, end fields only once the
// session has ended.
func (e TraceEvent) Fields() map[string]any {
	m := map[string]any{
		"seq":      e.Seq,
		"action":   e.Action,
		"state":    e.State,
		"accepted": e.Accepted,
		"score":    e.Score,
	}
	if e.Input {
		m["placed"] = e.Placed
		if e.Placed {
			m["perfect"] = e.Perfect
			m["overlap_milli"] = e.OverlapMilli
		}
		if len(e.Triggered) > 0 {
			triggered := make([]any, len(e.Triggered))
			for i, d := range e.Triggered {
				triggered[i] = d
			}
			m["triggered"] = triggered
		}
	}
	if e.Ended {
		m["ended"] = true
		m["aborted"] = e.Aborted
		m["emitted"] = e.Emitted
	}
	return m
}

// FinalState is the machine as the scenario left it.
type FinalState struct {
	State   string `json:"state"`
	Score   int    `json:"score"`
	Clicks  int    `json:"clicks"`
	Combo   int    `json:"combo"`
	Hue     int    `json:"hue"`
	Layers  int    `json:"layers"`
	Flagged bool   `json:"flagged"`
	Ended   bool   `json:"ended"`
	Aborted bool   `json:"aborted"`
	Emitted bool   `json:"emitted"`
}

// Fields returns the final state as a map for subset matching.
func (f FinalState) Fields() map[string]any {
	return map[string]any{
		"state":   f.State,
		"score":   f.Score,
		"clicks":  f.Clicks,
		"combo":   f.Combo,
		"hue":     f.Hue,
		"layers":  f.Layers,
		"flagged": f.Flagged,
		"ended":   f.Ended,
		"aborted": f.Aborted,
		"emitted": f.Emitted,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`
	Final FinalState   `json:"final"`

	// Errors is empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

func milli(v float64) int64 {
	return int64(math.Round(v * 1000))
}

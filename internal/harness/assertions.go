package harness

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// AssertionError describes one failed assertion. Trace is attached for the
// trace checks so the failure can be read without rerunning.
type AssertionError struct {
	Type  string
	Want  string
	Got   string
	Trace []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed\n  want %s\n  got  %s\n", e.Type, e.Want, e.Got)
	if len(e.Trace) > 0 {
		b.WriteString("trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&b, "  %3d %-6s %-10s score=%d accepted=%t\n",
				ev.Seq, ev.Action, ev.State, ev.Score, ev.Accepted)
		}
	}
	return b.String()
}

type checker func(r *Result, a Assertion) error

var checkers = map[string]checker{
	AssertTraceContains: func(r *Result, a Assertion) error { return assertTraceContains(r.Trace, a) },
	AssertTraceOrder:    func(r *Result, a Assertion) error { return assertTraceOrder(r.Trace, a) },
	AssertTraceCount:    func(r *Result, a Assertion) error { return assertTraceCount(r.Trace, a) },
	AssertFinalState:    func(r *Result, a Assertion) error { return assertFinalState(r.Final, a) },
}

// EvaluateAssertions runs every assertion against result and returns one
// message per failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		check, ok := checkers[a.Type]
		if !ok {
			failures = append(failures, fmt.Sprintf("assertion %d: unknown type %q", i+1, a.Type))
			continue
		}
		if err := check(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	i := slices.IndexFunc(trace, func(ev TraceEvent) bool {
		return ev.Action == a.Action && matchFields(ev.Fields(), a.Fields)
	})
	if i >= 0 {
		return nil
	}
	return &AssertionError{
		Type:  AssertTraceContains,
		Want:  fmt.Sprintf("a %s event with %s", a.Action, formatFields(a.Fields)),
		Got:   "no such event",
		Trace: trace,
	}
}

// assertTraceOrder accepts any trace that holds a.Actions as a
// subsequence.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Actions) && ev.Action == a.Actions[next] {
			next++
		}
	}
	if next == len(a.Actions) {
		return nil
	}
	return &AssertionError{
		Type:  AssertTraceOrder,
		Want:  strings.Join(a.Actions, " then "),
		Got:   fmt.Sprintf("no %s after %s", a.Actions[next], strings.Join(a.Actions[:next], " then ")),
		Trace: trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Action == a.Action {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:  AssertTraceCount,
		Want:  fmt.Sprintf("%d × %s", a.Count, a.Action),
		Got:   fmt.Sprintf("%d", n),
		Trace: trace,
	}
}

func assertFinalState(final FinalState, a Assertion) error {
	have := final.Fields()
	for _, key := range slices.Sorted(maps.Keys(a.Expect)) {
		got, ok := have[key]
		switch {
		case !ok:
			return &AssertionError{
				Type: AssertFinalState,
				Want: key,
				Got:  "no such field; have " + strings.Join(slices.Sorted(maps.Keys(have)), ", "),
			}
		case !valuesEqual(got, a.Expect[key]):
			return &AssertionError{
				Type: AssertFinalState,
				Want: fmt.Sprintf("%s = %v", key, a.Expect[key]),
				Got:  fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

// matchFields reports whether actual holds every key of expected with an
// equal value.
func matchFields(actual, expected map[string]any) bool {
	for key, want := range expected {
		if got, ok := actual[key]; !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares numbers by value: YAML yields int or float64 where
// trace fields are int64.
func valuesEqual(actual, expected any) bool {
	if a, ok := asInt(actual); ok {
		e, ok := asInt(expected)
		return ok && a == e
	}
	return reflect.DeepEqual(actual, expected)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), n == float64(int64(n))
	}
	return 0, false
}

func formatFields(m map[string]any) string {
	if len(m) == 0 {
		return "any fields"
	}
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}

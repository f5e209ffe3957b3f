package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Action: ActionStart, State: "animating", Accepted: true},
		{Seq: 2, Action: ActionWait, State: "playing", Accepted: true},
		{Seq: 3, Action: ActionKey, State: "playing", Accepted: true, Score: 1, Input: true, Placed: true, Perfect: true, OverlapMilli: 4500},
		{Seq: 4, Action: ActionKey, State: "game_over", Accepted: true, Score: 1, Input: true, Ended: true, Emitted: true},
		{Seq: 5, Action: ActionKey, State: "game_over", Score: 1, Ended: true, Emitted: true},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: ActionKey, Fields: map[string]any{"perfect": true, "overlap_milli": 4500}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: ActionKey, Fields: map[string]any{"accepted": false}}))

	err := assertTraceContains(trace, Assertion{Action: ActionKey, Fields: map[string]any{"score": 2}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "trace:\n")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionStart, ActionKey}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionKey, ActionStart}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionStart, ActionKey, ActionKey}}), "repeats count")
	err := assertTraceOrder(trace, Assertion{Actions: []string{ActionStart, ActionExit}})
	assert.ErrorContains(t, err, "no exit after start")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionKey, Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionExit, Count: 0}))
	assert.ErrorContains(t, assertTraceCount(trace, Assertion{Action: ActionKey, Count: 2}), "trace_count")
}

func TestAssertFinalState(t *testing.T) {
	final := FinalState{State: "ready", Score: 4, Hue: 226, Ended: true}
	assert.NoError(t, assertFinalState(final, Assertion{Expect: map[string]any{"state": "ready", "score": 4, "hue": int64(226)}}))
	assert.Error(t, assertFinalState(final, Assertion{Expect: map[string]any{"emitted": true}}))
	assert.Error(t, assertFinalState(final, Assertion{Expect: map[string]any{"speed": 1}}), "unknown key never matches")
}

func TestMatchFields_NumericNormalization(t *testing.T) {
	actual := map[string]any{"score": 3, "seq": int64(7), "state": "playing"}
	assert.True(t, matchFields(actual, map[string]any{"score": int64(3), "seq": 7}))
	assert.True(t, matchFields(actual, map[string]any{"score": 3.0}))
	assert.False(t, matchFields(actual, map[string]any{"score": 3.5}))
	assert.False(t, matchFields(actual, map[string]any{"state": "ready"}))
	assert.True(t, matchFields(actual, nil))
}

func TestEvaluateAssertions(t *testing.T) {
	res := NewResult()
	for _, ev := range sampleTrace() {
		res.AddTrace(ev)
	}
	res.Final = FinalState{State: "game_over", Score: 1}

	errs := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceOrder, Actions: []string{ActionStart, ActionWait}},
		{Type: AssertFinalState, Expect: map[string]any{"score": 2}},
		{Type: "vibes"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "final_state")
	assert.Contains(t, errs[1], `assertion 3: unknown type "vibes"`)
}

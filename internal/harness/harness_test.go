package harness

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stacktower/internal/attest"
)

const scenarioDir = "../../testdata/scenarios"

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Fixtures(t *testing.T) {
	paths, err := FindScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			res, err := Run(s)
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
		})
	}
}

func TestRun_CutThenMiss(t *testing.T) {
	res, err := Run(loadFixture(t, "cut_then_miss"))
	require.NoError(t, err)
	require.True(t, res.Pass, res.Errors)
	require.Len(t, res.Trace, 5)

	cut := res.Trace[2]
	assert.True(t, cut.Placed)
	assert.Equal(t, int64(2500), cut.OverlapMilli)
	assert.Equal(t, 1, cut.Score)

	assert.Equal(t, FinalState{
		State:   "game_over",
		Score:   1,
		Hue:     214,
		Layers:  2,
		Ended:   true,
		Emitted: true,
	}, res.Final)
}

func TestRun_DeliversToSink(t *testing.T) {
	var got []attest.Payload
	sink := attest.SinkFunc(func(_ context.Context, p attest.Payload) error {
		got = append(got, p)
		return nil
	})

	res, err := Run(loadFixture(t, "cut_then_miss"), WithSink(sink))
	require.NoError(t, err)
	require.True(t, res.Pass, res.Errors)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Score)
	assert.Equal(t, "tok-cut", got[0].Token)
	assert.Equal(t, int64(4000), got[0].DurationMs, "timed from the end of the entry animation")
}

func TestRun_FailedDeliveryIsNotEmitted(t *testing.T) {
	sink := attest.SinkFunc(func(context.Context, attest.Payload) error {
		return errors.New("host unreachable")
	})

	res, err := Run(loadFixture(t, "cut_then_miss"), WithSink(sink))
	require.NoError(t, err)
	assert.True(t, res.Final.Ended)
	assert.False(t, res.Final.Emitted)
	assert.False(t, res.Pass, "the fixture expects an emitted score")
}

func TestRun_IdenticalClicksTriggerSentinel(t *testing.T) {
	res, err := Run(loadFixture(t, "identical_clicks"))
	require.NoError(t, err)
	require.True(t, res.Pass, res.Errors)

	var triggered bool
	for _, ev := range res.Trace {
		if ev.Action == ActionClick && len(ev.Triggered) > 0 {
			triggered = true
		}
	}
	assert.True(t, triggered, "a click reports the detector that fired")
	assert.True(t, res.Final.Flagged)
	assert.False(t, res.Final.Emitted)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: "expects a placement that cannot happen"
steps:
  - action: start
  - action: key
    expect: { accepted: true }
assertions:
  - type: final_state
    expect: { state: playing }
`))
	require.NoError(t, err)

	res, err := Run(s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "step 1 (key)")
	assert.Contains(t, res.Errors[1], "final_state")
}

func TestRun_TickMovesTheLayer(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: swing
description: "ticks move the active layer, waits do not"
steps:
  - action: start
  - action: wait
    duration: 600ms
  - action: wait
    duration: 2s
  - action: key
    expect: { placed: false, ended: true }
assertions:
  - type: final_state
    expect: { score: 0, state: game_over }
`))
	require.NoError(t, err)

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "a layer left at its spawn point misses: %v", res.Errors)

	s.Steps[2].Action = ActionTick
	s.Steps[2].Duration = "1745ms"
	s.Steps[3].Expect = map[string]any{"placed": true}
	s.Assertions[0].Expect = map[string]any{"score": 1, "state": "playing"}

	res, err = Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "a tick swings it over the base: %v", res.Errors)
}

func TestRun_StartWhileRunningIsRejected(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: double_start
description: "a second start is not accepted"
token: tok
steps:
  - action: start
  - action: start
    expect: { accepted: false, state: animating }
assertions:
  - type: trace_contains
    action: start
    fields: { accepted: false }
`))
	require.NoError(t, err)

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, res.Errors)
}

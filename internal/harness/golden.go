package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stacktower/internal/canonical"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Token        string       `json:"token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.Fields()
	}
	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.Token != "" {
		m["token"] = s.Token
	}
	return canonical.Marshal(m)
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.Token, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, name, token string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{ScenarioName: name, Token: token, Trace: result.Trace}
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

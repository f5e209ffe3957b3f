package harness

import (
	"fmt"
	"path/filepath"
	"sort"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that did not pass.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Name         string `json:"name,omitempty"`
	Error        string `json:"error"`
}

// FindScenarios lists the scenario files in dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("find scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in paths.
// A scenario that fails to load counts as failed; the rest still run.
func RunSuite(paths []string) *SuiteResult {
	result := &SuiteResult{}
	for _, path := range paths {
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		run, err := Run(scenario)
		if err != nil {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario assertions failed: %v", run.Errors))
			continue
		}
		result.Passed++
	}
	return result
}

func (r *SuiteResult) fail(path, name, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{ScenarioPath: path, Name: name, Error: msg})
}

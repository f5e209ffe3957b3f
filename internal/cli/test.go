package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a whole directory.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(sr ScenarioResult) {
	r.Scenarios = append(r.Scenarios, sr)
	if sr.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

func (r *TestResult) summary(w io.Writer) {
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run every scenario in a directory",
		Long: `Run every scenario file (*.yaml, *.yml) in a directory.

Each scenario must satisfy its own expectations. When
golden/<file>.golden sits beside it, the recorded trace must also match
that file exactly; --update rewrites the golden files instead.

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed
  2 - The directory or filter is unusable

Examples:
  stacktower test ./testdata/scenarios
  stacktower test ./testdata/scenarios --filter "cut_*"
  stacktower test ./testdata/scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current traces")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, w io.Writer) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, "not a scenarios directory: "+dir)
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "bad --filter", err)
	}
	files, err := harness.FindScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "list scenarios", err)
	}
	files = selectScenarios(files, opts.Filter)

	out := &OutputFormatter{Format: opts.Format, Writer: w}
	text := opts.Format != "json"
	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	if len(files) == 0 {
		return out.Success(result, func(w io.Writer) { fmt.Fprintln(w, "No scenarios found.") })
	}

	for _, file := range files {
		sr := checkScenario(file, opts.Update)
		if text {
			printScenarioResult(w, sr)
		}
		result.add(sr)
	}

	if result.Failed == 0 {
		return out.Success(result, func(w io.Writer) {
			result.summary(w)
			fmt.Fprintln(w, "✓ All scenarios passed")
		})
	}
	msg := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
	if text {
		result.summary(w)
	} else if err := out.Error("E_TEST_FAILED", msg, result, nil); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// selectScenarios keeps files whose base name, without extension, matches
// pattern. The pattern has already been checked.
func selectScenarios(files []string, pattern string) []string {
	if pattern == "" {
		return files
	}
	var kept []string
	for _, f := range files {
		if ok, _ := filepath.Match(pattern, scenarioStem(f)); ok {
			kept = append(kept, f)
		}
	}
	return kept
}

func scenarioStem(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath is golden/<stem>.golden next to the scenario file.
func goldenFilePath(file string) string {
	return filepath.Join(filepath.Dir(file), "golden", scenarioStem(file)+".golden")
}

// checkScenario runs one file and compares, or rewrites, its golden trace.
// A trace mismatch is reported ahead of assertion failures.
func checkScenario(file string, update bool) ScenarioResult {
	sc, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: filepath.Base(file), Errors: []string{err.Error()}}
	}
	failed := func(msgs ...string) ScenarioResult {
		return ScenarioResult{Name: sc.Name, Errors: msgs}
	}

	run, err := harness.Run(sc)
	if err != nil {
		return failed("run: " + err.Error())
	}
	snap := harness.TraceSnapshot{ScenarioName: sc.Name, Token: sc.Token, Trace: run.Trace}
	trace, err := snap.MarshalCanonical()
	if err != nil {
		return failed("encode trace: " + err.Error())
	}

	if msg := compareGolden(goldenFilePath(file), trace, update); msg != "" {
		return failed(msg)
	}
	if !run.Pass {
		return failed(run.Errors...)
	}
	return ScenarioResult{Name: sc.Name, Pass: true}
}

// compareGolden returns a failure message, or "" when the trace is
// accepted. A missing golden file accepts any trace.
func compareGolden(path string, trace []byte, update bool) string {
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "update golden: " + err.Error()
		}
		if err := os.WriteFile(path, trace, 0o644); err != nil {
			return "update golden: " + err.Error()
		}
		return ""
	}
	want, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ""
	case err != nil:
		return "read golden: " + err.Error()
	case !bytes.Equal(want, trace):
		return "trace does not match golden file " + path + " (rerun with --update to accept it)"
	}
	return ""
}

func printScenarioResult(w io.Writer, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "    %s\n", e)
	}
}

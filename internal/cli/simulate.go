package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions

	// Relay, when set, posts the emitted GAME_OVER to a host's score
	// intake as a client would.
	Relay     string
	SessionID string
	Token     string
	Nonce     string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Play a scripted scenario and print its trace",
		Long: `Play one scenario against a fresh game machine on a manual clock and
print every step's effect and the final state.

Exit codes:
  0 - Scenario passed
  1 - An expectation or assertion failed
  2 - Command error (unreadable or invalid scenario)

With --relay the emitted GAME_OVER is posted to a host's /v1/scores
endpoint for the issued session, using its token and nonce in place of
the scenario's.

Examples:
  stacktower simulate testdata/scenarios/cut_then_miss.yaml
  stacktower simulate scenario.yaml --format json
  stacktower simulate scenario.yaml --relay http://localhost:8080/v1/scores \
    --session $ID --token $TOKEN --nonce $NONCE`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Relay, "relay", "", "post the emitted score to this host score URL")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "issued session id to relay under")
	cmd.Flags().StringVar(&opts.Token, "token", "", "session token, overriding the scenario's")
	cmd.Flags().StringVar(&opts.Nonce, "nonce", "", "session nonce, overriding the scenario's")
	return cmd
}

// relayOutcome records what happened to the score handed to the relay.
type relayOutcome struct {
	attempted bool
	err       error
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	var (
		runOpts []harness.Option
		relayed relayOutcome
	)
	if opts.Relay != "" {
		if opts.SessionID == "" {
			return NewExitError(ExitCommandError, "--relay needs --session")
		}
		if opts.Token != "" {
			scenario.Token = opts.Token
		}
		if opts.Nonce != "" {
			scenario.Nonce = opts.Nonce
		}
		relay := &attest.HTTPSink{URL: opts.Relay, SessionID: opts.SessionID}
		runOpts = append(runOpts, harness.WithSink(attest.SinkFunc(func(ctx context.Context, p attest.Payload) error {
			relayed.attempted = true
			relayed.err = relay.Deliver(ctx, p)
			return relayed.err
		})))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}
	if relayed.err != nil {
		return WrapExitError(ExitCommandError, "relay failed", relayed.err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	text := func(w io.Writer) {
		printSimulation(w, scenario, result)
		switch {
		case relayed.attempted:
			fmt.Fprintf(w, "Relayed to %s\n", opts.Relay)
		case opts.Relay != "":
			fmt.Fprintln(w, "Nothing relayed: no score was emitted")
		}
	}
	if result.Pass {
		return out.Success(result, text)
	}
	if opts.Format == "json" {
		if err := out.Error("E_SCENARIO_FAILED", "scenario failed", result, result.Errors); err != nil {
			return err
		}
	} else {
		text(cmd.OutOrStdout())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
}

func printSimulation(w io.Writer, s *harness.Scenario, r *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", s.Name)
	fmt.Fprintln(w)
	for _, ev := range r.Trace {
		fmt.Fprintf(w, "[%d] %-5s %-9s score=%d%s\n", ev.Seq, ev.Action, ev.State, ev.Score, traceNotes(ev))
	}
	fmt.Fprintln(w)

	f := r.Final
	fmt.Fprintf(w, "Final: state=%s score=%d clicks=%d combo=%d layers=%d flagged=%v\n",
		f.State, f.Score, f.Clicks, f.Combo, f.Layers, f.Flagged)
	if f.Ended {
		fmt.Fprintf(w, "Ended: aborted=%v emitted=%v\n", f.Aborted, f.Emitted)
	}

	if r.Pass {
		fmt.Fprintln(w, "✓ Passed")
		return
	}
	fmt.Fprintln(w, "✗ Failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func traceNotes(ev harness.TraceEvent) string {
	var notes []string
	if !ev.Accepted {
		notes = append(notes, "ignored")
	}
	if ev.Input {
		switch {
		case ev.Placed && ev.Perfect:
			notes = append(notes, "perfect")
		case ev.Placed:
			notes = append(notes, fmt.Sprintf("cut to %.3f", float64(ev.OverlapMilli)/1000))
		default:
			notes = append(notes, "miss")
		}
	}
	if len(ev.Triggered) > 0 {
		notes = append(notes, "sentinel:"+strings.Join(ev.Triggered, ","))
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, "; ") + ")"
}

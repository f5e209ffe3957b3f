package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/config"
	"github.com/roach88/stacktower/internal/engine"
	"github.com/roach88/stacktower/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - one session only
	Record    bool
}

// ReplaySessionResult is the re-simulation of one accepted score.
type ReplaySessionResult struct {
	SessionID  string `json:"session_id"`
	Reported   int    `json:"reported"`
	Replayed   int    `json:"replayed"`
	Entries    int    `json:"entries"`
	Flagged    bool   `json:"flagged"`
	NoJournal  bool   `json:"no_journal,omitempty"`
	Error      string `json:"error,omitempty"`
	Consistent bool   `json:"consistent"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	Total         int                   `json:"total"`
	AllConsistent bool                  `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-simulate journaled sessions and check their scores",
		Long: `Re-simulate the input journal of every accepted score and compare the
result with the score the game reported.

A receipt is consistent when its journal replays to the same score without
a sentinel flag. Receipts for sessions played outside the host have no
journal and are reported but not counted against the result.

Exit codes:
  0 - Every replayed receipt is consistent
  1 - At least one receipt replayed differently
  2 - Command error (database not found, etc.)

Examples:
  stacktower replay --db ./tower.db
  stacktower replay --db ./tower.db --session 0192...
  stacktower replay --record --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STACKTOWER_DB)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay one session only")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "store replayed scores on their receipts")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	deps, err := openHost(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	var receipts []store.Receipt
	if opts.SessionID != "" {
		r, err := deps.store.ReadReceipt(ctx, opts.SessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("no receipt for session %s", opts.SessionID), err)
		}
		receipts = []store.Receipt{r}
	} else {
		receipts, err = deps.store.ReceiptsSince(ctx, time.Time{})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list receipts", err)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(receipts)),
		Total:         len(receipts),
		AllConsistent: true,
	}
	for _, r := range receipts {
		sr, err := replayReceipt(ctx, deps.store, deps.tuning, r)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", r.SessionID), err)
		}
		if opts.Record && !sr.NoJournal && sr.Error == "" {
			if err := deps.store.SetReplayScore(ctx, r.ID, sr.Replayed); err != nil {
				return WrapExitError(ExitCommandError, "failed to record replay score", err)
			}
		}
		if !sr.Consistent {
			result.AllConsistent = false
		}
		result.Sessions = append(result.Sessions, sr)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if result.AllConsistent {
		return out.Success(result, func(w io.Writer) { printReplay(w, result, opts.Verbose) })
	}
	if opts.Format == "json" {
		if err := out.Error("E_REPLAY_MISMATCH", "replay verification failed", result, nil); err != nil {
			return err
		}
	} else {
		printReplay(cmd.OutOrStdout(), result, opts.Verbose)
	}
	return NewExitError(ExitFailure, "replay verification failed")
}

// replayReceipt re-simulates the journal behind r. Only store failures are
// returned as errors; a journal the machine rejects is an inconsistency.
func replayReceipt(ctx context.Context, st *store.Store, tuning config.Tuning, r store.Receipt) (ReplaySessionResult, error) {
	sr := ReplaySessionResult{SessionID: r.SessionID, Reported: r.Score}

	inputs, err := st.ReadInputs(ctx, r.SessionID)
	if err != nil {
		return sr, err
	}
	if len(inputs) == 0 {
		sr.NoJournal = true
		sr.Consistent = true
		return sr, nil
	}

	sess, err := st.ReadSession(ctx, r.SessionID)
	if err != nil {
		return sr, err
	}
	cfg, err := tuning.GameConfig(sess.Profile)
	if err != nil {
		return sr, err
	}

	res, err := engine.Replay(cfg, inputs)
	if err != nil {
		var re *engine.ReplayError
		if !errors.As(err, &re) {
			return sr, err
		}
		sr.Error = re.Error()
		sr.Entries = len(inputs)
		return sr, nil
	}

	sr.Replayed = res.Score
	sr.Entries = res.Entries
	sr.Flagged = res.Flagged
	sr.Consistent = res.Score == r.Score && !res.Flagged
	return sr, nil
}

func printReplay(w io.Writer, result ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.Total)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Consistent {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.SessionID)

		switch {
		case s.NoJournal:
			fmt.Fprintf(w, "  Reported %d, no journal\n", s.Reported)
		case s.Error != "":
			fmt.Fprintf(w, "  Journal rejected: %s\n", s.Error)
		default:
			fmt.Fprintf(w, "  Reported %d, replayed %d\n", s.Reported, s.Replayed)
			if verbose {
				fmt.Fprintf(w, "  Entries: %d\n", s.Entries)
			}
			if s.Flagged {
				fmt.Fprintln(w, "  Warning: replay trips the sentinel")
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllConsistent {
		fmt.Fprintln(w, "✓ All replays consistent")
		return
	}
	fmt.Fprintln(w, "✗ Replay verification failed")
}

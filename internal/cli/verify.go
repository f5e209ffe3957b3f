package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database  string
	SessionID string
}

// ReceiptView is the printable form of an accepted score.
type ReceiptView struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Player      string    `json:"player,omitempty"`
	Score       int       `json:"score"`
	Clicks      int       `json:"clicks"`
	DurationMs  int64     `json:"duration_ms"`
	AcceptedAt  time.Time `json:"accepted_at"`
	ReplayScore *int      `json:"replay_score,omitempty"`
}

func viewReceipt(r store.Receipt) ReceiptView {
	return ReceiptView{
		ID:          r.ID,
		SessionID:   r.SessionID,
		Player:      r.Player,
		Score:       r.Score,
		Clicks:      r.Clicks,
		DurationMs:  r.DurationMs,
		AcceptedAt:  r.AcceptedAt,
		ReplayScore: r.ReplayScore,
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <message-file>",
		Short: "Verify a GAME_OVER message and redeem its session",
		Long: `Verify a GAME_OVER message the way the host's score intake does.

The message is read from the file, or from stdin when the file is "-". On
success the session is redeemed and the receipt printed; a session can be
redeemed only once.

Exit codes:
  0 - Score accepted
  1 - Score rejected (the error code names the check that failed)
  2 - Command error (bad settings, unreadable message, etc.)

Examples:
  stacktower verify --session 0192... message.json
  echo '{"type":"GAME_OVER",...}' | stacktower verify --session 0192... -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STACKTOWER_DB)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session the message belongs to (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runVerify(opts *VerifyOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	raw, err := readMessage(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read message", err)
	}

	deps, err := openHost(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	verifier := attest.NewVerifier(deps.store, deps.issuer,
		attest.WithVerifierConfig(deps.tuning.Attest),
		attest.WithVerifierLogger(opts.logger(cmd.ErrOrStderr())),
	)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	receipt, err := verifier.VerifyMessage(ctx, opts.SessionID, raw)
	if err != nil {
		var ve *attest.VerifyError
		if !errors.As(err, &ve) {
			return WrapExitError(ExitCommandError, "verification failed", err)
		}
		if err := out.Error(string(ve.Code), ve.Error(), nil, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("score rejected: %s", ve.Code))
	}

	view := viewReceipt(receipt)
	return out.Success(view, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Accepted score %d for session %s\n", view.Score, view.SessionID)
		fmt.Fprintf(w, "  Receipt: %s\n", view.ID)
		if view.Player != "" {
			fmt.Fprintf(w, "  Player:  %s\n", view.Player)
		}
	})
}

func readMessage(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

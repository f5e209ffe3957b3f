package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/session"
	"github.com/roach88/stacktower/internal/store"
	"github.com/roach88/stacktower/internal/tower"
)

// IssueOptions holds flags for the issue command.
type IssueOptions struct {
	*RootOptions
	Database string
	Player   string
	Profile  string
}

// NewIssueCommand creates the issue command.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IssueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a session token",
		Long: `Issue a signed session and record it in the database.

The printed token and nonce are what a game receives at bootstrap.

Examples:
  stacktower issue --player 0xabc
  stacktower issue --profile classic --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STACKTOWER_DB)")
	cmd.Flags().StringVar(&opts.Player, "player", "", "wallet address; empty for anonymous play")
	cmd.Flags().StringVar(&opts.Profile, "profile", tower.ProfilePro, "tower profile")

	return cmd
}

func runIssue(opts *IssueOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	profile, err := tower.ProfileByName(opts.Profile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid profile", err)
	}

	deps, err := openHost(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	grant, err := deps.issuer.Issue(opts.Player, profile.Name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to issue session", err)
	}
	err = deps.store.WriteSession(ctx, store.Session{
		ID:        grant.SessionID,
		Token:     grant.Token,
		Nonce:     grant.Nonce,
		Player:    grant.Player,
		Profile:   grant.Profile,
		IssuedAt:  grant.IssuedAt,
		ExpiresAt: grant.ExpiresAt,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record session", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(grant, func(w io.Writer) { printGrant(w, grant) })
}

func printGrant(w io.Writer, g session.Grant) {
	fmt.Fprintf(w, "Session: %s\n", g.SessionID)
	if g.Player != "" {
		fmt.Fprintf(w, "Player:  %s\n", g.Player)
	}
	fmt.Fprintf(w, "Profile: %s\n", g.Profile)
	fmt.Fprintf(w, "Expires: %s\n", g.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(w, "Token:   %s\n", g.Token)
	fmt.Fprintf(w, "Nonce:   %s\n", g.Nonce)
}

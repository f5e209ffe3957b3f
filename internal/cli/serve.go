package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/host"
	"github.com/roach88/stacktower/internal/rewards"
	"github.com/roach88/stacktower/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
	Fund     uint64
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game host",
		Long: `Run the game host until interrupted.

Settings come from STACKTOWER_* environment variables; STACKTOWER_TOKEN_SECRET
is required. The reward round is rebuilt from receipts already in the
database before the listener opens.

Examples:
  STACKTOWER_TOKEN_SECRET=... stacktower serve
  stacktower serve --addr :9000 --db ./tower.db --fund 1000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STACKTOWER_DB)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $STACKTOWER_ADDR)")
	cmd.Flags().Uint64Var(&opts.Fund, "fund", 0, "initial reward pot")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())

	deps, err := openHost(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	shutdown, err := telemetry.Setup(ctx, deps.server.OTelEndpoint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	contract := rewards.NewLedgerContract(rewards.DefaultPolicy(), rewards.WithLogger(logger))
	if err := contract.Restore(ctx, deps.store); err != nil {
		return WrapExitError(ExitCommandError, "failed to restore reward round", err)
	}
	if opts.Fund > 0 {
		contract.Fund(opts.Fund)
	}

	addr := deps.server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := host.NewServer(host.ConfigFrom(deps.server, deps.tuning), deps.store, deps.issuer, contract,
		host.WithLogger(logger))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "host stopped", err)
	}
	return nil
}

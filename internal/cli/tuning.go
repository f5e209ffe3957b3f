package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stacktower/internal/config"
)

// TuningOptions holds flags for the tuning command.
type TuningOptions struct {
	*RootOptions
	Schema bool
}

// NewTuningCommand creates the tuning command.
func NewTuningCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TuningOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tuning [file.cue]",
		Short: "Validate a tuning file and print the resolved values",
		Long: `Validate a CUE tuning file against the embedded schema and print the
tuning the host would run with. Without a file the --tuning flag, then
STACKTOWER_TUNING, then the built-in defaults are used.

Examples:
  stacktower tuning tuning.cue
  stacktower tuning --schema`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.tuningPath(os.Getenv("STACKTOWER_TUNING"))
			if len(args) == 1 {
				path = args[0]
			}
			return runTuning(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Schema, "schema", false, "print the CUE schema instead")

	return cmd
}

func runTuning(opts *TuningOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Schema {
		schema := config.Schema()
		return out.Success(map[string]string{"schema": schema}, func(w io.Writer) { fmt.Fprint(w, schema) })
	}

	t, err := config.LoadTuning(path)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid tuning", err)
	}
	return out.Success(t, func(w io.Writer) { printTuning(w, path, t) })
}

func printTuning(w io.Writer, path string, t config.Tuning) {
	source := path
	if source == "" {
		source = "built-in defaults"
	}
	g := t.Game
	fmt.Fprintf(w, "Tuning: %s\n", source)
	fmt.Fprintf(w, "  profile     %s (base %.2f, spawn %.1f, amplitude %.1f, speed %.2f)\n",
		g.Profile.Name, g.Profile.BaseSize, g.Profile.Spawn, g.Profile.Amplitude, g.Profile.Speed)
	fmt.Fprintf(w, "  tolerance   perfect < %.2f, debris >= %.2f\n", g.Tolerance.Perfection, g.Tolerance.DebrisMin)
	fmt.Fprintf(w, "  timing      entry %s, exit %s\n", g.Timing.Entry, g.Timing.Exit)
	fmt.Fprintf(w, "  sentinel    rate max %.1f/s, suspicion threshold %d\n", g.Sentinel.RateMax, g.Sentinel.SuspicionThreshold)
	fmt.Fprintf(w, "  attest      min session %s, %s per block above %d\n",
		t.Attest.MinSessionDuration, t.Attest.MinTimePerBlock, t.Attest.PerBlockAfter)
	fmt.Fprintf(w, "  camera      lerp %.3f\n", g.Camera.Lerp)
}

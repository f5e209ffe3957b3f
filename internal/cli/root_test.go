package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "stacktower", cmd.Use)
	assert.Contains(t, cmd.Long, "attested scores")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "issue", "verify", "replay", "simulate", "test", "tuning"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("tuning"))
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	tests := []struct {
		command string
		flags   []string
	}{
		{"serve", []string{"db", "addr", "fund"}},
		{"issue", []string{"db", "player", "profile"}},
		{"verify", []string{"db", "session"}},
		{"replay", []string{"db", "session", "record"}},
		{"simulate", []string{"relay", "session", "token", "nonce"}},
		{"test", []string{"update", "filter"}},
		{"tuning", []string{"schema"}},
	}
	for _, tt := range tests {
		sub, _, err := cmd.Find([]string{tt.command})
		require.NoError(t, err)
		for _, f := range tt.flags {
			assert.NotNil(t, sub.Flags().Lookup(f), "%s --%s", tt.command, f)
		}
	}
}

func TestFormatValidation(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "tuning"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "invalid format")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := WrapExitError(ExitFailure, "replay", errors.New("mismatch"))
	assert.Equal(t, "replay: mismatch", wrapped.Error())
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestTuningPath(t *testing.T) {
	opts := &RootOptions{}
	assert.Equal(t, "env.cue", opts.tuningPath("env.cue"))
	opts.Tuning = "flag.cue"
	assert.Equal(t, "flag.cue", opts.tuningPath("env.cue"))
}

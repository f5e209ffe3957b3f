package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/store"
	"github.com/roach88/stacktower/internal/testutil"
)

// journal builds entries one second apart.
func journal(kinds ...string) []store.Input {
	out := make([]store.Input, len(kinds))
	for i, k := range kinds {
		out[i] = store.Input{
			SessionID: "sess-r",
			Seq:       int64(i + 1),
			Kind:      k,
			At:        testutil.Epoch.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestReplay_PerfectRunThenMiss(t *testing.T) {
	in := journal(store.InputStart, store.InputKey, store.InputKey, store.InputKey, store.InputKey)
	in[4].Position = 9 // far off the base

	res, err := Replay(game.DefaultConfig(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Score)
	assert.True(t, res.Ended)
	assert.False(t, res.Aborted)
	assert.False(t, res.Flagged)
}

func TestReplay_Unfinished(t *testing.T) {
	res, err := Replay(game.DefaultConfig(), journal(store.InputStart, store.InputKey, store.InputKey))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
	assert.False(t, res.Ended)
}

func TestReplay_ExitIsAborted(t *testing.T) {
	res, err := Replay(game.DefaultConfig(), journal(store.InputStart, store.InputKey, store.InputExit))
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.True(t, res.Aborted)
	assert.Equal(t, 1, res.Score)
}

func TestReplay_ReproducesSentinelFlag(t *testing.T) {
	in := journal(store.InputStart,
		store.InputPointer, store.InputPointer, store.InputPointer, store.InputPointer, store.InputPointer)
	for i := 1; i < len(in); i++ {
		in[i].HasPointer = true
		in[i].X = 0.1
		in[i].Y = -0.2
	}

	res, err := Replay(game.DefaultConfig(), in)
	require.NoError(t, err)
	assert.True(t, res.Flagged, "five identical clicks")
	assert.Equal(t, 5, res.Clicks)
	assert.Equal(t, 5, res.Score)
}

func TestReplay_PointerWithoutCoordinates(t *testing.T) {
	in := journal(store.InputStart, store.InputPointer)

	res, err := Replay(game.DefaultConfig(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clicks)
	assert.Equal(t, 1, res.Score)
}

func TestReplay_BadJournals(t *testing.T) {
	outOfOrder := journal(store.InputStart, store.InputKey, store.InputKey)
	outOfOrder[2].Seq = 1

	backwards := journal(store.InputStart, store.InputKey)
	backwards[1].At = testutil.Epoch.Add(-time.Second)

	afterEnd := journal(store.InputStart, store.InputExit, store.InputKey)

	unknown := journal(store.InputStart, "teleport")

	tests := []struct {
		name   string
		inputs []store.Input
		code   ReplayErrorCode
	}{
		{"empty", nil, ErrCodeEmptyJournal},
		{"missing start", journal(store.InputKey), ErrCodeMissingStart},
		{"seq out of order", outOfOrder, ErrCodeOutOfOrder},
		{"time backwards", backwards, ErrCodeOutOfOrder},
		{"input after end", afterEnd, ErrCodeRejected},
		{"second start", journal(store.InputStart, store.InputStart), ErrCodeRejected},
		{"unknown kind", unknown, ErrCodeUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Replay(game.DefaultConfig(), tt.inputs)
			require.Error(t, err)
			assert.True(t, IsReplayError(err, tt.code), "got %v", err)
		})
	}
}

func TestReplayError_Message(t *testing.T) {
	err := &ReplayError{Code: ErrCodeRejected, Message: "nope", SessionID: "s", Seq: 4}
	assert.Equal(t, "REJECTED: nope (session=s, seq=4)", err.Error())

	err.Seq = 0
	assert.Equal(t, "REJECTED: nope (session=s)", err.Error())
}

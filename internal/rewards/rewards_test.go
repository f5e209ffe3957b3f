package rewards

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stacktower/internal/store"
	"github.com/roach88/stacktower/internal/testutil"
)

func newContract(clock *testutil.ManualClock) *LedgerContract {
	return NewLedgerContract(DefaultPolicy(),
		WithNow(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestPolicy_Split(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		pot, winner, carry uint64
	}{
		{0, 0, 0},
		{100, 80, 20},
		{1_000_000_000_000_000, 800_000_000_000_000, 200_000_000_000_000},
		{7, 5, 2},
	}
	for _, tt := range tests {
		w, c := p.Split(tt.pot)
		assert.Equal(t, tt.winner, w, "pot %d", tt.pot)
		assert.Equal(t, tt.pot, w+c, "nothing lost")
		if tt.carry != 0 {
			assert.Equal(t, tt.carry, c)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.WinnerPercent = 120
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.ResetAfter = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.ResetScore = -1
	assert.Error(t, p.Validate())
}

func TestLedgerContract_FreshRound(t *testing.T) {
	c := newContract(testutil.NewManualClock(time.Time{}))
	st, err := c.GameState(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, State{HighScore: 180, KingAddress: ZeroAddress}, st)
}

func TestLedgerContract_MustBeatResetScore(t *testing.T) {
	ctx := context.Background()
	c := newContract(testutil.NewManualClock(time.Time{}))
	c.Fund(1000)

	res, err := c.SubmitScore(ctx, "0xabc", 180)
	require.NoError(t, err)
	assert.Equal(t, Result{HighScore: 180}, res, "a tie does not win")

	res, err = c.SubmitScore(ctx, "0xabc", 181)
	require.NoError(t, err)
	assert.Equal(t, Result{NewKing: true, Payout: 800, HighScore: 181}, res)

	st, err := c.GameState(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), st.PotSize)
	assert.Equal(t, "0xabc", st.KingAddress)
	assert.Equal(t, 361, st.XP)
}

func TestLedgerContract_RoundResets(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(time.Time{})
	c := newContract(clock)

	_, err := c.SubmitScore(ctx, "0xabc", 200)
	require.NoError(t, err)

	clock.Advance(48*time.Hour - time.Second)
	st, _ := c.GameState(ctx, "")
	assert.Equal(t, 200, st.HighScore)

	clock.Advance(time.Second)
	st, _ = c.GameState(ctx, "")
	assert.Equal(t, 180, st.HighScore)
	assert.Equal(t, ZeroAddress, st.KingAddress)
}

func TestLedgerContract_RejectsZero(t *testing.T) {
	c := newContract(testutil.NewManualClock(time.Time{}))
	_, err := c.SubmitScore(context.Background(), "0xabc", 0)
	assert.Error(t, err)
}

func TestLedgerContract_Restore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "rewards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	redeem := func(id, player string, score int, at time.Time) {
		t.Helper()
		require.NoError(t, s.WriteSession(ctx, store.Session{
			ID: id, Token: "tok-" + id, Player: player, Profile: "pro",
			IssuedAt: at.Add(-time.Minute), ExpiresAt: at.Add(time.Hour),
		}))
		ok, err := s.RedeemSession(ctx, store.Receipt{
			ID: "r-" + id, SessionID: id, Player: player, Score: score, DurationMs: 5000, AcceptedAt: at,
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	redeem("old", "0xold", 500, testutil.Epoch.Add(-72*time.Hour))
	redeem("a", "0xaaa", 190, testutil.Epoch.Add(-2*time.Hour))
	redeem("b", "0xbbb", 220, testutil.Epoch.Add(-time.Hour))
	redeem("c", "0xaaa", 210, testutil.Epoch.Add(-30*time.Minute))
	redeem("d", "0xddd", 900, testutil.Epoch.Add(-10*time.Minute))
	require.NoError(t, s.MarkDisputed(ctx, "r-d"))

	c := newContract(testutil.NewManualClock(testutil.Epoch))
	require.NoError(t, c.Restore(ctx, s))

	st, err := c.GameState(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, 220, st.HighScore)
	assert.Equal(t, "0xbbb", st.KingAddress)
	assert.Equal(t, 400, st.XP, "receipts outside the round window are not counted")

	st, err = c.GameState(ctx, "0xddd")
	require.NoError(t, err)
	assert.Zero(t, st.XP, "disputed receipts are not counted")
}

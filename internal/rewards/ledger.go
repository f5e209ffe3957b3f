package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/stacktower/internal/store"
)

// Ledger is the receipt history a LedgerContract rebuilds from.
// Implemented by *store.Store.
type Ledger interface {
	ReceiptsSince(ctx context.Context, since time.Time) ([]store.Receipt, error)
}

// LedgerContract settles rounds locally from verified receipts.
//
// High score, king and XP are derived from accepted scores. The pot is only
// what has been funded through Fund; tickets and levels belong to an
// on-chain contract and are always reported as zero.
//
// Thread-safety: safe for concurrent use.
type LedgerContract struct {
	policy Policy
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	pot   uint64
	high  int
	king  string
	setAt time.Time
	xp    map[string]int
}

// LedgerOption configures a LedgerContract.
type LedgerOption func(*LedgerContract)

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) LedgerOption {
	return func(c *LedgerContract) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LedgerOption {
	return func(c *LedgerContract) {
		c.logger = l
	}
}

// NewLedgerContract creates a contract with an empty pot and a fresh round.
func NewLedgerContract(policy Policy, opts ...LedgerOption) *LedgerContract {
	c := &LedgerContract{
		policy: policy,
		now:    time.Now,
		logger: slog.Default(),
		high:   policy.ResetScore,
		xp:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore replays every undisputed receipt from the last round window so a
// restarted host reports the same king. Payouts are not repeated.
func (c *LedgerContract) Restore(ctx context.Context, ledger Ledger) error {
	now := c.now()
	receipts, err := ledger.ReceiptsSince(ctx, now.Add(-c.policy.ResetAfter))
	if err != nil {
		return fmt.Errorf("restore rewards: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range receipts {
		if r.Disputed {
			continue
		}
		c.expireLocked(r.AcceptedAt)
		c.xp[r.Player] += r.Score
		if r.Score > c.high {
			c.crownLocked(r.Player, r.Score, r.AcceptedAt)
		}
	}
	c.expireLocked(now)
	c.logger.Info("rewards restored", "receipts", len(receipts), "high_score", c.high, "king", c.kingLocked())
	return nil
}

// Fund adds to the pot.
func (c *LedgerContract) Fund(amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pot += amount
}

// GameState implements Contract.
func (c *LedgerContract) GameState(_ context.Context, player string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return State{
		PotSize:     c.pot,
		HighScore:   c.high,
		KingAddress: c.kingLocked(),
		XP:          c.xp[player],
	}, nil
}

// SubmitScore implements Contract. A score strictly above the standing high
// score crowns player and pays out WinnerPercent of the pot.
func (c *LedgerContract) SubmitScore(_ context.Context, player string, score int) (Result, error) {
	if score <= 0 {
		return Result{}, fmt.Errorf("submit score: score must be positive, got %d", score)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expireLocked(now)
	c.xp[player] += score
	if score <= c.high {
		return Result{HighScore: c.high}, nil
	}

	payout, carry := c.policy.Split(c.pot)
	c.pot = carry
	c.crownLocked(player, score, now)
	c.logger.Info("new king", "player", player, "score", score, "payout", payout)
	return Result{NewKing: true, Payout: payout, HighScore: score}, nil
}

func (c *LedgerContract) crownLocked(player string, score int, at time.Time) {
	c.high = score
	c.king = player
	c.setAt = at
}

// expireLocked resets the round once the standing high score is too old.
func (c *LedgerContract) expireLocked(now time.Time) {
	if c.king == "" || now.Sub(c.setAt) < c.policy.ResetAfter {
		return
	}
	c.logger.Info("round reset", "high_score", c.high, "king", c.king)
	c.high = c.policy.ResetScore
	c.king = ""
	c.setAt = time.Time{}
}

func (c *LedgerContract) kingLocked() string {
	if c.king == "" {
		return ZeroAddress
	}
	return c.king
}

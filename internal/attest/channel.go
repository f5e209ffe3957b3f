package attest

import (
	"context"
	"fmt"
	"log/slog"
)

// Sink delivers an emitted payload across the host boundary.
type Sink interface {
	Deliver(ctx context.Context, p Payload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Payload) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

// Channel gates finished sessions and hands passing payloads to a Sink.
//
// Channel holds no per-session state; the game machine calls Emit once per
// session.
type Channel struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithLogger sets the logger used for drop and delivery diagnostics.
func WithLogger(l *slog.Logger) ChannelOption {
	return func(c *Channel) {
		c.logger = l
	}
}

// NewChannel creates a channel delivering to sink.
// A nil sink discards every payload.
func NewChannel(cfg Config, sink Sink, opts ...ChannelOption) *Channel {
	c := &Channel{
		cfg:    cfg,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the gate thresholds.
func (c *Channel) Config() Config {
	return c.cfg
}

// Emit gates s and delivers the payload if it passes.
//
// Returns the delivered payload, a *DropError for a silent drop, or the
// sink's error. Callers must not surface a drop to the player.
func (c *Channel) Emit(ctx context.Context, s Summary) (Payload, error) {
	p, err := Gate(c.cfg, s)
	if err != nil {
		c.logger.Debug("score withheld",
			"error", err,
			"score", s.Score,
			"clicks", s.Clicks,
			"duration_ms", s.Duration.Milliseconds())
		return Payload{}, err
	}

	if c.sink == nil {
		return p, nil
	}
	if err := c.sink.Deliver(ctx, p); err != nil {
		c.logger.Warn("score delivery failed", "error", err, "score", p.Score)
		return Payload{}, fmt.Errorf("deliver score: %w", err)
	}

	c.logger.Debug("score emitted", "score", p.Score, "clicks", p.Clicks, "duration_ms", p.DurationMs)
	return p, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinSecretLength is the shortest accepted token signing secret.
const MinSecretLength = 16

// Server holds host settings read from the environment at startup.
type Server struct {
	Addr             string        `env:"STACKTOWER_ADDR"              envDefault:":8080"`
	DBPath           string        `env:"STACKTOWER_DB"                envDefault:"stacktower.db"`
	TokenSecret      string        `env:"STACKTOWER_TOKEN_SECRET"`
	TokenTTL         time.Duration `env:"STACKTOWER_TOKEN_TTL"         envDefault:"30m"`
	RatePerSec       float64       `env:"STACKTOWER_RATE_PER_SEC"      envDefault:"2"`
	RateBurst        int           `env:"STACKTOWER_RATE_BURST"        envDefault:"5"`
	TickInterval     time.Duration `env:"STACKTOWER_TICK_INTERVAL"     envDefault:"16ms"`
	OTelEndpoint     string        `env:"STACKTOWER_OTEL_ENDPOINT"`
	TuningPath       string        `env:"STACKTOWER_TUNING"`
	LeaderboardLimit int           `env:"STACKTOWER_LEADERBOARD_LIMIT" envDefault:"10"`
}

// LoadServer parses and validates the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks the settings a host cannot run without.
func (s Server) Validate() error {
	if len(s.TokenSecret) < MinSecretLength {
		return fmt.Errorf("STACKTOWER_TOKEN_SECRET must be at least %d bytes", MinSecretLength)
	}
	if s.TokenTTL <= 0 {
		return fmt.Errorf("STACKTOWER_TOKEN_TTL must be positive, got %s", s.TokenTTL)
	}
	if s.RatePerSec <= 0 || s.RateBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got %v/s burst %d", s.RatePerSec, s.RateBurst)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("STACKTOWER_TICK_INTERVAL must be positive, got %s", s.TickInterval)
	}
	return nil
}

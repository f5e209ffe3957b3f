// Package host is the HTTP side of the attestation boundary.
//
// It issues play sessions, accepts GAME_OVER messages relayed by clients that
// ran the game themselves, and hosts server-authoritative play over a
// websocket where every input is journaled and the final score is replayed
// before it reaches the reward contract.
//
// Routes:
//
//	POST /v1/sessions          issue a session token
//	POST /v1/scores            verify a relayed GAME_OVER message
//	GET  /v1/play              websocket play (token and nonce query params)
//	GET  /v1/leaderboard       best accepted scores
//	GET  /v1/players/{player}  reward contract state for a player
//	GET  /healthz              store liveness
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/config"
	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/rewards"
	"github.com/roach88/stacktower/internal/session"
	"github.com/roach88/stacktower/internal/store"
)

const tracerName = "github.com/roach88/stacktower/internal/host"

// Defaults for Config fields left zero.
const (
	DefaultSnapshotInterval = 50 * time.Millisecond
	DefaultLeaderboardLimit = 10
)

// Config is the host's runtime behaviour.
type Config struct {
	Tuning config.Tuning

	// TickInterval drives motion in websocket play.
	TickInterval time.Duration

	// SnapshotInterval is how often websocket clients receive state.
	SnapshotInterval time.Duration

	RatePerSec float64
	RateBurst  int

	LeaderboardLimit int
}

// ConfigFrom combines environment settings with tuning.
func ConfigFrom(srv config.Server, t config.Tuning) Config {
	return Config{
		Tuning:           t,
		TickInterval:     srv.TickInterval,
		SnapshotInterval: DefaultSnapshotInterval,
		RatePerSec:       srv.RatePerSec,
		RateBurst:        srv.RateBurst,
		LeaderboardLimit: srv.LeaderboardLimit,
	}
}

// Server serves the host API.
//
// Thread-safety: safe for concurrent use. Each websocket game runs its own
// engine; the store and the reward contract are shared.
type Server struct {
	cfg      Config
	store    *store.Store
	issuer   *session.Issuer
	verifier *attest.Verifier
	contract rewards.Contract
	clock    game.Clock
	logger   *slog.Logger
	tracer   trace.Tracer
	limiter  *ipLimiter
	upgrader websocket.Upgrader

	games sync.WaitGroup

	// live holds sessions with a score being settled or a game in progress.
	liveMu sync.Mutex
	live   map[string]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the wall clock shared by play sessions and the verifier.
func WithClock(c game.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithCheckOrigin sets the websocket origin policy. The default accepts
// same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// NewServer creates a host over st. Tokens are issued and parsed by issuer;
// verified scores are submitted to contract.
func NewServer(cfg Config, st *store.Store, issuer *session.Issuer, contract rewards.Contract, opts ...Option) *Server {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = DefaultLeaderboardLimit
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		issuer:   issuer,
		contract: contract,
		clock:    wallClock{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		limiter:  newIPLimiter(cfg.RatePerSec, cfg.RateBurst),
		live:     make(map[string]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.verifier = attest.NewVerifier(st, issuer,
		attest.WithVerifierConfig(cfg.Tuning.Attest),
		attest.WithVerifierNow(s.clock.Now),
		attest.WithVerifierLogger(s.logger),
	)
	return s
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /v1/sessions", s.handleIssue, true)
	s.route(mux, "POST /v1/scores", s.handleScore, true)
	s.route(mux, "GET /v1/play", s.handlePlay, true)
	s.route(mux, "GET /v1/leaderboard", s.handleLeaderboard, false)
	s.route(mux, "GET /v1/players/{player}", s.handlePlayer, false)
	s.route(mux, "GET /healthz", s.handleHealth, false)
	return mux
}

// route registers h under pattern inside a span, optionally rate limited
// per client address.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc, limited bool) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.client_ip", clientIP(r))))
		defer span.End()

		if limited && !s.limiter.Allow(clientIP(r)) {
			s.fail(w, r.WithContext(ctx), http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		h(w, r.WithContext(ctx))
	})
}

// claim reserves id for one caller. It fails while another game or score
// submission holds the session.
func (s *Server) claim(id string) bool {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	if _, held := s.live[id]; held {
		return false
	}
	s.live[id] = struct{}{}
	return true
}

func (s *Server) release(id string) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	delete(s.live, id)
}

// Wait blocks until every websocket game has finished.
func (s *Server) Wait() {
	s.games.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("host listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("host shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.Wait()
	return nil
}

// gameConfig returns the tuning to play profile with.
func (s *Server) gameConfig(profile string) (game.Config, error) {
	return s.cfg.Tuning.GameConfig(profile)
}

// fail writes an error body and marks the request span.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("http.status_code", status), attribute.String("error.code", code))
	if status >= 500 {
		span.SetStatus(codes.Error, message)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

package host

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/engine"
	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/session"
	"github.com/roach88/stacktower/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	exitGrace    = 2 * time.Second
	maxMessage   = 1 << 10
)

// Client message types.
const (
	msgInput = "input"
	msgExit  = "exit"
)

// clientMessage is what a player sends. Kind is "pointer" or "key"; pointer
// input carries client coordinates and the viewport they were taken in.
type clientMessage struct {
	Type      string  `json:"type"`
	Kind      string  `json:"kind,omitempty"`
	ClientX   float64 `json:"client_x,omitempty"`
	ClientY   float64 `json:"client_y,omitempty"`
	ViewportW float64 `json:"viewport_w,omitempty"`
	ViewportH float64 `json:"viewport_h,omitempty"`
}

func (m clientMessage) input() (game.Input, bool) {
	switch m.Kind {
	case "pointer":
		return game.Pointer(m.ClientX, m.ClientY, m.ViewportW, m.ViewportH), true
	case "key":
		return game.Key(), true
	default:
		return game.Input{}, false
	}
}

type snapshotMessage struct {
	Type     string        `json:"type"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// OutcomeMessage closes every websocket game. A withheld score is reported
// as not accepted without a reason.
type OutcomeMessage struct {
	Type     string         `json:"type"`
	Score    int            `json:"score"`
	Aborted  bool           `json:"aborted,omitempty"`
	Accepted bool           `json:"accepted"`
	Result   *ScoreResponse `json:"result,omitempty"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	b := game.BootstrapFromQuery(r.URL.Query())
	claims, err := s.issuer.Parse(b.Token)
	if err != nil {
		code := string(attest.ErrCodeBadSignature)
		if errors.Is(err, session.ErrExpired) {
			code = string(attest.ErrCodeExpired)
		}
		s.fail(w, r, http.StatusUnauthorized, code, "invalid session token")
		return
	}

	sess, err := s.store.ReadSession(r.Context(), claims.SessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.fail(w, r, http.StatusNotFound, string(attest.ErrCodeUnknownSession), "session was never issued")
		return
	case err != nil:
		s.logger.Error("read session", "error", err, "session", claims.SessionID)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not read session")
		return
	case sess.Consumed():
		s.fail(w, r, http.StatusConflict, string(attest.ErrCodeAlreadyConsumed), "session already consumed")
		return
	case sess.Token != b.Token || (b.Nonce != "" && sess.Nonce != b.Nonce):
		s.fail(w, r, http.StatusUnauthorized, string(attest.ErrCodeTokenMismatch), "token does not match session")
		return
	}

	cfg, err := s.gameConfig(sess.Profile)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "UNKNOWN_PROFILE", err.Error())
		return
	}

	if !s.claim(sess.ID) {
		s.fail(w, r, http.StatusConflict, string(attest.ErrCodeInPlay), "session is already in play")
		return
	}
	defer s.release(sess.ID)

	// A journal left behind by an interrupted game cannot be resumed.
	if inputs, err := s.store.ReadInputs(r.Context(), sess.ID); err != nil || len(inputs) > 0 {
		if err != nil {
			s.logger.Error("read journal", "error", err, "session", sess.ID)
		}
		s.fail(w, r, http.StatusConflict, string(attest.ErrCodeInPlay), "session was already played")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err, "session", sess.ID)
		return
	}

	s.games.Add(1)
	defer s.games.Done()
	defer conn.Close()

	s.play(context.WithoutCancel(r.Context()), conn, sess, cfg, b)
}

// play runs one session over conn until it ends or the client goes away.
func (s *Server) play(ctx context.Context, conn *websocket.Conn, sess store.Session, cfg game.Config, b game.Bootstrap) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := s.logger.With("session", sess.ID)
	// The machine emits at most one GAME_OVER per session.
	sink := attest.NewChanSink(1)
	m := game.NewMachine(cfg,
		attest.NewChannel(s.cfg.Tuning.Attest, sink, attest.WithLogger(log)),
		game.WithClock(s.clock),
		game.WithLogger(log),
	)
	eng := engine.New(m,
		engine.WithJournal(s.store),
		engine.WithClock(s.clock),
		engine.WithTickInterval(s.cfg.TickInterval),
		engine.WithLogger(log),
	)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = eng.Run(ctx)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	eng.Start(sess.ID, b)
	readDone := s.readInputs(conn, eng)

	snap := time.NewTicker(s.cfg.SnapshotInterval)
	defer snap.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var grace <-chan time.Time
	for {
		select {
		case p := <-sink.C():
			_ = s.write(conn, p)

		case end := <-eng.Endings():
			out := s.conclude(ctx, sess, end)
			select {
			case p := <-sink.C():
				_ = s.write(conn, p)
			default:
			}
			_ = s.write(conn, out)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"))
			return

		case <-snap.C:
			if err := s.write(conn, snapshotMessage{Type: "snapshot", Snapshot: eng.Snapshot()}); err != nil {
				log.Debug("snapshot write failed", "error", err)
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.PingMessage, nil)

		case <-readDone:
			// The reader asked the engine to exit; give it a moment to
			// deliver the ending before giving up on the session.
			readDone = nil
			grace = time.After(exitGrace)

		case <-grace:
			s.close(ctx, sess.ID)
			return
		}
	}
}

// readInputs forwards client messages to eng until the connection fails.
// The returned channel is closed once the reader has stopped.
func (s *Server) readInputs(conn *websocket.Conn, eng *engine.Engine) <-chan struct{} {
	done := make(chan struct{})

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(done)
		defer eng.Exit()
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case msgInput:
				if in, ok := msg.input(); ok {
					eng.Input(in)
				}
			case msgExit:
				eng.Exit()
			}
		}
	}()
	return done
}

// conclude verifies an emitted score and settles it. Anything withheld closes
// the session so it can never be redeemed later.
func (s *Server) conclude(ctx context.Context, sess store.Session, end engine.Ending) OutcomeMessage {
	out := OutcomeMessage{
		Type:    "outcome",
		Score:   end.Outcome.Score,
		Aborted: end.Outcome.Aborted,
	}
	if !end.Emitted {
		s.close(ctx, sess.ID)
		return out
	}

	receipt, err := s.verifier.Verify(ctx, sess.ID, end.Payload)
	if err != nil {
		s.close(ctx, sess.ID)
		return out
	}
	res := s.settle(ctx, receipt)
	out.Accepted = !res.Disputed
	out.Result = &res
	return out
}

func (s *Server) close(ctx context.Context, id string) {
	if _, err := s.store.CloseSession(ctx, id, s.clock.Now()); err != nil {
		s.logger.Error("close session", "error", err, "session", id)
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

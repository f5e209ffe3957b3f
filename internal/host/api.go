package host

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/rewards"
	"github.com/roach88/stacktower/internal/store"
)

// maxBody caps request bodies; a GAME_OVER message is a few hundred bytes.
const maxBody = 16 << 10

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type issueRequest struct {
	Player  string `json:"player"`
	Profile string `json:"profile"`
}

type scoreRequest struct {
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

// ScoreResponse is the body returned for an accepted score.
type ScoreResponse struct {
	ReceiptID   string          `json:"receipt_id"`
	Score       int             `json:"score"`
	ReplayScore *int            `json:"replay_score,omitempty"`
	Disputed    bool            `json:"disputed,omitempty"`
	Reward      *rewards.Result `json:"reward,omitempty"`
}

// LeaderboardEntry is one line of the leaderboard.
type LeaderboardEntry struct {
	Player     string    `json:"player"`
	Score      int       `json:"score"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// PlayerResponse is a player's contract state and history.
type PlayerResponse struct {
	State    rewards.State `json:"state"`
	Receipts int           `json:"receipts"`
	Best     int           `json:"best"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.fail(w, r, http.StatusBadRequest, "MALFORMED", err.Error())
		return
	}

	cfg, err := s.gameConfig(req.Profile)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "UNKNOWN_PROFILE", err.Error())
		return
	}

	grant, err := s.issuer.Issue(req.Player, cfg.Profile.Name)
	if err != nil {
		s.logger.Error("issue session", "error", err)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not issue session")
		return
	}
	err = s.store.WriteSession(r.Context(), store.Session{
		ID:        grant.SessionID,
		Token:     grant.Token,
		Nonce:     grant.Nonce,
		Player:    grant.Player,
		Profile:   grant.Profile,
		IssuedAt:  grant.IssuedAt,
		ExpiresAt: grant.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("record session", "error", err, "session", grant.SessionID)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not issue session")
		return
	}

	s.logger.Info("session issued", "session", grant.SessionID, "player", grant.Player, "profile", grant.Profile)
	writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.fail(w, r, http.StatusBadRequest, string(attest.ErrCodeMalformed), err.Error())
		return
	}
	if req.SessionID == "" || len(req.Message) == 0 {
		s.fail(w, r, http.StatusBadRequest, string(attest.ErrCodeMalformed), "session_id and message are required")
		return
	}

	// A session played on the host is settled from its journal, never from
	// a relayed message.
	if !s.claim(req.SessionID) {
		s.fail(w, r, verifyStatus(attest.ErrCodeInPlay), string(attest.ErrCodeInPlay), "session is being played on the host")
		return
	}
	defer s.release(req.SessionID)

	inputs, err := s.store.ReadInputs(r.Context(), req.SessionID)
	if err != nil {
		s.logger.Error("read journal", "error", err, "session", req.SessionID)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not verify score")
		return
	}
	if len(inputs) > 0 {
		s.fail(w, r, verifyStatus(attest.ErrCodeInPlay), string(attest.ErrCodeInPlay), "session was played on the host")
		return
	}

	receipt, err := s.verifier.VerifyMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		var ve *attest.VerifyError
		if errors.As(err, &ve) {
			s.fail(w, r, verifyStatus(ve.Code), string(ve.Code), ve.Message)
			return
		}
		s.logger.Error("verify score", "error", err, "session", req.SessionID)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not verify score")
		return
	}

	resp := s.settle(r.Context(), receipt)
	if resp.Disputed {
		s.fail(w, r, verifyStatus(attest.ErrCodeImplausible), string(attest.ErrCodeImplausible), "score disputed by replay")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.store.TopReceipts(r.Context(), s.cfg.LeaderboardLimit)
	if err != nil {
		s.logger.Error("leaderboard", "error", err)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not read leaderboard")
		return
	}
	out := make([]LeaderboardEntry, len(receipts))
	for i, rc := range receipts {
		out[i] = LeaderboardEntry{Player: rc.Player, Score: rc.Score, AcceptedAt: rc.AcceptedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	player := r.PathValue("player")
	st, err := s.contract.GameState(r.Context(), player)
	if err != nil {
		s.logger.Error("game state", "error", err, "player", player)
		s.fail(w, r, http.StatusBadGateway, "CONTRACT", "reward contract unavailable")
		return
	}
	receipts, err := s.store.PlayerReceipts(r.Context(), player)
	if err != nil {
		s.logger.Error("player receipts", "error", err, "player", player)
		s.fail(w, r, http.StatusInternalServerError, "INTERNAL", "could not read receipts")
		return
	}

	resp := PlayerResponse{State: st, Receipts: len(receipts)}
	for _, rc := range receipts {
		if !rc.Disputed {
			resp.Best = max(resp.Best, rc.Score)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.fail(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func verifyStatus(code attest.VerifyErrorCode) int {
	switch code {
	case attest.ErrCodeMalformed, attest.ErrCodeWrongType:
		return http.StatusBadRequest
	case attest.ErrCodeBadSignature, attest.ErrCodeExpired, attest.ErrCodeTokenMismatch:
		return http.StatusUnauthorized
	case attest.ErrCodeUnknownSession:
		return http.StatusNotFound
	case attest.ErrCodeAlreadyConsumed, attest.ErrCodeInPlay:
		return http.StatusConflict
	case attest.ErrCodeImplausible:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// decodeBody reads a JSON body strictly. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

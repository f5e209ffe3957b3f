package host

import (
	"context"

	"github.com/roach88/stacktower/internal/engine"
	"github.com/roach88/stacktower/internal/store"
)

// settle finishes an accepted receipt: the journal, if there is one, is
// replayed and the score goes to the reward contract. A receipt its journal
// does not reproduce is marked disputed and never submitted.
//
// Failures here are logged and never undo the receipt.
func (s *Server) settle(ctx context.Context, r store.Receipt) ScoreResponse {
	resp := ScoreResponse{ReceiptID: r.ID, Score: r.Score}

	check := s.replay(ctx, r)
	if check.ran {
		resp.ReplayScore = &check.score
	}
	if check.disputed {
		resp.Disputed = true
		if err := s.store.MarkDisputed(ctx, r.ID); err != nil {
			s.logger.Error("mark disputed", "error", err, "receipt", r.ID)
		}
		return resp
	}

	if r.Player == "" {
		return resp
	}
	res, err := s.contract.SubmitScore(ctx, r.Player, r.Score)
	if err != nil {
		s.logger.Error("submit score", "error", err, "receipt", r.ID, "player", r.Player)
		return resp
	}
	resp.Reward = &res
	return resp
}

// replayCheck is what the journal says about a receipt. A receipt without a
// journal is neither replayed nor disputed.
type replayCheck struct {
	score    int
	ran      bool
	disputed bool
}

// replay re-simulates the session journal and records the result. A journal
// that cannot be read back or replayed disputes the receipt.
func (s *Server) replay(ctx context.Context, r store.Receipt) replayCheck {
	inputs, err := s.store.ReadInputs(ctx, r.SessionID)
	if err != nil {
		s.logger.Error("read journal", "error", err, "session", r.SessionID)
		return replayCheck{disputed: true}
	}
	if len(inputs) == 0 {
		return replayCheck{}
	}

	sess, err := s.store.ReadSession(ctx, r.SessionID)
	if err != nil {
		s.logger.Error("read session", "error", err, "session", r.SessionID)
		return replayCheck{disputed: true}
	}
	cfg, err := s.gameConfig(sess.Profile)
	if err != nil {
		s.logger.Error("replay config", "error", err, "session", r.SessionID)
		return replayCheck{disputed: true}
	}

	res, err := engine.Replay(cfg, inputs)
	if err != nil {
		s.logger.Warn("replay failed", "error", err, "session", r.SessionID)
		return replayCheck{disputed: true}
	}
	if err := s.store.SetReplayScore(ctx, r.ID, res.Score); err != nil {
		s.logger.Error("record replay", "error", err, "receipt", r.ID)
	}

	check := replayCheck{score: res.Score, ran: true}
	if res.Score != r.Score || res.Flagged {
		check.disputed = true
		s.logger.Warn("replay disputes receipt",
			"session", r.SessionID,
			"score", r.Score,
			"replay_score", res.Score,
			"replay_flagged", res.Flagged)
	}
	return check
}

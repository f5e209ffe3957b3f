package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

var issued = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func testSession(id string) Session {
	return Session{
		ID:        id,
		Token:     "token-" + id,
		Nonce:     "nonce-" + id,
		Player:    "0xplayer",
		Profile:   "pro",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(30 * time.Minute),
	}
}

func mustWriteSession(t *testing.T, s *Store, sess Session) {
	t.Helper()
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession(%s) failed: %v", sess.ID, err)
	}
}

func TestWriteSession_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := testSession("s1")
	mustWriteSession(t, s, want)

	got, err := s.ReadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if got.Token != want.Token || got.Nonce != want.Nonce || got.Player != want.Player || got.Profile != want.Profile {
		t.Errorf("ReadSession() = %+v, want %+v", got, want)
	}
	if !got.IssuedAt.Equal(want.IssuedAt) || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.IssuedAt, got.ExpiresAt, want.IssuedAt, want.ExpiresAt)
	}
	if got.Consumed() {
		t.Error("new session should not be consumed")
	}

	byToken, err := s.ReadSessionByToken(ctx, want.Token)
	if err != nil {
		t.Fatalf("ReadSessionByToken() failed: %v", err)
	}
	if byToken.ID != "s1" {
		t.Errorf("ReadSessionByToken().ID = %q, want s1", byToken.ID)
	}
}

func TestWriteSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	sess := testSession("s1")
	mustWriteSession(t, s, sess)
	mustWriteSession(t, s, sess)

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("sessions = %d, want 1", count)
	}
}

func TestWriteSession_DuplicateTokenFails(t *testing.T) {
	s := createTestStore(t)
	mustWriteSession(t, s, testSession("s1"))

	dup := testSession("s2")
	dup.Token = "token-s1"
	if err := s.WriteSession(context.Background(), dup); err == nil {
		t.Error("expected UNIQUE violation for reused token")
	}
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSessionByToken(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCloseSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustWriteSession(t, s, testSession("s1"))

	closed, err := s.CloseSession(ctx, "s1", issued.Add(time.Minute))
	if err != nil || !closed {
		t.Fatalf("CloseSession() = %v, %v; want true, nil", closed, err)
	}

	closed, err = s.CloseSession(ctx, "s1", issued.Add(2*time.Minute))
	if err != nil || closed {
		t.Errorf("second CloseSession() = %v, %v; want false, nil", closed, err)
	}

	got, _ := s.ReadSession(ctx, "s1")
	if got.ConsumedAt == nil || !got.ConsumedAt.Equal(issued.Add(time.Minute)) {
		t.Errorf("ConsumedAt = %v, want first close time", got.ConsumedAt)
	}

	if _, err := s.CloseSession(ctx, "missing", issued); !errors.Is(err, ErrNotFound) {
		t.Errorf("CloseSession(missing) err = %v, want ErrNotFound", err)
	}
}

func TestJournal_AppendAndRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustWriteSession(t, s, testSession("s1"))

	inputs := []Input{
		{SessionID: "s1", Seq: 2, Kind: InputPointer, At: issued.Add(1500 * time.Millisecond), Position: 0.125, HasPointer: true, X: 0.1, Y: -0.2},
		{SessionID: "s1", Seq: 1, Kind: InputStart, At: issued},
		{SessionID: "s1", Seq: 3, Kind: InputKey, At: issued.Add(2900 * time.Millisecond), Position: -3.75},
	}
	for _, in := range inputs {
		if err := s.AppendInput(ctx, in); err != nil {
			t.Fatalf("AppendInput(%d) failed: %v", in.Seq, err)
		}
	}
	// Retried append is a no-op.
	if err := s.AppendInput(ctx, inputs[0]); err != nil {
		t.Fatalf("retried AppendInput failed: %v", err)
	}

	got, err := s.ReadInputs(ctx, "s1")
	if err != nil {
		t.Fatalf("ReadInputs() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadInputs() returned %d inputs, want 3", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].Seq != want {
			t.Errorf("inputs[%d].Seq = %d, want %d", i, got[i].Seq, want)
		}
	}
	if p := got[1]; !p.HasPointer || p.X != 0.1 || p.Y != -0.2 || p.Position != 0.125 {
		t.Errorf("pointer input = %+v", p)
	}
	if !got[2].At.Equal(issued.Add(2900 * time.Millisecond)) {
		t.Errorf("At = %v", got[2].At)
	}
}

func testReceipt(sessionID string, score int, at time.Time) Receipt {
	return Receipt{
		ID:         "r-" + sessionID,
		SessionID:  sessionID,
		Player:     "0xplayer",
		Score:      score,
		Clicks:     score + 1,
		DurationMs: 9000,
		AcceptedAt: at,
	}
}

func TestRedeemSession_ExactlyOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustWriteSession(t, s, testSession("s1"))

	inserted, err := s.RedeemSession(ctx, testReceipt("s1", 12, issued.Add(time.Minute)))
	if err != nil || !inserted {
		t.Fatalf("RedeemSession() = %v, %v; want true, nil", inserted, err)
	}

	again := testReceipt("s1", 40, issued.Add(2*time.Minute))
	again.ID = "r-other"
	inserted, err = s.RedeemSession(ctx, again)
	if err != nil || inserted {
		t.Errorf("second RedeemSession() = %v, %v; want false, nil", inserted, err)
	}

	r, err := s.ReadReceipt(ctx, "s1")
	if err != nil {
		t.Fatalf("ReadReceipt() failed: %v", err)
	}
	if r.Score != 12 || r.Seq != 1 || r.ReplayScore != nil {
		t.Errorf("receipt = %+v, want score 12 seq 1", r)
	}

	sess, _ := s.ReadSession(ctx, "s1")
	if !sess.Consumed() {
		t.Error("session should be consumed after redeem")
	}
}

func TestRedeemSession_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	_, err := s.RedeemSession(context.Background(), testReceipt("ghost", 3, issued))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRedeemSession_ClosedSessionCannotRedeem(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustWriteSession(t, s, testSession("s1"))

	if _, err := s.CloseSession(ctx, "s1", issued); err != nil {
		t.Fatal(err)
	}
	inserted, err := s.RedeemSession(ctx, testReceipt("s1", 5, issued))
	if err != nil || inserted {
		t.Errorf("RedeemSession() on closed session = %v, %v; want false, nil", inserted, err)
	}
}

func TestTopReceipts_TiesGoToEarliest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	scores := map[string]int{"a": 10, "b": 25, "c": 25, "d": 3}
	for i, id := range []string{"a", "b", "c", "d"} {
		mustWriteSession(t, s, Session{
			ID: id, Token: "t-" + id, Nonce: "n", Profile: "pro",
			IssuedAt: issued, ExpiresAt: issued.Add(time.Hour),
		})
		if _, err := s.RedeemSession(ctx, testReceipt(id, scores[id], issued.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	top, err := s.TopReceipts(ctx, 3)
	if err != nil {
		t.Fatalf("TopReceipts() failed: %v", err)
	}
	var ids []string
	for _, r := range top {
		ids = append(ids, r.SessionID)
	}
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "c" || ids[2] != "a" {
		t.Errorf("TopReceipts() order = %v, want [b c a]", ids)
	}

	since, err := s.ReceiptsSince(ctx, issued.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 2 || since[0].SessionID != "c" {
		t.Errorf("ReceiptsSince() = %v", since)
	}

	mine, err := s.PlayerReceipts(ctx, "0xplayer")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 4 {
		t.Errorf("PlayerReceipts() = %d, want 4", len(mine))
	}
}

func TestSetReplayScore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustWriteSession(t, s, testSession("s1"))
	if _, err := s.RedeemSession(ctx, testReceipt("s1", 7, issued)); err != nil {
		t.Fatal(err)
	}

	if err := s.SetReplayScore(ctx, "r-s1", 7); err != nil {
		t.Fatalf("SetReplayScore() failed: %v", err)
	}
	r, _ := s.ReadReceipt(ctx, "s1")
	if r.ReplayScore == nil || *r.ReplayScore != 7 {
		t.Errorf("ReplayScore = %v, want 7", r.ReplayScore)
	}

	if err := s.SetReplayScore(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkDisputed_HidesFromLeaderboard(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustWriteSession(t, s, testSession("s1"))
	mustWriteSession(t, s, testSession("s2"))
	if _, err := s.RedeemSession(ctx, testReceipt("s1", 40, issued)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RedeemSession(ctx, testReceipt("s2", 3, issued)); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkDisputed(ctx, "r-s1"); err != nil {
		t.Fatalf("MarkDisputed() failed: %v", err)
	}

	top, err := s.TopReceipts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].SessionID != "s2" {
		t.Errorf("TopReceipts() = %+v, want only s2", top)
	}

	r, err := s.ReadReceipt(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Disputed {
		t.Error("receipt s1 not marked disputed")
	}

	if err := s.MarkDisputed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChanSink delivers payloads onto a buffered channel.
//
// Deliver never blocks: if the buffer is full the payload is rejected with an
// error rather than stalling the game loop.
type ChanSink struct {
	ch chan Payload
}

// NewChanSink creates a sink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSink{ch: make(chan Payload, buffer)}
}

// Deliver implements Sink.
func (s *ChanSink) Deliver(_ context.Context, p Payload) error {
	select {
	case s.ch <- p:
		return nil
	default:
		return fmt.Errorf("sink buffer full")
	}
}

// C returns the receive side.
func (s *ChanSink) C() <-chan Payload {
	return s.ch
}

// HTTPSink relays payloads to a host's score intake endpoint.
//
// The request body is {"session_id": ..., "message": <payload>}.
type HTTPSink struct {
	URL       string
	SessionID string
	Client    *http.Client
}

// relayRequest is the score intake body.
type relayRequest struct {
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

// Deliver implements Sink.
func (s *HTTPSink) Deliver(ctx context.Context, p Payload) error {
	msg, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	body, err := json.Marshal(relayRequest{SessionID: s.SessionID, Message: msg})
	if err != nil {
		return fmt.Errorf("encode relay: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("relay score: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay score: host returned %s", resp.Status)
	}
	return nil
}

package attest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageType is the only message type the game emits.
const MessageType = "GAME_OVER"

// Payload is the score message handed to the host.
//
// Nonce is omitted from the JSON when empty.
type Payload struct {
	Type       string `json:"type"`
	Score      int    `json:"score"`
	Token      string `json:"token"`
	Nonce      string `json:"nonce,omitempty"`
	Clicks     int    `json:"clicks"`
	DurationMs int64  `json:"durationMs"`
}

// MarshalJSON enforces the message type on the wire.
func (p Payload) MarshalJSON() ([]byte, error) {
	type wire Payload
	w := wire(p)
	if w.Type == "" {
		w.Type = MessageType
	}
	return json.Marshal(w)
}

// ParsePayload decodes a score message strictly.
//
// Unknown fields, trailing data and negative counters are MALFORMED; any type
// other than GAME_OVER is WRONG_TYPE.
func ParsePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return Payload{}, verifyErr(ErrCodeMalformed, "", "decode: %v", err)
	}
	if dec.More() {
		return Payload{}, verifyErr(ErrCodeMalformed, "", "trailing data after payload")
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate checks the payload's shape, not its authenticity.
func (p Payload) Validate() error {
	if p.Type != MessageType {
		return verifyErr(ErrCodeWrongType, "", "type %q", p.Type)
	}
	if p.Token == "" {
		return verifyErr(ErrCodeMalformed, "", "token is required")
	}
	if p.Score < 0 || p.Clicks < 0 || p.DurationMs < 0 {
		return verifyErr(ErrCodeMalformed, "", "negative field in %s", p)
	}
	return nil
}

func (p Payload) String() string {
	return fmt.Sprintf("GAME_OVER{score=%d clicks=%d durationMs=%d}", p.Score, p.Clicks, p.DurationMs)
}

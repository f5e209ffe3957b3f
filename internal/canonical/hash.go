package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows migrating the algorithm later.
const (
	DomainReceipt = "stacktower/receipt/v1"
	DomainJournal = "stacktower/journal/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonically marshals v and hashes it under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, data), nil
}

// ReceiptID is the content-addressed ID of an accepted score.
// The same session and payload always produce the same ID.
func ReceiptID(sessionID, token string, score, clicks int, durationMs int64) (string, error) {
	return Hash(DomainReceipt, Object{
		"session_id":  sessionID,
		"token":       token,
		"score":       score,
		"clicks":      clicks,
		"duration_ms": durationMs,
	})
}

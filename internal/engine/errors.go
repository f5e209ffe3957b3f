package engine

import (
	"errors"
	"fmt"
)

// ReplayError reports a journal that cannot be re-simulated.
type ReplayError struct {
	// Code identifies the error category.
	Code ReplayErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the journal.
	SessionID string

	// Seq is the offending entry, or 0 for the journal as a whole.
	Seq int64
}

// ReplayErrorCode categorizes replay errors.
type ReplayErrorCode string

const (
	// ErrCodeEmptyJournal indicates no entries were recorded.
	ErrCodeEmptyJournal ReplayErrorCode = "EMPTY_JOURNAL"

	// ErrCodeMissingStart indicates the first entry is not a start.
	ErrCodeMissingStart ReplayErrorCode = "MISSING_START"

	// ErrCodeOutOfOrder indicates seq or time went backwards.
	ErrCodeOutOfOrder ReplayErrorCode = "OUT_OF_ORDER"

	// ErrCodeUnknownKind indicates an entry kind the machine cannot apply.
	ErrCodeUnknownKind ReplayErrorCode = "UNKNOWN_KIND"

	// ErrCodeRejected indicates the machine refused an entry the live
	// session accepted, such as input after the session ended.
	ErrCodeRejected ReplayErrorCode = "REJECTED"
)

// Error implements the error interface.
func (e *ReplayError) Error() string {
	if e.Seq != 0 {
		return fmt.Sprintf("%s: %s (session=%s, seq=%d)", e.Code, e.Message, e.SessionID, e.Seq)
	}
	return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
}

// IsReplayError reports whether err is a *ReplayError with code.
// Uses errors.As to handle wrapped errors.
func IsReplayError(err error, code ReplayErrorCode) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

package attest

import (
	"errors"
	"fmt"
)

// DropReason names why a score was withheld at emission time.
//
// Reasons are for host-side logs only. They are never sent to the client,
// which sees a dropped score exactly like a zero score.
type DropReason string

const (
	// DropUntrustedSession means no session token was supplied at bootstrap.
	DropUntrustedSession DropReason = "UNTRUSTED_SESSION"

	// DropSuspectedAutomation means the sentinel flagged the session.
	DropSuspectedAutomation DropReason = "SUSPECTED_AUTOMATION"

	// DropSessionTooShort means the session was shorter than the minimum
	// duration, or too fast for its score.
	DropSessionTooShort DropReason = "SESSION_TOO_SHORT"

	// DropZeroScore means there was nothing to report.
	DropZeroScore DropReason = "ZERO_SCORE"
)

// DropError is returned by Gate and Channel.Emit when a score is withheld.
type DropError struct {
	Reason DropReason
	Detail string
}

func (e *DropError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("score dropped: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("score dropped: %s", e.Reason)
}

// IsDrop reports whether err is a silent drop.
// Uses errors.As to handle wrapped errors.
func IsDrop(err error) bool {
	var de *DropError
	return errors.As(err, &de)
}

// DropReasonOf extracts the drop reason from err.
func DropReasonOf(err error) (DropReason, bool) {
	var de *DropError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}

// VerifyErrorCode categorizes host-side verification failures.
type VerifyErrorCode string

const (
	// ErrCodeMalformed indicates the message is not a valid payload.
	ErrCodeMalformed VerifyErrorCode = "MALFORMED"

	// ErrCodeWrongType indicates a message type other than GAME_OVER.
	ErrCodeWrongType VerifyErrorCode = "WRONG_TYPE"

	// ErrCodeTokenMismatch indicates the token or nonce does not match the
	// session the host issued.
	ErrCodeTokenMismatch VerifyErrorCode = "TOKEN_MISMATCH"

	// ErrCodeUnknownSession indicates the host never issued the session.
	ErrCodeUnknownSession VerifyErrorCode = "UNKNOWN_SESSION"

	// ErrCodeAlreadyConsumed indicates the session already produced a
	// receipt or was closed.
	ErrCodeAlreadyConsumed VerifyErrorCode = "ALREADY_CONSUMED"

	// ErrCodeBadSignature indicates the token was not signed by this host.
	ErrCodeBadSignature VerifyErrorCode = "BAD_SIGNATURE"

	// ErrCodeExpired indicates the token's lifetime has passed.
	ErrCodeExpired VerifyErrorCode = "EXPIRED"

	// ErrCodeImplausible indicates the claimed numbers fail the host's own
	// gate, such as a duration longer than the session has existed.
	ErrCodeImplausible VerifyErrorCode = "IMPLAUSIBLE"

	// ErrCodeInPlay indicates the session is being played on the host, or
	// was, and can only be settled from its own journal.
	ErrCodeInPlay VerifyErrorCode = "IN_PLAY"
)

// VerifyError is returned when the host rejects a score message.
type VerifyError struct {
	Code      VerifyErrorCode
	Message   string
	SessionID string
}

func (e *VerifyError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsVerifyError reports whether err is a VerifyError with code.
// Uses errors.As to handle wrapped errors.
func IsVerifyError(err error, code VerifyErrorCode) bool {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

func verifyErr(code VerifyErrorCode, sessionID, format string, args ...any) *VerifyError {
	return &VerifyError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		SessionID: sessionID,
	}
}

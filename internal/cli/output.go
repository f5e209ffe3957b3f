package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit statuses. A failed check (rejected score, replay mismatch,
// failing scenario) is distinct from a command that could not run at all.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError tells main which status to exit with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError reports a failure with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process status. Errors that carry no
// ExitError count as ExitFailure.
func GetExitCode(err error) int {
	var ee *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.Code
	default:
		return ExitFailure
	}
}

// CLIResponse is the envelope every --format=json command prints.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the machine-readable half of a failure.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter prints a command's result in the selected format.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) wantsJSON() bool { return f.Format == "json" }

// Success prints data. Text output goes through text when it is non-nil
// and falls back to the default formatting of data.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	switch {
	case f.wantsJSON():
		return f.encode(CLIResponse{Status: "ok", Data: data})
	case text != nil:
		text(f.Writer)
	default:
		fmt.Fprintln(f.Writer, data)
	}
	return nil
}

// Error prints a coded failure. data and details only appear in JSON.
func (f *OutputFormatter) Error(code, message string, data, details any) error {
	if !f.wantsJSON() {
		_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		return err
	}
	return f.encode(CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: code, Message: message, Details: details},
	})
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

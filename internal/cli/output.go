package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation was refused (validation, state, offline)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, store failure)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Store and configuration failures map to ExitCommandError, everything else
// to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrDatabase, apperrors.ErrMigration, apperrors.ErrConfig, apperrors.ErrInternal:
		return ExitCommandError
	}
	return ExitFailure
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error part of a Response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// output writes command results in the selected format.
type output struct {
	format string
	w      io.Writer
}

// success writes data as JSON or through text.
func (o output) success(data interface{}, text func(w io.Writer)) error {
	if o.format == "json" {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: "ok", Data: data})
	}
	text(o.w)
	return nil
}

// WriteError reports err on w in the given format.
func WriteError(w io.Writer, format string, err error) {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(Response{Status: "error", Error: &ErrorBody{
			Code:    string(apperrors.CodeOf(err)),
			Message: err.Error(),
		}})
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

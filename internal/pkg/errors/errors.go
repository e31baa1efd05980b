// Package errors provides classified error types for the catalog ETL.
//
// Errors are split into two classes: fatal errors abort the run before the
// summary, recoverable errors are recorded and the run continues with
// degraded output.
//
// Import Path: catalogo.cali.gov.co/etl/internal/pkg/errors
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnavailable    = errors.New("unavailable")
	ErrMissingColumns = errors.New("missing required columns")
)

// Class tells the orchestrator whether an error ends the run.
type Class string

const (
	// ClassFatal aborts the run before the summary.
	ClassFatal Class = "fatal"
	// ClassRecoverable is recorded and the run continues.
	ClassRecoverable Class = "recoverable"
)

// AppError is a structured pipeline error with a machine-readable code.
type AppError struct {
	// Code is a machine-readable error code (e.g., "INPUT_NOT_FOUND").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Class decides whether the run stops.
	Class Class `json:"class"`

	// Params carries structured context (file path, stage, columns).
	Params map[string]interface{} `json:"params,omitempty"`

	// Err is the wrapped underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must abort the run.
func (e *AppError) Fatal() bool {
	return e != nil && e.Class == ClassFatal
}

// New creates a new AppError.
func New(code, message string, class Class) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Class:   class,
	}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, message string, class Class) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Class:   class,
		Err:     err,
	}
}

// WithParams attaches structured parameters to the error.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	e.Params = params
	return e
}

// Fatalf wraps err as a fatal error.
func Fatalf(err error, code, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...), ClassFatal)
}

// Recoverablef wraps err as a recoverable error.
func Recoverablef(err error, code, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...), ClassRecoverable)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsFatal reports whether err carries a fatal AppError. Unclassified errors
// are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := IsAppError(err)
	if !ok {
		return true
	}
	return appErr.Fatal()
}

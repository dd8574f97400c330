// Package errors provides error handling for jobtrail.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// It also defines the sentinel taxonomy shared by the capture pipeline and
// the job store. Wrap a sentinel to add context while preserving its class:
//
//	return errors.Wrapf(errors.ErrFetch, "GET %s: status %d", url, code)
//
//	if errors.Is(err, errors.ErrModelTimeout) {
//	    // tell the user to retry later
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// Combining and marking
var (
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the capture pipeline and the job store.
// Use these with errors.Is() for type-safe error checking.
var (
	// ErrFetch indicates a URL could not be fetched (network failure, non-2xx, timeout)
	ErrFetch = New("fetch failed")

	// ErrParse indicates a PDF was corrupt, encrypted, or had no extractable text
	ErrParse = New("document parse failed")

	// ErrValidation indicates the input itself is unusable (e.g. empty text)
	ErrValidation = New("invalid input")

	// ErrModelUnavailable indicates the local model endpoint could not be reached
	ErrModelUnavailable = New("local model unavailable")

	// ErrModelTimeout indicates the local model did not answer within its bound
	ErrModelTimeout = New("local model timed out")

	// ErrExtractionParse indicates the model response contained no recoverable JSON object
	ErrExtractionParse = New("model response could not be parsed")

	// ErrNotFound indicates the requested job record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow
	ErrInvalidTransition = New("invalid status transition")

	// ErrStorageUnwritable indicates the store file could not be committed
	ErrStorageUnwritable = New("store not writable")
)

// Class groups sentinel errors by what the caller should do about them.
type Class string

const (
	ClassNone    Class = ""
	ClassInput   Class = "input"   // fix your input
	ClassRetry   Class = "retry"   // retry later
	ClassModel   Class = "model"   // model produced garbage
	ClassCaller  Class = "caller"  // wrong id or illegal transition
	ClassFatal   Class = "fatal"   // persistence target unusable
	ClassUnknown Class = "unknown" // not part of the taxonomy
)

// ClassOf reports the class of err, walking its wrap chain.
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case IsAny(err, ErrValidation, ErrParse):
		return ClassInput
	case IsAny(err, ErrFetch, ErrModelUnavailable, ErrModelTimeout):
		return ClassRetry
	case Is(err, ErrExtractionParse):
		return ClassModel
	case IsAny(err, ErrNotFound, ErrInvalidTransition):
		return ClassCaller
	case Is(err, ErrStorageUnwritable):
		return ClassFatal
	default:
		return ClassUnknown
	}
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsRetryable reports whether the caller may reasonably retry the same operation later
func IsRetryable(err error) bool {
	return ClassOf(err) == ClassRetry
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrapf(ErrValidation, format, args...)
}

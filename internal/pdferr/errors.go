// Package pdferr defines the error-kind taxonomy used across the detection
// core, in the same closed-enum-plus-String() shape the teacher package
// internal/pdf/errors uses for its ErrorType.
package pdferr

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of error categories (spec §7). It is not a
// concrete error type hierarchy — every Kind is carried by a single *Error
// wrapping the underlying cause.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindStorageFailure
	KindRenderFailure
	KindDetectorFailure
	KindMergerFailure
	KindPersistenceFailure
	KindCancelled
)

// String renders the Kind the way ErrorType.String renders in the teacher's
// internal/pdf/errors package.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindStorageFailure:
		return "STORAGE_FAILURE"
	case KindRenderFailure:
		return "RENDER_FAILURE"
	case KindDetectorFailure:
		return "DETECTOR_FAILURE"
	case KindMergerFailure:
		return "MERGER_FAILURE"
	case KindPersistenceFailure:
		return "PERSISTENCE_FAILURE"
	case KindCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Retryable reports whether the queue-level caller (outside this core, per
// §7) should consider re-enqueueing a job that failed with this kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindStorageFailure, KindRenderFailure:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with a Kind and optional context, the way
// forms_pdfcpu.go wraps pdfcpu errors with fmt.Errorf("...: %w", err).
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an *Error of the given kind.
func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// Wrap constructs an *Error of the given kind around cause.
func Wrap(kind Kind, context string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, returning KindUnknown otherwise.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

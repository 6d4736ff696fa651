// Package fault defines the error taxonomy shared across the dispute core.
// Persistence and business layers attach a Kind to every failure so the
// lifecycle manager can fold low-level faults into a structured result
// instead of leaking raw store errors past its boundary.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

// Possible values for Kind
const (
	KindNotFound                Kind = "NOT_FOUND"
	KindValidation              Kind = "VALIDATION_FAILURE"
	KindInvalidTransactionState Kind = "INVALID_TRANSACTION_STATE"
	KindDuplicateCase           Kind = "DUPLICATE_CASE"
	KindConnectivity            Kind = "CONNECTIVITY_FAILURE"
	KindThrottleExhausted       Kind = "THROTTLE_EXHAUSTED"
)

// Error is a classified failure. It wraps the underlying cause, if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindConnectivity when the error
// carries no classification. Unclassified errors at the core boundary are
// by definition transport-level surprises.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindConnectivity
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

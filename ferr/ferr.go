// Package ferr implements the error taxonomy of the force-method engine.
//
// Every failure mode named in the specification is a Kind, not a distinct
// Go type, so callers can branch on severity with a single switch on the
// Kind value instead of chasing a tree of wrapped error types.
package ferr

import (
	"github.com/cpmech/gosl/io"
)

// Kind enumerates the engine's failure modes.
type Kind int

const (
	ModelInvalid Kind = iota
	Hypostatic
	Unstable
	RedundantChoiceUnstable
	IllConditioned
	IntegrationFailure
	SymmetryViolation
	EquilibriumViolation
	Canceled
)

func (k Kind) String() string {
	switch k {
	case ModelInvalid:
		return "ModelInvalid"
	case Hypostatic:
		return "Hypostatic"
	case Unstable:
		return "Unstable"
	case RedundantChoiceUnstable:
		return "RedundantChoiceUnstable"
	case IllConditioned:
		return "IllConditioned"
	case IntegrationFailure:
		return "IntegrationFailure"
	case SymmetryViolation:
		return "SymmetryViolation"
	case EquilibriumViolation:
		return "EquilibriumViolation"
	case Canceled:
		return "Canceled"
	}
	return "Unknown"
}

// Error is the engine's error type. Entity names the offending model
// object (e.g. "bar 3", "joint 7") so a caller can locate it without
// re-deriving it from the message text; it is empty when a failure is
// not attributable to one entity (e.g. a global conditioning failure).
type Error struct {
	Kind   Kind
	Entity string
	msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return io.Sf("%v: %s [%s]", e.Kind, e.msg, e.Entity)
	}
	return io.Sf("%v: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind attributed to entity (use ""
// when the failure has no single offending entity).
func New(kind Kind, entity, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Entity: entity, msg: io.Sf(format, args...)}
}

// Wrap creates an Error of the given kind that carries cause as context.
func Wrap(kind Kind, entity string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Entity: entity, msg: io.Sf(format, args...), cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	fe, ok := err.(*Error)
	return ok && fe.Kind == kind
}

// Package apperror defines the error kinds shared by every stage of a
// narration batch and the helpers used to classify a wrapped error chain.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for reporting at the service boundary
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindConfiguration
	KindFormat
	KindSynthesis
	KindTranslation
	KindContractViolation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConfiguration:
		return "configuration"
	case KindFormat:
		return "format"
	case KindSynthesis:
		return "synthesis"
	case KindTranslation:
		return "translation"
	case KindContractViolation:
		return "contract_violation"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// UserFacing reports whether the kind describes a problem the caller can act on.
// Contract violations and storage failures are internal.
func (k Kind) UserFacing() bool {
	switch k {
	case KindContractViolation, KindStorage, KindUnknown:
		return false
	default:
		return true
	}
}

// Classified is implemented by package-specific error types that belong to a Kind
type Classified interface {
	ErrorKind() Kind
}

// Error is a generic classified error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements Classified
func (e *Error) ErrorKind() Kind {
	return e.Kind
}

// Input reports invalid caller input (empty text, text too long, unknown voice)
func Input(format string, args ...any) error {
	return &Error{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

// Configuration reports a missing or invalid capability setting
func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// ContractViolation reports an internal invariant breach (length or ordering mismatch)
func ContractViolation(format string, args ...any) error {
	return &Error{Kind: KindContractViolation, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a persistence failure
func Storage(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var classified Classified
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}
	return KindUnknown
}

// Is reports whether err's chain carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the single human-readable message reported to callers.
// Internal kinds are collapsed so implementation details do not leak.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if !KindOf(err).UserFacing() {
		return "internal error"
	}
	return err.Error()
}

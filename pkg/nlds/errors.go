// Package nlds holds the error taxonomy every component classifies failures
// into: user, transient system, fatal system and protocol, per the error
// handling design. Retry and catalog/monitor compensation logic dispatches
// on Kind rather than inspecting driver-specific errors at each call site.
package nlds

import (
	"errors"
	"fmt"
)

// Kind is the top-level classification of a failure.
type Kind int

const (
	// KindUser is a non-retryable failure caused by the request itself
	// (missing file, permission denied, duplicate, oversized, no such
	// holding). Fails fast, no retry.
	KindUser Kind = iota
	// KindTransient is a retryable failure of an external dependency
	// (broker drop, object-store 5xx, tape unavailable, DB deadlock).
	KindTransient
	// KindFatal halts the consuming process outright (bad credentials,
	// corrupt schema, misconfiguration). Never requeued.
	KindFatal
	// KindProtocol is a malformed envelope or unknown routing state.
	// Dead-lettered or dropped, never retried.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is the common shape of every NLDS business error: a kind, an entity
// the error concerns, a short code, a human message and the wrapped cause.
type Error struct {
	Kind       Kind
	EntityType string
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s error on %s", e.Kind, e.EntityType)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, entityType, code, message string) *Error {
	return &Error{Kind: kind, EntityType: entityType, Code: code, Message: message}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, entityType string, err error) *Error {
	return &Error{Kind: kind, EntityType: entityType, Err: err}
}

// Classify returns the Kind of err, defaulting to KindFatal for errors that
// were never explicitly classified — an unclassified error is treated as
// the least forgiving case rather than silently retried forever.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindFatal
}

// Retryable reports whether err should be retried with back-off.
func Retryable(err error) bool {
	return Classify(err) == KindTransient
}

// Common, named business errors used across components.

var (
	ErrFileNotFound      = New(KindUser, "PathDetails", "NLDS-0001", "file not found")
	ErrPermissionDenied  = New(KindUser, "PathDetails", "NLDS-0002", "permission denied")
	ErrFileTooLarge      = New(KindUser, "PathDetails", "NLDS-0003", "file too large")
	ErrDuplicateInHolding = New(KindUser, "File", "NLDS-0004", "file already exists in holding")
	ErrNoSuchHolding     = New(KindUser, "Holding", "NLDS-0005", "no such holding")
	ErrNoLocation        = New(KindUser, "File", "NLDS-0006", "file has no location")
	ErrForbidden         = New(KindUser, "Holding", "NLDS-0007", "caller is not permitted to access this holding")

	ErrMaxRetriesExceeded = New(KindUser, "PathDetails", "NLDS-0010", "retries exhausted")

	ErrMalformedEnvelope = New(KindProtocol, "Message", "NLDS-0020", "malformed message envelope")
	ErrUnknownState      = New(KindProtocol, "Message", "NLDS-0021", "unknown routing state")
)

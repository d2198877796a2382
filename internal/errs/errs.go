// Package errs defines the error taxonomy shared across the documentation
// query server: a small set of kinds usable with errors.Is, each
// constructed by wrapping an underlying cause.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the taxonomy the tool surface and CLI
// translate into JSON-RPC errors and process exit codes.
type Kind int

const (
	_ Kind = iota
	ConfigError
	NotFound
	SourceUnavailable
	IntegrityError
	BackendError
	ProtocolError
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case NotFound:
		return "NotFound"
	case SourceUnavailable:
		return "SourceUnavailable"
	case IntegrityError:
		return "IntegrityError"
	case BackendError:
		return "BackendError"
	case ProtocolError:
		return "ProtocolError"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a taxonomy-tagged error wrapping an underlying cause.
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

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.NotFound) style checks via the sentinel kinds
// below, or errors.As(err, &e) to inspect the wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func new_(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// NewConfigError reports invalid configuration (language, embedding type,
// malformed version string).
func NewConfigError(msg string, err error) error { return new_(ConfigError, msg, err) }

// NewNotFound reports a missing topic, category, or LSP file.
func NewNotFound(msg string, err error) error { return new_(NotFound, msg, err) }

// NewSourceUnavailable reports a git clone/checkout failure, unreachable
// remote peer, or unreachable prebuilt URL.
func NewSourceUnavailable(msg string, err error) error { return new_(SourceUnavailable, msg, err) }

// NewIntegrityError reports an archive missing required members, a
// metadata mismatch, or a corrupt index.
func NewIntegrityError(msg string, err error) error { return new_(IntegrityError, msg, err) }

// NewBackendError reports an embedding provider, vector-DB, or reranker
// failure.
func NewBackendError(msg string, err error) error { return new_(BackendError, msg, err) }

// NewProtocolError reports an LSP disconnection, schema mismatch, or
// initialization timeout.
func NewProtocolError(msg string, err error) error { return new_(ProtocolError, msg, err) }

// NewCancelled reports a user interrupt.
func NewCancelled(msg string, err error) error { return new_(Cancelled, msg, err) }

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ExitCode maps an error to the process exit codes named in the external
// interfaces: 0 success, 1 configuration/initialization error, 2 user
// interrupt. Callers pass nil for success.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if kind, ok := KindOf(err); ok && kind == Cancelled {
		return 2
	}
	return 1
}

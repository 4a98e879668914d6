package storage

import (
	"errors"
	"fmt"

	"github.com/slemarket/hybridstore/internal/common"
)

// Kind enumerates the failure classes an adapter can report. Callers
// branch on Kind (or errors.Is against common sentinels), never on
// message text.
type Kind string

const (
	KindCredentials    Kind = "credentials"
	KindInvalidPayload Kind = "invalid_payload"
	KindHTTP           Kind = "http"
	KindAuth           Kind = "auth"
	KindNotFound       Kind = "not_found"
	KindNetwork        Kind = "network"
	KindTimeout        Kind = "timeout"
)

// Error is the typed failure returned by every adapter operation. It
// carries the backend identity and, for HTTP failures, the status code.
type Error struct {
	Backend string
	Op      string
	Kind    Kind
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Backend, e.Op, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Backend, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Backend, e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	if e.Kind == KindNotFound {
		return common.ErrorNotFound
	}
	return e.Err
}

// Retryable reports whether the failure is transient (transport-level).
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

func newError(backend, op string, kind Kind, err error) *Error {
	return &Error{Backend: backend, Op: op, Kind: kind, Err: err}
}

// newHTTPError maps a non-2xx status onto the error taxonomy.
func newHTTPError(backend, op string, status int) *Error {
	kind := KindHTTP
	switch status {
	case 401, 403:
		kind = KindAuth
	case 404:
		kind = KindNotFound
	}
	return &Error{Backend: backend, Op: op, Kind: kind, Status: status}
}

// newTransportError classifies a failed round trip (after retries).
func newTransportError(backend, op string, err error) *Error {
	return &Error{Backend: backend, Op: op, Kind: transportKind(err), Err: err}
}

// ErrKind extracts the Kind from err if it is an adapter Error.
func ErrKind(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

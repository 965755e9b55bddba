package backend

import (
	"context"
	"errors"
	"net"
)

// Standard backend errors.
//
// Adapters wrap these sentinels with context so callers can branch on
// category with errors.Is while logs keep the concrete detail:
//
//	if errors.Is(err, backend.ErrUnavailable) { // retryable
var (
	// ErrNotFound indicates the target object or hash is already absent.
	// Call sites treat this as idempotent success, never as a failure.
	ErrNotFound = errors.New("object not found")

	// ErrUnavailable indicates the backend is temporarily unreachable or
	// overloaded. Transient: retried with bounded backoff at the adapter
	// layer before surfacing as a per-item failure.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrMalformedLocator indicates a locator the backend cannot act on.
	// Permanent: never retried.
	ErrMalformedLocator = errors.New("malformed locator")
)

// Transient reports whether an error is worth retrying.
//
// Network-level failures and explicit ErrUnavailable wraps are transient;
// context cancellation is not (the caller asked to stop, retrying would
// fight it).
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

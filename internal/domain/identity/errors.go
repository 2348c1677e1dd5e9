package identity

import "errors"

// Typed errors returned by the engine. Callers match with errors.Is; the HTTP
// layer maps them to response codes.
var (
	// ErrInvalidTenant rejects a malformed or unknown tenant identifier before
	// any store access.
	ErrInvalidTenant = errors.New("invalid tenant")

	// ErrSessionNotFound means the session token resolves to no session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the session exists but is past its validity window.
	ErrSessionExpired = errors.New("session expired")

	// ErrVerificationFailed means the identification oracle rejected the
	// supplied proof; no mutation has occurred.
	ErrVerificationFailed = errors.New("identity verification failed")

	// ErrLockContention means the cluster lock could not be acquired within the
	// bounded wait. Retryable with backoff.
	ErrLockContention = errors.New("lock contention")

	// ErrStoreUnavailable means the backing store failed; fatal for the current
	// request and never retried automatically.
	ErrStoreUnavailable = errors.New("store unavailable")
)

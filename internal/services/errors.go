package services

import "fmt"

// AuthError reports a missing, unknown, expired, or revoked capability
// token. It is surfaced to callers as HTTP 401 and never retried
// automatically.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Reason
}

// StorageError reports a record store read or write failure. It is
// retryable by the caller. The message carries enough detail to diagnose
// but never raw fragment content.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

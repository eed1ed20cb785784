package translation

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has neither an override nor a base
// locale value. It is surfaced to callers and never retried by the engine.
var ErrNotFound = errors.New("translation not found")

// ErrCacheUnavailable marks cache transport failures. It is absorbed inside
// the engine as degraded-mode logging and never crosses the public API.
var ErrCacheUnavailable = errors.New("translation cache unavailable")

// ValidationError rejects malformed or oversized input before any I/O.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConcurrentModificationError signals an optimistic lock conflict: the record
// was modified after the caller read the version it supplied. The caller
// decides whether to refetch and retry.
type ConcurrentModificationError struct {
	Key             Key
	ExpectedVersion uint
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s: expected version %d", e.Key, e.ExpectedVersion)
}

// ErrorIsNotFound validates if the supplied error is a missing translation.
func ErrorIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrorIsValidation validates if the supplied error is an input rejection.
func ErrorIsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorIsConcurrentModification validates if the supplied error is an
// optimistic lock conflict.
func ErrorIsConcurrentModification(err error) bool {
	var cme *ConcurrentModificationError
	return errors.As(err, &cme)
}

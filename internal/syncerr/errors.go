// Package syncerr normalizes failures from the storage bridge, the entity
// store, and the sync driver into a closed error taxonomy, and drives the
// retry and recovery decisions built on top of it.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind is a classified error kind. The set is closed: every failure that
// crosses a component boundary is mapped onto exactly one of these.
type Kind string

const (
	KindConnectionFailed         Kind = "connection-failed"
	KindInitializationFailed     Kind = "initialization-failed"
	KindQueryFailed              Kind = "query-failed"
	KindSyncFailed               Kind = "sync-failed"
	KindConflictResolutionFailed Kind = "conflict-resolution-failed"
	KindNetworkError             Kind = "network-error"
	KindStorageQuotaExceeded     Kind = "storage-quota-exceeded"
	KindPermissionDenied         Kind = "permission-denied"
	KindWorkerError              Kind = "worker-error"
	KindUnknown                  Kind = "unknown-error"
)

// nonRetryable kinds are terminal: permission and quota problems need user
// action, and a flawed merge decision must never be replayed automatically.
var nonRetryable = map[Kind]bool{
	KindPermissionDenied:         true,
	KindStorageQuotaExceeded:     true,
	KindConflictResolutionFailed: true,
}

// Retryable reports whether operations failing with this kind may be retried.
func (k Kind) Retryable() bool {
	return !nonRetryable[k]
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Context string // operation or component that produced the failure
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps an existing error with a kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is checks whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// UserMessage returns per-kind guidance suitable for showing to the user.
// Local-first semantics stay visible: a failed sync never implies lost
// local data.
func UserMessage(kind Kind) string {
	switch kind {
	case KindConnectionFailed:
		return "Could not reach local storage. Please restart the app."
	case KindInitializationFailed:
		return "Local storage failed to start. Please restart the app."
	case KindQueryFailed:
		return "A storage operation failed. Your data is safe; please try again."
	case KindSyncFailed:
		return "Sync didn't finish. Your changes are saved locally and will sync later."
	case KindConflictResolutionFailed:
		return "A sync conflict needs your review before it can be resolved."
	case KindNetworkError:
		return "You appear to be offline. Changes are saved locally and will sync when you're back online."
	case KindStorageQuotaExceeded:
		return "Local storage is full. Free up space to keep saving new data."
	case KindPermissionDenied:
		return "Permission was denied. Check the app's storage permissions."
	case KindWorkerError:
		return "The storage engine hit a problem and is being restarted."
	default:
		return "Something went wrong. Your local data is safe."
	}
}

package remote

import "errors"

// Failure taxonomy surfaced to the orchestrator. Every CommitBooking
// error wraps exactly one of these sentinels.
var (
	// ErrCapacityExceeded: the resource has fewer remaining units than
	// requested. Capacity does not spontaneously increase, but a
	// cancellation elsewhere may free seats, so retry up to the ceiling.
	ErrCapacityExceeded = errors.New("insufficient capacity")

	// ErrRemoteUnavailable: transient remote I/O failure, retryable.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrValidation: the booking itself is malformed. Retrying cannot
	// help; the record needs manual correction.
	ErrValidation = errors.New("invalid booking")
)

// ReasonClass maps a commit error to a short label for metrics.
func ReasonClass(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRemoteUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the failure is pointless to retry
// automatically.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation)
}

package gpu

import "errors"

var (
	// ErrUnsupported means the platform lacks a capability the ring needs.
	ErrUnsupported = errors.New("shareable surfaces are not supported")

	// ErrBusy is returned when locking a surface someone already holds, or
	// unlocking one nobody holds.
	ErrBusy = errors.New("surface busy")

	// ErrWrongOwner is returned for a surface that does not belong to the
	// device, or an unlock by a holder other than the caller.
	ErrWrongOwner = errors.New("surface not owned by caller")

	// ErrLockFailed covers every other lock or unlock failure.
	ErrLockFailed = errors.New("surface lock failed")
)

// Reason maps a lock error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrWrongOwner):
		return "wrong_owner"
	default:
		return "failed"
	}
}

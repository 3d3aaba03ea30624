package platform

import "errors"

// Capture failures, per the screen-capture primitive's contract.
var (
	ErrPermissionDenied = errors.New("screen capture permission denied")
	ErrCaptureFailure   = errors.New("window capture failed")
	ErrInvalidWindow    = errors.New("window id does not name a capturable window")
	ErrTimeout          = errors.New("platform call timed out")
)

// Non-fatal observer registration failures. Anything else fails watcher
// construction.
var (
	ErrAlreadyRegistered = errors.New("notification already registered")
	ErrUnsupported       = errors.New("notification unsupported for this process")
	ErrNotImplemented    = errors.New("notification not implemented by this process")
)

// NonFatalRegistration reports whether err is a registration failure the
// watcher tolerates.
func NonFatalRegistration(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrNotImplemented)
}

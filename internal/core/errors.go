package core

import "errors"

// Capture and negotiation failures are contained at the component boundary:
// callers render a degraded state and let the user retry, they never abort
// the hosting session.
var (
	// ErrPermissionDenied means the platform refused the capture request.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrDeviceUnavailable means no usable capture device was found.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrShareCancelled means the user dismissed the share picker.
	// Not a failure; callers treat it as a no-op.
	ErrShareCancelled = errors.New("share cancelled")
	// ErrClosed is returned by operations on a torn-down component.
	ErrClosed = errors.New("closed")
)

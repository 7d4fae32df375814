package session

import "errors"

// Sentinel errors for session operations.
var (
	// ErrNotRunning is returned by CaptureSnapshot when no device is open.
	ErrNotRunning = errors.New("session: camera not running")

	// ErrDeviceUnavailable is returned by Start when the camera cannot be opened.
	ErrDeviceUnavailable = errors.New("session: camera unavailable")

	// ErrReadFailed is returned when a snapshot frame could not be read.
	ErrReadFailed = errors.New("session: frame read failed")

	// ErrStopTimeout is returned when the loop did not exit before the
	// caller's deadline. The loop still releases the device when its
	// pending read returns.
	ErrStopTimeout = errors.New("session: timed out waiting for capture loop")

	// ErrStillStopping is returned by Start while a previous loop is
	// still draining.
	ErrStillStopping = errors.New("session: previous capture loop still running")

	// ErrInvalidDirectory is returned for an empty save directory.
	ErrInvalidDirectory = errors.New("session: invalid save directory")
)

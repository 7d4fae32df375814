package session

import (
	"errors"
	"time"
)

// Level is the severity of a Notice.
type Level string

// Notice levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the user-facing outcome of an action.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NoticeFor turns an action result into a Notice. success is shown when
// err is nil.
func NoticeFor(err error, success string) Notice {
	n := Notice{Level: LevelInfo, Message: success, Time: time.Now()}
	switch {
	case err == nil:
	case errors.Is(err, ErrDeviceUnavailable):
		n.Level, n.Message = LevelError, "Cannot open camera. Check that it is connected."
	case errors.Is(err, ErrNotRunning):
		n.Level, n.Message = LevelWarning, "Start the camera first."
	case errors.Is(err, ErrReadFailed):
		n.Level, n.Message = LevelWarning, "Could not read a frame from the camera."
	case errors.Is(err, ErrInvalidDirectory):
		n.Level, n.Message = LevelWarning, "Choose a save directory."
	case errors.Is(err, ErrStillStopping), errors.Is(err, ErrStopTimeout):
		n.Level, n.Message = LevelWarning, "Camera is still shutting down. Try again shortly."
	default:
		n.Level, n.Message = LevelError, err.Error()
	}
	return n
}

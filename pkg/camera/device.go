package camera

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrNotOpened is returned when the capture device cannot be opened.
var ErrNotOpened = errors.New("camera: device not opened")

// Device is an open capture handle.
// Implementations are not required to be safe for concurrent reads;
// callers serialize access.
type Device interface {
	// Read decodes the next frame into dst. It returns false when no
	// frame could be read.
	Read(dst *gocv.Mat) bool

	// Close releases the underlying resource.
	Close() error
}

// Opener opens a device for the given configuration.
type Opener func(cfg Config) (Device, error)

// Capture is a Device backed by an OpenCV VideoCapture.
type Capture struct {
	vc    *gocv.VideoCapture
	index int
}

// Open opens the camera at cfg.DeviceIndex and requests cfg's resolution.
// It satisfies Opener.
func Open(cfg Config) (Device, error) {
	vc, err := gocv.VideoCaptureDevice(cfg.DeviceIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %v", ErrNotOpened, cfg.DeviceIndex, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: index %d", ErrNotOpened, cfg.DeviceIndex)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	return &Capture{vc: vc, index: cfg.DeviceIndex}, nil
}

// Read grabs and decodes the next frame. Empty frames count as failures.
func (c *Capture) Read(dst *gocv.Mat) bool {
	if !c.vc.Read(dst) {
		return false
	}
	return !dst.Empty()
}

// Resolution reports the mode the driver actually selected.
func (c *Capture) Resolution() (width, height int) {
	return int(c.vc.Get(gocv.VideoCaptureFrameWidth)), int(c.vc.Get(gocv.VideoCaptureFrameHeight))
}

// Index returns the device index this capture was opened with.
func (c *Capture) Index() int {
	return c.index
}

// Close releases the camera.
func (c *Capture) Close() error {
	return c.vc.Close()
}

// Package camera provides the capture device handle and its configuration.
// Settings live in a Manager so the dashboard can change them between sessions.
package camera

import (
	"fmt"
	"time"
)

// Config holds the capture parameters applied when a device is opened.
type Config struct {
	// DeviceIndex selects the camera (0 is the system default).
	DeviceIndex int `json:"device_index"`

	// === Resolution ===
	Width  int `json:"width"`  // Requested frame width in pixels
	Height int `json:"height"` // Requested frame height in pixels

	// FrameDelayMs is the pause after each loop iteration.
	// The loop is fixed-delay, so slow reads lower the effective rate.
	FrameDelayMs int `json:"frame_delay_ms"`

	// Quality is the JPEG quality used for snapshots and the web stream (1-100).
	Quality int `json:"quality"`
}

// Limits for requested capture settings. Drivers may still pick the
// nearest supported mode.
const (
	MinWidth      = 160
	MinHeight     = 120
	MaxWidth      = 4096
	MaxHeight     = 2160
	MaxFrameDelay = 1000 // milliseconds
)

// DefaultConfig returns the 640x480, ~30 FPS configuration.
func DefaultConfig() Config {
	return Config{
		DeviceIndex:  0,
		Width:        640,
		Height:       480,
		FrameDelayMs: 33,
		Quality:      90,
	}
}

// FrameDelay returns the inter-iteration delay as a duration.
func (c Config) FrameDelay() time.Duration {
	return time.Duration(c.FrameDelayMs) * time.Millisecond
}

// String renders the config for logs.
func (c Config) String() string {
	return fmt.Sprintf("device=%d %dx%d delay=%dms q=%d", c.DeviceIndex, c.Width, c.Height, c.FrameDelayMs, c.Quality)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DeviceIndex < 0 {
		errors = append(errors, "device_index must not be negative")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.FrameDelayMs < 0 || c.FrameDelayMs > MaxFrameDelay {
		errors = append(errors, fmt.Sprintf("frame_delay_ms must be between 0 and %d", MaxFrameDelay))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

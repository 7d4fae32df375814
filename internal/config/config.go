// Package config provides configuration helpers for facecam commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Default application configuration.
const (
	DefaultCameraIndex = 0
	DefaultSaveDir     = "capture_photo"
	DefaultModelDir    = "models"
	DefaultDetector    = "ssd"
	DefaultPort        = "8080"
	DefaultLogLevel    = "info"
	DefaultDisplay     = "web"
)

// Model file names inside the model directory.
const (
	SSDProtoFile = "deploy.prototxt"
	SSDModelFile = "res10_300x300_ssd_iter_140000.caffemodel"
	YuNetFile    = "face_detection_yunet_2023mar.onnx"
)

// App holds process-level settings. Flag parsing is done in cmd/facecam;
// this struct is data only.
type App struct {
	CameraIndex int
	SaveDir     string
	ModelDir    string
	Detector    string // "ssd", "yunet" or "none"
	Port        string
	LogLevel    string
	Display     string // "web", "window" or "both"
}

// Default returns the defaults before environment overrides.
func Default() App {
	return App{
		CameraIndex: DefaultCameraIndex,
		SaveDir:     DefaultSaveDir,
		ModelDir:    DefaultModelDir,
		Detector:    DefaultDetector,
		Port:        DefaultPort,
		LogLevel:    DefaultLogLevel,
		Display:     DefaultDisplay,
	}
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (App, error) {
	cfg := Default()
	if err := cfg.LoadEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv applies FACECAM_* and LOG_LEVEL environment variables.
func (c *App) LoadEnv() error {
	if v := os.Getenv("FACECAM_CAMERA_INDEX"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: "FACECAM_CAMERA_INDEX", Message: fmt.Sprintf("not an integer: %q", v)}
		}
		c.CameraIndex = idx
	}
	if v := os.Getenv("FACECAM_SAVE_DIR"); v != "" {
		c.SaveDir = v
	}
	if v := os.Getenv("FACECAM_MODEL_DIR"); v != "" {
		c.ModelDir = v
	}
	if v := os.Getenv("FACECAM_DETECTOR"); v != "" {
		c.Detector = v
	}
	if v := os.Getenv("FACECAM_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("FACECAM_DISPLAY"); v != "" {
		c.Display = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the combination of settings.
func (c *App) Validate() error {
	if c.CameraIndex < 0 {
		return &Error{Field: "CameraIndex", Message: "camera index must not be negative"}
	}
	switch c.Detector {
	case "ssd", "yunet", "none":
	default:
		return &Error{Field: "Detector", Message: fmt.Sprintf("unknown detector %q (want ssd, yunet or none)", c.Detector)}
	}
	switch c.Display {
	case "web", "window", "both":
	default:
		return &Error{Field: "Display", Message: fmt.Sprintf("unknown display %q (want web, window or both)", c.Display)}
	}
	if c.SaveDir == "" {
		return &Error{Field: "SaveDir", Message: "save directory must not be empty"}
	}
	return nil
}

// ModelPath joins a model file name onto the model directory.
func (c *App) ModelPath(name string) string {
	return filepath.Join(c.ModelDir, name)
}

// WantsWeb reports whether the web dashboard should run.
func (c *App) WantsWeb() bool {
	return c.Display == "web" || c.Display == "both"
}

// WantsWindow reports whether the native window should run.
func (c *App) WantsWindow() bool {
	return c.Display == "window" || c.Display == "both"
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.CameraIndex != 0 {
		t.Errorf("CameraIndex = %d, want 0", cfg.CameraIndex)
	}
	if cfg.SaveDir != "capture_photo" {
		t.Errorf("SaveDir = %q, want capture_photo", cfg.SaveDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("FACECAM_CAMERA_INDEX", "2")
	t.Setenv("FACECAM_SAVE_DIR", "/tmp/shots")
	t.Setenv("FACECAM_DETECTOR", "yunet")
	t.Setenv("FACECAM_PORT", "9000")
	t.Setenv("FACECAM_DISPLAY", "both")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.CameraIndex != 2 || cfg.SaveDir != "/tmp/shots" || cfg.Detector != "yunet" ||
		cfg.Port != "9000" || cfg.Display != "both" || cfg.LogLevel != "debug" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if !cfg.WantsWeb() || !cfg.WantsWindow() {
		t.Error("display both should want web and window")
	}
}

func TestLoadEnv_BadIndex(t *testing.T) {
	t.Setenv("FACECAM_CAMERA_INDEX", "front")

	_, err := FromEnv()
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if cfgErr.Field != "FACECAM_CAMERA_INDEX" {
		t.Errorf("Field = %q", cfgErr.Field)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*App)
		field  string
	}{
		{"negative index", func(c *App) { c.CameraIndex = -1 }, "CameraIndex"},
		{"unknown detector", func(c *App) { c.Detector = "haar" }, "Detector"},
		{"unknown display", func(c *App) { c.Display = "tty" }, "Display"},
		{"empty save dir", func(c *App) { c.SaveDir = "" }, "SaveDir"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tc.field)
			}
		})
	}
}

func TestModelPath(t *testing.T) {
	cfg := Default()
	cfg.ModelDir = "/opt/models"
	want := filepath.Join("/opt/models", SSDProtoFile)
	if got := cfg.ModelPath(SSDProtoFile); got != want {
		t.Errorf("ModelPath = %q, want %q", got, want)
	}
}

package camera

import (
	"fmt"
	"strings"
	"sync"
)

// Update is a partial configuration change. Nil fields are left alone.
// Preset, when set, replaces everything but the device index before the
// other fields are applied.
type Update struct {
	Preset       *string `json:"preset,omitempty"`
	DeviceIndex  *int    `json:"device_index,omitempty"`
	Width        *int    `json:"width,omitempty"`
	Height       *int    `json:"height,omitempty"`
	FrameDelayMs *int    `json:"frame_delay_ms,omitempty"`
	Quality      *int    `json:"quality,omitempty"`
}

// View is the JSON shape of GET /api/camera.
type View struct {
	Config
	Presets []string `json:"presets"`
}

// Manager holds the configuration used by the next Start. A running
// session keeps the settings it was opened with.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange is called with a validated config before it is
	// stored, with the manager locked. Returning an error rejects the
	// change.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager holding cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores cfg.
func (m *Manager) SetConfig(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeLocked(cfg)
}

func (m *Manager) storeLocked(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}
	if m.OnConfigChange != nil {
		if err := m.OnConfigChange(cfg); err != nil {
			return fmt.Errorf("apply camera config: %w", err)
		}
	}
	m.config = cfg
	return nil
}

// Apply merges u into the current configuration and stores the result.
// The merge and the store happen under one lock, so concurrent partial
// updates compose.
func (m *Manager) Apply(u Update) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.config

	if u.Preset != nil {
		p, ok := GetPreset(*u.Preset)
		if !ok {
			return cfg, fmt.Errorf("unknown preset %q (have %s)", *u.Preset, strings.Join(PresetNames(), ", "))
		}
		p.DeviceIndex = cfg.DeviceIndex
		cfg = p
	}
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cfg.DeviceIndex, u.DeviceIndex)
	set(&cfg.Width, u.Width)
	set(&cfg.Height, u.Height)
	set(&cfg.FrameDelayMs, u.FrameDelayMs)
	set(&cfg.Quality, u.Quality)

	if err := m.storeLocked(cfg); err != nil {
		return m.config, err
	}
	return cfg, nil
}

// View returns the current configuration with the preset names.
func (m *Manager) View() View {
	return View{Config: m.GetConfig(), Presets: PresetNames()}
}

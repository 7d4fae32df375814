package camera

// Preset names accepted by the -preset flag and PUT /api/camera.
const (
	PresetDefault = "default"
	PresetQVGA    = "qvga"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetSlow    = "slow"
)

type preset struct {
	name  string
	tweak func(*Config)
}

// Ordered so listings are stable.
var presets = []preset{
	{PresetDefault, func(*Config) {}},
	// Small frames for slow USB hubs.
	{PresetQVGA, func(c *Config) { c.Width, c.Height = 320, 240 }},
	{Preset720p, func(c *Config) { c.Width, c.Height = 1280, 720 }},
	// Full HD at ~15 FPS.
	{Preset1080p, func(c *Config) { c.Width, c.Height, c.FrameDelayMs = 1920, 1080, 66 }},
	// ~5 FPS
	{PresetSlow, func(c *Config) { c.FrameDelayMs = 200 }},
}

// PresetNames lists the presets in a stable order.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.name
	}
	return names
}

// GetPreset returns the named preset built on DefaultConfig.
func GetPreset(name string) (Config, bool) {
	for _, p := range presets {
		if p.name == name {
			cfg := DefaultConfig()
			p.tweak(&cfg)
			return cfg, true
		}
	}
	return Config{}, false
}

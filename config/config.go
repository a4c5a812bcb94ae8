package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const appName = "go-midiplay"

// OutputConfig selects where scheduled MIDI goes besides the soft synth
type OutputConfig struct {
	PortName string `json:"portName,omitempty"`
}

// AudioConfig defines the host callback stream
type AudioConfig struct {
	SampleRate int    `json:"sampleRate"`
	SoundFont  string `json:"soundFont,omitempty"` // .sf2 used by the built-in synth
}

// TransportConfig holds engine defaults
type TransportConfig struct {
	HostTempo       float64 `json:"hostTempo"`                 // initial manual host clock BPM
	CompensateDrift bool    `json:"compensateDrift,omitempty"` // carry fractional ticks across blocks
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // GIMP .gpl file
}

// LogConfig controls the debug log
type LogConfig struct {
	Path  string `json:"path,omitempty"`
	Level string `json:"level,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output       OutputConfig    `json:"output,omitempty"`
	Audio        AudioConfig     `json:"audio"`
	Transport    TransportConfig `json:"transport"`
	UI           UIConfig        `json:"ui,omitempty"`
	Log          LogConfig       `json:"log,omitempty"`
	SettingsPath string          `json:"settingsPath,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 48000,
		},
		Transport: TransportConfig{
			HostTempo: 120,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file. Keys absent from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Transport.HostTempo <= 0 {
		c.Transport.HostTempo = def.Transport.HostTempo
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SettingsFile returns where player settings live: the configured path, or
// settings.json next to config.json
func (c *Config) SettingsFile() (string, error) {
	if c.SettingsPath != "" {
		return c.SettingsPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// LogFile returns the debug log path: the configured one or debug.log in
// the config directory
func (c *Config) LogFile() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

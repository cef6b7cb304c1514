// Package config loads the application's TOML configuration file. Every
// knob has a default, so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the config file looked up under the user config dir.
const DefaultFileName = "config.toml"

// Config captures the user-adjustable knobs.
type Config struct {
	Hotkeys  HotkeysConfig  `toml:"hotkeys"`
	Engine   EngineConfig   `toml:"engine"`
	Recorder RecorderConfig `toml:"recorder"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`

	// Source records where the configuration came from: "defaults" or a
	// file path.
	Source string `toml:"-"`
}

// HotkeysConfig names the fallback transport-control keys used when a
// macro does not carry its own bindings.
type HotkeysConfig struct {
	Start  string `toml:"start"`
	Stop   string `toml:"stop"`
	Record string `toml:"record"`
}

// EngineConfig holds playback timing knobs, all in milliseconds.
type EngineConfig struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	KeyTapHoldMS   int `toml:"key_tap_hold_ms"`
	StepSleepMS    int `toml:"step_sleep_ms"`
}

// RecorderConfig holds capture knobs.
type RecorderConfig struct {
	NoiseFloorMS int `toml:"noise_floor_ms"`
}

// StorageConfig selects the macro library directory. Empty means the
// per-user default.
type StorageConfig struct {
	MacrosDir string `toml:"macros_dir"`
}

// LoggingConfig defines log verbosity and output format.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Hotkeys: HotkeysConfig{
			Start:  "f8",
			Stop:   "f9",
			Record: "f7",
		},
		Engine: EngineConfig{
			PollIntervalMS: 200,
			KeyTapHoldMS:   50,
			StepSleepMS:    5,
		},
		Recorder: RecorderConfig{
			NoiseFloorMS: 80,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Source: "defaults",
	}
}

// DefaultPath returns the per-user config file path.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(configDir, "genmacro", DefaultFileName), nil
}

// Load reads the config at path, overlaying it on the defaults. A missing
// file yields the defaults without error; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// Validate reports the first nonsensical value found.
func (c Config) Validate() error {
	if c.Engine.PollIntervalMS <= 0 {
		return fmt.Errorf("engine.poll_interval_ms must be positive, got %d", c.Engine.PollIntervalMS)
	}
	if c.Engine.KeyTapHoldMS < 0 {
		return fmt.Errorf("engine.key_tap_hold_ms must not be negative, got %d", c.Engine.KeyTapHoldMS)
	}
	if c.Engine.StepSleepMS <= 0 {
		return fmt.Errorf("engine.step_sleep_ms must be positive, got %d", c.Engine.StepSleepMS)
	}
	if c.Recorder.NoiseFloorMS < 0 {
		return fmt.Errorf("recorder.noise_floor_ms must not be negative, got %d", c.Recorder.NoiseFloorMS)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

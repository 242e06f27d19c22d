package workspace

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cjy5507/csmh/internal/mission"
)

// Config is the workspace configuration, supplying defaults for missions
// that omit the corresponding fields.
type Config struct {
	DefaultMode       mission.Mode `json:"default_mode"`
	MaxConcurrency    int          `json:"max_concurrency"`
	DefaultTimeoutSec int          `json:"default_timeout_sec"`
	DefaultRetries    *int         `json:"default_retries"`
}

// DefaultConfig returns the configuration written by init.
func DefaultConfig() *Config {
	retries := 1
	return &Config{
		DefaultMode:       mission.ModeBalanced,
		MaxConcurrency:    4,
		DefaultTimeoutSec: 300,
		DefaultRetries:    &retries,
	}
}

// LoadConfig reads the workspace configuration. A missing file returns
// (nil, nil) so the mission mode table stays authoritative in uninitialized
// directories; malformed JSON is an error.
func (w *Workspace) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(w.ConfigPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", w.ConfigPath(), err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", w.ConfigPath(), err)
	}
	return &cfg, nil
}

// MissionDefaults converts the configuration into mission loading fallbacks.
// A nil receiver (no config file) yields empty fallbacks: mission fields and
// the mode table govern alone.
func (c *Config) MissionDefaults() mission.Defaults {
	if c == nil {
		return mission.Defaults{}
	}
	return mission.Defaults{
		Mode:           c.DefaultMode,
		MaxConcurrency: c.MaxConcurrency,
		TimeoutSec:     c.DefaultTimeoutSec,
		Retries:        c.DefaultRetries,
	}
}

// SaveConfig writes a configuration file.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

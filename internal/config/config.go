// Package config handles configuration loading from files, defaults, and environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/javiermolinar/cadence/internal/dateutil"
	"github.com/javiermolinar/cadence/internal/timing"
)

// Config holds the application configuration.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule"`
	Storage  StorageConfig  `toml:"storage"`
	UI       UIConfig       `toml:"ui"`
}

// ScheduleConfig holds date resolution settings.
type ScheduleConfig struct {
	MinSpan             string  `toml:"min_span"`              // window of zero-duration tasks, e.g. "1m"
	Timezone            string  `toml:"timezone"`              // IANA name or "Local"; dates without a zone are read in it
	DefaultDurationDays float64 `toml:"default_duration_days"` // used when a task is added without --duration
}

// StorageConfig holds database settings.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// UIConfig holds terminal output settings.
type UIConfig struct {
	Color      bool   `toml:"color"`
	TimeFormat string `toml:"time_format"` // Go layout, e.g. "2006-01-02 15:04"
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			MinSpan:             timing.DefaultMinSpan.String(),
			Timezone:            "Local",
			DefaultDurationDays: 0,
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		UI: UIConfig{
			Color:      true,
			TimeFormat: dateutil.DisplayLayout,
		},
	}
}

// defaultDBPath returns the default database path.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cadence.db"
	}
	return filepath.Join(home, ".local", "share", "cadence", "cadence.db")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "cadence", "config.toml")
}

// Load loads configuration from the default path, merging with defaults and env vars.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from the specified path.
// It starts with defaults, overlays file config if it exists, then applies env overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	// Try to load from file (not an error if it doesn't exist)
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads config from a file if it exists.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over file config.
func applyEnvOverrides(cfg *Config) error {
	// Schedule overrides
	if v := os.Getenv("CADENCE_MIN_SPAN"); v != "" {
		cfg.Schedule.MinSpan = v
	}
	if v := os.Getenv("CADENCE_TIMEZONE"); v != "" {
		cfg.Schedule.Timezone = v
	}
	if v := os.Getenv("CADENCE_DEFAULT_DURATION_DAYS"); v != "" {
		days, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CADENCE_DEFAULT_DURATION_DAYS: %w", err)
		}
		cfg.Schedule.DefaultDurationDays = days
	}

	// Storage overrides
	if v := os.Getenv("CADENCE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}

	// UI overrides
	if v := os.Getenv("CADENCE_UI_COLOR"); v != "" {
		color, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CADENCE_UI_COLOR: %w", err)
		}
		cfg.UI.Color = color
	}
	if v := os.Getenv("CADENCE_TIME_FORMAT"); v != "" {
		cfg.UI.TimeFormat = v
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	span, err := time.ParseDuration(c.Schedule.MinSpan)
	if err != nil {
		return fmt.Errorf("min_span must be a duration like 1m or 30s, got %q", c.Schedule.MinSpan)
	}
	if span <= 0 {
		return errors.New("min_span must be positive")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	d := c.Schedule.DefaultDurationDays
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 || d > timing.MaxDurationDays {
		return fmt.Errorf("default_duration_days must be between 0 and %d", timing.MaxDurationDays)
	}

	if c.Storage.DBPath == "" {
		return errors.New("db_path must be set")
	}
	if strings.TrimSpace(c.UI.TimeFormat) == "" {
		return errors.New("time_format must be set")
	}
	return nil
}

// MinSpanDuration returns the parsed min_span, falling back to the default
// when it is unset or invalid.
func (c *Config) MinSpanDuration() time.Duration {
	d, err := time.ParseDuration(c.Schedule.MinSpan)
	if err != nil || d <= 0 {
		return timing.DefaultMinSpan
	}
	return d
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	name := c.Schedule.Timezone
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

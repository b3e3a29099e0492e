package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"4d63.com/tz"
	"gopkg.in/yaml.v3"

	"slotcal/internal/interval"
	appLog "slotcal/internal/log"
)

// CalendarConfig names one ICS source the server may read existing
// intervals from.
type CalendarConfig struct {
	// ID is the name clients use to select the calendar.
	ID string `yaml:"id" json:"id"`
	// URL is an http(s) endpoint or a local file path.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to interpret timestamps that carry no
	// offset (e.g. "Asia/Seoul"). Values with an offset are taken as-is.
	Timezone string `yaml:"timezone" json:"timezone"`

	// TimeLayout is the Go time layout for offset-less input.
	TimeLayout string `yaml:"time_layout" json:"time_layout"`

	// Strict rejects intervals that end before they start. When false the
	// predicate is evaluated on whatever was supplied.
	Strict bool `yaml:"strict" json:"strict"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores fetched calendar bodies for conditional requests.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Calendars are the ICS sources served by /api/overlap.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") on which the
	// server re-fetches Calendars to keep the disk cache warm.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		TimeLayout:  interval.DefaultLayout,
		Strict:      true,
		LogLevel:    "info",
		CacheDir:    "./var/ics-cache",
		Calendars:   []CalendarConfig{},
		RefreshCron: "*/15 * * * *",
		BasicAuth:   nil,
	}
}

// Normalize fills in missing values so that partially-filled configs still
// behave correctly. Strict is a plain bool and keeps whatever the file says.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.TimeLayout == "" {
		c.TimeLayout = interval.DefaultLayout
	}
	switch appLog.ParseLevel(c.LogLevel) {
	case appLog.LevelDebug:
		c.LogLevel = "debug"
	case appLog.LevelError:
		c.LogLevel = "error"
	default:
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
}

// Calendar returns the calendar with the given ID.
func (c *Config) Calendar(id string) (CalendarConfig, bool) {
	for _, cal := range c.Calendars {
		if cal.ID == id {
			return cal, true
		}
	}
	return CalendarConfig{}, false
}

// Location resolves Timezone against the embedded tz database. An unknown
// zone falls back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := tz.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", c.Timezone)
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read, unmarshalled, and normalized. Keys missing
//     from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".slotcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

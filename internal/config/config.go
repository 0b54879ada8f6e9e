package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"famcal/internal/layout"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label (e.g. a family member's calendar).
	Name string `yaml:"name" json:"name"`
	// Color is forwarded to every event of this source.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LayoutConfig is the day-view layout section. Window bounds are clock
// strings ("07:00"); everything else maps 1:1 onto layout.Config.
type LayoutConfig struct {
	WindowStart            string   `yaml:"window_start" json:"window_start"`
	WindowEnd              string   `yaml:"window_end" json:"window_end"`
	SlotCount              int      `yaml:"slot_count" json:"slot_count"`
	DefaultDurationMinutes int      `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	SlotOffsetPercent      *float64 `yaml:"slot_offset_percent,omitempty" json:"slot_offset_percent,omitempty"`
	WidthMode              string   `yaml:"width_mode" json:"width_mode"`
	MatchMode              string   `yaml:"match_mode" json:"match_mode"`
	OmitHidden             bool     `yaml:"omit_hidden" json:"omit_hidden"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday"; it picks the first day of
	// /api/week when no start is given.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days expanded from ICS feeds.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BackfillDays is the number of past days expanded from ICS feeds.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// EventsFile, if set, is a JSON array of household events exported by
	// the data layer.
	EventsFile string `yaml:"events_file,omitempty" json:"events_file,omitempty"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		WeekStart:    "monday",
		RefreshCron:  "*/15 * * * *",
		HorizonDays:  14,
		BackfillDays: 7,
		LogLevel:     "info",
		CacheDir:     "./var/ics-cache",
		ICS:          []ICSConfig{},
		Layout:       defaultLayout(),
		BasicAuth:    nil,
	}
}

func defaultLayout() LayoutConfig {
	d := layout.DefaultConfig()
	return LayoutConfig{
		WindowStart:            formatClock(d.WindowStartMinute),
		WindowEnd:              formatClock(d.WindowEndMinute),
		SlotCount:              d.SlotCount,
		DefaultDurationMinutes: d.DefaultDurationMinutes,
		WidthMode:              string(d.WidthMode),
		MatchMode:              string(d.MatchMode),
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}

	l := &c.Layout
	if _, err := parseClock(l.WindowStart); err != nil {
		l.WindowStart = def.Layout.WindowStart
	}
	if _, err := parseClock(l.WindowEnd); err != nil {
		l.WindowEnd = def.Layout.WindowEnd
	}
	if l.SlotCount <= 0 {
		l.SlotCount = def.Layout.SlotCount
	}
	if l.DefaultDurationMinutes <= 0 {
		l.DefaultDurationMinutes = def.Layout.DefaultDurationMinutes
	}
	switch layout.WidthMode(l.WidthMode) {
	case layout.WidthDay, layout.WidthCluster:
	default:
		l.WidthMode = def.Layout.WidthMode
	}
	switch layout.MatchMode(l.MatchMode) {
	case layout.MatchDate, layout.MatchWeekday:
	default:
		l.MatchMode = def.Layout.MatchMode
	}
}

// LayoutConfig converts the layout section into the engine's Config.
// Call Normalize first; unparsable clocks fall back to the engine defaults.
func (c *Config) LayoutConfig() layout.Config {
	start, _ := parseClock(c.Layout.WindowStart)
	end, _ := parseClock(c.Layout.WindowEnd)
	return layout.Config{
		WindowStartMinute:      start,
		WindowEndMinute:        end,
		SlotCount:              c.Layout.SlotCount,
		DefaultDurationMinutes: c.Layout.DefaultDurationMinutes,
		SlotOffsetPercent:      c.Layout.SlotOffsetPercent,
		WidthMode:              layout.WidthMode(c.Layout.WidthMode),
		MatchMode:              layout.MatchMode(c.Layout.MatchMode),
		OmitHidden:             c.Layout.OmitHidden,
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// parseClock accepts "HH:MM" from 00:00 to 24:00.
func parseClock(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".famcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

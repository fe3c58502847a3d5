package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// BackendConfig points at the admissions backend JSON API.
type BackendConfig struct {
	// Name labels the source in logs and event metadata.
	Name string `yaml:"name" json:"name"`
	// URL is the full endpoint, e.g. http://127.0.0.1:5000/admissions/api/admissions.
	URL string `yaml:"url" json:"url" validate:"omitempty,url"`
}

// ICSConfig is one iCalendar feed, e.g. a university's public events feed.
type ICSConfig struct {
	URL string `yaml:"url" json:"url" validate:"required,url"`
	// ID is an internal identifier used for logging and event ids.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Institution is shown as the institution of every event of the feed.
	// Defaults to Name.
	Institution string `yaml:"institution,omitempty" json:"institution,omitempty"`
}

// FileConfig is a local YAML/JSON event list.
type FileConfig struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path" validate:"required"`
}

// BasicAuthConfig protects the page and the API with HTTP Basic Auth.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the contents of config.yaml.
type Config struct {
	// Listen is the HTTP listen address for the calendar page and API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone used to decide "today" and to date timed
	// ICS occurrences (e.g. "Africa/Johannesburg").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first column of the month grid:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start" validate:"oneof=monday sunday"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// RefreshCron is a standard 5-field cron schedule for reloading events.
	// Empty disables scheduled refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeout bounds a whole load; non-response counts as failure.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" validate:"gt=0"`

	// CacheDir holds the on-disk mirror of fetched bodies. Empty disables it.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// SnapshotPath is where calendar PNG snapshots are written and served
	// from (/preview.png).
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path"`

	// SnapshotPalette selects the snapshot colours:
	//   - "full" (default): the browser's colour PNG
	//   - "tricolor": reduced to black, red and white for e-ink or print
	SnapshotPalette string `yaml:"snapshot_palette" json:"snapshot_palette" validate:"oneof=full tricolor"`

	// ICS expansion window, relative to load time.
	ICSBackfillDays int `yaml:"ics_backfill_days" json:"ics_backfill_days" validate:"gte=0"`
	ICSHorizonDays  int `yaml:"ics_horizon_days" json:"ics_horizon_days" validate:"gt=0,lte=3660"`

	Backend *BackendConfig `yaml:"backend,omitempty" json:"backend,omitempty" validate:"omitempty"`
	ICS     []ICSConfig    `yaml:"ics" json:"ics" validate:"dive"`
	Files   []FileConfig   `yaml:"files" json:"files" validate:"dive"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Snapshot palettes.
const (
	PaletteFull     = "full"
	PaletteTricolor = "tricolor"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Africa/Johannesburg"
	defaultRefresh      = "*/30 * * * *"
	defaultFetchTimeout = 20 * time.Second
	defaultBackfillDays = 31
	defaultHorizonDays  = 400
)

// DefaultConfig is written on first run: the local backend as the only
// source, Monday week start, half-hourly refresh.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		WeekStart:       "monday",
		LogLevel:        "info",
		RefreshCron:     defaultRefresh,
		FetchTimeout:    defaultFetchTimeout,
		CacheDir:        "./var/cache",
		SnapshotPath:    "./var/preview.png",
		SnapshotPalette: PaletteFull,
		ICSBackfillDays: defaultBackfillDays,
		ICSHorizonDays:  defaultHorizonDays,
		Backend: &BackendConfig{
			Name: "backend",
			URL:  "http://127.0.0.1:5000/admissions/api/admissions",
		},
		ICS:   []ICSConfig{},
		Files: []FileConfig{},
	}
}

// Normalize replaces empty or out-of-range values with defaults and
// lowercases enum-like fields.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = "monday"
	}
	switch strings.ToLower(c.SnapshotPalette) {
	case PaletteTricolor:
		c.SnapshotPalette = PaletteTricolor
	default:
		c.SnapshotPalette = PaletteFull
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.ICSBackfillDays < 0 {
		c.ICSBackfillDays = 0
	}
	if c.ICSHorizonDays <= 0 {
		c.ICSHorizonDays = defaultHorizonDays
	}
	if c.Backend != nil && c.Backend.Name == "" {
		c.Backend.Name = "backend"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Files == nil {
		c.Files = []FileConfig{}
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
		}
	}
	errs = append(errs, validateStruct(c)...)
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads the YAML file at path and normalizes it. A missing file is
// created with DefaultConfig (mode 0600, parent directories included) and
// that default is returned; if writing it fails the default comes back
// together with the error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file in the
// same directory, then rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".admcal-config-*.tmp")
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

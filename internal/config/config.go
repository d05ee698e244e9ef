package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"chronoparse/internal/chrono"
)

// DefaultPattern is used when neither the config nor the caller names one.
const DefaultPattern = "{:%FT%T%z}"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url" validate:"required,url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA timezone used to display ICS occurrences
	// (e.g. "Asia/Seoul"). Timestamp parsing itself never consults it.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to refresh ICS feeds in the background.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required,cron"`

	// HorizonDays is the number of future days of occurrences to expand.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" validate:"gte=1,lte=366"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" json:"log_format" validate:"omitempty,oneof=console json"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// DefaultPattern is applied when a request does not name a pattern.
	DefaultPattern string `yaml:"default_pattern" json:"default_pattern" validate:"required,pattern"`

	// Patterns maps short names to timestamp patterns, e.g.
	//   iso8601: "{:%FT%T.%f%z}"
	Patterns map[string]string `yaml:"patterns" json:"patterns" validate:"dive,keys,required,endkeys,pattern"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics" validate:"dive"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

func defaultPatterns() map[string]string {
	return map[string]string{
		"iso8601":      "{:%FT%T.%f%z}",
		"iso8601-secs": "{:%FT%T%z}",
		"date":         "{:%F}",
		"datetime":     "{:%F %T}",
		"ics-utc":      "{:%Y%m%dT%H%M%S%z}",
		"us-12h":       "{:%m/%d/%Y %H:%M %p}",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		RefreshCron:    "*/15 * * * *",
		HorizonDays:    7,
		LogLevel:       "info",
		LogFormat:      "console",
		CacheDir:       "./var/ics-cache",
		DefaultPattern: DefaultPattern,
		Patterns:       defaultPatterns(),
		ICS:            []ICSConfig{},
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.DefaultPattern == "" {
		c.DefaultPattern = DefaultPattern
	}
	if c.Patterns == nil {
		c.Patterns = defaultPatterns()
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate checks field constraints, including that every pattern compiles.
func (c *Config) Validate() error {
	v := validator.New()
	RegisterPatternValidation(v)
	_ = v.RegisterValidation("cron", cronValidation)
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// PatternValidation accepts strings that chrono.Compile accepts.
func PatternValidation(fl validator.FieldLevel) bool {
	_, err := chrono.Compile(fl.Field().String())
	return err == nil
}

// RegisterPatternValidation adds the "pattern" tag to v.
func RegisterPatternValidation(v *validator.Validate) {
	_ = v.RegisterValidation("pattern", PatternValidation)
}

// cronValidation accepts standard five-field cron specs and descriptors
// such as "@hourly".
func cronValidation(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// Pattern resolves a pattern name to its pattern. An empty name yields the
// default pattern.
func (c *Config) Pattern(name string) (string, bool) {
	if name == "" {
		return c.DefaultPattern, true
	}
	p, ok := c.Patterns[name]
	return p, ok
}

// PatternNames returns the configured pattern names in sorted order.
func (c *Config) PatternNames() []string {
	names := make([]string, 0, len(c.Patterns))
	for n := range c.Patterns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config; if writing fails, return the default
//     config together with the write error
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
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
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".chronoparse-config-*.tmp")
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

// Package config loads ~/.config/filler/config.yaml and layers environment
// overrides on top of it. Command-line flags are applied by main.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Lang        string      `yaml:"lang"`
	SearchLimit int         `yaml:"search_limit"`
	UserAgent   string      `yaml:"user_agent"`
	Cache       CacheConfig `yaml:"cache"`
	Retry       RetryConfig `yaml:"retry"`
	Serve       ServeConfig `yaml:"serve"`
}

type CacheConfig struct {
	Enabled *bool          `yaml:"enabled"`
	Path    string         `yaml:"path"`
	TTL     *time.Duration `yaml:"ttl"` // 0s keeps entries forever
}

// On reports whether the cache is enabled; it is unless set to false.
func (c CacheConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// MaxAge returns the configured TTL, or the default when unset. Zero means
// entries never expire.
func (c CacheConfig) MaxAge() time.Duration {
	if c.TTL == nil {
		return defaultTTL
	}
	return *c.TTL
}

type RetryConfig struct {
	MaxRetries *int          `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

type ServeConfig struct {
	Port int `yaml:"port"`
}

const (
	DefaultLang      = "en"
	DefaultPort      = 19292
	defaultLimit     = 5
	defaultTTL       = 7 * 24 * time.Hour
	defaultRetries   = 3
	defaultBaseDelay = 500 * time.Millisecond
)

var langRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{1,15}$`)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// DefaultPath returns FILLER_CONFIG or ~/.config/filler/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("FILLER_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "filler", "config.yaml")
}

func setDefaults(cfg *Config) {
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.SearchLimit == 0 {
		cfg.SearchLimit = defaultLimit
	}
	if cfg.Cache.TTL == nil {
		ttl := defaultTTL
		cfg.Cache.TTL = &ttl
	}
	if cfg.Retry.MaxRetries == nil {
		n := defaultRetries
		cfg.Retry.MaxRetries = &n
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = defaultBaseDelay
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = DefaultPort
	}
}

// applyEnv overrides file values with FILLER_LANG and FILLER_CACHE_DB.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FILLER_LANG"); v != "" {
		cfg.Lang = v
	}
	if v := os.Getenv("FILLER_CACHE_DB"); v != "" {
		cfg.Cache.Path = v
	}
}

// Validate checks the final configuration, after flags have been applied.
func Validate(cfg *Config) error {
	if !langRegex.MatchString(cfg.Lang) {
		return fmt.Errorf("config: invalid lang %q (want a wiki subdomain such as en or de)", cfg.Lang)
	}
	if cfg.SearchLimit < 1 || cfg.SearchLimit > 50 {
		return fmt.Errorf("config: search_limit must be between 1 and 50, got %d", cfg.SearchLimit)
	}
	if cfg.Retry.MaxRetries != nil && *cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must not be negative")
	}
	if cfg.Retry.BaseDelay < 0 {
		return fmt.Errorf("config: retry.base_delay must not be negative")
	}
	if cfg.Cache.TTL != nil && *cfg.Cache.TTL < 0 {
		return fmt.Errorf("config: cache.ttl must not be negative")
	}
	if cfg.Serve.Port < 1 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("config: serve.port out of range: %d", cfg.Serve.Port)
	}
	return nil
}

// Load reads the config file, expands environment variables, applies
// environment overrides and defaults, and validates the result. A missing
// file is not an error: the defaults are used.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) || path == "":
	default:
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	applyEnv(&cfg)
	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

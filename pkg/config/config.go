// Package config loads server settings from defaults, an optional YAML file and
// environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"homenas/pkg/log"
	"homenas/pkg/store/local"
	"homenas/pkg/thumbnail"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseDir           = "NAS_BASE_DIR"
	EnvAddr              = "NAS_ADDR"
	EnvIndexDB           = "NAS_INDEX_DB"
	EnvMaxUploadSize     = "MAX_UPLOAD_SIZE"
	EnvEnableAuth        = "ENABLE_AUTH"
	EnvAPIKey            = "API_KEY"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
)

// AuthConfig controls the shared API key.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
	// APIKey is either the key itself or its bcrypt hash.
	APIKey string `yaml:"api_key"`
}

// RateLimitConfig limits API requests per client IP. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete server configuration.
type Config struct {
	Addr              string          `yaml:"addr"`
	StorageDir        string          `yaml:"storage_dir"`
	WebDir            string          `yaml:"web_dir"`
	IndexDB           string          `yaml:"index_db"`
	MaxUploadSize     int64           `yaml:"max_upload_size"`
	AllowedExtensions []string        `yaml:"allowed_extensions"`
	ChunkSize         int             `yaml:"chunk_size"`
	ThumbnailSize     int             `yaml:"thumbnail_size"`
	StatsTTL          time.Duration   `yaml:"stats_ttl"`
	CORSOrigins       []string        `yaml:"cors_origins"`
	ShutdownTimeout   time.Duration   `yaml:"shutdown_timeout"`
	Auth              AuthConfig      `yaml:"auth"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	Log               LogConfig       `yaml:"log"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Addr:              ":8080",
		StorageDir:        "build/data",
		WebDir:            "web",
		IndexDB:           "build/index.db",
		MaxUploadSize:     local.DefaultMaxUploadSize,
		AllowedExtensions: append([]string(nil), local.DefaultAllowedExtensions...),
		ChunkSize:         local.DefaultChunkSize,
		ThumbnailSize:     thumbnail.DefaultSize,
		StatsTTL:          5 * time.Minute,
		CORSOrigins:       []string{"*"},
		ShutdownTimeout:   10 * time.Second,
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: log.FormatConsole,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path when path is not
// empty, and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // path is an operator supplied flag
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := cfg.Decode(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func (cfg *Config) Decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables found through lookup.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(value), true
	}

	if v, ok := get(EnvBaseDir); ok && v != "" {
		cfg.StorageDir = v
	}
	if v, ok := get(EnvAddr); ok && v != "" {
		cfg.Addr = v
	}
	if v, ok := get(EnvIndexDB); ok {
		cfg.IndexDB = v
	}
	if v, ok := get(EnvAPIKey); ok {
		cfg.Auth.APIKey = v
	}
	if v, ok := get(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := get(EnvLogFormat); ok && v != "" {
		cfg.Log.Format = v
	}

	if v, ok := get(EnvMaxUploadSize); ok && v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxUploadSize, err)
		}
		cfg.MaxUploadSize = size
	}
	if v, ok := get(EnvEnableAuth); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvEnableAuth, err)
		}
		cfg.Auth.Enabled = enabled
	}
	if v, ok := get(EnvRateLimitRequests); ok && v != "" {
		requests, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRateLimitRequests, err)
		}
		cfg.RateLimit.Requests = requests
	}
	if v, ok := get(EnvRateLimitWindow); ok && v != "" {
		window, err := parseWindow(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRateLimitWindow, err)
		}
		cfg.RateLimit.Window = window
	}

	return nil
}

// parseWindow accepts plain seconds ("60") or a Go duration ("1m").
func parseWindow(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// Validate reports the first setting that cannot work.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Addr == "":
		return errors.New("listen address must not be empty")
	case cfg.StorageDir == "":
		return errors.New("storage directory must not be empty")
	case cfg.MaxUploadSize <= 0:
		return fmt.Errorf("max upload size must be positive, got %d", cfg.MaxUploadSize)
	case cfg.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	case cfg.ThumbnailSize <= 0 || cfg.ThumbnailSize > thumbnail.MaxSize:
		return fmt.Errorf("thumbnail size must be between 1 and %d, got %d", thumbnail.MaxSize, cfg.ThumbnailSize)
	case cfg.StatsTTL <= 0:
		return fmt.Errorf("stats ttl must be positive, got %s", cfg.StatsTTL)
	case cfg.Auth.Enabled && cfg.Auth.APIKey == "":
		return errors.New("auth is enabled but no API key is configured")
	case cfg.RateLimit.Requests < 0:
		return fmt.Errorf("rate limit requests must not be negative, got %d", cfg.RateLimit.Requests)
	case cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window <= 0:
		return errors.New("rate limit window must be positive")
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "", log.FormatConsole, log.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}

	return nil
}

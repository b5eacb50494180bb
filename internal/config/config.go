// Package config loads the server configuration from an optional YAML file
// and SENTINEL_* environment variables. Command line flags are applied on
// top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashley-ai/sentinel/password"
	"github.com/ashley-ai/sentinel/ratelimit"
)

// Environment variables read by Load.
const (
	EnvRedisURL    = "SENTINEL_REDIS_URL"
	EnvPostgresDSN = "SENTINEL_POSTGRES_DSN"
	EnvDataDir     = "SENTINEL_DATA_DIR"
)

type Config struct {
	Port           int      `yaml:"port"`
	DataDir        string   `yaml:"data_dir"`
	RedisURL       string   `yaml:"redis_url"`
	PostgresDSN    string   `yaml:"postgres_dsn"`
	TrustedProxies []string `yaml:"trusted_proxies"`

	Log      Log      `yaml:"log"`
	Sessions Sessions `yaml:"sessions"`
	Audit    Audit    `yaml:"audit"`
	Breach   Breach   `yaml:"breach"`

	// RateLimits overrides tiers by name.
	RateLimits map[string]ratelimit.Config `yaml:"rate_limits"`
	Password   password.Requirements        `yaml:"password"`
	Users      []User                       `yaml:"users"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Sessions struct {
	MaxPerUser      int           `yaml:"max_per_user"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type Audit struct {
	RetentionDays         int           `yaml:"retention_days"`
	RetentionInterval     time.Duration `yaml:"retention_interval"`
	StatsCacheTTL         time.Duration `yaml:"stats_cache_ttl"`
	LoginFailureThreshold int           `yaml:"login_failure_threshold"`
	LoginFailureWindow    time.Duration `yaml:"login_failure_window"`
}

type Breach struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// User is a directory entry. PasswordHash is a bcrypt hash as produced by
// "sentinel password hash".
type User struct {
	ID           string `yaml:"id"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Admin        bool   `yaml:"admin"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:    8080,
		DataDir: "./data",
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Sessions: Sessions{
			CleanupInterval: time.Hour,
		},
		Audit: Audit{
			RetentionDays:     90,
			RetentionInterval: 24 * time.Hour,
			StatsCacheTTL:     time.Minute,
		},
		Breach:   Breach{BaseURL: password.DefaultBreachURL},
		Password: password.DefaultRequirements(),
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Sessions.CleanupInterval <= 0 || c.Audit.RetentionInterval <= 0 {
		return errors.New("sessions.cleanup_interval and audit.retention_interval must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("password.min_length must be positive")
	}
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("users[%d]: username and password_hash are required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
	}
	for name, rl := range c.RateLimits {
		if rl.Limit <= 0 || rl.Window <= 0 {
			return fmt.Errorf("rate_limits.%s: limit and window must be positive", name)
		}
	}
	return nil
}

// Tiers returns the default rate limit tiers with the configured overrides.
func (c Config) Tiers() ratelimit.Tiers {
	return ratelimit.DefaultTiers().Merge(c.RateLimits)
}

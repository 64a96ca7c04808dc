// Package config provides application configuration management.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// insecureDefaultKey is the well-known development encryption key used when
// ENCRYPTION_KEY is not set. Data encrypted under it is not protected.
const insecureDefaultKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig holds the embedded database settings.
type DatabaseConfig struct {
	Path string
}

// RedisConfig holds Redis connection settings for the rate limiter.
type RedisConfig struct {
	URL string
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MasterToken is the bootstrap master token value. On first startup it is
	// hashed and stored as the init token.
	MasterToken string
	// KeyMaterial is the decoded ENCRYPTION_KEY; the storage key is derived
	// from it.
	KeyMaterial []byte
	// insecureKey records whether the well-known default key is in use.
	insecureKey bool

	Environment       string
	LogLevel          string
	CleanupInterval   time.Duration
	ActivityRetention time.Duration
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		IdleTimeout:    v.GetDuration("server.idle_timeout"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
	}

	cfg.Database = DatabaseConfig{
		Path: v.GetString("database.path"),
	}

	cfg.Redis = RedisConfig{
		URL: v.GetString("redis.url"),
	}

	keyStr := v.GetString("encryption.key")
	insecure := false
	if keyStr == "" {
		keyStr = insecureDefaultKey
		insecure = true
	}
	keyMaterial, err := hex.DecodeString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: must be 64 hex characters: %w", err)
	}
	if len(keyMaterial) != 32 {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: must be 64 hex characters (got %d). Generate with: openssl rand -hex 32", len(keyStr))
	}

	cfg.Security = SecurityConfig{
		MasterToken:       v.GetString("master.token"),
		KeyMaterial:       keyMaterial,
		insecureKey:       insecure,
		Environment:       v.GetString("env"),
		LogLevel:          v.GetString("log.level"),
		CleanupInterval:   v.GetDuration("security.cleanup_interval"),
		ActivityRetention: v.GetDuration("security.activity_retention"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:  v.GetBool("rate_limit.enabled"),
		Requests: v.GetInt("rate_limit.requests"),
		Window:   v.GetDuration("rate_limit.window"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "vaulty.db")

	// Redis defaults (rate limiting is opt-in)
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	// Security defaults
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("security.cleanup_interval", 24*time.Hour)
	v.SetDefault("security.activity_retention", 7*24*time.Hour)

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", 60*time.Second)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.Security.MasterToken == "" {
		return fmt.Errorf("MASTER_TOKEN is required")
	}
	if c.IsProduction() && c.Security.insecureKey {
		return fmt.Errorf("ENCRYPTION_KEY is required in production. Generate with: openssl rand -hex 32")
	}
	return nil
}

// IsInsecureKey reports whether the well-known default encryption key is in
// use. Callers surface this as a standing warning.
func (c *Config) IsInsecureKey() bool {
	return c.Security.insecureKey
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Security.Environment == "production"
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Security.Environment == "development"
}

// ServerAddr returns the full server address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

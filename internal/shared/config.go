package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the config file.
const (
	EnvAPIURL   = "AUTOHAUS_API_URL"
	EnvUsername = "AUTOHAUS_USERNAME"
	EnvPassword = "AUTOHAUS_PASSWORD"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Auth     AuthConfig     `toml:"auth"`
	Stream   StreamConfig   `toml:"stream"`
	Listing  ListingConfig  `toml:"listing"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"` // requests per second, 0 disables limiting
}

// AuthConfig selects where the token pair is persisted.
type AuthConfig struct {
	Store     string `toml:"store"` // file, database or memory
	TokenPath string `toml:"token_path"`
	LoginPath string `toml:"login_path"`
}

// StreamConfig contains event stream settings.
type StreamConfig struct {
	GracePeriodMS  int    `toml:"grace_period_ms"`
	HeartbeatEvent string `toml:"heartbeat_event"`
	SyncPath       string `toml:"sync_path"`
	WritePath      string `toml:"write_path"`
}

// ListingConfig selects the source of the public event listing.
type ListingConfig struct {
	Source     string `toml:"source"` // file or api
	EventsPath string `toml:"events_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	CacheSeconds int    `toml:"cache_seconds"` // how long a loaded listing is served, 0 reloads per request
}

// Timeout returns the configured request timeout.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GracePeriod returns the configured error classification delay.
func (c StreamConfig) GracePeriod() time.Duration {
	if c.GracePeriodMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.GracePeriodMS) * time.Millisecond
}

// Addr returns host:port for the listing server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheTTL returns how long the listing server reuses loaded events.
func (c ServerConfig) CacheTTL() time.Duration {
	if c.CacheSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CacheSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Auth.Store {
	case "file", "database", "memory":
	default:
		return fmt.Errorf("%w: unknown auth.store %q", ErrInvalidConfig, c.Auth.Store)
	}

	switch c.Listing.Source {
	case "file", "api":
	default:
		return fmt.Errorf("%w: unknown listing.source %q", ErrInvalidConfig, c.Listing.Source)
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is empty", ErrInvalidConfig)
	}
	return nil
}

// LoadEnv reads a dotenv file into the process environment and applies overrides to c.
//
// A missing file is not an error.
func LoadEnv(c *Config, path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	return nil
}

// Credentials returns the username and password from the environment, if both are set.
func Credentials() (string, string, bool) {
	user, pass := os.Getenv(EnvUsername), os.Getenv(EnvPassword)
	return user, pass, user != "" && pass != ""
}

// ExpandHome replaces a leading "~" in path with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

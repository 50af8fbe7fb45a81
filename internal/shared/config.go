package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Backend  BackendConfig  `toml:"backend"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Video    VideoConfig    `toml:"video"`
	Report   ReportConfig   `toml:"report"`
}

// ProviderConfig points at the identity provider that also hosts the settings table.
type ProviderConfig struct {
	URL     string `toml:"url"`
	AnonKey string `toml:"anon_key"`
}

// BackendConfig points at the detections backend.
type BackendConfig struct {
	URL string `toml:"url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the web dashboard.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	SessionSecret string `toml:"session_secret"`
}

// VideoConfig holds the live video defaults.
//
// DefaultServer seeds a user's settings row, DefaultFeed is shown when settings cannot be read.
type VideoConfig struct {
	DefaultFeed   string `toml:"default_feed"`
	DefaultServer string `toml:"default_server"`
}

// ReportConfig controls the exported detections report.
type ReportConfig struct {
	Title    string `toml:"title"`
	Filename string `toml:"filename"`
	Timezone string `toml:"timezone"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
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

// ApplyEnv overrides provider settings from SUPABASE_URL and SUPABASE_ANON_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("SUPABASE_URL")); v != "" {
		c.Provider.URL = v
	}
	if v := strings.TrimSpace(getenv("SUPABASE_ANON_KEY")); v != "" {
		c.Provider.AnonKey = v
	}
}

// Validate reports the first missing required value.
func (c *Config) Validate() error {
	switch {
	case c.Provider.URL == "":
		return fmt.Errorf("%w: provider.url is required", ErrInvalidConfig)
	case c.Backend.URL == "":
		return fmt.Errorf("%w: backend.url is required", ErrInvalidConfig)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Addr returns the host:port the web dashboard listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Location resolves the report timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Report.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: report.timezone: %v", ErrInvalidConfig, err)
	}
	return loc, nil
}

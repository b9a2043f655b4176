package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Traffic TrafficConfig `toml:"traffic"` // Traffic-data source and refresh settings
	Storage StorageConfig `toml:"storage"` // Data persistence settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Metrics MetricsConfig `toml:"metrics"` // Prometheus metrics settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// TrafficConfig contains traffic-data source configuration
type TrafficConfig struct {
	// Network selects the status-file layout variant.
	// Allowed values: "vatsim", "ivao". The field layout of the status file
	// is a versioned contract per network, see internal/traffic/variant.go.
	Network string `toml:"network"`

	// StatusURLs lists the status-file endpoints to poll. The client rotates
	// through them round-robin so a single slow mirror doesn't dominate.
	StatusURLs []string `toml:"status_urls"`

	FetchIntervalSecs  int `toml:"fetch_interval_seconds"`  // How often to run a refresh cycle (in seconds)
	RequestTimeoutSecs int `toml:"request_timeout_seconds"` // HTTP timeout for status-file fetches in seconds
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// MetricsConfig contains prometheus metrics configuration
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`   // Enable the /metrics endpoint
	Namespace string `toml:"namespace"` // Metric namespace prefix (default: "traffic")
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}

	// Validate traffic config
	if c.Traffic.Network == "" {
		c.Traffic.Network = "vatsim"
	}
	if c.Traffic.Network != "vatsim" && c.Traffic.Network != "ivao" {
		return fmt.Errorf("invalid traffic network: %s (must be 'vatsim' or 'ivao')", c.Traffic.Network)
	}
	if len(c.Traffic.StatusURLs) == 0 {
		return fmt.Errorf("at least one status_urls entry is required")
	}
	for i, u := range c.Traffic.StatusURLs {
		if u == "" {
			return fmt.Errorf("status_urls entry #%d is empty", i+1)
		}
	}
	if c.Traffic.FetchIntervalSecs <= 0 {
		return fmt.Errorf("invalid fetch interval: %d", c.Traffic.FetchIntervalSecs)
	}
	if c.Traffic.RequestTimeoutSecs <= 0 {
		c.Traffic.RequestTimeoutSecs = 30
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate metrics config
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "traffic"
	}

	return nil
}

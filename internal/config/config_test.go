package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Traffic: TrafficConfig{
			StatusURLs:        []string{"http://example.com/data.txt"},
			FetchIntervalSecs: 120,
		},
		Storage: StorageConfig{SQLitePath: "data/traffic.db"},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "vatsim", cfg.Traffic.Network)
	assert.Equal(t, 30, cfg.Traffic.RequestTimeoutSecs)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad network", func(c *Config) { c.Traffic.Network = "pilotedge" }},
		{"no status urls", func(c *Config) { c.Traffic.StatusURLs = nil }},
		{"empty status url", func(c *Config) { c.Traffic.StatusURLs = []string{""} }},
		{"bad fetch interval", func(c *Config) { c.Traffic.FetchIntervalSecs = 0 }},
		{"bad storage type", func(c *Config) { c.Storage.Type = "postgres" }},
		{"missing sqlite path", func(c *Config) { c.Storage.SQLitePath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9090
host = "0.0.0.0"

[traffic]
network = "ivao"
status_urls = ["http://wx.ivao.aero/whazzup.txt"]
fetch_interval_seconds = 60

[storage]
sqlite_path = "data/test.db"

[metrics]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "ivao", cfg.Traffic.Network)
	assert.Equal(t, 60, cfg.Traffic.FetchIntervalSecs)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "traffic", cfg.Metrics.Namespace)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutFile(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), logger)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "zerodha", cfg.Auth.BrokerName)
	assert.Equal(t, "Asia/Taipei", cfg.Exchange.Timezone)
	assert.Equal(t, []string{"5s", "1m", "5m", "1h", "1d"}, cfg.Data.Timeframes)
	assert.Equal(t, []string{"TXF", "TSE"}, cfg.Data.Symbols)
	assert.Equal(t, 4, cfg.Data.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Broker.RequestDelay)

	loc, err := cfg.Location()
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  root: /srv/bars
  symbols: [TXF]
  workers: 2
broker:
  request_delay: 250ms
instruments:
  supported:
    TXF: TXFD4
log:
  level: debug
`), 0644))
	t.Setenv("TXBARS_WORKERS", "8")
	t.Setenv("TXBARS_LOG_FORMAT", "json")

	logger, _ := test.NewNullLogger()
	cfg, err := LoadConfig(path, logger)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/srv/bars", cfg.Data.Root)
	assert.Equal(t, []string{"TXF"}, cfg.Data.Symbols)
	assert.Equal(t, 8, cfg.Data.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.RequestDelay)
	// viper lower-cases map keys.
	assert.Equal(t, map[string]string{"txf": "TXFD4"}, cfg.Instruments.Supported)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidateRejects(t *testing.T) {
	logger, _ := test.NewNullLogger()
	base, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), logger)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timezone", func(c *Config) { c.Exchange.Timezone = "Mars/Olympus" }},
		{"zero workers", func(c *Config) { c.Data.Workers = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"empty symbol", func(c *Config) { c.Data.Symbols = []string{""} }},
		{"bad auth url", func(c *Config) { c.Auth.AuthServiceURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Data.Symbols = append([]string(nil), base.Data.Symbols...)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("FileValues", func(t *testing.T) {
		dir := t.TempDir()
		yml := `
database:
  dsn: "file.db"
quote:
  base_url: "http://quotes.local"
  ticker_map:
    ".t": ":TYO"
alerts:
  tick_interval: 30
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, "file.db", cfg.Database.DSN)
		assert.Equal(t, "http://quotes.local", cfg.Quote.BaseURL)
		assert.Equal(t, 30, cfg.Alerts.TickInterval)
		// viper lower-cases map keys
		assert.Equal(t, ":TYO", cfg.Quote.TickerMap[".t"])
	})

	t.Run("Defaults", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("server:\n  port: 9000\n"), 0o600))

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 60, cfg.Alerts.TickInterval)
		assert.Equal(t, 4, cfg.Alerts.Workers)
		assert.Equal(t, 5.0, cfg.Alerts.DefaultThreshold)
		assert.Equal(t, 3, cfg.Quote.MaxRetries)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(t.TempDir())
		assert.Error(t, err)
	})
}

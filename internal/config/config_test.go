package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PAPER_DATA_DIR", "PAPER_STORAGE_BACKEND", "PAPER_LEDGER_FILE", "PAPER_TRADE_LOG_FILE",
		"PAPER_SQLITE_FILE", "PAPER_MARKET_PROVIDER", "PAPER_MARKET_TZ", "PAPER_LOOKUP_TIMEOUT",
		"PAPER_MAX_LOOKUPS", "PAPER_STARTING_CASH", "PAPER_LOG_LEVEL", "PAPER_LOG_FILE",
		"PAPER_LOG_MAX_SIZE_MB", "PAPER_LOG_MAX_BACKUPS", "PAPER_LOG_PRETTY",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "APCA_API_DATA_URL", "APCA_DATA_FEED",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "csv", cfg.Storage.Backend)
	assert.Equal(t, ProviderYahoo, cfg.Market.Provider)
	assert.Equal(t, 10*time.Second, cfg.Market.LookupTimeout)
	assert.Equal(t, 10000.0, cfg.Portfolio.StartingCash)
	assert.Equal(t, filepath.Join("data", "portfolio_update.csv"), cfg.LedgerPath())
	assert.Equal(t, filepath.Join("data", "trade_log.csv"), cfg.TradeLogPath())
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.yaml")
	yml := `
data_dir: /var/lib/paper
storage:
  backend: sqlite
market:
  provider: yahoo
  lookup_timeout: 3s
  max_concurrent: 8
portfolio:
  starting_cash: 2500
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("PAPER_MAX_LOOKUPS", "2")
	t.Setenv("PAPER_STARTING_CASH", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/paper/portfolio.db", cfg.SQLitePath())
	assert.Equal(t, 3*time.Second, cfg.Market.LookupTimeout)
	assert.Equal(t, 2, cfg.Market.MaxConcurrent)
	assert.Equal(t, 2500.0, cfg.Portfolio.StartingCash)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestValidate_AlpacaNeedsCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAPER_MARKET_PROVIDER", "alpaca")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APCA_API_KEY_ID")
	assert.Contains(t, err.Error(), "APCA_API_SECRET_KEY")

	t.Setenv("APCA_API_KEY_ID", "PKTESTKEY1234")
	t.Setenv("APCA_API_SECRET_KEY", "supersecretvalue")
	cfg, err := Load("")
	require.NoError(t, err)

	desc := cfg.Describe()
	assert.Contains(t, desc, "alpaca.api_key=***1234")
	assert.Contains(t, desc, "alpaca.api_secret=***alue")
	for _, line := range desc {
		assert.NotContains(t, line, "supersecretvalue")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"backend", func(c *Config) { c.Storage.Backend = "parquet" }},
		{"provider", func(c *Config) { c.Market.Provider = "bloomberg" }},
		{"timezone", func(c *Config) { c.Market.Timezone = "Mars/Olympus" }},
		{"timeout", func(c *Config) { c.Market.LookupTimeout = 0 }},
		{"cash", func(c *Config) { c.Portfolio.StartingCash = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "***6789", mask("123456789"))
}

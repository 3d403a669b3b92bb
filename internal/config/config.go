package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // market timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration. It is built once in main and
// handed to constructors; nothing in the process reads it from a global.
type Config struct {
	DataDir   string    `yaml:"data_dir"`
	Storage   Storage   `yaml:"storage"`
	Market    Market    `yaml:"market"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Portfolio Portfolio `yaml:"portfolio"`
	Logging   Logging   `yaml:"logging"`

	// Warnings collected while loading, logged once the logger exists.
	Warnings []string `yaml:"-"`
}

// Storage selects the ledger backend. Relative file names live under DataDir.
type Storage struct {
	Backend      string `yaml:"backend"` // csv | sqlite
	LedgerFile   string `yaml:"ledger_file"`
	TradeLogFile string `yaml:"trade_log_file"`
	SQLiteFile   string `yaml:"sqlite_file"`
}

// Market configures price lookups and the trading calendar.
type Market struct {
	Provider      string        `yaml:"provider"` // alpaca | yahoo
	Timezone      string        `yaml:"timezone"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"` // iex | sip
}

// Portfolio holds simulation defaults.
type Portfolio struct {
	StartingCash float64 `yaml:"starting_cash"`
}

// Logging configures the application logger.
type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Pretty     bool   `yaml:"pretty"`
}

const (
	ProviderAlpaca = "alpaca"
	ProviderYahoo  = "yahoo"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Storage: Storage{
			Backend:      "csv",
			LedgerFile:   "portfolio_update.csv",
			TradeLogFile: "trade_log.csv",
			SQLiteFile:   "portfolio.db",
		},
		Market: Market{
			Provider:      ProviderYahoo,
			Timezone:      "America/New_York",
			LookupTimeout: 10 * time.Second,
			MaxConcurrent: 4,
		},
		Alpaca:    Alpaca{Feed: "iex"},
		Portfolio: Portfolio{StartingCash: 10000},
		Logging: Logging{
			Level:      "info",
			File:       "paper_trader.log",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path, then .env, then the process environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Load .env variables into the process environment
	if err := godotenv.Load(); err != nil {
		cfg.Warnings = append(cfg.Warnings, "no .env file found, using system environment variables")
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.DataDir = c.getEnv("PAPER_DATA_DIR", c.DataDir)

	c.Storage.Backend = c.getEnv("PAPER_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.LedgerFile = c.getEnv("PAPER_LEDGER_FILE", c.Storage.LedgerFile)
	c.Storage.TradeLogFile = c.getEnv("PAPER_TRADE_LOG_FILE", c.Storage.TradeLogFile)
	c.Storage.SQLiteFile = c.getEnv("PAPER_SQLITE_FILE", c.Storage.SQLiteFile)

	c.Market.Provider = c.getEnv("PAPER_MARKET_PROVIDER", c.Market.Provider)
	c.Market.Timezone = c.getEnv("PAPER_MARKET_TZ", c.Market.Timezone)
	c.Market.LookupTimeout = c.getEnvAsDuration("PAPER_LOOKUP_TIMEOUT", c.Market.LookupTimeout)
	c.Market.MaxConcurrent = c.getEnvAsInt("PAPER_MAX_LOOKUPS", c.Market.MaxConcurrent)

	c.Portfolio.StartingCash = c.getEnvAsFloat64("PAPER_STARTING_CASH", c.Portfolio.StartingCash)

	c.Logging.Level = c.getEnv("PAPER_LOG_LEVEL", c.Logging.Level)
	c.Logging.File = c.getEnv("PAPER_LOG_FILE", c.Logging.File)
	c.Logging.MaxSizeMB = c.getEnvAsInt("PAPER_LOG_MAX_SIZE_MB", c.Logging.MaxSizeMB)
	c.Logging.MaxBackups = c.getEnvAsInt("PAPER_LOG_MAX_BACKUPS", c.Logging.MaxBackups)
	c.Logging.Pretty = c.getEnvAsBool("PAPER_LOG_PRETTY", c.Logging.Pretty)

	// Standard Alpaca env vars, the names the SDK itself reads.
	c.Alpaca.APIKey = c.getEnv("APCA_API_KEY_ID", c.Alpaca.APIKey)
	c.Alpaca.APISecret = c.getEnv("APCA_API_SECRET_KEY", c.Alpaca.APISecret)
	c.Alpaca.DataURL = c.getEnv("APCA_API_DATA_URL", c.Alpaca.DataURL)
	c.Alpaca.Feed = c.getEnv("APCA_DATA_FEED", c.Alpaca.Feed)
}

// Validate checks the values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var errs []error

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "csv":
		if c.Storage.LedgerFile == "" || c.Storage.TradeLogFile == "" {
			errs = append(errs, errors.New("storage: ledger_file and trade_log_file are required for csv"))
		}
	case "sqlite":
		if c.Storage.SQLiteFile == "" {
			errs = append(errs, errors.New("storage: sqlite_file is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}

	c.Market.Provider = strings.ToLower(strings.TrimSpace(c.Market.Provider))
	switch c.Market.Provider {
	case ProviderYahoo:
	case ProviderAlpaca:
		// Define which variables are critical for this provider.
		var missing []string
		if c.Alpaca.APIKey == "" {
			missing = append(missing, "APCA_API_KEY_ID")
		}
		if c.Alpaca.APISecret == "" {
			missing = append(missing, "APCA_API_SECRET_KEY")
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("alpaca: missing required variables: %v", missing))
		}
	default:
		errs = append(errs, fmt.Errorf("market: unknown provider %q", c.Market.Provider))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("market: timezone: %w", err))
	}
	if c.Market.LookupTimeout <= 0 {
		errs = append(errs, errors.New("market: lookup_timeout must be positive"))
	}
	if c.Market.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("market: max_concurrent must be positive"))
	}
	if c.Portfolio.StartingCash <= 0 {
		errs = append(errs, errors.New("portfolio: starting_cash must be positive"))
	}

	return errors.Join(errs...)
}

// Location returns the market timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Market.Timezone)
}

// LedgerPath, TradeLogPath and SQLitePath resolve file names against DataDir.
func (c *Config) LedgerPath() string   { return c.resolve(c.Storage.LedgerFile) }
func (c *Config) TradeLogPath() string { return c.resolve(c.Storage.TradeLogFile) }
func (c *Config) SQLitePath() string   { return c.resolve(c.Storage.SQLiteFile) }

// LogPath resolves the log file; empty disables file logging.
func (c *Config) LogPath() string {
	if c.Logging.File == "" {
		return ""
	}
	return c.resolve(c.Logging.File)
}

func (c *Config) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// Describe lists the effective settings with secrets masked.
func (c *Config) Describe() []string {
	return []string{
		"data_dir=" + c.DataDir,
		"storage.backend=" + c.Storage.Backend,
		"market.provider=" + c.Market.Provider,
		"market.timezone=" + c.Market.Timezone,
		fmt.Sprintf("market.lookup_timeout=%s", c.Market.LookupTimeout),
		fmt.Sprintf("market.max_concurrent=%d", c.Market.MaxConcurrent),
		"alpaca.api_key=" + mask(c.Alpaca.APIKey),
		"alpaca.api_secret=" + mask(c.Alpaca.APISecret),
		"alpaca.feed=" + c.Alpaca.Feed,
		fmt.Sprintf("portfolio.starting_cash=%.2f", c.Portfolio.StartingCash),
		"logging.level=" + c.Logging.Level,
	}
}

// mask shows only the last 4 chars of a secret.
func mask(val string) string {
	if val == "" {
		return ""
	}
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}

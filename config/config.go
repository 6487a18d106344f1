package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Collector CollectorConfig `mapstructure:"collector"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Symbols   []SymbolConfig  `mapstructure:"symbols"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

// CollectorConfig selects the run mode.
type CollectorConfig struct {
	Mode string `mapstructure:"mode"` // "poll", "stream", "both", or "once"
}

// QuoteConfig configures the JSON-RPC quote endpoint (poll mode).
type QuoteConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Interval       time.Duration `mapstructure:"interval"`
	SymbolDelay    time.Duration `mapstructure:"symbol_delay"`
	Concurrency    int           `mapstructure:"concurrency"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// FeedConfig configures the streaming feed (stream mode).
type FeedConfig struct {
	URL            string          `mapstructure:"url"`
	ReceiveTimeout time.Duration   `mapstructure:"receive_timeout"`
	Channels       []string        `mapstructure:"channels"`
	ReportInterval time.Duration   `mapstructure:"report_interval"`
	Reconnect      ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig tunes the stream supervisor's backoff policy.
type ReconnectConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MaxAttempts    int           `mapstructure:"max_attempts"` // 0 = retry indefinitely
	HealthyAfter   time.Duration `mapstructure:"healthy_after"`
}

// SymbolConfig maps a display ticker to its source-specific identifiers.
// The set is loaded once at startup and immutable for the process lifetime.
type SymbolConfig struct {
	Ticker    string `mapstructure:"ticker"`     // e.g. "BTC"
	QuoteID   string `mapstructure:"quote_id"`   // e.g. "COINBASE_SPOT_BTC_USD"
	ProductID string `mapstructure:"product_id"` // e.g. "BTC-USD"
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads .env, then config.yaml, and overrides with environment variables.
func Load() (*Config, error) {
	// Secrets (endpoint URL, DB password) come from the environment; a local
	// .env file is optional.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}
	v.AddConfigPath(".")

	// Support environment variables with dot notation (e.g., QUOTE_ENDPOINT)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Quote.Endpoint = strings.TrimRight(cfg.Quote.Endpoint, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collector.mode", "poll")

	v.SetDefault("quote.timeout", 5*time.Second)
	v.SetDefault("quote.interval", 10*time.Second)
	v.SetDefault("quote.symbol_delay", 100*time.Millisecond)
	v.SetDefault("quote.concurrency", 1)
	v.SetDefault("quote.report_interval", 300*time.Second)

	v.SetDefault("feed.url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("feed.receive_timeout", 1*time.Second)
	v.SetDefault("feed.channels", []string{"ticker", "matches", "heartbeat"})
	v.SetDefault("feed.report_interval", 300*time.Second)
	v.SetDefault("feed.reconnect.initial_backoff", 1*time.Second)
	v.SetDefault("feed.reconnect.max_backoff", 60*time.Second)
	v.SetDefault("feed.reconnect.max_attempts", 0)
	v.SetDefault("feed.reconnect.healthy_after", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
}

// Validate checks the values that must be present before startup.
func (c *Config) Validate() error {
	switch c.Collector.Mode {
	case "poll", "stream", "both", "once":
	default:
		return fmt.Errorf("invalid collector mode: %q", c.Collector.Mode)
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	for _, s := range c.Symbols {
		if s.Ticker == "" {
			return fmt.Errorf("symbol entry missing ticker")
		}
	}

	needsQuote := c.Collector.Mode == "poll" || c.Collector.Mode == "both" || c.Collector.Mode == "once"
	if needsQuote && c.Quote.Endpoint == "" {
		return fmt.Errorf("quote.endpoint is required in %s mode", c.Collector.Mode)
	}

	needsFeed := c.Collector.Mode == "stream" || c.Collector.Mode == "both"
	if needsFeed && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required in %s mode", c.Collector.Mode)
	}

	if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.DBName == "" {
		return fmt.Errorf("postgres host, user and dbname are required")
	}

	return nil
}

// Package config loads runtime configuration from defaults, an optional
// config.yaml and CLINIC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"clinicledger/internal/core/numerator"
	"clinicledger/internal/domain/inventory"
)

// EnvPrefix prefixes every environment override: database.dsn is CLINIC_DATABASE_DSN.
const EnvPrefix = "CLINIC"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all runtime configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Inventory   InventoryConfig   `mapstructure:"inventory"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
}

type AppConfig struct {
	Env             string        `mapstructure:"env"` // development | production
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	TxMaxRetries     int           `mapstructure:"tx_max_retries"`
	TxRetryBackoff   time.Duration `mapstructure:"tx_retry_backoff"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	EventsStream string `mapstructure:"events_stream"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

type InventoryConfig struct {
	StockPolicy string `mapstructure:"stock_policy"`
}

type BillingConfig struct {
	FolioScope    string `mapstructure:"folio_scope"`
	FolioPrefix   string `mapstructure:"folio_prefix"`
	FolioPadWidth int    `mapstructure:"folio_pad_width"`
}

type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type OutboxConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	PublishedRetention time.Duration `mapstructure:"published_retention"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.tx_max_retries", 3)
	v.SetDefault("database.tx_retry_backoff", 20*time.Millisecond)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.events_stream", "clinicledger:events")
	v.SetDefault("redis.stream_max_len", 100000)

	v.SetDefault("inventory.stock_policy", string(inventory.StockPolicyClamp))

	folio := numerator.InvoiceConfig()
	v.SetDefault("billing.folio_scope", folio.Scope)
	v.SetDefault("billing.folio_prefix", folio.Prefix)
	v.SetDefault("billing.folio_pad_width", folio.PadWidth)

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.published_retention", 7*24*time.Hour)
}

// Load reads configuration. configPath may be empty; a missing config.yaml in
// the working directory is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if _, err := c.Inventory.Policy(); err != nil {
		return err
	}
	if err := c.Billing.Folio().Validate(); err != nil {
		return err
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port out of range: %d", c.App.Port)
	}
	if c.Database.TxMaxRetries < 0 {
		return fmt.Errorf("database.tx_max_retries must not be negative")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Policy returns the configured stock policy.
func (c InventoryConfig) Policy() (inventory.StockPolicy, error) {
	return inventory.ParseStockPolicy(c.StockPolicy)
}

// Folio returns the invoice numbering configuration.
func (c BillingConfig) Folio() numerator.Config {
	cfg := numerator.InvoiceConfig()
	cfg.Scope = c.FolioScope
	cfg.Prefix = c.FolioPrefix
	cfg.PadWidth = c.FolioPadWidth
	return cfg
}

/*
Package config loads the rent engine configuration.

SOURCES (highest priority first):
 1. Environment variables with the RENT_ prefix (RENT_DATABASE_DRIVER)
 2. config.toml, from an explicit path or searched in . and /etc/rent-engine
 3. Built-in defaults

Command-line flags of cmd/server are applied by the caller after Load.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Store    StoreConfig
	Invoice  InvoiceConfig
	Monitor  MonitorConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig selects and sizes the payment store.
type DatabaseConfig struct {
	Driver          string // sqlite, postgres
	Path            string // sqlite file, or :memory:
	DSN             string // postgres connection string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	CORSAllowOrigins []string
}

// StoreConfig controls write retries in the SQL adapters.
type StoreConfig struct {
	RetryAttempts        int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// InvoiceConfig selects the invoice number suffix scheme.
type InvoiceConfig struct {
	Numbering string // sequence, legacy
}

// MonitorConfig controls the background overdue sweep.
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	NumberingSequence = "sequence"
	NumberingLegacy   = "legacy"
)

// Load reads configuration. An empty path searches the default locations
// and tolerates a missing file; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rent-engine")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetDefault("monitor.enabled", true)
	v.SetEnvPrefix("RENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Path:            v.GetString("database.path"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Store: StoreConfig{
			RetryAttempts:        v.GetInt("store.retry_attempts"),
			RetryInitialInterval: v.GetDuration("store.retry_initial_interval"),
			RetryMaxInterval:     v.GetDuration("store.retry_max_interval"),
		},
		Invoice: InvoiceConfig{
			Numbering: strings.ToLower(v.GetString("invoice.numbering")),
		},
		Monitor: MonitorConfig{
			Enabled:  v.GetBool("monitor.enabled"),
			Interval: v.GetDuration("monitor.interval"),
		},
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "rent-engine"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "rent.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"http://localhost:*"}
	}
	if cfg.Store.RetryAttempts == 0 {
		cfg.Store.RetryAttempts = 3
	}
	if cfg.Store.RetryInitialInterval == 0 {
		cfg.Store.RetryInitialInterval = 100 * time.Millisecond
	}
	if cfg.Store.RetryMaxInterval == 0 {
		cfg.Store.RetryMaxInterval = time.Second
	}
	if cfg.Invoice.Numbering == "" {
		cfg.Invoice.Numbering = NumberingSequence
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = time.Hour
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	switch c.Invoice.Numbering {
	case NumberingSequence, NumberingLegacy:
	default:
		return fmt.Errorf("unsupported invoice.numbering %q (want sequence or legacy)", c.Invoice.Numbering)
	}
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("monitor.interval must be at least 1s, got %s", c.Monitor.Interval)
	}
	if c.Store.RetryAttempts < 1 {
		return fmt.Errorf("store.retry_attempts must be at least 1, got %d", c.Store.RetryAttempts)
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

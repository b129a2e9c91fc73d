package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultServerAddr = ":8080"
	defaultSQLitePath = "librarydesk.db"
)

type Config struct {
	DBDriver        string
	DatabaseURL     string
	ServerAddr      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DBLogLevel      string
}

// Load reads the configuration from the environment, applying defaults for
// everything except the postgres DATABASE_URL.
func Load() (Config, error) {
	cfg := Config{
		DBDriver:        strings.ToLower(getenv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ServerAddr:      getenv("SERVER_ADDR", defaultServerAddr),
		DBLogLevel:      strings.ToLower(getenv("DB_LOG_LEVEL", "warn")),
		ConnMaxLifetime: time.Hour,
	}

	var err error
	if cfg.MaxOpenConns, err = getenvInt("DB_MAX_OPEN_CONNS", 20); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = getenvInt("DB_MAX_IDLE_CONNS", 10); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
		}
		cfg.ConnMaxLifetime = d
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the %s driver", DriverPostgres)
		}
	case DriverSQLite:
		if c.DatabaseURL == "" {
			c.DatabaseURL = defaultSQLitePath
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", c.DBDriver, DriverPostgres, DriverSQLite)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be >= 0")
	}
	switch c.DBLogLevel {
	case "silent", "error", "warn", "info":
	default:
		return fmt.Errorf("DB_LOG_LEVEL must be one of silent, error, warn, info")
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

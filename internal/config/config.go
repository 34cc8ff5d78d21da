package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

// Config is resolved once at startup from the environment; command-line
// flags may override individual fields afterwards.
type Config struct {
	LogLevel  string `env:"ABTEST_LOG_LEVEL" envDefault:"info"`
	Warehouse Warehouse
	Generator Generator
}

type Warehouse struct {
	Driver string `env:"ABTEST_WAREHOUSE_DRIVER" envDefault:"postgres"`
	// DSN is a pgx connection string for postgres or a file path for sqlite.
	DSN string `env:"ABTEST_WAREHOUSE_DSN"`
}

type Generator struct {
	DataFile string    `env:"ABTEST_DATA_FILE" envDefault:"ad_clicks.csv"`
	Rows     int       `env:"ABTEST_ROWS" envDefault:"500000"`
	Start    time.Time `env:"ABTEST_START" envDefault:"2024-01-01T00:00:00Z"`
	Seed     int64     `env:"ABTEST_SEED" envDefault:"0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the warehouse settings. Commands that never touch the
// warehouse skip it.
func (w Warehouse) Validate() error {
	switch w.Driver {
	case DriverPostgres, DriverSqlite:
	default:
		return fmt.Errorf("unsupported warehouse driver %q", w.Driver)
	}
	if strings.TrimSpace(w.DSN) == "" {
		return fmt.Errorf("warehouse dsn is required (ABTEST_WAREHOUSE_DSN)")
	}
	return nil
}

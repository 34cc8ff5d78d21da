package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tomashoffer/ab-test-pipeline/internal/config"
)

// Warehouse bundles the repositories of one warehouse connection.
type Warehouse struct {
	Clicks ClickRepository
	Mart   MartRepository
	close  func()
}

// Open connects to the configured warehouse and verifies it is reachable.
func Open(ctx context.Context, cfg config.Warehouse) (*Warehouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case config.DriverSqlite:
		if sqliteFuncErr != nil {
			return nil, fmt.Errorf("failed to prepare sqlite driver: %w", sqliteFuncErr)
		}
		sqlDB, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite warehouse: %w", err)
		}
		// A single connection keeps writes serialized on the file.
		sqlDB.SetMaxOpenConns(1)
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping sqlite warehouse: %w", err)
		}
		return &Warehouse{
			Clicks: NewSqliteClickRepository(sqlDB),
			Mart:   NewSqliteMartRepository(sqlDB),
			close:  func() { _ = sqlDB.Close() },
		}, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres warehouse: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping postgres warehouse: %w", err)
		}
		return &Warehouse{
			Clicks: NewPgClickRepository(pool),
			Mart:   NewPgMartRepository(pool),
			close:  pool.Close,
		}, nil
	}
}

func (w *Warehouse) Close() {
	if w != nil && w.close != nil {
		w.close()
	}
}

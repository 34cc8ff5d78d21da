package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClickRepository interface {
	EnsureRawClicksTable(ctx context.Context) error
	// ReplaceRawClicks discards the current table contents and loads src in
	// a single transaction. It returns the number of rows loaded.
	ReplaceRawClicks(ctx context.Context, src ClickSource) (int64, error)
	GetRawClicks(ctx context.Context) ([]ClickEvent, error)
	GetRawClicksCount(ctx context.Context) (int, error)
	DropRawClicksTable(ctx context.Context) error
}

type PgClickRepository struct {
	pool *pgxpool.Pool
}

func NewPgClickRepository(pool *pgxpool.Pool) *PgClickRepository {
	return &PgClickRepository{pool: pool}
}

func (r *PgClickRepository) EnsureRawClicksTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS raw_ad_clicks (
			user_id INT,
			"timestamp" TIMESTAMP,
			experiment_group TEXT,
			device_type TEXT,
			clicked INT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create raw_ad_clicks table: %w", err)
	}
	return nil
}

func (r *PgClickRepository) ReplaceRawClicks(ctx context.Context, src ClickSource) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// TRUNCATE keeps the mart view that depends on the table intact.
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE raw_ad_clicks"); err != nil {
		return 0, fmt.Errorf("failed to truncate raw_ad_clicks: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{RawClicksTable}, RawClicksColumns, &copySource{src: src})
	if err != nil {
		return 0, fmt.Errorf("failed to copy clicks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit load: %w", err)
	}
	return n, nil
}

func (r *PgClickRepository) GetRawClicks(ctx context.Context) ([]ClickEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			user_id::bigint AS user_id,
			"timestamp",
			experiment_group,
			device_type,
			clicked <> 0 AS clicked
		FROM raw_ad_clicks
		ORDER BY "timestamp", user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw clicks: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToStructByName[ClickEvent])
}

func (r *PgClickRepository) GetRawClicksCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM raw_ad_clicks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get raw clicks count: %w", err)
	}
	return count, nil
}

func (r *PgClickRepository) DropRawClicksTable(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS raw_ad_clicks"); err != nil {
		return fmt.Errorf("failed to drop raw_ad_clicks table: %w", err)
	}
	return nil
}

// copySource feeds a ClickSource into COPY FROM.
type copySource struct {
	src ClickSource
}

func (c *copySource) Next() bool {
	return c.src.Next()
}

func (c *copySource) Values() ([]any, error) {
	e := c.src.Event()
	return []any{e.UserID, e.Timestamp, string(e.ExperimentGroup), string(e.DeviceType), e.ClickedInt()}, nil
}

func (c *copySource) Err() error {
	return c.src.Err()
}

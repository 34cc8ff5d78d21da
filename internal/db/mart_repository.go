package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MartRepository interface {
	EnsureMartView(ctx context.Context) error
	GetArmSummaries(ctx context.Context) ([]ArmSummary, error)
	DropMartView(ctx context.Context) error
}

type PgMartRepository struct {
	pool *pgxpool.Pool
}

func NewPgMartRepository(pool *pgxpool.Pool) *PgMartRepository {
	return &PgMartRepository{pool: pool}
}

// EnsureMartView creates the per-arm aggregate over raw_ad_clicks. The
// standard error is the binomial sqrt(p(1-p)/n).
func (r *PgMartRepository) EnsureMartView(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE OR REPLACE VIEW mart_ab_test AS
		SELECT
			experiment_group,
			AVG(clicked)::double precision AS conversion_rate,
			COUNT(*)::bigint AS total_users,
			SQRT(AVG(clicked) * (1 - AVG(clicked)) / COUNT(*))::double precision AS std_error
		FROM raw_ad_clicks
		GROUP BY experiment_group`)
	if err != nil {
		return fmt.Errorf("failed to create mart_ab_test view: %w", err)
	}
	return nil
}

func (r *PgMartRepository) GetArmSummaries(ctx context.Context) ([]ArmSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			experiment_group,
			conversion_rate::double precision AS conversion_rate,
			total_users::bigint AS total_users,
			std_error::double precision AS std_error
		FROM mart_ab_test`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mart_ab_test: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToStructByName[ArmSummary])
}

func (r *PgMartRepository) DropMartView(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DROP VIEW IF EXISTS mart_ab_test"); err != nil {
		return fmt.Errorf("failed to drop mart_ab_test view: %w", err)
	}
	return nil
}

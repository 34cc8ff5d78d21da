package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	sqlite "modernc.org/sqlite"
)

// sqliteTimeLayout matches the layout of the flat file so both stores hold
// the same text for a timestamp.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// sqliteFuncErr holds the outcome of registering the mart view's helper
// functions. Open refuses sqlite warehouses when it is set.
var sqliteFuncErr error

func init() {
	// SQLite builds do not reliably ship math functions; the mart view needs sqrt.
	if err := sqlite.RegisterDeterministicScalarFunction("ab_sqrt", 1, sqliteSqrt); err != nil {
		sqliteFuncErr = fmt.Errorf("failed to register ab_sqrt: %w", err)
	}
}

func sqliteSqrt(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case int64:
		return math.Sqrt(float64(v)), nil
	case float64:
		return math.Sqrt(v), nil
	default:
		return nil, fmt.Errorf("ab_sqrt: unsupported argument %T", v)
	}
}

type SqliteClickRepository struct {
	db *sql.DB
}

func NewSqliteClickRepository(db *sql.DB) *SqliteClickRepository {
	return &SqliteClickRepository{db: db}
}

func (r *SqliteClickRepository) EnsureRawClicksTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS raw_ad_clicks (
			user_id INTEGER,
			"timestamp" TIMESTAMP,
			experiment_group TEXT,
			device_type TEXT,
			clicked INTEGER
		)`)
	if err != nil {
		return fmt.Errorf("failed to create raw_ad_clicks table: %w", err)
	}
	return nil
}

func (r *SqliteClickRepository) ReplaceRawClicks(ctx context.Context, src ClickSource) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM raw_ad_clicks"); err != nil {
		return 0, fmt.Errorf("failed to clear raw_ad_clicks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_ad_clicks (user_id, "timestamp", experiment_group, device_type, clicked)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for src.Next() {
		e := src.Event()
		_, err := stmt.ExecContext(ctx,
			e.UserID,
			e.Timestamp.UTC().Format(sqliteTimeLayout),
			string(e.ExperimentGroup),
			string(e.DeviceType),
			e.ClickedInt())
		if err != nil {
			return 0, fmt.Errorf("failed to insert click: %w", err)
		}
		n++
	}
	if err := src.Err(); err != nil {
		return 0, fmt.Errorf("failed to read clicks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit load: %w", err)
	}
	return n, nil
}

func (r *SqliteClickRepository) GetRawClicks(ctx context.Context) ([]ClickEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, "timestamp", experiment_group, device_type, clicked
		FROM raw_ad_clicks
		ORDER BY "timestamp", user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw clicks: %w", err)
	}
	defer rows.Close()

	var events []ClickEvent
	for rows.Next() {
		var (
			e       ClickEvent
			ts      any
			group   string
			device  string
			clicked int
		)
		if err := rows.Scan(&e.UserID, &ts, &group, &device, &clicked); err != nil {
			return nil, fmt.Errorf("failed to scan raw click: %w", err)
		}
		if e.Timestamp, err = sqliteTime(ts); err != nil {
			return nil, err
		}
		e.ExperimentGroup = ExperimentGroup(group)
		e.DeviceType = DeviceType(device)
		e.Clicked = clicked != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raw clicks: %w", err)
	}
	return events, nil
}

func (r *SqliteClickRepository) GetRawClicksCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM raw_ad_clicks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get raw clicks count: %w", err)
	}
	return count, nil
}

func (r *SqliteClickRepository) DropRawClicksTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS raw_ad_clicks"); err != nil {
		return fmt.Errorf("failed to drop raw_ad_clicks table: %w", err)
	}
	return nil
}

// sqliteTime accepts both forms the driver may hand back for a TIMESTAMP
// column: a parsed time.Time or the stored text.
func sqliteTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseSqliteTime(t)
	case []byte:
		return parseSqliteTime(string(t))
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp value %T", v)
}

func parseSqliteTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type SqliteMartRepository struct {
	db *sql.DB
}

func NewSqliteMartRepository(db *sql.DB) *SqliteMartRepository {
	return &SqliteMartRepository{db: db}
}

// EnsureMartView replaces any existing mart_ab_test definition. SQLite has no
// CREATE OR REPLACE VIEW, so the drop and create share one transaction.
func (r *SqliteMartRepository) EnsureMartView(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP VIEW IF EXISTS mart_ab_test"); err != nil {
		return fmt.Errorf("failed to drop mart_ab_test view: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		CREATE VIEW mart_ab_test AS
		SELECT
			experiment_group,
			AVG(clicked * 1.0) AS conversion_rate,
			COUNT(*) AS total_users,
			ab_sqrt(AVG(clicked * 1.0) * (1 - AVG(clicked * 1.0)) / COUNT(*)) AS std_error
		FROM raw_ad_clicks
		GROUP BY experiment_group`)
	if err != nil {
		return fmt.Errorf("failed to create mart_ab_test view: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mart_ab_test view: %w", err)
	}
	return nil
}

func (r *SqliteMartRepository) GetArmSummaries(ctx context.Context) ([]ArmSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT experiment_group, conversion_rate, total_users, std_error
		FROM mart_ab_test`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mart_ab_test: %w", err)
	}
	defer rows.Close()

	var summaries []ArmSummary
	for rows.Next() {
		var (
			s     ArmSummary
			group string
		)
		if err := rows.Scan(&group, &s.ConversionRate, &s.TotalUsers, &s.StdError); err != nil {
			return nil, fmt.Errorf("failed to scan arm summary: %w", err)
		}
		s.ExperimentGroup = ExperimentGroup(group)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate arm summaries: %w", err)
	}
	return summaries, nil
}

func (r *SqliteMartRepository) DropMartView(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DROP VIEW IF EXISTS mart_ab_test"); err != nil {
		return fmt.Errorf("failed to drop mart_ab_test view: %w", err)
	}
	return nil
}

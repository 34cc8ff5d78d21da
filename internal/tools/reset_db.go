package tools

import (
	"context"
	"fmt"

	"github.com/tomashoffer/ab-test-pipeline/internal/db"
)

// ResetDB drops the mart view and the raw clicks table. The view goes first
// since it depends on the table.
func ResetDB(ctx context.Context, w *db.Warehouse) error {
	if err := w.Mart.DropMartView(ctx); err != nil {
		return fmt.Errorf("failed to drop mart: %w", err)
	}
	if err := w.Clicks.DropRawClicksTable(ctx); err != nil {
		return fmt.Errorf("failed to drop raw clicks: %w", err)
	}
	return nil
}

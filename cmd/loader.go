package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tomashoffer/ab-test-pipeline/internal"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
	"github.com/tomashoffer/ab-test-pipeline/internal/tools"
)

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Replace raw_ad_clicks with the contents of the clicks file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := a.openWarehouse(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			_, err = runLoad(ctx, a, w)
			return err
		},
	}
}

func runLoad(ctx context.Context, a *app, w *db.Warehouse) (int64, error) {
	return internal.NewLoadService(w.Clicks).Load(ctx, a.cfg.Generator.DataFile)
}

func newAggregateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Create the mart_ab_test view over raw_ad_clicks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := a.openWarehouse(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			return runAggregate(ctx, a, w)
		},
	}
}

func runAggregate(ctx context.Context, a *app, w *db.Warehouse) error {
	if err := w.Mart.EnsureMartView(ctx); err != nil {
		return err
	}
	a.log.Info("Mart view ready", "view", db.MartView)
	return nil
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop the mart view and the raw clicks table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := a.openWarehouse(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := tools.ResetDB(ctx, w); err != nil {
				return fmt.Errorf("failed to reset warehouse: %w", err)
			}
			a.log.Info("Warehouse reset")
			return nil
		},
	}
}

package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tomashoffer/ab-test-pipeline/internal"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Test the treatment arm against control and print the verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := a.openWarehouse(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			_, err = runAnalyze(ctx, a, w)
			return err
		},
	}
}

func runAnalyze(ctx context.Context, a *app, w *db.Warehouse) (internal.Verdict, error) {
	a.log.Info("Fetching A/B test results", "view", db.MartView)
	return internal.NewAnalysisService(w.Mart, a.out).Analyze(ctx)
}

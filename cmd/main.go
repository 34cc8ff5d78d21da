package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tomashoffer/ab-test-pipeline/internal/config"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
	"github.com/tomashoffer/ab-test-pipeline/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfg *config.Config
	out io.Writer
	log *slog.Logger
}

func newRootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	a := &app{cfg: cfg, out: out}

	root := &cobra.Command{
		Use:           "abtest",
		Short:         "Generate, load and analyze A/B test click data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(a.cfg.LogLevel)
			if err != nil {
				return err
			}
			a.log = logger.NewLogger(cmd.ErrOrStderr(), level)
			slog.SetDefault(a.log)
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.Warehouse.Driver, "driver", cfg.Warehouse.Driver, "warehouse driver (postgres, sqlite)")
	flags.StringVar(&cfg.Warehouse.DSN, "dsn", cfg.Warehouse.DSN, "warehouse connection string or sqlite file")
	flags.StringVar(&cfg.Generator.DataFile, "file", cfg.Generator.DataFile, "clicks CSV file")

	root.AddCommand(
		newGenerateCmd(a),
		newLoadCmd(a),
		newAggregateCmd(a),
		newAnalyzeCmd(a),
		newPipelineCmd(a),
		newResetCmd(a),
	)
	return root
}

func (a *app) openWarehouse(ctx context.Context) (*db.Warehouse, error) {
	w, err := db.Open(ctx, a.cfg.Warehouse)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Connected to warehouse", "driver", a.cfg.Warehouse.Driver)
	return w, nil
}

// newPipelineCmd runs every stage in order. A stage starts only after the
// previous one succeeded.
func newPipelineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run generate, load, aggregate and analyze in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := applyGeneratorFlags(cmd, a.cfg); err != nil {
				return err
			}
			// Fail on a bad warehouse before writing a data file nothing will load.
			if err := a.cfg.Warehouse.Validate(); err != nil {
				return err
			}
			if _, err := runGenerate(a); err != nil {
				return err
			}

			w, err := a.openWarehouse(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			if _, err := runLoad(ctx, a, w); err != nil {
				return err
			}
			if err := runAggregate(ctx, a, w); err != nil {
				return err
			}
			_, err = runAnalyze(ctx, a, w)
			return err
		},
	}
	addGeneratorFlags(cmd, a.cfg)
	return cmd
}

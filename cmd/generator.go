package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomashoffer/ab-test-pipeline/internal/config"
	"github.com/tomashoffer/ab-test-pipeline/internal/generator"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic click events to the clicks file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyGeneratorFlags(cmd, a.cfg); err != nil {
				return err
			}
			_, err := runGenerate(a)
			return err
		},
	}
	addGeneratorFlags(cmd, a.cfg)
	return cmd
}

func addGeneratorFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.IntVar(&cfg.Generator.Rows, "rows", cfg.Generator.Rows, "number of rows to generate")
	flags.Int64Var(&cfg.Generator.Seed, "seed", cfg.Generator.Seed, "random seed (0 picks one)")
	flags.String("start", cfg.Generator.Start.Format(time.RFC3339), "start of the 30 day window (RFC 3339)")
}

func applyGeneratorFlags(cmd *cobra.Command, cfg *config.Config) error {
	if !cmd.Flags().Changed("start") {
		return nil
	}
	raw, err := cmd.Flags().GetString("start")
	if err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	cfg.Generator.Start = start
	return nil
}

func runGenerate(a *app) (int, error) {
	genCfg := generator.DefaultConfig()
	genCfg.Rows = a.cfg.Generator.Rows
	genCfg.Start = a.cfg.Generator.Start
	genCfg.Seed = a.cfg.Generator.Seed

	gen, err := generator.New(genCfg)
	if err != nil {
		return 0, err
	}

	a.log.Info("Generating synthetic clicks", "rows", genCfg.Rows, "seed", gen.Seed())
	n, err := gen.WriteFile(a.cfg.Generator.DataFile, genCfg.Rows)
	if err != nil {
		return 0, fmt.Errorf("failed to generate clicks: %w", err)
	}
	a.log.Info("Clicks file written", "path", a.cfg.Generator.DataFile, "rows", n)
	return n, nil
}

// Package generator produces synthetic A/B test click events with a known
// treatment effect.
package generator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/tomashoffer/ab-test-pipeline/internal/clickfile"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
)

type Config struct {
	Rows  int
	Start time.Time
	// Seed 0 picks a time-derived seed, which is logged.
	Seed int64

	// User ids are drawn from [UserPoolMin, UserPoolMax).
	UserPoolMin int64
	UserPoolMax int64
	Window      time.Duration

	ControlClickRate   float64
	TreatmentClickRate float64
	MobileWeight       float64
}

func DefaultConfig() Config {
	return Config{
		Rows:               500_000,
		Start:              time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UserPoolMin:        100_000,
		UserPoolMax:        200_000,
		Window:             30 * 24 * time.Hour,
		ControlClickRate:   0.15,
		TreatmentClickRate: 0.18,
		MobileWeight:       0.7,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Rows < 0 {
		errs = append(errs, fmt.Errorf("rows must not be negative, got %d", c.Rows))
	}
	if c.UserPoolMax <= c.UserPoolMin {
		errs = append(errs, fmt.Errorf("user pool [%d, %d) is empty", c.UserPoolMin, c.UserPoolMax))
	}
	if c.Window < time.Second {
		errs = append(errs, fmt.Errorf("window must be at least one second, got %s", c.Window))
	}
	for name, p := range map[string]float64{
		"control click rate":   c.ControlClickRate,
		"treatment click rate": c.TreatmentClickRate,
		"mobile weight":        c.MobileWeight,
	} {
		if !(p >= 0 && p <= 1) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %v", name, p))
		}
	}
	return errors.Join(errs...)
}

type Generator struct {
	cfg    Config
	rng    *rand.Rand
	seed   int64
	window int64
}

func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		seed:   seed,
		window: int64(cfg.Window / time.Second),
	}, nil
}

// Seed reports the seed in use, so a run can be reproduced.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Next draws one event. Every field is an independent draw.
func (g *Generator) Next() db.ClickEvent {
	e := db.ClickEvent{
		UserID:          g.cfg.UserPoolMin + g.rng.Int63n(g.cfg.UserPoolMax-g.cfg.UserPoolMin),
		ExperimentGroup: db.Control,
		DeviceType:      db.Desktop,
	}
	if g.rng.Intn(2) == 1 {
		e.ExperimentGroup = db.Treatment
	}
	if g.rng.Float64() < g.cfg.MobileWeight {
		e.DeviceType = db.Mobile
	}
	rate := g.cfg.ControlClickRate
	if e.ExperimentGroup == db.Treatment {
		rate = g.cfg.TreatmentClickRate
	}
	e.Clicked = g.rng.Float64() < rate
	e.Timestamp = g.cfg.Start.UTC().Add(time.Duration(g.rng.Int63n(g.window)) * time.Second)
	return e
}

func (g *Generator) Generate(n int) ([]db.ClickEvent, error) {
	if n < 0 {
		return nil, fmt.Errorf("row count must not be negative, got %d", n)
	}
	events := make([]db.ClickEvent, n)
	for i := range events {
		events[i] = g.Next()
	}
	return events, nil
}

// WriteFile writes exactly n events to path. The file is written to a
// temporary sibling and renamed over path, so readers never see a partial
// file and an existing file is replaced only on success.
func (g *Generator) WriteFile(path string, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("row count must not be negative, got %d", n)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to set clicks file mode: %w", err)
	}

	w := clickfile.NewWriter(tmp)
	for i := 0; i < n; i++ {
		if err := w.Write(g.Next()); err != nil {
			tmp.Close()
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to flush clicks file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close clicks file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move clicks file into place: %w", err)
	}

	slog.Debug("Wrote clicks file", "path", path, "rows", n, "seed", g.seed)
	return n, nil
}

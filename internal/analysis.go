package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tomashoffer/ab-test-pipeline/internal/db"
	"github.com/tomashoffer/ab-test-pipeline/internal/stats"
)

var (
	ErrArmNotFound   = errors.New("experiment arm not found")
	ErrArmDuplicated = errors.New("experiment arm duplicated")
)

type Verdict struct {
	Control   db.ArmSummary
	Treatment db.ArmSummary
	Result    stats.Result
}

type AnalysisService struct {
	repo db.MartRepository
	out  io.Writer
	log  *slog.Logger
}

func NewAnalysisService(repo db.MartRepository, out io.Writer) *AnalysisService {
	return &AnalysisService{
		repo: repo,
		out:  out,
		log:  slog.Default(),
	}
}

// Analyze reads the per-arm aggregates, tests treatment against control and
// writes the report.
func (s *AnalysisService) Analyze(ctx context.Context) (Verdict, error) {
	summaries, err := s.repo.GetArmSummaries(ctx)
	if err != nil {
		return Verdict{}, err
	}
	s.log.Debug("Fetched arm summaries", "rows", len(summaries))

	control, treatment, err := SelectArms(summaries)
	if err != nil {
		return Verdict{}, err
	}

	res, err := stats.TwoProportionZTest(
		stats.Arm{ConversionRate: control.ConversionRate, StdError: control.StdError},
		stats.Arm{ConversionRate: treatment.ConversionRate, StdError: treatment.StdError},
	)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{Control: control, Treatment: treatment, Result: res}
	s.log.Info("Analysis complete",
		"uplift", res.Uplift,
		"z", res.ZScore,
		"p_value", res.PValue,
		"significant", res.Significant)

	if err := WriteReport(s.out, v); err != nil {
		return Verdict{}, fmt.Errorf("failed to write report: %w", err)
	}
	return v, nil
}

// SelectArms picks exactly one Control and one Treatment row. Rows for any
// other group are ignored.
func SelectArms(summaries []db.ArmSummary) (control, treatment db.ArmSummary, err error) {
	control, errC := selectArm(summaries, db.Control)
	treatment, errT := selectArm(summaries, db.Treatment)
	if err = errors.Join(errC, errT); err != nil {
		return db.ArmSummary{}, db.ArmSummary{}, err
	}
	return control, treatment, nil
}

func selectArm(summaries []db.ArmSummary, group db.ExperimentGroup) (db.ArmSummary, error) {
	var (
		found db.ArmSummary
		count int
	)
	for _, s := range summaries {
		if s.ExperimentGroup == group {
			found = s
			count++
		}
	}
	switch count {
	case 0:
		return db.ArmSummary{}, fmt.Errorf("%w: %s", ErrArmNotFound, group)
	case 1:
		return found, nil
	default:
		return db.ArmSummary{}, fmt.Errorf("%w: %s has %d rows", ErrArmDuplicated, group, count)
	}
}

func WriteReport(w io.Writer, v Verdict) error {
	decision := "RESULT: NOT SIGNIFICANT. Do not launch."
	if v.Result.Significant {
		decision = "RESULT: SIGNIFICANT! Roll out the new feature."
	}
	_, err := fmt.Fprintf(w, `
--- RESULTS ---
Control (A):   %.2f%% (N=%d)
Treatment (B): %.2f%% (N=%d)

--- STATISTICS ---
Uplift:        %.2f%% points
P-Value:       %.5f
%s
`,
		v.Control.ConversionRate*100, v.Control.TotalUsers,
		v.Treatment.ConversionRate*100, v.Treatment.TotalUsers,
		v.Result.Uplift*100,
		v.Result.PValue,
		decision)
	return err
}

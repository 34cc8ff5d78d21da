// Package stats implements the two-proportion z-test used to decide an A/B
// test.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel is the fixed decision threshold on the p-value.
const SignificanceLevel = 0.05

var (
	// ErrIndeterminate is returned when the pooled standard error is zero,
	// which leaves the z-score undefined.
	ErrIndeterminate   = errors.New("indeterminate significance: pooled standard error is zero")
	ErrInvalidStdError = errors.New("standard error must be a non-negative number")
	ErrInvalidRate     = errors.New("conversion rate must be in [0, 1]")
)

// Arm is the part of an experiment arm's aggregate the test needs.
type Arm struct {
	ConversionRate float64
	StdError       float64
}

type Result struct {
	// Uplift is treatment minus control, as a fraction.
	Uplift      float64
	PooledSE    float64
	ZScore      float64
	PValue      float64
	Significant bool
}

// TwoProportionZTest compares treatment against control with a two-tailed
// normal approximation. It is a pure function of its four inputs.
func TwoProportionZTest(control, treatment Arm) (Result, error) {
	if err := control.validate(); err != nil {
		return Result{}, fmt.Errorf("control arm: %w", err)
	}
	if err := treatment.validate(); err != nil {
		return Result{}, fmt.Errorf("treatment arm: %w", err)
	}

	uplift := treatment.ConversionRate - control.ConversionRate
	pooled := math.Hypot(control.StdError, treatment.StdError)
	if pooled == 0 {
		return Result{}, ErrIndeterminate
	}

	z := uplift / pooled
	p := TwoTailedPValue(z)
	return Result{
		Uplift:      uplift,
		PooledSE:    pooled,
		ZScore:      z,
		PValue:      p,
		Significant: p < SignificanceLevel,
	}, nil
}

// TwoTailedPValue returns 2 * (1 - Φ(|z|)) for the standard normal Φ. The
// survival function keeps precision where 1 - Φ would round to zero.
func TwoTailedPValue(z float64) float64 {
	return 2 * distuv.UnitNormal.Survival(math.Abs(z))
}

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func (a Arm) validate() error {
	if math.IsNaN(a.StdError) || math.IsInf(a.StdError, 0) || a.StdError < 0 {
		return fmt.Errorf("%w, got %v", ErrInvalidStdError, a.StdError)
	}
	if !(a.ConversionRate >= 0 && a.ConversionRate <= 1) {
		return fmt.Errorf("%w, got %v", ErrInvalidRate, a.ConversionRate)
	}
	return nil
}

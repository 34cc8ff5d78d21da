package internal

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
	"github.com/tomashoffer/ab-test-pipeline/internal/mocks"
	"github.com/tomashoffer/ab-test-pipeline/internal/stats"
)

var _ = Describe("Analysis Service", func() {
	control := db.ArmSummary{ExperimentGroup: db.Control, ConversionRate: 0.15, TotalUsers: 125000, StdError: 0.00159}
	treatment := db.ArmSummary{ExperimentGroup: db.Treatment, ConversionRate: 0.18, TotalUsers: 125000, StdError: 0.00172}

	var out *bytes.Buffer

	BeforeEach(func() {
		out = &bytes.Buffer{}
	})

	It("should report a significant uplift", func(ctx SpecContext) {
		svc := NewAnalysisService(mocks.NewMockMartRepository(treatment, control), out)

		v, err := svc.Analyze(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Control).To(Equal(control))
		Expect(v.Treatment).To(Equal(treatment))
		Expect(v.Result.Significant).To(BeTrue())

		Expect(out.String()).To(Equal(`
--- RESULTS ---
Control (A):   15.00% (N=125000)
Treatment (B): 18.00% (N=125000)

--- STATISTICS ---
Uplift:        3.00% points
P-Value:       0.00000
RESULT: SIGNIFICANT! Roll out the new feature.
`))
	})

	It("should report a non significant result", func(ctx SpecContext) {
		c := db.ArmSummary{ExperimentGroup: db.Control, ConversionRate: 0.15, TotalUsers: 1000, StdError: 0.0113}
		t := db.ArmSummary{ExperimentGroup: db.Treatment, ConversionRate: 0.16, TotalUsers: 1000, StdError: 0.0116}
		svc := NewAnalysisService(mocks.NewMockMartRepository(c, t), out)

		v, err := svc.Analyze(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Result.Significant).To(BeFalse())
		Expect(out.String()).To(ContainSubstring("Uplift:        1.00% points"))
		Expect(out.String()).To(ContainSubstring("RESULT: NOT SIGNIFICANT. Do not launch."))
	})

	It("should ignore rows for other groups", func(ctx SpecContext) {
		holdout := db.ArmSummary{ExperimentGroup: "Holdout", ConversionRate: 0.5, TotalUsers: 10, StdError: 0.1}
		svc := NewAnalysisService(mocks.NewMockMartRepository(control, holdout, treatment), out)

		_, err := svc.Analyze(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should fail loudly when an arm is missing", func(ctx SpecContext) {
		svc := NewAnalysisService(mocks.NewMockMartRepository(control), out)

		_, err := svc.Analyze(ctx)
		Expect(err).To(MatchError(ErrArmNotFound))
		Expect(err).NotTo(MatchError(ErrArmDuplicated))
		Expect(err.Error()).To(ContainSubstring("Treatment"))
		Expect(out.String()).To(BeEmpty())
	})

	It("should fail loudly when an arm is duplicated", func(ctx SpecContext) {
		svc := NewAnalysisService(mocks.NewMockMartRepository(control, treatment, control), out)

		_, err := svc.Analyze(ctx)
		Expect(err).To(MatchError(ErrArmDuplicated))
		Expect(err).NotTo(MatchError(ErrArmNotFound))
		Expect(err.Error()).To(ContainSubstring("Control has 2 rows"))
	})

	It("should report both problems of an empty mart", func(ctx SpecContext) {
		svc := NewAnalysisService(mocks.NewMockMartRepository(), out)

		_, err := svc.Analyze(ctx)
		Expect(err).To(MatchError(ErrArmNotFound))
		Expect(err.Error()).To(ContainSubstring("Control"))
		Expect(err.Error()).To(ContainSubstring("Treatment"))
	})

	It("should surface degenerate statistics as indeterminate", func(ctx SpecContext) {
		c := control
		c.StdError = 0
		t := treatment
		t.StdError = 0
		svc := NewAnalysisService(mocks.NewMockMartRepository(c, t), out)

		_, err := svc.Analyze(ctx)
		Expect(err).To(MatchError(stats.ErrIndeterminate))
		Expect(out.String()).To(BeEmpty())
	})

	It("should propagate warehouse errors", func(ctx SpecContext) {
		repo := mocks.NewMockMartRepository()
		repo.Err = errors.New("connection refused")
		svc := NewAnalysisService(repo, out)

		_, err := svc.Analyze(ctx)
		Expect(err).To(MatchError(repo.Err))
	})
})

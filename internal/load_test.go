package internal

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tomashoffer/ab-test-pipeline/internal/clickfile"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
	"github.com/tomashoffer/ab-test-pipeline/internal/mocks"
)

const clicksHeader = "user_id,timestamp,experiment_group,device_type,clicked\n"

var _ = Describe("Load Service", func() {
	var (
		repo *mocks.MockClickRepository
		svc  *LoadService
		dir  string
	)

	BeforeEach(func() {
		repo = mocks.NewMockClickRepository()
		svc = NewLoadService(repo)
		dir = GinkgoT().TempDir()
	})

	writeFile := func(contents string) string {
		path := filepath.Join(dir, "ad_clicks.csv")
		Expect(os.WriteFile(path, []byte(contents), 0o644)).To(Succeed())
		return path
	}

	It("should create the table before replacing its contents", func(ctx SpecContext) {
		path := writeFile(clicksHeader +
			"100001,2024-01-01 00:00:00,Control,Mobile,0\n" +
			"100002,2024-01-02 10:00:00,Treatment,Desktop,1\n")

		n, err := svc.Load(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(2)))
		Expect(repo.Calls).To(Equal([]string{"ensure", "replace"}))
		Expect(repo.Clicks).To(Equal([]db.ClickEvent{
			{UserID: 100001, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ExperimentGroup: db.Control, DeviceType: db.Mobile},
			{UserID: 100002, Timestamp: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), ExperimentGroup: db.Treatment, DeviceType: db.Desktop, Clicked: true},
		}))
	})

	It("should not start the load when table creation fails", func(ctx SpecContext) {
		path := writeFile(clicksHeader + "1,2024-01-01 00:00:00,Control,Mobile,0\n")
		repo.EnsureErr = errors.New("permission denied")

		_, err := svc.Load(ctx, path)
		Expect(err).To(MatchError(repo.EnsureErr))
		Expect(repo.Calls).To(Equal([]string{"ensure"}))
	})

	It("should replace rather than append on a second load", func(ctx SpecContext) {
		path := writeFile(clicksHeader +
			"1,2024-01-01 00:00:00,Control,Mobile,0\n" +
			"2,2024-01-01 00:00:01,Treatment,Mobile,1\n")

		_, err := svc.Load(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		first := repo.Clicks

		_, err = svc.Load(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Clicks).To(Equal(first))
	})

	It("should fail on a missing file without touching the warehouse", func(ctx SpecContext) {
		_, err := svc.Load(ctx, filepath.Join(dir, "missing.csv"))
		Expect(err).To(MatchError(os.ErrNotExist))
		Expect(repo.Calls).To(BeEmpty())
	})

	It("should fail on a bad header without touching the warehouse", func(ctx SpecContext) {
		path := writeFile("id,ts\n1,2\n")

		_, err := svc.Load(ctx, path)
		var parseErr *clickfile.ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
		Expect(repo.Calls).To(BeEmpty())
	})

	It("should keep the previous contents when a row is malformed", func(ctx SpecContext) {
		good := writeFile(clicksHeader + "1,2024-01-01 00:00:00,Control,Mobile,0\n")
		_, err := svc.Load(ctx, good)
		Expect(err).NotTo(HaveOccurred())
		before := repo.Clicks

		bad := writeFile(clicksHeader +
			"2,2024-01-01 00:00:00,Control,Mobile,0\n" +
			"3,2024-01-01 00:00:00,Control,Mobile,yes\n")
		_, err = svc.Load(ctx, bad)
		var parseErr *clickfile.ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
		Expect(parseErr.Line).To(Equal(3))
		Expect(repo.Clicks).To(Equal(before))
	})
})

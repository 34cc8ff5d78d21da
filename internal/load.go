package internal

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tomashoffer/ab-test-pipeline/internal/clickfile"
	"github.com/tomashoffer/ab-test-pipeline/internal/db"
)

type LoadService struct {
	repo db.ClickRepository
	log  *slog.Logger
}

func NewLoadService(repo db.ClickRepository) *LoadService {
	return &LoadService{
		repo: repo,
		log:  slog.Default(),
	}
}

// Load replaces the contents of raw_ad_clicks with the rows of the file at
// path. The table is created first; the replace starts only once that
// succeeded. A malformed row aborts the whole load.
func (s *LoadService) Load(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open clicks file: %w", err)
	}
	defer f.Close()

	reader, err := clickfile.NewReader(bufio.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("failed to read clicks file %s: %w", path, err)
	}

	if err := s.repo.EnsureRawClicksTable(ctx); err != nil {
		return 0, err
	}
	s.log.Debug("Raw clicks table ready")

	n, err := s.repo.ReplaceRawClicks(ctx, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}
	s.log.Info("Loaded clicks", "path", path, "rows", n)
	return n, nil
}

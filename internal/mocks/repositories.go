package mocks

import (
	"context"

	"github.com/tomashoffer/ab-test-pipeline/internal/db"
)

// MockClickRepository keeps the table in memory and records the order of
// calls, so tests can check sequencing.
type MockClickRepository struct {
	Clicks      []db.ClickEvent
	TableExists bool
	Calls       []string

	EnsureErr  error
	ReplaceErr error
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		Clicks: make([]db.ClickEvent, 0),
		Calls:  make([]string, 0),
	}
}

func (m *MockClickRepository) EnsureRawClicksTable(ctx context.Context) error {
	m.Calls = append(m.Calls, "ensure")
	if m.EnsureErr != nil {
		return m.EnsureErr
	}
	m.TableExists = true
	return nil
}

// ReplaceRawClicks drains src before swapping contents, matching the
// all-or-nothing behaviour of the real repositories.
func (m *MockClickRepository) ReplaceRawClicks(ctx context.Context, src db.ClickSource) (int64, error) {
	m.Calls = append(m.Calls, "replace")
	if m.ReplaceErr != nil {
		return 0, m.ReplaceErr
	}
	var events []db.ClickEvent
	for src.Next() {
		events = append(events, src.Event())
	}
	if err := src.Err(); err != nil {
		return 0, err
	}
	m.Clicks = events
	return int64(len(events)), nil
}

func (m *MockClickRepository) GetRawClicks(ctx context.Context) ([]db.ClickEvent, error) {
	return m.Clicks, nil
}

func (m *MockClickRepository) GetRawClicksCount(ctx context.Context) (int, error) {
	return len(m.Clicks), nil
}

func (m *MockClickRepository) DropRawClicksTable(ctx context.Context) error {
	m.Calls = append(m.Calls, "drop")
	m.Clicks = nil
	m.TableExists = false
	return nil
}

type MockMartRepository struct {
	Summaries []db.ArmSummary
	Err       error
}

func NewMockMartRepository(summaries ...db.ArmSummary) *MockMartRepository {
	return &MockMartRepository{Summaries: summaries}
}

func (m *MockMartRepository) EnsureMartView(ctx context.Context) error {
	return m.Err
}

func (m *MockMartRepository) GetArmSummaries(ctx context.Context) ([]db.ArmSummary, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Summaries, nil
}

func (m *MockMartRepository) DropMartView(ctx context.Context) error {
	return m.Err
}

package db

import (
	"fmt"
	"time"
)

const (
	RawClicksTable = "raw_ad_clicks"
	MartView       = "mart_ab_test"
)

// RawClicksColumns is the column order shared by the flat file and the raw table.
var RawClicksColumns = []string{"user_id", "timestamp", "experiment_group", "device_type", "clicked"}

type ExperimentGroup string

const (
	Control   ExperimentGroup = "Control"
	Treatment ExperimentGroup = "Treatment"
)

func ParseExperimentGroup(s string) (ExperimentGroup, error) {
	switch g := ExperimentGroup(s); g {
	case Control, Treatment:
		return g, nil
	}
	return "", fmt.Errorf("unknown experiment group %q", s)
}

type DeviceType string

const (
	Mobile  DeviceType = "Mobile"
	Desktop DeviceType = "Desktop"
)

func ParseDeviceType(s string) (DeviceType, error) {
	switch d := DeviceType(s); d {
	case Mobile, Desktop:
		return d, nil
	}
	return "", fmt.Errorf("unknown device type %q", s)
}

// ClickEvent is one ad impression as generated, written to file and loaded
// into raw_ad_clicks.
type ClickEvent struct {
	UserID          int64           `db:"user_id"`
	Timestamp       time.Time       `db:"timestamp"`
	ExperimentGroup ExperimentGroup `db:"experiment_group"`
	DeviceType      DeviceType      `db:"device_type"`
	Clicked         bool            `db:"clicked"`
}

// ClickedInt is the 0/1 form stored on disk and in the warehouse.
func (e ClickEvent) ClickedInt() int {
	if e.Clicked {
		return 1
	}
	return 0
}

// ArmSummary is one row of the mart view: the aggregate of a single
// experiment arm.
type ArmSummary struct {
	ExperimentGroup ExperimentGroup `db:"experiment_group"`
	ConversionRate  float64         `db:"conversion_rate"`
	TotalUsers      int64           `db:"total_users"`
	StdError        float64         `db:"std_error"`
}

// ClickSource streams events into a load. Implementations are single-pass.
type ClickSource interface {
	Next() bool
	Event() ClickEvent
	Err() error
}

// ClickSlice adapts an in-memory slice to ClickSource.
type ClickSlice struct {
	events []ClickEvent
	pos    int
}

func NewClickSlice(events []ClickEvent) *ClickSlice {
	return &ClickSlice{events: events}
}

func (s *ClickSlice) Next() bool {
	if s.pos >= len(s.events) {
		return false
	}
	s.pos++
	return true
}

func (s *ClickSlice) Event() ClickEvent {
	return s.events[s.pos-1]
}

func (s *ClickSlice) Err() error {
	return nil
}

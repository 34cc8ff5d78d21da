// Package clickfile reads and writes the delimited flat file that carries
// click events between the generator and the loader.
package clickfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tomashoffer/ab-test-pipeline/internal/db"
)

// TimeLayout is the timestamp layout of the file.
const TimeLayout = "2006-01-02 15:04:05"

// ParseError reports a malformed line. Line is 1-based and counts the header.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Writer struct {
	csv         *csv.Writer
	wroteHeader bool
	record      []string
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		csv:    csv.NewWriter(w),
		record: make([]string, len(db.RawClicksColumns)),
	}
}

func (w *Writer) Write(e db.ClickEvent) error {
	if !w.wroteHeader {
		if err := w.csv.Write(db.RawClicksColumns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.wroteHeader = true
	}
	w.record[0] = strconv.FormatInt(e.UserID, 10)
	w.record[1] = e.Timestamp.UTC().Format(TimeLayout)
	w.record[2] = string(e.ExperimentGroup)
	w.record[3] = string(e.DeviceType)
	w.record[4] = strconv.Itoa(e.ClickedInt())
	if err := w.csv.Write(w.record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Flush writes the header even when no rows were written, so an empty
// file is still well-formed.
func (w *Writer) Flush() error {
	if !w.wroteHeader {
		if err := w.csv.Write(db.RawClicksColumns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.wroteHeader = true
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Reader streams events from a file and satisfies db.ClickSource. The first
// malformed line stops iteration and is reported by Err.
type Reader struct {
	csv   *csv.Reader
	event db.ClickEvent
	err   error
}

// NewReader validates the header before returning.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = len(db.RawClicksColumns)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Line: 1, Err: errors.New("missing header")}
		}
		return nil, wrapCSVError(err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	if !slices.Equal(header, db.RawClicksColumns) {
		return nil, &ParseError{Line: 1, Err: fmt.Errorf("unexpected header %v, want %v", header, db.RawClicksColumns)}
	}
	return &Reader{csv: cr}, nil
}

func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	record, err := r.csv.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = wrapCSVError(err)
		}
		return false
	}
	line, _ := r.csv.FieldPos(0)
	event, err := parseRecord(record)
	if err != nil {
		r.err = &ParseError{Line: line, Err: err}
		return false
	}
	r.event = event
	return true
}

func (r *Reader) Event() db.ClickEvent {
	return r.event
}

func (r *Reader) Err() error {
	return r.err
}

// ReadAll drains r into memory.
func ReadAll(r io.Reader) ([]db.ClickEvent, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	var events []db.ClickEvent
	for reader.Next() {
		events = append(events, reader.Event())
	}
	return events, reader.Err()
}

func parseRecord(record []string) (db.ClickEvent, error) {
	userID, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return db.ClickEvent{}, fmt.Errorf("invalid user_id %q", record[0])
	}
	ts, err := time.ParseInLocation(TimeLayout, record[1], time.UTC)
	if err != nil {
		return db.ClickEvent{}, fmt.Errorf("invalid timestamp %q", record[1])
	}
	group, err := db.ParseExperimentGroup(record[2])
	if err != nil {
		return db.ClickEvent{}, err
	}
	device, err := db.ParseDeviceType(record[3])
	if err != nil {
		return db.ClickEvent{}, err
	}
	var clicked bool
	switch record[4] {
	case "0":
	case "1":
		clicked = true
	default:
		return db.ClickEvent{}, fmt.Errorf("invalid clicked %q, want 0 or 1", record[4])
	}
	return db.ClickEvent{
		UserID:          userID,
		Timestamp:       ts,
		ExperimentGroup: group,
		DeviceType:      device,
		Clicked:         clicked,
	}, nil
}

func wrapCSVError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return fmt.Errorf("failed to read clicks file: %w", err)
}

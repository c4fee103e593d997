package mining

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-day key used across market data and revenue rows
const DateLayout = "2006-01-02"

// MaxRangeDays bounds a single computation
const MaxRangeDays = 366

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("invalid date range")
)

// Preset names accepted by PresetRange
const (
	PresetThisMonth = "this-month"
	PresetLastMonth = "last-month"
	PresetLast7     = "last-7"
	PresetLast30    = "last-30"
	PresetCustom    = "custom"
)

// DayKey returns the UTC calendar date of t
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDay parses a YYYY-MM-DD key as midnight UTC
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DateRange is an inclusive span of calendar days
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks both ends parse and start <= end
func (r DateRange) Validate() error {
	start, err := ParseDay(r.Start)
	if err != nil {
		return err
	}
	end, err := ParseDay(r.End)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, r.Start, r.End)
	}
	if int(end.Sub(start).Hours()/24)+1 > MaxRangeDays {
		return fmt.Errorf("%w: more than %d days", ErrInvalidRange, MaxRangeDays)
	}
	return nil
}

// Clamp pulls an end date past today back to today
func (r DateRange) Clamp(today string) DateRange {
	if r.End > today {
		r.End = today
	}
	return r
}

// Days lists every calendar day in the range, inclusive
func (r DateRange) Days() ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return DaysBetween(r.Start, r.End)
}

// DaysBetween lists every calendar day from start to end, inclusive.
// It returns an empty slice when end precedes start.
func DaysBetween(start, end string) ([]string, error) {
	s, err := ParseDay(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// DaysSince counts calendar days from start through today, inclusive
func DaysSince(start, today string) (int, error) {
	s, err := ParseDay(start)
	if err != nil {
		return 0, err
	}
	t, err := ParseDay(today)
	if err != nil {
		return 0, err
	}
	n := int(t.Sub(s).Hours()/24) + 1
	if n < 1 {
		n = 1
	}
	return n, nil
}

// PresetRange resolves a named preset relative to now (UTC)
func PresetRange(preset string, now time.Time) (DateRange, error) {
	today := now.UTC()
	day := func(t time.Time) string { return t.Format(DateLayout) }
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch preset {
	case PresetThisMonth, "":
		return DateRange{Start: day(monthStart), End: day(today)}, nil
	case PresetLastMonth:
		lastStart := monthStart.AddDate(0, -1, 0)
		return DateRange{Start: day(lastStart), End: day(monthStart.AddDate(0, 0, -1))}, nil
	case PresetLast7:
		return DateRange{Start: day(today.AddDate(0, 0, -6)), End: day(today)}, nil
	case PresetLast30:
		return DateRange{Start: day(today.AddDate(0, 0, -29)), End: day(today)}, nil
	default:
		return DateRange{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidRange, preset)
	}
}

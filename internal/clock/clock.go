// Package clock computes civic dates in the single reference timezone used for
// publish-date gating and period filters.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civic date layout used for publish dates.
const DateLayout = "2006-01-02"

// Period selects a calendar window around today.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod accepts all, week, month or year. Empty means all.
func ParsePeriod(raw string) (Period, error) {
	period := Period(strings.ToLower(strings.TrimSpace(raw)))
	switch period {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodWeek, PeriodMonth, PeriodYear:
		return period, nil
	default:
		return "", fmt.Errorf("unknown period %q", raw)
	}
}

// DateRange is an inclusive civic date window plus the instants bounding it.
type DateRange struct {
	StartDate string
	EndDate   string
	From      time.Time
	To        time.Time
}

// Calendar answers "what day is it" in the reference timezone.
type Calendar struct {
	location *time.Location
	now      func() time.Time
}

// New builds a calendar for the given location.
func New(location *time.Location) *Calendar {
	if location == nil {
		location = time.UTC
	}
	return &Calendar{location: location, now: time.Now}
}

// Load builds a calendar for an IANA timezone name.
func Load(name string) (*Calendar, error) {
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid reference timezone %q: %w", name, err)
	}
	return New(location), nil
}

// WithNow returns a copy of the calendar that reads time from now.
func (c *Calendar) WithNow(now func() time.Time) *Calendar {
	return &Calendar{location: c.location, now: now}
}

// Location returns the reference timezone.
func (c *Calendar) Location() *time.Location {
	return c.location
}

// Now returns the current instant in the reference timezone.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.location)
}

// Today returns the current civic date in the reference timezone.
func (c *Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

// Range returns the window for period, or false for PeriodAll.
// Weeks start on Sunday.
func (c *Calendar) Range(period Period) (DateRange, bool) {
	now := c.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)

	var start, end time.Time
	switch period {
	case PeriodWeek:
		start = today.AddDate(0, 0, -int(today.Weekday()))
		end = start.AddDate(0, 0, 6)
	case PeriodMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, c.location)
		end = start.AddDate(0, 1, -1)
	case PeriodYear:
		start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, c.location)
		end = time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, c.location)
	default:
		return DateRange{}, false
	}

	return DateRange{
		StartDate: start.Format(DateLayout),
		EndDate:   end.Format(DateLayout),
		From:      start,
		To:        end.AddDate(0, 0, 1).Add(-time.Nanosecond),
	}, true
}

// ValidDate reports whether value is a real YYYY-MM-DD date.
func ValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Period is a half-open date interval [Start, End).
type Period struct {
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Overlaps reports whether two half-open periods share at least one instant.
func (p Period) Overlaps(o Period) bool {
	return p.Start.Before(o.End) && o.Start.Before(p.End)
}

// MonthOf returns the calendar month containing t, in UTC.
func MonthOf(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

var monthLabelLayouts = []string{"January 2006", "Jan 2006", "2006-01", "January_2006"}

// ParseMonthLabel accepts "January 2024", "Jan 2024" or "2024-01" and returns that month.
func ParseMonthLabel(label string) (Period, error) {
	label = strings.TrimSpace(label)
	for _, layout := range monthLabelLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return MonthOf(t), nil
		}
	}
	return Period{}, &ValidationError{Field: "month", Reason: "must look like \"January 2024\" or \"2024-01\""}
}

// MonthLabel formats the month of p the way reports name it.
func MonthLabel(p Period) string {
	return p.Start.Format("January 2006")
}

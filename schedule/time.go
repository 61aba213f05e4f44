package schedule

import (
	"sort"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day (due dates, paid dates, contract window)
// =============================================================================

// DateLayout is the ISO calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. Time-of-day is always midnight.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date. RFC3339 timestamps are accepted and truncated
// to their calendar day. Returns false for empty or impossible dates
// (e.g. 2025-02-30).
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), true
	}
	return Date{}, false
}

// MustParseDate parses s or returns the zero Date.
func MustParseDate(s string) Date {
	d, _ := ParseDate(s)
	return d
}

// NormalizeDate returns s in ISO form when it parses, otherwise the trimmed
// input unchanged so the validator can report it.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if d, ok := ParseDate(s); ok {
		return d.String()
	}
	return s
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) String() string { return d.Time.Format(DateLayout) }

// Later returns whichever of a and b is later.
func Later(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}

// DaysBetween returns the whole days from -> to (negative if to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// =============================================================================
// DATE UTILITIES - Pure, total functions used by the validator
// =============================================================================

// IsValidDate is true iff s parses as a real calendar date.
func IsValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// IsDateAfter is a strict chronological comparison at day granularity.
func IsDateAfter(a, b Date) bool {
	return a.After(b)
}

// HasDuplicateDates is true iff any two entries fall on the same calendar day.
func HasDuplicateDates(dates []Date) bool {
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		key := DateOf(d.Time).String()
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

// ValidateMinDateGap is true iff every pair of chronologically adjacent dates
// is at least minDays apart. Fewer than two dates always pass.
func ValidateMinDateGap(dates []Date, minDays int) bool {
	if len(dates) < 2 {
		return true
	}
	sorted := make([]Date, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for i := 1; i < len(sorted); i++ {
		if DaysBetween(sorted[i-1], sorted[i]) < minDays {
			return false
		}
	}
	return true
}

package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/payment-schedule/schedule"
)

func dates(ss ...string) []schedule.Date {
	out := make([]schedule.Date, len(ss))
	for i, s := range ss {
		out[i] = schedule.MustParseDate(s)
	}
	return out
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"2025-01-31", true, "2025-01-31"},
		{"  2025-01-31 ", true, "2025-01-31"},
		{"2025-01-31T23:10:00Z", true, "2025-01-31"},
		{"2025-02-30", false, ""},
		{"31/01/2025", false, ""},
		{"", false, ""},
		{"not a date", false, ""},
	}

	for _, tt := range tests {
		d, ok := schedule.ParseDate(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseDate(%q)", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, d.String())
		}
	}
}

func TestNormalizeDate_KeepsInvalidInput(t *testing.T) {
	assert.Equal(t, "2025-03-04", schedule.NormalizeDate("2025-03-04T08:00:00Z"))
	assert.Equal(t, "tomorrow", schedule.NormalizeDate(" tomorrow "))
}

func TestHasDuplicateDates(t *testing.T) {
	assert.True(t, schedule.HasDuplicateDates(dates("2025-01-01", "2025-01-01")))
	assert.False(t, schedule.HasDuplicateDates(dates("2025-01-01", "2025-01-02")))
	assert.False(t, schedule.HasDuplicateDates(nil))
}

func TestValidateMinDateGap(t *testing.T) {
	assert.False(t, schedule.ValidateMinDateGap(dates("2025-01-01", "2025-01-10"), 14))
	assert.True(t, schedule.ValidateMinDateGap(dates("2025-01-01", "2025-01-10"), 7))

	// Order of input does not matter; adjacency is chronological
	assert.False(t, schedule.ValidateMinDateGap(dates("2025-03-01", "2025-01-01", "2025-01-05"), 7))

	// Fewer than two dates always pass
	assert.True(t, schedule.ValidateMinDateGap(dates("2025-01-01"), 30))
}

func TestDateHelpers(t *testing.T) {
	a := schedule.NewDate(2025, time.January, 1)
	b := schedule.NewDate(2025, time.January, 31)

	assert.Equal(t, 30, schedule.DaysBetween(a, b))
	assert.True(t, schedule.IsDateAfter(b, a))
	assert.Equal(t, b, schedule.Later(a, b))
	assert.Equal(t, "2025-02-10", b.AddDays(10).String())
	assert.True(t, schedule.IsValidDate("2024-02-29"))
	assert.False(t, schedule.IsValidDate("2025-02-29"))
}

// Package calendar provides pure civil-date arithmetic for the weekly
// capacity model: Monday anchors, ISO week labels, fortnight blocks and
// business-day overlap counting. No I/O, no locale; dates are represented
// as time.Time values at midnight UTC and treated as civil dates.
package calendar

import (
	"fmt"
	"time"
)

const (
	daysPerWeek  = 7
	businessDays = 5
)

// Date constructs a civil date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate converts an instant to the civil date observed in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return Date(y, m, d)
}

// MondayOf returns the ISO Monday of the week containing d.
func MondayOf(d time.Time) time.Time {
	wd := int(d.Weekday())
	// time.Weekday has Sunday = 0; shift so Monday = 0.
	offset := (wd + 6) % 7
	return Date(d.Year(), d.Month(), d.Day()).AddDate(0, 0, -offset)
}

// AddWeeks returns the Monday n weeks after m (negative n walks back).
func AddWeeks(m time.Time, n int) time.Time {
	return m.AddDate(0, 0, n*daysPerWeek)
}

// WeeksBetween returns the signed difference m2 - m1 in whole weeks.
// Both arguments are expected to be Monday anchors.
func WeeksBetween(m1, m2 time.Time) int {
	days := int(m2.Sub(m1).Hours() / 24)
	return days / daysPerWeek
}

// ISOWeekLabel formats a Monday anchor as "YYYY-Www".
func ISOWeekLabel(m time.Time) string {
	year, week := m.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseISOWeekLabel parses a "YYYY-Www" label back to its Monday anchor.
func ParseISOWeekLabel(label string) (time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(label, "%4d-W%2d", &year, &week); err != nil {
		return time.Time{}, fmt.Errorf("invalid week label %q: %w", label, err)
	}
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("invalid week label %q: week out of range", label)
	}
	// January 4 is always inside ISO week 1 of its year.
	anchor := MondayOf(Date(year, time.January, 4))
	monday := AddWeeks(anchor, week-1)
	if y, w := monday.ISOWeek(); y != year || w != week {
		return time.Time{}, fmt.Errorf("invalid week label %q: no such week", label)
	}
	return monday, nil
}

// FortnightBlocks returns count consecutive non-overlapping two-week windows
// starting at baseline. Each entry holds the Monday anchors of the two weeks.
func FortnightBlocks(baseline time.Time, count int) [][2]time.Time {
	blocks := make([][2]time.Time, 0, count)
	for i := 0; i < count; i++ {
		first := AddWeeks(baseline, 2*i)
		blocks = append(blocks, [2]time.Time{first, AddWeeks(first, 1)})
	}
	return blocks
}

// BusinessDaysIn counts Mon-Fri dates in the inclusive range [start, end].
func BusinessDaysIn(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

// OverlapWithWeek counts the business days of the intersection of the
// inclusive range [start, end] with the 5-day week beginning at monday.
// A range starting on the following Saturday or Sunday contributes nothing,
// so it is effectively treated as beginning the next week.
func OverlapWithWeek(start, end, monday time.Time) int {
	weekEnd := monday.AddDate(0, 0, businessDays-1)
	lo, hi := start, end
	if lo.Before(monday) {
		lo = monday
	}
	if hi.After(weekEnd) {
		hi = weekEnd
	}
	return BusinessDaysIn(lo, hi)
}

// ParseDate parses the YYYY-MM-DD wire format into a civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t.Year(), t.Month(), t.Day()), nil
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

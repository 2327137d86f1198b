package types

import (
	"fmt"
	"time"
)

// DayLayout is the wire format of a Day
const DayLayout = "2006-01-02"

// Day is a calendar date without a time-of-day or zone
type Day struct {
	year  int
	month time.Month
	day   int
}

// NewDay returns the normalized day for the given date
func NewDay(year int, month time.Month, day int) Day {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Day{year: t.Year(), month: t.Month(), day: t.Day()}
}

// DayOf returns the calendar day of t in loc. A nil loc uses t's own location.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return Day{year: t.Year(), month: t.Month(), day: t.Day()}
}

// ParseDay parses a "YYYY-MM-DD" string
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t, nil), nil
}

// Time returns midnight UTC of the day
func (d Day) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Day
func (d Day) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// AddDays returns d shifted by n days
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n), nil)
}

// Before reports whether d is strictly before o
func (d Day) Before(o Day) bool {
	return d.Time().Before(o.Time())
}

// After reports whether d is strictly after o
func (d Day) After(o Day) bool {
	return d.Time().After(o.Time())
}

// DaysBetween returns the number of days from a to b (negative if b is before a)
func DaysBetween(a, b Day) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DayLayout)
}

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML)
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Day) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

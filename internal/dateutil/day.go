// Package dateutil provides the calendar-day type used by the store and the
// statistics engine. Timestamps are converted to a Day at the edge of the
// system; nothing below the API layer compares time-of-day.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical YYYY-MM-DD representation of a Day.
const Layout = "2006-01-02"

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ErrInvalidDate is returned when a string is neither a calendar date nor an RFC 3339 timestamp.
var ErrInvalidDate = errors.New("invalid date")

// Day is a calendar date with no time-of-day or location. The zero value is
// not a valid date; use IsZero to detect it.
type Day struct {
	year  int
	month time.Month
	day   int
}

// New returns the Day for the given year, month and day, normalising
// out-of-range values the way time.Date does (e.g. Feb 30 -> Mar 1 or 2).
func New(year int, month time.Month, day int) Day {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// FromTime returns the calendar day of t as observed in loc.
func FromTime(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{year: y, month: m, day: d}
}

// Parse accepts either YYYY-MM-DD or an RFC 3339 timestamp. Timestamps are
// converted into loc before the date is taken.
func Parse(value string, loc *time.Location) (Day, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Day{}, ErrInvalidDate
	}
	if t, err := time.Parse(Layout, value); err == nil {
		return Day{year: t.Year(), month: t.Month(), day: t.Day()}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return FromTime(t, loc), nil
	}
	return Day{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}

// MustParse is Parse for literals in tests and seed data.
func MustParse(value string) Day {
	d, err := Parse(value, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

// Year returns the calendar year.
func (d Day) Year() int { return d.year }

// Month returns the calendar month.
func (d Day) Month() time.Month { return d.month }

// Day returns the day of the month.
func (d Day) Day() int { return d.day }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d == Day{} }

// Weekday returns the day of the week, Sunday being 0.
func (d Day) Weekday() time.Weekday { return d.Time().Weekday() }

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n calendar days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return FromTime(d.Time().AddDate(0, 0, n), time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly later than other.
func (d Day) After(other Day) bool {
	return d.Time().After(other.Time())
}

// DaysSince returns the number of calendar days from other to d.
func (d Day) DaysSince(other Day) int {
	return int(d.Time().Sub(other.Time()).Hours() / 24)
}

// StartOfWeek returns the Sunday on or before d.
func (d Day) StartOfWeek() Day {
	return d.AddDays(-int(d.Weekday()))
}

// Week returns the seven days Sunday..Saturday of the week containing d.
func (d Day) Week() []Day {
	start := d.StartOfWeek()
	out := make([]Day, 7)
	for i := range out {
		out[i] = start.AddDays(i)
	}
	return out
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only YYYY-MM-DD is
// accepted here; timestamps must be converted with Parse and a location.
func (d *Day) UnmarshalText(text []byte) error {
	t, err := time.Parse(Layout, string(text))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, string(text))
	}
	*d = Day{year: t.Year(), month: t.Month(), day: t.Day()}
	return nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthDays returns every day of the month in ascending order.
func MonthDays(year int, month time.Month) []Day {
	n := DaysInMonth(year, month)
	out := make([]Day, n)
	for i := 0; i < n; i++ {
		out[i] = Day{year: year, month: month, day: i + 1}
	}
	return out
}

// WeekdayLabel returns the three-letter English label ("Sun".."Sat").
func WeekdayLabel(wd time.Weekday) string {
	return weekdayLabels[wd]
}

// ShortMonth returns the three-letter English month name.
func ShortMonth(m time.Month) string {
	return m.String()[:3]
}

// RangeLabel formats an inclusive span as "<startMonth> <startDay>-<endDay>",
// e.g. "Oct 12-18". The end month is not repeated.
func RangeLabel(start, end Day) string {
	return fmt.Sprintf("%s %d-%d", ShortMonth(start.month), start.day, end.day)
}

// LoadLocation resolves an IANA zone name; empty or "Local" is the system zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

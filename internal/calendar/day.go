// Package calendar holds the civil-date and clock primitives the engine is
// built on. A Day carries no time of day and no location; converting between
// a Day and an instant always names the location explicitly.
package calendar

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date. The zero value means "unset".
type Day struct {
	year  int
	month time.Month
	day   int
}

// New returns the normalized day for y-m-d (overflowing fields roll over the
// way time.Date does).
func New(year int, month time.Month, day int) Day {
	return Of(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// Of returns the calendar date of t in t's own location.
func Of(t time.Time) Day {
	y, m, d := t.Date()
	return Day{year: y, month: m, day: d}
}

// In returns the calendar date of t as seen from loc.
func In(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	return Of(t.In(loc))
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Of(t), nil
}

// MustParse is Parse for literals in tests and presets.
func MustParse(s string) Day {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Day) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }

func (d Day) Year() int         { return d.year }
func (d Day) Month() time.Month { return d.month }
func (d Day) DayOfMonth() int   { return d.day }
func (d Day) String() string    { return d.noon(time.UTC).Format(dayLayout) }
func (d Day) AddDays(n int) Day { return Of(d.noon(time.UTC).AddDate(0, 0, n)) }
func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }
func (d Day) After(o Day) bool  { return d.Compare(o) > 0 }
func (d Day) Equal(o Day) bool  { return d == o }
func (d Day) noon(loc *time.Location) time.Time {
	return time.Date(d.year, d.month, d.day, 12, 0, 0, 0, loc)
}

// Compare returns -1, 0 or +1.
func (d Day) Compare(o Day) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

// DaysUntil returns the number of calendar days from d to o (negative when o
// is earlier).
func (d Day) DaysUntil(o Day) int {
	a := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
	b := time.Date(o.year, o.month, o.day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (d Day) Weekday() time.Weekday { return d.noon(time.UTC).Weekday() }

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func (d Day) ISOWeekday() int {
	wd := d.Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// Start returns midnight at the beginning of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
}

func (d Day) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Day{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

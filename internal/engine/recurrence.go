package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// ShouldGenerate reports whether t applies on day d. It looks only at the
// template's rule and date range; the active flag is the generator's concern,
// so historical relevance does not change when a template is paused.
func ShouldGenerate(t storage.Template, d calendar.Day) bool {
	if !t.StartDate.IsZero() && d.Before(t.StartDate) {
		return false
	}
	if !t.EndDate.IsZero() && d.After(t.EndDate) {
		return false
	}

	r := t.Recurrence
	switch r.Kind {
	case storage.RecurrenceDaily:
		return true
	case storage.RecurrenceWeekly:
		return slices.Contains(r.Weekdays, d.ISOWeekday())
	case storage.RecurrenceMonthly:
		return slices.Contains(r.MonthDays, d.DayOfMonth())
	case storage.RecurrenceCustom:
		// Custom rules carry no selection logic yet: any configured token
		// makes the template apply every day.
		return len(r.Custom) > 0
	default:
		return false
	}
}

// ValidateRecurrence rejects rules whose day sets are empty or out of range.
func ValidateRecurrence(r storage.Recurrence) error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid recurrence kind: %q", r.Kind)
	}
	switch r.Kind {
	case storage.RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			return fmt.Errorf("weekly recurrence needs at least one weekday")
		}
		for _, wd := range r.Weekdays {
			if wd < 1 || wd > 7 {
				return fmt.Errorf("weekday %d out of range 1..7", wd)
			}
		}
	case storage.RecurrenceMonthly:
		if len(r.MonthDays) == 0 {
			return fmt.Errorf("monthly recurrence needs at least one day of month")
		}
		for _, md := range r.MonthDays {
			if md < 1 || md > 31 {
				return fmt.Errorf("day of month %d out of range 1..31", md)
			}
		}
	case storage.RecurrenceCustom:
		if len(r.Custom) == 0 {
			return fmt.Errorf("custom recurrence needs at least one token")
		}
	}
	return nil
}

var weekdayNames = map[string]int{
	"mon": 1, "monday": 1,
	"tue": 2, "tues": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
	"sun": 7, "sunday": 7,
}

// ParseRecurrence parses user input such as "daily", "weekly:mon,wed,fri",
// "monthly:1,15", "custom:every-other-day" or "none".
func ParseRecurrence(input string) (storage.Recurrence, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	kindPart, args, _ := strings.Cut(s, ":")
	kind := storage.RecurrenceKind(strings.TrimSpace(kindPart))
	if kind == "" {
		kind = storage.RecurrenceDaily
	}
	if !kind.IsValid() {
		return storage.Recurrence{}, fmt.Errorf("invalid recurrence: %q", input)
	}

	r := storage.Recurrence{Kind: kind}
	tokens := splitList(args)
	switch kind {
	case storage.RecurrenceWeekly:
		for _, tok := range tokens {
			wd, ok := weekdayNames[tok]
			if !ok {
				n, err := strconv.Atoi(tok)
				if err != nil {
					return storage.Recurrence{}, fmt.Errorf("invalid weekday %q", tok)
				}
				wd = n
			}
			r.Weekdays = append(r.Weekdays, wd)
		}
	case storage.RecurrenceMonthly:
		for _, tok := range tokens {
			n, err := strconv.Atoi(tok)
			if err != nil {
				return storage.Recurrence{}, fmt.Errorf("invalid day of month %q", tok)
			}
			r.MonthDays = append(r.MonthDays, n)
		}
	case storage.RecurrenceCustom:
		r.Custom = tokens
	}
	slices.Sort(r.Weekdays)
	r.Weekdays = slices.Compact(r.Weekdays)
	slices.Sort(r.MonthDays)
	r.MonthDays = slices.Compact(r.MonthDays)

	if err := ValidateRecurrence(r); err != nil {
		return storage.Recurrence{}, err
	}
	return r, nil
}

// FormatRecurrence is the inverse of ParseRecurrence.
func FormatRecurrence(r storage.Recurrence) string {
	switch r.Kind {
	case storage.RecurrenceWeekly:
		return string(r.Kind) + ":" + joinInts(r.Weekdays)
	case storage.RecurrenceMonthly:
		return string(r.Kind) + ":" + joinInts(r.MonthDays)
	case storage.RecurrenceCustom:
		return string(r.Kind) + ":" + strings.Join(r.Custom, ",")
	default:
		return string(r.Kind)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
)

type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// nullDay stores the zero Day as NULL.
func nullDay(d calendar.Day) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func scanDay(ns sql.NullString) (calendar.Day, error) {
	if !ns.Valid || ns.String == "" {
		return calendar.Day{}, nil
	}
	d, err := calendar.Parse(ns.String)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("stored day: %w", err)
	}
	return d, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayArithmetic(t *testing.T) {
	d := MustParse("2024-02-28")
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", MustParse("2024-01-01").AddDays(-1).String())
	assert.Equal(t, 2, d.DaysUntil(MustParse("2024-03-01")))
	assert.Equal(t, -2, MustParse("2024-03-01").DaysUntil(d))
}

func TestDayCompare(t *testing.T) {
	a := MustParse("2024-01-31")
	b := MustParse("2024-02-01")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(New(2024, time.January, 31)))
	assert.True(t, Day{}.IsZero())
}

func TestISOWeekday(t *testing.T) {
	// 2024-03-11 is a Monday.
	mon := MustParse("2024-03-11")
	for i := 0; i < 7; i++ {
		assert.Equal(t, i+1, mon.AddDays(i).ISOWeekday())
	}
}

func TestDayInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	instant := time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-14", In(instant, loc).String())
	assert.Equal(t, "2024-03-15", In(instant, time.UTC).String())

	start := MustParse("2024-03-15").Start(loc)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, loc, start.Location())
}

func TestDayText(t *testing.T) {
	var d Day
	require.NoError(t, d.UnmarshalText([]byte("2024-07-04")))
	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-07-04", string(out))

	require.Error(t, d.UnmarshalText([]byte("07/04/2024")))
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())
	c.Set(start)
	assert.Equal(t, start, c.Now())
}

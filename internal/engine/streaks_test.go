package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

func TestWalkStreakBestNeverBelowCurrent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	start := day("2024-01-01")

	for run := 0; run < 200; run++ {
		n := 1 + rng.IntN(40)
		days := make([]calendar.Day, n)
		relevant := make(map[calendar.Day]bool, n)
		done := make(map[calendar.Day]bool, n)
		for i := range days {
			days[i] = start.AddDays(i)
			relevant[days[i]] = rng.IntN(5) > 0
			done[days[i]] = rng.IntN(3) > 0
		}
		today := start.AddDays(rng.IntN(n + 2))

		tally := walkStreak(days, today, func(d calendar.Day) (bool, bool) {
			return relevant[d], done[d]
		})
		if tally.best < tally.current {
			t.Fatalf("run %d: best %d < current %d", run, tally.best, tally.current)
		}
		if tally.best > tally.total {
			t.Fatalf("run %d: best %d > total %d", run, tally.best, tally.total)
		}
	}
}

func TestWalkStreakPendingTodayBreaksCurrent(t *testing.T) {
	d := day("2024-05-10")
	var days []calendar.Day
	for i := 4; i >= 0; i-- {
		days = append(days, d.AddDays(-i))
	}
	tally := walkStreak(days, d, func(x calendar.Day) (bool, bool) {
		return true, x != d
	})
	assert.Equal(t, 0, tally.current)
	assert.Equal(t, 4, tally.best)
	assert.Equal(t, 4, tally.total)

	// Days after today never count toward the current streak.
	tally = walkStreak(days, d.AddDays(-1), func(x calendar.Day) (bool, bool) {
		return true, x != d
	})
	assert.Equal(t, 4, tally.current)
}

func TestRecurrenceChangeKeepsPastStreak(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	for _, when := range []string{"2024-01-01T10:00", "2024-01-02T10:00", "2024-01-03T10:00"} {
		logDay(t, svc, clock, when, tmpl, storage.StatusCompleted)
	}

	clock.Set(at("2024-01-04T08:00"))
	before, err := svc.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, 3, before.CurrentStreak)

	weekly := storage.Recurrence{Kind: storage.RecurrenceWeekly, Weekdays: []int{7}}
	_, err = svc.UpdateTemplate(ctx, tmpl.ID, TemplatePatch{Recurrence: &weekly})
	require.NoError(t, err)

	after, err := svc.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentStreak, after.CurrentStreak)
	assert.Equal(t, before.BestStreak, after.BestStreak)
	assert.Equal(t, before.TotalCompletions, after.TotalCompletions)
}

func TestUnloggedApplicableDaysBreakStreak(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	other := createDaily(t, svc, "Other", 5)
	logDay(t, svc, clock, "2024-01-01T10:00", other, storage.StatusCompleted)
	logDay(t, svc, clock, "2024-01-02T10:00", other, storage.StatusCompleted)

	// Created on the 3rd, but its rule applies to the 1st and 2nd too.
	clock.Set(at("2024-01-03T09:00"))
	late := createDaily(t, svc, "Late", 5)
	logDay(t, svc, clock, "2024-01-03T10:00", late, storage.StatusCompleted)

	rec, err := svc.TemplateStreak(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.BestStreak)
}

func TestLatenessDoesNotBreakStreak(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	clock.Set(at("2024-01-02T05:00"))
	_, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)

	res, err := svc.SetStatus(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")}, storage.StatusCompleted)
	require.NoError(t, err)
	require.True(t, res.Instance.Late)
	require.NotNil(t, res.Streak)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 1, res.Global.CurrentStreak)
}

func TestInvalidateCacheForcesRecompute(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01T10:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	_, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)

	rec, err := svc.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, 0, rec.CurrentStreak)

	stored, err := svc.Store().Streaks().Get(ctx, testUser, tmpl.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "results are persisted as the template's summary")

	// Change history behind the engine's back.
	key := storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")}
	in, err := svc.Instance(ctx, key)
	require.NoError(t, err)
	in.Status = storage.StatusCompleted
	in.Version++
	require.NoError(t, svc.Store().Instances().Put(ctx, *in))

	rec, err = svc.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak, "served from cache")

	require.NoError(t, svc.InvalidateStreaks(ctx, tmpl.ID))
	rec, err = svc.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
}

func TestGlobalLoggingStreak(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	a := createDaily(t, svc, "A", 10)
	b := createDaily(t, svc, "B", 10)
	logDay(t, svc, clock, "2024-01-01T10:00", a, storage.StatusCompleted)
	logDay(t, svc, clock, "2024-01-02T10:00", b, storage.StatusNotNecessary)

	clock.Set(at("2024-01-03T10:00"))
	_, err := svc.Day(ctx, day("2024-01-03"))
	require.NoError(t, err)
	g, err := svc.GlobalStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, g.CurrentStreak)
	assert.Equal(t, 2, g.BestStreak)

	res := logDay(t, svc, clock, "2024-01-03T10:05", a, storage.StatusNotDid)
	assert.Equal(t, 3, res.Global.CurrentStreak, "any logged status counts")

	// Rewrite history directly; the global result stays until it goes stale.
	key := storage.InstanceKey{TemplateID: a.ID, Day: day("2024-01-03")}
	in, err := svc.Instance(ctx, key)
	require.NoError(t, err)
	in.Status = storage.StatusPending
	in.Version++
	require.NoError(t, svc.Store().Instances().Put(ctx, *in))
	svc.streaks.MarkDirty()

	clock.Advance(30 * time.Minute)
	g, err = svc.GlobalStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, g.CurrentStreak)

	clock.Advance(31 * time.Minute)
	g, err = svc.GlobalStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, g.CurrentStreak)
}

type failingListAll struct {
	storage.InstanceStore
}

func (failingListAll) ListAll(context.Context, string) ([]storage.Instance, error) {
	return nil, errors.New("index scan failed")
}

type storeWithInstances struct {
	storage.Store
	instances storage.InstanceStore
}

func (s storeWithInstances) Instances() storage.InstanceStore { return s.instances }

func TestIndexFailureFallsBackToStore(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := storeWithInstances{Store: mem, instances: failingListAll{mem.Instances()}}
	clock := calendar.NewFakeClock(at("2024-01-01T09:00"))
	svc := NewService(store, testUser, testOptions(clock))

	tmpl := createDaily(t, svc, "Read", 20)
	logDay(t, svc, clock, "2024-01-01T10:00", tmpl, storage.StatusCompleted)
	res := logDay(t, svc, clock, "2024-01-02T10:00", tmpl, storage.StatusCompleted)

	require.NotNil(t, res.Streak)
	assert.Equal(t, 2, res.Streak.CurrentStreak)
	assert.Equal(t, 2, res.Streak.BestStreak)
	assert.Equal(t, 2, res.Global.CurrentStreak)
	assert.Nil(t, svc.streaks.index.Load(), "a failed rebuild never publishes an index")
}

func TestCacheEvictsStaleEntriesOverSoftLimit(t *testing.T) {
	clock := calendar.NewFakeClock(at("2024-01-01T09:00"))
	opts := testOptions(clock)
	opts.Streaks = StreakRules{CacheSoftLimit: 2}
	svc := NewService(storage.NewMemoryStore(), testUser, opts)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		ids = append(ids, createDaily(t, svc, name, 10).ID)
	}
	_, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	for _, id := range ids {
		_, err := svc.TemplateStreak(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, svc.streaks.cacheLen(), "fresh entries survive the soft limit")

	clock.Advance(25 * time.Hour)
	_, err = svc.TemplateStreak(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, svc.streaks.cacheLen())
}

func TestStoredRecordsSurviveRestartAndAreChecked(t *testing.T) {
	store := openTestStore(t)
	clock := calendar.NewFakeClock(at("2024-01-01T09:00"))
	svc := NewService(store, testUser, testOptions(clock))
	ctx := context.Background()

	created := createDaily(t, svc, "Read", 20)
	logDay(t, svc, clock, "2024-01-01T10:00", created, storage.StatusCompleted)
	tmpl, err := store.Templates().Get(ctx, testUser, created.ID)
	require.NoError(t, err)

	seed := func(cur, best, total int) {
		require.NoError(t, store.Streaks().Put(ctx, storage.StreakRecord{
			UserID:           testUser,
			TemplateID:       tmpl.ID,
			CurrentStreak:    cur,
			BestStreak:       best,
			TotalCompletions: total,
			AsOf:             day("2024-01-01"),
			TemplateModified: tmpl.LastModified,
			CalculatedAt:     clock.Now(),
		}))
	}

	seed(7, 7, 7)
	restarted := NewService(store, testUser, testOptions(clock))
	rec, err := restarted.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.CurrentStreak, "a valid stored summary is reused")

	seed(5, 2, 2)
	restarted = NewService(store, testUser, testOptions(clock))
	rec, err = restarted.TemplateStreak(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak, "an impossible summary is recomputed")
	assert.Equal(t, 1, rec.BestStreak)

	healed, err := store.Streaks().Get(ctx, testUser, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, healed.BestStreak)
}

func TestStreakIndexCopyOnWrite(t *testing.T) {
	d1, d2 := day("2024-01-01"), day("2024-01-03")
	base := buildStreakIndex([]storage.Instance{
		{TemplateID: "a", Day: d2, Status: storage.StatusPending},
		{TemplateID: "a", Day: d1, Status: storage.StatusCompleted},
	})
	require.Equal(t, []calendar.Day{d1, d2}, base.days)

	mid := day("2024-01-02")
	next := base.with(storage.Instance{TemplateID: "b", Day: mid, Status: storage.StatusCompleted})
	assert.Equal(t, []calendar.Day{d1, mid, d2}, next.days)
	assert.Len(t, base.days, 2, "the old snapshot is untouched")
	_, ok := base.lookup(mid, "b")
	assert.False(t, ok)

	updated := next.with(storage.Instance{TemplateID: "a", Day: d2, Status: storage.StatusNotDid})
	assert.True(t, updated.anyLogged(d2))
	assert.False(t, next.anyLogged(d2))

	trimmed := updated.without(storage.InstanceKey{TemplateID: "b", Day: mid})
	assert.Equal(t, []calendar.Day{d1, d2}, trimmed.days)
	assert.Len(t, updated.days, 3)
	assert.Same(t, trimmed, trimmed.without(storage.InstanceKey{TemplateID: "zz", Day: d1}))
}

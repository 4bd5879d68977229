package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
)

func newTestSessions(t *testing.T, start time.Time) (*engine.Sessions, *calendar.FakeClock) {
	t.Helper()
	clock := calendar.NewFakeClock(start)
	return engine.NewSessions(storage.NewMemoryStore(), engine.Options{
		Clock:    clock,
		Location: time.UTC,
		Logger:   discardLogger(),
	}), clock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceSettlesAndGenerates(t *testing.T) {
	ctx := context.Background()
	sessions, clock := newTestSessions(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))

	svc := sessions.For("u1")
	tmpl, err := svc.CreateTemplate(ctx, engine.TemplateInput{Name: "Read", Reward: 20})
	require.NoError(t, err)

	sweep := NewRolloverSweep(sessions, []string{"u2"}, time.Hour, discardLogger())

	res, err := sweep.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Users: 2, Rolled: 2, Generated: 1}, res)

	res, err = sweep.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Users: 2}, res, "a second pass on the same day is a no-op")

	key := storage.InstanceKey{TemplateID: tmpl.ID, Day: calendar.MustParse("2024-01-01")}
	_, err = svc.SetStatus(ctx, key, storage.StatusCompleted)
	require.NoError(t, err)

	// Still inside the grace window: yesterday is not settled yet.
	clock.Set(time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC))
	res, err = sweep.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rolled)
	assert.Equal(t, 1, res.Generated)

	clock.Set(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
	res, err = sweep.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rolled)
	assert.Equal(t, 0, res.Generated)

	st, err := svc.EnsureRolledOver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, st.BaseXP)
	assert.Equal(t, 0, st.TodayXP)
	assert.Equal(t, calendar.MustParse("2024-01-02"), st.LastRolloverDay)
}

func TestSweepStartStop(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newTestSessions(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	svc := sessions.For("u1")
	tmpl, err := svc.CreateTemplate(ctx, engine.TemplateInput{Name: "Read", Reward: 20})
	require.NoError(t, err)

	sweep := NewRolloverSweep(sessions, nil, 10*time.Millisecond, discardLogger())
	sweep.Stop()
	assert.False(t, sweep.IsRunning())

	sweep.Start()
	sweep.Start()
	assert.True(t, sweep.IsRunning())

	key := storage.InstanceKey{TemplateID: tmpl.ID, Day: calendar.MustParse("2024-01-01")}
	require.Eventually(t, func() bool {
		in, err := svc.Store().Instances().Get(ctx, "u1", key)
		return err == nil && in != nil
	}, time.Second, 5*time.Millisecond)

	sweep.Stop()
	assert.False(t, sweep.IsRunning())
	sweep.Stop()
}

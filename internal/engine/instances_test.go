package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/storage"
)

func TestGetInstancesForDayGeneratesOnce(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	a := createDaily(t, svc, "A", 10)
	_, err := svc.CreateTemplate(ctx, TemplateInput{
		Name:       "B",
		Reward:     10,
		Recurrence: storage.Recurrence{Kind: storage.RecurrenceWeekly, Weekdays: []int{2}},
	})
	require.NoError(t, err)
	c := createDaily(t, svc, "C", 10)
	_, err = svc.SetActive(ctx, c.ID, false)
	require.NoError(t, err)

	mon, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, mon, 1)
	assert.Equal(t, a.ID, mon[0].TemplateID)
	assert.Equal(t, storage.StatusPending, mon[0].Status)

	tue, err := svc.Day(ctx, day("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, tue, 2)
	assert.Equal(t, "A", tue[0].Name)
	assert.Equal(t, "B", tue[1].Name)

	logDay(t, svc, clock, "2024-01-01T10:00", a, storage.StatusCompleted)
	again, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, storage.StatusCompleted, again[0].Status, "reads never overwrite logged instances")
}

func TestNewTemplateJoinsGeneratedToday(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	createDaily(t, svc, "A", 10)
	got, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	createDaily(t, svc, "B", 10)
	got, err = svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTemplateEditPreservesHistory(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	logDay(t, svc, clock, "2024-01-01T10:00", tmpl, storage.StatusCompleted)
	logDay(t, svc, clock, "2024-01-02T10:00", tmpl, storage.StatusCompleted)
	_, err := svc.Day(ctx, day("2024-01-03"))
	require.NoError(t, err)

	name, reward := "Read more", 30
	_, err = svc.UpdateTemplate(ctx, tmpl.ID, TemplatePatch{Name: &name, Reward: &reward})
	require.NoError(t, err)

	past, err := svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, "Read", past.Name, "days before the edit are not rewritten")

	today, err := svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-02")})
	require.NoError(t, err)
	assert.Equal(t, "Read more", today.Name)
	assert.Equal(t, 20, today.Reward, "logged rewards stay as granted")
	assert.Equal(t, storage.StatusCompleted, today.Status)

	future, err := svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-03")})
	require.NoError(t, err)
	assert.Equal(t, 30, future.Reward)

	// Monday only: the pending Wednesday goes, the logged Tuesday stays.
	weekly := storage.Recurrence{Kind: storage.RecurrenceWeekly, Weekdays: []int{1}}
	_, err = svc.UpdateTemplate(ctx, tmpl.ID, TemplatePatch{Recurrence: &weekly})
	require.NoError(t, err)

	_, err = svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-03")})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-02")})
	require.NoError(t, err)
}

func TestRegenerateAllDaysRemovesPendingOnly(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	logDay(t, svc, clock, "2024-01-01T10:00", tmpl, storage.StatusCompleted)
	_, err := svc.Day(ctx, day("2024-01-02"))
	require.NoError(t, err)

	clock.Set(at("2024-01-03T10:00"))
	end := day("2024-01-01")
	_, err = svc.UpdateTemplate(ctx, tmpl.ID, TemplatePatch{EndDate: &end})
	require.NoError(t, err)

	res, err := svc.RegenerateAllDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 0, res.Created)

	got, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, storage.StatusCompleted, got[0].Status)
}

func TestLatenessIsFixedOnLeavingPending(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	_, err := svc.Day(ctx, day("2024-01-01"))
	require.NoError(t, err)
	key := storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")}

	assert.False(t, svc.gen.IsLate(key.Day, at("2024-01-02T02:00")))
	assert.True(t, svc.gen.IsLate(key.Day, at("2024-01-02T02:01")))

	clock.Set(at("2024-01-02T01:59"))
	res, err := svc.SetStatus(ctx, key, storage.StatusCompleted)
	require.NoError(t, err)
	assert.False(t, res.Instance.Late)
	require.NotNil(t, res.Instance.CompletedAt)

	clock.Set(at("2024-01-02T03:00"))
	res, err = svc.SetStatus(ctx, key, storage.StatusPending)
	require.NoError(t, err)
	assert.False(t, res.Instance.Late)

	res, err = svc.SetStatus(ctx, key, storage.StatusNotDid)
	require.NoError(t, err)
	assert.True(t, res.Instance.Late)
	assert.Nil(t, res.Instance.CompletedAt)
}

func TestDeactivateAndDeleteKeepHistory(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Read", 20)
	logDay(t, svc, clock, "2024-01-01T10:00", tmpl, storage.StatusCompleted)
	clock.Set(at("2024-01-02T10:00"))
	for _, d := range []string{"2024-01-02", "2024-01-03"} {
		_, err := svc.Day(ctx, day(d))
		require.NoError(t, err)
	}

	_, err := svc.SetActive(ctx, tmpl.ID, false)
	require.NoError(t, err)
	for _, d := range []string{"2024-01-02", "2024-01-03"} {
		_, err := svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day(d)})
		require.ErrorIs(t, err, ErrNotFound, d)
	}
	_, err = svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, tmpl.ID, true)
	require.NoError(t, err)
	got, err := svc.Day(ctx, day("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, svc.DeleteTemplate(ctx, tmpl.ID))
	_, err = svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-02")})
	require.ErrorIs(t, err, ErrNotFound)
	kept, err := svc.Instance(ctx, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, kept.Status)

	_, err = svc.TemplateStreak(ctx, tmpl.ID)
	require.ErrorIs(t, err, ErrNotFound)

	st, err := svc.EnsureRolledOver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, st.BaseXP, "earned rewards are retained")
}

func TestTemplateValidation(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	bad := []TemplateInput{
		{Name: "  ", Reward: 10},
		{Name: "x", Reward: -1},
		{Name: "x", Reward: 10, Recurrence: storage.Recurrence{Kind: storage.RecurrenceWeekly}},
		{Name: "x", Reward: 10, StartDate: day("2024-02-01"), EndDate: day("2024-01-01")},
	}
	for _, in := range bad {
		_, err := svc.CreateTemplate(ctx, in)
		assert.Error(t, err, "%+v", in)
	}

	_, err := svc.UpdateTemplate(ctx, "missing", TemplatePatch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveReferences(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01T09:00")
	ctx := context.Background()

	tmpl := createDaily(t, svc, "Morning Run", 20)
	createDaily(t, svc, "Meditate", 10)

	got, err := svc.ResolveTemplate(ctx, "morning run")
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)

	got, err = svc.ResolveTemplate(ctx, tmpl.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)

	_, err = svc.ResolveTemplate(ctx, "nothing")
	require.ErrorIs(t, err, ErrNotFound)

	key, err := svc.ResolveInstance(ctx, day("2024-01-01"), "morn")
	require.NoError(t, err)
	assert.Equal(t, storage.InstanceKey{TemplateID: tmpl.ID, Day: day("2024-01-01")}, key)

	key, err = svc.ResolveInstance(ctx, day("2024-01-05"), key.Encode())
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-01"), key.Day)

	_, err = svc.ResolveInstance(ctx, day("2024-01-01"), "m")
	assert.Error(t, err, "ambiguous prefix")
}

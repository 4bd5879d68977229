package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
)

func newTestBoard(t *testing.T) (boardModel, *engine.Service) {
	t.Helper()
	clock := calendar.NewFakeClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	svc := engine.NewService(storage.NewMemoryStore(), "me", engine.Options{
		Clock:    clock,
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	for _, name := range []string{"Read", "Stretch"} {
		_, err := svc.CreateTemplate(context.Background(), engine.TemplateInput{Name: name, Reward: 20})
		require.NoError(t, err)
	}
	return newBoardModel(context.Background(), svc), svc
}

// step applies msg and then runs the returned command chain to completion.
func step(t *testing.T, m boardModel, msg tea.Msg) boardModel {
	t.Helper()
	for msg != nil {
		next, cmd := m.Update(msg)
		m = next.(boardModel)
		if cmd == nil {
			return m
		}
		msg = cmd()
	}
	return m
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBoardLoadsAndCompletes(t *testing.T) {
	m, svc := newTestBoard(t)
	m = step(t, m, m.Init()())
	require.NoError(t, m.err)
	require.Len(t, m.instances, 2)

	view := m.View()
	assert.Contains(t, view, "Level 1")
	assert.Contains(t, view, "> ⬜ Read +20")

	m = step(t, m, key("j"))
	assert.Equal(t, 1, m.selected)
	m = step(t, m, key("c"))
	assert.Contains(t, m.lastLog, "Stretch: +20 XP")
	assert.Equal(t, storage.StatusCompleted, m.instances[1].Status)
	assert.Equal(t, 20, m.summary.TotalXP)

	m = step(t, m, key("s"))
	assert.Contains(t, m.lastLog, "Undo (u) first")

	m = step(t, m, key("u"))
	assert.Equal(t, storage.StatusPending, m.instances[1].Status)

	total, err := svc.TotalXP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestBoardDayNavigation(t *testing.T) {
	m, _ := newTestBoard(t)
	m = step(t, m, m.Init()())

	m = step(t, m, key("l"))
	assert.Equal(t, calendar.MustParse("2024-01-02"), m.day)
	assert.Len(t, m.instances, 2)
	assert.True(t, strings.Contains(m.View(), "2024-01-02 (Tuesday)"))

	m = step(t, m, key("t"))
	assert.Equal(t, calendar.MustParse("2024-01-01"), m.day)

	// A load that arrives after the user moved on is dropped.
	stale := loadedMsg{day: calendar.MustParse("2023-12-31")}
	m = step(t, m, stale)
	assert.Len(t, m.instances, 2)
}

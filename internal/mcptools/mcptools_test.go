package mcptools

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newTestSessions(t *testing.T) (*engine.Sessions, *calendar.FakeClock) {
	t.Helper()
	clock := calendar.NewFakeClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	sessions := engine.NewSessions(storage.NewMemoryStore(), engine.Options{
		Clock:    clock,
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	_, err := sessions.For("me").CreateTemplate(context.Background(), engine.TemplateInput{Name: "Read", Reward: 20})
	require.NoError(t, err)
	return sessions, clock
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestDefinitions(t *testing.T) {
	sessions, _ := newTestSessions(t)

	defs := map[string]mcp.Tool{
		"apogee_day":        NewDayTool(sessions, "me").Definition(),
		"apogee_set_status": NewSetStatusTool(sessions, "me").Definition(),
		"apogee_status":     NewStatusTool(sessions, "me").Definition(),
		"apogee_streak":     NewStreakTool(sessions, "me").Definition(),
		"apogee_rollover":   NewRolloverTool(sessions, "me").Definition(),
	}
	for name, def := range defs {
		assert.Equal(t, name, def.Name)
		assert.Contains(t, def.InputSchema.Properties, "user", name)
	}
	assert.ElementsMatch(t, []string{"ref", "status"}, defs["apogee_set_status"].InputSchema.Required)

	assert.NotNil(t, NewServer(sessions, "me", "test"))
}

// ─── Day / SetStatus ─────────────────────────────────────────────────────────

func TestDayToolListsInstances(t *testing.T) {
	sessions, _ := newTestSessions(t)
	tool := NewDayTool(sessions, "me")

	res, err := tool.Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	text := resultText(res)
	assert.Contains(t, text, "2024-01-01 (Monday)")
	assert.Contains(t, text, "[ ] Read +20 XP")
	assert.Contains(t, text, "`2024-01-01/")

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"day": "01/02/2024"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"user": "someone-else"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "Nothing scheduled.")
}

func TestSetStatusToolBooksXP(t *testing.T) {
	sessions, _ := newTestSessions(t)
	tool := NewSetStatusTool(sessions, "me")
	ctx := context.Background()

	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"ref": "read", "status": "done"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	text := resultText(res)
	assert.Contains(t, text, "pending -> completed")
	assert.Contains(t, text, "+20 XP, +20 coins")
	assert.Contains(t, text, "Streak: current 1, best 1, total 1")

	res, err = tool.Handle(ctx, makeReq(map[string]interface{}{"ref": "read", "status": "done"}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "completed to completed is not a transition")

	res, err = tool.Handle(ctx, makeReq(map[string]interface{}{"ref": "read", "status": "undo"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "-20 XP")

	for _, args := range []map[string]interface{}{
		{"status": "done"},
		{"ref": "read", "status": "eventually"},
		{"ref": "nothing", "status": "done"},
	} {
		res, err := tool.Handle(ctx, makeReq(args))
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
	}
}

// ─── Status / Streak / Rollover ──────────────────────────────────────────────

func TestStatusStreakAndRollover(t *testing.T) {
	sessions, clock := newTestSessions(t)
	ctx := context.Background()

	_, err := NewSetStatusTool(sessions, "me").Handle(ctx, makeReq(map[string]interface{}{"ref": "Read", "status": "completed"}))
	require.NoError(t, err)

	res, err := NewStatusTool(sessions, "me").Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	text := resultText(res)
	assert.Contains(t, text, "# Status for me")
	assert.Contains(t, text, "**Total XP:** 20 (base 0, today 20, tomorrow 0)")
	assert.Contains(t, text, "- Read [daily]: streak: current 1")
	assert.Contains(t, text, "## Achievements (")

	res, err = NewStatusTool(sessions, "me").Handle(ctx, makeReq(map[string]interface{}{"achievements": false}))
	require.NoError(t, err)
	assert.NotContains(t, resultText(res), "## Achievements")

	streak := NewStreakTool(sessions, "me")
	res, err = streak.Handle(ctx, makeReq(map[string]interface{}{"template": "Read"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "Read: current 1, best 1, total 1")
	assert.Contains(t, resultText(res), "Running since 2024-01-01")

	res, err = streak.Handle(ctx, makeReq(map[string]interface{}{"refresh": true}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "Logging streak: current 1")

	res, err = streak.Handle(ctx, makeReq(map[string]interface{}{"template": "Write"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	clock.Set(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	res, err = NewRolloverTool(sessions, "me").Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	text = resultText(res)
	assert.Contains(t, text, "(base 20, today 0, tomorrow 0)")
	assert.Contains(t, text, "**Settled through:** 2024-01-02")
}

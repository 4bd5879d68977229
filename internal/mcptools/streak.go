package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
)

// StreakTool handles the apogee_streak MCP tool.
type StreakTool struct {
	base
}

func NewStreakTool(sessions *engine.Sessions, defaultUser string) *StreakTool {
	return &StreakTool{base{sessions: sessions, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for apogee_streak.
func (t *StreakTool) Definition() mcp.Tool {
	return mcp.NewTool("apogee_streak",
		mcp.WithDescription(
			"Show the streak of one template, or the logging streak across all "+
				"templates when no template is given. Days on which a template did not "+
				"apply neither extend nor break its streak.",
		),
		mcp.WithString("template",
			mcp.Description("Template name, id or unique id prefix"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Drop cached results and recompute from history"),
		),
		userParam(),
	)
}

// Handle processes the apogee_streak tool call.
func (t *StreakTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc := t.service(req)
	ref := strings.TrimSpace(req.GetString("template", ""))

	var (
		label string
		rec   storage.StreakRecord
		ids   []string
	)
	if ref != "" {
		tmpl, err := svc.ResolveTemplate(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		label, ids = tmpl.Name, []string{tmpl.ID}
	}
	if boolArg(req, "refresh", false) {
		if err := svc.InvalidateStreaks(ctx, ids...); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to refresh: %v", err)), nil
		}
	}

	var err error
	if len(ids) == 1 {
		rec, err = svc.TemplateStreak(ctx, ids[0])
	} else {
		label = "Logging streak"
		rec, err = svc.GlobalStreak(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(streakLine(label, rec) + "\n")
	if rec.CurrentStreak > 0 {
		fmt.Fprintf(&b, "Running since %s\n", rec.CurrentStreakStartDay)
	}
	if !rec.LastCompletedDay.IsZero() {
		fmt.Fprintf(&b, "Last logged %s\n", rec.LastCompletedDay)
	}
	fmt.Fprintf(&b, "As of %s\n", rec.AsOf)
	return mcp.NewToolResultText(b.String()), nil
}

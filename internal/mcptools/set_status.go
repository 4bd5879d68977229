package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/src-lua/apogee/internal/engine"
)

// SetStatusTool handles the apogee_set_status MCP tool.
type SetStatusTool struct {
	base
}

func NewSetStatusTool(sessions *engine.Sessions, defaultUser string) *SetStatusTool {
	return &SetStatusTool{base{sessions: sessions, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for apogee_set_status.
func (t *SetStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("apogee_set_status",
		mcp.WithDescription(
			"Log a task instance. Completing grants its reward as XP and coins; "+
				"moving a completed instance back to pending revokes it. Instances only "+
				"move between pending and one of the logged states.",
		),
		mcp.WithString("ref",
			mcp.Required(),
			mcp.Description("Instance key from apogee_day, or a template name, id or unique prefix"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("completed|not_necessary|not_did|pending (aliases: done, skip, miss, undo)"),
		),
		dayParam(),
		userParam(),
	)
}

// Handle processes the apogee_set_status tool call.
func (t *SetStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(req.GetString("ref", ""))
	if ref == "" {
		return mcp.NewToolResultError("'ref' is required"), nil
	}
	status, err := engine.ParseStatus(req.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc := t.service(req)
	day, err := dayArg(req, svc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := svc.ResolveInstance(ctx, day, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := svc.SetStatus(ctx, key, status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s: %s -> %s", res.Instance.Name, res.Instance.Day, res.Previous, res.Instance.Status)
	if res.Instance.Late {
		b.WriteString(" (late)")
	}
	b.WriteString("\n\n")
	switch {
	case res.XPDelta > 0:
		fmt.Fprintf(&b, "+%d XP, +%d coins\n", res.XPDelta, res.XPDelta)
	case res.XPDelta < 0:
		fmt.Fprintf(&b, "%d XP, %d coins\n", res.XPDelta, res.XPDelta)
	}
	if res.LevelUp != nil {
		fmt.Fprintf(&b, "**%s**\n", res.LevelUp.String())
	}
	b.WriteString(ledgerLines(res.Ledger, res.TotalXP))
	if res.Streak != nil {
		b.WriteString(streakLine("Streak", *res.Streak) + "\n")
	}
	b.WriteString(streakLine("Logging streak", res.Global) + "\n")
	return mcp.NewToolResultText(b.String()), nil
}

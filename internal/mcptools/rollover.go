package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/src-lua/apogee/internal/engine"
)

// RolloverTool handles the apogee_rollover MCP tool.
type RolloverTool struct {
	base
}

func NewRolloverTool(sessions *engine.Sessions, defaultUser string) *RolloverTool {
	return &RolloverTool{base{sessions: sessions, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for apogee_rollover.
func (t *RolloverTool) Definition() mcp.Tool {
	return mcp.NewTool("apogee_rollover",
		mcp.WithDescription(
			"Settle the XP ledger up to the current day. Yesterday's bucket is folded "+
				"into base XP once the two-hour grace window has closed. Safe to repeat.",
		),
		userParam(),
	)
}

// Handle processes the apogee_rollover tool call.
func (t *RolloverTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc := t.service(req)
	st, err := svc.EnsureRolledOver(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rollover failed: %v", err)), nil
	}
	total, err := svc.TotalXP(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rollover failed: %v", err)), nil
	}
	return mcp.NewToolResultText(ledgerLines(*st, total)), nil
}

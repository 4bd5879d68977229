package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/src-lua/apogee/internal/engine"
)

// StatusTool handles the apogee_status MCP tool.
type StatusTool struct {
	base
}

func NewStatusTool(sessions *engine.Sessions, defaultUser string) *StatusTool {
	return &StatusTool{base{sessions: sessions, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for apogee_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("apogee_status",
		mcp.WithDescription(
			"Show the user's level, XP buckets, currencies, streaks per template and "+
				"earned achievements.",
		),
		mcp.WithBoolean("achievements",
			mcp.Description("Include the achievement list (default: true)"),
		),
		userParam(),
	)
}

// Handle processes the apogee_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc := t.service(req)
	sum, err := svc.Summary(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load status: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Status for %s\n\n", svc.UserID())
	b.WriteString(ledgerLines(sum.Ledger, sum.TotalXP))
	if sum.InGapPeriod {
		fmt.Fprintf(&b, "Grace window open: completions for %s still count toward it.\n", sum.LogicalDay)
	}
	b.WriteString("\n" + streakLine("Logging streak", sum.Global) + "\n")

	if len(sum.Templates) > 0 {
		b.WriteString("\n## Templates\n\n")
		for _, ts := range sum.Templates {
			state := ""
			if !ts.Template.Active {
				state = " (inactive)"
			}
			fmt.Fprintf(&b, "- %s%s [%s]: %s\n", ts.Template.Name, state, engine.FormatRecurrence(ts.Template.Recurrence), streakLine("streak", ts.Streak))
		}
	}

	if boolArg(req, "achievements", true) {
		earned := 0
		for _, a := range sum.Achievements {
			if a.Earned {
				earned++
			}
		}
		fmt.Fprintf(&b, "\n## Achievements (%d/%d)\n\n", earned, len(sum.Achievements))
		for _, a := range sum.Achievements {
			mark := "[ ]"
			if a.Earned {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "- %s %s %s: %s\n", mark, a.Icon, a.Name, a.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

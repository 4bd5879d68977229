package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/src-lua/apogee/internal/engine"
)

// DayTool handles the apogee_day MCP tool.
type DayTool struct {
	base
}

func NewDayTool(sessions *engine.Sessions, defaultUser string) *DayTool {
	return &DayTool{base{sessions: sessions, defaultUser: defaultUser}}
}

// Definition returns the MCP tool definition for apogee_day.
func (t *DayTool) Definition() mcp.Tool {
	return mcp.NewTool("apogee_day",
		mcp.WithDescription(
			"List the task instances of one day. Instances are generated from the "+
				"active templates the first time a day is read and are stable afterwards. "+
				"Each line shows the instance key to pass to apogee_set_status.",
		),
		dayParam(),
		userParam(),
	)
}

// Handle processes the apogee_day tool call.
func (t *DayTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc := t.service(req)
	day, err := dayArg(req, svc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	instances, err := svc.Day(ctx, day)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load %s: %v", day, err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", day, day.Weekday())
	if len(instances) == 0 {
		b.WriteString("Nothing scheduled.\n")
		return mcp.NewToolResultText(b.String()), nil
	}
	done := 0
	for _, in := range instances {
		late := ""
		if in.Late {
			late = " (late)"
		}
		fmt.Fprintf(&b, "- %s %s +%d XP%s `%s`\n", statusMark(in.Status), in.Name, in.Reward, late, in.Key().Encode())
		if in.Status.Logged() {
			done++
		}
	}
	fmt.Fprintf(&b, "\n**Logged:** %d/%d\n", done, len(instances))
	return mcp.NewToolResultText(b.String()), nil
}

// Package mcptools exposes the accounting engine as MCP tools.
//
// Each tool follows the same shape:
// - a struct holding the shared engine.Sessions and the default user
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Engine errors are returned as tool errors, never as protocol errors.
package mcptools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
)

// base carries what every tool needs to find the caller's service.
type base struct {
	sessions    *engine.Sessions
	defaultUser string
}

func (b base) service(req mcp.CallToolRequest) *engine.Service {
	user := strings.TrimSpace(req.GetString("user", ""))
	if user == "" {
		user = b.defaultUser
	}
	return b.sessions.For(user)
}

// dayArg parses the optional "day" argument, defaulting to today.
func dayArg(req mcp.CallToolRequest, svc *engine.Service) (calendar.Day, error) {
	s := strings.TrimSpace(req.GetString("day", ""))
	if s == "" || s == "today" {
		return svc.Today(), nil
	}
	if s == "yesterday" {
		return svc.Today().AddDays(-1), nil
	}
	d, err := calendar.Parse(s)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func userParam() mcp.ToolOption {
	return mcp.WithString("user",
		mcp.Description("User id (defaults to the server's configured user)"),
	)
}

func dayParam() mcp.ToolOption {
	return mcp.WithString("day",
		mcp.Description("Calendar day as YYYY-MM-DD, 'today' or 'yesterday' (default: today)"),
	)
}

func statusMark(s storage.InstanceStatus) string {
	switch s {
	case storage.StatusCompleted:
		return "[x]"
	case storage.StatusNotNecessary:
		return "[-]"
	case storage.StatusNotDid:
		return "[!]"
	default:
		return "[ ]"
	}
}

func streakLine(label string, r storage.StreakRecord) string {
	return fmt.Sprintf("%s: current %d, best %d, total %d", label, r.CurrentStreak, r.BestStreak, r.TotalCompletions)
}

func ledgerLines(st storage.LedgerState, total int) string {
	p := engine.ProgressForTotalXP(total)
	var b strings.Builder
	fmt.Fprintf(&b, "**Level:** %d (%d/%d XP into level, next at %d)\n", p.Level, p.IntoLevel, p.LevelSpan, p.NextAt)
	fmt.Fprintf(&b, "**Total XP:** %d (base %d, today %d, tomorrow %d)\n", total, st.BaseXP, st.TodayXP, st.TomorrowXP)
	fmt.Fprintf(&b, "**Coins:** %d  **Diamonds:** %d\n", st.Coins, st.Diamonds)
	fmt.Fprintf(&b, "**Settled through:** %s\n", st.LastRolloverDay)
	return b.String()
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

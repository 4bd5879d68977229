package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/src-lua/apogee/internal/engine"
)

const instructions = `apogee tracks recurring habits. Templates generate one task instance per
applicable day. Logging an instance (apogee_set_status) books XP and coins into a
daily ledger; XP above the daily cap counts at a reduced rate. Use apogee_day to
see what is scheduled, apogee_status for the overall picture.`

// NewServer creates the MCP server with every apogee tool registered.
func NewServer(sessions *engine.Sessions, defaultUser, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"apogee",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	dayTool := NewDayTool(sessions, defaultUser)
	s.AddTool(dayTool.Definition(), dayTool.Handle)

	setStatusTool := NewSetStatusTool(sessions, defaultUser)
	s.AddTool(setStatusTool.Definition(), setStatusTool.Handle)

	statusTool := NewStatusTool(sessions, defaultUser)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	streakTool := NewStreakTool(sessions, defaultUser)
	s.AddTool(streakTool.Definition(), streakTool.Handle)

	rolloverTool := NewRolloverTool(sessions, defaultUser)
	s.AddTool(rolloverTool.Definition(), rolloverTool.Handle)

	return s
}

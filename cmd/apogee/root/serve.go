package root

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/mcptools"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, cleanup, err := openSessions(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			logger.Info("mcp server starting", "user", cfg.User, "version", Version)
			return server.ServeStdio(mcptools.NewServer(sessions, cfg.User, Version))
		},
	}
	return cmd
}

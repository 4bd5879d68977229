package root

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/config"
	"github.com/src-lua/apogee/internal/ui"
)

const Version = "0.1.0"

var (
	configPath string
	dbPath     string
	userFlag   string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "apogee",
	Short: "apogee — habit tracking with an XP ledger",
	Long: "apogee turns recurring habits into daily tasks and books every completion into " +
		"an XP ledger with levels, streaks and rewards.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $APOGEE_CONFIG or ~/.apogee.yaml)")
	pf.StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	pf.StringVarP(&userFlag, "user", "u", "", "User id (overrides config)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(
		newAddCmd(),
		newEditCmd(),
		newActiveCmd(true),
		newActiveCmd(false),
		newDeleteCmd(),
		newListCmd(),
		newDayCmd(),
		newLogCmd("do", "Complete a task", ui.IconDone, "completed"),
		newLogCmd("skip", "Mark a task as not necessary today", ui.IconSkip, "not_necessary"),
		newLogCmd("miss", "Mark a task as not done", ui.IconMiss, "not_did"),
		newRestoreCmd(),
		newRegenCmd(),
		newRolloverCmd(),
		newStatusCmd(),
		newAcceptCmd(),
		newBoardCmd(),
		newSweepCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.DBPath = dbPath
	}
	if userFlag != "" {
		c.User = userFlag
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return nil
}

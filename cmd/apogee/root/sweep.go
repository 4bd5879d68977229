package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/jobs"
	"github.com/src-lua/apogee/internal/ui"
)

func newSweepCmd() *cobra.Command {
	var once bool
	var users []string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Settle rollovers and generate today's tasks on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessions, cleanup, err := openSessions(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(users) == 0 {
				users = []string{cfg.User}
			}
			sweep := jobs.NewRolloverSweep(sessions, users, cfg.Sweep.Interval, logger)

			if once {
				res, err := sweep.RunOnce(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%s users %d, rolled %d, generated %d, failed %d\n",
					ui.Good.Render(ui.IconCalendar+" Sweep:"), res.Users, res.Rolled, res.Generated, res.Failed)
				return err
			}

			sweep.Start()
			fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render(fmt.Sprintf("Sweeping every %s; Ctrl+C to stop.", cfg.Sweep.Interval)))
			<-ctx.Done()
			sweep.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	cmd.Flags().StringSliceVar(&users, "users", nil, "Users to sweep (default: the configured user)")
	return cmd
}

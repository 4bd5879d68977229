package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/ui"
)

func newRegenCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "regen [YYYY-MM-DD]",
		Short: "Rebuild a day's pending tasks from the current templates",
		Long: `Rebuild pending tasks from the current templates. Logged tasks are never touched.
With --all every day from today on that already has tasks is rebuilt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var res engine.RegenResult
			if all {
				res, err = svc.RegenerateAllDays(ctx)
			} else {
				ref := ""
				if len(args) == 1 {
					ref = args[0]
				}
				day, derr := resolveDay(svc, ref)
				if derr != nil {
					return derr
				}
				res, err = svc.RegenerateDay(ctx, day)
			}
			if err != nil {
				return err
			}
			if !res.Changed() {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("Already up to date."))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created %d, refreshed %d, removed %d\n",
				ui.Good.Render(ui.IconHabit+" Regenerated:"), res.Created, res.Refreshed, res.Removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Rebuild every generated day from today on")
	return cmd
}

func newRolloverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Settle finished days into base XP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := svc.EnsureRolledOver(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.LabelValue("Settled through", st.LastRolloverDay))
			fmt.Fprintln(out, ui.LabelValue("Base XP", st.BaseXP))
			fmt.Fprintln(out, ui.LabelValue("Today / tomorrow", fmt.Sprintf("%d / %d", st.TodayXP, st.TomorrowXP)))
			return nil
		},
	}
	return cmd
}

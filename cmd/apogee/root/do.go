package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
	"github.com/src-lua/apogee/internal/ui"
)

// newLogCmd builds the commands that move a task out of pending.
func newLogCmd(use, short, icon, status string) *cobra.Command {
	var dayRef string

	cmd := &cobra.Command{
		Use:   use + " <task>",
		Short: short,
		Long: short + `.

<task> is a template name, a name or id prefix, or an instance key (YYYY-MM-DD/<id>).
Use --day to log a past day; completions after the day ends are marked late.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("task is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := engine.ParseStatus(status)
			if err != nil {
				return err
			}
			return logStatus(cmd, dayRef, strings.Join(args, " "), target, icon)
		},
	}

	cmd.Flags().StringVarP(&dayRef, "day", "d", "", "Day of the task (YYYY-MM-DD, today, yesterday)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var dayRef string

	cmd := &cobra.Command{
		Use:     "restore <task>",
		Aliases: []string{"undo"},
		Short:   "Put a logged task back to pending and revert its XP",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("task is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return logStatus(cmd, dayRef, strings.Join(args, " "), storage.StatusPending, ui.IconUndo)
		},
	}

	cmd.Flags().StringVarP(&dayRef, "day", "d", "", "Day of the task (YYYY-MM-DD, today, yesterday)")
	return cmd
}

func logStatus(cmd *cobra.Command, dayRef, ref string, status storage.InstanceStatus, icon string) error {
	ctx := context.Background()
	svc, cleanup, err := openService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	day, err := resolveDay(svc, dayRef)
	if err != nil {
		return err
	}
	key, err := svc.ResolveInstance(ctx, day, ref)
	if err != nil {
		return err
	}
	res, err := svc.SetStatus(ctx, key, status)
	if err != nil {
		return err
	}
	printChange(cmd.OutOrStdout(), res, icon)
	return nil
}

func printChange(out io.Writer, res *engine.StatusChange, icon string) {
	in := res.Instance
	fmt.Fprintf(out, "%s %s %s\n",
		ui.Good.Render(icon+" "+in.Name),
		ui.Muted.Render(in.Day.String()),
		ui.Muted.Render(fmt.Sprintf("(%s → %s)", res.Previous, in.Status)),
	)
	switch {
	case res.XPDelta > 0:
		fmt.Fprintf(out, "%s %s\n", ui.Gold.Render(fmt.Sprintf("%s +%d XP", ui.IconBolt, res.XPDelta)), ui.Muted.Render(fmt.Sprintf("%s +%d", ui.IconCoin, res.XPDelta)))
	case res.XPDelta < 0:
		fmt.Fprintln(out, ui.Warn.Render(fmt.Sprintf("%s %d XP", ui.IconBolt, res.XPDelta)))
	}
	if in.Late {
		fmt.Fprintln(out, ui.Muted.Render("(logged late; the streak still counts it)"))
	}
	if res.LevelUp != nil {
		fmt.Fprintf(out, "%s %s %s\n", ui.BadgeLevelUp, res.LevelUp.String(), ui.Gold.Render(fmt.Sprintf("%s +%d", ui.IconDiamond, res.LevelUp.DiamondsAwarded)))
	}
	if res.Streak != nil && res.Streak.CurrentStreak > 0 {
		fmt.Fprintf(out, "%s %s\n", ui.IconFlame, ui.LabelValue("Streak", fmt.Sprintf("%d (best %d)", res.Streak.CurrentStreak, res.Streak.BestStreak)))
	}
	fmt.Fprintln(out, ui.LabelValue("Total XP", res.TotalXP))
}

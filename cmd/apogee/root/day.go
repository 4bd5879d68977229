package root

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
	"github.com/src-lua/apogee/internal/ui"
)

func newDayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day [YYYY-MM-DD|today|yesterday|tomorrow]",
		Short: "Show the tasks of a day, generating them if needed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			day, err := resolveDay(svc, ref)
			if err != nil {
				return err
			}
			instances, err := svc.Day(ctx, day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconCalendar, fmt.Sprintf("%s (%s)", day, day.Weekday())))
			if len(instances) == 0 {
				fmt.Fprintln(out, ui.Muted.Render("(nothing scheduled)"))
				return nil
			}
			done := 0
			for _, in := range instances {
				if in.Status == storage.StatusCompleted {
					done++
				}
				late := ""
				if in.Late {
					late = " " + ui.Warn.Render("late")
				}
				fmt.Fprintf(out, "%s %s %s %s%s\n",
					ui.StatusIcon(string(in.Status)),
					in.Name,
					ui.Muted.Render(fmt.Sprintf("+%d XP", in.Reward)),
					ui.StatusText(string(in.Status)),
					late,
				)
			}
			fmt.Fprintf(out, "\n%s %s\n", ui.Key.Render("Done:"), ui.ProgressBar(done, len(instances), 20))
			return nil
		},
	}
	return cmd
}

// resolveDay accepts YYYY-MM-DD or a relative word; empty means today.
func resolveDay(svc *engine.Service, ref string) (calendar.Day, error) {
	today := svc.Today()
	switch strings.ToLower(strings.TrimSpace(ref)) {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDays(-1), nil
	case "tomorrow":
		return today.AddDays(1), nil
	}
	d, err := calendar.Parse(ref)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", ref)
	}
	return d, nil
}

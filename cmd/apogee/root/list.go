package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/ui"
)

func newListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			templates, err := svc.ListTemplates(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconHabit, "Templates"))
			shown := 0
			for _, t := range templates {
				if !t.Active && !all {
					continue
				}
				shown++
				state := ""
				if !t.Active {
					state = " " + ui.Warn.Render("(inactive)")
				}
				window := ""
				if !t.StartDate.IsZero() || !t.EndDate.IsZero() {
					window = ui.Muted.Render(fmt.Sprintf(" %s..%s", openDay(t.StartDate), openDay(t.EndDate)))
				}
				fmt.Fprintf(out, "- %s %s%s %s%s\n",
					ui.Dim.Render(shortID(t.ID)),
					t.Name,
					state,
					ui.Muted.Render(fmt.Sprintf("[%s, +%d XP]", engine.FormatRecurrence(t.Recurrence), t.Reward)),
					window,
				)
			}
			if shown == 0 {
				fmt.Fprintln(out, ui.IconInfo+" "+ui.Muted.Render("(none yet; try `apogee add \"Read\"` or `apogee accept`)"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include inactive templates")
	return cmd
}

func openDay(d calendar.Day) string {
	if d.IsZero() {
		return "…"
	}
	return d.String()
}

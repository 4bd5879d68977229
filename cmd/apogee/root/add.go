package root

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/ui"
)

func newAddCmd() *cobra.Command {
	var reward int
	var every string
	var start, end string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a recurring task template",
		Long: `Add a task template. It generates one task per applicable day.

Recurrence (--every):
  daily                  every day (default)
  weekly:mon,wed,fri     on the given weekdays (names or 1=Mon..7=Sun)
  monthly:1,15           on the given days of the month
  none                   never (a parked template)`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || strings.TrimSpace(strings.Join(args, " ")) == "" {
				return errors.New("name is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rec, err := engine.ParseRecurrence(every)
			if err != nil {
				return err
			}
			in := engine.TemplateInput{
				Name:       strings.Join(args, " "),
				Reward:     reward,
				Recurrence: rec,
			}
			if in.StartDate, err = optionalDay(start); err != nil {
				return err
			}
			if in.EndDate, err = optionalDay(end); err != nil {
				return err
			}

			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.CreateTemplate(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				ui.Good.Render(ui.IconPlus+" Added"),
				t.Name,
				ui.Muted.Render(fmt.Sprintf("(%s, +%d XP)", engine.FormatRecurrence(t.Recurrence), t.Reward)),
				ui.Dim.Render(shortID(t.ID)),
			)
			return nil
		},
	}

	cmd.Flags().IntVarP(&reward, "reward", "r", 10, "XP and coins granted on completion")
	cmd.Flags().StringVarP(&every, "every", "e", "daily", "Recurrence rule")
	cmd.Flags().StringVar(&start, "start", "", "First day the template applies (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day the template applies (YYYY-MM-DD)")

	return cmd
}

func optionalDay(s string) (calendar.Day, error) {
	if strings.TrimSpace(s) == "" {
		return calendar.Day{}, nil
	}
	d, err := calendar.Parse(s)
	if err != nil {
		return calendar.Day{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

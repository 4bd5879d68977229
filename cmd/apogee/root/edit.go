package root

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/ui"
)

func newEditCmd() *cobra.Command {
	var name string
	var reward int
	var every string
	var start, end string

	cmd := &cobra.Command{
		Use:   "edit <template>",
		Short: "Change a template from today on",
		Long: `Change a template. Today's and already generated future tasks that are still
pending pick up the change; logged tasks and past days keep what they had.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("template is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			var patch engine.TemplatePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("reward") {
				patch.Reward = &reward
			}
			if flags.Changed("every") {
				rec, err := engine.ParseRecurrence(every)
				if err != nil {
					return err
				}
				patch.Recurrence = &rec
			}
			if flags.Changed("start") {
				d, err := optionalDay(start)
				if err != nil {
					return err
				}
				patch.StartDate = &d
			}
			if flags.Changed("end") {
				d, err := optionalDay(end)
				if err != nil {
					return err
				}
				patch.EndDate = &d
			}

			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.ResolveTemplate(ctx, args[0])
			if err != nil {
				return err
			}
			t, err = svc.UpdateTemplate(ctx, t.ID, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
				ui.Good.Render(ui.IconScroll+" Updated"),
				t.Name,
				ui.Muted.Render(fmt.Sprintf("(%s, +%d XP)", engine.FormatRecurrence(t.Recurrence), t.Reward)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().IntVarP(&reward, "reward", "r", 0, "New reward")
	cmd.Flags().StringVarP(&every, "every", "e", "", "New recurrence rule")
	cmd.Flags().StringVar(&start, "start", "", "New first day (empty clears it)")
	cmd.Flags().StringVar(&end, "end", "", "New last day (empty clears it)")

	return cmd
}

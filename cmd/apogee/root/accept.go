package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/ui"
)

func newAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept [preset]",
		Short: "List built-in presets or turn one into a template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				presets, err := svc.Presets(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Heading(ui.IconScroll, "Presets"))
				for _, ps := range presets {
					line := fmt.Sprintf("%s %s %s", ui.Key.Render(ps.Code), ps.Name,
						ui.Muted.Render(fmt.Sprintf("[%s, +%d XP]", engine.FormatRecurrence(ps.Recurrence), ps.Reward)))
					if ps.Unlocked {
						fmt.Fprintf(out, "🟢 %s\n", line)
					} else {
						fmt.Fprintf(out, "🔒 %s %s\n", line, ui.Muted.Render(fmt.Sprintf("(level %d)", ps.UnlockLevel)))
					}
				}
				return nil
			}

			t, err := svc.AcceptPreset(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s → %s %s\n",
				ui.Good.Render(ui.IconScroll+" Accepted"),
				ui.Muted.Render(args[0]),
				t.Name,
				ui.Dim.Render(shortID(t.ID)),
			)
			return nil
		},
	}

	return cmd
}

package root

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/ui"
)

func newActiveCmd(active bool) *cobra.Command {
	use, short := "deactivate <template>", "Stop generating a template; its history stays"
	if active {
		use, short = "activate <template>", "Resume generating a deactivated template"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("template is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.ResolveTemplate(ctx, args[0])
			if err != nil {
				return err
			}
			if _, err := svc.SetActive(ctx, t.ID, active); err != nil {
				return err
			}
			if active {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconHabit+" Activated"), t.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.Warn.Render(ui.IconWarn+" Deactivated"), t.Name, ui.Muted.Render("(pending tasks from today on removed)"))
			}
			return nil
		},
	}
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <template>",
		Short: "Delete a template; logged tasks and earned XP stay",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("template is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.ResolveTemplate(ctx, args[0])
			if err != nil {
				return err
			}
			if err := svc.DeleteTemplate(ctx, t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Bad.Render("🗑 Deleted"), t.Name)
			return nil
		},
	}
	return cmd
}

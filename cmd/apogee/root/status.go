package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var showAchievements bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show level, XP ledger, streaks and unlocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := svc.Summary(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			st := sum.Ledger
			p := sum.Progress

			fmt.Fprintln(out, ui.Heading(ui.IconSparkle, "Status for "+svc.UserID()))
			fmt.Fprintln(out, ui.LabelValue("Level", fmt.Sprintf("%d %s", p.Level, ui.ProgressBar(p.IntoLevel, p.LevelSpan, 20))))
			fmt.Fprintln(out, ui.LabelValue("Total XP", fmt.Sprintf("%d (next level at %d, %d to go)", sum.TotalXP, p.NextAt, max(0, p.NextAt-sum.TotalXP))))
			fmt.Fprintf(out, "- %s %d  %s %d  %s %d\n",
				ui.Key.Render("base"), st.BaseXP,
				ui.Key.Render("today"), st.TodayXP,
				ui.Key.Render("tomorrow"), st.TomorrowXP,
			)
			fmt.Fprintf(out, "- %s %d  %s %d\n", ui.IconCoin, st.Coins, ui.IconDiamond, st.Diamonds)
			if sum.InGapPeriod {
				fmt.Fprintln(out, ui.Muted.Render(fmt.Sprintf("Grace window open: completions for %s still count toward it.", sum.LogicalDay)))
			}
			fmt.Fprintln(out, "")

			fmt.Fprintln(out, ui.H2.Render(ui.IconFlame+" Streaks"))
			fmt.Fprintf(out, "- %s %d %s\n", ui.Key.Render("Logging:"), sum.Global.CurrentStreak, ui.Muted.Render(fmt.Sprintf("(best %d)", sum.Global.BestStreak)))
			for _, ts := range sum.Templates {
				if !ts.Template.Active {
					continue
				}
				fmt.Fprintf(out, "- %s %d %s\n", ui.Key.Render(ts.Template.Name+":"), ts.Streak.CurrentStreak,
					ui.Muted.Render(fmt.Sprintf("(best %d, total %d)", ts.Streak.BestStreak, ts.Streak.TotalCompletions)))
			}
			fmt.Fprintln(out, "")

			fmt.Fprintln(out, ui.H2.Render("🔓 Gates"))
			fmt.Fprintf(out, "- %s %s\n", ui.Key.Render("Weekly presets:"), enabledStr(st.HighestLevel >= engine.LevelWeeklyPresets, engine.LevelWeeklyPresets))
			fmt.Fprintf(out, "- %s %s\n", ui.Key.Render("Monthly presets:"), enabledStr(st.HighestLevel >= engine.LevelMonthlyPresets, engine.LevelMonthlyPresets))

			if showAchievements {
				earned := 0
				for _, a := range sum.Achievements {
					if a.Earned {
						earned++
					}
				}
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, ui.H2.Render(fmt.Sprintf("%s Achievements (%d/%d)", ui.IconTrophy, earned, len(sum.Achievements))))
				for _, a := range sum.Achievements {
					if a.Earned {
						fmt.Fprintf(out, "- %s %s %s\n", a.Icon, a.Name, ui.Muted.Render(a.Description))
					} else {
						fmt.Fprintf(out, "- %s %s\n", ui.Dim.Render("🔒 "+a.Name), ui.Muted.Render(a.Description))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAchievements, "achievements", "a", false, "List achievements")
	return cmd
}

func enabledStr(ok bool, level int) string {
	if ok {
		return ui.Good.Render("unlocked")
	}
	return ui.Bad.Render("locked") + " " + ui.Muted.Render(fmt.Sprintf("(level %d)", level))
}

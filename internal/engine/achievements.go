package engine

import (
	"github.com/src-lua/apogee/internal/storage"
)

// Achievement represents a badge the user can earn.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Earned      bool
}

// AchievementChecker calculates which achievements the user has earned.
type AchievementChecker struct {
	ledger    storage.LedgerState
	global    storage.StreakRecord
	streaks   []storage.StreakRecord
	templates []storage.Template
}

func NewAchievementChecker(ledger storage.LedgerState, global storage.StreakRecord, streaks []storage.StreakRecord, templates []storage.Template) *AchievementChecker {
	return &AchievementChecker{
		ledger:    ledger,
		global:    global,
		streaks:   streaks,
		templates: templates,
	}
}

// GetAchievements returns all achievements with their earned status.
func (c *AchievementChecker) GetAchievements() []Achievement {
	return []Achievement{
		// Level milestones
		c.levelAchievement("getting_started", "Getting Started", "Reach level 3", "🌿", 3),
		c.levelAchievement("on_the_path", "On the Path", "Reach level 5", "🌳", 5),
		c.levelAchievement("seasoned", "Seasoned", "Reach level 10", "⭐", 10),
		c.levelAchievement("veteran", "Veteran", "Reach level 15", "🌟", 15),
		c.levelAchievement("master", "Master", "Reach level 20", "💫", 20),

		// Completion milestones
		c.completionAchievement("first_task", "First Check", "Complete 1 task", "✓", 1),
		c.completionAchievement("productive", "Productive", "Complete 10 tasks", "📋", 10),
		c.completionAchievement("achiever", "Achiever", "Complete 50 tasks", "🏅", 50),
		c.completionAchievement("powerhouse", "Powerhouse", "Complete 100 tasks", "🏆", 100),

		// Streaks
		c.streakAchievement("warming_up", "Warming Up", "Best streak of 3 days", "🔥", 3),
		c.streakAchievement("week_strong", "Week Strong", "Best streak of 7 days", "📅", 7),
		c.streakAchievement("unbroken", "Unbroken", "Best streak of 30 days", "⛓", 30),
		c.globalAchievement("always_logging", "Always Logging", "Log something 14 days in a row", "📝", 14),

		// Economy
		c.diamondAchievement("gem_collector", "Gem Collector", "Hold 50 diamonds", "💎", 50),

		c.habitAchievement("habit_former", "Habit Former", "Create a habit", "🔁"),
	}
}

func (c *AchievementChecker) levelAchievement(id, name, desc, icon string, level int) Achievement {
	earned := c.ledger.HighestLevel >= level
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: earned}
}

func (c *AchievementChecker) completionAchievement(id, name, desc, icon string, count int) Achievement {
	total := 0
	for _, r := range c.streaks {
		total += r.TotalCompletions
	}
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: total >= count}
}

func (c *AchievementChecker) streakAchievement(id, name, desc, icon string, days int) Achievement {
	earned := false
	for _, r := range c.streaks {
		if r.BestStreak >= days {
			earned = true
			break
		}
	}
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: earned}
}

func (c *AchievementChecker) globalAchievement(id, name, desc, icon string, days int) Achievement {
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: c.global.BestStreak >= days}
}

func (c *AchievementChecker) diamondAchievement(id, name, desc, icon string, diamonds int) Achievement {
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: c.ledger.Diamonds >= diamonds}
}

func (c *AchievementChecker) habitAchievement(id, name, desc, icon string) Achievement {
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: len(c.templates) > 0}
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// apogee theme (CLI + TUI).
// Kept small: reusable styles and a few emojis.

const (
	IconHabit    = "🔁"
	IconSparkle  = "✨"
	IconPlus     = "➕"
	IconDone     = "✅"
	IconSkip     = "⏭️"
	IconMiss     = "❌"
	IconUndo     = "↩️"
	IconTrophy   = "🏆"
	IconBolt     = "⚡"
	IconFlame    = "🔥"
	IconCoin     = "🪙"
	IconDiamond  = "💎"
	IconInfo     = "ℹ️"
	IconWarn     = "⚠️"
	IconError    = "🧨"
	IconCalendar = "📅"
	IconScroll   = "📜"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	Dim   = lipgloss.NewStyle().Foreground(cMuted)

	BadgeLevelUp = lipgloss.NewStyle().Bold(true).Foreground(cGold).Render("LEVEL UP")
)

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// StatusText renders an instance status.
func StatusText(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "completed":
		return Good.Render("done")
	case "not_necessary":
		return Muted.Render("skipped")
	case "not_did":
		return Bad.Render("missed")
	case "pending":
		return Warn.Render("pending")
	default:
		return Muted.Render(status)
	}
}

// StatusIcon is the one-glyph form of StatusText.
func StatusIcon(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return IconDone
	case "not_necessary":
		return IconSkip
	case "not_did":
		return IconMiss
	default:
		return "⬜"
	}
}

// ProgressBar draws value/total as a fixed-width bar.
func ProgressBar(value int, total int, width int) string {
	if total <= 0 {
		total = 1
	}
	if width <= 3 {
		width = 3
	}
	value = max(0, min(value, total))
	filled := min(int(float64(value)/float64(total)*float64(width)), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

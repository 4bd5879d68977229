package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
	"github.com/src-lua/apogee/internal/ui"
)

type boardModel struct {
	ctx context.Context
	svc *engine.Service

	width  int
	height int

	day       calendar.Day
	summary   *engine.Summary
	instances []storage.Instance
	selected  int

	lastLog string
	loading bool
	err     error
}

type loadedMsg struct {
	day       calendar.Day
	summary   *engine.Summary
	instances []storage.Instance
	err       error
}

type statusMsg struct {
	res *engine.StatusChange
	err error
}

func newBoardModel(ctx context.Context, svc *engine.Service) boardModel {
	return boardModel{
		ctx:     ctx,
		svc:     svc,
		day:     svc.Today(),
		loading: true,
		lastLog: "Loaded.",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m boardModel) loadCmd() tea.Cmd {
	day := m.day
	return func() tea.Msg {
		instances, err := m.svc.Day(m.ctx, day)
		if err != nil {
			return loadedMsg{day: day, err: err}
		}
		sum, err := m.svc.Summary(m.ctx)
		if err != nil {
			return loadedMsg{day: day, err: err}
		}
		return loadedMsg{day: day, summary: sum, instances: instances}
	}
}

func (m boardModel) statusCmd(key storage.InstanceKey, status storage.InstanceStatus) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.SetStatus(m.ctx, key, status)
		return statusMsg{res: res, err: err}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		if msg.day != m.day {
			// A stale load for a day the user already left.
			return m, nil
		}
		refreshing := m.loading
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.summary = msg.summary
		m.instances = msg.instances
		m.selected = max(0, min(m.selected, len(m.instances)-1))
		if refreshing {
			m.lastLog = fmt.Sprintf("Refreshed at %s.", m.svc.Now().Format("15:04:05"))
		}
		return m, nil
	case statusMsg:
		if msg.err != nil {
			m.lastLog = "Update failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = describeChange(msg.res)
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.instances)-1 {
				m.selected++
			}
			return m, nil
		case "left", "h":
			return m.moveDay(-1)
		case "right", "l":
			return m.moveDay(1)
		case "t":
			m.day = m.svc.Today()
			m.loading = true
			return m, m.loadCmd()
		case "c", " ":
			return m.setSelected(storage.StatusCompleted)
		case "s":
			return m.setSelected(storage.StatusNotNecessary)
		case "m":
			return m.setSelected(storage.StatusNotDid)
		case "u":
			return m.setSelected(storage.StatusPending)
		}
	}
	return m, nil
}

func (m boardModel) moveDay(delta int) (tea.Model, tea.Cmd) {
	m.day = m.day.AddDays(delta)
	m.selected = 0
	m.loading = true
	m.lastLog = "Loading " + m.day.String() + "…"
	return m, m.loadCmd()
}

func (m boardModel) setSelected(status storage.InstanceStatus) (tea.Model, tea.Cmd) {
	if m.selected < 0 || m.selected >= len(m.instances) {
		m.lastLog = "Nothing selected."
		return m, nil
	}
	in := m.instances[m.selected]
	if in.Status == status {
		m.lastLog = "Already " + ui.StatusText(string(status)) + "."
		return m, nil
	}
	if in.Status.Logged() && status.Logged() {
		m.lastLog = "Undo (u) first to change a logged task."
		return m, nil
	}
	m.lastLog = fmt.Sprintf("Updating %s…", in.Name)
	return m, m.statusCmd(in.Key(), status)
}

func describeChange(res *engine.StatusChange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", ui.StatusIcon(string(res.Instance.Status)), res.Instance.Name)
	switch {
	case res.XPDelta > 0:
		fmt.Fprintf(&b, ": +%d XP", res.XPDelta)
	case res.XPDelta < 0:
		fmt.Fprintf(&b, ": %d XP", res.XPDelta)
	}
	if res.Streak != nil && res.Streak.CurrentStreak > 1 {
		fmt.Fprintf(&b, " %s %d", ui.IconFlame, res.Streak.CurrentStreak)
	}
	if res.LevelUp != nil {
		fmt.Fprintf(&b, " %s %s", ui.BadgeLevelUp, res.LevelUp.String())
	}
	return b.String()
}

func (m boardModel) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	main := m.renderMain()
	footer := m.renderFooter()

	// Simple 2-column layout.
	leftW := 30
	if m.width > 0 {
		leftW = max(min(leftW, m.width/2), 18)
	}

	linesLeft := strings.Split(sidebar, "\n")
	linesRight := strings.Split(main, "\n")
	rows := max(len(linesLeft), len(linesRight))

	var body strings.Builder
	for i := 0; i < rows; i++ {
		l, r := "", ""
		if i < len(linesLeft) {
			l = linesLeft[i]
		}
		if i < len(linesRight) {
			r = linesRight[i]
		}
		body.WriteString(padRight(l, leftW))
		body.WriteString("  ")
		body.WriteString(r)
		body.WriteString("\n")
	}

	return header + "\n" + body.String() + footer
}

func (m boardModel) renderHeader() string {
	if m.summary == nil {
		return "apogee — loading…"
	}
	p := m.summary.Progress
	bar := ui.ProgressBar(p.IntoLevel, p.LevelSpan, 30)
	return fmt.Sprintf("apogee | %s | Level %d | XP %d %s", m.svc.UserID(), p.Level, m.summary.TotalXP, bar)
}

func (m boardModel) renderSidebar() string {
	if m.summary == nil {
		return "Ledger\n\nLoading…"
	}
	st := m.summary.Ledger
	lines := []string{
		"Ledger",
		fmt.Sprintf("- base %d", st.BaseXP),
		fmt.Sprintf("- today %d", st.TodayXP),
		fmt.Sprintf("- tomorrow %d", st.TomorrowXP),
		fmt.Sprintf("- %s %d  %s %d", ui.IconCoin, st.Coins, ui.IconDiamond, st.Diamonds),
	}
	if m.summary.InGapPeriod {
		lines = append(lines, "- grace: counts for "+m.summary.LogicalDay.String())
	}
	lines = append(lines, "",
		"Streaks",
		fmt.Sprintf("- logging %d (best %d)", m.summary.Global.CurrentStreak, m.summary.Global.BestStreak),
	)
	for _, ts := range m.summary.Templates {
		if !ts.Template.Active {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s %d (best %d)", ts.Template.Name, ts.Streak.CurrentStreak, ts.Streak.BestStreak))
	}
	lines = append(lines, "",
		"Keys",
		"- ↑/↓ or j/k: move",
		"- ←/→ or h/l: day",
		"- c/space: complete",
		"- s: skip  m: miss",
		"- u: undo",
		"- t: today  r: refresh",
		"- q: quit",
	)
	return strings.Join(lines, "\n")
}

func (m boardModel) renderMain() string {
	if m.loading {
		return "Loading…"
	}
	out := []string{fmt.Sprintf("%s %s (%s)", ui.IconCalendar, m.day, m.day.Weekday())}
	if len(m.instances) == 0 {
		out = append(out, "(nothing scheduled)")
		return strings.Join(out, "\n")
	}
	for i, in := range m.instances {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		late := ""
		if in.Late {
			late = " late"
		}
		out = append(out, fmt.Sprintf("%s%s %s +%d%s", cursor, ui.StatusIcon(string(in.Status)), in.Name, in.Reward, late))
	}
	return strings.Join(out, "\n")
}

func (m boardModel) renderFooter() string {
	return "\n" + m.lastLog
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/src-lua/apogee/internal/storage"
)

// Preset is a built-in template a user can accept once their level allows.
type Preset struct {
	Code        string
	Name        string
	Reward      int
	Recurrence  storage.Recurrence
	UnlockLevel int
}

func builtinPresets() []Preset {
	return []Preset{
		{
			Code:        "hydrate",
			Name:        "Drink 2L of water",
			Reward:      10,
			Recurrence:  storage.Recurrence{Kind: storage.RecurrenceDaily},
			UnlockLevel: 1,
		},
		{
			Code:        "stretch",
			Name:        "Stretch for 10 minutes",
			Reward:      15,
			Recurrence:  storage.Recurrence{Kind: storage.RecurrenceDaily},
			UnlockLevel: 1,
		},
		{
			Code:        "workout",
			Name:        "Workout",
			Reward:      40,
			Recurrence:  storage.Recurrence{Kind: storage.RecurrenceWeekly, Weekdays: []int{1, 3, 5}},
			UnlockLevel: LevelWeeklyPresets,
		},
		{
			Code:        "weekly_review",
			Name:        "Weekly review",
			Reward:      50,
			Recurrence:  storage.Recurrence{Kind: storage.RecurrenceWeekly, Weekdays: []int{7}},
			UnlockLevel: LevelWeeklyPresets,
		},
		{
			Code:        "monthly_budget",
			Name:        "Review the monthly budget",
			Reward:      100,
			Recurrence:  storage.Recurrence{Kind: storage.RecurrenceMonthly, MonthDays: []int{1}},
			UnlockLevel: LevelMonthlyPresets,
		},
	}
}

// PresetStatus is a preset as seen by one user.
type PresetStatus struct {
	Preset
	Unlocked bool
}

func normalizePresetCode(code string) (string, error) {
	c := strings.TrimSpace(strings.ToLower(code))
	if c == "" {
		return "", fmt.Errorf("preset code is required")
	}
	return c, nil
}

func findPreset(code string) (Preset, bool) {
	for _, p := range builtinPresets() {
		if p.Code == code {
			return p, true
		}
	}
	return Preset{}, false
}

// Presets lists the built-in presets and whether the user's highest level
// unlocks them.
func (s *Service) Presets(ctx context.Context) ([]PresetStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.ledger.EnsureRolledOver(ctx, s.Now())
	if err != nil {
		return nil, err
	}
	var out []PresetStatus
	for _, p := range builtinPresets() {
		out = append(out, PresetStatus{Preset: p, Unlocked: CanAcceptPreset(st.HighestLevel, p) == nil})
	}
	return out, nil
}

// AcceptPreset turns an unlocked preset into a new template.
func (s *Service) AcceptPreset(ctx context.Context, code string) (*storage.Template, error) {
	c, err := normalizePresetCode(code)
	if err != nil {
		return nil, err
	}
	p, ok := findPreset(c)
	if !ok {
		return nil, NotFoundError{Kind: "preset", ID: c}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.ledger.EnsureRolledOver(ctx, s.Now())
	if err != nil {
		return nil, err
	}
	if err := CanAcceptPreset(st.HighestLevel, p); err != nil {
		return nil, err
	}

	t, err := s.createTemplate(ctx, TemplateInput{
		Name:       p.Name,
		Reward:     p.Reward,
		Recurrence: p.Recurrence,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("preset accepted", slog.String("preset", p.Code), slog.String("template", t.ID))
	return t, nil
}

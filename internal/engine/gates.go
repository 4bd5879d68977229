package engine

import "fmt"

const (
	LevelWeeklyPresets  = 3
	LevelMonthlyPresets = 5
)

// GateError is returned when a feature needs a higher level than the user
// has reached.
type GateError struct {
	Feature       string
	RequiredLevel int
	CurrentLevel  int
}

func (e GateError) Error() string {
	return fmt.Sprintf("%s requires level %d (currently %d)", e.Feature, e.RequiredLevel, e.CurrentLevel)
}

// CanAcceptPreset gates presets on the highest level ever reached, so losing
// XP does not lock a preset again.
func CanAcceptPreset(highestLevel int, p Preset) error {
	if highestLevel < p.UnlockLevel {
		return GateError{Feature: "preset " + p.Code, RequiredLevel: p.UnlockLevel, CurrentLevel: highestLevel}
	}
	return nil
}

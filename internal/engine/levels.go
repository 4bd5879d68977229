package engine

import (
	"fmt"
	"math"
)

// Rounding selects how the overflow share of a bucket is turned into whole XP.
type Rounding string

const (
	RoundNearest Rounding = "nearest"
	RoundFloor   Rounding = "floor"
)

func (r Rounding) IsValid() bool {
	return r == RoundNearest || r == RoundFloor
}

// XPRules holds the constants of the daily bucket transform.
type XPRules struct {
	// DailyCap is the raw XP a bucket keeps at full value.
	DailyCap int
	// OverflowRate is the share of raw XP above DailyCap that still counts.
	OverflowRate float64
	// HardCap bounds the transformed value of a single bucket.
	HardCap  int
	Rounding Rounding
}

func DefaultXPRules() XPRules {
	return XPRules{DailyCap: 200, OverflowRate: 0.25, HardCap: 250, Rounding: RoundNearest}
}

// RealXP applies the overflow transform to a raw bucket value.
func (r XPRules) RealXP(raw int) int {
	if raw <= 0 {
		return 0
	}
	if raw <= r.DailyCap {
		return raw
	}
	share := float64(raw-r.DailyCap) * r.OverflowRate
	var extra int
	if r.Rounding == RoundFloor {
		extra = int(math.Floor(share))
	} else {
		extra = int(math.Round(share))
	}
	return min(r.DailyCap+extra, r.HardCap)
}

// RealXP is the transform under the default rules.
func RealXP(raw int) int {
	return DefaultXPRules().RealXP(raw)
}

// XPRequiredForLevel returns the total XP threshold of the given level:
// (L-1)^2 * 100. Level 1 requires 0 XP.
func XPRequiredForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return n * n * 100
}

// LevelForTotalXP returns the highest level L >= 1 such that
// totalXP >= XPRequiredForLevel(L).
func LevelForTotalXP(totalXP int) int {
	if totalXP <= 0 {
		return 1
	}

	// Exponential search upper bound, then binary search.
	low := 1
	high := 2
	for XPRequiredForLevel(high) <= totalXP {
		low = high
		high *= 2
		if high > 1_000_000 {
			break
		}
	}

	for low+1 < high {
		mid := low + (high-low)/2
		if XPRequiredForLevel(mid) <= totalXP {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}

// LevelUpResult is returned to the caller whenever a write crosses into a
// level the user has never reached before.
type LevelUpResult struct {
	OldLevel        int
	NewLevel        int
	DiamondsAwarded int
}

func (r LevelUpResult) String() string {
	return fmt.Sprintf("level %d → %d (+%d diamonds)", r.OldLevel, r.NewLevel, r.DiamondsAwarded)
}

// DiamondsForLevels is the reward for reaching each level in (from, to].
func DiamondsForLevels(from, to, perLevel int) int {
	if to <= from || perLevel <= 0 {
		return 0
	}
	return (to - from) * perLevel
}

// LevelProgress describes where a total sits inside its level.
type LevelProgress struct {
	Level     int
	IntoLevel int
	LevelSpan int
	NextAt    int
}

func ProgressForTotalXP(totalXP int) LevelProgress {
	lvl := LevelForTotalXP(totalXP)
	floor := XPRequiredForLevel(lvl)
	next := XPRequiredForLevel(lvl + 1)
	return LevelProgress{
		Level:     lvl,
		IntoLevel: max(totalXP-floor, 0),
		LevelSpan: next - floor,
		NextAt:    next,
	}
}

package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
)

type RecurrenceKind string

const (
	RecurrenceNone    RecurrenceKind = "none"
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
	RecurrenceCustom  RecurrenceKind = "custom"
)

func (k RecurrenceKind) IsValid() bool {
	switch k {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceCustom:
		return true
	default:
		return false
	}
}

// Recurrence is the rule a template uses to decide which days it applies to.
// Weekdays use 1=Monday..7=Sunday; MonthDays use 1..31.
type Recurrence struct {
	Kind      RecurrenceKind `json:"kind"`
	Weekdays  []int          `json:"weekdays,omitempty"`
	MonthDays []int          `json:"month_days,omitempty"`
	Custom    []string       `json:"custom,omitempty"`
}

type Template struct {
	ID           string
	UserID       string
	Name         string
	Reward       int
	Recurrence   Recurrence
	Active       bool
	StartDate    calendar.Day // zero = open
	EndDate      calendar.Day // zero = open
	CreatedAt    time.Time
	LastModified time.Time
	Version      int64
}

type InstanceStatus string

const (
	StatusPending      InstanceStatus = "pending"
	StatusCompleted    InstanceStatus = "completed"
	StatusNotNecessary InstanceStatus = "not_necessary"
	StatusNotDid       InstanceStatus = "not_did"
)

func (s InstanceStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusNotNecessary, StatusNotDid:
		return true
	default:
		return false
	}
}

// Logged reports whether the instance has left pending.
func (s InstanceStatus) Logged() bool {
	return s != StatusPending
}

// InstanceKey identifies one day's occurrence of a template.
type InstanceKey struct {
	TemplateID string
	Day        calendar.Day
}

// Encode renders the key as "YYYY-MM-DD/<templateID>". The date is a fixed
// width prefix so template ids may contain any character.
func (k InstanceKey) Encode() string {
	return k.Day.String() + "/" + k.TemplateID
}

func (k InstanceKey) String() string { return k.Encode() }

// DecodeInstanceKey parses the output of InstanceKey.Encode.
func DecodeInstanceKey(s string) (InstanceKey, error) {
	const prefix = len("2006-01-02")
	if len(s) < prefix+2 || s[prefix] != '/' {
		return InstanceKey{}, fmt.Errorf("malformed instance key %q", s)
	}
	day, err := calendar.Parse(s[:prefix])
	if err != nil {
		return InstanceKey{}, fmt.Errorf("malformed instance key %q: %w", s, err)
	}
	id := s[prefix+1:]
	if strings.TrimSpace(id) == "" {
		return InstanceKey{}, fmt.Errorf("malformed instance key %q: empty template id", s)
	}
	return InstanceKey{TemplateID: id, Day: day}, nil
}

type Instance struct {
	UserID       string
	TemplateID   string
	Day          calendar.Day
	Name         string
	Reward       int
	Status       InstanceStatus
	CompletedAt  *time.Time
	Late         bool
	LastModified time.Time
	Version      int64
}

func (i Instance) Key() InstanceKey {
	return InstanceKey{TemplateID: i.TemplateID, Day: i.Day}
}

type LedgerState struct {
	UserID          string
	BaseXP          int
	TodayXP         int
	TomorrowXP      int
	LastRolloverDay calendar.Day
	Coins           int
	Diamonds        int
	Level           int
	HighestLevel    int
	LastSeenAt      time.Time
	LastModified    time.Time
	Version         int64
}

// GlobalStreakID is the StreakRecord template id of the "logged anything"
// streak.
const GlobalStreakID = "*"

type StreakRecord struct {
	UserID                string
	TemplateID            string
	CurrentStreak         int
	BestStreak            int
	TotalCompletions      int
	LastCompletedDay      calendar.Day
	CurrentStreakStartDay calendar.Day
	AsOf                  calendar.Day
	TemplateModified      time.Time
	CalculatedAt          time.Time
}

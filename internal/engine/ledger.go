package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// Bucket names the ledger counter an XP change lands in.
type Bucket int

const (
	BucketToday Bucket = iota
	BucketTomorrow
)

func (b Bucket) String() string {
	if b == BucketTomorrow {
		return "tomorrow"
	}
	return "today"
}

// writeAttempts bounds the reload-and-reapply loop when another process
// wrote the same row first.
const writeAttempts = 5

// Ledger is the per-user three-bucket XP counter. It is not safe for
// concurrent use; Service serializes every call. Other processes sharing the
// database are handled by versioned writes.
type Ledger struct {
	store            storage.LedgerStore
	userID           string
	loc              *time.Location
	rules            XPRules
	grace            time.Duration
	diamondsPerLevel int
	log              *slog.Logger
}

func newLedger(store storage.LedgerStore, userID string, opts Options) *Ledger {
	return &Ledger{
		store:            store,
		userID:           userID,
		loc:              opts.Location,
		rules:            opts.XP,
		grace:            opts.GracePeriod,
		diamondsPerLevel: opts.DiamondsPerLevel,
		log:              opts.Logger,
	}
}

func (l *Ledger) Rules() XPRules { return l.rules }

// InGapPeriod reports whether now falls in the grace window after midnight.
func (l *Ledger) InGapPeriod(now time.Time) bool {
	local := now.In(l.loc)
	sinceMidnight := local.Sub(calendar.Of(local).Start(l.loc))
	return sinceMidnight < l.grace
}

// LogicalDay is the calendar day whose XP bucket is "today" at now. It is
// also the day a rollover settles up to.
func (l *Ledger) LogicalDay(now time.Time) calendar.Day {
	today := calendar.In(now, l.loc)
	if l.InGapPeriod(now) {
		return today.AddDays(-1)
	}
	return today
}

// BucketFor picks the bucket for XP earned at now by an instance scheduled
// on the given day.
func (l *Ledger) BucketFor(scheduled calendar.Day, now time.Time) Bucket {
	if !l.InGapPeriod(now) {
		return BucketToday
	}
	if scheduled == l.LogicalDay(now).AddDays(1) {
		return BucketTomorrow
	}
	return BucketToday
}

// TotalXP = base + realXP(today) + realXP(tomorrow).
func (l *Ledger) TotalXP(st storage.LedgerState) int {
	return st.BaseXP + l.rules.RealXP(st.TodayXP) + l.rules.RealXP(st.TomorrowXP)
}

// EnsureRolledOver settles completed logical days into BaseXP. Calling it
// again within the same logical day changes nothing.
func (l *Ledger) EnsureRolledOver(ctx context.Context, now time.Time) (*storage.LedgerState, error) {
	for attempt := 1; ; attempt++ {
		st, dirty, err := l.load(ctx, now)
		if err != nil {
			return nil, err
		}
		if l.rollover(st, now) {
			dirty = true
		}
		if !dirty {
			return st, nil
		}
		err = l.save(ctx, st, now)
		if l.retry(err, attempt) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func (l *Ledger) AddXP(ctx context.Context, amount int, scheduled calendar.Day, now time.Time) (*storage.LedgerState, *LevelUpResult, error) {
	return l.mutate(ctx, now, func(st *storage.LedgerState) {
		l.addToBucket(st, l.BucketFor(scheduled, now), amount)
	})
}

// RemoveXP mirrors AddXP, clamping each bucket at zero.
func (l *Ledger) RemoveXP(ctx context.Context, amount int, scheduled calendar.Day, now time.Time) (*storage.LedgerState, *LevelUpResult, error) {
	return l.mutate(ctx, now, func(st *storage.LedgerState) {
		l.addToBucket(st, l.BucketFor(scheduled, now), -amount)
	})
}

// Grant credits an instance reward: XP into the scheduled day's bucket and
// the same amount of coins, in one ledger write.
func (l *Ledger) Grant(ctx context.Context, reward int, scheduled calendar.Day, now time.Time) (*storage.LedgerState, *LevelUpResult, error) {
	return l.mutate(ctx, now, func(st *storage.LedgerState) {
		l.addToBucket(st, l.BucketFor(scheduled, now), reward)
		st.Coins += reward
	})
}

// Revoke undoes Grant, clamping every counter at zero.
func (l *Ledger) Revoke(ctx context.Context, reward int, scheduled calendar.Day, now time.Time) (*storage.LedgerState, *LevelUpResult, error) {
	return l.mutate(ctx, now, func(st *storage.LedgerState) {
		l.addToBucket(st, l.BucketFor(scheduled, now), -reward)
		st.Coins = max(st.Coins-reward, 0)
	})
}

// CorrectBaseXP is the only path allowed to lower BaseXP.
func (l *Ledger) CorrectBaseXP(ctx context.Context, delta int, reason string, now time.Time) (*storage.LedgerState, error) {
	st, _, err := l.mutate(ctx, now, func(st *storage.LedgerState) {
		st.BaseXP = max(st.BaseXP+delta, 0)
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("base xp corrected",
		slog.String("user", l.userID),
		slog.Int("delta", delta),
		slog.String("reason", reason),
		slog.Int("base_xp", st.BaseXP),
	)
	return st, nil
}

func (l *Ledger) addToBucket(st *storage.LedgerState, b Bucket, delta int) {
	switch b {
	case BucketTomorrow:
		st.TomorrowXP = max(st.TomorrowXP+delta, 0)
	default:
		st.TodayXP = max(st.TodayXP+delta, 0)
	}
}

func (l *Ledger) mutate(ctx context.Context, now time.Time, fn func(st *storage.LedgerState)) (*storage.LedgerState, *LevelUpResult, error) {
	var (
		st      *storage.LedgerState
		levelUp *LevelUpResult
	)
	for attempt := 1; ; attempt++ {
		var err error
		st, _, err = l.load(ctx, now)
		if err != nil {
			return nil, nil, err
		}
		l.rollover(st, now)

		levelBefore := st.Level
		fn(st)
		levelUp = l.settleLevel(st, levelBefore)

		err = l.save(ctx, st, now)
		if l.retry(err, attempt) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		break
	}
	if levelUp != nil {
		l.log.Info("level up",
			slog.String("user", l.userID),
			slog.Int("old_level", levelUp.OldLevel),
			slog.Int("new_level", levelUp.NewLevel),
			slog.Int("diamonds", levelUp.DiamondsAwarded),
		)
	}
	return st, levelUp, nil
}

// retry reports whether a failed save lost a version race and is worth
// another attempt from a fresh read.
func (l *Ledger) retry(err error, attempt int) bool {
	if !errors.Is(err, storage.ErrConflict) || attempt >= writeAttempts {
		return false
	}
	l.log.Debug("ledger write conflict, retrying",
		slog.String("user", l.userID),
		slog.Int("attempt", attempt),
	)
	return true
}

// settleLevel recomputes Level from the buckets. Diamonds are paid only for
// levels above the high-water mark, so losing and regaining XP pays nothing.
func (l *Ledger) settleLevel(st *storage.LedgerState, levelBefore int) *LevelUpResult {
	st.Level = LevelForTotalXP(l.TotalXP(*st))
	if st.Level <= st.HighestLevel {
		return nil
	}
	award := DiamondsForLevels(st.HighestLevel, st.Level, l.diamondsPerLevel)
	st.Diamonds += award
	st.HighestLevel = st.Level
	return &LevelUpResult{OldLevel: levelBefore, NewLevel: st.Level, DiamondsAwarded: award}
}

// rollover settles once per call, however many logical days have passed:
// today's real XP moves into base and tomorrow becomes today.
func (l *Ledger) rollover(st *storage.LedgerState, now time.Time) bool {
	current := l.LogicalDay(now)
	if st.LastRolloverDay.IsZero() {
		st.LastRolloverDay = current.AddDays(-1)
	}
	if !st.LastRolloverDay.Before(current) {
		return false
	}
	st.BaseXP += l.rules.RealXP(st.TodayXP)
	st.TodayXP = st.TomorrowXP
	st.TomorrowXP = 0
	st.LastRolloverDay = current
	l.log.Debug("ledger rolled over",
		slog.String("user", l.userID),
		slog.String("day", current.String()),
		slog.Int("base_xp", st.BaseXP),
		slog.Int("today_xp", st.TodayXP),
	)
	return true
}

// load returns the stored state, creating it on first use and repairing
// counters that violate their invariants. dirty reports whether the returned
// state differs from what is stored.
func (l *Ledger) load(ctx context.Context, now time.Time) (*storage.LedgerState, bool, error) {
	st, err := l.store.Get(ctx, l.userID)
	if err != nil {
		return nil, false, err
	}
	if st == nil {
		return &storage.LedgerState{
			UserID:          l.userID,
			LastRolloverDay: l.LogicalDay(now),
			Level:           1,
			HighestLevel:    1,
		}, true, nil
	}

	dirty := false
	heal := func(what string, v *int) {
		if *v < 0 {
			l.log.Warn("ledger repaired",
				slog.String("user", l.userID),
				slog.String("error", CorruptionError{What: what}.Error()),
				slog.Int("value", *v),
			)
			*v = 0
			dirty = true
		}
	}
	heal("negative base xp", &st.BaseXP)
	heal("negative today bucket", &st.TodayXP)
	heal("negative tomorrow bucket", &st.TomorrowXP)
	heal("negative coins", &st.Coins)
	heal("negative diamonds", &st.Diamonds)
	if lvl := LevelForTotalXP(l.TotalXP(*st)); st.Level != lvl {
		st.Level = lvl
		dirty = true
	}
	// A repaired high-water mark pays no diamonds.
	if st.HighestLevel < st.Level {
		st.HighestLevel = st.Level
		dirty = true
	}

	if !st.LastSeenAt.IsZero() && now.Before(st.LastSeenAt) {
		l.log.Warn("clock skew detected",
			slog.String("user", l.userID),
			slog.String("error", ClockSkewError{Previous: st.LastSeenAt, Now: now}.Error()),
		)
	}
	return st, dirty, nil
}

func (l *Ledger) save(ctx context.Context, st *storage.LedgerState, now time.Time) error {
	if now.After(st.LastSeenAt) {
		st.LastSeenAt = now
	}
	st.LastModified = nextModified(st.LastModified, now)
	st.Version++
	return l.store.Put(ctx, *st)
}

// nextModified returns now, or one microsecond past prev when the clock has
// not moved forward, so LastModified is strictly increasing per entity.
func nextModified(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// StreakRules tunes the streak cache.
type StreakRules struct {
	// CacheSoftLimit is the entry count above which stale entries are evicted.
	CacheSoftLimit int
	// CacheMaxAge is how old an entry must be to be evicted.
	CacheMaxAge time.Duration
	// GlobalFreshness is how long a global streak result is reused.
	GlobalFreshness time.Duration
}

func DefaultStreakRules() StreakRules {
	return StreakRules{
		CacheSoftLimit:  256,
		CacheMaxAge:     24 * time.Hour,
		GlobalFreshness: time.Hour,
	}
}

type streakCacheKey struct {
	templateID string
	modified   int64
}

// Streaks computes per-template and global streaks over the instance history
// and memoizes the results.
type Streaks struct {
	instances storage.InstanceStore
	records   storage.StreakStore
	userID    string
	clock     calendar.Clock
	loc       *time.Location
	rules     StreakRules
	log       *slog.Logger

	index atomic.Pointer[streakIndex]
	dirty atomic.Bool

	mu     sync.Mutex
	cache  map[streakCacheKey]storage.StreakRecord
	global *storage.StreakRecord

	// watcher is nil for stores only this process writes to.
	watcher     storage.ChangeWatcher
	dataVersion int64
	versionSeen bool
}

func newStreaks(store storage.Store, userID string, opts Options) *Streaks {
	s := &Streaks{
		instances: store.Instances(),
		records:   store.Streaks(),
		userID:    userID,
		clock:     opts.Clock,
		loc:       opts.Location,
		rules:     opts.Streaks,
		log:       opts.Logger,
		cache:     make(map[streakCacheKey]storage.StreakRecord),
	}
	s.watcher, _ = store.(storage.ChangeWatcher)
	s.dirty.Store(true)
	return s
}

// syncExternal drops every memoized result when another process committed
// to the database since the last check.
func (s *Streaks) syncExternal(ctx context.Context) {
	if s.watcher == nil {
		return
	}
	v, err := s.watcher.DataVersion(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.log.Warn("database change check failed, dropping streak cache",
			slog.String("user", s.userID),
			slog.String("error", err.Error()),
		)
		s.versionSeen = false
	case !s.versionSeen:
		s.dataVersion, s.versionSeen = v, true
		return
	case v == s.dataVersion:
		return
	default:
		s.dataVersion = v
		s.log.Debug("database changed elsewhere, dropping streak cache", slog.String("user", s.userID))
	}
	clear(s.cache)
	s.global = nil
	s.dirty.Store(true)
}

// MarkDirty forces the next calculation to rebuild the indices.
func (s *Streaks) MarkDirty() { s.dirty.Store(true) }

// Observe records a created or updated instance in the indices without a
// full rebuild.
func (s *Streaks) Observe(ins ...storage.Instance) {
	idx := s.index.Load()
	if idx == nil || s.dirty.Load() {
		return
	}
	for _, in := range ins {
		idx = idx.with(in)
	}
	s.index.Store(idx)
}

// Forget drops a deleted instance from the indices.
func (s *Streaks) Forget(keys ...storage.InstanceKey) {
	idx := s.index.Load()
	if idx == nil || s.dirty.Load() {
		return
	}
	for _, k := range keys {
		idx = idx.without(k)
	}
	s.index.Store(idx)
}

func (s *Streaks) loadIndex(ctx context.Context) (*streakIndex, error) {
	if idx := s.index.Load(); idx != nil && !s.dirty.Load() {
		return idx, nil
	}
	s.dirty.Store(false)
	all, err := s.instances.ListAll(ctx, s.userID)
	if err != nil {
		s.dirty.Store(true)
		return nil, fmt.Errorf("rebuild streak index: %w", err)
	}
	idx := buildStreakIndex(all)
	s.index.Store(idx)
	s.log.Debug("streak index rebuilt",
		slog.String("user", s.userID),
		slog.Int("days", len(idx.days)),
		slog.Int("instances", len(all)),
	)
	return idx, nil
}

// templateIndex is the fallback used when the shared index cannot be rebuilt:
// the full day list plus only this template's cells, read straight from the
// store.
func (s *Streaks) templateIndex(ctx context.Context, templateID string) (*streakIndex, error) {
	days, err := s.instances.Days(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	mine, err := s.instances.ListByTemplate(ctx, s.userID, templateID)
	if err != nil {
		return nil, fmt.Errorf("list instances of %s: %w", templateID, err)
	}
	idx := buildStreakIndex(mine)
	idx.days = days
	return idx, nil
}

// dayByDayIndex is the global fallback: a complete index read one day at a
// time. It is never published as the shared index.
func (s *Streaks) dayByDayIndex(ctx context.Context) (*streakIndex, error) {
	days, err := s.instances.Days(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	idx := &streakIndex{days: days, cells: make(map[calendar.Day]map[string]storage.Instance, len(days))}
	for _, d := range days {
		ins, err := s.instances.ListByDay(ctx, s.userID, d)
		if err != nil {
			return nil, fmt.Errorf("list instances for %s: %w", d, err)
		}
		row := make(map[string]storage.Instance, len(ins))
		for _, in := range ins {
			row[in.TemplateID] = in
		}
		idx.cells[d] = row
	}
	return idx, nil
}

// CalculateTemplateStreak returns the streak of t as of today. Results are
// cached per (template id, LastModified) and reused until invalidated or the
// day changes.
func (s *Streaks) CalculateTemplateStreak(ctx context.Context, t storage.Template) (storage.StreakRecord, error) {
	now := s.clock.Now()
	today := calendar.In(now, s.loc)
	key := streakCacheKey{templateID: t.ID, modified: t.LastModified.UnixNano()}
	s.syncExternal(ctx)

	s.mu.Lock()
	rec, ok := s.cache[key]
	s.mu.Unlock()
	if ok && rec.AsOf == today {
		return rec, nil
	}

	if rec, ok := s.storedTemplateRecord(ctx, t, today); ok {
		s.remember(key, rec, now)
		return rec, nil
	}

	idx, err := s.loadIndex(ctx)
	if err != nil {
		s.log.Warn("streak index unavailable, recomputing from store",
			slog.String("user", s.userID),
			slog.String("template", t.ID),
			slog.String("error", err.Error()),
		)
		idx, err = s.templateIndex(ctx, t.ID)
		if err != nil {
			return storage.StreakRecord{}, err
		}
	}

	tally := walkStreak(idx.days, today, func(day calendar.Day) (bool, bool) {
		if in, ok := idx.lookup(day, t.ID); ok {
			return true, in.Status.Logged()
		}
		return ShouldGenerate(t, day), false
	})
	rec = tally.record(s.userID, t.ID, today, now)
	rec.TemplateModified = t.LastModified

	s.remember(key, rec, now)
	s.persist(ctx, rec)
	return rec, nil
}

// CalculateGlobalLoggingStreak returns the streak of days on which anything
// was logged. The result is reused for the freshness window.
func (s *Streaks) CalculateGlobalLoggingStreak(ctx context.Context) (storage.StreakRecord, error) {
	now := s.clock.Now()
	today := calendar.In(now, s.loc)
	s.syncExternal(ctx)

	s.mu.Lock()
	cached := s.global
	s.mu.Unlock()
	if cached != nil && s.globalFresh(*cached, today, now) {
		return *cached, nil
	}

	if rec, err := s.records.Get(ctx, s.userID, storage.GlobalStreakID); err == nil && rec != nil &&
		s.globalFresh(*rec, today, now) && s.plausible(*rec, -1) {
		s.mu.Lock()
		s.global = rec
		s.mu.Unlock()
		return *rec, nil
	}

	idx, err := s.loadIndex(ctx)
	if err != nil {
		s.log.Warn("streak index unavailable, recomputing from store",
			slog.String("user", s.userID),
			slog.String("error", err.Error()),
		)
		idx, err = s.dayByDayIndex(ctx)
		if err != nil {
			return storage.StreakRecord{}, err
		}
	}
	tally := walkStreak(idx.days, today, func(day calendar.Day) (bool, bool) {
		return true, idx.anyLogged(day)
	})
	rec := tally.record(s.userID, storage.GlobalStreakID, today, now)

	s.mu.Lock()
	s.global = &rec
	s.mu.Unlock()
	s.persist(ctx, rec)
	return rec, nil
}

func (s *Streaks) globalFresh(rec storage.StreakRecord, today calendar.Day, now time.Time) bool {
	return rec.AsOf == today && now.Sub(rec.CalculatedAt) < s.rules.GlobalFreshness && !now.Before(rec.CalculatedAt)
}

// InvalidateCache drops the cached results of the given templates, or of
// every streak when none are given, and marks the indices dirty.
func (s *Streaks) InvalidateCache(ctx context.Context, templateIDs ...string) error {
	s.dirty.Store(true)
	return s.Discard(ctx, templateIDs, len(templateIDs) == 0)
}

// Discard drops cached and stored results for the given templates, and the
// global result when global is set. A nil templateIDs with global set drops
// everything. The indices are left as they are.
func (s *Streaks) Discard(ctx context.Context, templateIDs []string, global bool) error {
	all := templateIDs == nil && global

	s.mu.Lock()
	if all {
		clear(s.cache)
	} else {
		drop := make(map[string]bool, len(templateIDs))
		for _, id := range templateIDs {
			drop[id] = true
		}
		for k := range s.cache {
			if drop[k.templateID] {
				delete(s.cache, k)
			}
		}
	}
	if global {
		s.global = nil
	}
	s.mu.Unlock()

	if all {
		recs, err := s.records.List(ctx, s.userID)
		if err != nil {
			return fmt.Errorf("list streak records: %w", err)
		}
		templateIDs = templateIDs[:0]
		for _, r := range recs {
			templateIDs = append(templateIDs, r.TemplateID)
		}
	} else if global {
		templateIDs = append(templateIDs, storage.GlobalStreakID)
	}
	for _, id := range templateIDs {
		if err := s.records.Delete(ctx, s.userID, id); err != nil {
			return fmt.Errorf("delete streak record %s: %w", id, err)
		}
	}
	return nil
}

// UpdateStreaksForDay refreshes the streaks of the templates touched on day
// and the global streak. Other templates keep their cached results.
func (s *Streaks) UpdateStreaksForDay(ctx context.Context, day calendar.Day, affected []storage.Template) (map[string]storage.StreakRecord, error) {
	ids := make([]string, 0, len(affected))
	for _, t := range affected {
		ids = append(ids, t.ID)
	}
	if err := s.Discard(ctx, ids, true); err != nil {
		return nil, err
	}

	out := make(map[string]storage.StreakRecord, len(affected)+1)
	for _, t := range affected {
		rec, err := s.CalculateTemplateStreak(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t.ID] = rec
	}
	global, err := s.CalculateGlobalLoggingStreak(ctx)
	if err != nil {
		return nil, err
	}
	out[storage.GlobalStreakID] = global

	s.log.Debug("streaks updated",
		slog.String("user", s.userID),
		slog.String("day", day.String()),
		slog.Int("templates", len(affected)),
	)
	return out, nil
}

// storedTemplateRecord returns the persisted summary of t when it was
// computed for today against the current template version and passes the
// sanity checks. A record that fails them is logged and recomputed.
func (s *Streaks) storedTemplateRecord(ctx context.Context, t storage.Template, today calendar.Day) (storage.StreakRecord, bool) {
	rec, err := s.records.Get(ctx, s.userID, t.ID)
	if err != nil {
		s.log.Warn("read streak record",
			slog.String("user", s.userID),
			slog.String("template", t.ID),
			slog.String("error", err.Error()),
		)
		return storage.StreakRecord{}, false
	}
	if rec == nil || rec.AsOf != today || !rec.TemplateModified.Equal(t.LastModified) {
		return storage.StreakRecord{}, false
	}
	idx := s.index.Load()
	relevant := -1
	if idx != nil {
		relevant = len(idx.days)
	}
	if !s.plausible(*rec, relevant) {
		return storage.StreakRecord{}, false
	}
	return *rec, true
}

// plausible checks a stored record against the streak invariants. A
// negative maxDays skips the elapsed-days bound.
func (s *Streaks) plausible(rec storage.StreakRecord, maxDays int) bool {
	var problem string
	switch {
	case rec.CurrentStreak < 0 || rec.BestStreak < 0 || rec.TotalCompletions < 0:
		problem = "negative streak counter"
	case rec.CurrentStreak > rec.BestStreak:
		problem = "current streak exceeds best streak"
	case rec.BestStreak > rec.TotalCompletions:
		problem = "best streak exceeds total completions"
	case maxDays >= 0 && rec.BestStreak > maxDays:
		problem = "best streak exceeds elapsed days"
	default:
		return true
	}
	s.log.Warn("streak record discarded",
		slog.String("user", s.userID),
		slog.String("template", rec.TemplateID),
		slog.String("error", CorruptionError{What: problem}.Error()),
	)
	return false
}

func (s *Streaks) remember(key streakCacheKey, rec storage.StreakRecord, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = rec
	if len(s.cache) <= s.rules.CacheSoftLimit {
		return
	}
	for k, v := range s.cache {
		if now.Sub(v.CalculatedAt) > s.rules.CacheMaxAge {
			delete(s.cache, k)
		}
	}
}

func (s *Streaks) persist(ctx context.Context, rec storage.StreakRecord) {
	if err := s.records.Put(ctx, rec); err != nil {
		s.log.Warn("store streak record",
			slog.String("user", s.userID),
			slog.String("template", rec.TemplateID),
			slog.String("error", err.Error()),
		)
	}
}

// cacheLen is used by tests.
func (s *Streaks) cacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

type streakTally struct {
	current      int
	best         int
	total        int
	lastDone     calendar.Day
	currentStart calendar.Day
}

// walkStreak runs the two passes over the sorted day list. pred reports
// whether a day counts for the streak and whether it was completed.
func walkStreak(days []calendar.Day, today calendar.Day, pred func(calendar.Day) (relevant, completed bool)) streakTally {
	var t streakTally

	run := 0
	for _, d := range days {
		relevant, done := pred(d)
		if !relevant {
			continue
		}
		if !done {
			run = 0
			continue
		}
		run++
		t.total++
		t.best = max(t.best, run)
		t.lastDone = d
	}

	for i := len(days) - 1; i >= 0; i-- {
		d := days[i]
		if d.After(today) {
			continue
		}
		relevant, done := pred(d)
		if !relevant {
			continue
		}
		if !done {
			break
		}
		t.current++
		t.currentStart = d
	}
	t.best = max(t.best, t.current)
	return t
}

func (t streakTally) record(userID, templateID string, today calendar.Day, now time.Time) storage.StreakRecord {
	return storage.StreakRecord{
		UserID:                userID,
		TemplateID:            templateID,
		CurrentStreak:         t.current,
		BestStreak:            t.best,
		TotalCompletions:      t.total,
		LastCompletedDay:      t.lastDone,
		CurrentStreakStartDay: t.currentStart,
		AsOf:                  today,
		CalculatedAt:          now,
	}
}

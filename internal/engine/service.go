package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// Options configures a Service. Zero fields take the defaults of
// DefaultOptions.
type Options struct {
	Clock            calendar.Clock
	Location         *time.Location
	Logger           *slog.Logger
	XP               XPRules
	GracePeriod      time.Duration
	DiamondsPerLevel int
	Streaks          StreakRules
}

func DefaultOptions() Options {
	return Options{
		Clock:            calendar.RealClock{},
		Location:         time.Local,
		Logger:           slog.Default(),
		XP:               DefaultXPRules(),
		GracePeriod:      2 * time.Hour,
		DiamondsPerLevel: 10,
		Streaks:          DefaultStreakRules(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.XP == (XPRules{}) {
		o.XP = d.XP
	}
	if o.XP.Rounding == "" {
		o.XP.Rounding = RoundNearest
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = d.GracePeriod
	}
	if o.DiamondsPerLevel <= 0 {
		o.DiamondsPerLevel = d.DiamondsPerLevel
	}
	if o.Streaks.CacheSoftLimit <= 0 {
		o.Streaks.CacheSoftLimit = d.Streaks.CacheSoftLimit
	}
	if o.Streaks.CacheMaxAge <= 0 {
		o.Streaks.CacheMaxAge = d.Streaks.CacheMaxAge
	}
	if o.Streaks.GlobalFreshness <= 0 {
		o.Streaks.GlobalFreshness = d.Streaks.GlobalFreshness
	}
	return o
}

// Service is the per-user facade over the generator, ledger and streak
// engine. Every exported method holds the service lock for its whole
// read-modify-write sequence. Services in other processes may share the
// same database: ledger and instance writes are versioned and retried, and
// the streak cache is dropped when the database reports outside commits.
type Service struct {
	mu     sync.Mutex
	store  storage.Store
	userID string
	opts   Options
	log    *slog.Logger

	gen     *Generator
	ledger  *Ledger
	streaks *Streaks
}

func NewService(store storage.Store, userID string, opts Options) *Service {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(slog.String("user", userID))
	return &Service{
		store:   store,
		userID:  userID,
		opts:    opts,
		log:     opts.Logger,
		gen:     newGenerator(store, userID, opts),
		ledger:  newLedger(store.Ledgers(), userID, opts),
		streaks: newStreaks(store, userID, opts),
	}
}

func (s *Service) UserID() string           { return s.userID }
func (s *Service) Location() *time.Location { return s.opts.Location }
func (s *Service) Now() time.Time           { return s.opts.Clock.Now() }
func (s *Service) Today() calendar.Day      { return calendar.In(s.Now(), s.opts.Location) }
func (s *Service) XPRules() XPRules         { return s.opts.XP }
func (s *Service) Store() storage.Store     { return s.store }

// Day returns the instances of day, generating them on first read.
func (s *Service) Day(ctx context.Context, day calendar.Day) ([]storage.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, _, err := s.day(ctx, day)
	return out, err
}

// GenerateToday materializes today's instances and reports how many were
// created.
func (s *Service) GenerateToday(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, created, err := s.day(ctx, s.Today())
	return len(created), err
}

func (s *Service) day(ctx context.Context, day calendar.Day) ([]storage.Instance, []storage.Instance, error) {
	out, created, err := s.gen.GetInstancesForDay(ctx, day)
	if err != nil {
		return nil, nil, err
	}
	if len(created) > 0 {
		s.streaks.Observe(created...)
		ids := make([]string, 0, len(created))
		for _, in := range created {
			ids = append(ids, in.TemplateID)
		}
		// A paused template gets no instance, yet the new day still counts
		// as missed for its streak.
		templates, err := s.store.Templates().List(ctx, s.userID)
		if err != nil {
			return nil, nil, fmt.Errorf("list templates: %w", err)
		}
		for _, t := range templates {
			if !t.Active {
				ids = append(ids, t.ID)
			}
		}
		if err := s.streaks.Discard(ctx, ids, true); err != nil {
			return nil, nil, err
		}
	}
	return out, created, nil
}

// Instance returns one stored instance.
func (s *Service) Instance(ctx context.Context, key storage.InstanceKey) (*storage.Instance, error) {
	in, err := s.store.Instances().Get(ctx, s.userID, key)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, NotFoundError{Kind: "instance", ID: key.Encode()}
	}
	return in, nil
}

func (s *Service) RegenerateDay(ctx context.Context, day calendar.Day) (RegenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.gen.RegenerateDay(ctx, day)
	if err != nil {
		return res, err
	}
	return res, s.afterRegen(ctx, res)
}

func (s *Service) RegenerateAllDays(ctx context.Context) (RegenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.gen.RegenerateAllDays(ctx)
	if err != nil {
		return res, err
	}
	return res, s.afterRegen(ctx, res)
}

func (s *Service) afterRegen(ctx context.Context, res RegenResult) error {
	if !res.Changed() {
		return nil
	}
	s.streaks.MarkDirty()
	s.log.Info("instances regenerated",
		slog.Int("created", res.Created),
		slog.Int("refreshed", res.Refreshed),
		slog.Int("removed", res.Removed),
	)
	return s.streaks.Discard(ctx, append([]string{}, res.Templates...), true)
}

// EnsureRolledOver settles the ledger up to the current logical day. It is
// safe to call from any number of places.
func (s *Service) EnsureRolledOver(ctx context.Context) (*storage.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.EnsureRolledOver(ctx, s.Now())
}

func (s *Service) AddXP(ctx context.Context, amount int, scheduled calendar.Day) (*storage.LedgerState, *LevelUpResult, error) {
	if amount < 0 {
		return nil, nil, fmt.Errorf("xp amount must not be negative: %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AddXP(ctx, amount, scheduled, s.Now())
}

func (s *Service) RemoveXP(ctx context.Context, amount int, scheduled calendar.Day) (*storage.LedgerState, *LevelUpResult, error) {
	if amount < 0 {
		return nil, nil, fmt.Errorf("xp amount must not be negative: %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.RemoveXP(ctx, amount, scheduled, s.Now())
}

func (s *Service) CorrectBaseXP(ctx context.Context, delta int, reason string) (*storage.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.CorrectBaseXP(ctx, delta, reason, s.Now())
}

// TotalXP returns the ledger total after settling any pending rollover.
func (s *Service) TotalXP(ctx context.Context) (int, error) {
	st, err := s.EnsureRolledOver(ctx)
	if err != nil {
		return 0, err
	}
	return s.ledger.TotalXP(*st), nil
}

// TemplateStreak returns the streak of one template as of today.
func (s *Service) TemplateStreak(ctx context.Context, templateID string) (storage.StreakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getTemplate(ctx, templateID)
	if err != nil {
		return storage.StreakRecord{}, err
	}
	return s.streaks.CalculateTemplateStreak(ctx, *t)
}

func (s *Service) GlobalStreak(ctx context.Context) (storage.StreakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks.CalculateGlobalLoggingStreak(ctx)
}

// InvalidateStreaks drops cached streaks of the given templates, or all of
// them when none are given.
func (s *Service) InvalidateStreaks(ctx context.Context, templateIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks.InvalidateCache(ctx, templateIDs...)
}

// TemplateSummary pairs a template with its current streak.
type TemplateSummary struct {
	Template storage.Template
	Streak   storage.StreakRecord
}

// Summary is the read model behind the status views.
type Summary struct {
	Ledger       storage.LedgerState
	TotalXP      int
	Progress     LevelProgress
	InGapPeriod  bool
	LogicalDay   calendar.Day
	Global       storage.StreakRecord
	Templates    []TemplateSummary
	Achievements []Achievement
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	st, err := s.ledger.EnsureRolledOver(ctx, now)
	if err != nil {
		return nil, err
	}
	templates, err := s.store.Templates().List(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	global, err := s.streaks.CalculateGlobalLoggingStreak(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Ledger:      *st,
		TotalXP:     s.ledger.TotalXP(*st),
		InGapPeriod: s.ledger.InGapPeriod(now),
		LogicalDay:  s.ledger.LogicalDay(now),
		Global:      global,
	}
	sum.Progress = ProgressForTotalXP(sum.TotalXP)

	records := make([]storage.StreakRecord, 0, len(templates))
	for _, t := range templates {
		rec, err := s.streaks.CalculateTemplateStreak(ctx, t)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		sum.Templates = append(sum.Templates, TemplateSummary{Template: t, Streak: rec})
	}
	sum.Achievements = NewAchievementChecker(*st, global, records, templates).GetAchievements()
	return sum, nil
}

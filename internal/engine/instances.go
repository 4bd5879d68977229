package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// Generator materializes per-day instances from templates and applies status
// transitions to them.
type Generator struct {
	templates storage.TemplateStore
	instances storage.InstanceStore
	userID    string
	clock     calendar.Clock
	loc       *time.Location
	grace     time.Duration
	log       *slog.Logger
}

func newGenerator(store storage.Store, userID string, opts Options) *Generator {
	return &Generator{
		templates: store.Templates(),
		instances: store.Instances(),
		userID:    userID,
		clock:     opts.Clock,
		loc:       opts.Location,
		grace:     opts.GracePeriod,
		log:       opts.Logger,
	}
}

// RegenResult counts what a regeneration changed.
type RegenResult struct {
	Created   int
	Refreshed int
	Removed   int
	// Templates lists every template id whose instances were touched.
	Templates []string
}

func (r RegenResult) Changed() bool {
	return r.Created+r.Refreshed+r.Removed > 0
}

func (r *RegenResult) add(o RegenResult) {
	r.Created += o.Created
	r.Refreshed += o.Refreshed
	r.Removed += o.Removed
	for _, id := range o.Templates {
		if !slices.Contains(r.Templates, id) {
			r.Templates = append(r.Templates, id)
		}
	}
}

// GetInstancesForDay returns the day's instances, generating them the first
// time the day is read. Once a day has instances they are returned as stored.
// created is nil unless this call generated the day.
func (g *Generator) GetInstancesForDay(ctx context.Context, day calendar.Day) (out []storage.Instance, created []storage.Instance, err error) {
	existing, err := g.instances.ListByDay(ctx, g.userID, day)
	if err != nil {
		return nil, nil, fmt.Errorf("list instances for %s: %w", day, err)
	}
	if len(existing) > 0 {
		return existing, nil, nil
	}

	templates, err := g.templates.List(ctx, g.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list templates: %w", err)
	}
	now := g.clock.Now()
	for _, t := range templates {
		if t.Active && ShouldGenerate(t, day) {
			created = append(created, g.newInstance(t, day, now))
		}
	}
	if len(created) == 0 {
		return nil, nil, nil
	}
	written, err := g.instances.PutBatch(ctx, created)
	if err != nil {
		return nil, nil, fmt.Errorf("store instances for %s: %w", day, err)
	}
	if len(written) < len(created) {
		// Another process generated part of the day first; its rows win.
		out, err := g.instances.ListByDay(ctx, g.userID, day)
		if err != nil {
			return nil, nil, fmt.Errorf("list instances for %s: %w", day, err)
		}
		if len(written) == 0 {
			return out, nil, nil
		}
		sortInstances(written)
		return out, written, nil
	}
	sortInstances(created)
	g.log.Debug("day generated",
		slog.String("user", g.userID),
		slog.String("day", day.String()),
		slog.Int("instances", len(created)),
	)
	return slices.Clone(created), created, nil
}

// RegenerateDay reconciles a day with the current templates. Existing
// instances keep their status; logged instances are never removed, and pending
// ones are removed when their template no longer applies.
func (g *Generator) RegenerateDay(ctx context.Context, day calendar.Day) (RegenResult, error) {
	templates, err := g.templates.List(ctx, g.userID)
	if err != nil {
		return RegenResult{}, fmt.Errorf("list templates: %w", err)
	}
	return g.regenerateDay(ctx, day, templates)
}

// RegenerateAllDays reconciles every day that has instances.
func (g *Generator) RegenerateAllDays(ctx context.Context) (RegenResult, error) {
	return g.RegenerateFrom(ctx, calendar.Day{})
}

// RegenerateFrom reconciles every existing day on or after from. Template
// edits use it so days before the edit keep the instances they had.
func (g *Generator) RegenerateFrom(ctx context.Context, from calendar.Day) (RegenResult, error) {
	days, err := g.instances.Days(ctx, g.userID)
	if err != nil {
		return RegenResult{}, fmt.Errorf("list days: %w", err)
	}
	templates, err := g.templates.List(ctx, g.userID)
	if err != nil {
		return RegenResult{}, fmt.Errorf("list templates: %w", err)
	}

	var total RegenResult
	for _, day := range days {
		if !from.IsZero() && day.Before(from) {
			continue
		}
		res, err := g.regenerateDay(ctx, day, templates)
		if err != nil {
			return total, err
		}
		total.add(res)
	}
	return total, nil
}

func (g *Generator) regenerateDay(ctx context.Context, day calendar.Day, templates []storage.Template) (RegenResult, error) {
	existing, err := g.instances.ListByDay(ctx, g.userID, day)
	if err != nil {
		return RegenResult{}, fmt.Errorf("list instances for %s: %w", day, err)
	}
	byTemplate := make(map[string]storage.Instance, len(existing))
	for _, in := range existing {
		byTemplate[in.TemplateID] = in
	}

	now := g.clock.Now()
	var res RegenResult
	var puts []storage.Instance
	var removes []storage.InstanceKey
	known := make(map[string]bool, len(templates))

	for _, t := range templates {
		known[t.ID] = true
		applies := t.Active && ShouldGenerate(t, day)
		in, ok := byTemplate[t.ID]

		switch {
		case !ok && applies:
			puts = append(puts, g.newInstance(t, day, now))
		case ok && in.Status == storage.StatusPending && !applies:
			removes = append(removes, in.Key())
		case ok:
			// Reward stays a snapshot once logged so reverting removes what
			// was granted.
			changed := in.Name != t.Name
			in.Name = t.Name
			if in.Status == storage.StatusPending && in.Reward != t.Reward {
				in.Reward = t.Reward
				changed = true
			}
			if !changed {
				continue
			}
			in.LastModified = nextModified(in.LastModified, now)
			in.Version++
			puts = append(puts, in)
		default:
			continue
		}
		res.Templates = append(res.Templates, t.ID)
	}

	// Pending instances of deleted templates go; logged ones stay as history.
	for _, in := range existing {
		if !known[in.TemplateID] && in.Status == storage.StatusPending {
			removes = append(removes, in.Key())
			res.Templates = append(res.Templates, in.TemplateID)
		}
	}

	// Rows another process changed since the listing are skipped by the
	// store and left for its next regeneration.
	if len(puts) > 0 {
		written, err := g.instances.PutBatch(ctx, puts)
		if err != nil {
			return RegenResult{}, fmt.Errorf("store instances for %s: %w", day, err)
		}
		for _, in := range written {
			if in.Version == 1 {
				res.Created++
			} else {
				res.Refreshed++
			}
		}
	}
	for _, key := range removes {
		deleted, err := g.instances.DeletePending(ctx, g.userID, key)
		if err != nil {
			return RegenResult{}, fmt.Errorf("delete instance %s: %w", key, err)
		}
		if deleted {
			res.Removed++
		}
	}
	return res, nil
}

// UpdateStatus moves an instance along pending -> logged -> pending and
// returns the instance as it was before and after. Lateness is fixed when the
// instance leaves pending. A write lost to another process is retried from a
// fresh read, so the transition is checked against the latest status.
func (g *Generator) UpdateStatus(ctx context.Context, key storage.InstanceKey, status storage.InstanceStatus, now time.Time) (before, after *storage.Instance, err error) {
	if !status.IsValid() {
		return nil, nil, fmt.Errorf("invalid status: %q", status)
	}
	for attempt := 1; ; attempt++ {
		in, err := g.instances.Get(ctx, g.userID, key)
		if err != nil {
			return nil, nil, fmt.Errorf("get instance %s: %w", key, err)
		}
		if in == nil {
			return nil, nil, NotFoundError{Kind: "instance", ID: key.Encode()}
		}
		if !canTransition(in.Status, status) {
			return nil, nil, TransitionError{From: in.Status, To: status}
		}

		prev := *in
		in.Status = status
		if status == storage.StatusPending {
			in.Late = false
			in.CompletedAt = nil
		} else {
			in.Late = g.IsLate(in.Day, now)
			if status == storage.StatusCompleted {
				at := now
				in.CompletedAt = &at
			}
		}
		in.LastModified = nextModified(in.LastModified, now)
		in.Version++

		err = g.instances.Put(ctx, *in)
		if errors.Is(err, storage.ErrConflict) && attempt < writeAttempts {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("store instance %s: %w", key, err)
		}
		return &prev, in, nil
	}
}

// RevertStatus writes before back over after, used when the ledger half of a
// status change fails. The restored row gets a new version so readers see
// the change.
func (g *Generator) RevertStatus(ctx context.Context, before, after storage.Instance, now time.Time) error {
	restored := before
	restored.LastModified = nextModified(after.LastModified, now)
	restored.Version = after.Version + 1
	if err := g.instances.Put(ctx, restored); err != nil {
		return fmt.Errorf("restore instance %s: %w", before.Key(), err)
	}
	return nil
}

// IsLate reports whether logging an instance of day at now is past the grace
// window of the following day.
func (g *Generator) IsLate(day calendar.Day, now time.Time) bool {
	deadline := day.Start(g.loc).AddDate(0, 0, 1).Add(g.grace)
	return now.After(deadline)
}

// PruneFuturePending deletes the template's pending instances on or after
// from. Logged instances are kept.
func (g *Generator) PruneFuturePending(ctx context.Context, templateID string, from calendar.Day) (int, error) {
	n, err := g.instances.DeletePendingFrom(ctx, g.userID, templateID, from)
	if err != nil {
		return 0, fmt.Errorf("prune pending instances of %s: %w", templateID, err)
	}
	return n, nil
}

func (g *Generator) newInstance(t storage.Template, day calendar.Day, now time.Time) storage.Instance {
	return storage.Instance{
		UserID:       g.userID,
		TemplateID:   t.ID,
		Day:          day,
		Name:         t.Name,
		Reward:       t.Reward,
		Status:       storage.StatusPending,
		LastModified: now,
		Version:      1,
	}
}

func canTransition(from, to storage.InstanceStatus) bool {
	if from == to {
		return false
	}
	if from == storage.StatusPending {
		return to.Logged()
	}
	return to == storage.StatusPending
}

func sortInstances(xs []storage.Instance) {
	slices.SortFunc(xs, func(a, b storage.Instance) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.TemplateID, b.TemplateID)
	})
}

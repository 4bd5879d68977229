package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// StatusChange is everything a status transition touched.
type StatusChange struct {
	Instance storage.Instance
	Previous storage.InstanceStatus
	// XPDelta is the reward granted (positive) or revoked (negative).
	XPDelta int
	Ledger  storage.LedgerState
	TotalXP int
	LevelUp *LevelUpResult
	// Streak is nil when the instance's template has been deleted.
	Streak *storage.StreakRecord
	Global storage.StreakRecord
}

// SetStatus transitions one instance and books the reward: completing grants
// the instance reward as XP and coins, returning a completed instance to
// pending revokes it. Skipping or missing moves no XP.
func (s *Service) SetStatus(ctx context.Context, key storage.InstanceKey, status storage.InstanceStatus) (*StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	before, in, err := s.gen.UpdateStatus(ctx, key, status, now)
	if err != nil {
		return nil, err
	}
	prev := before.Status

	res := &StatusChange{Instance: *in, Previous: prev}
	var st *storage.LedgerState
	switch {
	case status == storage.StatusCompleted:
		st, res.LevelUp, err = s.ledger.Grant(ctx, in.Reward, in.Day, now)
		res.XPDelta = in.Reward
	case prev == storage.StatusCompleted:
		st, res.LevelUp, err = s.ledger.Revoke(ctx, in.Reward, in.Day, now)
		res.XPDelta = -in.Reward
	default:
		st, err = s.ledger.EnsureRolledOver(ctx, now)
	}
	if err != nil {
		// The instance must not stay logged without its reward booked.
		if rerr := s.gen.RevertStatus(ctx, *before, *in, now); rerr != nil {
			s.log.Error("status revert failed",
				slog.String("instance", key.Encode()),
				slog.String("error", rerr.Error()),
			)
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	res.Ledger = *st
	res.TotalXP = s.ledger.TotalXP(*st)

	s.streaks.Observe(*in)
	t, err := s.store.Templates().Get(ctx, s.userID, in.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", in.TemplateID, err)
	}
	var affected []storage.Template
	if t != nil {
		affected = append(affected, *t)
	}
	recs, err := s.streaks.UpdateStreaksForDay(ctx, in.Day, affected)
	if err != nil {
		return nil, err
	}
	if rec, ok := recs[in.TemplateID]; ok {
		res.Streak = &rec
	}
	res.Global = recs[storage.GlobalStreakID]

	s.log.Info("instance status changed",
		slog.String("instance", key.Encode()),
		slog.String("from", string(prev)),
		slog.String("to", string(status)),
		slog.Bool("late", in.Late),
		slog.Int("xp_delta", res.XPDelta),
	)
	return res, nil
}

// ResolveInstance turns a reference into an instance key. ref is either an
// encoded key or a template reference looked up on day. The day is
// generated first if needed.
func (s *Service) ResolveInstance(ctx context.Context, day calendar.Day, ref string) (storage.InstanceKey, error) {
	ref = strings.TrimSpace(ref)
	if key, err := storage.DecodeInstanceKey(ref); err == nil {
		return key, nil
	}

	instances, err := s.Day(ctx, day)
	if err != nil {
		return storage.InstanceKey{}, err
	}
	for _, in := range instances {
		if in.TemplateID == ref || strings.EqualFold(in.Name, ref) {
			return in.Key(), nil
		}
	}
	var match *storage.Instance
	for i := range instances {
		if strings.HasPrefix(instances[i].TemplateID, ref) || strings.HasPrefix(strings.ToLower(instances[i].Name), strings.ToLower(ref)) {
			if match != nil {
				return storage.InstanceKey{}, fmt.Errorf("reference %q matches more than one instance on %s", ref, day)
			}
			match = &instances[i]
		}
	}
	if match == nil {
		return storage.InstanceKey{}, NotFoundError{Kind: "instance", ID: day.String() + "/" + ref}
	}
	return match.Key(), nil
}

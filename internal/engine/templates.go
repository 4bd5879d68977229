package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

var validate = validator.New()

type TemplateInput struct {
	Name       string `validate:"required,max=120"`
	Reward     int    `validate:"gte=0,lte=10000"`
	Recurrence storage.Recurrence
	StartDate  calendar.Day
	EndDate    calendar.Day
}

// TemplatePatch changes only the non-nil fields.
type TemplatePatch struct {
	Name       *string
	Reward     *int
	Recurrence *storage.Recurrence
	StartDate  *calendar.Day
	EndDate    *calendar.Day
}

func (in *TemplateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Recurrence.Kind == "" {
		in.Recurrence.Kind = storage.RecurrenceDaily
	}
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid template: %s failed %q", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("invalid template: %w", err)
	}
	if err := ValidateRecurrence(in.Recurrence); err != nil {
		return err
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("end date %s is before start date %s", in.EndDate, in.StartDate)
	}
	return nil
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*storage.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTemplate(ctx, in)
}

func (s *Service) createTemplate(ctx context.Context, in TemplateInput) (*storage.Template, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.Now()
	t := storage.Template{
		ID:           uuid.NewString(),
		UserID:       s.userID,
		Name:         in.Name,
		Reward:       in.Reward,
		Recurrence:   in.Recurrence,
		Active:       true,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		CreatedAt:    now,
		LastModified: now,
		Version:      1,
	}
	if err := s.store.Templates().Put(ctx, t); err != nil {
		return nil, fmt.Errorf("store template: %w", err)
	}
	s.log.Info("template created",
		slog.String("template", t.ID),
		slog.String("name", t.Name),
		slog.String("recurrence", FormatRecurrence(t.Recurrence)),
	)

	// Days already generated from today on pick up the new template.
	res, err := s.gen.RegenerateFrom(ctx, s.Today())
	if err != nil {
		return nil, err
	}
	if err := s.afterRegen(ctx, res); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTemplate applies patch and regenerates today and later. Earlier days
// keep their instances.
func (s *Service) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*storage.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	in := TemplateInput{
		Name:       t.Name,
		Reward:     t.Reward,
		Recurrence: t.Recurrence,
		StartDate:  t.StartDate,
		EndDate:    t.EndDate,
	}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.Reward != nil {
		in.Reward = *patch.Reward
	}
	if patch.Recurrence != nil {
		in.Recurrence = *patch.Recurrence
	}
	if patch.StartDate != nil {
		in.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		in.EndDate = *patch.EndDate
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	t.Name = in.Name
	t.Reward = in.Reward
	t.Recurrence = in.Recurrence
	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
	if err := s.touchTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info("template updated", slog.String("template", t.ID), slog.Int64("version", t.Version))

	res, err := s.gen.RegenerateFrom(ctx, s.Today())
	if err != nil {
		return nil, err
	}
	if err := s.afterRegen(ctx, res); err != nil {
		return nil, err
	}
	if err := s.streaks.InvalidateCache(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// SetActive pauses or resumes a template. Pausing removes its pending
// instances from today on; resuming generates them again for days that
// already exist.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*storage.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Active == active {
		return t, nil
	}
	t.Active = active
	if err := s.touchTemplate(ctx, t); err != nil {
		return nil, err
	}

	if !active {
		n, err := s.gen.PruneFuturePending(ctx, t.ID, s.Today())
		if err != nil {
			return nil, err
		}
		s.log.Info("template deactivated", slog.String("template", t.ID), slog.Int("pruned", n))
	} else {
		res, err := s.gen.RegenerateFrom(ctx, s.Today())
		if err != nil {
			return nil, err
		}
		if err := s.afterRegen(ctx, res); err != nil {
			return nil, err
		}
		s.log.Info("template activated", slog.String("template", t.ID))
	}
	if err := s.streaks.InvalidateCache(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, s.streaks.Discard(ctx, []string{}, true)
}

// DeleteTemplate removes a template and its pending instances from today on.
// Logged instances and the rewards they earned are kept.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.gen.PruneFuturePending(ctx, t.ID, s.Today())
	if err != nil {
		return err
	}
	if err := s.store.Templates().Delete(ctx, s.userID, t.ID); err != nil {
		return fmt.Errorf("delete template %s: %w", t.ID, err)
	}
	s.log.Info("template deleted", slog.String("template", t.ID), slog.Int("pruned", n))

	if err := s.streaks.InvalidateCache(ctx, t.ID); err != nil {
		return err
	}
	return s.streaks.Discard(ctx, []string{}, true)
}

func (s *Service) ListTemplates(ctx context.Context) ([]storage.Template, error) {
	return s.store.Templates().List(ctx, s.userID)
}

// ResolveTemplate finds a template by id, by case-insensitive name, or by a
// unique id prefix.
func (s *Service) ResolveTemplate(ctx context.Context, ref string) (*storage.Template, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("template reference is required")
	}
	if t, err := s.store.Templates().Get(ctx, s.userID, ref); err != nil {
		return nil, err
	} else if t != nil {
		return t, nil
	}

	all, err := s.store.Templates().List(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, ref) {
			return &all[i], nil
		}
	}
	var match *storage.Template
	for i := range all {
		if strings.HasPrefix(all[i].ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("template reference %q is ambiguous", ref)
			}
			match = &all[i]
		}
	}
	if match == nil {
		return nil, NotFoundError{Kind: "template", ID: ref}
	}
	return match, nil
}

func (s *Service) getTemplate(ctx context.Context, id string) (*storage.Template, error) {
	t, err := s.store.Templates().Get(ctx, s.userID, id)
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	if t == nil {
		return nil, NotFoundError{Kind: "template", ID: id}
	}
	return t, nil
}

func (s *Service) touchTemplate(ctx context.Context, t *storage.Template) error {
	t.LastModified = nextModified(t.LastModified, s.Now())
	t.Version++
	if err := s.store.Templates().Put(ctx, *t); err != nil {
		return fmt.Errorf("store template %s: %w", t.ID, err)
	}
	return nil
}

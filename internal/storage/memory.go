package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/src-lua/apogee/internal/calendar"
)

// MemoryStore is an in-process Store. It keeps no history beyond the current
// process and is used by tests and the --memory CLI flag.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]map[string]Template
	instances map[string]map[InstanceKey]Instance
	ledgers   map[string]LedgerState
	streaks   map[string]map[string]StreakRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: map[string]map[string]Template{},
		instances: map[string]map[InstanceKey]Instance{},
		ledgers:   map[string]LedgerState{},
		streaks:   map[string]map[string]StreakRecord{},
	}
}

func (s *MemoryStore) Templates() TemplateStore { return memTemplates{s} }
func (s *MemoryStore) Instances() InstanceStore { return memInstances{s} }
func (s *MemoryStore) Ledgers() LedgerStore     { return memLedgers{s} }
func (s *MemoryStore) Streaks() StreakStore     { return memStreaks{s} }
func (s *MemoryStore) Close() error             { return nil }

func cloneTemplate(t Template) Template {
	t.Recurrence.Weekdays = slices.Clone(t.Recurrence.Weekdays)
	t.Recurrence.MonthDays = slices.Clone(t.Recurrence.MonthDays)
	t.Recurrence.Custom = slices.Clone(t.Recurrence.Custom)
	return t
}

func cloneInstance(in Instance) Instance {
	if in.CompletedAt != nil {
		v := *in.CompletedAt
		in.CompletedAt = &v
	}
	return in
}

type memTemplates struct{ s *MemoryStore }

func (r memTemplates) Get(_ context.Context, userID, id string) (*Template, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.templates[userID][id]
	if !ok {
		return nil, nil
	}
	t = cloneTemplate(t)
	return &t, nil
}

func (r memTemplates) List(_ context.Context, userID string) ([]Template, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]Template, 0, len(r.s.templates[userID]))
	for _, t := range r.s.templates[userID] {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memTemplates) Put(_ context.Context, t Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.s.templates[t.UserID]
	if m == nil {
		m = map[string]Template{}
		r.s.templates[t.UserID] = m
	}
	m[t.ID] = cloneTemplate(t)
	return nil
}

func (r memTemplates) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.templates[userID], id)
	return nil
}

type memInstances struct{ s *MemoryStore }

func (r memInstances) Get(_ context.Context, userID string, key InstanceKey) (*Instance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	in, ok := r.s.instances[userID][key]
	if !ok {
		return nil, nil
	}
	in = cloneInstance(in)
	return &in, nil
}

func (r memInstances) filter(userID string, keep func(Instance) bool) []Instance {
	var out []Instance
	for _, in := range r.s.instances[userID] {
		if keep(in) {
			out = append(out, cloneInstance(in))
		}
	}
	return out
}

func (r memInstances) ListByDay(_ context.Context, userID string, day calendar.Day) ([]Instance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.filter(userID, func(in Instance) bool { return in.Day == day })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out, nil
}

func (r memInstances) ListByTemplate(_ context.Context, userID, templateID string) ([]Instance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.filter(userID, func(in Instance) bool { return in.TemplateID == templateID })
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (r memInstances) ListAll(_ context.Context, userID string) ([]Instance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.filter(userID, func(Instance) bool { return true })
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Day.Compare(out[j].Day); c != 0 {
			return c < 0
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out, nil
}

func (r memInstances) Days(_ context.Context, userID string) ([]calendar.Day, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[calendar.Day]bool{}
	var out []calendar.Day
	for k := range r.s.instances[userID] {
		if !seen[k.Day] {
			seen[k.Day] = true
			out = append(out, k.Day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r memInstances) Put(_ context.Context, in Instance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.put(in)
}

func (r memInstances) PutBatch(_ context.Context, batch []Instance) ([]Instance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var written []Instance
	for _, in := range batch {
		if err := r.put(in); err != nil {
			continue
		}
		written = append(written, in)
	}
	return written, nil
}

func (r memInstances) put(in Instance) error {
	m := r.s.instances[in.UserID]
	if m == nil {
		m = map[InstanceKey]Instance{}
		r.s.instances[in.UserID] = m
	}
	if cur, ok := m[in.Key()]; ok && cur.Version != in.Version-1 {
		return ErrConflict
	}
	m[in.Key()] = cloneInstance(in)
	return nil
}

func (r memInstances) DeletePending(_ context.Context, userID string, key InstanceKey) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.instances[userID][key]
	if !ok || in.Status != StatusPending {
		return false, nil
	}
	delete(r.s.instances[userID], key)
	return true, nil
}

func (r memInstances) DeletePendingFrom(_ context.Context, userID, templateID string, from calendar.Day) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, in := range r.s.instances[userID] {
		if k.TemplateID == templateID && !k.Day.Before(from) && in.Status == StatusPending {
			delete(r.s.instances[userID], k)
			n++
		}
	}
	return n, nil
}

type memLedgers struct{ s *MemoryStore }

func (r memLedgers) Get(_ context.Context, userID string) (*LedgerState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.ledgers[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r memLedgers) Put(_ context.Context, st LedgerState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur, ok := r.s.ledgers[st.UserID]; ok && cur.Version != st.Version-1 {
		return ErrConflict
	}
	r.s.ledgers[st.UserID] = st
	return nil
}

type memStreaks struct{ s *MemoryStore }

func (r memStreaks) Get(_ context.Context, userID, templateID string) (*StreakRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.streaks[userID][templateID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memStreaks) List(_ context.Context, userID string) ([]StreakRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]StreakRecord, 0, len(r.s.streaks[userID]))
	for _, rec := range r.s.streaks[userID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateID < out[j].TemplateID })
	return out, nil
}

func (r memStreaks) Put(_ context.Context, rec StreakRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.s.streaks[rec.UserID]
	if m == nil {
		m = map[string]StreakRecord{}
		r.s.streaks[rec.UserID] = m
	}
	m[rec.TemplateID] = rec
	return nil
}

func (r memStreaks) Delete(_ context.Context, userID, templateID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.streaks[userID], templateID)
	return nil
}

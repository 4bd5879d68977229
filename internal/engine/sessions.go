package engine

import (
	"slices"
	"strings"
	"sync"

	"github.com/src-lua/apogee/internal/storage"
)

// Sessions hands out exactly one Service per user so each user's counters
// have a single owner within the process.
type Sessions struct {
	mu       sync.Mutex
	store    storage.Store
	opts     Options
	services map[string]*Service
}

func NewSessions(store storage.Store, opts Options) *Sessions {
	return &Sessions{
		store:    store,
		opts:     opts,
		services: make(map[string]*Service),
	}
}

func (s *Sessions) For(userID string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[userID]
	if !ok {
		svc = NewService(s.store, userID, s.opts)
		s.services[userID] = svc
	}
	return svc
}

// Services returns the open services ordered by user id.
func (s *Sessions) Services() []*Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	slices.SortFunc(out, func(a, b *Service) int {
		return strings.Compare(a.userID, b.userID)
	})
	return out
}

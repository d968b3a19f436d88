package memory

import (
	"context"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// VisitorStore counts unique visitors in memory.
type VisitorStore struct {
	mu       sync.Mutex
	visitors map[string]domain.Visitor
}

func NewVisitorStore() *VisitorStore {
	return &VisitorStore{visitors: make(map[string]domain.Visitor)}
}

func (s *VisitorStore) Touch(_ context.Context, visitorID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	if !ok {
		s.visitors[visitorID] = domain.Visitor{VisitorID: visitorID, FirstVisit: at, LastVisit: at, VisitCount: 1}
		return true, nil
	}
	v.LastVisit = at
	v.VisitCount++
	s.visitors[visitorID] = v
	return false, nil
}

func (s *VisitorStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors), nil
}

// Visitor returns the stored record, mainly for tests and the admin view.
func (s *VisitorStore) Visitor(_ context.Context, visitorID string) (domain.Visitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	return v, ok
}

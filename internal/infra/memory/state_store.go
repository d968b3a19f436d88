package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// StateStore keeps the singleton quiz state in process memory.
type StateStore struct {
	mu    sync.Mutex
	state *domain.QuizState
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

// Load returns the state, creating the defaults on first read.
func (s *StateStore) Load(_ context.Context) (domain.QuizState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked().Clone(), nil
}

// Update runs fn on a copy of the state and stores it when fn succeeds.
func (s *StateStore) Update(_ context.Context, fn func(*domain.QuizState) error) (domain.QuizState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.currentLocked().Clone()
	if err := fn(&next); err != nil {
		return domain.QuizState{}, err
	}
	stored := next.Clone()
	s.state = &stored
	return next.Clone(), nil
}

func (s *StateStore) currentLocked() domain.QuizState {
	if s.state == nil {
		def := domain.DefaultQuizState(0)
		s.state = &def
	}
	return *s.state
}

package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// UserStore keeps registered participants in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	order []string
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) Create(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return domain.ErrUserExists
	}
	for _, existing := range s.users {
		if u.Identity().Matches(existing.Identity()) {
			return domain.ErrUserExists
		}
	}
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	return nil
}

func (s *UserStore) Get(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) Find(_ context.Context, identity domain.Identity) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity.Empty() {
		return domain.User{}, domain.ErrUserNotFound
	}
	for _, id := range s.order {
		if u := s.users[id]; identity.Matches(u.Identity()) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

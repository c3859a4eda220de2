// Package user persists accounts.
package user

import (
	"context"
	"sync"

	"organograma/internal/auth/models"
	"organograma/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in maps indexed by id and email.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	byEmail map[string]string
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	email := models.NormalizeEmail(u.Email)
	if _, taken := s.byEmail[email]; taken {
		return sentinel.ErrAlreadyUsed
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *InMemoryUserStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	email := models.NormalizeEmail(u.Email)
	if owner, taken := s.byEmail[email]; taken && owner != u.ID {
		return sentinel.ErrAlreadyUsed
	}
	delete(s.byEmail, models.NormalizeEmail(current.Email))
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

package account

import (
	"context"
	"sync"

	"badguys/internal/auth/models"
	"badguys/pkg/domain"
	"badguys/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded account store keyed by id with an email index.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[domain.UserID]models.Account
	byEmail  map[string]domain.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[domain.UserID]models.Account),
		byEmail:  make(map[string]domain.UserID),
	}
}

// Create inserts a. A taken email fails with sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[a.Email]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.accounts[a.ID] = *a
	s.byEmail[a.Email] = a.ID
	return nil
}

// Upsert inserts a, or replaces the password hash and role of the account
// holding the same email. It returns the stored record.
func (s *InMemory) Upsert(_ context.Context, a *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, exists := s.byEmail[a.Email]; exists {
		existing := s.accounts[id]
		existing.PasswordHash = a.PasswordHash
		existing.Role = a.Role
		s.accounts[id] = existing
		return &existing, nil
	}
	s.accounts[a.ID] = *a
	s.byEmail[a.Email] = a.ID
	stored := *a
	return &stored, nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

// FindByEmail expects an already normalised email.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a := s.accounts[id]
	return &a, nil
}

func (s *InMemory) Delete(_ context.Context, id domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, a.Email)
	return nil
}

package setting

import (
	"context"
	"sync"

	"badguys/internal/settings/models"
	"badguys/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	settings map[string]models.Setting
}

func NewInMemory() *InMemory {
	return &InMemory{settings: make(map[string]models.Setting)}
}

// Put inserts or replaces the setting under s.Key.
func (m *InMemory) Put(_ context.Context, s *models.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.Key] = *s
	return nil
}

func (m *InMemory) Get(_ context.Context, key string) (*models.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &s, nil
}

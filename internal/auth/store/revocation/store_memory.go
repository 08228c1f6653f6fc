// Package revocation records signed-out access tokens until they expire.
package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemory is a single-process revocation list. Expired entries are pruned on write.
type InMemory struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	subjects map[string]time.Time
	now      func() time.Time
}

type Option func(*InMemory)

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(m *InMemory) {
		m.now = now
	}
}

func NewInMemory(opts ...Option) *InMemory {
	m := &InMemory{
		revoked:  make(map[string]time.Time),
		subjects: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *InMemory) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	prune(m.revoked, now)
	m.revoked[jti] = now.Add(ttl)
	return nil
}

// RevokeSubject rejects every token issued to subject for ttl.
func (m *InMemory) RevokeSubject(_ context.Context, subject string, ttl time.Duration) error {
	if subject == "" || ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	prune(m.subjects, now)
	m.subjects[subject] = now.Add(ttl)
	return nil
}

func (m *InMemory) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[jti]
	if !ok {
		return false, nil
	}
	return m.now().Before(until), nil
}

func (m *InMemory) IsSubjectRevoked(_ context.Context, subject string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.subjects[subject]
	if !ok {
		return false, nil
	}
	return m.now().Before(until), nil
}

func prune(entries map[string]time.Time, now time.Time) {
	for key, until := range entries {
		if !now.Before(until) {
			delete(entries, key)
		}
	}
}

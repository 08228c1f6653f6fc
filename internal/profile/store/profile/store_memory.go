package profile

import (
	"context"
	"sort"
	"sync"

	"badguys/internal/profile/models"
	"badguys/pkg/domain"
	"badguys/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded profile store for development and tests.
// Records are copied on the way in and out so callers never share state with the store.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[domain.ProfileID]*models.Profile
	byURL    map[string]domain.ProfileID
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[domain.ProfileID]*models.Profile),
		byURL:    make(map[string]domain.ProfileID),
	}
}

// Create inserts p. A second record with the same SourceURL fails with sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[p.SourceURL]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.profiles[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.profiles[p.ID] = clone(p)
	s.byURL[p.SourceURL] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemory) FindByURL(_ context.Context, sourceURL string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[sourceURL]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.profiles[id]), nil
}

// UpdateStatus sets the status unconditionally; concurrent updates are last-writer-wins.
func (s *InMemory) UpdateStatus(_ context.Context, id domain.ProfileID, status models.Status) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.Status = status
	return clone(p), nil
}

// Execute runs validate then mutate on a copy while holding the write lock,
// and stores the copy only when validate succeeds.
func (s *InMemory) Execute(_ context.Context, id domain.ProfileID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(p)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	working.ID = p.ID
	working.SourceURL = p.SourceURL
	working.CreatedAt = p.CreatedAt
	s.profiles[id] = working
	return clone(working), nil
}

func (s *InMemory) IncrementReports(_ context.Context, sourceURL string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byURL[sourceURL]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.profiles[id]
	p.ReportCount++
	return clone(p), nil
}

func (s *InMemory) Delete(_ context.Context, id domain.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byURL, p.SourceURL)
	delete(s.profiles, id)
	return nil
}

// DetachReporter clears the weak reference to a deleted account.
func (s *InMemory) DetachReporter(_ context.Context, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.ReportedBy != nil && *p.ReportedBy == userID {
			p.ReportedBy = nil
		}
	}
	return nil
}

// ListAll returns every record, newest first.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, clone(p))
	}
	sortNewestFirst(out)
	return out, nil
}

// ListPublic returns verified records only, ordered by kind and truncated to limit.
func (s *InMemory) ListPublic(_ context.Context, kind models.PublicListKind, limit int) ([]*models.Profile, error) {
	s.mu.RLock()
	out := make([]*models.Profile, 0)
	for _, p := range s.profiles {
		if p.IsPublic() {
			out = append(out, clone(p))
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if kind == models.ListMostReported {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ReportCount > out[j].ReportCount
		})
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) Count(_ context.Context, f models.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.profiles {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.IsActiveOnSource != nil && p.IsActiveOnSource != *f.IsActiveOnSource {
			continue
		}
		n++
	}
	return n, nil
}

func sortNewestFirst(out []*models.Profile) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}

func clone(p *models.Profile) *models.Profile {
	c := *p
	c.DisplayName = cloneString(p.DisplayName)
	c.DisplayTitle = cloneString(p.DisplayTitle)
	c.AnalysisRationale = cloneString(p.AnalysisRationale)
	if p.LastCheckedAt != nil {
		t := *p.LastCheckedAt
		c.LastCheckedAt = &t
	}
	if p.ReportedBy != nil {
		r := *p.ReportedBy
		c.ReportedBy = &r
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

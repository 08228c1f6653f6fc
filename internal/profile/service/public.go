package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"badguys/internal/profile/models"
)

// ListPublic returns verified records for one public projection. limit
// defaults to DefaultPublicLimit and is capped at MaxPublicLimit.
func (s *Service) ListPublic(ctx context.Context, kind models.PublicListKind, limit int) ([]*models.Profile, error) {
	if limit <= 0 {
		limit = DefaultPublicLimit
	}
	limit = min(limit, MaxPublicLimit)
	if kind == "" {
		kind = models.ListLatest
	}

	profiles, err := s.profiles.ListPublic(ctx, kind, limit)
	if err != nil {
		return nil, translateStore(err, "list public profiles")
	}
	return profiles, nil
}

// Stats computes the public counters over verified records. The three counts
// run concurrently.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	verified := models.StatusVerified
	active, inactive := true, false

	var stats models.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.profiles.Count(gctx, models.Filter{Status: &verified})
		stats.Found = n
		return err
	})
	g.Go(func() error {
		n, err := s.profiles.Count(gctx, models.Filter{Status: &verified, IsActiveOnSource: &active})
		stats.StillActive = n
		return err
	})
	g.Go(func() error {
		n, err := s.profiles.Count(gctx, models.Filter{Status: &verified, IsActiveOnSource: &inactive})
		stats.Deactivated = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translateStore(err, "count profiles")
	}
	return &stats, nil
}

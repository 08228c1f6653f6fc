package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"badguys/internal/profile/models"
	"badguys/internal/profile/urlcheck"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/requestcontext"
)

// UpdateStatus records an admin decision. Concurrent decisions on the same
// record are last-writer-wins.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id domain.ProfileID, status models.Status) (_ *models.Profile, err error) {
	ctx, span := s.startSpan(ctx, "UpdateStatus",
		attribute.String("profile.id", id.String()),
		attribute.String("profile.status", string(status)))
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if !status.IsDecision() {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be verified or rejected")
	}

	p, err := s.profiles.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, translateStore(err, "update profile status")
	}

	s.logger.InfoContext(ctx, "profile status changed",
		"request_id", requestcontext.RequestID(ctx),
		"profile_id", id,
		"actor_id", actor.ID,
		"status", status,
	)
	ev := audit.NewEvent(audit.EventProfileStatusChanged, actor.ID, id.String())
	ev.Decision = string(status)
	s.emit(ctx, ev)
	s.metrics.IncrementDecision(string(status))
	return p, nil
}

// Delete removes a record in any state.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id domain.ProfileID) (err error) {
	ctx, span := s.startSpan(ctx, "Delete", attribute.String("profile.id", id.String()))
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, id); err != nil {
		return translateStore(err, "delete profile")
	}

	s.logger.InfoContext(ctx, "profile deleted",
		"request_id", requestcontext.RequestID(ctx),
		"profile_id", id,
		"actor_id", actor.ID,
	)
	s.emit(ctx, audit.NewEvent(audit.EventProfileDeleted, actor.ID, id.String()))
	return nil
}

// Reanalyze refreshes the analysis-derived fields of a record. Status is untouched.
// The analyzer runs before the row is locked, so a slow upstream never holds a lock.
func (s *Service) Reanalyze(ctx context.Context, actor domain.Actor, id domain.ProfileID) (_ *models.Profile, err error) {
	ctx, span := s.startSpan(ctx, "Reanalyze", attribute.String("profile.id", id.String()))
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	current, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		return nil, translateStore(err, "load profile")
	}
	u, err := urlcheck.Validate(current.SourceURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored profile url no longer validates")
	}
	a, err := s.analyze(ctx, u)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := s.profiles.Execute(ctx, id,
		func(*models.Profile) error { return nil },
		func(p *models.Profile) { p.ApplyAnalysis(*a, now) },
	)
	if err != nil {
		return nil, translateStore(err, "store analysis")
	}

	ev := audit.NewEvent(audit.EventProfileReanalyzed, actor.ID, id.String())
	ev.Reason = "manual"
	s.emit(ctx, ev)
	return p, nil
}

// SetActiveOnSource records whether the profile still exists on the source site.
func (s *Service) SetActiveOnSource(ctx context.Context, actor domain.Actor, id domain.ProfileID, active bool) (_ *models.Profile, err error) {
	ctx, span := s.startSpan(ctx, "SetActiveOnSource",
		attribute.String("profile.id", id.String()),
		attribute.Bool("profile.active", active))
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	changed := false
	p, err := s.profiles.Execute(ctx, id,
		func(*models.Profile) error { return nil },
		func(p *models.Profile) {
			changed = p.IsActiveOnSource != active
			p.IsActiveOnSource = active
		},
	)
	if err != nil {
		return nil, translateStore(err, "update profile liveness")
	}

	if changed {
		ev := audit.NewEvent(audit.EventProfileLivenessChanged, actor.ID, id.String())
		if active {
			ev.Decision = "active"
		} else {
			ev.Decision = "deactivated"
		}
		s.emit(ctx, ev)
	}
	return p, nil
}

// ListAll returns every record, newest first.
func (s *Service) ListAll(ctx context.Context, actor domain.Actor) ([]*models.Profile, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.ListAll(ctx)
	if err != nil {
		return nil, translateStore(err, "list profiles")
	}
	return profiles, nil
}

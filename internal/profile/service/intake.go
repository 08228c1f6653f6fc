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

// Validate checks a candidate profile reference. Any actor may call it.
func (s *Service) Validate(raw string) (urlcheck.URL, error) {
	u, err := urlcheck.Validate(raw)
	if err != nil {
		return urlcheck.URL{}, translateValidation(err)
	}
	return u, nil
}

// Analyze validates raw and runs it through the analyzer without persisting anything.
func (s *Service) Analyze(ctx context.Context, actor domain.Actor, raw string) (_ *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "Analyze")
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	u, err := s.Validate(raw)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, u)
}

func (s *Service) analyze(ctx context.Context, u urlcheck.URL) (*models.Analysis, error) {
	a, err := s.analyzer.Analyze(ctx, u)
	if err != nil {
		s.logger.WarnContext(ctx, "profile analysis failed",
			"request_id", requestcontext.RequestID(ctx),
			"profile_kind", u.Kind(),
			"error", err,
		)
		return nil, translateAnalyzer(err)
	}
	a.RiskScore = models.ClampRiskScore(float64(a.RiskScore))
	return a, nil
}

// Save stages an analyzed profile as pending. raw is re-validated and the
// score clamped regardless of what the caller supplies.
func (s *Service) Save(ctx context.Context, actor domain.Actor, raw string, a models.Analysis) (_ *models.Profile, err error) {
	ctx, span := s.startSpan(ctx, "Save")
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	u, err := s.Validate(raw)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, actor, u, a)
}

// Submit validates, analyzes and saves in one call.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, raw string) (_ *models.Profile, err error) {
	ctx, span := s.startSpan(ctx, "Submit")
	defer func() { endSpan(span, err) }()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	u, err := s.Validate(raw)
	if err != nil {
		return nil, err
	}
	a, err := s.analyze(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, actor, u, *a)
}

func (s *Service) save(ctx context.Context, actor domain.Actor, u urlcheck.URL, a models.Analysis) (*models.Profile, error) {
	p, err := models.NewPendingProfile(domain.NewProfileID(), u.String(), a, actor.ID, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		translated := translateStore(err, "save profile")
		if dErrors.HasCode(translated, dErrors.CodeConflict) {
			s.metrics.IncrementDuplicate()
		}
		return nil, translated
	}

	s.logger.InfoContext(ctx, "profile staged for review",
		"request_id", requestcontext.RequestID(ctx),
		"profile_id", p.ID,
		"actor_id", actor.ID,
		"risk_score", p.RiskScore,
	)
	ev := audit.NewEvent(audit.EventProfileCreated, actor.ID, p.ID.String())
	ev.Decision = string(p.Status)
	s.emit(ctx, ev)
	s.metrics.IncrementProfileCreated()
	return p, nil
}

// Report adds a corroborating report to an existing record. Only admins
// create records, so an unknown url is not found.
func (s *Service) Report(ctx context.Context, actor domain.Actor, raw string) (_ *models.Profile, err error) {
	ctx, span := s.startSpan(ctx, "Report")
	defer func() { endSpan(span, err) }()

	if err := actor.RequireSignedIn(); err != nil {
		return nil, err
	}
	u, err := s.Validate(raw)
	if err != nil {
		return nil, err
	}

	p, err := s.profiles.IncrementReports(ctx, u.String())
	if err != nil {
		return nil, translateStore(err, "record report")
	}
	span.SetAttributes(attribute.Int("profile.report_count", p.ReportCount))

	ev := audit.NewEvent(audit.EventProfileReported, actor.ID, p.ID.String())
	ev.UserID = actor.ID
	s.emit(ctx, ev)
	s.metrics.IncrementReport()
	return p, nil
}

// Package service implements the profile moderation workflow: validate a
// submitted reference, analyze it, stage it as pending and let admins decide
// whether it is published.
//
// Every gated operation takes the caller's actor explicitly and performs its
// own authorization check. Successful mutations emit an audit event; a failed
// emission is logged and never undoes the mutation.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"badguys/internal/profile/analyzer"
	"badguys/internal/profile/metrics"
	"badguys/internal/profile/models"
	"badguys/internal/profile/urlcheck"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/requestcontext"
)

const (
	DefaultPublicLimit = 5
	MaxPublicLimit     = 50
)

// Store persists profile records.
type Store interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, id domain.ProfileID) (*models.Profile, error)
	FindByURL(ctx context.Context, sourceURL string) (*models.Profile, error)
	UpdateStatus(ctx context.Context, id domain.ProfileID, status models.Status) (*models.Profile, error)
	Execute(ctx context.Context, id domain.ProfileID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error)
	IncrementReports(ctx context.Context, sourceURL string) (*models.Profile, error)
	Delete(ctx context.Context, id domain.ProfileID) error
	ListAll(ctx context.Context) ([]*models.Profile, error)
	ListPublic(ctx context.Context, kind models.PublicListKind, limit int) ([]*models.Profile, error)
	Count(ctx context.Context, f models.Filter) (int, error)
}

// Analyzer scores a validated profile reference.
type Analyzer interface {
	Analyze(ctx context.Context, u urlcheck.URL) (*models.Analysis, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates profile intake and moderation.
type Service struct {
	profiles       Store
	analyzer       Analyzer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. Both collaborators are required.
func New(profiles Store, a Analyzer, opts ...Option) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if a == nil {
		return nil, errors.New("analyzer is required")
	}
	s := &Service{
		profiles: profiles,
		analyzer: a,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("badguys/profile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "profile."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// emit publishes an audit event. Failures are logged only.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}

// translateValidation turns a urlcheck failure into a validation error that
// still exposes the *urlcheck.ValidationError through errors.As.
func translateValidation(err error) error {
	var verr *urlcheck.ValidationError
	if errors.As(err, &verr) {
		return dErrors.Wrap(verr, dErrors.CodeValidation, verr.Message())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid profile url")
}

// translateAnalyzer maps analyzer failures onto client-facing codes.
func translateAnalyzer(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "profile analysis timed out")
	}
	var aerr *analyzer.Error
	if !errors.As(err, &aerr) {
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "profile analysis failed")
	}
	switch aerr.Kind {
	case analyzer.KindRateLimited:
		return dErrors.Wrap(err, dErrors.CodeRateLimited, "analysis rate limit reached, try again later")
	case analyzer.KindQuotaExhausted:
		return dErrors.Wrap(err, dErrors.CodeQuotaExhausted, "analysis credits exhausted")
	case analyzer.KindMalformedResponse:
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "analysis service returned an unusable response")
	default:
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "analysis service unavailable")
	}
}

// translateStore maps sentinel store errors onto domain errors.
func translateStore(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "profile already reported")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}

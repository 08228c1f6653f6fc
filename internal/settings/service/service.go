// Package service lets admins record configuration values such as upstream
// API keys and check whether they are set. Values are write-only over the API.
package service

import (
	"context"
	"errors"
	"log/slog"

	"badguys/internal/settings/models"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/requestcontext"
)

type Store interface {
	Put(ctx context.Context, s *models.Setting) error
	Get(ctx context.Context, key string) (*models.Setting, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Put upserts key. Admin only.
func (s *Service) Put(ctx context.Context, actor domain.Actor, key, value string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	setting, err := models.NewSetting(key, value, actor.ID, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, setting); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save setting")
	}

	// The value is never logged or audited.
	s.logger.InfoContext(ctx, "setting updated",
		"request_id", requestcontext.RequestID(ctx),
		"key", key,
		"actor_id", actor.ID.String(),
	)
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.NewEvent(audit.EventSettingUpdated, actor.ID, key)); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit audit event",
				"request_id", requestcontext.RequestID(ctx),
				"action", string(audit.EventSettingUpdated),
				"error", err,
			)
		}
	}
	return nil
}

// IsConfigured reports whether key holds a value. Admin only.
func (s *Service) IsConfigured(ctx context.Context, actor domain.Actor, key string) (bool, error) {
	if err := actor.RequireAdmin(); err != nil {
		return false, err
	}
	if err := models.ValidateKey(key); err != nil {
		return false, err
	}
	setting, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read setting")
	}
	return setting.Value != "", nil
}

// Value returns the stored value of key, or "" when it is unset. It performs
// no actor check and is meant for server-side consumers only.
func (s *Service) Value(ctx context.Context, key string) (string, error) {
	setting, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read setting")
	}
	return setting.Value, nil
}

// Package service implements account sign-up, sign-in and token revocation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"badguys/internal/auth/models"
	jwttoken "badguys/internal/jwt_token"
	"badguys/pkg/domain"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/tx"
	"badguys/pkg/requestcontext"
)

const DefaultTokenTTL = time.Hour

// AccountStore persists accounts. Emails are passed already normalised.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	Upsert(ctx context.Context, a *models.Account) (*models.Account, error)
	FindByID(ctx context.Context, id domain.UserID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Delete(ctx context.Context, id domain.UserID) error
}

// RevocationList remembers signed-out token ids and deleted subjects until
// the tokens they cover expire.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error
}

// TokenIssuer signs access tokens for an actor.
type TokenIssuer interface {
	GenerateAccessToken(actor domain.Actor, now time.Time, expiresIn time.Duration) (*jwttoken.AccessToken, error)
}

// ReporterDetacher clears an account's authorship from the profiles it reported.
type ReporterDetacher interface {
	DetachReporter(ctx context.Context, userID domain.UserID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service handles the account lifecycle.
type Service struct {
	accounts       AccountStore
	revocations    RevocationList
	tokens         TokenIssuer
	detacher       ReporterDetacher
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	tokenTTL       time.Duration
	bcryptCost     int
	// dummyHash is compared against when the email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
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

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithReporterDetacher wires the profile store so deleted accounts are
// detached from their reports.
func WithReporterDetacher(d ReporterDetacher) Option {
	return func(s *Service) {
		s.detacher = d
	}
}

// WithTxRunner groups account deletion and reporter detachment in one transaction.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(accounts AccountStore, revocations RevocationList, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if revocations == nil {
		return nil, errors.New("revocation list is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{
		accounts:    accounts,
		revocations: revocations,
		tokens:      tokens,
		tx:          tx.NoopRunner{},
		logger:      slog.New(slog.DiscardHandler),
		tokenTTL:    DefaultTokenTTL,
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"error", err,
		)
	}
}

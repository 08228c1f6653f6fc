package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"badguys/internal/auth/models"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/requestcontext"
)

// SignInResult is the issued access token and the actor it represents.
type SignInResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Actor       domain.Actor
}

// SignUp creates a user-role account.
// Errors: CodeValidation for a bad email or password, CodeConflict when the email is taken.
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.Account, error) {
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	account, err := models.NewAccount(domain.NewUserID(), email, string(hash), domain.RoleUser, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.logger.InfoContext(ctx, "account created",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", account.ID.String(),
	)
	event := audit.NewEvent(audit.EventAccountCreated, account.ID, account.ID.String())
	event.UserID = account.ID
	s.emit(ctx, event)
	return account, nil
}

// SignIn checks credentials and issues an access token.
// Errors: CodeUnauthorized for any credential mismatch, without saying which part failed.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = models.NormalizeEmail(email)
	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.signInFailed(ctx, domain.UserID{}, "unknown_email")
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.signInFailed(ctx, account.ID, "wrong_password")
		return nil, invalid
	}

	token, err := s.tokens.GenerateAccessToken(account.Actor(), requestcontext.Now(ctx), s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	event := audit.NewEvent(audit.EventSignedIn, account.ID, account.ID.String())
	event.UserID = account.ID
	s.emit(ctx, event)
	return &SignInResult{AccessToken: token.Token, ExpiresAt: token.ExpiresAt, Actor: account.Actor()}, nil
}

func (s *Service) signInFailed(ctx context.Context, userID domain.UserID, reason string) {
	s.logger.InfoContext(ctx, "sign in failed",
		"request_id", requestcontext.RequestID(ctx),
		"reason", reason,
	)
	event := audit.NewEvent(audit.EventSignInFailed, domain.UserID{}, "")
	event.UserID = userID
	event.Reason = reason
	s.emit(ctx, event)
}

// SignOut revokes the token that authenticated the caller until it would have expired.
func (s *Service) SignOut(ctx context.Context, actor domain.Actor, token requestcontext.Token) error {
	if err := actor.RequireSignedIn(); err != nil {
		return err
	}
	if token.ID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "token id missing")
	}
	ttl := token.ExpiresAt.Sub(requestcontext.Now(ctx))
	if err := s.revocations.Revoke(ctx, token.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	event := audit.NewEvent(audit.EventSignedOut, actor.ID, actor.ID.String())
	event.UserID = actor.ID
	s.emit(ctx, event)
	return nil
}

// SeedAccount creates or resets an account with the given role. It is meant
// for operator tooling and performs no actor check.
func (s *Service) SeedAccount(ctx context.Context, email, password string, role domain.Role) (*models.Account, error) {
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	account, err := models.NewAccount(domain.NewUserID(), email, string(hash), role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	stored, err := s.accounts.Upsert(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed account")
	}
	s.logger.InfoContext(ctx, "account seeded", "user_id", stored.ID.String(), "role", string(stored.Role))
	return stored, nil
}

// DeleteAccount removes an account, detaches it from the profiles it reported
// and revokes every token issued to it.
// Errors: CodeUnauthorized/CodeForbidden for non-admins, CodeValidation when an
// admin targets their own account, CodeNotFound for an unknown id.
func (s *Service) DeleteAccount(ctx context.Context, actor domain.Actor, id domain.UserID) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if id == actor.ID {
		return dErrors.New(dErrors.CodeValidation, "cannot delete your own account")
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.accounts.FindByID(ctx, id); err != nil {
			return err
		}
		if s.detacher != nil {
			if err := s.detacher.DetachReporter(ctx, id); err != nil {
				return err
			}
		}
		if err := s.accounts.Delete(ctx, id); err != nil {
			return err
		}
		return s.revocations.RevokeSubject(ctx, id.String(), s.tokenTTL)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete account")
	}

	s.logger.InfoContext(ctx, "account deleted",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", id.String(),
		"actor_id", actor.ID.String(),
	)
	event := audit.NewEvent(audit.EventAccountDeleted, actor.ID, id.String())
	event.UserID = id
	s.emit(ctx, event)
	return nil
}

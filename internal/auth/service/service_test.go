package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AccountStore,RevocationList,TokenIssuer,ReporterDetacher,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"badguys/internal/auth/models"
	"badguys/internal/auth/service/mocks"
	jwttoken "badguys/internal/jwt_token"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/sentinel"
	"badguys/pkg/requestcontext"
	"badguys/pkg/testutil"
)

type AuthServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	accounts    *mocks.MockAccountStore
	revocations *mocks.MockRevocationList
	tokens      *mocks.MockTokenIssuer
	detacher    *mocks.MockReporterDetacher
	publisher   *mocks.MockAuditPublisher
	service     *Service
	ctx         context.Context
	now         time.Time
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.accounts = mocks.NewMockAccountStore(s.ctrl)
	s.revocations = mocks.NewMockRevocationList(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.detacher = mocks.NewMockReporterDetacher(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)

	var err error
	s.service, err = New(s.accounts, s.revocations, s.tokens,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.publisher),
		WithReporterDetacher(s.detacher),
		WithBcryptCost(bcrypt.MinCost),
		WithTokenTTL(30*time.Minute),
	)
	s.Require().NoError(err)

	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *AuthServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *AuthServiceSuite) expectAudit(action audit.AuditEvent) {
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			s.Equal(string(action), e.Action)
			return nil
		})
}

func (s *AuthServiceSuite) storedAccount(email, password string, role domain.Role) *models.Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	s.Require().NoError(err)
	a, err := models.NewAccount(domain.NewUserID(), email, string(hash), role, s.now)
	s.Require().NoError(err)
	return a
}

func (s *AuthServiceSuite) TestNew() {
	_, err := New(nil, s.revocations, s.tokens)
	s.ErrorContains(err, "account store is required")
	_, err = New(s.accounts, nil, s.tokens)
	s.ErrorContains(err, "revocation list is required")
	_, err = New(s.accounts, s.revocations, nil)
	s.ErrorContains(err, "token issuer is required")
}

func (s *AuthServiceSuite) TestSignUp() {
	s.Run("creates a user with a normalised email and hashed password", func() {
		var created *models.Account
		s.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.Account) error {
				created = a
				return nil
			})
		s.expectAudit(audit.EventAccountCreated)

		a, err := s.service.SignUp(s.ctx, "New.User@Example.com", "long-enough")
		s.Require().NoError(err)
		s.Equal("new.user@example.com", a.Email)
		s.Equal(domain.RoleUser, a.Role)
		s.Equal(s.now, a.CreatedAt)
		s.Same(a, created)
		s.NotEqual("long-enough", a.PasswordHash)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("long-enough")))
	})

	s.Run("short password is rejected before touching the store", func() {
		_, err := s.service.SignUp(s.ctx, "user@example.com", "short")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("taken email is a conflict", func() {
		s.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)
		_, err := s.service.SignUp(s.ctx, "taken@example.com", "long-enough")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("store failure is internal", func() {
		s.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
		_, err := s.service.SignUp(s.ctx, "user@example.com", "long-enough")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *AuthServiceSuite) TestSignIn() {
	account := s.storedAccount("admin@example.com", "correct-password", domain.RoleAdmin)

	s.Run("valid credentials issue a token for the account's actor", func() {
		s.accounts.EXPECT().FindByEmail(gomock.Any(), "admin@example.com").Return(account, nil)
		s.tokens.EXPECT().GenerateAccessToken(account.Actor(), s.now, 30*time.Minute).
			Return(&jwttoken.AccessToken{Token: "signed", ID: "jti", ExpiresAt: s.now.Add(30 * time.Minute)}, nil)
		s.expectAudit(audit.EventSignedIn)

		res, err := s.service.SignIn(s.ctx, " Admin@Example.com ", "correct-password")
		s.Require().NoError(err)
		s.Equal("signed", res.AccessToken)
		s.Equal(domain.RoleAdmin, res.Actor.Role)
		s.Equal(s.now.Add(30*time.Minute), res.ExpiresAt)
	})

	s.Run("wrong password and unknown email look the same", func() {
		s.accounts.EXPECT().FindByEmail(gomock.Any(), "admin@example.com").Return(account, nil)
		s.expectAudit(audit.EventSignInFailed)
		_, wrongPassword := s.service.SignIn(s.ctx, "admin@example.com", "incorrect-password")

		s.accounts.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, sentinel.ErrNotFound)
		s.expectAudit(audit.EventSignInFailed)
		_, unknownEmail := s.service.SignIn(s.ctx, "ghost@example.com", "whatever-password")

		s.True(dErrors.HasCode(wrongPassword, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(unknownEmail, dErrors.CodeUnauthorized))
		s.Equal(dErrors.MessageOf(wrongPassword), dErrors.MessageOf(unknownEmail))
	})

	s.Run("lookup failure is internal", func() {
		s.accounts.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
		_, err := s.service.SignIn(s.ctx, "admin@example.com", "correct-password")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *AuthServiceSuite) TestSignOut() {
	user := testutil.UserActor()
	token := requestcontext.Token{ID: "jti-1", ExpiresAt: s.now.Add(10 * time.Minute)}

	s.Run("revokes the token for its remaining lifetime", func() {
		s.revocations.EXPECT().Revoke(gomock.Any(), "jti-1", 10*time.Minute).Return(nil)
		s.expectAudit(audit.EventSignedOut)
		s.NoError(s.service.SignOut(s.ctx, user, token))
	})

	s.Run("anonymous callers cannot sign out", func() {
		err := s.service.SignOut(s.ctx, domain.Anonymous(), token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("revocation failure is internal", func() {
		s.revocations.EXPECT().Revoke(gomock.Any(), "jti-1", gomock.Any()).Return(errors.New("redis down"))
		err := s.service.SignOut(s.ctx, user, token)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *AuthServiceSuite) TestSeedAccount() {
	s.accounts.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *models.Account) (*models.Account, error) {
			s.Equal("ops@example.com", a.Email)
			s.Equal(domain.RoleAdmin, a.Role)
			return a, nil
		})
	a, err := s.service.SeedAccount(s.ctx, "OPS@example.com", "seed-password", domain.RoleAdmin)
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, a.Role)

	_, err = s.service.SeedAccount(s.ctx, "ops@example.com", "seed-password", domain.RoleAnonymous)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AuthServiceSuite) TestDeleteAccount() {
	admin := testutil.AdminActor()
	target := s.storedAccount("target@example.com", "whatever-password", domain.RoleUser)

	s.Run("admin deletes, detaches reports and revokes the account's tokens", func() {
		gomock.InOrder(
			s.accounts.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil),
			s.detacher.EXPECT().DetachReporter(gomock.Any(), target.ID).Return(nil),
			s.accounts.EXPECT().Delete(gomock.Any(), target.ID).Return(nil),
			s.revocations.EXPECT().RevokeSubject(gomock.Any(), target.ID.String(), 30*time.Minute).Return(nil),
		)
		s.expectAudit(audit.EventAccountDeleted)
		s.NoError(s.service.DeleteAccount(s.ctx, admin, target.ID))
	})

	s.Run("access matrix", func() {
		err := s.service.DeleteAccount(s.ctx, domain.Anonymous(), target.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		err = s.service.DeleteAccount(s.ctx, testutil.UserActor(), target.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admins cannot delete themselves", func() {
		err := s.service.DeleteAccount(s.ctx, admin, admin.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown account", func() {
		s.accounts.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		err := s.service.DeleteAccount(s.ctx, admin, domain.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("revocation failure is internal", func() {
		s.accounts.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil)
		s.detacher.EXPECT().DetachReporter(gomock.Any(), target.ID).Return(nil)
		s.accounts.EXPECT().Delete(gomock.Any(), target.ID).Return(nil)
		s.revocations.EXPECT().RevokeSubject(gomock.Any(), target.ID.String(), gomock.Any()).Return(errors.New("redis down"))
		err := s.service.DeleteAccount(s.ctx, admin, target.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("detach failure aborts the delete", func() {
		s.accounts.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil)
		s.detacher.EXPECT().DetachReporter(gomock.Any(), target.ID).Return(errors.New("db down"))
		err := s.service.DeleteAccount(s.ctx, admin, target.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

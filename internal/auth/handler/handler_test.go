package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"badguys/internal/auth/service"
	"badguys/internal/auth/store/account"
	"badguys/internal/auth/store/revocation"
	jwttoken "badguys/internal/jwt_token"
	"badguys/pkg/domain"
	authmw "badguys/pkg/platform/middleware/auth"
	"badguys/pkg/testutil"
)

// AuthHandlerSuite runs the routes behind the real Authenticate middleware so
// issued tokens are exercised end to end.
type AuthHandlerSuite struct {
	suite.Suite
	router  http.Handler
	service *service.Service
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtService := jwttoken.NewJWTService("test-signing-key", "badguys", "badguys-api")
	revocations := revocation.NewInMemory()

	var err error
	s.service, err = service.New(account.NewInMemory(), revocations, jwtService,
		service.WithLogger(logger),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithTokenTTL(15*time.Minute),
	)
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(authmw.Authenticate(jwttoken.NewJWTServiceAdapter(jwtService), revocations, logger))
	New(s.service, logger).Register(r)
	s.router = r
}

func (s *AuthHandlerSuite) signIn(email, password string) string {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/signin",
		map[string]string{"email": email, "password": password}))
	testutil.AssertStatusOK(s.T(), rr)
	return testutil.UnmarshalResponse[TokenResponse](s.T(), rr).AccessToken
}

func (s *AuthHandlerSuite) TestSignUpSignInSignOut() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/signup",
		map[string]string{"email": "New@Example.com", "password": "long-enough"}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[AccountResponse](s.T(), rr)
	s.Equal("new@example.com", created.Email)
	s.Equal("user", created.Role)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/signin",
		map[string]string{"email": "new@example.com", "password": "long-enough"}))
	testutil.AssertStatusOK(s.T(), rr)
	token := testutil.UnmarshalResponse[TokenResponse](s.T(), rr)
	s.Equal("Bearer", token.TokenType)
	s.Equal(created.ID, token.UserID)
	s.InDelta(15*60, token.ExpiresIn, 2)

	signOut := func() *http.Request {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/auth/signout")
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		return req
	}
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, signOut()), http.StatusNoContent)

	rr = testutil.DoRequest(s.router, signOut())
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *AuthHandlerSuite) TestSignUpErrors() {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"email":`, http.StatusBadRequest, "bad_request"},
		{"empty body", ``, http.StatusBadRequest, "bad_request"},
		{"missing password", `{"email":"a@example.com"}`, http.StatusBadRequest, "validation_error"},
		{"short password", `{"email":"a@example.com","password":"short"}`, http.StatusBadRequest, "validation_error"},
		{"bad email", `{"email":"not-an-email","password":"long-enough"}`, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/signup", tt.body))
			testutil.AssertStatusAndError(s.T(), rr, tt.status, tt.code)
		})
	}

	s.Run("duplicate email", func() {
		body := `{"email":"dup@example.com","password":"long-enough"}`
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router,
			testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/signup", body)), http.StatusCreated)
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/signup",
			`{"email":"DUP@example.com","password":"long-enough"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

func (s *AuthHandlerSuite) TestSignInWrongPassword() {
	_, err := s.service.SignUp(context.Background(), "jane@example.com", "long-enough")
	s.Require().NoError(err)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/signin",
		map[string]string{"email": "jane@example.com", "password": "not-the-password"}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *AuthHandlerSuite) TestSignOutRequiresToken() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/auth/signout"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *AuthHandlerSuite) TestDeleteAccount() {
	ctx := context.Background()
	_, err := s.service.SeedAccount(ctx, "root@example.com", "admin-password", domain.RoleAdmin)
	s.Require().NoError(err)
	target, err := s.service.SignUp(ctx, "target@example.com", "long-enough")
	s.Require().NoError(err)
	adminToken := s.signIn("root@example.com", "admin-password")
	userToken := s.signIn("target@example.com", "long-enough")

	del := func(id, token string) *http.Request {
		req := testutil.NewRequest(s.T(), http.MethodDelete, "/admin/accounts/"+id)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, del(target.ID.String(), "")),
		http.StatusUnauthorized, "unauthorized")
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, del(target.ID.String(), userToken)),
		http.StatusForbidden, "forbidden")
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, del("not-a-uuid", adminToken)),
		http.StatusBadRequest, "invalid_input")

	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, del(target.ID.String(), adminToken)), http.StatusNoContent)
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, del(target.ID.String(), adminToken)),
		http.StatusNotFound, "not_found")

	signOut := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodPost, "/auth/signout"), userToken)
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, signOut), http.StatusUnauthorized, "unauthorized")
}

func (s *AuthHandlerSuite) TestDeletedAdminCannotUseIssuedToken() {
	ctx := context.Background()
	_, err := s.service.SeedAccount(ctx, "root@example.com", "admin-password", domain.RoleAdmin)
	s.Require().NoError(err)
	second, err := s.service.SeedAccount(ctx, "second@example.com", "admin-password", domain.RoleAdmin)
	s.Require().NoError(err)
	bystander, err := s.service.SignUp(ctx, "bystander@example.com", "long-enough")
	s.Require().NoError(err)

	rootToken := s.signIn("root@example.com", "admin-password")
	secondToken := s.signIn("second@example.com", "admin-password")

	rr := testutil.DoRequest(s.router,
		testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/accounts/"+second.ID.String()), rootToken))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router,
		testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/accounts/"+bystander.ID.String()), secondToken))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	_, err = s.service.SignIn(ctx, "bystander@example.com", "long-enough")
	s.NoError(err, "the bystander account survives")
}

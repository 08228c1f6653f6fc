package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badguys/pkg/domain"
	"badguys/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) { return v.claims, v.err }

type stubRevocations struct {
	revoked  map[string]bool
	subjects map[string]bool
	err      error
}

func (c stubRevocations) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return c.revoked[jti], c.err
}

func (c stubRevocations) IsSubjectRevoked(_ context.Context, subject string) (bool, error) {
	return c.subjects[subject], c.err
}

func newAuthHandler(v JWTValidator, c TokenRevocationChecker) (http.Handler, *domain.Actor) {
	seen := &domain.Actor{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := Authenticate(v, c, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, seen
}

func TestAuthenticate(t *testing.T) {
	admin := domain.Actor{ID: domain.NewUserID(), Email: "a@example.com", Role: domain.RoleAdmin}
	valid := stubValidator{claims: &JWTClaims{Actor: admin, JTI: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}}

	t.Run("no header proceeds as anonymous", func(t *testing.T) {
		h, seen := newAuthHandler(valid, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, seen.IsAnonymous())
	})

	t.Run("valid token sets the actor", func(t *testing.T) {
		h, seen := newAuthHandler(valid, stubRevocations{})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, admin, *seen)
	})

	t.Run("non-bearer scheme is rejected", func(t *testing.T) {
		h, _ := newAuthHandler(valid, nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		h, _ := newAuthHandler(stubValidator{err: errors.New("bad signature")}, nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		h, _ := newAuthHandler(valid, stubRevocations{revoked: map[string]bool{"jti-1": true}})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "revoked")
	})

	t.Run("token of a revoked subject is rejected", func(t *testing.T) {
		h, seen := newAuthHandler(valid, stubRevocations{subjects: map[string]bool{admin.ID.String(): true}})
		*seen = domain.Anonymous()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "revoked")
		assert.True(t, seen.IsAnonymous(), "handler must not run")
	})

	t.Run("revocation lookup failure is an internal error", func(t *testing.T) {
		h, _ := newAuthHandler(valid, stubRevocations{err: errors.New("redis down")})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

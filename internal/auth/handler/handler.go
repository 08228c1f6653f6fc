package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"badguys/internal/auth/models"
	"badguys/internal/auth/service"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	"badguys/pkg/platform/httputil"
	"badguys/pkg/requestcontext"
)

// Service defines the account operations used by the handler.
type Service interface {
	SignUp(ctx context.Context, email, password string) (*models.Account, error)
	SignIn(ctx context.Context, email, password string) (*service.SignInResult, error)
	SignOut(ctx context.Context, actor domain.Actor, token requestcontext.Token) error
	DeleteAccount(ctx context.Context, actor domain.Actor, id domain.UserID) error
}

// Handler exposes account routes over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
	// signInGuard wraps the sign-in route, typically with a rate limiter.
	signInGuard func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSignInGuard wraps POST /auth/signin with mw.
func WithSignInGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.signInGuard = mw
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/signup", h.HandleSignUp)
	if h.signInGuard != nil {
		r.With(h.signInGuard).Post("/auth/signin", h.HandleSignIn)
	} else {
		r.Post("/auth/signin", h.HandleSignIn)
	}
	r.Post("/auth/signout", h.HandleSignOut)
	r.Delete("/admin/accounts/{id}", h.HandleDeleteAccount)
}

// HandleSignUp handles POST /auth/signup.
func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CredentialsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	account, err := h.service.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		h.logError(ctx, "failed to sign up", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAccountResponse(account))
}

// HandleSignIn handles POST /auth/signin.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CredentialsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.logError(ctx, "failed to sign in", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTokenResponse(res, requestcontext.Now(ctx)))
}

// HandleSignOut handles POST /auth/signout. The bearer token of the request is revoked.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := requestcontext.BearerToken(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.service.SignOut(ctx, requestcontext.Actor(ctx), token); err != nil {
		h.logError(ctx, "failed to sign out", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAccount handles DELETE /admin/accounts/{id}.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteAccount(ctx, requestcontext.Actor(ctx), id); err != nil {
		h.logError(ctx, "failed to delete account", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.InfoContext(ctx, msg, attrs...)
}

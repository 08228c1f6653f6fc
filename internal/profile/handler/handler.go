package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"badguys/internal/profile/models"
	"badguys/internal/profile/urlcheck"
	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	"badguys/pkg/platform/httputil"
	"badguys/pkg/requestcontext"
)

// Service defines the profile workflow operations used by the handler.
type Service interface {
	Validate(raw string) (urlcheck.URL, error)
	Analyze(ctx context.Context, actor domain.Actor, raw string) (*models.Analysis, error)
	Save(ctx context.Context, actor domain.Actor, raw string, a models.Analysis) (*models.Profile, error)
	Submit(ctx context.Context, actor domain.Actor, raw string) (*models.Profile, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id domain.ProfileID, status models.Status) (*models.Profile, error)
	Delete(ctx context.Context, actor domain.Actor, id domain.ProfileID) error
	Reanalyze(ctx context.Context, actor domain.Actor, id domain.ProfileID) (*models.Profile, error)
	SetActiveOnSource(ctx context.Context, actor domain.Actor, id domain.ProfileID, active bool) (*models.Profile, error)
	ListAll(ctx context.Context, actor domain.Actor) ([]*models.Profile, error)
	ListPublic(ctx context.Context, kind models.PublicListKind, limit int) ([]*models.Profile, error)
	Report(ctx context.Context, actor domain.Actor, raw string) (*models.Profile, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler exposes the profile workflow over HTTP.
type Handler struct {
	service     Service
	logger      *slog.Logger
	reportGuard func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithReportGuard wraps POST /profiles/report with mw.
func WithReportGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.reportGuard = mw
	}
}

// New constructs a profile handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts public and admin profile routes. Authorization is enforced
// by the service from the actor in the request context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/profiles/validate", h.HandleValidate)
	r.Get("/profiles/public", h.HandleListPublic)
	r.Get("/profiles/stats", h.HandleStats)
	if h.reportGuard != nil {
		r.With(h.reportGuard).Post("/profiles/report", h.HandleReport)
	} else {
		r.Post("/profiles/report", h.HandleReport)
	}

	r.Route("/admin/profiles", func(r chi.Router) {
		r.Get("/", h.HandleListAll)
		r.Post("/", h.HandleCreate)
		r.Post("/analyze", h.HandleAnalyze)
		r.Patch("/{id}/status", h.HandleUpdateStatus)
		r.Post("/{id}/reanalyze", h.HandleReanalyze)
		r.Patch("/{id}/active", h.HandleSetActive)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleValidate handles POST /profiles/validate.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[URLRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	u, err := h.service.Validate(req.URL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toValidateResponse(u))
}

// HandleListPublic handles GET /profiles/public?kind=latest|most_reported&limit=N.
func (h *Handler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	kind, err := models.ParsePublicListKind(query.Get("kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
	}

	profiles, err := h.service.ListPublic(ctx, kind, limit)
	if err != nil {
		h.logError(ctx, "failed to list public profiles", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPublicList(kind, profiles))
}

// HandleStats handles GET /profiles/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logError(ctx, "failed to compute profile stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleReport handles POST /profiles/report.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[URLRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.Report(ctx, requestcontext.Actor(ctx), req.URL)
	if err != nil {
		h.logError(ctx, "failed to record report", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ReportResponse{ReportCount: p.ReportCount})
}

// HandleAnalyze handles POST /admin/profiles/analyze. Nothing is persisted.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[URLRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	a, err := h.service.Analyze(ctx, requestcontext.Actor(ctx), req.URL)
	if err != nil {
		h.logError(ctx, "profile analysis failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleCreate handles POST /admin/profiles. A supplied analysis is saved as
// is; otherwise the analyzer runs first.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actor := requestcontext.Actor(ctx)
	var (
		p   *models.Profile
		err error
	)
	if req.Analysis != nil {
		p, err = h.service.Save(ctx, actor, req.URL, *req.Analysis)
	} else {
		p, err = h.service.Submit(ctx, actor, req.URL)
	}
	if err != nil {
		h.logError(ctx, "failed to create profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleListAll handles GET /admin/profiles.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profiles, err := h.service.ListAll(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.logError(ctx, "failed to list profiles", err)
		httputil.WriteError(w, err)
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	httputil.WriteJSON(w, http.StatusOK, &ProfileListResponse{Profiles: profiles})
}

// HandleUpdateStatus handles PATCH /admin/profiles/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.UpdateStatus(ctx, requestcontext.Actor(ctx), id, req.ParsedStatus())
	if err != nil {
		h.logError(ctx, "failed to update profile status", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleReanalyze handles POST /admin/profiles/{id}/reanalyze.
func (h *Handler) HandleReanalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Reanalyze(ctx, requestcontext.Actor(ctx), id)
	if err != nil {
		h.logError(ctx, "failed to reanalyze profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleSetActive handles PATCH /admin/profiles/{id}/active.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetActiveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.SetActiveOnSource(ctx, requestcontext.Actor(ctx), id, *req.Active)
	if err != nil {
		h.logError(ctx, "failed to update profile liveness", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /admin/profiles/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, requestcontext.Actor(ctx), id); err != nil {
		h.logError(ctx, "failed to delete profile", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profileID(w http.ResponseWriter, r *http.Request) (domain.ProfileID, bool) {
	id, err := domain.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ProfileID{}, false
	}
	return id, true
}

// logError picks the level from the error code.
func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelInfo
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal:
		level = slog.LevelError
	case dErrors.CodeBadGateway, dErrors.CodeTimeout, dErrors.CodeRateLimited, dErrors.CodeQuotaExhausted:
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.Actor(ctx).ID,
		"error", err,
	)
}

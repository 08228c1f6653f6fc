package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
	"badguys/pkg/platform/httputil"
	"badguys/pkg/requestcontext"
)

type Service interface {
	Put(ctx context.Context, actor domain.Actor, key, value string) error
	IsConfigured(ctx context.Context, actor domain.Actor, key string) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Put("/admin/settings/{key}", h.HandlePut)
	r.Get("/admin/settings/{key}", h.HandleGet)
}

// PutRequest is the body of PUT /admin/settings/{key}.
type PutRequest struct {
	Value string `json:"value"`
}

func (r *PutRequest) Normalize() {
	r.Value = strings.TrimSpace(r.Value)
}

func (r *PutRequest) Validate() error {
	if r.Value == "" {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	return nil
}

// StatusResponse reports whether a key holds a value, never the value itself.
type StatusResponse struct {
	Key        string `json:"key"`
	Configured bool   `json:"configured"`
}

// HandlePut handles PUT /admin/settings/{key}.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")
	req, ok := httputil.DecodeAndPrepare[PutRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.Put(ctx, requestcontext.Actor(ctx), key, req.Value); err != nil {
		h.logger.InfoContext(ctx, "failed to update setting",
			"request_id", requestcontext.RequestID(ctx),
			"key", key,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Key: key, Configured: true})
}

// HandleGet handles GET /admin/settings/{key}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")
	configured, err := h.service.IsConfigured(ctx, requestcontext.Actor(ctx), key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Key: key, Configured: configured})
}

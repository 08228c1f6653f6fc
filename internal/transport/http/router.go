// Package httptransport assembles the HTTP surface: shared middleware, module
// routes, health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"badguys/internal/platform/metrics"
	"badguys/pkg/platform/httputil"
	authmw "badguys/pkg/platform/middleware/auth"
	"badguys/pkg/platform/middleware/metadata"
	"badguys/pkg/platform/middleware/request"
	"badguys/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies carries everything the router needs. Metrics, Revocations and
// Health are optional.
type Dependencies struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Validator   authmw.JWTValidator
	Revocations authmw.TokenRevocationChecker
	Modules     []Registrar
	Health      map[string]HealthCheck
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires the middleware chain and mounts every module.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.LatencyMiddleware)
	}

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.Authenticate(deps.Validator, deps.Revocations, deps.Logger))
		for _, m := range deps.Modules {
			m.Register(r)
		}
	})
	return r
}

// healthHandler runs all checks concurrently and answers 503 if any fails.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		errs := make(map[string]error, len(checks))
		type outcome struct {
			name string
			err  error
		}
		out := make(chan outcome, len(checks))

		var g errgroup.Group
		for name, check := range checks {
			g.Go(func() error {
				out <- outcome{name: name, err: check(ctx)}
				return nil
			})
		}
		_ = g.Wait()
		close(out)
		for o := range out {
			errs[o.name] = o.err
		}

		status := http.StatusOK
		body := HealthResponse{Status: "ok"}
		for name, err := range errs {
			if err != nil {
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				body.Status = "degraded"
				continue
			}
			results[name] = "ok"
		}
		if len(results) > 0 {
			body.Checks = results
		}
		httputil.WriteJSON(w, status, body)
	}
}

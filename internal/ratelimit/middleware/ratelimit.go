// Package middleware limits abuse-prone routes per client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"badguys/internal/ratelimit/metrics"
	"badguys/internal/ratelimit/models"
	"badguys/internal/ratelimit/store/bucket"
	dErrors "badguys/pkg/domain-errors"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/httputil"
	"badguys/pkg/requestcontext"
)

// BucketStore counts requests per key inside a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Middleware struct {
	buckets  BucketStore
	fallback BucketStore
	breaker  *CircuitBreaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    AuditPublisher
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Middleware) {
		m.audit = p
	}
}

// WithLimit sets the limit for class.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		m.limits[class] = limit
	}
}

// New builds the middleware over buckets. While buckets keeps failing the
// circuit opens and an in-process store takes over.
func New(buckets BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		buckets:  buckets,
		fallback: bucket.New(),
		breaker:  newCircuitBreaker(),
		limits:   make(map[models.EndpointClass]models.Limit),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit rejects requests from a client IP that exceeded the class limit with 429.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, ok := m.limits[class]
			if m.disabled || !ok || limit.RequestsPerWindow <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result, err := m.check(ctx, models.NewIPKey(class, ip), limit)
			if err != nil {
				// Fail open: the fallback store failed too.
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.IncrementRejected(string(class))
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
					"ip", ip,
				)
				m.emit(ctx, class, ip)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	if !m.breaker.IsOpen() {
		result, err := m.buckets.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
		if err == nil {
			m.breaker.RecordSuccess()
			return result, nil
		}
		if m.breaker.RecordFailure() {
			m.metrics.SetDegraded(true)
			m.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
		}
		return m.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	}

	// Try the primary while open so the circuit can close again.
	if _, err := m.buckets.Allow(ctx, key, limit.RequestsPerWindow, limit.Window); err != nil {
		m.breaker.RecordFailure()
	} else if m.breaker.RecordSuccess() {
		m.metrics.SetDegraded(false)
		m.logger.InfoContext(ctx, "rate limit store recovered")
	}
	return m.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
}

func (m *Middleware) emit(ctx context.Context, class models.EndpointClass, ip string) {
	if m.audit == nil {
		return
	}
	event := audit.NewEvent(audit.EventRateLimitExceeded, requestcontext.Actor(ctx).ID, ip)
	event.Reason = string(class)
	if err := m.audit.Emit(ctx, event); err != nil {
		m.logger.ErrorContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"error", err,
		)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

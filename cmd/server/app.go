package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	authhandler "badguys/internal/auth/handler"
	authservice "badguys/internal/auth/service"
	accountstore "badguys/internal/auth/store/account"
	"badguys/internal/auth/store/revocation"
	jwttoken "badguys/internal/jwt_token"
	"badguys/internal/platform/config"
	"badguys/internal/platform/metrics"
	"badguys/internal/platform/postgres"
	platformredis "badguys/internal/platform/redis"
	"badguys/internal/profile/analyzer"
	profilehandler "badguys/internal/profile/handler"
	profilemetrics "badguys/internal/profile/metrics"
	profileservice "badguys/internal/profile/service"
	profilestore "badguys/internal/profile/store/profile"
	ratelimitmetrics "badguys/internal/ratelimit/metrics"
	ratelimit "badguys/internal/ratelimit/middleware"
	ratelimitmodels "badguys/internal/ratelimit/models"
	"badguys/internal/ratelimit/store/bucket"
	settingshandler "badguys/internal/settings/handler"
	settingsmodels "badguys/internal/settings/models"
	settingsservice "badguys/internal/settings/service"
	settingstore "badguys/internal/settings/store/setting"
	httptransport "badguys/internal/transport/http"
	"badguys/pkg/domain"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/audit/publisher"
	kafkastore "badguys/pkg/platform/audit/store/kafka"
	auditmemory "badguys/pkg/platform/audit/store/memory"
	authmw "badguys/pkg/platform/middleware/auth"
	"badguys/pkg/platform/tx"
	"badguys/pkg/requestcontext"
)

const auditBufferSize = 256

// infra holds the backing connections. Nil fields mean the in-memory fallback.
type infra struct {
	db     *sql.DB
	redis  *platformredis.Client
	kafka  *kafkastore.Store
	closed bool
}

// openInfra connects to whatever backends cfg names.
func openInfra(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, postgres.Config{
			URL:          cfg.Database.URL,
			Driver:       cfg.Database.Driver,
			MaxOpenConns: cfg.Database.MaxOpenConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db, logger); err != nil {
				in.Close(logger)
				return nil, err
			}
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.Redis, logger)
	if err != nil {
		in.Close(logger)
		return nil, err
	}
	in.redis = rc

	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafkastore.New(ctx, kafkastore.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.AuditTopic,
		}, logger)
		if err != nil {
			in.Close(logger)
			return nil, err
		}
		in.kafka = ks
	}
	return in, nil
}

// Close releases connections in reverse order of opening.
func (in *infra) Close(logger *slog.Logger) {
	if in == nil || in.closed {
		return
	}
	in.closed = true
	if in.kafka != nil {
		if err := in.kafka.Close(); err != nil {
			logger.Error("close kafka", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			logger.Error("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}
}

func (in *infra) txRunner() tx.Runner {
	if in.db == nil {
		return tx.NoopRunner{}
	}
	return tx.NewSQLRunner(in.db)
}

func (in *infra) health() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["database"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

// app is the fully wired process.
type app struct {
	handler   http.Handler
	auth      *authservice.Service
	publisher *publisher.Publisher
	sweepers  []*bucket.InMemoryBucketStore
}

type revocationStore interface {
	authservice.RevocationList
	authmw.TokenRevocationChecker
}

type profileStore interface {
	profileservice.Store
	authservice.ReporterDetacher
}

// stores picks the Postgres, Redis and Kafka backed implementations when
// connected and in-memory ones otherwise.
type stores struct {
	accounts    authservice.AccountStore
	profiles    profileStore
	settings    settingsservice.Store
	revocations revocationStore
	buckets     ratelimit.BucketStore
	audit       audit.Store
	sweepers    []*bucket.InMemoryBucketStore
}

func (in *infra) stores() stores {
	var st stores
	if in.db != nil {
		st.accounts = accountstore.NewPostgres(in.db)
		st.profiles = profilestore.NewPostgres(in.db)
		st.settings = settingstore.NewPostgres(in.db)
	} else {
		st.accounts = accountstore.NewInMemory()
		st.profiles = profilestore.NewInMemory()
		st.settings = settingstore.NewInMemory()
	}

	if in.redis != nil {
		st.revocations = revocation.NewRedis(in.redis.Client)
		st.buckets = bucket.NewRedis(in.redis.Client)
	} else {
		st.revocations = revocation.NewInMemory()
		mem := bucket.New()
		st.buckets = mem
		st.sweepers = append(st.sweepers, mem)
	}

	if in.kafka != nil {
		st.audit = in.kafka
	} else {
		st.audit = auditmemory.NewInMemoryStore()
	}
	return st
}

func newPublisher(st stores, logger *slog.Logger) *publisher.Publisher {
	return publisher.NewPublisher(st.audit,
		publisher.WithLogger(logger),
		publisher.WithAsyncBuffer(auditBufferSize),
	)
}

func newAuthService(cfg config.Config, in *infra, st stores, jwtService *jwttoken.JWTService, pub *publisher.Publisher, logger *slog.Logger) (*authservice.Service, error) {
	svc, err := authservice.New(st.accounts, st.revocations, jwtService,
		authservice.WithLogger(logger),
		authservice.WithAuditPublisher(pub),
		authservice.WithTokenTTL(cfg.Auth.TokenTTL),
		authservice.WithReporterDetacher(st.profiles),
		authservice.WithTxRunner(in.txRunner()),
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return svc, nil
}

// newApp builds every service and handler on top of in.
func newApp(cfg config.Config, in *infra, logger *slog.Logger) (*app, error) {
	st := in.stores()
	pub := newPublisher(st, logger)
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	authSvc, err := newAuthService(cfg, in, st, jwtService, pub, logger)
	if err != nil {
		return nil, err
	}

	settingsSvc, err := settingsservice.New(st.settings,
		settingsservice.WithLogger(logger),
		settingsservice.WithAuditPublisher(pub),
	)
	if err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}

	analyzerOpts := []analyzer.Option{
		analyzer.WithKeyFunc(func(ctx context.Context) (string, error) {
			return settingsSvc.Value(ctx, settingsmodels.KeyAnalyzerAPIKey)
		}),
		analyzer.WithModel(cfg.Analyzer.Model),
		analyzer.WithHTTPClient(&http.Client{Timeout: cfg.Analyzer.Timeout}),
		analyzer.WithLogger(logger),
	}
	pm := profilemetrics.New()
	analyzerOpts = append(analyzerOpts, analyzer.WithRecorder(pm))
	if cfg.Analyzer.Endpoint != "" {
		analyzerOpts = append(analyzerOpts, analyzer.WithEndpoint(cfg.Analyzer.Endpoint))
	}
	if cfg.Analyzer.APIKey == "" {
		logger.Warn("ANALYZER_API_KEY not set, analysis needs the analyzer_api_key setting")
	}

	profileSvc, err := profileservice.New(st.profiles, analyzer.New(cfg.Analyzer.APIKey, analyzerOpts...),
		profileservice.WithLogger(logger),
		profileservice.WithAuditPublisher(pub),
		profileservice.WithMetrics(pm),
	)
	if err != nil {
		return nil, fmt.Errorf("profile service: %w", err)
	}

	limiter := ratelimit.New(st.buckets, logger,
		ratelimit.WithMetrics(ratelimitmetrics.New()),
		ratelimit.WithAuditPublisher(pub),
		ratelimit.WithLimit(ratelimitmodels.ClassAuth, ratelimitmodels.Limit{
			RequestsPerWindow: cfg.RateLimit.SignInPerMinute, Window: time.Minute,
		}),
		ratelimit.WithLimit(ratelimitmodels.ClassReport, ratelimitmodels.Limit{
			RequestsPerWindow: cfg.RateLimit.ReportPerMinute, Window: time.Minute,
		}),
	)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:      logger,
		Metrics:     metrics.New(),
		Validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		Revocations: st.revocations,
		Modules: []httptransport.Registrar{
			authhandler.New(authSvc, logger, authhandler.WithSignInGuard(limiter.RateLimit(ratelimitmodels.ClassAuth))),
			profilehandler.New(profileSvc, logger, profilehandler.WithReportGuard(limiter.RateLimit(ratelimitmodels.ClassReport))),
			settingshandler.New(settingsSvc, logger),
		},
		Health: in.health(),
	})

	return &app{handler: router, auth: authSvc, publisher: pub, sweepers: st.sweepers}, nil
}

// bootstrapAdmin upserts the configured admin so a fresh deployment can sign in.
func (a *app) bootstrapAdmin(ctx context.Context, cfg config.Auth, logger *slog.Logger) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	ctx = requestcontext.WithTime(ctx, time.Now())
	account, err := a.auth.SeedAccount(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.InfoContext(ctx, "bootstrap admin ready", "user_id", account.ID)
	return nil
}

// sweep prunes idle in-memory rate limit buckets until ctx is done.
func (a *app) sweep(ctx context.Context, every time.Duration) {
	if len(a.sweepers) == 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range a.sweepers {
				s.Sweep()
			}
		}
	}
}

// Close drains queued audit events. No request may emit afterwards.
func (a *app) Close() error {
	if err := a.publisher.Close(); err != nil {
		return fmt.Errorf("close audit publisher: %w", err)
	}
	return nil
}

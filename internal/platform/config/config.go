// Package config loads process configuration from the environment once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the complete process configuration.
type Config struct {
	Server    Server
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Analyzer  Analyzer
	Auth      Auth
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	ShutdownTimeout time.Duration
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Database selects the persistence backend. An empty URL means in-memory stores.
type Database struct {
	URL          string
	Driver       string
	MaxOpenConns int
	AutoMigrate  bool
}

// RedisConfig configures the optional revocation list and rate limiter backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the optional audit sink. No brokers means in-memory audit.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// Analyzer configures the upstream chat-completion service.
type Analyzer struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Auth configures token issuance. When both bootstrap fields are set, serve
// upserts that admin account at startup.
type Auth struct {
	JWTSigningKey          string
	JWTIssuer              string
	JWTAudience            string
	TokenTTL               time.Duration
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// RateLimit bounds abuse-prone public endpoints per client IP.
type RateLimit struct {
	SignInPerMinute int
	ReportPerMinute int
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive duration", key))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s must be a non-negative integer", key))
			return def
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:            getenv("BADGUYS_ADDR", ":8080"),
			Environment:     getenv("APP_ENV", "development"),
			ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       getenv("DATABASE_DRIVER", "postgres"),
			MaxOpenConns: integer("DB_MAX_OPEN_CONNS", 10),
			AutoMigrate:  os.Getenv("AUTO_MIGRATE") == "true",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getenv("KAFKA_AUDIT_TOPIC", "badguys.audit"),
		},
		Analyzer: Analyzer{
			Endpoint: os.Getenv("ANALYZER_ENDPOINT"),
			APIKey:   os.Getenv("ANALYZER_API_KEY"),
			Model:    os.Getenv("ANALYZER_MODEL"),
			Timeout:  duration("ANALYZER_TIMEOUT", 60*time.Second),
		},
		Auth: Auth{
			JWTSigningKey: getenv("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     getenv("JWT_ISSUER", "badguys"),
			JWTAudience:   getenv("JWT_AUDIENCE", "badguys-api"),
			TokenTTL:      duration("JWT_TTL", time.Hour),

			BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		RateLimit: RateLimit{
			SignInPerMinute: integer("RATE_LIMIT_SIGNIN_PER_MINUTE", 10),
			ReportPerMinute: integer("RATE_LIMIT_REPORT_PER_MINUTE", 30),
		},
	}

	switch cfg.Database.Driver {
	case "postgres", "pgx":
	default:
		errs = append(errs, "DATABASE_DRIVER must be postgres or pgx")
	}
	if cfg.Server.IsProduction() && cfg.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, "JWT_SIGNING_KEY must be set in production")
	}

	if (cfg.Auth.BootstrapAdminEmail == "") != (cfg.Auth.BootstrapAdminPassword == "") {
		errs = append(errs, "BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

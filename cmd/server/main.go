package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	jwttoken "badguys/internal/jwt_token"
	"badguys/internal/platform/config"
	"badguys/internal/platform/httpserver"
	"badguys/internal/platform/logger"
	"badguys/internal/platform/postgres"
	"badguys/pkg/domain"
	"badguys/pkg/requestcontext"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

const sweepInterval = time.Minute

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// seedFlags holds the parsed flags for the seed command.
type seedFlags struct {
	email    string
	password string
	role     string
}

func main() {
	root := newRootCommand(os.Stdout)
	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "badguys",
		Short:         "Profile intake and moderation service",
		Long:          "badguys stages reported recruiter profiles for admin review and publishes the verified ones.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout())
		},
	})

	var flags seedFlags
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update an account, typically the first admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	f := seedCmd.Flags()
	f.StringVar(&flags.email, "email", "", "Account email (required)")
	f.StringVar(&flags.password, "password", "", "Account password; falls back to SEED_PASSWORD")
	f.StringVar(&flags.role, "role", string(domain.RoleAdmin), "Account role: admin or user")
	_ = seedCmd.MarkFlagRequired("email")
	root.AddCommand(seedCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, codeError(2, "%s", err)
	}
	return cfg, logger.New(cfg.Server.Environment), nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open infrastructure: %w", err)
	}
	defer in.Close(log)

	a, err := newApp(cfg, in, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()
	if err := a.bootstrapAdmin(ctx, cfg.Auth, log); err != nil {
		return err
	}
	go a.sweep(ctx, sweepInterval)

	log.Info("starting badguys",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"version", version,
		"postgres", in.db != nil,
		"redis", in.redis != nil,
		"kafka", in.kafka != nil,
	)
	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, a.handler), cfg.Server.ShutdownTimeout, log)
}

func runMigrate(ctx context.Context, out io.Writer) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return codeError(2, "DATABASE_URL is required for migrate")
	}
	cfg.Database.AutoMigrate = true

	in, err := openInfra(ctx, config.Config{Database: cfg.Database}, log)
	if err != nil {
		return err
	}
	defer in.Close(log)

	v, err := postgres.Version(ctx, in.db)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema at version %d\n", v)
	return nil
}

func runSeed(ctx context.Context, out io.Writer, flags seedFlags) error {
	password := flags.password
	if password == "" {
		password = os.Getenv("SEED_PASSWORD")
	}
	if password == "" {
		return codeError(2, "a password is required via --password or SEED_PASSWORD")
	}
	role, err := domain.ParseRole(strings.ToLower(strings.TrimSpace(flags.role)))
	if err != nil {
		return codeError(2, "invalid --role %q", flags.role)
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return codeError(2, "DATABASE_URL is required for seed")
	}
	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close(log)

	st := in.stores()
	pub := newPublisher(st, log)
	defer func() { _ = pub.Close() }()
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	authSvc, err := newAuthService(cfg, in, st, jwtService, pub, log)
	if err != nil {
		return err
	}

	ctx = requestcontext.WithTime(ctx, time.Now())
	account, err := authSvc.SeedAccount(ctx, flags.email, password, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %s account %s (%s)\n", account.Role, account.Email, account.ID)
	return nil
}

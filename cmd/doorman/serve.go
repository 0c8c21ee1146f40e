// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/doorman-auth/doorman/internal/access"
	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/auth/postgres"
	"github.com/doorman-auth/doorman/internal/config"
	"github.com/doorman-auth/doorman/internal/email"
	"github.com/doorman-auth/doorman/internal/observability"
	"github.com/doorman-auth/doorman/internal/store"
	"github.com/doorman-auth/doorman/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// Connect opens the database pool. Default: store.Connect
	Connect func(ctx context.Context, databaseURL string, opts store.PoolOptions) (*pgxpool.Pool, error)
	// Migrate applies pending migrations. Default: migrateUp
	Migrate func(databaseURL string) error
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the Doorman HTTP API, the metrics and health listener and the
expired-session sweeper until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd, nil)
		},
	}

	flags := cmd.Flags()
	flags.String("env", "", "environment (development or production)")
	flags.String("addr", "", "HTTP listen address")
	flags.String("public-url", "", "origin used in emailed links")
	flags.Bool("auto-migrate", false, "apply pending migrations before serving")
	flags.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// services are the auth components built on one database.
type services struct {
	authn    *auth.Authenticator
	accounts *auth.AccountService
	sessions *auth.SessionAuthority
	tokens   *auth.TokenService
	sweeper  *auth.SessionSweeper
}

// buildServices wires the auth services onto db.
func buildServices(db postgres.DB, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*services, error) {
	users := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	hasher := auth.NewScryptHasher()

	tokens, err := auth.NewTokenService(
		postgres.NewMagicLinkRepository(db),
		postgres.NewPasswordResetRepository(db),
		users,
	)
	if err != nil {
		return nil, err
	}
	authn, err := auth.NewAuthenticator(users, hasher, tokens)
	if err != nil {
		return nil, err
	}
	accounts, err := auth.NewAccountService(users, hasher, tokens, postgres.NewTransactor(db))
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionAuthority(sessionRepo, users, auth.WithSessionTTL(cfg.Session.TTL))
	if err != nil {
		return nil, err
	}
	sweeper := auth.NewSessionSweeper(sessionRepo, cfg.Session.SweepInterval, logger, metrics.Swept)

	return &services{
		authn:    authn,
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		sweeper:  sweeper,
	}, nil
}

// newSender selects the mail provider named by cfg.
func newSender(cfg config.EmailConfig, logger *slog.Logger) (email.Sender, error) {
	switch cfg.Provider {
	case config.EmailProviderLog:
		return email.NewLogSender(logger), nil
	case config.EmailProviderPostmark:
		return email.NewPostmarkClient(cfg.PostmarkToken, cfg.From, email.WithBaseURL(cfg.PostmarkURL))
	default:
		return nil, oops.Code("CONFIG_INVALID").With("provider", cfg.Provider).Errorf("unknown email provider %q", cfg.Provider)
	}
}

// runServeWithDeps runs the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.Connect == nil {
		deps.Connect = store.Connect
	}
	if deps.Migrate == nil {
		deps.Migrate = migrateUp
	}

	cfg, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cmd, cfg); err != nil {
		return err
	}
	logger := slog.Default()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "starting doorman",
		"env", cfg.Env,
		"addr", cfg.HTTP.Addr,
		"email_provider", cfg.Email.Provider,
	)

	if cfg.Database.AutoMigrate {
		if err := deps.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		logger.InfoContext(ctx, "migrations applied")
	}

	pool, err := deps.Connect(ctx, cfg.Database.URL, store.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		Attempts: cfg.Database.ConnectAttempts,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.InfoContext(ctx, "connected to database")

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	svc, err := buildServices(pool, cfg, metrics, logger)
	if err != nil {
		return err
	}
	sender, err := newSender(cfg.Email, logger)
	if err != nil {
		return err
	}

	srv, err := web.New(web.Deps{
		Authenticator: svc.authn,
		Accounts:      svc.accounts,
		Sessions:      svc.sessions,
		Tokens:        svc.tokens,
		Mailer:        sender,
		Policy:        access.DefaultPolicy(),
		Metrics:       metrics,
		Logger:        logger,
	}, web.Options{
		CookieName:        cfg.Session.CookieName,
		SecureCookie:      cfg.IsProduction(),
		PublicURL:         cfg.HTTP.PublicURL,
		VerifyPath:        cfg.HTTP.VerifyPath,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	})
	if err != nil {
		return err
	}

	var obsServer *observability.Server
	var obsErrs <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, registry, pool.Ping, logger)
		obsErrs, err = obsServer.Start()
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		svc.sweeper.Run(sweepCtx)
	}()

	httpErrs := make(chan error, 1)
	go func() {
		httpErrs <- srv.Start(cfg.HTTP.Addr)
	}()

	cmd.Println("Doorman listening on " + cfg.HTTP.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-httpErrs:
		runErr = err
	case err := <-obsErrs:
		runErr = oops.Code("OBSERVABILITY_FAILED").Wrap(err)
	}

	logger.Info("shutting down")
	stopSweep()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return 10 * time.Second
}

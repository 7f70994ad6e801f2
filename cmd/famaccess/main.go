package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fam-platform/fam-access/internal/app"
	"github.com/fam-platform/fam-access/internal/apps"
	"github.com/fam-platform/fam-access/internal/audit"
	"github.com/fam-platform/fam-access/internal/grants"
	"github.com/fam-platform/fam-access/internal/guard"
	"github.com/fam-platform/fam-access/internal/observability"
	"github.com/fam-platform/fam-access/internal/platform/cache"
	"github.com/fam-platform/fam-access/internal/platform/db"
	"github.com/fam-platform/fam-access/internal/roles"
	"github.com/fam-platform/fam-access/internal/scopes"
	"github.com/fam-platform/fam-access/internal/token"
	"github.com/fam-platform/fam-access/internal/users"
	"github.com/fam-platform/fam-access/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	verifier, err := token.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	directory := scopes.NewHTTPDirectory(cfg.DirectoryURL, cfg.DirectoryTimeout)
	registry := scopes.NewRegistry(pool, redisClient, cfg.ScopeNameTTL, logger)
	enricher := scopes.NewEnricher(directory, registry, logger)

	usersRepo := users.NewRepository(pool)
	appsRepo := apps.NewRepository(pool)
	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, registry)
	recorder := audit.NewRecorder(pool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewGrantNotifier(jobsClient, logger)

	grantsRepo := grants.NewRepository(pool)
	grantsService := grants.NewService(grantsRepo, usersRepo, rolesRepo, appsRepo,
		rolesService, notifier, recorder, metrics, cfg.BootstrapApp, logger)
	aggregator := grants.NewAggregator(grantsRepo, appsRepo, rolesRepo, cfg.BootstrapApp)
	grantsHandler := grants.NewHandler(logger, grantsService, aggregator, enricher)

	authenticator := &guard.Authenticator{Verifier: verifier, Logger: logger}
	jobsHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Authenticator: authenticator,
		GrantsHandler: grantsHandler,
		JobsHandler:   jobsHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

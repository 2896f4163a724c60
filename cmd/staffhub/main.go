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

	"github.com/staffhub/staffhub/internal/app"
	"github.com/staffhub/staffhub/internal/audit"
	audithttp "github.com/staffhub/staffhub/internal/audit/http"
	"github.com/staffhub/staffhub/internal/auth"
	"github.com/staffhub/staffhub/internal/auth/password"
	"github.com/staffhub/staffhub/internal/employees"
	"github.com/staffhub/staffhub/internal/observability"
	"github.com/staffhub/staffhub/internal/platform/cache"
	"github.com/staffhub/staffhub/internal/platform/db"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/users"
	"github.com/staffhub/staffhub/internal/view"
	"github.com/staffhub/staffhub/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.Database("web"))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "staffhub_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	guard := app.NewGuard(logger, templates, csrfManager, metrics)
	auditLogger := shared.NewAuditLogger(dbpool)
	hasher := password.NewBcrypt(cfg.BcryptCost)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, hasher, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, guard)

	authService := auth.NewService(usersRepo, auth.NewRepository(dbpool), hasher, sessionManager, csrfManager, logger)
	authHandler := auth.NewHandler(logger, authService, templates, csrfManager, metrics, cfg.LoginRateLimit)

	employeesService := employees.NewService(employees.NewRepository(dbpool), auditLogger, logger)
	employeesHandler := employees.NewHandler(logger, employeesService, templates, csrfManager, guard)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audithttp.NewHandler(logger, auditService, templates, csrfManager, guard)

	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobsClient := jobs.NewClient(cfg.Redis().AsynqOpt())
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthService:      authService,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		EmployeesHandler: employeesHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobs.NewHandler(inspector, jobsClient, logger),
		Guard:            guard,
		Metrics:          metrics,
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

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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/akada-sms/akada/internal/app"
	"github.com/akada-sms/akada/internal/attendance"
	"github.com/akada-sms/akada/internal/auth"
	"github.com/akada-sms/akada/internal/billing"
	"github.com/akada-sms/akada/internal/observability"
	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/schools"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/staff"
	"github.com/akada-sms/akada/internal/students"
	"github.com/akada-sms/akada/internal/users"
	"github.com/akada-sms/akada/internal/view"
	"github.com/akada-sms/akada/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "akada_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, auditLogger, logger)

	schoolsRepo := schools.NewRepository(dbpool)
	schoolsService := schools.NewService(logger, schoolsRepo, rbacService, dbpool)

	resolver := rbac.NewResolver(rbacRepo, schoolsService, logger)
	evaluator := rbac.NewEvaluator(resolver, logger)
	guard := rbac.NewGuard(resolver, usersService, logger)

	metrics := observability.NewMetrics()
	guard.SetDenyObserver(func(kind rbac.DenyKind) {
		metrics.ObserveAccessDenied(string(kind))
	})

	rolesHandler := rbac.NewHandler(logger, rbacService, evaluator, templates, csrfManager)
	schoolsHandler := schools.NewHandler(logger, schoolsService, usersService, resolver, templates, csrfManager)

	studentsRepo := students.NewRepository(dbpool)
	studentsService := students.NewService(logger, studentsRepo)
	studentsHandler := students.NewHandler(logger, studentsService, templates, csrfManager)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	staffRepo := staff.NewRepository(dbpool)
	staffService := staff.NewService(logger, staffRepo, rbacService, jobClient, cfg.BaseURL)
	staffHandler := staff.NewHandler(logger, staffService, rbacService, templates, csrfManager)

	attendanceRepo := attendance.NewRepository(dbpool)
	attendanceService := attendance.NewService(logger, attendanceRepo, studentsService)
	attendanceHandler := attendance.NewHandler(logger, attendanceService, studentsService, templates, csrfManager)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(logger, billingRepo, studentsService)
	billingHandler := billing.NewHandler(logger, billingService, templates, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		Guard:               guard,
		Evaluator:           evaluator,
		AuthHandler:         authHandler,
		SchoolsHandler:      schoolsHandler,
		RolesHandler:        rolesHandler,
		StudentsHandler:     studentsHandler,
		StaffHandler:        staffHandler,
		AttendanceHandler:   attendanceHandler,
		BillingHandler:      billingHandler,
		JobHandler:          jobHandler,
		SubdomainMiddleware: schools.SubdomainMiddleware(schoolsService, cfg.BaseDomain, logger),
		Metrics:             metrics,
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

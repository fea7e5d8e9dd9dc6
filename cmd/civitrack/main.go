package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civitrack/civitrack/internal/app"
	"github.com/civitrack/civitrack/internal/auth"
	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/internal/budget/export"
	budgethttp "github.com/civitrack/civitrack/internal/budget/http"
	"github.com/civitrack/civitrack/internal/observability"
	"github.com/civitrack/civitrack/internal/platform/cache"
	"github.com/civitrack/civitrack/internal/platform/db"
	"github.com/civitrack/civitrack/internal/shared"
	"github.com/civitrack/civitrack/internal/view"
	"github.com/civitrack/civitrack/jobs"
	"github.com/civitrack/civitrack/report"
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngineWithMoney(view.NewMoneyFormatter(cfg.ReportLocale, cfg.CurrencySymbol))
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	budgetService := budget.NewService(budget.NewRepository(pool))

	reportClient := report.NewClient(cfg.GotenbergURL)
	pdfExporter, err := export.NewPDFExporter(reportClient, templates.Money())
	if err != nil {
		logger.Error("init pdf exporter", slog.Any("error", err))
		os.Exit(1)
	}
	budgetHandler := budgethttp.NewHandler(logger, budgetService, templates, csrfManager, pdfExporter)
	reportHandler := report.NewHandler(reportClient, logger)

	inspector := asynq.NewInspector(cache.QueueOpt(redisClient))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		BudgetHandler:  budgetHandler,
		ReportHandler:  reportHandler,
		JobHandler:     jobHandler,
		Metrics:        observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

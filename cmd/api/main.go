package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/background"
	"github.com/Shatzii/sentinel/internal/config"
	"github.com/Shatzii/sentinel/internal/database"
	"github.com/Shatzii/sentinel/internal/events"
	"github.com/Shatzii/sentinel/internal/handlers"
	middlewareCustom "github.com/Shatzii/sentinel/internal/middleware"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/repositories"
	"github.com/Shatzii/sentinel/internal/routes"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/internal/store"
	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Load configuration first so the log level can honor it
	cfg, err := config.Load()
	if err != nil {
		bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		bootstrap.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Optional Postgres audit sink
	var db *database.DB
	var auditRepo services.AuditEventRepository
	var auditStore handlers.AuditStore
	var auditCleaner background.AuditCleaner
	var dbHealth handlers.HealthChecker
	if cfg.AuditPersistenceEnabled() {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		repo := repositories.NewAuditEventRepository(db)
		auditRepo = repo
		auditStore = repo
		auditCleaner = repo
		dbHealth = db
	}

	// Optional Kafka alert bus
	var publisher services.AlertPublisher
	if cfg.AlertEventsEnabled() {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		logger.Info("alert events enabled",
			slog.String("topic", cfg.Kafka.Topic),
			slog.Int("brokers", len(cfg.Kafka.Brokers)))
	}

	// Optional Redis shared window
	var sharedWindow *store.RedisWindow
	var redisHealth handlers.Pinger
	if cfg.SharedWindowEnabled() {
		sharedWindow = store.NewRedisWindow(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer sharedWindow.Close()
		redisHealth = sharedWindow
		logger.Info("shared rate window enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// Limit tables, hot-reloaded while the engine runs
	limits := config.NewLimitsProvider()
	if cfg.Admission.LimitsFile != "" {
		limits, err = config.LoadLimitsFile(cfg.Admission.LimitsFile)
		if err != nil {
			logger.Error("failed to load limit tables", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Core engine
	streamHub := handlers.NewStreamHub(logger)
	alertService := services.NewAlertService(logger, publisher, streamHub)
	auditService := services.NewAuditService(auditRepo, logger)

	reputationService := services.NewReputationService(
		store.NewMemoryStore[*models.ReputationScore](), alertService, auditService, logger)
	rateLimitService := services.NewRateLimitService(
		store.NewMemoryStore[*models.RateCounter](), reputationService, limits, alertService,
		services.RateLimitConfig{BaseLimit: cfg.Admission.BaseLimit, Window: cfg.Admission.Window},
		logger)
	blocklistService := services.NewBlocklistService(
		store.NewMemoryStore[*models.SuspiciousActivityRecord](),
		store.NewMemoryStore[*models.BlockRecord](),
		alertService, auditService, logger)
	anomalyService := services.NewAnomalyService(
		services.NewMetricStateStore(),
		store.NewMemoryStore[*models.Anomaly](),
		store.NewMemoryStore[*models.Incident](),
		alertService, auditService, logger)
	admissionService := services.NewAdmissionService(
		rateLimitService, blocklistService, reputationService, alertService, logger)

	// Admin credentials
	keyManager := auth.NewAPIKeyManager(store.NewMemoryStore[*models.APIKey](), cfg.Auth.AdminKeyTTL)
	if cfg.Auth.AdminBootstrapKey != "" {
		if _, err := keyManager.Register(cfg.Auth.AdminBootstrapKey, "bootstrap"); err != nil {
			logger.Error("failed to register bootstrap admin key", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("bootstrap admin key registered")
	} else {
		logger.Warn("no ADMIN_BOOTSTRAP_KEY set, admin API is unreachable until one is issued out of band")
	}

	tokenVerifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	ipConfig := &httpx.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	admission := middlewareCustom.NewAdmission(
		admissionService, anomalyService, tokenVerifier, sharedWindow,
		middlewareCustom.SharedWindowConfig{
			Limit:  cfg.Redis.SharedLimit,
			Window: cfg.Redis.SharedWindow,
		},
		ipConfig, logger)

	maintenance := background.NewMaintenanceManager(
		rateLimitService, blocklistService, reputationService, anomalyService,
		keyManager, alertService, cfg.Maintenance, logger)
	maintenance.SetAuditCleaner(auditCleaner)

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.AdminHandlers{
		Anomalies:  handlers.NewAnomalyHandler(anomalyService),
		Blocklist:  handlers.NewBlocklistHandler(blocklistService),
		Reputation: handlers.NewReputationHandler(reputationService),
		RateLimits: handlers.NewRateLimitHandler(rateLimitService),
		APIKeys:    handlers.NewAPIKeyHandler(keyManager, auditService),
		Audit:      handlers.NewAuditHandler(auditStore),
		Health:     handlers.NewHealthHandler(dbHealth, redisHealth),
		Stream:     streamHub,
	}, keyManager, cfg.Auth.AdminRateLimit)

	// The surface the engine protects: everything under /api goes through
	// the admission gate
	router.Route("/api", func(r chi.Router) {
		r.Use(admission.Handler)
		r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go streamHub.Run(workerCtx)
	go maintenance.Start(workerCtx)
	if cfg.Admission.LimitsFile != "" {
		go func() {
			if err := config.WatchLimitsFile(workerCtx, limits, logger); err != nil {
				logger.Error("limit table watcher failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	workerCancel()
	maintenance.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

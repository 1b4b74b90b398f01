package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/cache"
	"github.com/SAP-F-2025/course-portal/internal/config"
	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/events"
	"github.com/SAP-F-2025/course-portal/internal/handlers"
	"github.com/SAP-F-2025/course-portal/internal/metrics"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/SAP-F-2025/course-portal/internal/ws"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	reporter := utils.NewReporter(cfg.RollbarToken, cfg.Environment, version, logger)
	defer reporter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis (if configured). Without it sessions live in memory and
	// are lost on restart.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory sessions", "error", err)
			redisClient = nil
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	var store session.Store = session.NewMemoryStore()
	if redisClient != nil {
		store = session.NewRedisStore(cacheManager)
	}
	sessions := session.NewManager(store, cfg.SessionTTL, logger)

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
	businessValidator := validator.NewBusinessValidator()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	portalMetrics := metrics.New(registry)

	// Checkout events: in-process unless Kafka brokers are configured
	bus, err := events.NewBus(cfg.Kafka, uuid.New().String(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}
	publisher := events.NewPublisher(bus, logger)

	hub := ws.NewHub(cfg.AllowedOrigins, logger)
	relay, err := events.NewRelay(bus, logger, func(_ context.Context, ev events.CheckoutEvent) {
		hub.SendJSON(ev.StudentID, ev)
	})
	if err != nil {
		log.Fatalf("Failed to initialize event relay: %v", err)
	}

	// Payments
	loader := payment.NewScriptLoader(cfg.Payment.ScriptURL, &http.Client{Timeout: 10 * time.Second})
	checkouts := payment.NewCheckouts(backendClient, loader, payment.Settings{
		KeyID:        cfg.Payment.KeyID,
		Currency:     cfg.Payment.Currency,
		MerchantName: cfg.Payment.MerchantName,
		ThemeColor:   cfg.Payment.ThemeColor,
		CallTimeout:  cfg.Payment.CallTimeout,
	}, cfg.Payment.CheckoutTimeout, logger, publisher.Observe, portalMetrics.ObserveTransition)
	if cfg.Payment.KeyID == "" {
		logger.Warn("PAYMENT_KEY_ID is not set, paid enrollment is disabled")
	}

	gate := enrollment.NewGate(backendClient, sessions, logger, enrollment.WithObserver(portalMetrics.ObserveVerdict))

	// Initialize services
	serviceManager := services.NewServiceManager(backendClient, cacheManager, businessValidator, logger)

	templates, err := handlers.LoadTemplates(cfg.Payment.Currency)
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	health := map[string]handlers.HealthChecker{}
	if redisClient != nil {
		health["redis"] = cacheManager
	}

	deps := handlers.Deps{
		Services:     serviceManager,
		Auth:         backendClient,
		Revenue:      backendClient,
		Sessions:     sessions,
		Gate:         gate,
		Checkouts:    checkouts,
		Validator:    businessValidator,
		Realtime:     hub,
		Health:       health,
		Logger:       logger,
		Metrics:      portalMetrics,
		Gatherer:     registry,
		Templates:    templates,
		CookieName:   cfg.SessionCookie,
		CookieSecure: cfg.CookieSecure,
		Currency:     cfg.Payment.Currency,
	}
	if cfg.Casdoor.Enabled() {
		deps.Casdoor = handlers.NewCasdoorProvider(cfg.Casdoor)
		deps.CasdoorRedirectURL = cfg.Casdoor.RedirectURL
	}

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(deps)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, reporter, cfg.AllowedOrigins, cfg.Payment.ScriptURL)
	handlerManager.SetupRoutes(router)

	// Background workers
	workers, cancelWorkers := context.WithCancel(context.Background())
	go publisher.Run(workers)
	go func() {
		if err := relay.Run(workers); err != nil {
			logger.Error("Event relay stopped", "error", err)
		}
	}()
	go checkouts.Run(workers, time.Minute, 2*cfg.Payment.CheckoutTimeout)

	// Create HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "events", bus.Transport)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	hub.Close()
	cancelWorkers()
	if err := relay.Close(); err != nil {
		logger.Warn("Failed to close event relay", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Warn("Failed to close event bus", "error", err)
	}

	// Close Redis connection
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("Server exited")
}

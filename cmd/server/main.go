// Package main is the entry point for the NutriFact console server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/config"
	"github.com/nutrifact/console/internal/database"
	"github.com/nutrifact/console/internal/handler"
	"github.com/nutrifact/console/internal/handler/web"
	"github.com/nutrifact/console/internal/middleware"
	"github.com/nutrifact/console/internal/pkg/response"
	"github.com/nutrifact/console/internal/service"
	"github.com/nutrifact/console/internal/session"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting NutriFact console",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
		slog.String("backend", cfg.Backend.BaseURL()),
	)

	// Connect to Redis
	redis, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Backend API client
	api := backend.New(cfg.Backend, logger)

	// Sessions
	sessions := session.NewManager(cfg.Session)

	// Services
	authService := service.NewAuthService(api)
	oauthService := service.NewOAuthService(cfg.OAuth, api)
	billingService := service.NewBillingService(api, service.NewRedisLocker(redis), redis, cfg.Stripe)
	accountService := service.NewAccountService(api)
	foodsService := service.NewFoodsService(api)
	adminService := service.NewAdminService(api)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	billingHandler := handler.NewBillingHandler(billingService)
	accountHandler := handler.NewAccountHandler(accountService, authService)
	foodsHandler := handler.NewFoodsHandler(foodsService)
	adminHandler := handler.NewAdminHandler(adminService)
	webHandler := web.NewHandler(oauthService, sessions)

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{cfg.Server.BaseURL}))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.Session(sessions))

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(redis))
	r.Handle("/metrics", promhttp.Handler())

	// Web pages and OAuth browser flow
	r.Mount("/", webHandler.Routes())

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(redis, middleware.DefaultRateLimitConfig()))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			response.OK(w, map[string]string{
				"name":    "NutriFact Console API",
				"version": "1.0.0",
			})
		})

		r.Mount("/auth", authHandler.Routes())
		r.Mount("/billing", billingHandler.Routes())
		r.Mount("/account", accountHandler.Routes())
		r.Mount("/foods", foodsHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

// healthHandler reports process liveness only.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// readyHandler verifies the Redis connection. Backend reachability is not
// gated here: the console degrades per request instead of flapping
// readiness with someone else's outages.
func readyHandler(redis *database.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := redis.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"redis"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","redis":"connected"}`))
	}
}

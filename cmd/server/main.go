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

	"github.com/lmittmann/tint"

	"github.com/pots-hq/pots/internal/auth"
	"github.com/pots-hq/pots/internal/config"
	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/database"
	"github.com/pots-hq/pots/internal/middleware"
	"github.com/pots-hq/pots/internal/notifications"
	"github.com/pots-hq/pots/internal/workflow"
	"github.com/pots-hq/pots/internal/workflow/model"
	"github.com/pots-hq/pots/internal/workflow/router"
	"github.com/pots-hq/pots/internal/workflow/service"
)

func setupLogger() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}

func main() {
	setupLogger()

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.Info("configuration loaded successfully",
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"core_api", cfg.CoreAPI.BaseURL,
		"redis_address", cfg.Redis.Address,
		"redis_channel", cfg.Redis.Channel,
	)

	slog.Info("server configuration",
		"port", cfg.Server.Port,
	)

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}

	if err := database.Migrate(db, &auth.IdentityContext{}, &model.SessionRecord{}); err != nil {
		log.Fatalf("failed to run database migrations: %v", err)
	}

	// Core platform client and services
	apiClient := coreapi.NewClient(&cfg.CoreAPI)
	authService := auth.NewAuthService(db)
	tokenExtractor := auth.NewTokenExtractor()
	snapshots := service.NewSnapshotRepository(db)

	// Notification bridge over redis pub/sub. The transport authenticates
	// with the configured service credential on every (re)connect.
	bridge := notifications.NewBridge(cfg.Redis, func(ctx context.Context) (string, error) {
		return cfg.Redis.Password, nil
	})

	// Workflow manager: session registry plus notification routing
	manager := workflow.NewManager(apiClient, bridge, snapshots, authService)
	manager.Start(context.Background())

	sessionRouter := router.NewSessionRouter(manager)
	adminRouter := router.NewAdminRouter(apiClient)

	requireAuth := auth.RequireAuth(authService, tokenExtractor)

	// Set up HTTP routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/sessions", requireAuth(http.HandlerFunc(sessionRouter.HandleStartSession)))
	mux.Handle("POST /api/sessions/resume", requireAuth(http.HandlerFunc(sessionRouter.HandleResumeSession)))
	mux.Handle("GET /api/sessions/{sessionID}", requireAuth(http.HandlerFunc(sessionRouter.HandleGetSession)))
	mux.Handle("POST /api/sessions/{sessionID}/action", requireAuth(http.HandlerFunc(sessionRouter.HandleStepAction)))
	mux.Handle("POST /api/sessions/{sessionID}/advance", requireAuth(http.HandlerFunc(sessionRouter.HandleAdvance)))
	mux.Handle("PUT /api/sessions/{sessionID}/offer", requireAuth(http.HandlerFunc(sessionRouter.HandleSelectOffer)))
	mux.Handle("PUT /api/sessions/{sessionID}/bank", requireAuth(http.HandlerFunc(sessionRouter.HandleSelectBank)))
	mux.Handle("PUT /api/sessions/{sessionID}/user-draft", requireAuth(http.HandlerFunc(sessionRouter.HandleSetUserDraft)))
	mux.Handle("DELETE /api/sessions/{sessionID}", requireAuth(http.HandlerFunc(sessionRouter.HandleEndSession)))

	mux.Handle("GET /api/admin/users", requireAuth(http.HandlerFunc(adminRouter.HandleListUsers)))
	mux.Handle("GET /api/admin/pots", requireAuth(http.HandlerFunc(adminRouter.HandleListPots)))
	mux.Handle("GET /api/admin/potFactories", requireAuth(http.HandlerFunc(adminRouter.HandleListPotFactories)))
	mux.Handle("GET /api/admin/cards", requireAuth(http.HandlerFunc(adminRouter.HandleListCards)))
	mux.Handle("GET /api/admin/deposits", requireAuth(http.HandlerFunc(adminRouter.HandleListDeposits)))
	mux.Handle("POST /api/admin/cards/{cardID}/activate", requireAuth(http.HandlerFunc(adminRouter.HandleActivateCard)))

	// Set up graceful shutdown
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)

	// Wrap handler with CORS middleware
	handler := middleware.CORS(&cfg.CORS)(mux)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: handler,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	// Wait for interrupt signal
	<-quit
	slog.Info("shutting down server...")

	// Create a context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown of HTTP server
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	// Tear down the workflow manager and its notification transport
	slog.Info("stopping workflow manager...")
	manager.Stop()

	slog.Info("server stopped")
}

/*
Package main is the entry point for the Stranger Chat server.

It is responsible for loading configuration, initializing the global logging system,
opening the push-token store, wiring the matchmaking engine to the push dispatcher,
setting up the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strangerchat/internal/app/chat"
	"strangerchat/internal/app/match"
	"strangerchat/internal/app/push"
	"strangerchat/internal/app/tokens"
	"strangerchat/internal/configs"
	"strangerchat/internal/handler"
	"strangerchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("grace_period", cfg.GracePeriod).
		Bool("push_enabled", cfg.PushEnabled).
		Str("stats_zone", cfg.StatsLocation.String()).
		Msg("Configuration loaded successfully")

	if cfg.UsesDevAdminSecret() {
		logx.Warn("ADMIN_JWT_SECRET is not set: admin routes accept tokens signed with the development secret. Set ENVIRONMENT=production outside local development.")
	}

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the push-token store and apply migrations
	store, err := tokens.Open(ctx, tokens.Config{DSN: cfg.DatabaseURL, Location: cfg.StatsLocation})
	if err != nil {
		logx.Fatal(err, "Failed to open token store")
	}
	tokenStore := tokens.NewStatsCache(store, tokens.DefaultStatsTTL)

	// Wire the matchmaking engine, with liquidity pushes when enabled
	engineOpts := match.Options{GracePeriod: cfg.GracePeriod}
	if cfg.PushEnabled {
		dispatcher := push.NewExpo(tokenStore, push.Config{URL: cfg.PushAPIURL})
		engineOpts.Notifier = match.NewLiquidity(tokenStore, dispatcher, match.LiquidityOptions{
			Limit:    cfg.PushBatchLimit,
			Cooldown: cfg.PushCooldown,
		})
	}
	engine := match.NewEngine(engineOpts)

	// Initialize Chat Manager
	manager := chat.NewManager(engine, tokenStore)

	// Setup HTTP server and routes
	router := handler.Router(ctx, &handler.AppDeps{
		Config:  cfg,
		Manager: manager,
		Engine:  engine,
		Tokens:  tokenStore,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Stranger Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	if err := engine.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Pending push notifications abandoned")
	}

	if err := tokenStore.Close(); err != nil {
		logx.Error(err, "Failed to close token store")
	}

	logx.Info("Server gracefully stopped.")
}

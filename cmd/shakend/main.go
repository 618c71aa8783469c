/**
 * @description
 * This is the main entry point for the STIR/SHAKEN signing and
 * verification service. It is responsible for wiring the key store,
 * fetcher, certificate store and audit hub into an HTTP server and
 * running it until an OS interrupt signal arrives.
 *
 * Key features:
 * - Configuration Loading: loads environment variables (Redis/Postgres
 *   addresses, data directory, certificate templates) via internal/config.
 * - Dependency Initialization: wires the key store, fetcher, certificate
 *   store, audit hub and core in the order each depends on the last.
 * - HTTP Server Startup: serves the Gin engine from internal/api.
 * - Graceful Shutdown: listens for SIGINT/SIGTERM to drain the HTTP
 *   server and stop the audit hub's Redis subscription before exiting.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/poly-pro/shaken/internal/api"
	"github.com/poly-pro/shaken/internal/audit"
	"github.com/poly-pro/shaken/internal/certstore"
	"github.com/poly-pro/shaken/internal/config"
	"github.com/poly-pro/shaken/internal/core"
	"github.com/poly-pro/shaken/internal/fetcher"
	"github.com/poly-pro/shaken/internal/keystore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("cannot load config", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ------------------------------------------------------------------
	// Dependency initialization.
	// ------------------------------------------------------------------
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("cannot reach redis", "error", err, "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("cannot construct postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	kv := keystore.NewRedisKV(redisClient)
	ks := keystore.New(kv)
	httpFetcher := fetcher.New(cfg.CurlTimeout, logger)
	certStore := certstore.NewPostgresCertStore(pgPool)

	hub := audit.NewHub(ctx, logger, redisClient)
	go hub.Run()

	shakenCore := core.New(ks, httpFetcher, certStore, cfg.DataDir, logger, core.WithEventSink(hub))

	server := api.New(shakenCore, hub, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.Engine(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	// ------------------------------------------------------------------
	// Graceful shutdown.
	// ------------------------------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received, initiating graceful shutdown")

	cancel() // stops the audit hub's Run loop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("server shut down gracefully")
}

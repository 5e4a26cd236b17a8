package main

// @title CalSync Core API
// @version 1.0
// @description Calendar synchronization core: OAuth2 credential lifecycle, full/incremental sync, write-through event mediation, and webhook demultiplexing against an upstream calendar provider.

// @contact.name CalSync Support
// @contact.email support@calensync.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host api.calensync.dev
// @BasePath /api/v1

// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name auth_token
// @description Session cookie issued after completing the Google authorization-code flow.

// @tag.name Auth
// @tag.description Authorization-code flow, session refresh/logout, identity
// @tag.name Calendar
// @tag.description Event CRUD, search, on-demand sync, and webhook lifecycle
// @tag.name Health
// @tag.description Health check and API info endpoints

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/calensync/backend/internal/config"
	"github.com/calensync/backend/internal/repository/postgres"
	"github.com/calensync/backend/internal/router"
	"github.com/calensync/backend/internal/service/sweeper"
)

func main() {
	cfg := config.Load()

	// Initialise Sentry as early as possible so panics during startup are
	// captured. When SentryDSN is empty the SDK is a no-op.
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			TracesSampleRate: 0.1,
			EnableTracing:    true,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "sentry.Init failed: %v\n", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	fileLogger := &lumberjack.Logger{
		Filename:   "logs/calsync-backend.jsonl",
		MaxSize:    500, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}
	w := io.MultiWriter(os.Stdout, fileLogger)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting calsync core", slog.String("port", cfg.Port), slog.String("env", cfg.Env))

	db, err := connectPostgres(cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	redisClient, err := connectRedis(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	r := router.New(cfg, logger, db, redisClient)

	var sweeperCancel context.CancelFunc
	if cfg.SweeperEnabled {
		sweeperCtx, cancel := context.WithCancel(context.Background())
		sweeperCancel = cancel

		sw := sweeper.New(
			postgres.NewOAuthStateRepository(db),
			postgres.NewSyncCursorRepository(db),
			postgres.NewWebhookSubscriptionRepository(db),
			sweeper.Config{Interval: cfg.SweeperInterval, StuckSyncAge: sweeper.StuckSyncAge},
		)
		go sw.Run(sweeperCtx)
		logger.Info("sweeper started", slog.Duration("interval", cfg.SweeperInterval))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	if sweeperCancel != nil {
		logger.Info("stopping sweeper...")
		sweeperCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
}

func connectPostgres(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DatabaseConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func connectRedis(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

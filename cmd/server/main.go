package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/scenesync/internal/clock"
	"github.com/iudanet/scenesync/internal/server/handlers"
	"github.com/iudanet/scenesync/internal/server/jwt"
	"github.com/iudanet/scenesync/internal/server/middleware"
	"github.com/iudanet/scenesync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const (
	shutdownTimeout = 10 * time.Second

	authRateLimit  = 10 // запросов на IP в окно
	authRateWindow = time.Minute
)

type config struct {
	addr           string
	dbPath         string
	jwtSecret      string
	accessTokenTTL time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", envOr("SCENESYNC_ADDR", ":8080"), "Listen address")
	dbPath := flag.String("db", envOr("SCENESYNC_DB", "scenesync.db"), "Path to SQLite database")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "Access token lifetime")
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config{
		addr:           *addr,
		dbPath:         *dbPath,
		jwtSecret:      os.Getenv("SCENESYNC_JWT_SECRET"),
		accessTokenTTL: *tokenTTL,
	}
	if cfg.jwtSecret == "" {
		return fmt.Errorf("SCENESYNC_JWT_SECRET environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	// Часы восстанавливаются от максимального сохраненного timestamp:
	// после рестарта сервер не должен выдавать время из прошлого
	clk := clock.NewLamport()
	if err := seedClock(ctx, clk, store); err != nil {
		return err
	}

	jwtService := jwt.NewService(cfg.jwtSecret, cfg.accessTokenTTL)

	authHandler := handlers.NewAuthHandler(logger, store, jwtService)
	hub := handlers.NewHub(logger, store, clk)
	recordsHandler := handlers.NewRecordsHandler(logger, store, clk, hub)
	healthHandler := handlers.NewHealthHandler(logger, store)

	authMw := middleware.AuthMiddleware(logger, jwtService)
	authRate := middleware.RateLimitMiddleware(authRateLimit, authRateWindow, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/register", authRate(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", authRate(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /api/v1/health", http.HandlerFunc(healthHandler.Health))
	mux.Handle("POST /api/v1/records", authMw(http.HandlerFunc(recordsHandler.Create)))
	mux.Handle("PATCH /api/v1/records/{id}", authMw(http.HandlerFunc(recordsHandler.Update)))
	mux.Handle("DELETE /api/v1/records/{id}", authMw(http.HandlerFunc(recordsHandler.Delete)))
	mux.Handle("GET /api/v1/records", authMw(http.HandlerFunc(recordsHandler.Snapshot)))
	mux.Handle("GET /api/v1/subscribe", authMw(http.HandlerFunc(hub.Subscribe)))

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(mux))

	server := &http.Server{
		Addr:              cfg.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			"addr", cfg.addr,
			"db", cfg.dbPath,
			"version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}

	hub.Close()

	return nil
}

// seedClock поднимает часы Лампорта выше всех сохраненных записей
func seedClock(ctx context.Context, clk *clock.Lamport, store *sqlite.Storage) error {
	records, err := store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed clock: %w", err)
	}

	var maxTimestamp int64
	for _, record := range records {
		if record.Timestamp > maxTimestamp {
			maxTimestamp = record.Timestamp
		}
	}
	clk.Restore(maxTimestamp)

	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printVersion() {
	fmt.Printf("scenesync server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

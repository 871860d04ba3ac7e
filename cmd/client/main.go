package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/iudanet/scenesync/internal/client/api"
	"github.com/iudanet/scenesync/internal/client/auth"
	"github.com/iudanet/scenesync/internal/client/cli"
	"github.com/iudanet/scenesync/internal/client/iocli"
	"github.com/iudanet/scenesync/internal/client/storage"
	"github.com/iudanet/scenesync/internal/client/storage/boltdb"
	syncsvc "github.com/iudanet/scenesync/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "scenesync-client.db", "Path to local database")
	verbose := flag.Bool("v", false, "Verbose logging to stderr")
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	stdio := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		command := cli.New(stdio, nil, nil, Version)
		command.PrintUsage()
		return fmt.Errorf("missing command")
	}

	// Движок шумный; по умолчанию логи глушатся, чтобы не мешать выводу команд
	logOutput := io.Discard
	if *verbose {
		logOutput = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOutput, nil))

	ctx := context.Background()

	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	apiClient := api.NewClient(*serverURL)
	authService := auth.NewService(apiClient, boltStorage, logger)

	// Движок собирается лениво и один раз: команда живет не дольше процесса
	var engine *syncsvc.Service
	factory := func(session *storage.Session) (*syncsvc.Service, error) {
		if engine != nil {
			return engine, nil
		}

		nodeID, err := loadNodeID(ctx, boltStorage)
		if err != nil {
			return nil, err
		}

		subscribe := func(ctx context.Context, handlers api.SubscribeHandlers) (syncsvc.Subscription, error) {
			return apiClient.Subscribe(ctx, handlers)
		}

		engine = syncsvc.NewService(
			apiClient, subscribe, boltStorage,
			session.UserID, session.Name,
			syncsvc.Config{NodeID: nodeID},
			logger,
		)

		// Часы переживают перезапуск клиента
		if timestamp, err := boltStorage.GetClock(ctx); err == nil && timestamp > 0 {
			engine.Clock().Restore(timestamp)
		}

		return engine, nil
	}

	command := cli.New(stdio, authService, factory, Version)
	runErr := command.Run(ctx, args[0], args[1:])

	if engine != nil {
		if err := boltStorage.SaveClock(ctx, engine.Clock().Now()); err != nil {
			logger.Error("Failed to persist clock", "error", err)
		}
	}

	return runErr
}

// loadNodeID возвращает стабильную идентичность устройства,
// создавая ее при первом запуске
func loadNodeID(ctx context.Context, boltStorage *boltdb.Storage) (string, error) {
	nodeID, err := boltStorage.GetNodeID(ctx)
	if err == nil && nodeID != "" {
		return nodeID, nil
	}

	nodeID = uuid.New().String()
	if err := boltStorage.SaveNodeID(ctx, nodeID); err != nil {
		return "", fmt.Errorf("failed to save node id: %w", err)
	}

	return nodeID, nil
}

func printVersion() {
	fmt.Printf("scenesync client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

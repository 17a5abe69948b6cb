// main package for the variation-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/api"
	"github.com/book-expert/variation-service/internal/config"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/embedding"
	"github.com/book-expert/variation-service/internal/ffmpeg"
	"github.com/book-expert/variation-service/internal/objectstore"
	"github.com/book-expert/variation-service/internal/prompt"
	"github.com/book-expert/variation-service/internal/service"
	"github.com/book-expert/variation-service/internal/tracks"
	"github.com/book-expert/variation-service/internal/variation"
	"github.com/book-expert/variation-service/internal/worker"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func loadTaxonomy(path string) (prompt.Taxonomy, error) {
	if path == "" {
		return prompt.DefaultTaxonomy(), nil
	}

	taxonomy, err := prompt.LoadTaxonomy(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	return taxonomy, nil
}

func buildService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*service.Service, error) {
	table, err := embedding.Load(cfg.Prompt.EmbeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	log.Info("Loaded %d embeddings of dimension %d.", table.Len(), table.Dimension())

	taxonomy, err := loadTaxonomy(cfg.Prompt.TaxonomyPath)
	if err != nil {
		return nil, err
	}

	runner := ffmpeg.NewRunner(ffmpeg.Config{
		BinaryPath:   cfg.Engine.FFmpegPath,
		StageTimeout: cfg.Engine.StageTimeout(),
	}, nil, log)

	version, versionErr := runner.Version(ctx)
	if versionErr != nil {
		log.Warn("Audio engine probe failed, variations will fail until it is available: %v", versionErr)
	} else {
		log.Info("Audio engine available: %s", version)
	}

	return service.New(
		tracks.NewStore(cfg.Engine.TracksDir),
		prompt.New(table, taxonomy),
		variation.New(runner, cfg.Engine.WorkDir, log),
		log,
	), nil
}

// startWorker connects to NATS and runs the request worker until ctx is done. It is a
// no-op when no NATS URL is configured.
func startWorker(ctx context.Context, cfg *config.Config, svc *service.Service, log *logger.Logger) error {
	if cfg.NATS.URL == "" {
		log.Info("NATS URL not configured, worker disabled.")

		return nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	var store core.ObjectStore

	if cfg.NATS.VariationObjectStoreBucket != "" {
		jetstreamContext, jsErr := natsConnection.JetStream()
		if jsErr != nil {
			return fmt.Errorf("failed to create JetStream context: %w", jsErr)
		}

		natsStore, storeErr := objectstore.New(jetstreamContext, cfg.NATS.VariationObjectStoreBucket)
		if storeErr != nil {
			return fmt.Errorf("failed to open object store: %w", storeErr)
		}

		store = natsStore
	}

	return worker.NewNatsWorker(natsConnection, cfg.NATS.VariationRequestedSubject, svc, store, log).Run(ctx)
}

func run() error {
	envErr := godotenv.Load()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "WARN: failed to load .env: %v\n", envErr)
	}

	bootstrapLog, err := setupLogger(os.TempDir(), "variation-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "variation-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to initialize service: %v", err)

		return err
	}

	workerErr := make(chan error, 1)

	go func() {
		startErr := startWorker(ctx, cfg, svc, finalLog)
		if startErr != nil {
			finalLog.Error("NATS worker stopped: %v", startErr)
			stop()
		}

		workerErr <- startErr
	}()

	finalLog.System("Variation-Service successfully initialized. HTTP on %s, NATS subject: %s",
		cfg.HTTP.Addr, cfg.NATS.VariationRequestedSubject)

	serverErr := api.New(cfg.HTTP.Addr, svc, finalLog).Run(ctx)

	stop()

	err = errors.Join(serverErr, <-workerErr)
	if err != nil {
		finalLog.Error("Service stopped with error: %v", err)

		return err
	}

	finalLog.System("Variation-Service stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

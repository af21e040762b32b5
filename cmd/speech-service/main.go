// main package for the speech-service
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/langbridge/speech-service/internal/config"
	"github.com/langbridge/speech-service/internal/core"
	"github.com/langbridge/speech-service/internal/metadata"
	"github.com/langbridge/speech-service/internal/metrics"
	"github.com/langbridge/speech-service/internal/multipart"
	"github.com/langbridge/speech-service/internal/objectstore"
	"github.com/langbridge/speech-service/internal/server"
	"github.com/langbridge/speech-service/internal/speech"
	"github.com/langbridge/speech-service/internal/synthesis"
	"github.com/langbridge/speech-service/internal/worker"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "speech-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	service, natsConnection, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	httpServer := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: server.New(
			service,
			multipart.NewDecoder(log),
			metrics.New(prometheus.DefaultRegisterer),
			cfg.Synthesis.Engine,
			log,
		).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if cfg.NATS.WorkerEnabled {
		workerErr := startWorker(ctx, cfg, natsConnection, service, log)
		if workerErr != nil {
			return workerErr
		}
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	log.System("HTTP server listening on %s", cfg.Server.Addr())

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	log.System("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}

func startWorker(
	ctx context.Context,
	cfg *config.Config,
	natsConnection *nats.Conn,
	service *speech.Service,
	log *logger.Logger,
) error {
	natsWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.SynthesizeSubject, service, log)
	if err != nil {
		return fmt.Errorf("failed to create NATS worker: %w", err)
	}

	go func() {
		runErr := natsWorker.Run(ctx)
		if runErr != nil {
			log.Error("NATS worker stopped: %v", runErr)
		}
	}()

	log.System("Listening for synthesis jobs on subject: %s", cfg.NATS.SynthesizeSubject)

	return nil
}

// buildService wires the configured backends into the speech service. The
// returned NATS connection is nil when no NATS-backed component is selected.
func buildService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*speech.Service, *nats.Conn, error) {
	var (
		natsConnection   *nats.Conn
		jetstreamContext nats.JetStreamContext
	)

	if usesNATS(cfg) {
		var err error

		natsConnection, err = nats.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}

		jetstreamContext, err = natsConnection.JetStream()
		if err != nil {
			natsConnection.Close()

			return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	deps, err := buildDeps(ctx, cfg, jetstreamContext, log)
	if err != nil {
		if natsConnection != nil {
			natsConnection.Close()
		}

		return nil, nil, err
	}

	return speech.NewService(deps), natsConnection, nil
}

func buildDeps(
	ctx context.Context,
	cfg *config.Config,
	jetstreamContext nats.JetStreamContext,
	log *logger.Logger,
) (speech.Deps, error) {
	deps := speech.Deps{
		Synthesizer:  nil,
		InputStore:   nil,
		OutputStore:  nil,
		Metadata:     nil,
		InputBucket:  cfg.Storage.InputBucket,
		OutputBucket: cfg.Storage.OutputBucket,
		Log:          log,
	}

	var awsCfg aws.Config

	if usesAWS(cfg) {
		var err error

		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return deps, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
	}

	var err error

	deps.InputStore, deps.OutputStore, err = buildObjectStores(cfg, awsCfg, jetstreamContext)
	if err != nil {
		return deps, err
	}

	deps.Metadata, err = buildMetadataStore(cfg, awsCfg, jetstreamContext)
	if err != nil {
		return deps, err
	}

	deps.Synthesizer = buildSynthesizer(cfg, awsCfg)

	return deps, nil
}

func buildObjectStores(
	cfg *config.Config,
	awsCfg aws.Config,
	jetstreamContext nats.JetStreamContext,
) (core.ObjectStore, core.ObjectStore, error) {
	if cfg.Storage.Backend == config.StorageBackendS3 {
		client := s3.NewFromConfig(awsCfg)

		return objectstore.NewS3ObjectStore(client, cfg.Storage.InputBucket),
			objectstore.NewS3ObjectStore(client, cfg.Storage.OutputBucket),
			nil
	}

	inputStore, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.Storage.InputBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input object store: %w", err)
	}

	outputStore, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.Storage.OutputBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output object store: %w", err)
	}

	return inputStore, outputStore, nil
}

func buildMetadataStore(
	cfg *config.Config,
	awsCfg aws.Config,
	jetstreamContext nats.JetStreamContext,
) (core.MetadataStore, error) {
	if cfg.Metadata.Backend == config.MetadataBackendDyno {
		return metadata.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Metadata.Table), nil
	}

	store, err := metadata.NewNatsKVStore(jetstreamContext, cfg.Metadata.KVBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}

	return store, nil
}

func buildSynthesizer(cfg *config.Config, awsCfg aws.Config) core.Synthesizer {
	if cfg.Synthesis.Engine == config.EnginePolly {
		return synthesis.NewPollyEngine(polly.NewFromConfig(awsCfg), cfg.Synthesis.Voice)
	}

	timeout := time.Duration(cfg.Synthesis.TimeoutSeconds) * time.Second

	return synthesis.NewHTTPEngine(cfg.Synthesis.ServiceURL, timeout)
}

func usesNATS(cfg *config.Config) bool {
	return cfg.Storage.Backend == config.StorageBackendNATS ||
		cfg.Metadata.Backend == config.MetadataBackendNATS ||
		cfg.NATS.WorkerEnabled
}

func usesAWS(cfg *config.Config) bool {
	return cfg.Storage.Backend == config.StorageBackendS3 ||
		cfg.Metadata.Backend == config.MetadataBackendDyno ||
		cfg.Synthesis.Engine == config.EnginePolly
}

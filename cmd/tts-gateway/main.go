// main package for the tts-gateway service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-gateway/internal/artifact"
	"github.com/book-expert/tts-gateway/internal/config"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/engine"
	"github.com/book-expert/tts-gateway/internal/gateway"
	"github.com/book-expert/tts-gateway/internal/notify"
	"github.com/book-expert/tts-gateway/internal/server"
)

const shutdownTimeout = 15 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tts-gateway.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// A temporary logger covers the bootstrap until the configured log
	// directory is known.
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

	logDir := cfg.Paths.LogDir
	if logDir == "" {
		logDir = os.TempDir()
	}

	finalLog, err := setupLogger(logDir)
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

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := connectNATS(cfg, log)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	artifacts, err := buildArtifactStore(cfg, natsConnection)
	if err != nil {
		return err
	}

	voices, err := artifact.NewDirectoryStore(cfg.Paths.VoicesPath)
	if err != nil {
		return fmt.Errorf("failed to open voice sample directory: %w", err)
	}

	handle := engine.NewHandle(buildLoader(cfg, log), log)

	var notifier gateway.Notifier
	if natsConnection != nil {
		notifier = notify.NewPublisher(natsConnection, cfg.NATS.AudioChunkCreatedSubject, log)
	}

	synthesisTimeout := time.Duration(cfg.Engine.SynthesisTimeoutSeconds) * time.Second
	gw := gateway.New(artifacts, voices, handle, notifier, synthesisTimeout, cfg.Engine.MaxWorkers, log)

	httpServer := server.New(gw, cfg.ListenAddr(), log)
	httpServer.Start()

	log.System("TTS gateway started: addr=%s engine=%s output=%s",
		cfg.ListenAddr(), cfg.Engine.Kind, cfg.Paths.OutputPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.System("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopErr := httpServer.Stop(shutdownCtx)
	if stopErr != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", stopErr)
	}

	return nil
}

func connectNATS(cfg *config.Config, log *logger.Logger) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	log.Info("Connected to NATS at %s", cfg.NATS.URL)

	return natsConnection, nil
}

// buildArtifactStore selects the artifact backend: a JetStream bucket when
// one is configured, the flat output directory otherwise.
func buildArtifactStore(cfg *config.Config, natsConnection *nats.Conn) (core.ArtifactStore, error) {
	if natsConnection != nil && cfg.NATS.AudioObjectStoreBucket != "" {
		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		store, err := artifact.NewNatsObjectStore(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact bucket: %w", err)
		}

		return store, nil
	}

	store, err := artifact.NewDirectoryStore(cfg.Paths.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact directory: %w", err)
	}

	return store, nil
}

// buildLoader returns the model handle's load step for the configured
// engine binding. The load verifies the engine is actually usable, so a
// dead inference server or a missing binary surfaces as a retryable
// model-load failure.
func buildLoader(cfg *config.Config, log *logger.Logger) engine.LoadFunc {
	timeout := time.Duration(cfg.Engine.SynthesisTimeoutSeconds) * time.Second

	if cfg.Engine.Kind == config.EngineKindProcess {
		return func(ctx context.Context) (core.SpeechSynthesizer, error) {
			processEngine := engine.NewProcessEngine(
				"", cfg.Engine.ModelPath, cfg.Engine.UseFP16, log)

			verifyErr := processEngine.Verify(ctx)
			if verifyErr != nil {
				return nil, verifyErr
			}

			return processEngine, nil
		}
	}

	return func(ctx context.Context) (core.SpeechSynthesizer, error) {
		httpEngine := engine.NewHTTPEngine(cfg.Engine.URL, cfg.Engine.UseFP16, timeout)

		healthErr := httpEngine.HealthCheck(ctx)
		if healthErr != nil {
			return nil, healthErr
		}

		return httpEngine, nil
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

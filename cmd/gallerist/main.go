package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giobyte8/gallerist/internal/config"
	"github.com/giobyte8/gallerist/internal/consumer"
	"github.com/giobyte8/gallerist/internal/imgproc"
	"github.com/giobyte8/gallerist/internal/logging"
	"github.com/giobyte8/gallerist/internal/models"
	"github.com/giobyte8/gallerist/internal/render"
	"github.com/giobyte8/gallerist/internal/services"
	"github.com/giobyte8/gallerist/internal/telemetry"
	"github.com/giobyte8/gallerist/internal/watcher"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func setupLogging(clock *logging.Clock) {
	level := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logging.NewLogger(os.Stdout, level, clock))
}

func loadEnv() {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		slog.Debug("No .env file found, using environment variables directly.")
		return
	}

	err := godotenv.Load(".env")
	if err != nil {
		slog.Error("Error loading .env file", "error", err)
		os.Exit(1)
	}
}

func prepareGalleryService(
	cfg config.Config,
	telemetry *telemetry.TelemetrySvc,
) *services.GalleryService {
	return services.NewGalleryService(
		services.GalleryConfig{
			Title:          cfg.Title,
			Version:        version,
			ThumbHeight:    cfg.ThumbHeight,
			MaxSize:        cfg.MaxSize,
			Panorama:       cfg.Panorama,
			NoArchive:      cfg.NoArchive,
			NoThumbnails:   cfg.NoThumbnails,
			SkipProcessing: cfg.SkipProcessing,
			Workers:        cfg.Workers,
		},
		imgproc.NewImagingTransformer(),
		render.NewHTMLRenderer(),
		telemetry,
	)
}

func prepareAMQPConsumer(
	cfg config.Config,
	gallerySvc *services.GalleryService,
	telemetry *telemetry.TelemetrySvc,
) (consumer.MessageConsumer, error) {
	return consumer.NewAMQPConsumer(
		consumer.AMQPConfig{
			AMQPUri:               cfg.AMQP.URI(),
			Exchange:              cfg.AMQP.Exchange,
			GalleryBuildQueueName: cfg.AMQP.GalleryBuildQueueName,
		},
		gallerySvc,
		telemetry,
	)
}

// cancelOnSignal cancels ctx on SIGINT or SIGTERM.
func cancelOnSignal(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s := <-sigChan
		slog.Info("Received OS signal, shutting down...", "signal", s.String())
		cancel()
	}()
}

func buildRequest(cfg config.Config) models.BuildRequest {
	return models.BuildRequest{
		InputDir:  cfg.InputDir,
		OutputDir: cfg.OutputDir,
		Title:     cfg.Title,
	}
}

func runBuild(ctx context.Context, cfg config.Config, gallerySvc *services.GalleryService) error {
	_, err := gallerySvc.Publish(ctx, buildRequest(cfg))
	return err
}

func runWatch(ctx context.Context, cfg config.Config, gallerySvc *services.GalleryService) error {
	if err := runBuild(ctx, cfg, gallerySvc); err != nil {
		return err
	}

	w, err := watcher.New(
		cfg.InputDir,
		watcher.DefaultDebounce,
		func(ctx context.Context, events []models.InputChangeEvent) error {
			slog.Info("Input changed, rebuilding gallery", "changes", len(events))
			return runBuild(ctx, cfg, gallerySvc)
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServe(
	ctx context.Context,
	cfg config.Config,
	gallerySvc *services.GalleryService,
	telemetry *telemetry.TelemetrySvc,
) error {
	amqpConsumer, err := prepareAMQPConsumer(cfg, gallerySvc, telemetry)
	if err != nil {
		return fmt.Errorf("failed to create AMQP consumer: %w", err)
	}

	if err := amqpConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start AMQP consumer: %w", err)
	}
	slog.Info("Gallerist is consuming build requests. Press Ctrl+C to stop.")

	<-ctx.Done()
	amqpConsumer.Stop()
	return nil
}

func main() {
	clock := logging.NewClock()
	loadEnv()
	setupLogging(clock)

	opts, err := parseArgs(os.Args[1:], os.LookupEnv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}
	if opts.mode == modeVersion {
		fmt.Println("gallerist", version)
		return
	}

	slog.Info("Starting Gallerist...", "version", version, "workers", opts.cfg.Workers)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelOnSignal(cancel)

	// Init telemetry services
	telemetry, err := telemetry.NewTelemetrySvc(ctx, telemetry.Config{
		OtelEnabled:           opts.cfg.Telemetry.OtelEnabled,
		OtelCollectorEndpoint: opts.cfg.Telemetry.OtelCollectorEndpoint,
	})
	if err != nil {
		slog.Error("Failed to initialize Telemetry services", "error", err)
		os.Exit(1)
	}

	gallerySvc := prepareGalleryService(opts.cfg, telemetry)

	switch opts.mode {
	case modeWatch:
		err = runWatch(ctx, opts.cfg, gallerySvc)
	case modeServe:
		err = runServe(ctx, opts.cfg, gallerySvc, telemetry)
	default:
		err = runBuild(ctx, opts.cfg, gallerySvc)
	}

	// Shutdown gets a fresh context, ctx may already be cancelled
	if shutdownErr := telemetry.Shutdown(context.Background()); shutdownErr != nil {
		slog.Error("Failed to shutdown telemetry services", "error", shutdownErr)
	}

	if err != nil {
		slog.Error(failureMessage(opts.mode), "error", err)
		os.Exit(1)
	}
	slog.Info("Gallerist exited gracefully.", "elapsed", clock.Elapsed(time.Now()))
}

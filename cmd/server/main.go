package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/infrastructure/cache"
	"github.com/fichesante/backend/internal/infrastructure/config"
	contentinfra "github.com/fichesante/backend/internal/infrastructure/content"
	"github.com/fichesante/backend/internal/infrastructure/event"
	"github.com/fichesante/backend/internal/infrastructure/logger"
	"github.com/fichesante/backend/internal/infrastructure/printing"
	"github.com/fichesante/backend/internal/infrastructure/storage"
	"github.com/fichesante/backend/internal/infrastructure/telemetry"
	"github.com/fichesante/backend/internal/interfaces/http/handler"
	"github.com/fichesante/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Fiche Santé document API
//	@version		1.0
//	@description	PDF and printable HTML versions of patient information sheets
//	@BasePath		/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Telemetry comes first so the logger can tee into the OTLP log bridge
	bootLog, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	provider, err := telemetry.NewProvider(context.Background(), cfg.Telemetry, version, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	logCfg := logger.FromAppConfig(cfg.Log)
	log, err := logger.New(logCfg, logger.WithCore(provider.ZapCore(logger.ParseLevel(logCfg.Level))))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	// Continuous profiling; encodes are labelled by backend and variant
	profiler, err := telemetry.NewProfiler(cfg.Telemetry.Profiling, log.Named("profiler"))
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	log.Info("Starting document service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Content records
	repo, err := contentinfra.NewMemoryRepositoryFromFS(
		contentinfra.Source(cfg.Content.Dir, cfg.Content.UseEmbedded),
		contentinfra.WithRepositoryLogger(log.Named("content")),
	)
	if err != nil {
		log.Fatal("Failed to load content records", zap.Error(err))
	}
	log.Info("Content records loaded", zap.Int("count", len(repo.IDs())))

	// Artifact cache
	store, err := cache.NewArtifactStoreFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log.Named("cache"))).CreateStore()
	if err != nil {
		log.Fatal("Failed to create artifact store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing artifact store", zap.Error(err))
		}
	}()

	// Encoder and printable layout
	layout, err := printing.NewHTMLLayout()
	if err != nil {
		log.Fatal("Failed to load HTML layout", zap.Error(err))
	}
	encoder, err := printing.NewEncoderFactory(cfg.Encoder, layout, printing.WithFactoryLogger(log.Named("encoder"))).CreateEncoder()
	if err != nil {
		log.Fatal("Failed to create PDF encoder", zap.Error(err))
	}
	defer func() {
		if err := encoder.Close(); err != nil {
			log.Error("Error closing encoder", zap.Error(err))
		}
	}()

	// Analytics events
	bus := event.NewAsyncEventBus(
		event.WithBufferSize(cfg.Events.BufferSize),
		event.WithWorkers(cfg.Events.Workers),
		event.WithBusLogger(log.Named("events")),
	)
	bus.Subscribe(event.NewLogHandler(log.Named("analytics")))
	if err := bus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Pipeline metrics
	var metrics docapp.Metrics = docapp.NopMetrics{}
	if provider.IsEnabled() {
		pm, err := telemetry.NewPipelineMetrics(telemetry.PipelineMetricsConfig{
			Meter:  provider.Meter("fichesante-docgen"),
			Logger: log,
		})
		if err != nil {
			log.Warn("Failed to initialize pipeline metrics", zap.Error(err))
		} else {
			metrics = pm
		}
	}

	// Archive publishing
	publisher, archives := newArchivePublisher(cfg, log)

	// Application services
	reporter := docapp.NewErrorReporter(docapp.WithReporterLogger(log.Named("errors")))
	generator := docapp.NewGenerator(repo, encoder, store, reporter,
		docapp.WithGeneratorLogger(log.Named("generator")),
		docapp.WithGeneratorMetrics(metrics),
		docapp.WithGeneratorTracer(provider.Tracer("fichesante-docgen")),
	)
	fallback := docapp.NewFallbackPrinter(repo, layout,
		docapp.WithFallbackPublisher(bus),
		docapp.WithFallbackLogger(log.Named("fallback")),
	)
	preloader := docapp.NewPreloader(generator,
		docapp.WithPreloadInterval(cfg.Preload.Interval),
		docapp.WithDefaultVariants(parseVariants(cfg.Preload.Variants)...),
		docapp.WithPreloaderMetrics(metrics),
		docapp.WithPreloaderLogger(log.Named("preload")),
	)
	batchOpts := []docapp.BatchOption{
		docapp.WithBrand(cfg.Batch.Brand),
		docapp.WithConcurrency(cfg.Batch.Concurrency),
		docapp.WithMaxItems(cfg.Batch.MaxItems),
		docapp.WithBatchEvents(bus),
		docapp.WithBatchMetrics(metrics),
		docapp.WithBatchLogger(log.Named("batch")),
	}
	if publisher != nil {
		batchOpts = append(batchOpts, docapp.WithArchivePublisher(publisher))
	}
	batches := docapp.NewBatchPackager(generator, batchOpts...)
	service := docapp.NewDocumentService(repo, generator, fallback, preloader, batches, bus, log)

	// HTTP engine
	handlers := router.Handlers{
		Documents: handler.NewDocumentHandler(service, router.APIBasePath+router.DocumentsPrefix, log),
		System:    handler.NewSystemHandler(cfg.Telemetry.ServiceName, version, service),
	}
	if archives != nil {
		handlers.Archives = handler.NewArchiveHandler(archives, log)
	}
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		HTTP:           cfg.HTTP,
		Telemetry:      provider.IsEnabled(),
		Meters:         provider,
		TracerProvider: provider.TracerProvider(),
		Logger:         log,
	}, handlers)

	// Background work
	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.Preload.Enabled && len(cfg.Preload.IDs) > 0 {
		h := preloader.Schedule(cfg.Preload.IDs, docapp.PreloadOptions{Delay: cfg.Preload.Delay})
		log.Info("Startup preload scheduled",
			zap.Strings("ids", cfg.Preload.IDs),
			zap.Int("steps", h.Steps()))
	}
	if archives != nil && cfg.Archive.Retention > 0 {
		go cleanupArchives(ctx, archives, cfg.Archive.Retention, log)
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// SIGHUP reloads content; SIGINT/SIGTERM shut down
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			reloadContent(ctx, cfg.Content, repo, store, log)
			continue
		}
		break
	}
	log.Info("Shutting down server...")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := preloader.Stop(shutdownCtx); err != nil {
		log.Warn("Preloader did not stop cleanly", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newArchivePublisher builds the configured archive publisher. The second
// result is non-nil only for the filesystem publisher, whose archives the
// service serves itself.
func newArchivePublisher(cfg *config.Config, log *zap.Logger) (docapp.ArchivePublisher, *storage.FileSystemArchivePublisher) {
	switch cfg.Archive.Publisher {
	case "filesystem":
		fs, err := storage.NewFileSystemArchivePublisher(&storage.FileSystemConfig{
			BasePath: cfg.Archive.Dir,
			BaseURL:  cfg.Archive.BaseURL,
			Logger:   log.Named("archives"),
		})
		if err != nil {
			log.Fatal("Failed to create archive directory", zap.Error(err))
		}
		return fs, fs
	case "s3":
		s3, err := storage.NewS3ArchivePublisher(&cfg.Storage,
			storage.WithURLExpiry(cfg.Archive.URLExpiry),
			storage.WithLogger(log.Named("archives")),
		)
		if err != nil {
			log.Fatal("Failed to create S3 archive publisher", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Fatal("Archive bucket unavailable", zap.String("bucket", s3.GetBucket()), zap.Error(err))
		}
		return s3, nil
	default:
		return nil, nil
	}
}

// reloadContent swaps the content records and drops the artifacts of changed records
func reloadContent(ctx context.Context, cfg config.ContentConfig, repo *contentinfra.MemoryRepository, store *cache.ArtifactStore, log *zap.Logger) {
	result, err := repo.Reload(contentinfra.Source(cfg.Dir, cfg.UseEmbedded))
	if err != nil {
		log.Error("Content reload failed, keeping current records", zap.Error(err))
		return
	}
	dropped := 0
	for _, id := range result.Changed() {
		dropped += store.Invalidate(ctx, id)
	}
	log.Info("Content reloaded",
		zap.Strings("changed", result.Changed()),
		zap.Int("artifacts_dropped", dropped))
}

// cleanupArchives removes old filesystem archives once an hour
func cleanupArchives(ctx context.Context, archives *storage.FileSystemArchivePublisher, retention time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := archives.CleanupOlderThan(ctx, retention); err != nil {
			log.Warn("Archive cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// parseVariants keeps the valid variant names; config validation already rejected the rest
func parseVariants(names []string) []document.Variant {
	out := make([]document.Variant, 0, len(names))
	for _, name := range names {
		if v, err := document.ParseVariant(name); err == nil {
			out = append(out, v)
		}
	}
	return out
}

package cli

import (
	"context"
	"errors"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/infrastructure/cache"
	"github.com/fichesante/backend/internal/infrastructure/config"
	contentinfra "github.com/fichesante/backend/internal/infrastructure/content"
	"github.com/fichesante/backend/internal/infrastructure/logger"
	"github.com/fichesante/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// stack is the document pipeline assembled for one CLI invocation
type stack struct {
	cfg     *config.Config
	service *docapp.DocumentService
	opener  *printing.ChromedpOpener
	log     *zap.Logger
	closers []func() error
}

type stackOptions struct {
	// withOpener attaches a visible Chrome window to the fallback printer
	withOpener bool
}

// newStack loads the configuration, applies the global flag overrides and
// wires the pipeline. Logs go to stderr so stdout stays usable for output.
func newStack(opts *RootOptions, so stackOptions) (*stack, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Backend != "" {
		cfg.Encoder.Backend = opts.Backend
	}
	if opts.Timeout > 0 {
		cfg.Encoder.Timeout = opts.Timeout
	}
	if opts.ContentDir != "" {
		cfg.Content.Dir = opts.ContentDir
		cfg.Content.UseEmbedded = opts.WithSeed
	}

	logCfg := logger.DefaultConfig()
	logCfg.Output = "stderr"
	logCfg.Level = "warn"
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}

	s := &stack{cfg: cfg, log: log}

	repo, err := contentinfra.NewMemoryRepositoryFromFS(
		contentinfra.Source(cfg.Content.Dir, cfg.Content.UseEmbedded),
		contentinfra.WithRepositoryLogger(log.Named("content")),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load content records", err)
	}

	// One-shot runs have nothing to share with other processes, so no Redis
	store := cache.NewArtifactStoreFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log.Named("cache"))).CreateInMemoryStore()
	s.closers = append(s.closers, store.Close)

	layout, err := printing.NewHTMLLayout()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load HTML layout", err)
	}
	encoder := opts.encoder
	if encoder == nil {
		encoder, err = printing.NewEncoderFactory(cfg.Encoder, layout, printing.WithFactoryLogger(log.Named("encoder"))).CreateEncoder()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create PDF encoder", err)
		}
	}
	s.closers = append(s.closers, encoder.Close)

	fallbackOpts := []docapp.FallbackOption{docapp.WithFallbackLogger(log.Named("fallback"))}
	if so.withOpener {
		s.opener = printing.NewChromedpOpener(&printing.ChromedpConfig{
			DefaultTimeout: cfg.Encoder.Timeout,
			RemoteURL:      cfg.Encoder.Chrome.RemoteURL,
			NoSandbox:      cfg.Encoder.Chrome.NoSandbox,
			Headful:        true,
			Logger:         log.Named("opener"),
		})
		s.closers = append(s.closers, s.opener.Close)
		fallbackOpts = append(fallbackOpts, docapp.WithOpener(s.opener))
	}

	generator := docapp.NewGenerator(repo, encoder, store,
		docapp.NewErrorReporter(docapp.WithReporterLogger(log.Named("errors"))),
		docapp.WithGeneratorLogger(log.Named("generator")),
	)
	preloader := docapp.NewPreloader(generator, docapp.WithPreloaderLogger(log.Named("preload")))
	s.closers = append(s.closers, func() error { return preloader.Stop(context.Background()) })

	s.service = docapp.NewDocumentService(repo, generator,
		docapp.NewFallbackPrinter(repo, layout, fallbackOpts...),
		preloader,
		docapp.NewBatchPackager(generator,
			docapp.WithBrand(cfg.Batch.Brand),
			docapp.WithConcurrency(cfg.Batch.Concurrency),
			docapp.WithMaxItems(cfg.Batch.MaxItems),
			docapp.WithBatchLogger(log.Named("batch")),
		),
		nil, log)
	return s, nil
}

// Close releases the pipeline in reverse construction order
func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	_ = s.log.Sync()
	return errors.Join(errs...)
}

package document

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultPreloadInterval = 250 * time.Millisecond

// PreloadOptions controls one preload schedule
type PreloadOptions struct {
	// Delay is the idle time before the first step
	Delay time.Duration
	// Variants are warmed for every id, in order; empty uses the preloader default
	Variants []document.Variant
}

// PreloadSummary counts step outcomes of a schedule
type PreloadSummary struct {
	Generated int `json:"generated"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// PreloadHandle controls a running preload schedule
type PreloadHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	steps  int

	generated atomic.Int32
	cached    atomic.Int32
	failed    atomic.Int32
	skipped   atomic.Int32
}

// Cancel stops the steps that have not started yet.
// A step already running completes and fills the cache.
func (h *PreloadHandle) Cancel() {
	h.cancel()
}

// Done is closed once the schedule finished or was cancelled
func (h *PreloadHandle) Done() <-chan struct{} {
	return h.done
}

// Steps returns the number of (id, variant) steps planned
func (h *PreloadHandle) Steps() int {
	return h.steps
}

// Summary returns the step outcomes recorded so far
func (h *PreloadHandle) Summary() PreloadSummary {
	return PreloadSummary{
		Generated: int(h.generated.Load()),
		Cached:    int(h.cached.Load()),
		Failed:    int(h.failed.Load()),
		Skipped:   int(h.skipped.Load()),
	}
}

type preloadStep struct {
	id      string
	variant document.Variant
}

// Preloader speculatively generates artifacts in the background.
// Steps go through the same Generator as user requests, so a user request
// for a key being preloaded joins that generation.
type Preloader struct {
	gen      *Generator
	interval time.Duration
	variants []document.Variant
	metrics  Metrics
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PreloaderOption configures a Preloader
type PreloaderOption func(*Preloader)

// WithPreloadInterval sets the minimum spacing between two steps
func WithPreloadInterval(d time.Duration) PreloaderOption {
	return func(p *Preloader) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDefaultVariants sets the variants warmed when a schedule names none
func WithDefaultVariants(vs ...document.Variant) PreloaderOption {
	return func(p *Preloader) {
		if len(vs) > 0 {
			p.variants = vs
		}
	}
}

// WithPreloaderMetrics sets the metrics sink
func WithPreloaderMetrics(m Metrics) PreloaderOption {
	return func(p *Preloader) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithPreloaderLogger sets the logger
func WithPreloaderLogger(logger *zap.Logger) PreloaderOption {
	return func(p *Preloader) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPreloader creates a Preloader
func NewPreloader(gen *Generator, opts ...PreloaderOption) *Preloader {
	p := &Preloader{
		gen:      gen,
		interval: defaultPreloadInterval,
		variants: []document.Variant{document.OnePage},
		metrics:  NopMetrics{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// Schedule starts warming ids in the given priority order and returns at once
func (p *Preloader) Schedule(ids []string, opts PreloadOptions) *PreloadHandle {
	variants := opts.Variants
	if len(variants) == 0 {
		variants = p.variants
	}
	steps := planSteps(ids, variants)

	ctx, cancel := context.WithCancel(p.ctx)
	h := &PreloadHandle{
		cancel: cancel,
		done:   make(chan struct{}),
		steps:  len(steps),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(h.done)
		defer cancel()
		p.run(ctx, h, steps, opts.Delay)
	}()
	return h
}

// planSteps expands ids x variants in priority order, dropping repeats
func planSteps(ids []string, variants []document.Variant) []preloadStep {
	seen := make(map[preloadStep]struct{}, len(ids)*len(variants))
	steps := make([]preloadStep, 0, len(ids)*len(variants))
	for _, id := range ids {
		for _, v := range variants {
			s := preloadStep{id: id, variant: v}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			steps = append(steps, s)
		}
	}
	return steps
}

func (p *Preloader) run(ctx context.Context, h *PreloadHandle, steps []preloadStep, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			p.skipRemaining(ctx, h, steps)
			return
		}
	}

	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	for i, s := range steps {
		if err := limiter.Wait(ctx); err != nil {
			p.skipRemaining(ctx, h, steps[i:])
			return
		}
		p.step(ctx, h, s)
	}

	p.logger.Debug("preload schedule finished",
		zap.Int("steps", len(steps)),
		zap.Any("summary", h.Summary()))
}

// step runs one generation to completion even if the schedule is cancelled meanwhile
func (p *Preloader) step(ctx context.Context, h *PreloadHandle, s preloadStep) {
	if !s.variant.IsValid() {
		p.record(ctx, h, s, PreloadSkipped)
		return
	}
	version, err := p.gen.repo.ContentVersion(s.id)
	if err != nil {
		p.record(ctx, h, s, PreloadSkipped)
		return
	}
	if p.gen.cache.Contains(document.NewCacheKey(s.id, s.variant, version)) {
		p.record(ctx, h, s, PreloadCached)
		return
	}

	if _, err := p.gen.Generate(context.WithoutCancel(ctx), s.id, s.variant); err != nil {
		p.logger.Debug("preload step failed",
			zap.String("id", s.id),
			zap.String("variant", s.variant.String()),
			zap.Error(err))
		p.record(ctx, h, s, PreloadFailed)
		return
	}
	p.record(ctx, h, s, PreloadGenerated)
}

func (p *Preloader) skipRemaining(ctx context.Context, h *PreloadHandle, steps []preloadStep) {
	for _, s := range steps {
		p.record(ctx, h, s, PreloadSkipped)
	}
	p.logger.Debug("preload schedule cancelled", zap.Int("skipped", len(steps)))
}

func (p *Preloader) record(ctx context.Context, h *PreloadHandle, s preloadStep, outcome string) {
	switch outcome {
	case PreloadGenerated:
		h.generated.Add(1)
	case PreloadCached:
		h.cached.Add(1)
	case PreloadFailed:
		h.failed.Add(1)
	default:
		h.skipped.Add(1)
	}
	p.metrics.RecordPreloadStep(context.WithoutCancel(ctx), s.variant, outcome)
}

// Stop cancels every schedule and waits for running steps to finish
func (p *Preloader) Stop(ctx context.Context) error {
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

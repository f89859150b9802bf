package telemetry

import (
	"context"
	"errors"
	"time"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Ensure PipelineMetrics implements the application metrics port
var _ docapp.Metrics = (*PipelineMetrics)(nil)

// PipelineMetrics records document generation, cache, batch and preload activity
type PipelineMetrics struct {
	logger *zap.Logger

	generationTotal    *Counter
	generationDuration *Histogram
	cacheLookupTotal   *Counter
	batchItemTotal     *Counter
	preloadStepTotal   *Counter
}

// PipelineMetricsConfig holds configuration for pipeline metrics
type PipelineMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewPipelineMetrics creates the pipeline instruments
func NewPipelineMetrics(cfg PipelineMetricsConfig) (*PipelineMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pm := &PipelineMetrics{logger: logger}

	var err error
	pm.generationTotal, err = NewCounter(cfg.Meter,
		"docgen_generation_total",
		"Number of document generations by outcome",
		"{generations}")
	if err != nil {
		return nil, err
	}

	pm.generationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "docgen_generation_duration_seconds",
		Description: "Render and encode duration of one document",
		Unit:        "s",
		Boundaries:  GenerationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	pm.cacheLookupTotal, err = NewCounter(cfg.Meter,
		"docgen_cache_lookup_total",
		"Artifact cache lookups by result",
		"{lookups}")
	if err != nil {
		return nil, err
	}

	pm.batchItemTotal, err = NewCounter(cfg.Meter,
		"docgen_batch_items_total",
		"Batch archive items by outcome",
		"{items}")
	if err != nil {
		return nil, err
	}

	pm.preloadStepTotal, err = NewCounter(cfg.Meter,
		"docgen_preload_steps_total",
		"Preload steps by outcome",
		"{steps}")
	if err != nil {
		return nil, err
	}

	logger.Debug("pipeline metrics initialized")
	return pm, nil
}

// RecordGeneration counts one generation and its duration.
// Failures are labelled with the captured error name.
func (pm *PipelineMetrics) RecordGeneration(ctx context.Context, v document.Variant, backend string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		var ge *document.GenerationError
		if errors.As(err, &ge) && ge.Name != "" {
			outcome = ge.Name
		}
	}
	pm.generationTotal.Inc(ctx,
		AttrVariant.String(v.String()),
		AttrBackend.String(backend),
		AttrOutcome.String(outcome))
	pm.generationDuration.RecordDuration(ctx, d,
		AttrVariant.String(v.String()),
		AttrBackend.String(backend))
}

// RecordCacheLookup counts a cache hit or miss
func (pm *PipelineMetrics) RecordCacheLookup(ctx context.Context, v document.Variant, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pm.cacheLookupTotal.Inc(ctx, AttrVariant.String(v.String()), AttrResult.String(result))
}

// RecordBatch counts the items of a finished batch
func (pm *PipelineMetrics) RecordBatch(ctx context.Context, v document.Variant, succeeded, failed int) {
	if succeeded > 0 {
		pm.batchItemTotal.Add(ctx, int64(succeeded), AttrVariant.String(v.String()), AttrOutcome.String("succeeded"))
	}
	if failed > 0 {
		pm.batchItemTotal.Add(ctx, int64(failed), AttrVariant.String(v.String()), AttrOutcome.String("failed"))
	}
}

// RecordPreloadStep counts one preload step
func (pm *PipelineMetrics) RecordPreloadStep(ctx context.Context, v document.Variant, outcome string) {
	pm.preloadStepTotal.Inc(ctx, AttrVariant.String(v.String()), AttrOutcome.String(outcome))
}

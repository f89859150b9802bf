package document

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	infra "github.com/fichesante/backend/internal/infrastructure/printing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/fichesante/backend/document"

// Result is the outcome of one generation request.
// Exactly one of Artifact and Err is set.
type Result struct {
	Artifact *document.Artifact
	Err      error
}

// Ok reports whether the request produced an artifact
func (r Result) Ok() bool {
	return r.Err == nil && r.Artifact != nil
}

// GenerationError returns the captured failure, if the request failed during generation
func (r Result) GenerationError() (*document.GenerationError, bool) {
	var ge *document.GenerationError
	if errors.As(r.Err, &ge) {
		return ge, true
	}
	return nil, false
}

// Generator is the single per-item pipeline shared by downloads, preloads
// and batches: resolve, look up the cache, then render and encode under the
// cache's in-flight deduplication.
type Generator struct {
	repo     content.Repository
	encoder  infra.Encoder
	cache    ArtifactCache
	reporter *ErrorReporter
	metrics  Metrics
	tracer   trace.Tracer
	clock    func() time.Time
	logger   *zap.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger
func WithGeneratorLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGeneratorMetrics sets the metrics sink
func WithGeneratorMetrics(m Metrics) GeneratorOption {
	return func(g *Generator) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithGeneratorTracer sets the tracer for generation spans (default: the global provider)
func WithGeneratorTracer(tracer trace.Tracer) GeneratorOption {
	return func(g *Generator) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithGeneratorClock sets the clock used to stamp artifacts
func WithGeneratorClock(clock func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGenerator creates a Generator
func NewGenerator(
	repo content.Repository,
	encoder infra.Encoder,
	cache ArtifactCache,
	reporter *ErrorReporter,
	opts ...GeneratorOption,
) *Generator {
	if reporter == nil {
		reporter = NewErrorReporter()
	}
	g := &Generator{
		repo:     repo,
		encoder:  encoder,
		cache:    cache,
		reporter: reporter,
		metrics:  NopMetrics{},
		tracer:   otel.Tracer(tracerName),
		clock:    time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Reporter returns the error reporter fed by the generator
func (g *Generator) Reporter() *ErrorReporter {
	return g.reporter
}

// Generate returns the artifact of (id, v).
//
// Errors are typed: *content.NotFoundError and *document.InvalidVariantError
// are returned before any generation work and are never captured; a failed
// generation is returned as *document.GenerationError; a caller whose ctx
// ends first gets ctx.Err() while the generation keeps running.
func (g *Generator) Generate(ctx context.Context, id string, v document.Variant) (*document.Artifact, error) {
	if !v.IsValid() {
		return nil, &document.InvalidVariantError{Value: string(v)}
	}
	rec, err := g.repo.Resolve(id)
	if err != nil {
		return nil, err
	}

	key := document.NewCacheKey(id, v, rec.ContentVersion)
	if a, ok := g.cache.Get(ctx, key); ok {
		g.metrics.RecordCacheLookup(ctx, v, true)
		g.reporter.Clear(id, v)
		return a, nil
	}
	g.metrics.RecordCacheLookup(ctx, v, false)

	a, joined, err := g.cache.Do(ctx, key, func(genCtx context.Context) (*document.Artifact, error) {
		return g.produce(genCtx, rec, v)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		var ge *document.GenerationError
		if errors.As(err, &ge) {
			return nil, ge
		}
		return nil, g.reporter.Capture(id, v, err)
	}
	if joined {
		g.logger.Debug("joined in-flight generation", zap.String("key", key.String()))
	}
	return a, nil
}

// Result runs Generate and folds its outcome into a Result
func (g *Generator) Result(ctx context.Context, id string, v document.Variant) Result {
	a, err := g.Generate(ctx, id, v)
	return Result{Artifact: a, Err: err}
}

// produce renders and encodes one record. Every failure, including a panic,
// is captured once here so that joined callers share the same record.
func (g *Generator) produce(ctx context.Context, rec *content.Record, v document.Variant) (artifact *document.Artifact, err error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "document.generate", trace.WithAttributes(
		attribute.String("document.id", rec.ID),
		attribute.String("document.variant", v.String()),
		attribute.String("document.content_version", rec.ContentVersion),
		attribute.String("encoder.backend", g.encoder.Name()),
	))
	defer func() {
		if r := recover(); r != nil {
			err = g.reporter.Capture(rec.ID, v, &RecoveredPanic{Value: r, Stack: string(debug.Stack())})
			artifact = nil
		}
		g.metrics.RecordGeneration(ctx, v, g.encoder.Name(), time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("document.bytes", artifact.Size()))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	tree, err := document.Render(rec, v)
	if err != nil {
		return nil, g.reporter.Capture(rec.ID, v, err)
	}
	data, err := g.encoder.Encode(ctx, tree)
	if err != nil {
		return nil, g.reporter.Capture(rec.ID, v, err)
	}
	if len(data) == 0 {
		return nil, g.reporter.Capture(rec.ID, v, infra.NewEncodingError(infra.ErrNameEmptyOutput, "encoder produced no bytes", nil))
	}

	g.reporter.Clear(rec.ID, v)
	g.logger.Info("document generated",
		zap.String("id", rec.ID),
		zap.String("variant", v.String()),
		zap.String("content_version", rec.ContentVersion),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return document.NewArtifact(data, g.clock()), nil
}

// State reports where the current key of (id, v) is in its lifecycle
func (g *Generator) State(id string, v document.Variant) document.KeyState {
	version, err := g.repo.ContentVersion(id)
	if err != nil || !v.IsValid() {
		return document.StateAbsent
	}
	key := document.NewCacheKey(id, v, version)
	switch {
	case g.cache.InFlight(key):
		return document.StateGenerating
	case g.cache.Contains(key):
		return document.StateCached
	}
	if _, failed := g.reporter.LastError(id, v); failed {
		return document.StateFailed
	}
	return document.StateAbsent
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

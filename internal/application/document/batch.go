package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/fichesante/backend/internal/infrastructure/logger"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBrand            = "fichesante"
	defaultBatchConcurrency = 4
	defaultBatchMaxItems    = 100
)

// Names given to batch item failures that never reached the encoder
const (
	ErrNameNotFound     = "NotFound"
	ErrNameCancelled    = "Cancelled"
	ErrNameInvalidInput = "InvalidInput"
)

// BatchRequest asks for one archive of many records
type BatchRequest struct {
	IDs      []string
	Variant  document.Variant
	Category string // empty uses the variant default
}

// BatchResult is the packaged archive and the per-item outcome.
// Every requested position is either an archive entry or a failure.
type BatchResult struct {
	Job         *document.BatchJob
	ArchiveName string
	Archive     []byte
	Entries     []string
	Failures    []*document.GenerationError
	Published   *PublishedArchive
}

// Succeeded returns the number of positions that produced an artifact
func (r *BatchResult) Succeeded() int {
	return len(r.Job.Successes())
}

// BatchPackager zips the artifacts of many records.
// Items run through the same Generator as single downloads.
type BatchPackager struct {
	gen         *Generator
	brand       string
	concurrency int
	maxItems    int
	publisher   ArchivePublisher
	events      shared.EventPublisher
	metrics     Metrics
	clock       func() time.Time
	logger      *zap.Logger
}

// BatchOption configures a BatchPackager
type BatchOption func(*BatchPackager)

// WithBrand sets the brand used in archive names
func WithBrand(brand string) BatchOption {
	return func(b *BatchPackager) {
		if brand != "" {
			b.brand = brand
		}
	}
}

// WithConcurrency bounds the number of items generated at once
func WithConcurrency(n int) BatchOption {
	return func(b *BatchPackager) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithMaxItems bounds the number of ids in one request
func WithMaxItems(n int) BatchOption {
	return func(b *BatchPackager) {
		if n > 0 {
			b.maxItems = n
		}
	}
}

// WithArchivePublisher publishes every archive after packaging
func WithArchivePublisher(p ArchivePublisher) BatchOption {
	return func(b *BatchPackager) {
		b.publisher = p
	}
}

// WithBatchEvents sets the analytics publisher
func WithBatchEvents(p shared.EventPublisher) BatchOption {
	return func(b *BatchPackager) {
		if p != nil {
			b.events = p
		}
	}
}

// WithBatchMetrics sets the metrics sink
func WithBatchMetrics(m Metrics) BatchOption {
	return func(b *BatchPackager) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithBatchClock sets the clock used for job dates
func WithBatchClock(clock func() time.Time) BatchOption {
	return func(b *BatchPackager) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithBatchLogger sets the logger
func WithBatchLogger(logger *zap.Logger) BatchOption {
	return func(b *BatchPackager) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatchPackager creates a BatchPackager
func NewBatchPackager(gen *Generator, opts ...BatchOption) *BatchPackager {
	b := &BatchPackager{
		gen:         gen,
		brand:       defaultBrand,
		concurrency: defaultBatchConcurrency,
		maxItems:    defaultBatchMaxItems,
		events:      shared.NopPublisher{},
		metrics:     NopMetrics{},
		clock:       time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PackageZip generates every requested record and zips the successes.
// Item failures are recorded in the result and never abort the batch; an
// error is returned only for a request that cannot be started.
func (b *BatchPackager) PackageZip(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.IDs) > b.maxItems {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("a batch accepts at most %d ids, got %d", b.maxItems, len(req.IDs)))
	}
	job, err := document.NewBatchJob(req.IDs, req.Variant, req.Category, b.clock())
	if err != nil {
		return nil, err
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for pos, id := range job.IDs {
		g.Go(func() error {
			a, err := b.gen.Generate(ctx, id, job.Variant)
			if err != nil {
				return job.Record(pos, nil, b.itemError(id, job.Variant, err))
			}
			return job.Record(pos, a, nil)
		})
	}
	// Record only fails for an out-of-range position
	if err := g.Wait(); err != nil {
		return nil, err
	}

	archive, entries, err := writeArchive(job)
	if err != nil {
		return nil, fmt.Errorf("failed to write batch archive: %w", err)
	}

	result := &BatchResult{
		Job:         job,
		ArchiveName: job.ArchiveName(b.brand),
		Archive:     archive,
		Entries:     entries,
		Failures:    job.Failures(),
	}

	log := logger.L(ctx, b.logger)
	if b.publisher != nil {
		published, err := b.publisher.Publish(ctx, &ArchiveUpload{
			JobID: job.JobID,
			Name:  result.ArchiveName,
			Data:  archive,
		})
		if err != nil {
			log.Warn("failed to publish batch archive",
				zap.String("job_id", job.JobID.String()),
				zap.String("archive", result.ArchiveName),
				zap.Error(err))
		} else {
			result.Published = published
		}
	}

	succeeded := result.Succeeded()
	b.metrics.RecordBatch(ctx, job.Variant, succeeded, len(result.Failures))
	b.events.Publish(ctx, document.NewBatchCompletedEvent(job, result.ArchiveName))
	log.Info("batch packaged",
		zap.String("job_id", job.JobID.String()),
		zap.String("archive", result.ArchiveName),
		zap.Int("requested", len(job.IDs)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(result.Failures)),
		zap.Int("bytes", len(archive)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// itemError turns a Generate error into the recorded failure of a position.
// Only generation failures went through the ErrorReporter.
func (b *BatchPackager) itemError(id string, v document.Variant, err error) *document.GenerationError {
	var ge *document.GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	name := ErrNameInvalidInput
	switch {
	case IsNotFound(err):
		name = ErrNameNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		name = ErrNameCancelled
	}
	return &document.GenerationError{
		ID:         id,
		Variant:    v,
		Name:       name,
		Message:    err.Error(),
		OccurredAt: b.clock(),
	}
}

// writeArchive zips the successful positions in request order.
// A repeated id is written once.
func writeArchive(job *document.BatchJob) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := make(map[string]struct{})
	entries := make([]string, 0, len(job.Results))
	for _, r := range job.Successes() {
		name := job.Variant.FileName(r.ID)
		if _, dup := written[name]; dup {
			continue
		}
		written[name] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: job.CreatedAt,
		})
		if err != nil {
			return nil, nil, err
		}
		if _, err := r.Artifact.WriteTo(w); err != nil {
			return nil, nil, err
		}
		entries = append(entries, name)
	}
	if err := zw.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), entries, nil
}

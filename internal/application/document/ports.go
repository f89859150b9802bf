package document

import (
	"context"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
)

// ArtifactCache is the artifact store used by the pipeline.
// *cache.ArtifactStore is the production implementation.
type ArtifactCache interface {
	Get(ctx context.Context, key document.CacheKey) (*document.Artifact, bool)
	Put(ctx context.Context, key document.CacheKey, artifact *document.Artifact)
	Do(ctx context.Context, key document.CacheKey, generate cache.GenerateFunc) (*document.Artifact, bool, error)
	Contains(key document.CacheKey) bool
	InFlight(key document.CacheKey) bool
	Invalidate(ctx context.Context, id string) int
}

var _ ArtifactCache = (*cache.ArtifactStore)(nil)

// BrowsingContextOpener opens printable HTML for the user.
// Open returns an error when no context could be opened, e.g. a blocked popup.
type BrowsingContextOpener interface {
	Open(ctx context.Context, html string, autoPrint bool, settle time.Duration) error
}

// ArchiveUpload is a batch archive handed to a publisher
type ArchiveUpload struct {
	JobID uuid.UUID
	Name  string
	Data  []byte
}

// PublishedArchive describes where a published archive can be downloaded
type PublishedArchive struct {
	Key       string
	URL       string
	ExpiresAt time.Time // zero when the URL does not expire
	Size      int64
}

// ArchivePublisher stores batch archives outside the process
type ArchivePublisher interface {
	Publish(ctx context.Context, upload *ArchiveUpload) (*PublishedArchive, error)
}

// Metrics receives pipeline measurements
type Metrics interface {
	RecordGeneration(ctx context.Context, v document.Variant, backend string, d time.Duration, err error)
	RecordCacheLookup(ctx context.Context, v document.Variant, hit bool)
	RecordBatch(ctx context.Context, v document.Variant, succeeded, failed int)
	RecordPreloadStep(ctx context.Context, v document.Variant, outcome string)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) RecordGeneration(context.Context, document.Variant, string, time.Duration, error) {}
func (NopMetrics) RecordCacheLookup(context.Context, document.Variant, bool)                        {}
func (NopMetrics) RecordBatch(context.Context, document.Variant, int, int)                          {}
func (NopMetrics) RecordPreloadStep(context.Context, document.Variant, string)                      {}

// Preload step outcomes
const (
	PreloadGenerated = "generated"
	PreloadCached    = "cached"
	PreloadFailed    = "failed"
	PreloadSkipped   = "skipped"
)

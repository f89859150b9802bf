package document_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	app "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/fichesante/backend/internal/infrastructure/cache"
	contentinfra "github.com/fichesante/backend/internal/infrastructure/content"
	"github.com/fichesante/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) Encode(ctx context.Context, tree *document.Tree) ([]byte, error) {
	args := m.Called(ctx, tree)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockEncoder) Name() string {
	return "mock"
}

func (m *MockEncoder) Close() error {
	return nil
}

type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(ctx context.Context, html string, autoPrint bool, settle time.Duration) error {
	args := m.Called(ctx, html, autoPrint, settle)
	return args.Error(0)
}

type MockArchivePublisher struct {
	mock.Mock
}

func (m *MockArchivePublisher) Publish(ctx context.Context, upload *app.ArchiveUpload) (*app.PublishedArchive, error) {
	args := m.Called(ctx, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.PublishedArchive), args.Error(1)
}

// fakeEncoder writes a small deterministic payload per tree and counts calls.
// When gate is set every call blocks until it is closed.
type fakeEncoder struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (e *fakeEncoder) Encode(ctx context.Context, tree *document.Tree) ([]byte, error) {
	e.calls.Add(1)
	if e.gate != nil {
		<-e.gate
	}
	return []byte(fmt.Sprintf("%%PDF-1.4 %s %s %s", tree.ID, tree.Variant, tree.ContentVersion)), nil
}

func (e *fakeEncoder) Name() string { return "fake" }
func (e *fakeEncoder) Close() error { return nil }
func (e *fakeEncoder) Calls() int   { return int(e.calls.Load()) }
func (e *fakeEncoder) Release()     { close(e.gate) }

func newGatedEncoder() *fakeEncoder {
	return &fakeEncoder{gate: make(chan struct{})}
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) Last() shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

// =============================================================================
// Fixtures
// =============================================================================

var fixedNow = time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func testRecord(id string, recs, flags int) *content.Record {
	rec := &content.Record{
		ID:             id,
		Title:          "Fiche " + id,
		Category:       "rhumatologie",
		UpdatedAt:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Summary:        "Résumé de la fiche " + id,
		ContentVersion: "v1",
		Sources: []content.Source{
			{Title: "Recommandations de bonne pratique", Org: "HAS", Year: 2023, URL: "https://www.has-sante.fr/"},
		},
	}
	for i := 0; i < recs; i++ {
		rec.Recommendations = append(rec.Recommendations, content.Recommendation{
			Text: fmt.Sprintf("Recommandation numéro %d", i+1), Strength: content.StrengthB,
		})
	}
	for i := 0; i < flags; i++ {
		rec.RedFlags = append(rec.RedFlags, fmt.Sprintf("Signal d'alerte %d", i+1))
	}
	return rec
}

type fixture struct {
	repo     *contentinfra.MemoryRepository
	store    *cache.ArtifactStore
	reporter *app.ErrorReporter
	gen      *app.Generator
}

func newFixture(t *testing.T, encoder printing.Encoder, records ...*content.Record) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if len(records) == 0 {
		records = []*content.Record{testRecord("valid-a", 3, 2), testRecord("valid-b", 3, 2)}
	}
	repo := contentinfra.NewMemoryRepository(records)
	store := cache.NewArtifactStore(16, cache.WithStoreLogger(logger))
	reporter := app.NewErrorReporter(app.WithReporterClock(fixedClock))
	gen := app.NewGenerator(repo, encoder, store, reporter,
		app.WithGeneratorLogger(logger),
		app.WithGeneratorClock(fixedClock))
	return &fixture{repo: repo, store: store, reporter: reporter, gen: gen}
}

package document

import (
	"context"
	"time"

	"github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ContentTypePDF is the media type of every artifact
const ContentTypePDF = "application/pdf"

// DocumentService is the entry point used by the HTTP handlers and the CLI
type DocumentService struct {
	repo      content.Repository
	generator *Generator
	fallback  *FallbackPrinter
	preloader *Preloader
	batches   *BatchPackager
	events    shared.EventPublisher
	logger    *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	repo content.Repository,
	generator *Generator,
	fallback *FallbackPrinter,
	preloader *Preloader,
	batches *BatchPackager,
	events shared.EventPublisher,
	logger *zap.Logger,
) *DocumentService {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:      repo,
		generator: generator,
		fallback:  fallback,
		preloader: preloader,
		batches:   batches,
		events:    events,
		logger:    logger,
	}
}

// =============================================================================
// Document Operations
// =============================================================================

// HasArtifact reports whether an artifact can be produced for id,
// i.e. whether a content record exists. It does not generate anything.
func (s *DocumentService) HasArtifact(id string) bool {
	return s.repo.Exists(id)
}

// Count returns the number of loaded documents
func (s *DocumentService) Count() int {
	return len(s.repo.IDs())
}

// ListDocuments returns every document in identifier order
func (s *DocumentService) ListDocuments() []DocumentResponse {
	ids := s.repo.IDs()
	out := make([]DocumentResponse, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(id)
		if err != nil {
			// removed by a concurrent reload
			continue
		}
		out = append(out, *doc)
	}
	return out
}

// GetDocument describes one document and the state of its variants
func (s *DocumentService) GetDocument(id string) (*DocumentResponse, error) {
	rec, err := s.repo.Resolve(id)
	if err != nil {
		return nil, err
	}
	resp := &DocumentResponse{
		ID:             rec.ID,
		Title:          rec.Title,
		Category:       rec.Category,
		UpdatedAt:      rec.UpdatedAt,
		ContentVersion: rec.ContentVersion,
		Variants:       make([]VariantStatus, 0, 2),
	}
	for _, v := range document.AllVariants() {
		resp.Variants = append(resp.Variants, VariantStatus{
			Variant:     v.String(),
			DisplayName: v.DisplayName(),
			FileName:    v.FileName(id),
			State:       s.generator.State(id, v).String(),
		})
	}
	return resp, nil
}

// Download returns the artifact of (id, v), generating it if needed.
// A failed generation is returned as *document.GenerationError.
func (s *DocumentService) Download(ctx context.Context, id string, v document.Variant) (*DownloadResponse, error) {
	a, err := s.generator.Generate(ctx, id, v)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, document.NewDocumentDownloadedEvent(id, v, a))
	return &DownloadResponse{
		FileName:    v.FileName(id),
		ContentType: ContentTypePDF,
		Artifact:    a,
	}, nil
}

// Preview opens the printable version of (id, v) without forcing the print dialog
func (s *DocumentService) Preview(ctx context.Context, id string, v document.Variant) bool {
	return s.fallback.Open(ctx, id, v, false)
}

// Print opens the printable version of (id, v) and triggers the print dialog
func (s *DocumentService) Print(ctx context.Context, id string, v document.Variant) bool {
	return s.fallback.Open(ctx, id, v, true)
}

// PreviewHTML returns the printable HTML of (id, v).
// With autoPrint the page opens the print dialog itself.
func (s *DocumentService) PreviewHTML(ctx context.Context, id string, v document.Variant, autoPrint bool) string {
	html := s.fallback.PrintableHTML(id, v, autoPrint)
	if autoPrint {
		s.events.Publish(ctx, document.NewPrintRequestedEvent(id, v, true, true))
	}
	return html
}

// State reports the generation state of (id, v)
func (s *DocumentService) State(id string, v document.Variant) document.KeyState {
	return s.generator.State(id, v)
}

// =============================================================================
// Error Operations
// =============================================================================

// LastError returns the last generation failure of (id, v)
func (s *DocumentService) LastError(id string, v document.Variant) (*document.GenerationError, bool) {
	return s.generator.Reporter().LastError(id, v)
}

// DismissError clears the last generation failure of (id, v)
func (s *DocumentService) DismissError(id string, v document.Variant) bool {
	return s.generator.Reporter().Clear(id, v)
}

// =============================================================================
// Batch and Preload Operations
// =============================================================================

// PackageZip packages many documents into one archive
func (s *DocumentService) PackageZip(ctx context.Context, req PackageZipRequest) (*BatchResult, error) {
	v, err := document.ParseVariant(req.Variant)
	if err != nil {
		return nil, err
	}
	return s.batches.PackageZip(ctx, BatchRequest{
		IDs:      req.IDs,
		Variant:  v,
		Category: req.Category,
	})
}

// Preload schedules speculative generation of the requested documents
func (s *DocumentService) Preload(req PreloadRequest) (*PreloadHandle, error) {
	variants := make([]document.Variant, 0, len(req.Variants))
	for _, raw := range req.Variants {
		v, err := document.ParseVariant(raw)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return s.preloader.Schedule(req.IDs, PreloadOptions{
		Delay:    time.Duration(req.DelayMS) * time.Millisecond,
		Variants: variants,
	}), nil
}

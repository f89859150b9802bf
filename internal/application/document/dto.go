package document

import (
	"time"

	"github.com/fichesante/backend/internal/domain/document"
)

// =============================================================================
// Document DTOs
// =============================================================================

// VariantStatus is the state of one variant of a document
type VariantStatus struct {
	Variant     string `json:"variant"`
	DisplayName string `json:"display_name"`
	FileName    string `json:"file_name"`
	State       string `json:"state"`
}

// DocumentResponse describes a document that can be generated
type DocumentResponse struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Category       string          `json:"category,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ContentVersion string          `json:"content_version"`
	Variants       []VariantStatus `json:"variants"`
}

// DownloadResponse carries a generated artifact and how to name it
type DownloadResponse struct {
	FileName    string
	ContentType string
	Artifact    *document.Artifact
}

// ErrorResponse is the diagnostic of the last failed generation
type ErrorResponse struct {
	Diagnostic document.Diagnostic `json:"diagnostic"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// =============================================================================
// Batch DTOs
// =============================================================================

// PackageZipRequest represents a request to package many documents
type PackageZipRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1"`
	Variant  string   `json:"variant" binding:"required"`
	Category string   `json:"category" binding:"omitempty,max=64"`
}

// BatchFailure is one failed position of a batch
type BatchFailure struct {
	Position   int                 `json:"position"`
	Diagnostic document.Diagnostic `json:"diagnostic"`
}

// =============================================================================
// Preload DTOs
// =============================================================================

// PreloadRequest represents a request to warm the cache
type PreloadRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1"`
	Variants []string `json:"variants"`
	DelayMS  int      `json:"delay_ms" binding:"min=0,max=60000"`
}

// PreloadResponse acknowledges a scheduled preload
type PreloadResponse struct {
	Steps int `json:"steps"`
}

// ToErrorResponse converts a GenerationError to its response
func ToErrorResponse(e *document.GenerationError) ErrorResponse {
	return ErrorResponse{
		Diagnostic: e.Diagnostic(),
		OccurredAt: e.OccurredAt,
	}
}

// ToBatchFailures lists the failed positions of a batch in request order
func ToBatchFailures(job *document.BatchJob) []BatchFailure {
	out := make([]BatchFailure, 0)
	for _, r := range job.Results {
		if r.Err != nil {
			out = append(out, BatchFailure{Position: r.Position, Diagnostic: r.Err.Diagnostic()})
		}
	}
	return out
}

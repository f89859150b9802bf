package document

import (
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Subject types of the document events
const (
	SubjectDocument = "Document"
	SubjectBatch    = "Batch"
)

// Event type constants
const (
	EventTypeDocumentDownloaded = "DocumentDownloaded"
	EventTypePrintRequested     = "PrintRequested"
	EventTypeBatchCompleted     = "BatchCompleted"
)

// DocumentDownloadedEvent is published after an artifact was handed to a caller
type DocumentDownloadedEvent struct {
	shared.BaseEvent
	Variant     Variant `json:"variant"`
	Size        int     `json:"size"`
	Fingerprint string  `json:"fingerprint"`
}

// NewDocumentDownloadedEvent creates a new DocumentDownloadedEvent
func NewDocumentDownloadedEvent(id string, v Variant, a *Artifact) *DocumentDownloadedEvent {
	return &DocumentDownloadedEvent{
		BaseEvent:   shared.NewBaseEvent(EventTypeDocumentDownloaded, SubjectDocument, id),
		Variant:     v,
		Size:        a.Size(),
		Fingerprint: a.Fingerprint(),
	}
}

// PrintRequestedEvent is published when the printable fallback is requested
type PrintRequestedEvent struct {
	shared.BaseEvent
	Variant   Variant `json:"variant"`
	AutoPrint bool    `json:"auto_print"`
	Opened    bool    `json:"opened"`
}

// NewPrintRequestedEvent creates a new PrintRequestedEvent
func NewPrintRequestedEvent(id string, v Variant, autoPrint, opened bool) *PrintRequestedEvent {
	return &PrintRequestedEvent{
		BaseEvent: shared.NewBaseEvent(EventTypePrintRequested, SubjectDocument, id),
		Variant:   v,
		AutoPrint: autoPrint,
		Opened:    opened,
	}
}

// BatchCompletedEvent is published when a batch archive was assembled
type BatchCompletedEvent struct {
	shared.BaseEvent
	JobID       uuid.UUID `json:"job_id"`
	Variant     Variant   `json:"variant"`
	Category    string    `json:"category"`
	Requested   int       `json:"requested"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	ArchiveName string    `json:"archive_name"`
}

// NewBatchCompletedEvent creates a new BatchCompletedEvent
func NewBatchCompletedEvent(job *BatchJob, archiveName string) *BatchCompletedEvent {
	succeeded := len(job.Successes())
	return &BatchCompletedEvent{
		BaseEvent:   shared.NewBaseEvent(EventTypeBatchCompleted, SubjectBatch, job.JobID.String()),
		JobID:       job.JobID,
		Variant:     job.Variant,
		Category:    job.Category,
		Requested:   len(job.IDs),
		Succeeded:   succeeded,
		Failed:      len(job.IDs) - succeeded,
		ArchiveName: archiveName,
	}
}

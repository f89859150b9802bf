package event

import (
	"context"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LogHandler writes every analytics event to the structured log
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a new LogHandler
func NewLogHandler(logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{logger: logger.Named("analytics")}
}

// EventTypes returns nil so the handler receives all events
func (h *LogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event with its type-specific fields
func (h *LogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("subject_type", event.SubjectType()),
		zap.String("subject_id", event.SubjectID()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *document.DocumentDownloadedEvent:
		fields = append(fields,
			zap.String("variant", e.Variant.String()),
			zap.Int("size", e.Size),
			zap.String("fingerprint", e.Fingerprint))
	case *document.PrintRequestedEvent:
		fields = append(fields,
			zap.String("variant", e.Variant.String()),
			zap.Bool("auto_print", e.AutoPrint),
			zap.Bool("opened", e.Opened))
	case *document.BatchCompletedEvent:
		fields = append(fields,
			zap.String("variant", e.Variant.String()),
			zap.String("category", e.Category),
			zap.Int("requested", e.Requested),
			zap.Int("succeeded", e.Succeeded),
			zap.Int("failed", e.Failed),
			zap.String("archive", e.ArchiveName))
	}

	h.logger.Info("analytics event", fields...)
	return nil
}

var _ shared.EventHandler = (*LogHandler)(nil)

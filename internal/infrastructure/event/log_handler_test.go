package event

import (
	"context"
	"testing"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogHandler_Handle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLogHandler(zap.New(core))
	assert.Nil(t, h.EventTypes())

	job, err := document.NewBatchJob([]string{"a", "b"}, document.OnePage, "", time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, document.NewPrintRequestedEvent("gonarthrose", document.FourPages, true, false)))
	require.NoError(t, h.Handle(ctx, document.NewBatchCompletedEvent(job, "fichesante-fiches-2024-03-12.zip")))
	require.NoError(t, h.Handle(ctx, newTestEvent("Custom")))

	entries := logs.FilterMessage("analytics event").All()
	require.Len(t, entries, 3)

	printed := entries[0].ContextMap()
	assert.Equal(t, document.EventTypePrintRequested, printed["event_type"])
	assert.Equal(t, "gonarthrose", printed["subject_id"])
	assert.Equal(t, "4pages", printed["variant"])
	assert.Equal(t, true, printed["auto_print"])
	assert.Equal(t, false, printed["opened"])

	batch := entries[1].ContextMap()
	assert.Equal(t, int64(2), batch["requested"])
	assert.Equal(t, "fichesante-fiches-2024-03-12.zip", batch["archive"])

	assert.Equal(t, "Custom", entries[2].ContextMap()["event_type"])
	assert.Equal(t, "analytics", entries[2].LoggerName)
}

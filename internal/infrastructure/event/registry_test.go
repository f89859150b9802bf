package event

import (
	"testing"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRegistry(t *testing.T) {
	downloads := newTestHandler()
	all := newTestHandler()
	batches := newTestHandler()

	r := NewHandlerRegistry()
	r.Register(downloads, document.EventTypeDocumentDownloaded)
	r.Register(all)
	r.Register(batches, document.EventTypeBatchCompleted)
	require.Equal(t, 3, r.Len())

	got := r.Handlers(document.EventTypeDocumentDownloaded)
	require.Len(t, got, 2)
	assert.Same(t, downloads, got[0])
	assert.Same(t, all, got[1])

	got = r.Handlers(document.EventTypePrintRequested)
	require.Len(t, got, 1)
	assert.Same(t, all, got[0])

	t.Run("registering again widens the subscription", func(t *testing.T) {
		r.Register(downloads, document.EventTypePrintRequested, document.EventTypeDocumentDownloaded)
		assert.Equal(t, 3, r.Len())
		assert.Len(t, r.Handlers(document.EventTypePrintRequested), 2)
		assert.Len(t, r.Handlers(document.EventTypeDocumentDownloaded), 2)
	})

	t.Run("unregister", func(t *testing.T) {
		r.Unregister(all)
		assert.Equal(t, 2, r.Len())
		assert.Empty(t, r.Handlers("Unknown"))
		assert.Len(t, r.Handlers(document.EventTypeBatchCompleted), 1)
	})
}

func TestHandlerRegistry_SnapshotIsStable(t *testing.T) {
	h := newTestHandler()
	r := NewHandlerRegistry()
	r.Register(h)

	snapshot := r.Handlers(document.EventTypeBatchCompleted)
	r.Unregister(h)

	assert.Len(t, snapshot, 1)
	assert.Empty(t, r.Handlers(document.EventTypeBatchCompleted))
}

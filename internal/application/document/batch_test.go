package document_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	app "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newPackager(t *testing.T, gen *app.Generator, opts ...app.BatchOption) *app.BatchPackager {
	t.Helper()
	opts = append([]app.BatchOption{
		app.WithBatchClock(fixedClock),
		app.WithBatchLogger(zaptest.NewLogger(t)),
	}, opts...)
	return app.NewBatchPackager(gen, opts...)
}

func zipEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = body
	}
	return out
}

func TestBatchPackager_PartialFailure(t *testing.T) {
	enc := &fakeEncoder{}
	f := newFixture(t, enc)
	events := &recordingPublisher{}
	b := newPackager(t, f.gen, app.WithBatchEvents(events))

	res, err := b.PackageZip(context.Background(), app.BatchRequest{
		IDs:     []string{"valid-a", "unknown-x", "valid-b"},
		Variant: document.OnePage,
	})
	require.NoError(t, err)

	assert.Equal(t, "fichesante-fiches-2024-03-12.zip", res.ArchiveName)
	assert.Equal(t, []string{"valid-a-1page.pdf", "valid-b-1page.pdf"}, res.Entries)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "unknown-x", res.Failures[0].ID)
	assert.Equal(t, app.ErrNameNotFound, res.Failures[0].Name)
	assert.Equal(t, 2, res.Succeeded())
	assert.Equal(t, len(res.Job.IDs), res.Succeeded()+len(res.Failures))

	entries := zipEntries(t, res.Archive)
	require.Len(t, entries, 2)
	assert.Equal(t, "%PDF-1.4 valid-a 1page v1", string(entries["valid-a-1page.pdf"]))

	// not-found items never reach the reporter
	assert.Zero(t, f.reporter.Len())

	ev, ok := events.Last().(*document.BatchCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, 3, ev.Requested)
	assert.Equal(t, 2, ev.Succeeded)
	assert.Equal(t, 1, ev.Failed)
	assert.Equal(t, res.ArchiveName, ev.ArchiveName)
}

func TestBatchPackager_ZeroSuccesses(t *testing.T) {
	enc := new(MockEncoder)
	enc.On("Encode", mock.Anything, mock.Anything).Return(nil, errors.New("printer on fire"))
	f := newFixture(t, enc)
	b := newPackager(t, f.gen, app.WithBrand("santeplus"))

	res, err := b.PackageZip(context.Background(), app.BatchRequest{
		IDs:      []string{"valid-a", "inconnue"},
		Variant:  document.FourPages,
		Category: "rhumatologie",
	})
	require.NoError(t, err)

	assert.Equal(t, "santeplus-rhumatologie-2024-03-12.zip", res.ArchiveName)
	assert.Empty(t, res.Entries)
	assert.Empty(t, zipEntries(t, res.Archive))
	require.Len(t, res.Failures, 2)
	assert.Equal(t, app.ErrNameGeneric, res.Failures[0].Name)
	assert.Equal(t, "printer on fire", res.Failures[0].Message)
	assert.Equal(t, app.ErrNameNotFound, res.Failures[1].Name)

	// generation failures are reported like single downloads
	_, ok := f.reporter.LastError("valid-a", document.FourPages)
	assert.True(t, ok)
}

func TestBatchPackager_DuplicateIDsWrittenOnce(t *testing.T) {
	enc := &fakeEncoder{}
	f := newFixture(t, enc)
	b := newPackager(t, f.gen)

	res, err := b.PackageZip(context.Background(), app.BatchRequest{
		IDs:     []string{"valid-a", "valid-a", "valid-b"},
		Variant: document.FourPages,
	})
	require.NoError(t, err)

	assert.Equal(t, "fichesante-guides-2024-03-12.zip", res.ArchiveName)
	assert.Equal(t, 3, res.Succeeded())
	assert.Empty(t, res.Failures)

	names := make([]string, 0)
	for name := range zipEntries(t, res.Archive) {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"valid-a-4pages.pdf", "valid-b-4pages.pdf"}, names)
	assert.Equal(t, 2, enc.Calls())
}

func TestBatchPackager_RejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, &fakeEncoder{})
	b := newPackager(t, f.gen, app.WithMaxItems(2))

	_, err := b.PackageZip(context.Background(), app.BatchRequest{
		IDs:     []string{"a", "b", "c"},
		Variant: document.OnePage,
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = b.PackageZip(context.Background(), app.BatchRequest{
		IDs:     []string{"valid-a"},
		Variant: document.Variant("poster"),
	})
	var iv *document.InvalidVariantError
	assert.True(t, errors.As(err, &iv))
}

func TestBatchPackager_Publish(t *testing.T) {
	t.Run("attaches the published archive", func(t *testing.T) {
		f := newFixture(t, &fakeEncoder{})
		publisher := new(MockArchivePublisher)
		published := &app.PublishedArchive{Key: "batches/2024/03/x.zip", URL: "https://cdn.example/x.zip"}
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(u *app.ArchiveUpload) bool {
			return u.Name == "fichesante-fiches-2024-03-12.zip" && len(u.Data) > 0
		})).Return(published, nil)

		b := newPackager(t, f.gen, app.WithArchivePublisher(publisher))
		res, err := b.PackageZip(context.Background(), app.BatchRequest{IDs: []string{"valid-a"}, Variant: document.OnePage})
		require.NoError(t, err)
		assert.Same(t, published, res.Published)
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure keeps the archive", func(t *testing.T) {
		f := newFixture(t, &fakeEncoder{})
		publisher := new(MockArchivePublisher)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("bucket unavailable"))

		b := newPackager(t, f.gen, app.WithArchivePublisher(publisher))
		res, err := b.PackageZip(context.Background(), app.BatchRequest{IDs: []string{"valid-a"}, Variant: document.OnePage})
		require.NoError(t, err)
		assert.Nil(t, res.Published)
		assert.Len(t, zipEntries(t, res.Archive), 1)
	})
}

func TestToBatchFailures(t *testing.T) {
	f := newFixture(t, &fakeEncoder{})
	b := newPackager(t, f.gen)

	res, err := b.PackageZip(context.Background(), app.BatchRequest{
		IDs:     []string{"inconnue", "valid-a", "absente"},
		Variant: document.OnePage,
	})
	require.NoError(t, err)

	failures := app.ToBatchFailures(res.Job)
	require.Len(t, failures, 2)
	assert.Equal(t, 0, failures[0].Position)
	assert.Equal(t, "inconnue", failures[0].Diagnostic.Slug)
	assert.Equal(t, 2, failures[1].Position)
	assert.Equal(t, "absente", failures[1].Diagnostic.Slug)
}

package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newFSPublisher(t *testing.T) (*FileSystemArchivePublisher, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := NewFileSystemArchivePublisher(&FileSystemConfig{
		BasePath: dir,
		BaseURL:  "https://docs.example.com/api/v1/archives/",
		Logger:   zaptest.NewLogger(t),
		Clock:    testClock,
	})
	require.NoError(t, err)
	return p, dir
}

func TestNewFileSystemArchivePublisher_CreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archives")
	_, err := NewFileSystemArchivePublisher(&FileSystemConfig{BasePath: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileSystemArchivePublisher_PublishAndOpen(t *testing.T) {
	p, dir := newFSPublisher(t)
	ctx := context.Background()
	data := []byte("PK\x03\x04archive")

	published, err := p.Publish(ctx, &docapp.ArchiveUpload{JobID: testJobID, Name: "fichesante-fiches-2024-03-12.zip", Data: data})
	require.NoError(t, err)

	wantKey := "2024/03/" + testJobID.String() + "/fichesante-fiches-2024-03-12.zip"
	assert.Equal(t, wantKey, published.Key)
	assert.Equal(t, "https://docs.example.com/api/v1/archives/"+wantKey, published.URL)
	assert.Equal(t, int64(len(data)), published.Size)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(wantKey)))

	rc, size, err := p.Open(ctx, wantKey)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), size)
}

func TestFileSystemArchivePublisher_OpenErrors(t *testing.T) {
	p, _ := newFSPublisher(t)
	ctx := context.Background()

	t.Run("missing archive", func(t *testing.T) {
		_, _, err := p.Open(ctx, "2024/03/none.zip")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := p.Publish(ctx, &docapp.ArchiveUpload{JobID: testJobID, Name: "a.zip", Data: []byte("x")})
		require.NoError(t, err)
		_, _, err = p.Open(ctx, "2024/03")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	for _, path := range []string{"", "../secret.zip", "2024/../../etc/passwd", "/etc/passwd"} {
		t.Run("rejects "+path, func(t *testing.T) {
			_, _, err := p.Open(ctx, path)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestFileSystemArchivePublisher_Delete(t *testing.T) {
	p, dir := newFSPublisher(t)
	ctx := context.Background()

	published, err := p.Publish(ctx, &docapp.ArchiveUpload{JobID: testJobID, Name: "a.zip", Data: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, published.Key))
	assert.NoFileExists(t, filepath.Join(dir, filepath.FromSlash(published.Key)))
	assert.NoError(t, p.Delete(ctx, published.Key))
	assert.ErrorIs(t, p.Delete(ctx, "../a.zip"), ErrInvalidPath)
}

func TestFileSystemArchivePublisher_CleanupOlderThan(t *testing.T) {
	p, dir := newFSPublisher(t)
	ctx := context.Background()

	old, err := p.Publish(ctx, &docapp.ArchiveUpload{JobID: testJobID, Name: "old.zip", Data: []byte("x")})
	require.NoError(t, err)
	fresh, err := p.Publish(ctx, &docapp.ArchiveUpload{JobID: testJobID, Name: "fresh.zip", Data: []byte("y")})
	require.NoError(t, err)
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("keep"), 0644))

	stale := testNow.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, filepath.FromSlash(old.Key)), stale, stale))
	require.NoError(t, os.Chtimes(filepath.Join(dir, filepath.FromSlash(fresh.Key)), testNow, testNow))
	require.NoError(t, os.Chtimes(notes, stale, stale))

	deleted, err := p.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, filepath.Join(dir, filepath.FromSlash(old.Key)))
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(fresh.Key)))
	assert.FileExists(t, notes)
}

func TestContainsDotDot(t *testing.T) {
	assert.True(t, containsDotDot("../a"))
	assert.True(t, containsDotDot("a/../b"))
	assert.False(t, containsDotDot("a/..b/c"))
	assert.False(t, containsDotDot("2024/03/a.zip"))
}

package content

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	domain "github.com/fichesante/backend/internal/domain/content"
	"github.com/fichesante/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSeedRepository(t *testing.T) *MemoryRepository {
	t.Helper()
	repo, err := NewMemoryRepositoryFromFS(SeedFS(), WithRepositoryLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return repo
}

func TestMemoryRepository_Lookup(t *testing.T) {
	repo := newSeedRepository(t)

	assert.True(t, repo.Exists("gonarthrose"))
	assert.False(t, repo.Exists("Gonarthrose"))
	assert.False(t, repo.Exists(" gonarthrose"))
	assert.Equal(t, []string{"entorse-cheville", "gonarthrose", "lombalgie"}, repo.IDs())

	rec, err := repo.Resolve("gonarthrose")
	require.NoError(t, err)
	assert.Equal(t, "gonarthrose", rec.ID)

	version, err := repo.ContentVersion("gonarthrose")
	require.NoError(t, err)
	assert.Equal(t, "2024.03.12-1", version)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := newSeedRepository(t)

	_, err := repo.Resolve("inconnue")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "inconnue", nf.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = repo.ContentVersion("GONARTHROSE")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := newSeedRepository(t)

	rec, err := repo.Resolve("gonarthrose")
	require.NoError(t, err)
	rec.Title = "modifié"
	rec.RedFlags[0] = "modifié"
	rec.DayPrograms[0].Days[0].Items[0] = "modifié"

	again, err := repo.Resolve("gonarthrose")
	require.NoError(t, err)
	assert.Equal(t, "Arthrose du genou (gonarthrose)", again.Title)
	assert.NotEqual(t, "modifié", again.RedFlags[0])
	assert.NotEqual(t, "modifié", again.DayPrograms[0].Days[0].Items[0])
}

func TestMemoryRepository_Replace(t *testing.T) {
	repo := newSeedRepository(t)

	rec, err := repo.Resolve("lombalgie")
	require.NoError(t, err)

	changed, err := repo.Replace(rec)
	require.NoError(t, err)
	assert.False(t, changed, "same version is not a change")

	rec.Summary = "Nouveau résumé."
	rec.ContentVersion = ""
	changed, err = repo.Replace(rec)
	require.NoError(t, err)
	assert.True(t, changed)

	version, err := repo.ContentVersion("lombalgie")
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	_, err = repo.Replace(nil)
	assert.Error(t, err)
}

func TestMemoryRepository_Reload(t *testing.T) {
	repo := NewMemoryRepository([]*domain.Record{
		{ID: "keep", Title: "Garder", ContentVersion: "1"},
		{ID: "edit", Title: "Modifier", ContentVersion: "1"},
		{ID: "drop", Title: "Supprimer", ContentVersion: "1"},
	})

	fsys := fstest.MapFS{
		"keep.yaml": {Data: []byte("id: keep\ntitle: Garder\ncontent_version: '1'\n")},
		"edit.yaml": {Data: []byte("id: edit\ntitle: Modifier\ncontent_version: '2'\n")},
		"new.yaml":  {Data: []byte("id: new\ntitle: Nouveau\n")},
	}

	result, err := repo.Reload(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, result.Added)
	assert.Equal(t, []string{"edit"}, result.Updated)
	assert.Equal(t, []string{"drop"}, result.Removed)
	assert.Equal(t, []string{"edit", "drop"}, result.Changed())
	assert.Equal(t, []string{"edit", "keep", "new"}, repo.IDs())

	// a broken directory leaves the records untouched
	_, err = repo.Reload(fstest.MapFS{"x.yaml": {Data: []byte("title: no id\n")}})
	require.Error(t, err)
	assert.Equal(t, []string{"edit", "keep", "new"}, repo.IDs())
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := newSeedRepository(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = repo.Resolve("gonarthrose")
				_ = repo.IDs()
			}
		}()
		go func() {
			defer wg.Done()
			rec, _ := repo.Resolve("lombalgie")
			for j := 0; j < 50; j++ {
				_, _ = repo.Replace(rec)
			}
		}()
	}
	wg.Wait()
	assert.True(t, repo.Exists("lombalgie"))
}

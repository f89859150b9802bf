package cache

import (
	"context"

	"github.com/fichesante/backend/internal/domain/document"
)

// Persister is a second, shared tier behind the in-memory artifact store
type Persister interface {
	// Load returns the persisted artifact, or nil when the key is absent
	Load(ctx context.Context, key document.CacheKey) (*document.Artifact, error)
	// Save persists the artifact under key
	Save(ctx context.Context, key document.CacheKey, artifact *document.Artifact) error
	// DeleteID removes every persisted artifact of id and returns how many were removed
	DeleteID(ctx context.Context, id string) (int, error)
	// Close releases the underlying connection
	Close() error
}

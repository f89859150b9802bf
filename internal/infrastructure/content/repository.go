package content

import (
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"sync"

	"github.com/fichesante/backend/internal/domain/content"
	"go.uber.org/zap"
)

// ReloadResult lists the identifiers touched by a reload
type ReloadResult struct {
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
}

// Changed returns the identifiers whose cached artifacts are stale
func (r ReloadResult) Changed() []string {
	return append(slices.Clone(r.Updated), r.Removed...)
}

// MemoryRepository holds every content record in memory.
// Records are copied on the way in and on the way out.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*content.Record
	logger  *zap.Logger
}

// MemoryRepositoryOption is a functional option for configuring the repository
type MemoryRepositoryOption func(*MemoryRepository)

// WithRepositoryLogger sets the logger for the repository
func WithRepositoryLogger(logger *zap.Logger) MemoryRepositoryOption {
	return func(r *MemoryRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewMemoryRepository creates a repository holding records
func NewMemoryRepository(records []*content.Record, opts ...MemoryRepositoryOption) *MemoryRepository {
	r := &MemoryRepository{
		records: make(map[string]*content.Record, len(records)),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, rec := range records {
		if rec != nil {
			r.records[rec.ID] = rec.Clone()
		}
	}
	return r
}

// NewMemoryRepositoryFromFS loads every record of fsys into a new repository
func NewMemoryRepositoryFromFS(fsys fs.FS, opts ...MemoryRepositoryOption) (*MemoryRepository, error) {
	records, err := LoadFS(fsys)
	if err != nil {
		return nil, err
	}
	r := NewMemoryRepository(records, opts...)
	r.logger.Info("content records loaded", zap.Int("count", len(records)))
	return r, nil
}

// Exists implements content.Repository
func (r *MemoryRepository) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// Resolve implements content.Repository
func (r *MemoryRepository) Resolve(id string) (*content.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, content.NewNotFoundError(id)
	}
	return rec.Clone(), nil
}

// ContentVersion implements content.Repository
func (r *MemoryRepository) ContentVersion(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return "", content.NewNotFoundError(id)
	}
	return rec.ContentVersion, nil
}

// IDs implements content.Repository
func (r *MemoryRepository) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Replace publishes a new version of a record. It reports whether the
// stored version changed.
func (r *MemoryRepository) Replace(rec *content.Record) (bool, error) {
	if rec == nil || rec.ID == "" {
		return false, fmt.Errorf("%w: record without id", ErrInvalidRecord)
	}
	c := rec.Clone()
	if c.ContentVersion == "" {
		version, err := DeriveVersion(c)
		if err != nil {
			return false, err
		}
		c.ContentVersion = version
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.records[c.ID]
	r.records[c.ID] = c
	changed := !existed || prev.ContentVersion != c.ContentVersion
	if changed {
		r.logger.Info("content record replaced",
			zap.String("id", c.ID),
			zap.String("version", c.ContentVersion))
	}
	return changed, nil
}

// Reload swaps the whole record set for the records of fsys.
// On a load error the current records are kept.
func (r *MemoryRepository) Reload(fsys fs.FS) (ReloadResult, error) {
	records, err := LoadFS(fsys)
	if err != nil {
		return ReloadResult{}, err
	}

	next := make(map[string]*content.Record, len(records))
	for _, rec := range records {
		next[rec.ID] = rec
	}

	r.mu.Lock()
	var result ReloadResult
	for id, rec := range next {
		prev, ok := r.records[id]
		switch {
		case !ok:
			result.Added = append(result.Added, id)
		case prev.ContentVersion != rec.ContentVersion:
			result.Updated = append(result.Updated, id)
		}
	}
	for id := range r.records {
		if _, ok := next[id]; !ok {
			result.Removed = append(result.Removed, id)
		}
	}
	r.records = next
	r.mu.Unlock()

	sort.Strings(result.Added)
	sort.Strings(result.Updated)
	sort.Strings(result.Removed)

	r.logger.Info("content records reloaded",
		zap.Int("count", len(next)),
		zap.Strings("added", result.Added),
		zap.Strings("updated", result.Updated),
		zap.Strings("removed", result.Removed))
	return result, nil
}

// Ensure MemoryRepository implements content.Repository
var _ content.Repository = (*MemoryRepository)(nil)

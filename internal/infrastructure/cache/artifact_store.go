package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultCapacity = 64

// GenerateFunc produces the artifact for a key on a cache miss
type GenerateFunc func(ctx context.Context) (*document.Artifact, error)

// Stats is a snapshot of the store counters
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Degraded  bool  `json:"degraded"`
}

type storeEntry struct {
	key      document.CacheKey
	artifact *document.Artifact
}

// ArtifactStore is the process-wide artifact cache.
//
// Entries are kept in an LRU bounded by entry count and indexed by record
// id so that a new content version drops every stale entry of that id.
// Do collapses concurrent generations of one key into a single call.
// An optional Persister acts as a shared second tier; the first failed
// write switches the store to memory-only mode for the rest of its life.
type ArtifactStore struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, storeEntry]
	byID     map[string]map[string]struct{}
	versions map[string]string
	inflight map[string]struct{}

	group     singleflight.Group
	persister Persister
	logger    *zap.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	degraded  atomic.Bool
}

// ArtifactStoreOption is a functional option for configuring the store
type ArtifactStoreOption func(*ArtifactStore)

// WithPersister enables the persistence tier
func WithPersister(p Persister) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		s.persister = p
	}
}

// WithStoreLogger sets the logger for the store
func WithStoreLogger(logger *zap.Logger) ArtifactStoreOption {
	return func(s *ArtifactStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewArtifactStore creates a store holding at most capacity artifacts in memory
func NewArtifactStore(capacity int, opts ...ArtifactStoreOption) *ArtifactStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	s := &ArtifactStore{
		byID:     make(map[string]map[string]struct{}),
		versions: make(map[string]string),
		inflight: make(map[string]struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// NewLRU only fails for a non-positive size
	s.lru, _ = simplelru.NewLRU[string, storeEntry](capacity, s.onEvict)
	return s
}

// onEvict keeps the id index in sync; called with mu held
func (s *ArtifactStore) onEvict(k string, e storeEntry) {
	keys := s.byID[e.key.ID]
	delete(keys, k)
	if len(keys) == 0 {
		delete(s.byID, e.key.ID)
	}
}

// Get returns the cached artifact for key.
// A key carrying a version other than the one last seen for its id
// drops the stale entries of that id.
func (s *ArtifactStore) Get(ctx context.Context, key document.CacheKey) (*document.Artifact, bool) {
	if a, ok := s.lookup(key); ok {
		s.hits.Add(1)
		return a, true
	}

	if a := s.loadPersisted(ctx, key); a != nil {
		s.hits.Add(1)
		return a, true
	}

	s.misses.Add(1)
	return nil, false
}

// lookup checks the memory tier only and does not touch the counters
func (s *ArtifactStore) lookup(key document.CacheKey) (*document.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observeVersionLocked(key)
	e, ok := s.lru.Get(key.String())
	if !ok {
		return nil, false
	}
	return e.artifact, true
}

func (s *ArtifactStore) loadPersisted(ctx context.Context, key document.CacheKey) *document.Artifact {
	if s.persister == nil || s.degraded.Load() {
		return nil
	}
	a, err := s.persister.Load(ctx, key)
	if err != nil {
		s.logger.Debug("persisted artifact lookup failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return nil
	}
	if a == nil {
		return nil
	}

	s.mu.Lock()
	s.addLocked(key, a)
	s.mu.Unlock()
	return a
}

// Put stores artifact under key, replacing entries of older versions
func (s *ArtifactStore) Put(ctx context.Context, key document.CacheKey, artifact *document.Artifact) {
	if artifact == nil {
		return
	}
	s.mu.Lock()
	s.observeVersionLocked(key)
	s.addLocked(key, artifact)
	s.mu.Unlock()

	s.persist(ctx, key, artifact)
}

func (s *ArtifactStore) addLocked(key document.CacheKey, artifact *document.Artifact) {
	k := key.String()
	if s.lru.Add(k, storeEntry{key: key, artifact: artifact}) {
		s.evictions.Add(1)
	}
	keys, ok := s.byID[key.ID]
	if !ok {
		keys = make(map[string]struct{})
		s.byID[key.ID] = keys
	}
	keys[k] = struct{}{}
}

// observeVersionLocked records key's version as current for its id and
// drops entries of any other version.
func (s *ArtifactStore) observeVersionLocked(key document.CacheKey) {
	current, seen := s.versions[key.ID]
	s.versions[key.ID] = key.ContentVersion
	if !seen || current == key.ContentVersion {
		return
	}

	var stale []string
	for k := range s.byID[key.ID] {
		if e, ok := s.lru.Peek(k); ok && e.key.ContentVersion != key.ContentVersion {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		s.lru.Remove(k)
	}
	if len(stale) > 0 {
		s.logger.Debug("dropped stale artifacts",
			zap.String("id", key.ID),
			zap.String("version", key.ContentVersion),
			zap.Int("count", len(stale)))
	}
}

func (s *ArtifactStore) persist(ctx context.Context, key document.CacheKey, artifact *document.Artifact) {
	if s.persister == nil || s.degraded.Load() {
		return
	}
	if err := s.persister.Save(ctx, key, artifact); err != nil {
		if s.degraded.CompareAndSwap(false, true) {
			s.logger.Warn("artifact persistence failed, continuing memory-only",
				zap.String("key", key.String()),
				zap.Error(err))
		}
	}
}

// Invalidate drops every entry of id and returns how many memory entries were removed
func (s *ArtifactStore) Invalidate(ctx context.Context, id string) int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.byID[id]))
	for k := range s.byID[id] {
		keys = append(keys, k)
	}
	for _, k := range keys {
		s.lru.Remove(k)
	}
	delete(s.versions, id)
	s.mu.Unlock()

	if s.persister != nil && !s.degraded.Load() {
		if _, err := s.persister.DeleteID(ctx, id); err != nil {
			s.logger.Warn("failed to delete persisted artifacts",
				zap.String("id", id),
				zap.Error(err))
		}
	}
	return len(keys)
}

// Do returns the cached artifact for key or runs generate to produce it.
// Concurrent calls for the same key share one generate call. The
// generation is detached from the caller: if ctx ends first, Do returns
// ctx.Err() while the generation still completes and fills the cache.
// shared reports whether the result came from another caller's call.
func (s *ArtifactStore) Do(ctx context.Context, key document.CacheKey, generate GenerateFunc) (artifact *document.Artifact, shared bool, err error) {
	k := key.String()
	genCtx := context.WithoutCancel(ctx)

	ch := s.group.DoChan(k, func() (any, error) {
		// the lookup also records key's version as current for its id;
		// a caller may have missed just before the previous flight stored its result
		if a, ok := s.lookup(key); ok {
			return a, nil
		}

		s.mu.Lock()
		s.inflight[k] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, k)
			s.mu.Unlock()
		}()

		a, err := generate(genCtx)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, errors.New("generator returned no artifact")
		}
		s.storeIfCurrent(genCtx, key, a)
		return a, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.(*document.Artifact), res.Shared, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// storeIfCurrent caches a finished generation unless a newer version of its
// id was seen, or the id was invalidated, while it ran.
func (s *ArtifactStore) storeIfCurrent(ctx context.Context, key document.CacheKey, artifact *document.Artifact) {
	s.mu.Lock()
	if current, ok := s.versions[key.ID]; !ok || current != key.ContentVersion {
		s.mu.Unlock()
		s.logger.Debug("discarded superseded artifact",
			zap.String("key", key.String()),
			zap.String("current_version", current))
		return
	}
	s.addLocked(key, artifact)
	s.mu.Unlock()

	s.persist(ctx, key, artifact)
}

// InFlight reports whether a generation for key is running
func (s *ArtifactStore) InFlight(key document.CacheKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[key.String()]
	return ok
}

// Contains reports whether key is in memory without updating recency or counters
func (s *ArtifactStore) Contains(key document.CacheKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Contains(key.String())
}

// Len returns the number of artifacts in memory
func (s *ArtifactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Degraded reports whether the persistence tier was abandoned
func (s *ArtifactStore) Degraded() bool {
	return s.degraded.Load()
}

// Stats returns a snapshot of the store counters
func (s *ArtifactStore) Stats() Stats {
	return Stats{
		Entries:   s.Len(),
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Degraded:  s.degraded.Load(),
	}
}

// Close closes the persistence tier
func (s *ArtifactStore) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

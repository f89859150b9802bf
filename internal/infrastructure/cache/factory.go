package cache

import (
	"fmt"

	"github.com/fichesante/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ArtifactStoreFactory creates artifact stores based on configuration
type ArtifactStoreFactory struct {
	cacheConfig           config.CacheConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ArtifactStoreFactoryOption is a functional option for configuring the factory
type ArtifactStoreFactoryOption func(*ArtifactStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ArtifactStoreFactoryOption {
	return func(f *ArtifactStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to a memory-only store when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) ArtifactStoreFactoryOption {
	return func(f *ArtifactStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewArtifactStoreFactory creates a new factory
func NewArtifactStoreFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...ArtifactStoreFactoryOption) *ArtifactStoreFactory {
	f := &ArtifactStoreFactory{
		cacheConfig:           cacheCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisPersister creates the Redis persistence tier
func (f *ArtifactStoreFactory) CreateRedisPersister() (*RedisPersister, error) {
	redisCfg := RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	p, err := NewRedisPersister(redisCfg, f.cacheConfig.KeyPrefix, f.cacheConfig.PersistTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis persister: %w", err)
	}
	return p, nil
}

// CreateInMemoryStore creates a store without persistence tier
func (f *ArtifactStoreFactory) CreateInMemoryStore() *ArtifactStore {
	return NewArtifactStore(f.cacheConfig.Capacity, WithStoreLogger(f.logger))
}

// CreateStore creates the artifact store. When persistence is enabled it
// connects to Redis first and falls back to memory-only if Redis is not
// available and fallback is allowed.
func (f *ArtifactStoreFactory) CreateStore() (*ArtifactStore, error) {
	if !f.cacheConfig.PersistEnabled {
		f.logger.Info("using in-memory artifact store",
			zap.Int("capacity", f.cacheConfig.Capacity))
		return f.CreateInMemoryStore(), nil
	}

	p, err := f.CreateRedisPersister()
	if err == nil {
		f.logger.Info("using Redis-backed artifact store",
			zap.Int("capacity", f.cacheConfig.Capacity),
			zap.String("redis", f.redisConfig.Addr()))
		return NewArtifactStore(f.cacheConfig.Capacity, WithPersister(p), WithStoreLogger(f.logger)), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for artifact persistence but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory artifact store. "+
		"Artifacts will not be shared across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}

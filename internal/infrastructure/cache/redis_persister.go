package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "docgen:artifact:"
	defaultPersistTTL = 7 * 24 * time.Hour

	fieldData      = "data"
	fieldCreatedAt = "created_at"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisPersister stores artifacts in Redis hashes so that several
// instances share generated documents.
type RedisPersister struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPersister connects to Redis and verifies the connection
func NewRedisPersister(cfg RedisConfig, keyPrefix string, ttl time.Duration) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPersisterWithClient(client, keyPrefix, ttl), nil
}

// NewRedisPersisterWithClient creates a persister with an existing Redis client
func NewRedisPersisterWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisPersister {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultPersistTTL
	}
	return &RedisPersister{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (p *RedisPersister) redisKey(key document.CacheKey) string {
	return p.keyPrefix + key.String()
}

// Load implements Persister
func (p *RedisPersister) Load(ctx context.Context, key document.CacheKey) (*document.Artifact, error) {
	values, err := p.client.HGetAll(ctx, p.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	data, ok := values[fieldData]
	if !ok {
		return nil, nil
	}

	createdAt := time.Time{}
	if raw, ok := values[fieldCreatedAt]; ok {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt created_at for %s: %w", key, err)
		}
		createdAt = time.Unix(0, nanos).UTC()
	}
	return document.NewArtifact([]byte(data), createdAt), nil
}

// Save implements Persister
func (p *RedisPersister) Save(ctx context.Context, key document.CacheKey, artifact *document.Artifact) error {
	if artifact == nil {
		return errors.New("cannot persist nil artifact")
	}
	k := p.redisKey(key)

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			fieldData, artifact.Bytes(),
			fieldCreatedAt, strconv.FormatInt(artifact.CreatedAt().UnixNano(), 10))
		pipe.Expire(ctx, k, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist artifact: %w", err)
	}
	return nil
}

// DeleteID implements Persister
func (p *RedisPersister) DeleteID(ctx context.Context, id string) (int, error) {
	pattern := escapeGlob(p.keyPrefix+id) + ":*"

	var keys []string
	iter := p.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan artifacts of %s: %w", id, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := p.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete artifacts of %s: %w", id, err)
	}
	return int(n), nil
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the Redis client
func (p *RedisPersister) Close() error {
	return p.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (p *RedisPersister) GetClient() *redis.Client {
	return p.client
}

// Ensure RedisPersister implements Persister
var _ Persister = (*RedisPersister)(nil)

package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/lexiqai/narration-gateway/internal/observability"
)

const (
	cacheKeyPrefix = "narration:translation:"

	// defaultOperationTimeout bounds individual Redis operations
	defaultOperationTimeout = 2 * time.Second
)

// Cache stores translations by key
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// RedisCache implements Cache on Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis instance at rawURL (redis://host:port/db)
func NewRedisCache(ctx context.Context, rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// Ping checks the connection, for readiness checks
func (c *RedisCache) Ping(ctx context.Context) (bool, error) {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedTranslator consults a Cache before delegating. Cache failures are
// logged and never fail a translation.
type CachedTranslator struct {
	next  Translator
	cache Cache
}

// NewCachedTranslator wraps next with cache
func NewCachedTranslator(next Translator, cache Cache) *CachedTranslator {
	return &CachedTranslator{next: next, cache: cache}
}

// Translate implements Translator
func (t *CachedTranslator) Translate(ctx context.Context, sentence, targetLanguage string, creds Credentials) (string, error) {
	key := CacheKey(targetLanguage, sentence)

	if cached, ok, err := t.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("Translation cache lookup failed")
	} else if ok {
		observability.RecordTranslationCache(true)
		return cached, nil
	}
	observability.RecordTranslationCache(false)

	translated, err := t.next.Translate(ctx, sentence, targetLanguage, creds)
	if err != nil {
		return "", err
	}

	if err := t.cache.Set(ctx, key, translated); err != nil {
		log.Warn().Err(err).Msg("Translation cache store failed")
	}
	return translated, nil
}

// CacheKey derives the cache key for a sentence in a target language
func CacheKey(targetLanguage, sentence string) string {
	sum := sha256.Sum256([]byte(targetLanguage + "\x00" + sentence))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

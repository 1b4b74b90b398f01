package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheHelper provides JSON and set operations under a key prefix
type CacheHelper struct {
	client *redis.Client
	prefix string
}

// NewCacheHelper creates a new cache helper instance
func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
	}
}

// CacheConfig defines cache configuration for different data types
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Logged in users
	SessionCacheConfig = CacheConfig{
		TTL:    7 * 24 * time.Hour,
		Prefix: "session:",
	}

	// Last visited path per session
	PathCacheConfig = CacheConfig{
		TTL:    7 * 24 * time.Hour,
		Prefix: "lastpath:",
	}

	// Courses a session has been seen enrolled in
	UnlockCacheConfig = CacheConfig{
		TTL:    7 * 24 * time.Hour,
		Prefix: "unlocked:",
	}

	// Per course UI preferences
	PreferenceCacheConfig = CacheConfig{
		TTL:    30 * 24 * time.Hour,
		Prefix: "prefs:",
	}

	// Read-only copies of backend course documents
	CatalogCacheConfig = CacheConfig{
		TTL:    time.Minute,
		Prefix: "catalog:",
	}
)

// Cache errors
var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// GetCacheKey generates a cache key with prefix
func (c *CacheHelper) GetCacheKey(key string) string {
	return fmt.Sprintf("%s%s", c.prefix, key)
}

// Available reports whether a redis client is attached.
func (c *CacheHelper) Available() bool {
	return c != nil && c.client != nil
}

// Get retrieves and unmarshals data from cache
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.Available() {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.GetCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

// Set marshals and stores data in cache
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Available() {
		return ErrCacheNotAvailable
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return c.client.Set(ctx, c.GetCacheKey(key), data, ttl).Err()
}

// SetString stores string data in cache
func (c *CacheHelper) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	if !c.Available() {
		return ErrCacheNotAvailable
	}

	return c.client.Set(ctx, c.GetCacheKey(key), value, ttl).Err()
}

// GetString retrieves string data from cache
func (c *CacheHelper) GetString(ctx context.Context, key string) (string, error) {
	if !c.Available() {
		return "", ErrCacheNotAvailable
	}

	result, err := c.client.Get(ctx, c.GetCacheKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheNotFound
		}
		return "", fmt.Errorf("cache get string error: %w", err)
	}

	return result, nil
}

// Delete removes data from cache using pipeline for multiple keys
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if !c.Available() || len(keys) == 0 {
		return nil
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = c.GetCacheKey(key)
	}

	return c.client.Del(ctx, cacheKeys...).Err()
}

// AddMember adds members to a set and refreshes its TTL in one pipeline
func (c *CacheHelper) AddMember(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if !c.Available() {
		return ErrCacheNotAvailable
	}
	if len(members) == 0 {
		return nil
	}

	values := make([]interface{}, len(members))
	for i, m := range members {
		values[i] = m
	}

	cacheKey := c.GetCacheKey(key)
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, cacheKey, values...)
	if ttl > 0 {
		pipe.Expire(ctx, cacheKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache sadd error: %w", err)
	}
	return nil
}

// IsMember checks set membership
func (c *CacheHelper) IsMember(ctx context.Context, key, member string) (bool, error) {
	if !c.Available() {
		return false, ErrCacheNotAvailable
	}

	ok, err := c.client.SIsMember(ctx, c.GetCacheKey(key), member).Result()
	if err != nil {
		return false, fmt.Errorf("cache sismember error: %w", err)
	}
	return ok, nil
}

// InvalidatePattern removes all keys matching a pattern using SCAN instead of KEYS
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if !c.Available() {
		return nil
	}

	fullPattern := c.GetCacheKey(pattern)
	var cursor uint64
	var keys []string

	for {
		var scanKeys []string
		var err error
		scanKeys, cursor, err = c.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan pattern error: %w", err)
		}
		keys = append(keys, scanKeys...)
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		pipe.Del(ctx, keys[i:end]...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline delete error: %w", err)
	}

	return nil
}

// CacheOrExecute implements cache-aside. A cache failure never fails the call.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetchFunc func(context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.InfoContext(ctx, "Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	value, err := fetchFunc(ctx)
	if err != nil {
		return err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil && !errors.Is(err, ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Cache set error", "error", err, "key", key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}

	return json.Unmarshal(data, dest)
}

// CacheManager groups the helpers used by the portal
type CacheManager struct {
	client      *redis.Client
	Session     *CacheHelper
	Path        *CacheHelper
	Unlock      *CacheHelper
	Preferences *CacheHelper
	Catalog     *CacheHelper
}

// NewCacheManager creates cache manager with all cache helpers
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client:      client,
		Session:     NewCacheHelper(client, SessionCacheConfig.Prefix),
		Path:        NewCacheHelper(client, PathCacheConfig.Prefix),
		Unlock:      NewCacheHelper(client, UnlockCacheConfig.Prefix),
		Preferences: NewCacheHelper(client, PreferenceCacheConfig.Prefix),
		Catalog:     NewCacheHelper(client, CatalogCacheConfig.Prefix),
	}
}

// HealthCheck verifies cache connectivity
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}

	if _, err := cm.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}

	return nil
}

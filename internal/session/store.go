package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/cache"
	"github.com/SAP-F-2025/course-portal/internal/models"
)

var ErrNotFound = errors.New("session not found")

// Store persists sessions and the small per-session bookkeeping that goes with them.
type Store interface {
	Save(ctx context.Context, sess *models.Session, ttl time.Duration) error
	Load(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error

	SavePath(ctx context.Context, id, path string, ttl time.Duration) error
	LoadPath(ctx context.Context, id string) (string, error)

	AddUnlocked(ctx context.Context, id, courseID string, ttl time.Duration) error
	IsUnlocked(ctx context.Context, id, courseID string) (bool, error)

	SavePreferences(ctx context.Context, key string, prefs models.Preferences) error
	LoadPreferences(ctx context.Context, key string) (models.Preferences, error)
}

// RedisStore keeps sessions in redis through the cache helpers.
type RedisStore struct {
	cm *cache.CacheManager
}

func NewRedisStore(cm *cache.CacheManager) *RedisStore {
	return &RedisStore{cm: cm}
}

func (s *RedisStore) Save(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	if err := s.cm.Session.Set(ctx, sess.ID, sess, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.cm.Session.Get(ctx, id, &sess); err != nil {
		if errors.Is(err, cache.ErrCacheNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var errs []error
	for _, h := range []*cache.CacheHelper{s.cm.Session, s.cm.Path, s.cm.Unlock} {
		if err := h.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) SavePath(ctx context.Context, id, path string, ttl time.Duration) error {
	return s.cm.Path.SetString(ctx, id, path, ttl)
}

func (s *RedisStore) LoadPath(ctx context.Context, id string) (string, error) {
	path, err := s.cm.Path.GetString(ctx, id)
	if errors.Is(err, cache.ErrCacheNotFound) {
		return "", nil
	}
	return path, err
}

func (s *RedisStore) AddUnlocked(ctx context.Context, id, courseID string, ttl time.Duration) error {
	return s.cm.Unlock.AddMember(ctx, id, ttl, courseID)
}

func (s *RedisStore) IsUnlocked(ctx context.Context, id, courseID string) (bool, error) {
	return s.cm.Unlock.IsMember(ctx, id, courseID)
}

func (s *RedisStore) SavePreferences(ctx context.Context, key string, prefs models.Preferences) error {
	return s.cm.Preferences.Set(ctx, key, prefs, cache.PreferenceCacheConfig.TTL)
}

func (s *RedisStore) LoadPreferences(ctx context.Context, key string) (models.Preferences, error) {
	var prefs models.Preferences
	err := s.cm.Preferences.Get(ctx, key, &prefs)
	if errors.Is(err, cache.ErrCacheNotFound) {
		return models.Preferences{}, nil
	}
	return prefs, err
}

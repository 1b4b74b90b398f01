package session

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/models"
)

// MemoryStore is an in-process Store for tests and single-instance development.
// TTLs are ignored.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	paths    map[string]string
	unlocked map[string]map[string]struct{}
	prefs    map[string]models.Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		paths:    make(map[string]string),
		unlocked: make(map[string]map[string]struct{}),
		prefs:    make(map[string]models.Preferences),
	}
}

func (s *MemoryStore) Save(_ context.Context, sess *models.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.paths, id)
	delete(s.unlocked, id)
	return nil
}

func (s *MemoryStore) SavePath(_ context.Context, id, path string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[id] = path
	return nil
}

func (s *MemoryStore) LoadPath(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths[id], nil
}

func (s *MemoryStore) AddUnlocked(_ context.Context, id, courseID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.unlocked[id]
	if !ok {
		set = make(map[string]struct{})
		s.unlocked[id] = set
	}
	set[courseID] = struct{}{}
	return nil
}

func (s *MemoryStore) IsUnlocked(_ context.Context, id, courseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unlocked[id][courseID]
	return ok, nil
}

func (s *MemoryStore) SavePreferences(_ context.Context, key string, prefs models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key] = prefs
	return nil
}

func (s *MemoryStore) LoadPreferences(_ context.Context, key string) (models.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[key], nil
}

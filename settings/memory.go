package settings

import (
	"context"
	"strings"
	"sync"

	"promptlab/models"
)

// Memory keeps settings in process memory; they are lost on restart
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]map[string]string
	closed   bool
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *Memory {
	return &Memory{profiles: make(map[string]map[string]string)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.profiles = nil
	return nil
}

func (m *Memory) Profile(id string) Store {
	return &memoryStore{m: m, id: id}
}

type memoryStore struct {
	m  *Memory
	id string
}

func (s *memoryStore) Load(ctx context.Context) (models.ConnectionSettings, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if s.m.closed {
		return models.DefaultSettings(), ErrClosed
	}
	return merge(s.m.profiles[s.id]), nil
}

func (s *memoryStore) Save(ctx context.Context, cs models.ConnectionSettings) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.closed {
		return ErrClosed
	}
	stored := s.m.profiles[s.id]
	if stored == nil {
		stored = make(map[string]string)
		s.m.profiles[s.id] = stored
	}
	for k, v := range fields(cs) {
		stored[k] = v
	}
	return nil
}

func (s *memoryStore) Clear(ctx context.Context) (models.ConnectionSettings, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.closed {
		return models.DefaultSettings(), ErrClosed
	}
	delete(s.m.profiles, s.id)
	return models.DefaultSettings(), nil
}

func trim(v string) string { return strings.TrimSpace(v) }

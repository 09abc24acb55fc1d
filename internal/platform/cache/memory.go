package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	fields    map[string][]byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFn   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), nowFn: time.Now}
}

func (s *MemoryStore) lookup(name string) (memoryEntry, bool) {
	e, ok := s.entries[name]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(s.nowFn()) {
		delete(s.entries, name)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, key Key) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key.Name)
	if !ok {
		return nil, ErrMiss
	}
	if key.Field == "" {
		if e.value == nil {
			return nil, ErrMiss
		}
		return append([]byte(nil), e.value...), nil
	}
	v, ok := e.fields[key.Field]
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.nowFn().Add(ttl)
	}
	stored := append([]byte(nil), value...)
	if key.Field == "" {
		s.entries[key.Name] = memoryEntry{value: stored, expiresAt: expiresAt}
		return nil
	}
	e, ok := s.lookup(key.Name)
	if !ok || e.fields == nil {
		e = memoryEntry{fields: make(map[string][]byte)}
	}
	e.fields[key.Field] = stored
	e.expiresAt = expiresAt
	s.entries[key.Name] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if k.Field == "" {
			delete(s.entries, k.Name)
			continue
		}
		if e, ok := s.entries[k.Name]; ok && e.fields != nil {
			delete(e.fields, k.Field)
		}
	}
	return nil
}

func (s *MemoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	var count int64
	if ok {
		count, _ = strconv.ParseInt(string(e.value), 10, 64)
	} else {
		e = memoryEntry{}
		if ttl > 0 {
			e.expiresAt = s.nowFn().Add(ttl)
		}
	}
	count++
	e.value = []byte(strconv.FormatInt(count, 10))
	s.entries[key] = e
	return count, nil
}

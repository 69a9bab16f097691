package main

import (
	"context"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = time.Minute

// memoryStore keeps everything in process. It is meant for local runs and
// tests: nothing survives a restart and it cannot be shared with a separate
// notify process.
type memoryStore struct {
	kv *cache.Cache

	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewMemoryStore() Store {
	return &memoryStore{
		kv:   cache.New(cache.NoExpiration, memoryCleanupInterval),
		sets: make(map[string]map[string]struct{}),
	}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	obj, found := s.kv.Get(key)
	if !found {
		return nil, false, nil
	}
	return clone(obj.([]byte)), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.kv.Set(key, clone(value), cache.NoExpiration)
	return nil
}

func (s *memoryStore) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.kv.Set(key, clone(value), ttl)
	return nil
}

func (s *memoryStore) SAdd(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	m[member] = struct{}{}
	return nil
}

func (s *memoryStore) SRem(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sets[set]
	if !ok {
		return nil
	}
	delete(m, member)
	if len(m) == 0 {
		delete(s.sets, set)
	}
	return nil
}

func (s *memoryStore) SIsMember(_ context.Context, set, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[set][member]
	return ok, nil
}

func (s *memoryStore) SMembers(_ context.Context, set string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sets[set]))
	for m := range s.sets[set] {
		out = append(out, m)
	}
	return out, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) Close() error {
	s.kv.Flush()
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memCounter struct {
	value     float64
	expiresAt time.Time
}

// MemoryStore implements Store in process, LRU-bounded. It backs the
// "memory" store backend and doubles as the fallback the quota ledger
// degrades to when Redis is unreachable. TTLs are honored lazily on
// read; Sweep exists for the management surface.
type MemoryStore struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, memEntry]
	counters map[string]*memCounter
	lists    map[string][]string
	now      func() time.Time
}

// NewMemory creates a memory store bounded to capacity entries.
func NewMemory(capacity int) (*MemoryStore, error) {
	entries, err := lru.New[string, memEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		entries:  entries,
		counters: make(map[string]*memCounter),
		lists:    make(map[string][]string),
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source; tests use it to cross window and
// TTL boundaries without sleeping.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.expired(s.now()) {
		s.entries.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries.Add(key, entry)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Remove(key)
	delete(s.counters, key)
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range s.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.entries.Remove(key)
			deleted++
		}
	}
	for key := range s.counters {
		if strings.HasPrefix(key, prefix) {
			delete(s.counters, key)
			deleted++
		}
	}
	for key := range s.lists {
		if strings.HasPrefix(key, prefix) {
			delete(s.lists, key)
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CountByPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var count int64
	for _, key := range s.entries.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry, ok := s.entries.Peek(key); ok && !entry.expired(now) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) PushRecent(_ context.Context, list, member string, cap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := append([]string{member}, s.lists[list]...)
	if len(members) > cap {
		members = members[:cap]
	}
	s.lists[list] = members
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, list string, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.lists[list]
	if len(members) > n {
		members = members[:n]
	}
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (s *MemoryStore) Reserve(_ context.Context, key string, amount, limit float64, ttl time.Duration) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.counter(key, ttl)
	projected := counter.value + amount
	if limit > 0 && projected > limit {
		return counter.value, false, nil
	}
	counter.value = projected
	return counter.value, true, nil
}

func (s *MemoryStore) IncrByFloat(_ context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.counter(key, ttl)
	counter.value += delta
	return counter.value, nil
}

func (s *MemoryStore) GetFloat(_ context.Context, key string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || (!counter.expiresAt.IsZero() && s.now().After(counter.expiresAt)) {
		return 0, nil
	}
	return counter.value, nil
}

// counter returns the live counter for key, lazily resetting one whose
// window has passed. Callers must hold the lock.
func (s *MemoryStore) counter(key string, ttl time.Duration) *memCounter {
	now := s.now()
	counter, ok := s.counters[key]
	if !ok || (!counter.expiresAt.IsZero() && now.After(counter.expiresAt)) {
		counter = &memCounter{}
		if ttl > 0 {
			counter.expiresAt = now.Add(ttl)
		}
		s.counters[key] = counter
	}
	return counter
}

// Sweep drops every expired entry and counter, returning how many were
// removed. The management surface calls this on demand; nothing runs it
// in the background.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.entries.Keys() {
		if entry, ok := s.entries.Peek(key); ok && entry.expired(now) {
			s.entries.Remove(key)
			removed++
		}
	}
	for key, counter := range s.counters {
		if !counter.expiresAt.IsZero() && now.After(counter.expiresAt) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

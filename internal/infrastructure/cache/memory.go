package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bimakw/token-forwarder/internal/domain/repositories"
)

var _ repositories.SeenStore = (*MemorySeenStore)(nil)

type seenEntry struct {
	key string
	seq uint64
}

// MemorySeenStore is an in-process SeenStore. Keys expire after window, and once
// capacity keys are held the oldest is evicted first.
type MemorySeenStore struct {
	mu       sync.Mutex
	items    *gocache.Cache
	order    []seenEntry
	seq      uint64
	capacity int
}

// NewMemorySeenStore creates a windowed, bounded seen store. A capacity of 0 or
// less disables the bound.
func NewMemorySeenStore(window time.Duration, capacity int) *MemorySeenStore {
	cleanup := window / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &MemorySeenStore{
		items:    gocache.New(window, cleanup),
		capacity: capacity,
	}
}

// MarkSeen records key and reports whether it was absent
func (s *MemorySeenStore) MarkSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.items.Get(key); found {
		return false, nil
	}

	s.compact()
	if s.capacity > 0 && s.items.ItemCount() >= s.capacity {
		s.items.DeleteExpired()
		for s.items.ItemCount() >= s.capacity && len(s.order) > 0 {
			s.evictOldest()
		}
	}

	s.seq++
	s.items.SetDefault(key, s.seq)
	s.order = append(s.order, seenEntry{key: key, seq: s.seq})
	return true, nil
}

// Len returns the number of keys currently held
func (s *MemorySeenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.ItemCount()
}

// compact drops order entries whose key has expired or been re-added since
func (s *MemorySeenStore) compact() {
	for len(s.order) > 0 && !s.live(s.order[0]) {
		s.order = s.order[1:]
	}
}

func (s *MemorySeenStore) evictOldest() {
	oldest := s.order[0]
	s.order = s.order[1:]
	if s.live(oldest) {
		s.items.Delete(oldest.key)
	}
}

func (s *MemorySeenStore) live(e seenEntry) bool {
	v, found := s.items.Get(e.key)
	return found && v.(uint64) == e.seq
}

package lock

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps locks in process memory. Entries expire through the
// cache's TTL and are never extended by reads.
type MemoryStore struct {
	// mu pairs the token check in DeleteIfEquals with its delete, so an entry
	// re-set between the two is never dropped.
	mu    sync.Mutex
	cache *ttlcache.Cache[string, string]
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: ttlcache.New[string, string](ttlcache.WithDisableTouchOnHit[string, string]()),
	}
}

func (s *MemoryStore) SetIfAbsent(key, token string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.cache.GetOrSet(key, token, ttlcache.WithTTL[string, string](ttl))
	return !found
}

func (s *MemoryStore) DeleteIfEquals(key, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil {
		s.cache.DeleteExpired()
		return false
	}
	if item.Value() != token {
		return false
	}
	s.cache.Delete(key)
	return true
}

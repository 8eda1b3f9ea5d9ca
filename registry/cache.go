package registry

import "sync"

// Cache stores raw response bodies keyed by request URL.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(string) ([]byte, bool) { return nil, false }
func (NoopCache) Put(string, []byte)        {}

// MemoryCache is a process-wide Cache backed by a map.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (m *MemoryCache) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[key]
	return data, ok
}

func (m *MemoryCache) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

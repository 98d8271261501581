package core

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"
)

// CacheManager is a size-bounded LRU for embedding vectors with an optional
// entry TTL. Keys hash the model together with the text.
type CacheManager struct {
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time

	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
	metrics CacheMetrics
}

type cacheEntry struct {
	key       string
	vector    []float32
	createdAt time.Time
}

// CacheMetrics counts lookups and evictions.
type CacheMetrics struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	EntryCount int   `json:"entry_count"`
}

// NewCacheManager returns nil when maxEntries <= 0; a nil *CacheManager is a
// valid cache that never hits.
func NewCacheManager(maxEntries int, maxAge time.Duration) *CacheManager {
	if maxEntries <= 0 {
		return nil
	}
	return &CacheManager{
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func CacheKey(model, text string) string {
	sum := md5.Sum([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached vector.
func (cm *CacheManager) Get(key string) ([]float32, bool) {
	if cm == nil {
		return nil, false
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()

	el, ok := cm.entries[key]
	if !ok {
		cm.metrics.Misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if cm.maxAge > 0 && cm.now().Sub(entry.createdAt) > cm.maxAge {
		cm.removeElement(el)
		cm.metrics.Misses++
		return nil, false
	}
	cm.order.MoveToFront(el)
	cm.metrics.Hits++
	return append([]float32(nil), entry.vector...), true
}

func (cm *CacheManager) Put(key string, vector []float32) {
	if cm == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()

	stored := append([]float32(nil), vector...)
	if el, ok := cm.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.vector = stored
		entry.createdAt = cm.now()
		cm.order.MoveToFront(el)
		return
	}
	cm.entries[key] = cm.order.PushFront(&cacheEntry{key: key, vector: stored, createdAt: cm.now()})
	for cm.order.Len() > cm.maxEntries {
		cm.removeElement(cm.order.Back())
		cm.metrics.Evictions++
	}
}

func (cm *CacheManager) Clear() {
	if cm == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.order.Init()
	cm.entries = make(map[string]*list.Element)
}

func (cm *CacheManager) Metrics() CacheMetrics {
	if cm == nil {
		return CacheMetrics{}
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	m := cm.metrics
	m.EntryCount = cm.order.Len()
	return m
}

func (cm *CacheManager) removeElement(el *list.Element) {
	cm.order.Remove(el)
	delete(cm.entries, el.Value.(*cacheEntry).key)
}

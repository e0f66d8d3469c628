package cache

import (
	"container/list"
	"sync"

	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/internal/usecase"
)

// QueryCache — строгий LRU-кэш списков кандидатов по отпечатку запроса.
// При превышении ёмкости вытесняется самая давно использованная запись.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // от самого свежего к самому старому
	items    map[string]*list.Element

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	fingerprint string
	candidates  []domain.Candidate
}

func NewQueryCache(capacity int) *QueryCache {
	if capacity < 1 {
		capacity = 1
	}

	return &QueryCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get возвращает кандидатов по отпечатку и освежает позицию записи.
func (c *QueryCache) Get(fingerprint string) ([]domain.Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	c.order.MoveToFront(elem)

	return elem.Value.(*cacheEntry).candidates, true
}

// Put сохраняет кандидатов, вытесняя при необходимости самую старую запись.
// Повторная запись того же отпечатка обновляет значение и освежает позицию.
func (c *QueryCache) Put(fingerprint string, candidates []domain.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fingerprint]; ok {
		elem.Value.(*cacheEntry).candidates = candidates
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).fingerprint)
		}
	}

	c.items[fingerprint] = c.order.PushFront(&cacheEntry{
		fingerprint: fingerprint,
		candidates:  candidates,
	})
}

// Stats возвращает счётчики попаданий и текущее заполнение.
func (c *QueryCache) Stats() usecase.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return usecase.CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		CurrentSize: c.order.Len(),
		Capacity:    c.capacity,
	}
}

// InvalidateAll очищает кэш. Счётчики hit/miss при этом сохраняются.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

package cache

import (
	"context"
	"sync"

	"github.com/23skdu/longbow-quill/internal/segment"
)

// SentenceCache stores processed sentences keyed by their raw input line.
type SentenceCache interface {
	// Get retrieves a processed sentence from the cache.
	Get(ctx context.Context, key string) (segment.Sentence, bool)
	// Put stores a processed sentence in the cache.
	Put(ctx context.Context, key string, s segment.Sentence)
}

// MapCache is a simple in-memory implementation of SentenceCache.
type MapCache struct {
	data map[string]segment.Sentence
	mu   sync.RWMutex
}

func NewMapCache() *MapCache {
	return &MapCache{
		data: make(map[string]segment.Sentence),
	}
}

func (c *MapCache) Get(_ context.Context, key string) (segment.Sentence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Return copy so callers can run passes on it
	if s, ok := c.data[key]; ok {
		return s.Clone(), true
	}
	return nil, false
}

func (c *MapCache) Put(_ context.Context, key string, s segment.Sentence) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = s.Clone()
}

// Size returns the number of cached sentences.
func (c *MapCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

package easydb

import (
	"reflect"
	"sync"
)

// collectionCache holds at most one Collection per record type, guarded by
// a mutex distinct from the pool's write lock, so looking up an
// already-built collection never waits on an ongoing transaction (spec §5).
// Building a collection the first time runs its migration through the
// pool's write lock, and that call does wait.
type collectionCache struct {
	mu    sync.RWMutex
	byTyp map[reflect.Type]any
}

func newCollectionCache() *collectionCache {
	return &collectionCache{byTyp: make(map[reflect.Type]any)}
}

func (c *collectionCache) load(typ reflect.Type) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byTyp[typ]
	return v, ok
}

// loadOrStore returns the existing entry for typ if present, otherwise
// calls build once and stores its result. build runs at most once per type
// even under concurrent callers.
func (c *collectionCache) loadOrStore(typ reflect.Type, build func() (any, error)) (any, error) {
	if v, ok := c.load(typ); ok {
		return v, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.byTyp[typ]; ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	c.byTyp[typ] = v
	return v, nil
}

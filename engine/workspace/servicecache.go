package workspace

import (
	"reflect"
	"sync"
)

// ServiceCache is the per-context singleton table: each constructor
// function identity maps to the single instance it produced for this
// context. A clone starts with a fresh, empty cache; services are never
// shared across contexts.
type ServiceCache struct {
	mu       sync.Mutex
	services map[uintptr]any
}

// NewServiceCache returns an empty cache.
func NewServiceCache() *ServiceCache {
	return &ServiceCache{services: make(map[uintptr]any)}
}

// Service returns the context's singleton instance for ctor, constructing
// it on first use. The cache key is the constructor's function identity, so
// two distinct constructors of the same type yield two singletons.
func Service[T any](c *Context, ctor func(*Context) T) T {
	key := reflect.ValueOf(ctor).Pointer()

	c.services.mu.Lock()
	defer c.services.mu.Unlock()

	if existing, ok := c.services.services[key]; ok {
		return existing.(T)
	}
	instance := ctor(c)
	c.services.services[key] = instance
	return instance
}

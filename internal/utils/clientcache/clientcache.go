package clientcache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache holds vendor SDK clients keyed by connection settings. Concurrent
// requests for a missing key share one factory call.
type Cache[T any] struct {
	clients sync.Map
	group   singleflight.Group
}

// NewCache creates an empty cache
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{}
}

// GetOrCreate returns the client for key, building it with factory on a miss.
// Factory errors are returned and nothing is cached.
func (c *Cache[T]) GetOrCreate(key string, factory func() (T, error)) (T, error) {
	if v, ok := c.clients.Load(key); ok {
		return v.(T), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.clients.Load(key); ok {
			return v, nil
		}
		client, err := factory()
		if err != nil {
			return nil, err
		}
		c.clients.Store(key, client)
		return client, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Len returns the number of cached clients
func (c *Cache[T]) Len() int {
	n := 0
	c.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Delete drops one client
func (c *Cache[T]) Delete(key string) {
	c.clients.Delete(key)
}

// Clear drops every client
func (c *Cache[T]) Clear() {
	c.clients.Clear()
}

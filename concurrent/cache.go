// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package concurrent provides small concurrency safe containers.
package concurrent

import (
	"slices"
	"sync"
)

// Cache is a mutex guarded map.
type Cache[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]V
	keys []K
}

// NewCache
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	return v, ok
}

// GetOr returns the value cached for k or caches the result of f.
// f is called with the lock held and its error is never cached.
func (c *Cache[K, V]) GetOr(k K, f func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	if ok {
		return v, nil
	}

	v, err := f()
	if err != nil {
		return v, err
	}

	c.put(k, v)
	return v, nil
}

// PutIfAbsent caches v under k unless k is already present. It reports
// whether v was stored.
func (c *Cache[K, V]) PutIfAbsent(k K, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[k]; ok {
		return false
	}
	c.put(k, v)
	return true
}

func (c *Cache[K, V]) put(k K, v V) {
	c.data[k] = v
	c.keys = append(c.keys, k)
}

// Delete removes k.
func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[k]; !ok {
		return
	}
	delete(c.data, k)
	c.keys = slices.DeleteFunc(c.keys, func(key K) bool { return key == k })
}

// Len
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

// Range calls f for each entry in insertion order until f returns false.
// f is called without the lock held.
func (c *Cache[K, V]) Range(f func(K, V) bool) {
	c.mu.Lock()
	keys := slices.Clone(c.keys)
	vals := make([]V, len(keys))
	for i, k := range keys {
		vals[i] = c.data[k]
	}
	c.mu.Unlock()

	for i, k := range keys {
		if !f(k, vals[i]) {
			return
		}
	}
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache holds bounded caches shared by concurrent relay workers.
package cache

import (
	"context"
	"sync"
)

// FetchFunc loads the value of a key on a miss
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// FIFO is a bounded cache evicting in insertion order. Concurrent misses on
// the same key share a single fetch.
type FIFO[K comparable, V any] struct {
	lock     sync.RWMutex
	values   map[K]V
	order    []K
	capacity int

	fetchLock sync.Mutex
	fetching  map[K]*fetch[V]
}

type fetch[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// NewFIFO returns a cache holding at most capacity values. A capacity below
// one is treated as one.
func NewFIFO[K comparable, V any](capacity int) *FIFO[K, V] {
	capacity = max(capacity, 1)
	return &FIFO[K, V]{
		values:   make(map[K]V, capacity),
		order:    make([]K, 0, capacity),
		capacity: capacity,
		fetching: make(map[K]*fetch[V]),
	}
}

// Get returns the cached value of key
func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	v, ok := c.values[key]
	return v, ok
}

// GetOrFetch returns the cached value of key, loading it with fn on a miss.
// Failed fetches are not cached. A caller whose context ends while another
// goroutine is fetching returns the context's error.
func (c *FIFO[K, V]) GetOrFetch(ctx context.Context, key K, fn FetchFunc[K, V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.fetchLock.Lock()
	if f, ok := c.fetching[key]; ok {
		c.fetchLock.Unlock()
		select {
		case <-f.done:
			return f.value, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	f := &fetch[V]{done: make(chan struct{})}
	c.fetching[key] = f
	c.fetchLock.Unlock()

	f.value, f.err = fn(ctx, key)
	if f.err == nil {
		c.Put(key, f.value)
	}

	c.fetchLock.Lock()
	delete(c.fetching, key)
	c.fetchLock.Unlock()
	close(f.done)

	return f.value, f.err
}

// Put stores value under key, evicting the oldest entry when full
func (c *FIFO[K, V]) Put(key K, value V) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.values[key]; ok {
		c.values[key] = value
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.values, oldest)
	}
	c.values[key] = value
	c.order = append(c.order, key)
}

// Len returns the number of cached values
func (c *FIFO[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.values)
}

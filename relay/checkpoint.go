// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"container/heap"
	"sync"
)

// Checkpoint tracks the relayed sequences of one emitter. Relays complete
// out of order, so finished sequences are held until every lower sequence
// has finished too.
type Checkpoint struct {
	lock    sync.Mutex
	next    uint64
	pending uint64Heap
}

// NewCheckpoint starts a checkpoint at the first sequence not yet relayed
func NewCheckpoint(next uint64) *Checkpoint {
	return &Checkpoint{next: next}
}

// Stage records that sequence was relayed
func (c *Checkpoint) Stage(sequence uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if sequence < c.next {
		return
	}
	heap.Push(&c.pending, sequence)
	for c.pending.Len() > 0 && c.pending[0] <= c.next {
		if heap.Pop(&c.pending).(uint64) == c.next {
			c.next++
		}
	}
}

// Next returns the first sequence not yet relayed
func (c *Checkpoint) Next() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.next
}

// Pending returns the number of relayed sequences above a gap
func (c *Checkpoint) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending.Len()
}

type uint64Heap []uint64

func (h uint64Heap) Len() int           { return len(h) }
func (h uint64Heap) Less(i, j int) bool { return h[i] < h[j] }
func (h uint64Heap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *uint64Heap) Push(x any) {
	*h = append(*h, x.(uint64))
}

func (h *uint64Heap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

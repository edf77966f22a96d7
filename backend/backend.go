// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend is an in-memory implementation of Backend
type MemoryBackend struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

// NewMemoryBackend creates a new memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		accounts: make(map[solana.PublicKey]*Account),
	}
}

// View runs fn against the current accounts
func (b *MemoryBackend) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return fn(memoryReader(b.accounts))
}

// Update runs fn in a transaction. Writes are buffered and applied only if
// fn succeeds.
func (b *MemoryBackend) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx := &memoryTx{
		base:   b.accounts,
		writes: make(map[solana.PublicKey]*Account),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, acct := range tx.writes {
		b.accounts[addr] = acct
	}
	return nil
}

// Len returns the number of stored accounts
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.accounts)
}

func (*MemoryBackend) Close() error { return nil }

type memoryReader map[solana.PublicKey]*Account

func (r memoryReader) Get(addr solana.PublicKey) (*Account, error) {
	acct, ok := r[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return acct.Clone(), nil
}

type memoryTx struct {
	base   map[solana.PublicKey]*Account
	writes map[solana.PublicKey]*Account
}

func (tx *memoryTx) Get(addr solana.PublicKey) (*Account, error) {
	if acct, ok := tx.writes[addr]; ok {
		return acct.Clone(), nil
	}
	return memoryReader(tx.base).Get(addr)
}

func (tx *memoryTx) Create(addr solana.PublicKey, acct *Account) error {
	if _, ok := tx.writes[addr]; ok {
		return fmt.Errorf("%w: %s", ErrExists, addr)
	}
	if _, ok := tx.base[addr]; ok {
		return fmt.Errorf("%w: %s", ErrExists, addr)
	}
	tx.writes[addr] = acct.Clone()
	return nil
}

func (tx *memoryTx) Put(addr solana.PublicKey, acct *Account) error {
	tx.writes[addr] = acct.Clone()
	return nil
}

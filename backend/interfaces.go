// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package backend

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNotFound is returned when no account exists at an address
	ErrNotFound = errors.New("account not found")

	// ErrExists is returned when creating an account that already exists
	ErrExists = errors.New("account already exists")
)

// Account is a named unit of state.
type Account struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	return &Account{
		Owner:    a.Owner,
		Lamports: a.Lamports,
		Data:     append([]byte(nil), a.Data...),
	}
}

// Reader reads accounts
type Reader interface {
	// Get returns the account at addr, or ErrNotFound
	Get(addr solana.PublicKey) (*Account, error)
}

// Tx is a read-write view of the backend. Writes become visible to other
// transactions only when the transaction commits.
type Tx interface {
	Reader

	// Create stores acct at addr if no account exists there yet, and returns
	// ErrExists otherwise. Concurrent creates of one address succeed at most
	// once.
	Create(addr solana.PublicKey, acct *Account) error

	// Put creates or overwrites the account at addr
	Put(addr solana.PublicKey, acct *Account) error
}

// Backend is the account store of a runtime.
type Backend interface {
	// View runs fn against a consistent snapshot
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn in a transaction that commits if fn returns nil and is
	// discarded otherwise. Updates are serialized.
	Update(ctx context.Context, fn func(Tx) error) error

	// Close releases the backend's resources
	Close() error
}

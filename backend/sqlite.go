// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	_ "modernc.org/sqlite"
)

var _ Backend = (*SQLiteBackend)(nil)

var errLamportsOverflow = errors.New("lamports exceed the storable range")

// SQLiteBackend is a durable Backend on a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend opens (creating if needed) the database at path.
// Use ":memory:" for a private in-memory database.
func OpenSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	b, err := NewSQLiteBackend(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLiteBackend wraps db, creating the schema if needed. All access goes
// through one connection, which serializes transactions.
func NewSQLiteBackend(ctx context.Context, db *sql.DB) (*SQLiteBackend, error) {
	db.SetMaxOpenConns(1)
	b := &SQLiteBackend{db: db}
	if err := b.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		address BLOB PRIMARY KEY,
		owner BLOB NOT NULL,
		lamports INTEGER NOT NULL DEFAULT 0,
		data BLOB NOT NULL
	);`
	_, err := b.db.ExecContext(ctx, query)
	return err
}

// View runs fn inside a transaction that is always rolled back
func (b *SQLiteBackend) View(ctx context.Context, fn func(Reader) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&sqliteTx{ctx: ctx, tx: tx})
}

// Update runs fn inside a transaction committed if fn returns nil
func (b *SQLiteBackend) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close closes the database
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) Get(addr solana.PublicKey) (*Account, error) {
	var (
		owner    []byte
		lamports int64
		data     []byte
	)
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT owner, lamports, data FROM accounts WHERE address = ?`,
		addr[:],
	).Scan(&owner, &lamports, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", addr, err)
	}
	return &Account{
		Owner:    solana.PublicKeyFromBytes(owner),
		Lamports: uint64(lamports),
		Data:     data,
	}, nil
}

func (t *sqliteTx) Create(addr solana.PublicKey, acct *Account) error {
	lamports, err := storableLamports(acct.Lamports)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO accounts (address, owner, lamports, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING`,
		addr[:], acct.Owner[:], lamports, nonNil(acct.Data),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", addr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", addr, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, addr)
	}
	return nil
}

func (t *sqliteTx) Put(addr solana.PublicKey, acct *Account) error {
	lamports, err := storableLamports(acct.Lamports)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO accounts (address, owner, lamports, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			data = excluded.data`,
		addr[:], acct.Owner[:], lamports, nonNil(acct.Data),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", addr, err)
	}
	return nil
}

func storableLamports(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", errLamportsOverflow, v)
	}
	return int64(v), nil
}

// SQLite stores a nil blob as NULL, which the NOT NULL column rejects.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime executes program instructions against a backend of
// accounts. Each top-level instruction is one atomic backend transaction.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/backend"
)

const (
	// MaxInvokeDepth bounds nested cross-program invocations
	MaxInvokeDepth = 4

	// MaxReturnDataSize is the largest return data a program may set
	MaxReturnDataSize = 1024
)

var (
	ErrUnknownProgram     = errors.New("unknown program")
	ErrMissingSignature   = errors.New("missing required signature")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidSeeds       = errors.New("seeds do not derive the account address")
	ErrIllegalOwner       = errors.New("program does not own the account")
	ErrCallDepth          = errors.New("maximum invoke depth exceeded")
	ErrReturnDataTooLarge = errors.New("return data too large")

	// ErrAccountExists and ErrAccountNotFound are the backend errors,
	// surfaced unchanged.
	ErrAccountExists   = backend.ErrExists
	ErrAccountNotFound = backend.ErrNotFound

	errSimulation = errors.New("simulation")
)

// Program processes instructions addressed to its id.
type Program interface {
	// ID returns the program id
	ID() solana.PublicKey

	// Process executes one instruction
	Process(ctx *Context, accounts []*solana.AccountMeta, data []byte) error
}

// Instruction invokes a program with accounts and data.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []*solana.AccountMeta
	Data      []byte
}

// FromSolana converts a solana-go instruction.
func FromSolana(ix solana.Instruction) (Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return Instruction{}, fmt.Errorf("failed to encode instruction: %w", err)
	}
	return Instruction{
		ProgramID: ix.ProgramID(),
		Accounts:  ix.Accounts(),
		Data:      data,
	}, nil
}

// Event is a structured record emitted by a program.
type Event interface {
	EventName() string
}

// Result is the outcome of an executed instruction.
type Result struct {
	ReturnData    []byte
	ReturnProgram solana.PublicKey
	Events        []Event
	Logs          []string

	onCommit []func()
}

// Runtime is an account-model execution environment.
type Runtime struct {
	log     log.Logger
	backend backend.Backend
	clock   func() time.Time

	lock     sync.RWMutex
	programs map[solana.PublicKey]Program
}

// Option configures a Runtime
type Option func(*Runtime)

// WithClock sets the clock programs observe
func WithClock(clock func() time.Time) Option {
	return func(r *Runtime) {
		r.clock = clock
	}
}

// New creates a runtime over b with the system program registered
func New(log log.Logger, b backend.Backend, opts ...Option) *Runtime {
	r := &Runtime{
		log:      log,
		backend:  b,
		clock:    time.Now,
		programs: make(map[solana.PublicKey]Program),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Register(systemProgram{})
	return r
}

// Register makes p invokable
func (r *Runtime) Register(p Program) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.programs[p.ID()] = p
}

func (r *Runtime) program(id solana.PublicKey) (Program, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	return p, nil
}

// Execute runs ix as one atomic transaction signed by signers. On failure
// no state changes and the result carries the logs only.
func (r *Runtime) Execute(ctx context.Context, ix Instruction, signers ...solana.PublicKey) (*Result, error) {
	res, err := r.run(ctx, ix, signers, false)
	if err != nil {
		r.log.Debug("instruction failed",
			log.Stringer("program", ix.ProgramID),
			log.Err(err),
		)
	}
	return res, err
}

// Simulate runs ix like Execute and discards its writes.
func (r *Runtime) Simulate(ctx context.Context, ix Instruction, signers ...solana.PublicKey) (*Result, error) {
	return r.run(ctx, ix, signers, true)
}

func (r *Runtime) run(ctx context.Context, ix Instruction, signers []solana.PublicKey, simulate bool) (*Result, error) {
	res := &Result{}
	err := r.backend.Update(ctx, func(tx backend.Tx) error {
		c := &Context{
			ctx:     ctx,
			rt:      r,
			tx:      tx,
			signers: set.Of(signers...),
			now:     r.clock(),
			result:  res,
		}
		if err := c.process(ix); err != nil {
			return err
		}
		if simulate {
			return errSimulation
		}
		return nil
	})
	if simulate && errors.Is(err, errSimulation) {
		err = nil
	}
	if err != nil {
		return &Result{Logs: res.Logs}, err
	}
	if !simulate {
		for _, fn := range res.onCommit {
			fn()
		}
	}
	res.onCommit = nil
	return res, nil
}

// Account returns the committed account at addr
func (r *Runtime) Account(ctx context.Context, addr solana.PublicKey) (*backend.Account, error) {
	var acct *backend.Account
	err := r.backend.View(ctx, func(rd backend.Reader) error {
		var err error
		acct, err = rd.Get(addr)
		return err
	})
	return acct, err
}

// View runs fn against committed state
func (r *Runtime) View(ctx context.Context, fn func(backend.Reader) error) error {
	return r.backend.View(ctx, fn)
}

// Fund credits lamports to addr, creating a system account if needed.
func (r *Runtime) Fund(ctx context.Context, addr solana.PublicKey, lamports uint64) error {
	return r.backend.Update(ctx, func(tx backend.Tx) error {
		acct, err := tx.Get(addr)
		switch {
		case errors.Is(err, backend.ErrNotFound):
			acct = &backend.Account{Owner: solana.SystemProgramID}
		case err != nil:
			return err
		}
		acct.Lamports, err = hello.AddUint64(acct.Lamports, lamports)
		if err != nil {
			return err
		}
		return tx.Put(addr, acct)
	})
}

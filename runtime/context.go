// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/hello/backend"
)

// Context is the view a program has of the executing transaction.
type Context struct {
	ctx     context.Context
	rt      *Runtime
	tx      backend.Tx
	program solana.PublicKey
	signers set.Set[solana.PublicKey]
	depth   int
	now     time.Time
	result  *Result
}

// Context returns the caller's context
func (c *Context) Context() context.Context {
	return c.ctx
}

// ProgramID returns the id of the executing program
func (c *Context) ProgramID() solana.PublicKey {
	return c.program
}

// Now returns the transaction's clock
func (c *Context) Now() time.Time {
	return c.now
}

// IsSigner reports whether addr signed the current instruction
func (c *Context) IsSigner(addr solana.PublicKey) bool {
	return c.signers.Contains(addr)
}

// Get loads the account at addr
func (c *Context) Get(addr solana.PublicKey) (*backend.Account, error) {
	return c.tx.Get(addr)
}

// Exists reports whether an account lives at addr
func (c *Context) Exists(addr solana.PublicKey) (bool, error) {
	_, err := c.tx.Get(addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, backend.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Put writes data to an account owned by the executing program, creating
// it if needed.
func (c *Context) Put(addr solana.PublicKey, data []byte) error {
	acct, err := c.tx.Get(addr)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		acct = &backend.Account{Owner: c.program}
	case err != nil:
		return err
	case acct.Owner != c.program:
		return fmt.Errorf("%w: %s owned by %s", ErrIllegalOwner, addr, acct.Owner)
	}
	acct.Data = data
	return c.tx.Put(addr, acct)
}

// CreateAccount creates the account at the program-derived address signed
// by signerSeeds (bump included), owned by the executing program. It fails
// with ErrAccountExists if the account is already there.
func (c *Context) CreateAccount(addr solana.PublicKey, signerSeeds [][]byte, data []byte) error {
	derived, err := solana.CreateProgramAddress(signerSeeds, c.program)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeeds, err)
	}
	if derived != addr {
		return fmt.Errorf("%w: derived %s, want %s", ErrInvalidSeeds, derived, addr)
	}
	return c.tx.Create(addr, &backend.Account{
		Owner: c.program,
		Data:  data,
	})
}

// CreateSignedAccount creates an account owned by the executing program at
// an address that signed the instruction.
func (c *Context) CreateSignedAccount(addr solana.PublicKey, data []byte) error {
	if !c.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, addr)
	}
	return c.tx.Create(addr, &backend.Account{
		Owner: c.program,
		Data:  data,
	})
}

// Invoke runs ix as a nested call. The callee sees the caller's signers plus
// the program-derived addresses of signerSeeds.
func (c *Context) Invoke(ix Instruction, signerSeeds ...[][]byte) error {
	if c.depth+1 >= MaxInvokeDepth {
		return ErrCallDepth
	}

	signers := set.NewSet[solana.PublicKey](c.signers.Len() + len(signerSeeds))
	signers.Add(c.signers.List()...)
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(seeds, c.program)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSeeds, err)
		}
		signers.Add(pda)
	}

	callee := &Context{
		ctx:     c.ctx,
		rt:      c.rt,
		tx:      c.tx,
		signers: signers,
		depth:   c.depth + 1,
		now:     c.now,
		result:  c.result,
	}
	return callee.process(ix)
}

func (c *Context) process(ix Instruction) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	for _, meta := range ix.Accounts {
		if meta.IsSigner && !c.signers.Contains(meta.PublicKey) {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
	}
	p, err := c.rt.program(ix.ProgramID)
	if err != nil {
		return err
	}
	c.program = ix.ProgramID
	return p.Process(c, ix.Accounts, ix.Data)
}

// SetReturnData publishes data as the executing program's return value
func (c *Context) SetReturnData(data []byte) error {
	if len(data) > MaxReturnDataSize {
		return fmt.Errorf("%w: %d bytes", ErrReturnDataTooLarge, len(data))
	}
	c.result.ReturnData = append([]byte(nil), data...)
	c.result.ReturnProgram = c.program
	return nil
}

// ReturnData returns the latest return data and the program that set it
func (c *Context) ReturnData() ([]byte, solana.PublicKey) {
	return c.result.ReturnData, c.result.ReturnProgram
}

// OnCommit runs fn after the transaction commits. It is dropped when the
// transaction fails or is simulated.
func (c *Context) OnCommit(fn func()) {
	c.result.onCommit = append(c.result.onCommit, fn)
}

// Emit records an event
func (c *Context) Emit(e Event) {
	c.result.Events = append(c.result.Events, e)
}

// Msg appends a line to the transaction logs
func (c *Context) Msg(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	c.result.Logs = append(c.result.Logs, fmt.Sprintf("Program %s: %s", c.program, line))
	c.rt.log.Debug(line, log.Stringer("program", c.program))
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/backend"
)

var errUnsupportedSystemInstruction = errors.New("unsupported system instruction")

// Transfer builds a system transfer of lamports from one account to another.
func Transfer(from, to solana.PublicKey, lamports uint64) (Instruction, error) {
	return FromSolana(system.NewTransferInstruction(lamports, from, to).Build())
}

// systemProgram implements the lamport transfer of the system program.
type systemProgram struct{}

func (systemProgram) ID() solana.PublicKey {
	return solana.SystemProgramID
}

func (systemProgram) Process(c *Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(accounts) < 2 {
		return fmt.Errorf("%w: transfer needs 2 accounts, have %d", errUnsupportedSystemInstruction, len(accounts))
	}
	ix, err := system.DecodeInstruction(accounts, data)
	if err != nil {
		return fmt.Errorf("failed to decode system instruction: %w", err)
	}
	transfer, ok := ix.Impl.(*system.Transfer)
	if !ok {
		return fmt.Errorf("%w: %T", errUnsupportedSystemInstruction, ix.Impl)
	}
	if transfer.Lamports == nil {
		return fmt.Errorf("%w: missing lamports", errUnsupportedSystemInstruction)
	}

	from := transfer.GetFundingAccount().PublicKey
	to := transfer.GetRecipientAccount().PublicKey
	lamports := *transfer.Lamports
	if !c.IsSigner(from) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, from)
	}

	source, err := c.tx.Get(from)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return fmt.Errorf("%w: %s has no account", ErrInsufficientFunds, from)
	case err != nil:
		return err
	}
	if source.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, source.Lamports, lamports)
	}
	if from == to {
		return nil
	}

	dest, err := c.tx.Get(to)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		dest = &backend.Account{Owner: solana.SystemProgramID}
	case err != nil:
		return err
	}
	dest.Lamports, err = hello.AddUint64(dest.Lamports, lamports)
	if err != nil {
		return err
	}
	source.Lamports -= lamports

	if err := c.tx.Put(from, source); err != nil {
		return err
	}
	return c.tx.Put(to, dest)
}

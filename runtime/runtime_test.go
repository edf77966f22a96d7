// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/hello/backend"
)

var errBoom = errors.New("boom")

type recordEvent struct{ data string }

func (recordEvent) EventName() string { return "Record" }

// recorderProgram creates an account at PDA("record") with the instruction
// data. Given two accounts it also moves 10 lamports from the first to the
// second.
type recorderProgram struct {
	id      solana.PublicKey
	commits int
}

func (p *recorderProgram) ID() solana.PublicKey { return p.id }

func (p *recorderProgram) Process(c *Context, accounts []*solana.AccountMeta, data []byte) error {
	record, bump, err := solana.FindProgramAddress([][]byte{[]byte("record")}, p.id)
	if err != nil {
		return err
	}
	if err := c.CreateAccount(record, [][]byte{[]byte("record"), {bump}}, data); err != nil {
		return err
	}
	c.Msg("recorded %d bytes", len(data))
	c.Emit(recordEvent{data: string(data)})
	c.OnCommit(func() { p.commits++ })
	if err := c.SetReturnData([]byte{bump}); err != nil {
		return err
	}
	if len(accounts) == 2 {
		transfer, err := Transfer(accounts[0].PublicKey, accounts[1].PublicKey, 10)
		if err != nil {
			return err
		}
		if err := c.Invoke(transfer); err != nil {
			return err
		}
	}
	if string(data) == "fail" {
		return errBoom
	}
	return nil
}

func newTestRuntime(t *testing.T) (*Runtime, *recorderProgram) {
	t.Helper()

	rt := New(log.NewNoOpLogger(), backend.NewMemoryBackend())
	p := &recorderProgram{id: solana.NewWallet().PublicKey()}
	rt.Register(p)
	return rt, p
}

func TestTransfer(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, _ := newTestRuntime(t)

	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	require.NoError(rt.Fund(ctx, from, 100))

	ix, err := Transfer(from, to, 40)
	require.NoError(err)
	_, err = rt.Execute(ctx, ix, from)
	require.NoError(err)

	acct, err := rt.Account(ctx, from)
	require.NoError(err)
	require.Equal(uint64(60), acct.Lamports)
	acct, err = rt.Account(ctx, to)
	require.NoError(err)
	require.Equal(uint64(40), acct.Lamports)
	require.Equal(solana.SystemProgramID, acct.Owner)

	ix, err = Transfer(from, to, 61)
	require.NoError(err)
	_, err = rt.Execute(ctx, ix, from)
	require.ErrorIs(err, ErrInsufficientFunds)

	// unsigned
	ix, err = Transfer(from, to, 1)
	require.NoError(err)
	_, err = rt.Execute(ctx, ix)
	require.ErrorIs(err, ErrMissingSignature)
}

func TestCreateAccountOnce(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, p := newTestRuntime(t)

	res, err := rt.Execute(ctx, Instruction{ProgramID: p.id, Data: []byte("gm")})
	require.NoError(err)
	require.Equal([]Event{recordEvent{data: "gm"}}, res.Events)
	require.Len(res.Logs, 1)
	require.Equal(p.id, res.ReturnProgram)
	require.Len(res.ReturnData, 1)

	res, err = rt.Execute(ctx, Instruction{ProgramID: p.id, Data: []byte("gm again")})
	require.ErrorIs(err, ErrAccountExists)
	require.Empty(res.Events)
}

func TestExecuteIsAtomic(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, p := newTestRuntime(t)

	payer := solana.NewWallet().PublicKey()
	payee := solana.NewWallet().PublicKey()
	require.NoError(rt.Fund(ctx, payer, 10))

	ix := Instruction{
		ProgramID: p.id,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(payee, true, false),
		},
		Data: []byte("fail"),
	}
	_, err := rt.Execute(ctx, ix, payer)
	require.ErrorIs(err, errBoom)

	// neither the record nor the transfer survived
	record, _, err := solana.FindProgramAddress([][]byte{[]byte("record")}, p.id)
	require.NoError(err)
	_, err = rt.Account(ctx, record)
	require.ErrorIs(err, ErrAccountNotFound)
	acct, err := rt.Account(ctx, payer)
	require.NoError(err)
	require.Equal(uint64(10), acct.Lamports)
	_, err = rt.Account(ctx, payee)
	require.ErrorIs(err, ErrAccountNotFound)

	ix.Data = []byte("ok")
	_, err = rt.Execute(ctx, ix, payer)
	require.NoError(err)
	acct, err = rt.Account(ctx, payee)
	require.NoError(err)
	require.Equal(uint64(10), acct.Lamports)
}

func TestSimulateDiscardsWrites(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, p := newTestRuntime(t)

	res, err := rt.Simulate(ctx, Instruction{ProgramID: p.id, Data: []byte("gm")})
	require.NoError(err)
	require.Len(res.ReturnData, 1)

	// the simulated create left nothing behind
	_, err = rt.Execute(ctx, Instruction{ProgramID: p.id, Data: []byte("gm")})
	require.NoError(err)
}

func TestUnknownProgram(t *testing.T) {
	require := require.New(t)
	rt, _ := newTestRuntime(t)

	_, err := rt.Execute(context.Background(), Instruction{ProgramID: solana.NewWallet().PublicKey()})
	require.ErrorIs(err, ErrUnknownProgram)
}

// signerProgram invokes the system program as its PDA("vault").
type signerProgram struct {
	id    solana.PublicKey
	seeds [][][]byte
}

func (p *signerProgram) ID() solana.PublicKey { return p.id }

func (p *signerProgram) Process(c *Context, accounts []*solana.AccountMeta, _ []byte) error {
	transfer, err := Transfer(accounts[0].PublicKey, accounts[1].PublicKey, 5)
	if err != nil {
		return err
	}
	return c.Invoke(transfer, p.seeds...)
}

func TestInvokeSigned(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, _ := newTestRuntime(t)

	id := solana.NewWallet().PublicKey()
	vault, bump, err := solana.FindProgramAddress([][]byte{[]byte("vault")}, id)
	require.NoError(err)
	require.NoError(rt.Fund(ctx, vault, 5))
	to := solana.NewWallet().PublicKey()

	ix := Instruction{
		ProgramID: id,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(vault, true, false),
			solana.NewAccountMeta(to, true, false),
		},
	}

	rt.Register(&signerProgram{id: id})
	_, err = rt.Execute(ctx, ix)
	require.ErrorIs(err, ErrMissingSignature)

	rt.Register(&signerProgram{id: id, seeds: [][][]byte{{[]byte("vault"), {bump}}}})
	_, err = rt.Execute(ctx, ix)
	require.NoError(err)

	acct, err := rt.Account(ctx, to)
	require.NoError(err)
	require.Equal(uint64(5), acct.Lamports)
}

func TestInvokeKeepsCallerSigners(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, _ := newTestRuntime(t)

	id := solana.NewWallet().PublicKey()
	rt.Register(&signerProgram{id: id})

	payer := solana.NewWallet().PublicKey()
	require.NoError(rt.Fund(ctx, payer, 8))
	to := solana.NewWallet().PublicKey()

	ix := Instruction{
		ProgramID: id,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(to, true, false),
		},
	}
	_, err := rt.Execute(ctx, ix, payer)
	require.NoError(err)

	acct, err := rt.Account(ctx, to)
	require.NoError(err)
	require.Equal(uint64(5), acct.Lamports)

	acct, err = rt.Account(ctx, payer)
	require.NoError(err)
	require.Equal(uint64(3), acct.Lamports)
}

func TestOnCommit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rt, p := newTestRuntime(t)

	_, err := rt.Simulate(ctx, Instruction{ProgramID: p.id, Data: []byte("a")})
	require.NoError(err)
	require.Zero(p.commits)

	_, err = rt.Execute(ctx, Instruction{ProgramID: p.id, Data: []byte("fail")})
	require.ErrorIs(err, errBoom)
	require.Zero(p.commits)

	_, err = rt.Execute(ctx, Instruction{ProgramID: p.id, Data: []byte("a")})
	require.NoError(err)
	require.Equal(1, p.commits)
}

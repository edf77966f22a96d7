// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/hello/backend"
	"github.com/luxfi/hello/runtime"
)

func TestVAAv1Request(t *testing.T) {
	require := require.New(t)

	emitter := [32]byte{0: 0xaa, 31: 0xbb}
	b := MakeVAAv1Request(1, emitter, 0x0102)
	require.Equal(
		common.FromHex("0x45525631"+"0001"+"aa000000000000000000000000000000000000000000000000000000000000bb"+"0000000000000102"),
		b,
	)

	r, err := ParseVAAv1Request(b)
	require.NoError(err)
	require.Equal(uint16(1), r.EmitterChain)
	require.Equal(emitter, r.EmitterAddress)
	require.Equal(uint64(0x0102), r.Sequence)

	_, err = ParseVAAv1Request(b[:len(b)-1])
	require.ErrorIs(err, ErrInvalidRequest)

	b[0] = 'X'
	_, err = ParseVAAv1Request(b)
	require.ErrorIs(err, ErrInvalidRequest)
}

func TestRelayInstructions(t *testing.T) {
	require := require.New(t)

	b, err := EncodeRelayInstructions(
		&GasInstruction{GasLimit: uint256.NewInt(250_000), MsgValue: uint256.NewInt(0)},
		&GasDropOffInstruction{DropOff: uint256.NewInt(7), Recipient: [32]byte{31: 1}},
	)
	require.NoError(err)
	require.Len(b, 33+49)
	require.Equal(GasInstructionType, b[0])
	require.Equal(common.FromHex("0x0000000000000000000000000003d090"), b[1:17])

	parsed, err := ParseRelayInstructions(b)
	require.NoError(err)
	require.Len(parsed, 2)
	gas, ok := parsed[0].(*GasInstruction)
	require.True(ok)
	require.Equal(uint64(250_000), gas.GasLimit.Uint64())
	dropOff, ok := parsed[1].(*GasDropOffInstruction)
	require.True(ok)
	require.Equal([32]byte{31: 1}, dropOff.Recipient)

	tooBig := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	_, err = EncodeRelayInstructions(&GasInstruction{GasLimit: tooBig})
	require.ErrorIs(err, ErrInvalidRelayInstruction)

	_, err = ParseRelayInstructions([]byte{GasInstructionType, 0x00})
	require.ErrorIs(err, ErrInvalidRelayInstruction)
	_, err = ParseRelayInstructions([]byte{0x09})
	require.ErrorIs(err, ErrInvalidRelayInstruction)
}

func TestRequestForExecutionArgsLayout(t *testing.T) {
	require := require.New(t)

	args := &RequestForExecutionArgs{
		Amount:            5,
		DstChain:          2,
		DstAddr:           [32]byte{1},
		RefundAddr:        solana.NewWallet().PublicKey(),
		SignedQuote:       []byte{0xde, 0xad},
		RequestBytes:      MakeVAAv1Request(1, [32]byte{}, 0),
		RelayInstructions: nil,
	}
	b, err := args.MarshalBorsh()
	require.NoError(err)
	// amount | dst chain | dst addr | refund addr | 3 length-prefixed vecs
	require.Len(b, 8+2+32+32+(4+2)+(4+VAAv1RequestLen)+4)
	require.Equal([]byte{5, 0, 0, 0, 0, 0, 0, 0, 2, 0}, b[:10])

	parsed, err := ParseRequestForExecutionArgs(b)
	require.NoError(err)
	require.Equal(args.RefundAddr, parsed.RefundAddr)
	require.Equal(args.SignedQuote, parsed.SignedQuote)
	require.Equal(args.RequestBytes, parsed.RequestBytes)
	require.Empty(parsed.RelayInstructions)

	_, err = ParseRequestForExecutionArgs(b[:len(b)-1])
	require.ErrorIs(err, ErrInvalidArgs)
	_, err = ParseRequestForExecutionArgs(append(b, 0))
	require.ErrorIs(err, ErrInvalidArgs)
}

func TestProgramPaysPayee(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	rt := runtime.New(log.NewNoOpLogger(), backend.NewMemoryBackend())
	payee := solana.NewWallet().PublicKey()
	rt.Register(NewProgram(log.NewNoOpLogger(), DefaultProgramID, payee))

	payer := solana.NewWallet().PublicKey()
	require.NoError(rt.Fund(ctx, payer, 1_000))

	args := &RequestForExecutionArgs{
		Amount:       300,
		DstChain:     2,
		RefundAddr:   payer,
		RequestBytes: MakeVAAv1Request(1, [32]byte{9}, 4),
	}
	ix, err := RequestForExecutionInstruction(DefaultProgramID, payer, payee, args)
	require.NoError(err)
	res, err := rt.Execute(ctx, ix, payer)
	require.NoError(err)
	require.Len(res.Events, 1)
	event, ok := res.Events[0].(RequestForExecution)
	require.True(ok)
	require.Equal(payer, event.Payer)
	require.Equal(args.RequestBytes, event.Args.RequestBytes)

	acct, err := rt.Account(ctx, payee)
	require.NoError(err)
	require.Equal(uint64(300), acct.Lamports)

	// relay instructions are passed through without being interpreted
	args.RelayInstructions = []byte{0x09, 0xff}
	ix, err = RequestForExecutionInstruction(DefaultProgramID, payer, payee, args)
	require.NoError(err)
	res, err = rt.Execute(ctx, ix, payer)
	require.NoError(err)
	event, ok = res.Events[0].(RequestForExecution)
	require.True(ok)
	require.Equal([]byte{0x09, 0xff}, event.Args.RelayInstructions)
	args.RelayInstructions = nil

	// wrong payee
	ix, err = RequestForExecutionInstruction(DefaultProgramID, payer, solana.NewWallet().PublicKey(), args)
	require.NoError(err)
	_, err = rt.Execute(ctx, ix, payer)
	require.ErrorIs(err, ErrInvalidPayee)

	// more than the payer holds
	args.Amount = 701
	ix, err = RequestForExecutionInstruction(DefaultProgramID, payer, payee, args)
	require.NoError(err)
	_, err = rt.Execute(ctx, ix, payer)
	require.ErrorIs(err, runtime.ErrInsufficientFunds)
}

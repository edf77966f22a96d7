// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/runtime"
)

// DefaultProgramID is the executor program id on Solana
var DefaultProgramID = solana.MustPublicKeyFromBase58("execXUrAsMnqMmTHj5m7N1YQgsDz3cwGLYCYyuDRciV")

// RequestForExecutionDiscriminator selects request_for_execution
var RequestForExecutionDiscriminator = hello.InstructionDiscriminator("request_for_execution")

var (
	ErrInvalidArgs  = errors.New("invalid request_for_execution arguments")
	ErrInvalidPayee = errors.New("payee does not match the quote")
)

// RequestForExecutionArgs is a paid request to relay a message.
type RequestForExecutionArgs struct {
	Amount            uint64
	DstChain          uint16
	DstAddr           [32]byte
	RefundAddr        solana.PublicKey
	SignedQuote       []byte
	RequestBytes      []byte
	RelayInstructions []byte
}

// MarshalBorsh encodes the arguments
func (a *RequestForExecutionArgs) MarshalBorsh() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(a.DstChain, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.DstAddr[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.RefundAddr[:], false); err != nil {
		return nil, err
	}
	for _, v := range [][]byte{a.SignedQuote, a.RequestBytes, a.RelayInstructions} {
		if err := enc.WriteUint32(uint32(len(v)), binary.LittleEndian); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(v, false); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ParseRequestForExecutionArgs decodes the arguments
func ParseRequestForExecutionArgs(b []byte) (*RequestForExecutionArgs, error) {
	dec := bin.NewBorshDecoder(b)
	a := &RequestForExecutionArgs{}
	var err error
	if a.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: amount: %w", ErrInvalidArgs, err)
	}
	if a.DstChain, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: dst chain: %w", ErrInvalidArgs, err)
	}
	raw, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, fmt.Errorf("%w: dst addr: %w", ErrInvalidArgs, err)
	}
	copy(a.DstAddr[:], raw)
	if raw, err = dec.ReadNBytes(32); err != nil {
		return nil, fmt.Errorf("%w: refund addr: %w", ErrInvalidArgs, err)
	}
	a.RefundAddr = solana.PublicKeyFromBytes(raw)
	for _, field := range []*[]byte{&a.SignedQuote, &a.RequestBytes, &a.RelayInstructions} {
		n, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: vec length: %w", ErrInvalidArgs, err)
		}
		if int64(n) > int64(dec.Remaining()) {
			return nil, fmt.Errorf("%w: vec length %d exceeds data", ErrInvalidArgs, n)
		}
		if *field, err = dec.ReadNBytes(int(n)); err != nil {
			return nil, fmt.Errorf("%w: vec: %w", ErrInvalidArgs, err)
		}
	}
	if dec.HasRemaining() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidArgs, dec.Remaining())
	}
	return a, nil
}

// RequestForExecutionInstruction builds the executor call paid by payer
func RequestForExecutionInstruction(programID, payer, payee solana.PublicKey, args *RequestForExecutionArgs) (runtime.Instruction, error) {
	body, err := args.MarshalBorsh()
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(payee, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: append(RequestForExecutionDiscriminator[:], body...),
	}, nil
}

// RequestForExecution is emitted for every accepted request
type RequestForExecution struct {
	Payer solana.PublicKey
	Payee solana.PublicKey
	Args  *RequestForExecutionArgs
}

func (RequestForExecution) EventName() string { return "RequestForExecution" }

var _ runtime.Program = (*Program)(nil)

// Program is an executor that takes payment for relay requests and
// announces them as events for relayers.
type Program struct {
	log       log.Logger
	programID solana.PublicKey
	payee     solana.PublicKey
}

// NewProgram creates an executor paying quotes to payee. A zero payee
// accepts any.
func NewProgram(log log.Logger, programID, payee solana.PublicKey) *Program {
	return &Program{
		log:       log,
		programID: programID,
		payee:     payee,
	}
}

func (p *Program) ID() solana.PublicKey {
	return p.programID
}

// Process accepts request_for_execution
func (p *Program) Process(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) < hello.DiscriminatorLen || hello.Discriminator(data[:hello.DiscriminatorLen]) != RequestForExecutionDiscriminator {
		return hello.ErrFallbackNotFound
	}
	if len(accounts) < 2 {
		return fmt.Errorf("%w: request_for_execution needs 2 accounts", hello.ErrNotEnoughKeys)
	}
	args, err := ParseRequestForExecutionArgs(data[hello.DiscriminatorLen:])
	if err != nil {
		return err
	}
	if _, err := ParseVAAv1Request(args.RequestBytes); err != nil {
		return err
	}

	payer := accounts[0].PublicKey
	payee := accounts[1].PublicKey
	if !p.payee.IsZero() && payee != p.payee {
		return fmt.Errorf("%w: %s", ErrInvalidPayee, payee)
	}
	if args.Amount > 0 {
		transfer, err := runtime.Transfer(payer, payee, args.Amount)
		if err != nil {
			return err
		}
		if err := c.Invoke(transfer); err != nil {
			return err
		}
	}

	c.Emit(RequestForExecution{Payer: payer, Payee: payee, Args: args})
	c.Msg("request for execution on chain %d paid %d", args.DstChain, args.Amount)
	return nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/executor"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// RequestRelayArgs are the arguments of request_relay
type RequestRelayArgs struct {
	DstChain          uint16
	ExecAmount        uint64
	SignedQuote       []byte
	RelayInstructions []byte

	// Sequence selects a published message. Nil relays the latest one.
	Sequence *uint64
}

// MarshalBorsh encodes the arguments
func (a *RequestRelayArgs) MarshalBorsh() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint16(a.DstChain, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(a.ExecAmount, binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, v := range [][]byte{a.SignedQuote, a.RelayInstructions} {
		if err := enc.WriteUint32(uint32(len(v)), binary.LittleEndian); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(v, false); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteBool(a.Sequence != nil); err != nil {
		return nil, err
	}
	if a.Sequence != nil {
		if err := enc.WriteUint64(*a.Sequence, binary.LittleEndian); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ParseRequestRelayArgs decodes the arguments of request_relay
func ParseRequestRelayArgs(b []byte) (*RequestRelayArgs, error) {
	dec := bin.NewBorshDecoder(b)
	a := &RequestRelayArgs{}
	var err error
	if a.DstChain, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: dst chain: %w", hello.ErrInvalidInstruction, err)
	}
	if a.ExecAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: exec amount: %w", hello.ErrInvalidInstruction, err)
	}
	for _, field := range []*[]byte{&a.SignedQuote, &a.RelayInstructions} {
		n, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: vec length: %w", hello.ErrInvalidInstruction, err)
		}
		if int64(n) > int64(dec.Remaining()) {
			return nil, fmt.Errorf("%w: vec length %d exceeds data", hello.ErrInvalidInstruction, n)
		}
		if *field, err = dec.ReadNBytes(int(n)); err != nil {
			return nil, fmt.Errorf("%w: vec: %w", hello.ErrInvalidInstruction, err)
		}
	}
	some, err := dec.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: sequence: %w", hello.ErrInvalidInstruction, err)
	}
	switch some {
	case 0:
	case 1:
		seq, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: sequence: %w", hello.ErrInvalidInstruction, err)
		}
		a.Sequence = &seq
	default:
		return nil, fmt.Errorf("%w: option tag %d", hello.ErrInvalidInstruction, some)
	}
	if dec.HasRemaining() {
		return nil, fmt.Errorf("%w: %d trailing bytes", hello.ErrInvalidInstruction, dec.Remaining())
	}
	return a, nil
}

// requestRelay pays the executor to deliver a published message to the
// peer on the destination chain.
//
// accounts: [payer, payee, config, peer, emitter, bridge program,
// sequence, executor program, system]
func (p *Program) requestRelay(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if err := requireAccounts(accounts, 8, "request_relay"); err != nil {
		return err
	}
	args, err := ParseRequestRelayArgs(data)
	if err != nil {
		return err
	}
	var (
		payer       = accounts[0]
		payee       = accounts[1]
		peerMeta    = accounts[3]
		emitter     = accounts[4]
		sequence    = accounts[6]
		executorRef = accounts[7]
	)
	if err := requireSigner(c, payer); err != nil {
		return err
	}
	config, err := p.loadConfig(c, accounts[2])
	if err != nil {
		return err
	}
	if err := expect(emitter, p.emitter.Key); err != nil {
		return err
	}
	if sequence.PublicKey != config.Bridge.Sequence {
		return fmt.Errorf("%w: %s", hello.ErrInvalidSequence, sequence.PublicKey)
	}
	if executorRef.PublicKey != p.executorID {
		return fmt.Errorf("%w: executor program %s", hello.ErrInvalidInstruction, executorRef.PublicKey)
	}

	peerAddr, err := state.PeerAddress(p.programID, args.DstChain)
	if err != nil {
		return err
	}
	if err := expect(peerMeta, peerAddr.Key); err != nil {
		return err
	}
	peerAcct, err := c.Get(peerAddr.Key)
	if errors.Is(err, runtime.ErrAccountNotFound) {
		return fmt.Errorf("%w: no peer for chain %d", hello.ErrInvalidPeer, args.DstChain)
	}
	if err != nil {
		return err
	}
	peer, err := state.ParsePeer(peerAcct.Data)
	if err != nil {
		return err
	}

	next, err := p.nextSequence(c, sequence.PublicKey)
	if err != nil {
		return err
	}
	if next == 0 {
		return hello.ErrNoMessagesYet
	}
	seq := next - 1
	if args.Sequence != nil {
		if *args.Sequence >= next {
			return fmt.Errorf("%w: sequence %d, next is %d", hello.ErrSequenceNotPublished, *args.Sequence, next)
		}
		seq = *args.Sequence
	}

	ix, err := executor.RequestForExecutionInstruction(p.executorID, payer.PublicKey, payee.PublicKey, &executor.RequestForExecutionArgs{
		Amount:            args.ExecAmount,
		DstChain:          args.DstChain,
		DstAddr:           peer.Address,
		RefundAddr:        payer.PublicKey,
		SignedQuote:       args.SignedQuote,
		RequestBytes:      executor.MakeVAAv1Request(config.ChainID, p.emitter.Key, seq),
		RelayInstructions: args.RelayInstructions,
	})
	if err != nil {
		return err
	}
	if err := c.Invoke(ix); err != nil {
		return fmt.Errorf("failed to request execution: %w", err)
	}

	c.Msg("relay requested for sequence %d to chain %d", seq, args.DstChain)
	c.OnCommit(p.metrics.relayRequests.WithLabelValues(chainLabel(args.DstChain)).Inc)
	return nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/backend"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// publishAddresses are the bridge accounts a publish goes through
type publishAddresses struct {
	bridge       solana.PublicKey
	feeCollector solana.PublicKey
	sequence     solana.PublicKey
}

func (p *Program) publishAddresses() (publishAddresses, error) {
	bridgeAddr, err := bridge.BridgeAddress(p.bridgeID)
	if err != nil {
		return publishAddresses{}, err
	}
	feeAddr, err := bridge.FeeCollectorAddress(p.bridgeID)
	if err != nil {
		return publishAddresses{}, err
	}
	sequenceAddr, err := bridge.SequenceAddress(p.bridgeID, p.emitter.Key)
	if err != nil {
		return publishAddresses{}, err
	}
	return publishAddresses{
		bridge:       bridgeAddr.Key,
		feeCollector: feeAddr.Key,
		sequence:     sequenceAddr.Key,
	}, nil
}

// SequenceAddress returns the bridge's sequence tracker of the emitter
func (p *Program) SequenceAddress() (solana.PublicKey, error) {
	addrs, err := p.publishAddresses()
	return addrs.sequence, err
}

// NextSequence reads the sequence the next publish is assigned from
// committed state.
func (p *Program) NextSequence(ctx context.Context, v bridge.Viewer) (uint64, error) {
	tracker, err := p.SequenceAddress()
	if err != nil {
		return 0, err
	}
	var next uint64
	err = v.View(ctx, func(r backend.Reader) error {
		acct, err := r.Get(tracker)
		if errors.Is(err, backend.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		next, err = bridge.NextSequence(acct.Data)
		return err
	})
	return next, err
}

// InitializeInstruction creates the program settings
func (p *Program) InitializeInstruction(owner solana.PublicKey, chainID uint16) (runtime.Instruction, error) {
	addrs, err := p.publishAddresses()
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(p.config.Key, true, false),
			solana.NewAccountMeta(p.bridgeID, false, false),
			solana.NewAccountMeta(addrs.bridge, true, false),
			solana.NewAccountMeta(addrs.feeCollector, true, false),
			solana.NewAccountMeta(p.emitter.Key, true, false),
			solana.NewAccountMeta(addrs.sequence, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: instructionData(InitializeDiscriminator, binary.LittleEndian.AppendUint16(nil, chainID)),
	}, nil
}

// RegisterPeerInstruction trusts address as the program on chain
func (p *Program) RegisterPeerInstruction(owner solana.PublicKey, chain uint16, address [32]byte) (runtime.Instruction, error) {
	peer, err := state.PeerAddress(p.programID, chain)
	if err != nil {
		return runtime.Instruction{}, err
	}
	args := binary.LittleEndian.AppendUint16(nil, chain)
	args = append(args, address[:]...)
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(p.config.Key, false, false),
			solana.NewAccountMeta(peer.Key, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: instructionData(RegisterPeerDiscriminator, args),
	}, nil
}

// SendGreetingInstruction publishes text as the message with the given
// sequence, which must be the tracker's next value.
func (p *Program) SendGreetingInstruction(payer solana.PublicKey, sequence uint64, text string) (runtime.Instruction, error) {
	accounts, err := p.publishAccounts(payer, sequence)
	if err != nil {
		return runtime.Instruction{}, err
	}
	args := binary.LittleEndian.AppendUint32(nil, uint32(len(text)))
	args = append(args, text...)
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts:  accounts,
		Data:      instructionData(SendGreetingDiscriminator, args),
	}, nil
}

// AnnounceInstruction publishes an Alive message as sequence
func (p *Program) AnnounceInstruction(owner solana.PublicKey, sequence uint64) (runtime.Instruction, error) {
	accounts, err := p.publishAccounts(owner, sequence)
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts:  accounts,
		Data:      instructionData(AnnounceDiscriminator, nil),
	}, nil
}

func (p *Program) publishAccounts(payer solana.PublicKey, sequence uint64) ([]*solana.AccountMeta, error) {
	addrs, err := p.publishAddresses()
	if err != nil {
		return nil, err
	}
	slot, err := state.SentAddress(p.programID, sequence)
	if err != nil {
		return nil, err
	}
	return []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(p.config.Key, false, false),
		solana.NewAccountMeta(p.bridgeID, false, false),
		solana.NewAccountMeta(addrs.bridge, true, false),
		solana.NewAccountMeta(addrs.feeCollector, true, false),
		solana.NewAccountMeta(p.emitter.Key, false, false),
		solana.NewAccountMeta(addrs.sequence, true, false),
		solana.NewAccountMeta(slot.Key, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, nil
}

// ReceiveGreetingInstruction delivers the posted envelope body
func (p *Program) ReceiveGreetingInstruction(payer solana.PublicKey, body []byte) (runtime.Instruction, error) {
	plan, err := Plan(p.programID, p.bridgeID, body)
	if err != nil {
		return runtime.Instruction{}, err
	}
	posted, err := bridge.PostedVAAAddress(p.bridgeID, hello.EnvelopeHash(body))
	if err != nil {
		return runtime.Instruction{}, err
	}
	return plan.Groups[0].Instructions[0].Resolve(payer, posted.Key), nil
}

// RequestRelayInstruction pays payee to relay a published message
func (p *Program) RequestRelayInstruction(payer, payee solana.PublicKey, args *RequestRelayArgs) (runtime.Instruction, error) {
	addrs, err := p.publishAddresses()
	if err != nil {
		return runtime.Instruction{}, err
	}
	peer, err := state.PeerAddress(p.programID, args.DstChain)
	if err != nil {
		return runtime.Instruction{}, err
	}
	b, err := args.MarshalBorsh()
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(payee, true, false),
			solana.NewAccountMeta(p.config.Key, false, false),
			solana.NewAccountMeta(peer.Key, false, false),
			solana.NewAccountMeta(p.emitter.Key, false, false),
			solana.NewAccountMeta(p.bridgeID, false, false),
			solana.NewAccountMeta(addrs.sequence, false, false),
			solana.NewAccountMeta(p.executorID, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: instructionData(RequestRelayDiscriminator, b),
	}, nil
}

// UpdateBridgeConfigInstruction re-points the config at bridgeProgramID
func (p *Program) UpdateBridgeConfigInstruction(owner, bridgeProgramID solana.PublicKey) (runtime.Instruction, error) {
	bridgeAddr, err := bridge.BridgeAddress(bridgeProgramID)
	if err != nil {
		return runtime.Instruction{}, err
	}
	feeAddr, err := bridge.FeeCollectorAddress(bridgeProgramID)
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(p.config.Key, true, false),
			solana.NewAccountMeta(bridgeProgramID, false, false),
			solana.NewAccountMeta(bridgeAddr.Key, false, false),
			solana.NewAccountMeta(feeAddr.Key, false, false),
		},
		Data: instructionData(UpdateBridgeConfigDiscriminator, nil),
	}, nil
}

// ResolveExecuteVAAv1Instruction asks the program for the plan of body
func (p *Program) ResolveExecuteVAAv1Instruction(body []byte) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: p.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(p.config.Key, false, false),
			solana.NewAccountMeta(p.bridgeID, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: instructionData(ResolveExecuteVAAv1Discriminator, vec(body)),
	}
}

// ExecutorResolveInstruction is the call an executor makes to learn how to
// deliver body to programID.
func ExecutorResolveInstruction(programID solana.PublicKey, body []byte) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: programID,
		Data:      instructionData(ExecutorResolveDiscriminator, vec(body)),
	}
}

func instructionData(d hello.Discriminator, args []byte) []byte {
	data := make([]byte, 0, hello.DiscriminatorLen+len(args))
	data = append(data, d[:]...)
	return append(data, args...)
}

func vec(b []byte) []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(b)))
	return append(out, b...)
}

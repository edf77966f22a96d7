// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/resolver"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// Plan returns the instructions that deliver the envelope body to
// programID. The payer and the posted envelope are left as placeholders:
// the relayer posts body to the bridge first and fills both in.
func Plan(programID, bridgeProgramID solana.PublicKey, body []byte) (*resolver.Result, error) {
	config, err := state.ConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	return buildPlan(programID, config.Key, bridgeProgramID, body)
}

func buildPlan(programID, config, bridgeProgramID solana.PublicKey, body []byte) (*resolver.Result, error) {
	envelope, err := hello.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}
	hash := hello.EnvelopeHash(body)

	peer, err := state.PeerAddress(programID, envelope.EmitterChain)
	if err != nil {
		return nil, err
	}
	received, err := state.ReceivedAddress(programID, envelope.EmitterChain, envelope.Sequence)
	if err != nil {
		return nil, err
	}

	receive := resolver.Instruction{
		ProgramID: programID,
		Accounts: []resolver.AccountMeta{
			resolver.PayerAccount(),
			resolver.Account(config, false, false),
			resolver.Account(bridgeProgramID, false, false),
			resolver.PostedVAAAccount(),
			resolver.Account(peer.Key, false, false),
			resolver.Account(received.Key, true, false),
			resolver.Account(solana.SystemProgramID, false, false),
		},
		Data: append(ReceiveGreetingDiscriminator[:], hash[:]...),
	}
	return resolver.Resolved(resolver.InstructionGroup{
		Instructions: []resolver.Instruction{receive},
	}), nil
}

// resolveExecuteVAAv1 is the directly callable resolver.
//
// accounts: [config, bridge program, system]
func (p *Program) resolveExecuteVAAv1(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if err := requireAccounts(accounts, 2, "resolve_execute_vaa_v1"); err != nil {
		return err
	}
	if err := expect(accounts[0], p.config.Key); err != nil {
		return err
	}
	if accounts[1].PublicKey != p.bridgeID {
		return fmt.Errorf("%w: bridge program %s", hello.ErrInvalidBridgeConfig, accounts[1].PublicKey)
	}
	body, err := readVec(data)
	if err != nil {
		return fmt.Errorf("%w: %w", hello.ErrInvalidInstruction, err)
	}
	return p.resolve(c, accounts[0].PublicKey, accounts[1].PublicKey, body, "structured")
}

// resolveRaw is the resolver executors call. It gets no accounts and
// derives everything from the program id.
func (p *Program) resolveRaw(c *runtime.Context, data []byte) error {
	body, err := readVec(data)
	if err != nil {
		return fmt.Errorf("%w: %w", hello.ErrTruncated, err)
	}
	return p.resolve(c, p.config.Key, p.bridgeID, body, "executor")
}

func (p *Program) resolve(c *runtime.Context, config, bridgeProgramID solana.PublicKey, body []byte, entryPoint string) error {
	plan, err := buildPlan(p.programID, config, bridgeProgramID, body)
	if err != nil {
		return err
	}
	b, err := plan.MarshalBorsh()
	if err != nil {
		return err
	}
	if err := c.SetReturnData(b); err != nil {
		return err
	}
	c.Msg("returning %d bytes", len(b))
	p.metrics.plansResolved.WithLabelValues(entryPoint).Inc()
	return nil
}

// readVec reads [u32 LE length][bytes]. Bytes past the vector are ignored.
func readVec(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("have %d bytes, need a length prefix", len(data))
	}
	n := binary.LittleEndian.Uint32(data)
	if uint64(n) > uint64(len(data)-4) {
		return nil, fmt.Errorf("length %d exceeds %d bytes of data", n, len(data)-4)
	}
	return data[4 : 4+n], nil
}

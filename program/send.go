// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

const publishAccounts = 8

// sendGreeting publishes a Hello and returns its sequence.
//
// accounts: [payer, config, bridge program, bridge data, fee collector,
// emitter, sequence, message, system]
func (p *Program) sendGreeting(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if err := requireAccounts(accounts, publishAccounts, "send_greeting"); err != nil {
		return err
	}
	text, err := parseString(data)
	if err != nil {
		return err
	}
	if len(text) > hello.MaxGreetingLength {
		return fmt.Errorf("%w: %d bytes", hello.ErrMessageTooLarge, len(text))
	}
	msg, err := hello.NewHello(text)
	if err != nil {
		return err
	}
	payload, err := hello.EncodeMessage(msg)
	if err != nil {
		return err
	}

	config, err := p.loadConfig(c, accounts[1])
	if err != nil {
		return err
	}
	sequence, err := p.publish(c, accounts, config, payload)
	if err != nil {
		return err
	}

	c.Emit(GreetingSent{
		Greeting:  string(text),
		Sequence:  sequence,
		Timestamp: c.Now().Unix(),
	})
	c.Msg("greeting sent! Sequence: %d", sequence)
	c.OnCommit(p.metrics.greetingsSent.Inc)
	return nil
}

// announce publishes an Alive carrying the program id. Owner only.
//
// accounts: as send_greeting, with the owner as payer
func (p *Program) announce(c *runtime.Context, accounts []*solana.AccountMeta) error {
	if err := requireAccounts(accounts, publishAccounts, "announce"); err != nil {
		return err
	}
	config, err := p.loadConfig(c, accounts[1])
	if err != nil {
		return err
	}
	if err := authorize(c, accounts[0], config); err != nil {
		return err
	}
	payload, err := hello.EncodeMessage(hello.NewAlive(p.programID))
	if err != nil {
		return err
	}
	sequence, err := p.publish(c, accounts, config, payload)
	if err != nil {
		return err
	}
	c.Msg("alive. Sequence: %d", sequence)
	return nil
}

// publish pays the bridge fee and posts payload. The message is written to
// the sent slot of the sequence the bridge is about to assign, which is
// returned and set as return data.
func (p *Program) publish(c *runtime.Context, accounts []*solana.AccountMeta, config *state.Config, payload []byte) (uint64, error) {
	var (
		payer        = accounts[0]
		bridgeProg   = accounts[2]
		bridgeData   = accounts[3]
		feeCollector = accounts[4]
		emitter      = accounts[5]
		sequence     = accounts[6]
		message      = accounts[7]
	)
	if err := requireSigner(c, payer); err != nil {
		return 0, err
	}
	if bridgeProg.PublicKey != p.bridgeID {
		return 0, fmt.Errorf("%w: bridge program %s", hello.ErrInvalidBridgeConfig, bridgeProg.PublicKey)
	}
	if bridgeData.PublicKey != config.Bridge.Bridge {
		return 0, fmt.Errorf("%w: %s", hello.ErrInvalidBridgeConfig, bridgeData.PublicKey)
	}
	if feeCollector.PublicKey != config.Bridge.FeeCollector {
		return 0, fmt.Errorf("%w: %s", hello.ErrInvalidFeeCollector, feeCollector.PublicKey)
	}
	if err := expect(emitter, p.emitter.Key); err != nil {
		return 0, err
	}
	if sequence.PublicKey != config.Bridge.Sequence {
		return 0, fmt.Errorf("%w: %s", hello.ErrInvalidSequence, sequence.PublicKey)
	}

	bridgeAcct, err := c.Get(bridgeData.PublicKey)
	if err != nil {
		return 0, fmt.Errorf("%w: bridge data: %w", hello.ErrInvalidBridgeConfig, err)
	}
	fee, err := bridge.Fee(bridgeAcct.Data)
	if err != nil {
		return 0, err
	}
	if fee > 0 {
		transfer, err := runtime.Transfer(payer.PublicKey, feeCollector.PublicKey, fee)
		if err != nil {
			return 0, err
		}
		if err := c.Invoke(transfer); err != nil {
			return 0, fmt.Errorf("failed to pay bridge fee: %w", err)
		}
	}

	next, err := p.nextSequence(c, sequence.PublicKey)
	if err != nil {
		return 0, err
	}
	slot, err := state.SentAddress(p.programID, next)
	if err != nil {
		return 0, err
	}
	if err := expect(message, slot.Key); err != nil {
		return 0, err
	}

	post := runtime.Instruction{
		ProgramID: p.bridgeID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(bridgeData.PublicKey, true, false),
			solana.NewAccountMeta(slot.Key, true, true),
			solana.NewAccountMeta(p.emitter.Key, false, true),
			solana.NewAccountMeta(sequence.PublicKey, true, false),
			solana.NewAccountMeta(payer.PublicKey, true, true),
			solana.NewAccountMeta(feeCollector.PublicKey, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: bridge.PostMessageData(config.BatchID, payload, config.Finality),
	}
	if err := c.Invoke(post, slot.SignerSeeds(), p.emitter.SignerSeeds()); err != nil {
		return 0, fmt.Errorf("failed to post message: %w", err)
	}

	if err := c.SetReturnData(binary.LittleEndian.AppendUint64(nil, next)); err != nil {
		return 0, err
	}
	return next, nil
}

// nextSequence reads the sequence the bridge assigns to the next message
func (*Program) nextSequence(c *runtime.Context, tracker solana.PublicKey) (uint64, error) {
	acct, err := c.Get(tracker)
	switch {
	case errors.Is(err, runtime.ErrAccountNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return bridge.NextSequence(acct.Data)
}

// parseString reads a Borsh string argument
func parseString(data []byte) ([]byte, error) {
	dec := bin.NewBorshDecoder(data)
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: string length: %w", hello.ErrInvalidInstruction, err)
	}
	if int64(n) > int64(dec.Remaining()) {
		return nil, fmt.Errorf("%w: string length %d exceeds data", hello.ErrInvalidInstruction, n)
	}
	text, err := dec.ReadNBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("%w: string: %w", hello.ErrInvalidInstruction, err)
	}
	if !utf8.Valid(text) {
		return nil, fmt.Errorf("%w: string is not UTF-8", hello.ErrInvalidInstruction)
	}
	return text, nil
}

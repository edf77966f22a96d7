// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// receiveGreeting accepts the greeting in the posted envelope with the
// given hash, once per (chain, sequence).
//
// accounts: [payer, config, bridge program, posted envelope, peer,
// received, system]
func (p *Program) receiveGreeting(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if err := requireAccounts(accounts, 6, "receive_greeting"); err != nil {
		return err
	}
	if len(data) != 32 {
		return fmt.Errorf("%w: envelope hash has %d bytes", hello.ErrInvalidInstruction, len(data))
	}
	var hash [32]byte
	copy(hash[:], data)

	var (
		payer        = accounts[0]
		bridgeProg   = accounts[2]
		postedMeta   = accounts[3]
		peerMeta     = accounts[4]
		receivedMeta = accounts[5]
	)
	if err := requireSigner(c, payer); err != nil {
		return err
	}
	if _, err := p.loadConfig(c, accounts[1]); err != nil {
		return err
	}
	if bridgeProg.PublicKey != p.bridgeID {
		return fmt.Errorf("%w: bridge program %s", hello.ErrInvalidBridgeConfig, bridgeProg.PublicKey)
	}

	envelope, err := p.postedEnvelope(c, postedMeta, hash)
	if err != nil {
		return err
	}
	chain := envelope.EmitterChain
	sequence := envelope.Sequence

	peerAddr, err := state.PeerAddress(p.programID, chain)
	if err != nil {
		return err
	}
	if err := expect(peerMeta, peerAddr.Key); err != nil {
		return err
	}
	peerAcct, err := c.Get(peerAddr.Key)
	if errors.Is(err, runtime.ErrAccountNotFound) {
		return fmt.Errorf("%w: no peer for chain %d", hello.ErrUnknownEmitter, chain)
	}
	if err != nil {
		return err
	}
	peer, err := state.ParsePeer(peerAcct.Data)
	if err != nil {
		return err
	}
	if !peer.Verify(envelope.EmitterAddress) {
		return fmt.Errorf("%w: chain %d emitter %x", hello.ErrUnknownEmitter, chain, envelope.EmitterAddress)
	}

	// the payload is checked only after the ledger slot is claimed, so a
	// replay fails as a replay whatever it carries
	greeting, payloadErr := p.greeting(envelope.Payload)

	receivedAddr, err := state.ReceivedAddress(p.programID, chain, sequence)
	if err != nil {
		return err
	}
	if err := expect(receivedMeta, receivedAddr.Key); err != nil {
		return err
	}
	received := &state.Received{
		BatchID:      envelope.Nonce,
		EnvelopeHash: hash,
		Message:      greeting,
	}
	receivedBytes, err := received.Bytes()
	if err != nil {
		return err
	}
	err = c.CreateAccount(receivedAddr.Key, receivedAddr.SignerSeeds(), receivedBytes)
	if errors.Is(err, runtime.ErrAccountExists) {
		p.metrics.duplicates.WithLabelValues(chainLabel(chain)).Inc()
		return fmt.Errorf("%w: chain %d sequence %d", hello.ErrAlreadyReceived, chain, sequence)
	}
	if err != nil {
		return err
	}
	if payloadErr != nil {
		return payloadErr
	}

	c.Emit(GreetingReceived{
		Greeting:    string(greeting),
		SenderChain: chain,
		Sender:      envelope.EmitterAddress,
		Sequence:    sequence,
	})
	c.Msg("received greeting from chain %d: %q", chain, greeting)
	c.OnCommit(p.metrics.greetingsReceived.WithLabelValues(chainLabel(chain)).Inc)
	return nil
}

// greeting decodes and validates the text carried by payload
func (*Program) greeting(payload []byte) ([]byte, error) {
	greeting, err := hello.ParseGreeting(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hello.ErrInvalidMessage, err)
	}
	if !hello.ValidGreeting(greeting) {
		return nil, fmt.Errorf("%w: %d bytes of greeting", hello.ErrInvalidMessage, len(greeting))
	}
	return greeting, nil
}

// postedEnvelope loads the attested envelope the bridge posted under hash
func (p *Program) postedEnvelope(c *runtime.Context, meta *solana.AccountMeta, hash [32]byte) (*hello.Envelope, error) {
	posted, err := bridge.PostedVAAAddress(p.bridgeID, hash)
	if err != nil {
		return nil, err
	}
	if meta.PublicKey != posted.Key {
		return nil, fmt.Errorf("%w: have %s, want %s", hello.ErrInvalidEnvelope, meta.PublicKey, posted.Key)
	}
	acct, err := c.Get(posted.Key)
	if errors.Is(err, runtime.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %x not posted", hello.ErrInvalidEnvelope, hash)
	}
	if err != nil {
		return nil, err
	}
	if acct.Owner != p.bridgeID {
		return nil, fmt.Errorf("%w: posted envelope owned by %s", hello.ErrInvalidEnvelope, acct.Owner)
	}
	vaa, err := bridge.ParsePostedVAA(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hello.ErrInvalidEnvelope, err)
	}
	if vaa.Hash != hash {
		return nil, fmt.Errorf("%w: posted hash %x", hello.ErrInvalidEnvelope, vaa.Hash)
	}
	envelope, err := hello.ParseEnvelope(vaa.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hello.ErrInvalidEnvelope, err)
	}
	return envelope, nil
}

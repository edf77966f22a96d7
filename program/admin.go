// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// initialize creates the settings and the emitter. It publishes nothing, so
// relay requests fail with ErrNoMessagesYet until the first send.
//
// accounts: [owner, config, bridge program, bridge data, fee collector,
// emitter, sequence, system]
func (p *Program) initialize(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if err := requireAccounts(accounts, 7, "initialize"); err != nil {
		return err
	}
	var (
		owner        = accounts[0]
		configMeta   = accounts[1]
		bridgeProg   = accounts[2]
		bridgeData   = accounts[3]
		feeCollector = accounts[4]
		emitterMeta  = accounts[5]
		sequence     = accounts[6]
	)
	if err := requireSigner(c, owner); err != nil {
		return err
	}
	if err := expect(configMeta, p.config.Key); err != nil {
		return err
	}
	if err := expect(emitterMeta, p.emitter.Key); err != nil {
		return err
	}

	dec := bin.NewBorshDecoder(data)
	chainID, err := dec.ReadUint16(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: chain id: %w", hello.ErrInvalidInstruction, err)
	}

	if bridgeProg.PublicKey != p.bridgeID {
		return fmt.Errorf("%w: bridge program %s", hello.ErrInvalidBridgeConfig, bridgeProg.PublicKey)
	}
	addresses, err := p.bridgeAddresses(bridgeProg, bridgeData, feeCollector)
	if err != nil {
		return err
	}
	sequenceAddr, err := bridge.SequenceAddress(bridgeProg.PublicKey, p.emitter.Key)
	if err != nil {
		return err
	}
	if sequence.PublicKey != sequenceAddr.Key {
		return fmt.Errorf("%w: have %s, want %s", hello.ErrInvalidSequence, sequence.PublicKey, sequenceAddr.Key)
	}
	addresses.Sequence = sequenceAddr.Key

	config := &state.Config{
		Owner:    owner.PublicKey,
		ChainID:  chainID,
		Bridge:   addresses,
		BatchID:  0,
		Finality: state.FinalityFinalized,
	}
	configBytes, err := config.Bytes()
	if err != nil {
		return err
	}
	if err := c.CreateAccount(p.config.Key, p.config.SignerSeeds(), configBytes); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	emitter := &state.Emitter{Bump: p.emitter.Bump}
	emitterBytes, err := emitter.Bytes()
	if err != nil {
		return err
	}
	if err := c.CreateAccount(p.emitter.Key, p.emitter.SignerSeeds(), emitterBytes); err != nil {
		return fmt.Errorf("failed to create emitter: %w", err)
	}

	p.log.Info("initialized",
		log.Stringer("owner", owner.PublicKey),
		log.Stringer("emitter", p.emitter.Key),
	)
	c.Msg("initialized. Owner: %s", owner.PublicKey)
	return nil
}

// registerPeer upserts the trusted contract for a foreign chain.
//
// accounts: [owner, config, peer, system]
func (p *Program) registerPeer(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if err := requireAccounts(accounts, 3, "register_peer"); err != nil {
		return err
	}
	config, err := p.loadConfig(c, accounts[1])
	if err != nil {
		return err
	}
	if err := authorize(c, accounts[0], config); err != nil {
		return err
	}

	dec := bin.NewBorshDecoder(data)
	chain, err := dec.ReadUint16(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: chain: %w", hello.ErrInvalidInstruction, err)
	}
	raw, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("%w: address: %w", hello.ErrInvalidInstruction, err)
	}
	peer := &state.Peer{Chain: chain}
	copy(peer.Address[:], raw)

	if chain == 0 || chain == config.ChainID || peer.Address == ([32]byte{}) {
		return fmt.Errorf("%w: chain %d address %x", hello.ErrInvalidPeer, chain, peer.Address)
	}

	peerAddr, err := state.PeerAddress(p.programID, chain)
	if err != nil {
		return err
	}
	if err := expect(accounts[2], peerAddr.Key); err != nil {
		return err
	}
	peerBytes, err := peer.Bytes()
	if err != nil {
		return err
	}
	exists, err := c.Exists(peerAddr.Key)
	if err != nil {
		return err
	}
	if exists {
		err = c.Put(peerAddr.Key, peerBytes)
	} else {
		err = c.CreateAccount(peerAddr.Key, peerAddr.SignerSeeds(), peerBytes)
	}
	if err != nil {
		return err
	}

	c.Msg("registered peer on chain %d: %x", chain, peer.Address)
	return nil
}

// updateBridgeConfig re-points the bridge data and fee collector at the
// derivations of the given bridge program.
//
// accounts: [owner, config, bridge program, bridge data, fee collector]
func (p *Program) updateBridgeConfig(c *runtime.Context, accounts []*solana.AccountMeta) error {
	if err := requireAccounts(accounts, 5, "update_bridge_config"); err != nil {
		return err
	}
	config, err := p.loadConfig(c, accounts[1])
	if err != nil {
		return err
	}
	if err := authorize(c, accounts[0], config); err != nil {
		return err
	}
	addresses, err := p.bridgeAddresses(accounts[2], accounts[3], accounts[4])
	if err != nil {
		return err
	}
	config.Bridge.Bridge = addresses.Bridge
	config.Bridge.FeeCollector = addresses.FeeCollector

	configBytes, err := config.Bytes()
	if err != nil {
		return err
	}
	if err := c.Put(p.config.Key, configBytes); err != nil {
		return err
	}
	c.Msg("bridge config updated. Bridge: %s, FeeCollector: %s", addresses.Bridge, addresses.FeeCollector)
	return nil
}

// bridgeAddresses checks the data and fee collector accounts are the
// derivations of bridgeProg.
func (*Program) bridgeAddresses(bridgeProg, bridgeData, feeCollector *solana.AccountMeta) (state.BridgeAddresses, error) {
	bridgeAddr, err := bridge.BridgeAddress(bridgeProg.PublicKey)
	if err != nil {
		return state.BridgeAddresses{}, err
	}
	if bridgeData.PublicKey != bridgeAddr.Key {
		return state.BridgeAddresses{}, fmt.Errorf("%w: have %s, want %s", hello.ErrInvalidBridgeConfig, bridgeData.PublicKey, bridgeAddr.Key)
	}
	feeAddr, err := bridge.FeeCollectorAddress(bridgeProg.PublicKey)
	if err != nil {
		return state.BridgeAddresses{}, err
	}
	if feeCollector.PublicKey != feeAddr.Key {
		return state.BridgeAddresses{}, fmt.Errorf("%w: have %s, want %s", hello.ErrInvalidFeeCollector, feeCollector.PublicKey, feeAddr.Key)
	}
	return state.BridgeAddresses{
		Bridge:       bridgeAddr.Key,
		FeeCollector: feeAddr.Key,
	}, nil
}

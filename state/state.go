// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package state defines the records the hello program keeps in accounts and
// the addresses they live at.
package state

import (
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
)

// FinalityFinalized is the consistency level requesting finalized
// publication.
const FinalityFinalized uint8 = 1

var (
	configDiscriminator   = hello.AccountDiscriminator("Config")
	peerDiscriminator     = hello.AccountDiscriminator("Peer")
	receivedDiscriminator = hello.AccountDiscriminator("Received")
	emitterDiscriminator  = hello.AccountDiscriminator("WormholeEmitter")
)

// BridgeAddresses are the bridge accounts the program publishes through.
type BridgeAddresses struct {
	Bridge       solana.PublicKey
	FeeCollector solana.PublicKey
	Sequence     solana.PublicKey
}

// Config holds the program settings. There is exactly one per program.
type Config struct {
	Owner    solana.PublicKey
	ChainID  uint16
	Bridge   BridgeAddresses
	BatchID  uint32
	Finality uint8
}

// Bytes returns the account data of the config
func (c *Config) Bytes() ([]byte, error) {
	return hello.Codec.Marshal(configDiscriminator, c)
}

// ParseConfig parses config account data
func ParseConfig(b []byte) (*Config, error) {
	c := &Config{}
	if err := hello.Codec.Unmarshal(configDiscriminator, b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Peer is the trusted remote contract for one foreign chain.
type Peer struct {
	Chain   uint16
	Address [32]byte
}

// Verify reports whether address is the registered peer address.
func (p *Peer) Verify(address [32]byte) bool {
	return p.Address == address
}

// Bytes returns the account data of the peer
func (p *Peer) Bytes() ([]byte, error) {
	return hello.Codec.Marshal(peerDiscriminator, p)
}

// ParsePeer parses peer account data
func ParsePeer(b []byte) (*Peer, error) {
	p := &Peer{}
	if err := hello.Codec.Unmarshal(peerDiscriminator, b, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Received is the ledger entry of a processed inbound envelope. Its
// existence is the replay guard.
type Received struct {
	BatchID      uint32
	EnvelopeHash [32]byte
	Message      []byte
}

// Bytes returns the account data of the ledger entry
func (r *Received) Bytes() ([]byte, error) {
	return hello.Codec.Marshal(receivedDiscriminator, r)
}

// ParseReceived parses ledger entry account data
func ParseReceived(b []byte) (*Received, error) {
	r := &Received{}
	if err := hello.Codec.Unmarshal(receivedDiscriminator, b, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Emitter records the bump of the program's emitter identity.
type Emitter struct {
	Bump uint8
}

// Bytes returns the account data of the emitter
func (e *Emitter) Bytes() ([]byte, error) {
	return hello.Codec.Marshal(emitterDiscriminator, e)
}

// ParseEmitter parses emitter account data
func ParseEmitter(b []byte) (*Emitter, error) {
	e := &Emitter{}
	if err := hello.Codec.Unmarshal(emitterDiscriminator, b, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed prefixes
var (
	ConfigSeed   = []byte("config")
	PeerSeed     = []byte("peer")
	ReceivedSeed = []byte("received")
	EmitterSeed  = []byte("emitter")
	SentSeed     = []byte("sent")
)

// Address is a derived account address together with the seeds that sign
// for it.
type Address struct {
	Key   solana.PublicKey
	Bump  uint8
	Seeds [][]byte
}

// SignerSeeds returns the seeds with the bump appended, as required to sign
// for the address.
func (a Address) SignerSeeds() [][]byte {
	seeds := make([][]byte, 0, len(a.Seeds)+1)
	seeds = append(seeds, a.Seeds...)
	return append(seeds, []byte{a.Bump})
}

// Derive finds the address of seeds under programID.
func Derive(programID solana.PublicKey, seeds ...[]byte) (Address, error) {
	key, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Address{}, fmt.Errorf("failed to derive address: %w", err)
	}
	return Address{Key: key, Bump: bump, Seeds: seeds}, nil
}

// ConfigAddress is where the program settings live.
func ConfigAddress(programID solana.PublicKey) (Address, error) {
	return Derive(programID, ConfigSeed)
}

// EmitterAddress is the program's emitter identity.
func EmitterAddress(programID solana.PublicKey) (Address, error) {
	return Derive(programID, EmitterSeed)
}

// PeerAddress is where the peer for chain lives.
func PeerAddress(programID solana.PublicKey, chain uint16) (Address, error) {
	return Derive(programID, PeerSeed, le16(chain))
}

// ReceivedAddress is the ledger slot of (chain, sequence).
func ReceivedAddress(programID solana.PublicKey, chain uint16, sequence uint64) (Address, error) {
	return Derive(programID, ReceivedSeed, le16(chain), le64(sequence))
}

// SentAddress is the account the bridge writes the outbound message with the
// given sequence into.
func SentAddress(programID solana.PublicKey, sequence uint64) (Address, error) {
	return Derive(programID, SentSeed, le64(sequence))
}

func le16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func le64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

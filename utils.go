// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello

import (
	"crypto/sha256"
	"errors"
	"math"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
)

// DiscriminatorLen is the size of instruction and account discriminators.
const DiscriminatorLen = 8

// Discriminator is the 8-byte prefix that selects an instruction or tags an
// account type.
type Discriminator [DiscriminatorLen]byte

// InstructionDiscriminator returns sha256("global:" + name)[:8].
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global:" + name)
}

// AccountDiscriminator returns sha256("account:" + name)[:8].
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account:" + name)
}

func discriminator(preimage string) Discriminator {
	var d Discriminator
	h := ComputeHash256([]byte(preimage))
	copy(d[:], h)
	return d
}

// AddUint64 adds two uint64 values and returns an error if overflow
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, errors.New("addition would overflow")
	}
	return a + b, nil
}

// ComputeHash256 computes SHA256 hash
func ComputeHash256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// Keccak256 computes the keccak256 hash of data as an ids.ID
func Keccak256(data []byte) ids.ID {
	var id ids.ID
	copy(id[:], crypto.Keccak256(data))
	return id
}

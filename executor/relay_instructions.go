// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Relay instruction types
const (
	GasInstructionType        uint8 = 1
	GasDropOffInstructionType uint8 = 2
)

const u128Len = 16

var ErrInvalidRelayInstruction = errors.New("invalid relay instruction")

// RelayInstruction tells the relayer how to execute on the destination.
type RelayInstruction interface {
	Type() uint8
	append(b []byte) ([]byte, error)
}

// GasInstruction requests a compute limit and an attached value
type GasInstruction struct {
	GasLimit *uint256.Int
	MsgValue *uint256.Int
}

func (*GasInstruction) Type() uint8 { return GasInstructionType }

func (i *GasInstruction) append(b []byte) ([]byte, error) {
	b = append(b, GasInstructionType)
	b, err := appendU128(b, i.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("gas limit: %w", err)
	}
	b, err = appendU128(b, i.MsgValue)
	if err != nil {
		return nil, fmt.Errorf("msg value: %w", err)
	}
	return b, nil
}

// GasDropOffInstruction requests native tokens be sent to a recipient
type GasDropOffInstruction struct {
	DropOff   *uint256.Int
	Recipient [32]byte
}

func (*GasDropOffInstruction) Type() uint8 { return GasDropOffInstructionType }

func (i *GasDropOffInstruction) append(b []byte) ([]byte, error) {
	b = append(b, GasDropOffInstructionType)
	b, err := appendU128(b, i.DropOff)
	if err != nil {
		return nil, fmt.Errorf("drop off: %w", err)
	}
	return append(b, i.Recipient[:]...), nil
}

// EncodeRelayInstructions concatenates the encoded instructions
func EncodeRelayInstructions(instructions ...RelayInstruction) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	for _, ix := range instructions {
		b, err = ix.append(b)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ParseRelayInstructions decodes a relay instruction list
func ParseRelayInstructions(b []byte) ([]RelayInstruction, error) {
	var out []RelayInstruction
	for len(b) > 0 {
		switch b[0] {
		case GasInstructionType:
			if len(b) < 1+2*u128Len {
				return nil, fmt.Errorf("%w: short gas instruction", ErrInvalidRelayInstruction)
			}
			out = append(out, &GasInstruction{
				GasLimit: new(uint256.Int).SetBytes(b[1 : 1+u128Len]),
				MsgValue: new(uint256.Int).SetBytes(b[1+u128Len : 1+2*u128Len]),
			})
			b = b[1+2*u128Len:]
		case GasDropOffInstructionType:
			if len(b) < 1+u128Len+32 {
				return nil, fmt.Errorf("%w: short drop off instruction", ErrInvalidRelayInstruction)
			}
			ix := &GasDropOffInstruction{
				DropOff: new(uint256.Int).SetBytes(b[1 : 1+u128Len]),
			}
			copy(ix.Recipient[:], b[1+u128Len:1+u128Len+32])
			out = append(out, ix)
			b = b[1+u128Len+32:]
		default:
			return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidRelayInstruction, b[0])
		}
	}
	return out, nil
}

// appendU128 appends v as a 16-byte big-endian integer
func appendU128(b []byte, v *uint256.Int) ([]byte, error) {
	if v == nil {
		v = new(uint256.Int)
	}
	if v.BitLen() > 128 {
		return nil, fmt.Errorf("%w: %s does not fit in 128 bits", ErrInvalidRelayInstruction, v.Dec())
	}
	word := v.Bytes32()
	return append(b, word[32-u128Len:]...), nil
}

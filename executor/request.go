// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor encodes relay requests and provides an in-process
// executor program that accepts them.
package executor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// RequestPrefixVAAv1 tags a request to relay one attested message
var RequestPrefixVAAv1 = [4]byte{'E', 'R', 'V', '1'}

// VAAv1RequestLen is the encoded size of a VAAv1Request
const VAAv1RequestLen = 4 + 2 + 32 + 8

var ErrInvalidRequest = errors.New("invalid relay request")

// VAAv1Request identifies the message to relay by its emitter and sequence.
type VAAv1Request struct {
	EmitterChain   uint16
	EmitterAddress [32]byte
	Sequence       uint64
}

// Bytes returns "ERV1" | chain u16 BE | emitter | sequence u64 BE
func (r *VAAv1Request) Bytes() []byte {
	b := make([]byte, 0, VAAv1RequestLen)
	b = append(b, RequestPrefixVAAv1[:]...)
	b = binary.BigEndian.AppendUint16(b, r.EmitterChain)
	b = append(b, r.EmitterAddress[:]...)
	return binary.BigEndian.AppendUint64(b, r.Sequence)
}

// MakeVAAv1Request returns the request bytes for (chain, emitter, sequence)
func MakeVAAv1Request(chain uint16, emitter [32]byte, sequence uint64) []byte {
	r := &VAAv1Request{
		EmitterChain:   chain,
		EmitterAddress: emitter,
		Sequence:       sequence,
	}
	return r.Bytes()
}

// ParseVAAv1Request parses request bytes
func ParseVAAv1Request(b []byte) (*VAAv1Request, error) {
	if len(b) != VAAv1RequestLen {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrInvalidRequest, len(b), VAAv1RequestLen)
	}
	if !bytes.Equal(b[:4], RequestPrefixVAAv1[:]) {
		return nil, fmt.Errorf("%w: unknown prefix %q", ErrInvalidRequest, b[:4])
	}
	r := &VAAv1Request{
		EmitterChain: binary.BigEndian.Uint16(b[4:]),
		Sequence:     binary.BigEndian.Uint64(b[38:]),
	}
	copy(r.EmitterAddress[:], b[6:38])
	return r, nil
}

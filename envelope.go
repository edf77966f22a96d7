// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/ids"
)

// EnvelopeHeaderLen is the size of the fixed envelope header. The payload
// starts right after it.
const EnvelopeHeaderLen = 51

// Header field offsets, all multi-byte fields big-endian.
const (
	timestampOffset   = 0
	nonceOffset       = 4
	chainOffset       = 8
	addressOffset     = 10
	sequenceOffset    = 42
	consistencyOffset = 50
)

// EnvelopeHeader is the metadata of an attested cross-chain message body.
type EnvelopeHeader struct {
	Timestamp        uint32
	Nonce            uint32
	EmitterChain     uint16
	EmitterAddress   [32]byte
	Sequence         uint64
	ConsistencyLevel uint8
}

// Envelope is a parsed message body.
type Envelope struct {
	EnvelopeHeader
	Payload []byte
}

// ParseEnvelope extracts the header and payload of a message body. It does
// not verify the attestation; the receive path and the resolver both use it.
func ParseEnvelope(b []byte) (*Envelope, error) {
	if len(b) < EnvelopeHeaderLen {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrMalformedEnvelope, len(b), EnvelopeHeaderLen)
	}
	env := &Envelope{
		EnvelopeHeader: EnvelopeHeader{
			Timestamp:        binary.BigEndian.Uint32(b[timestampOffset:]),
			Nonce:            binary.BigEndian.Uint32(b[nonceOffset:]),
			EmitterChain:     binary.BigEndian.Uint16(b[chainOffset:]),
			Sequence:         binary.BigEndian.Uint64(b[sequenceOffset:]),
			ConsistencyLevel: b[consistencyOffset],
		},
		Payload: b[EnvelopeHeaderLen:],
	}
	copy(env.EmitterAddress[:], b[addressOffset:sequenceOffset])
	return env, nil
}

// Bytes returns the wire form of the envelope
func (e *Envelope) Bytes() []byte {
	b := make([]byte, EnvelopeHeaderLen+len(e.Payload))
	binary.BigEndian.PutUint32(b[timestampOffset:], e.Timestamp)
	binary.BigEndian.PutUint32(b[nonceOffset:], e.Nonce)
	binary.BigEndian.PutUint16(b[chainOffset:], e.EmitterChain)
	copy(b[addressOffset:sequenceOffset], e.EmitterAddress[:])
	binary.BigEndian.PutUint64(b[sequenceOffset:], e.Sequence)
	b[consistencyOffset] = e.ConsistencyLevel
	copy(b[EnvelopeHeaderLen:], e.Payload)
	return b
}

// ID returns the hash of the envelope
func (e *Envelope) ID() ids.ID {
	return EnvelopeHash(e.Bytes())
}

// EnvelopeHash returns the keccak256 digest of a message body. The bridge
// stores the attested copy of a body under this hash.
func EnvelopeHash(body []byte) ids.ID {
	return Keccak256(body)
}

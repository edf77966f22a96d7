// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/state"
)

// Seed prefixes
var (
	BridgeSeed       = []byte("Bridge")
	FeeCollectorSeed = []byte("fee_collector")
	SequenceSeed     = []byte("Sequence")
	PostedVAASeed    = []byte("PostedVAA")
	ObservationSeed  = []byte("Observation")
)

const (
	// DataLen is the size of the bridge data account
	DataLen = 24

	// FeeOffset is where the message fee sits in the bridge data
	FeeOffset = 16

	// SequenceLen is the size of an emitter sequence tracker
	SequenceLen = 8
)

var (
	postedMessageDiscriminator = hello.AccountDiscriminator("PostedMessage")
	postedVAADiscriminator     = hello.AccountDiscriminator("PostedVAA")
)

// Data is the bridge's global state. It is stored little-endian in the
// layout programs read the fee from.
type Data struct {
	GuardianSetIndex          uint32
	LastLamports              uint64
	GuardianSetExpirationTime uint32
	Fee                       uint64
}

// Bytes returns the account data
func (d *Data) Bytes() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint32(d.GuardianSetIndex, binary.LittleEndian)
	_ = enc.WriteUint64(d.LastLamports, binary.LittleEndian)
	_ = enc.WriteUint32(d.GuardianSetExpirationTime, binary.LittleEndian)
	_ = enc.WriteUint64(d.Fee, binary.LittleEndian)
	return buf.Bytes()
}

// ParseData parses bridge data
func ParseData(b []byte) (*Data, error) {
	if len(b) < DataLen {
		return nil, fmt.Errorf("%w: bridge data has %d bytes", ErrInvalidAccountData, len(b))
	}
	dec := bin.NewBorshDecoder(b)
	d := &Data{}
	var err error
	if d.GuardianSetIndex, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return nil, err
	}
	if d.LastLamports, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if d.GuardianSetExpirationTime, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return nil, err
	}
	if d.Fee, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	return d, nil
}

// Fee reads the message fee straight from bridge data bytes.
func Fee(data []byte) (uint64, error) {
	if len(data) < FeeOffset+8 {
		return 0, fmt.Errorf("%w: bridge data has %d bytes", ErrInvalidAccountData, len(data))
	}
	return binary.LittleEndian.Uint64(data[FeeOffset:]), nil
}

// NextSequence reads the next sequence from tracker data. A missing tracker
// has data nil and means no message was published yet.
func NextSequence(data []byte) (uint64, error) {
	if data == nil {
		return 0, nil
	}
	if len(data) < SequenceLen {
		return 0, fmt.Errorf("%w: sequence tracker has %d bytes", ErrInvalidAccountData, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

func sequenceBytes(seq uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, seq)
}

// PostedMessage is an outbound message recorded by post_message.
type PostedMessage struct {
	ConsistencyLevel uint8
	Timestamp        uint32
	Nonce            uint32
	Sequence         uint64
	EmitterChain     uint16
	EmitterAddress   [32]byte
	Payload          []byte
}

// Envelope returns the body attesters sign for the message
func (m *PostedMessage) Envelope() *hello.Envelope {
	return &hello.Envelope{
		EnvelopeHeader: hello.EnvelopeHeader{
			Timestamp:        m.Timestamp,
			Nonce:            m.Nonce,
			EmitterChain:     m.EmitterChain,
			EmitterAddress:   m.EmitterAddress,
			Sequence:         m.Sequence,
			ConsistencyLevel: m.ConsistencyLevel,
		},
		Payload: m.Payload,
	}
}

// Bytes returns the account data
func (m *PostedMessage) Bytes() ([]byte, error) {
	return hello.Codec.Marshal(postedMessageDiscriminator, m)
}

// ParsePostedMessage parses a message account
func ParsePostedMessage(b []byte) (*PostedMessage, error) {
	m := &PostedMessage{}
	if err := hello.Codec.Unmarshal(postedMessageDiscriminator, b, m); err != nil {
		return nil, err
	}
	return m, nil
}

// PostedVAA is the attested copy of an inbound envelope.
type PostedVAA struct {
	Hash [32]byte
	Body []byte
}

// Bytes returns the account data
func (v *PostedVAA) Bytes() ([]byte, error) {
	return hello.Codec.Marshal(postedVAADiscriminator, v)
}

// ParsePostedVAA parses a posted envelope account
func ParsePostedVAA(b []byte) (*PostedVAA, error) {
	v := &PostedVAA{}
	if err := hello.Codec.Unmarshal(postedVAADiscriminator, b, v); err != nil {
		return nil, err
	}
	return v, nil
}

// BridgeAddress is the bridge data account
func BridgeAddress(programID solana.PublicKey) (state.Address, error) {
	return state.Derive(programID, BridgeSeed)
}

// FeeCollectorAddress is the account message fees are paid to
func FeeCollectorAddress(programID solana.PublicKey) (state.Address, error) {
	return state.Derive(programID, FeeCollectorSeed)
}

// SequenceAddress is the sequence tracker of emitter
func SequenceAddress(programID, emitter solana.PublicKey) (state.Address, error) {
	return state.Derive(programID, SequenceSeed, emitter[:])
}

// PostedVAAAddress is where the attested copy of the envelope with the
// given hash lives
func PostedVAAAddress(programID solana.PublicKey, hash [32]byte) (state.Address, error) {
	return state.Derive(programID, PostedVAASeed, hash[:])
}

func observationAddress(programID, emitter solana.PublicKey, seq uint64) (state.Address, error) {
	return state.Derive(programID, ObservationSeed, emitter[:], sequenceBytes(seq))
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Message payload IDs
const (
	// AliveID is the tag of the Alive message
	AliveID uint8 = 0

	// HelloID is the tag of the Hello message
	HelloID uint8 = 1
)

// MaxGreetingLength is the largest greeting, in bytes, a Hello may carry.
const MaxGreetingLength = 512

var (
	// ErrInvalidPayload is returned when bytes do not decode to a Message
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPayloadTooLarge is returned when a greeting exceeds MaxGreetingLength
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Message is a greeting protocol message.
type Message interface {
	// ID returns the message tag
	ID() uint8

	// Verify verifies the message
	Verify() error

	marshal(enc *bin.Encoder) error
}

// Alive announces that a program is live. It carries the program id.
type Alive struct {
	ProgramID solana.PublicKey
}

// NewAlive creates a new Alive message
func NewAlive(programID solana.PublicKey) *Alive {
	return &Alive{ProgramID: programID}
}

func (*Alive) ID() uint8 { return AliveID }

func (*Alive) Verify() error { return nil }

func (a *Alive) marshal(enc *bin.Encoder) error {
	if err := enc.WriteByte(AliveID); err != nil {
		return err
	}
	return enc.WriteBytes(a.ProgramID[:], false)
}

// Hello carries a greeting.
type Hello struct {
	Text []byte
}

// NewHello creates a new Hello message
func NewHello(text []byte) (*Hello, error) {
	msg := &Hello{Text: text}
	if err := msg.Verify(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (*Hello) ID() uint8 { return HelloID }

// Verify checks the greeting length
func (h *Hello) Verify() error {
	if len(h.Text) > MaxGreetingLength {
		return fmt.Errorf("%w: greeting length %d exceeds maximum %d", ErrPayloadTooLarge, len(h.Text), MaxGreetingLength)
	}
	return nil
}

func (h *Hello) marshal(enc *bin.Encoder) error {
	if err := enc.WriteByte(HelloID); err != nil {
		return err
	}
	if err := enc.WriteUint16(uint16(len(h.Text)), binary.BigEndian); err != nil {
		return err
	}
	return enc.WriteBytes(h.Text, false)
}

// EncodeMessage returns the wire form of msg.
func EncodeMessage(msg Message) ([]byte, error) {
	if err := msg.Verify(); err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := msg.marshal(bin.NewBorshEncoder(buf)); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseMessage decodes the wire form of a Message. The input must be
// consumed exactly.
func ParseMessage(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	dec := bin.NewBorshDecoder(b)
	tag, err := dec.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var msg Message
	switch tag {
	case AliveID:
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return nil, fmt.Errorf("%w: alive: %w", ErrInvalidPayload, err)
		}
		msg = &Alive{ProgramID: solana.PublicKeyFromBytes(raw)}
	case HelloID:
		n, err := dec.ReadUint16(binary.BigEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: hello length: %w", ErrInvalidPayload, err)
		}
		if n > MaxGreetingLength {
			return nil, fmt.Errorf("%w: declared length %d exceeds maximum %d", ErrInvalidPayload, n, MaxGreetingLength)
		}
		if dec.Remaining() != int(n) {
			return nil, fmt.Errorf("%w: declared length %d, have %d bytes", ErrInvalidPayload, n, dec.Remaining())
		}
		text, err := dec.ReadNBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("%w: hello text: %w", ErrInvalidPayload, err)
		}
		msg = &Hello{Text: text}
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrInvalidPayload, tag)
	}

	if dec.HasRemaining() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPayload, dec.Remaining())
	}
	return msg, nil
}

// ParseGreeting extracts the greeting text from an inbound payload.
//
// A payload whose first byte is the Hello tag is decoded as a Hello message;
// anything else is taken verbatim as the greeting. Raw text that happens to
// start with 0x01 is therefore misread as a structured message, and an Alive
// message can never be reached through this path.
func ParseGreeting(payload []byte) ([]byte, error) {
	if len(payload) == 0 || payload[0] != HelloID {
		return payload, nil
	}
	msg, err := ParseMessage(payload)
	if err != nil {
		return nil, err
	}
	return msg.(*Hello).Text, nil
}

// ValidGreeting reports whether text is acceptable as a received greeting.
func ValidGreeting(text []byte) bool {
	return len(text) <= MaxGreetingLength && utf8.Valid(text)
}

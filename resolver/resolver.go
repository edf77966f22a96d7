// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package resolver describes the instructions a relayer must execute to
// deliver a message, and their wire encoding.
package resolver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello/runtime"
)

// Well-known keys standing in for accounts only the relayer knows
var (
	PayerKey     = placeholderKey("payer")
	PostedVAAKey = placeholderKey("postedvaa")
)

func placeholderKey(prefix string) solana.PublicKey {
	var key solana.PublicKey
	n := copy(key[:], prefix)
	for i := n; i < len(key); i++ {
		key[i] = '0'
	}
	return key
}

// Resolver variants
const (
	variantResolved uint8 = 0
	variantMissing  uint8 = 1
)

var ErrInvalidPlan = errors.New("invalid resolver plan")

// Kind distinguishes concrete accounts from placeholders
type Kind uint8

const (
	Concrete Kind = iota
	Payer
	PostedVAA
)

func (k Kind) String() string {
	switch k {
	case Concrete:
		return "concrete"
	case Payer:
		return "payer"
	case PostedVAA:
		return "posted_vaa"
	default:
		return "unknown"
	}
}

// AccountMeta is an account reference of a planned instruction
type AccountMeta struct {
	Kind       Kind
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Account references a concrete account
func Account(key solana.PublicKey, writable, signer bool) AccountMeta {
	return AccountMeta{Kind: Concrete, PublicKey: key, IsSigner: signer, IsWritable: writable}
}

// PayerAccount references the relayer's fee payer
func PayerAccount() AccountMeta {
	return AccountMeta{Kind: Payer, IsSigner: true, IsWritable: true}
}

// PostedVAAAccount references the attested copy of the envelope
func PostedVAAAccount() AccountMeta {
	return AccountMeta{Kind: PostedVAA}
}

// Key returns the key written on the wire
func (m AccountMeta) Key() solana.PublicKey {
	switch m.Kind {
	case Payer:
		return PayerKey
	case PostedVAA:
		return PostedVAAKey
	default:
		return m.PublicKey
	}
}

// Instruction is a planned instruction
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Resolve substitutes the placeholders and returns an executable
// instruction.
func (ix *Instruction) Resolve(payer, postedVAA solana.PublicKey) runtime.Instruction {
	accounts := make([]*solana.AccountMeta, len(ix.Accounts))
	for i, m := range ix.Accounts {
		key := m.PublicKey
		switch m.Kind {
		case Payer:
			key = payer
		case PostedVAA:
			key = postedVAA
		}
		accounts[i] = solana.NewAccountMeta(key, m.IsWritable, m.IsSigner)
	}
	return runtime.Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  accounts,
		Data:      ix.Data,
	}
}

// InstructionGroup is executed as one transaction
type InstructionGroup struct {
	Instructions        []Instruction
	AddressLookupTables []solana.PublicKey
}

// InstructionGroups are executed in order
type InstructionGroups []InstructionGroup

// MissingAccounts asks the caller to retry with more accounts
type MissingAccounts struct {
	Accounts            []solana.PublicKey
	AddressLookupTables []solana.PublicKey
}

// Result is a resolver answer: either a plan or the accounts still needed.
type Result struct {
	Groups  InstructionGroups
	Missing *MissingAccounts
}

// Resolved wraps a plan
func Resolved(groups ...InstructionGroup) *Result {
	return &Result{Groups: groups}
}

// MarshalBorsh encodes the result
func (r *Result) MarshalBorsh() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if r.Missing != nil {
		if err := enc.WriteByte(variantMissing); err != nil {
			return nil, err
		}
		if err := writeKeys(enc, r.Missing.Accounts); err != nil {
			return nil, err
		}
		if err := writeKeys(enc, r.Missing.AddressLookupTables); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := enc.WriteByte(variantResolved); err != nil {
		return nil, err
	}
	if err := writeLen(enc, len(r.Groups)); err != nil {
		return nil, err
	}
	for _, group := range r.Groups {
		if err := writeLen(enc, len(group.Instructions)); err != nil {
			return nil, err
		}
		for _, ix := range group.Instructions {
			if err := writeInstruction(enc, &ix); err != nil {
				return nil, err
			}
		}
		if err := writeKeys(enc, group.AddressLookupTables); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeInstruction(enc *bin.Encoder, ix *Instruction) error {
	if err := enc.WriteBytes(ix.ProgramID[:], false); err != nil {
		return err
	}
	if err := writeLen(enc, len(ix.Accounts)); err != nil {
		return err
	}
	for _, m := range ix.Accounts {
		key := m.Key()
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
		if err := enc.WriteBool(m.IsSigner); err != nil {
			return err
		}
		if err := enc.WriteBool(m.IsWritable); err != nil {
			return err
		}
	}
	if err := writeLen(enc, len(ix.Data)); err != nil {
		return err
	}
	return enc.WriteBytes(ix.Data, false)
}

func writeKeys(enc *bin.Encoder, keys []solana.PublicKey) error {
	if err := writeLen(enc, len(keys)); err != nil {
		return err
	}
	for _, key := range keys {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
	}
	return nil
}

func writeLen(enc *bin.Encoder, n int) error {
	return enc.WriteUint32(uint32(n), binary.LittleEndian)
}

// ParseResult decodes a resolver answer. Sentinel keys decode to
// placeholders.
func ParseResult(b []byte) (*Result, error) {
	dec := bin.NewBorshDecoder(b)
	variant, err := dec.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	r := &Result{}
	switch variant {
	case variantResolved:
		n, err := readLen(dec)
		if err != nil {
			return nil, err
		}
		r.Groups = make(InstructionGroups, 0, n)
		for i := 0; i < n; i++ {
			group, err := readGroup(dec)
			if err != nil {
				return nil, err
			}
			r.Groups = append(r.Groups, group)
		}
	case variantMissing:
		missing := &MissingAccounts{}
		if missing.Accounts, err = readKeys(dec); err != nil {
			return nil, err
		}
		if missing.AddressLookupTables, err = readKeys(dec); err != nil {
			return nil, err
		}
		r.Missing = missing
	default:
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidPlan, variant)
	}
	if dec.HasRemaining() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPlan, dec.Remaining())
	}
	return r, nil
}

func readGroup(dec *bin.Decoder) (InstructionGroup, error) {
	var group InstructionGroup
	n, err := readLen(dec)
	if err != nil {
		return group, err
	}
	for i := 0; i < n; i++ {
		ix, err := readInstruction(dec)
		if err != nil {
			return group, err
		}
		group.Instructions = append(group.Instructions, ix)
	}
	group.AddressLookupTables, err = readKeys(dec)
	return group, err
}

func readInstruction(dec *bin.Decoder) (Instruction, error) {
	var ix Instruction
	programID, err := readKey(dec)
	if err != nil {
		return ix, err
	}
	ix.ProgramID = programID

	n, err := readLen(dec)
	if err != nil {
		return ix, err
	}
	for i := 0; i < n; i++ {
		key, err := readKey(dec)
		if err != nil {
			return ix, err
		}
		signer, err := readBool(dec)
		if err != nil {
			return ix, err
		}
		writable, err := readBool(dec)
		if err != nil {
			return ix, err
		}
		m := AccountMeta{PublicKey: key, IsSigner: signer, IsWritable: writable}
		switch key {
		case PayerKey:
			m = AccountMeta{Kind: Payer, IsSigner: signer, IsWritable: writable}
		case PostedVAAKey:
			m = AccountMeta{Kind: PostedVAA, IsSigner: signer, IsWritable: writable}
		}
		ix.Accounts = append(ix.Accounts, m)
	}

	n, err = readLen(dec)
	if err != nil {
		return ix, err
	}
	ix.Data, err = dec.ReadNBytes(n)
	if err != nil {
		return ix, fmt.Errorf("%w: data: %w", ErrInvalidPlan, err)
	}
	return ix, nil
}

func readKeys(dec *bin.Decoder) ([]solana.PublicKey, error) {
	n, err := readLen(dec)
	if err != nil {
		return nil, err
	}
	var keys []solana.PublicKey
	for i := 0; i < n; i++ {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: key: %w", ErrInvalidPlan, err)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func readBool(dec *bin.Decoder) (bool, error) {
	b, err := dec.ReadByte()
	if err != nil {
		return false, fmt.Errorf("%w: bool: %w", ErrInvalidPlan, err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte %d", ErrInvalidPlan, b)
	}
}

// readLen reads a vector length, bounding it by the bytes left so a
// corrupt length cannot force a huge allocation.
func readLen(dec *bin.Decoder) (int, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("%w: length: %w", ErrInvalidPlan, err)
	}
	if int64(n) > int64(dec.Remaining()) {
		return 0, fmt.Errorf("%w: length %d exceeds data", ErrInvalidPlan, n)
	}
	return int(n), nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge is an in-process attestation bridge program. It assigns
// sequences to outbound messages, collects message fees and posts attested
// inbound envelopes for programs to consume.
package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// Instruction tags
const (
	InstructionInitialize  byte = 0
	InstructionPostMessage byte = 1
	InstructionPostVAA     byte = 2
)

var (
	ErrInvalidAccount     = errors.New("account is not at the expected address")
	ErrInvalidAccountData = errors.New("invalid account data")
	ErrInsufficientFee    = errors.New("message fee not paid")
	ErrInvalidInstruction = errors.New("invalid bridge instruction")
	ErrNotObserved        = errors.New("message not observed")
)

var _ runtime.Program = (*CoreBridge)(nil)

// Config configures the bridge program
type Config struct {
	ProgramID solana.PublicKey
	ChainID   uint16
	Verifier  Verifier
}

// CoreBridge is the bridge program
type CoreBridge struct {
	log       log.Logger
	programID solana.PublicKey
	chainID   uint16
	verifier  Verifier

	bridge       state.Address
	feeCollector state.Address
}

// New creates the bridge program
func New(log log.Logger, cfg *Config) (*CoreBridge, error) {
	bridge, err := BridgeAddress(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	feeCollector, err := FeeCollectorAddress(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = TrustedVerifier{}
	}
	return &CoreBridge{
		log:          log,
		programID:    cfg.ProgramID,
		chainID:      cfg.ChainID,
		verifier:     verifier,
		bridge:       bridge,
		feeCollector: feeCollector,
	}, nil
}

func (b *CoreBridge) ID() solana.PublicKey {
	return b.programID
}

// ChainID returns the chain the bridge assigns to its emitters
func (b *CoreBridge) ChainID() uint16 {
	return b.chainID
}

// Bridge returns the bridge data account
func (b *CoreBridge) Bridge() solana.PublicKey {
	return b.bridge.Key
}

// FeeCollector returns the fee collector account
func (b *CoreBridge) FeeCollector() solana.PublicKey {
	return b.feeCollector.Key
}

// Process dispatches a bridge instruction
func (b *CoreBridge) Process(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidInstruction)
	}
	switch data[0] {
	case InstructionInitialize:
		return b.initialize(c, accounts, data[1:])
	case InstructionPostMessage:
		return b.postMessage(c, accounts, data[1:])
	case InstructionPostVAA:
		return b.postVAA(c, accounts, data[1:])
	default:
		return fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, data[0])
	}
}

// accounts: [bridge, fee_collector, payer]
func (b *CoreBridge) initialize(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(accounts) < 3 {
		return fmt.Errorf("%w: initialize needs 3 accounts", ErrInvalidInstruction)
	}
	if err := expect(accounts[0], b.bridge.Key); err != nil {
		return err
	}
	if err := expect(accounts[1], b.feeCollector.Key); err != nil {
		return err
	}

	dec := bin.NewBorshDecoder(data)
	fee, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: fee: %w", ErrInvalidInstruction, err)
	}
	guardianSetIndex, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: guardian set index: %w", ErrInvalidInstruction, err)
	}

	if err := c.CreateAccount(b.feeCollector.Key, b.feeCollector.SignerSeeds(), nil); err != nil {
		return err
	}
	bridgeData := &Data{
		GuardianSetIndex: guardianSetIndex,
		Fee:              fee,
	}
	if err := c.CreateAccount(b.bridge.Key, b.bridge.SignerSeeds(), bridgeData.Bytes()); err != nil {
		return err
	}
	c.Msg("initialized bridge on chain %d with fee %d", b.chainID, fee)
	return nil
}

// accounts: [bridge, message, emitter, sequence, payer, fee_collector, ...]
func (b *CoreBridge) postMessage(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(accounts) < 6 {
		return fmt.Errorf("%w: post_message needs 6 accounts", ErrInvalidInstruction)
	}
	var (
		bridgeMeta   = accounts[0]
		messageMeta  = accounts[1]
		emitterMeta  = accounts[2]
		sequenceMeta = accounts[3]
		feeMeta      = accounts[5]
	)
	if err := expect(bridgeMeta, b.bridge.Key); err != nil {
		return err
	}
	if err := expect(feeMeta, b.feeCollector.Key); err != nil {
		return err
	}
	emitter := emitterMeta.PublicKey
	if !c.IsSigner(emitter) {
		return fmt.Errorf("%w: emitter %s", runtime.ErrMissingSignature, emitter)
	}
	sequenceAddr, err := SequenceAddress(b.programID, emitter)
	if err != nil {
		return err
	}
	if err := expect(sequenceMeta, sequenceAddr.Key); err != nil {
		return err
	}

	nonce, payload, consistency, err := parsePostMessage(data)
	if err != nil {
		return err
	}

	// the fee is paid by crediting the collector before the call
	bridgeAcct, err := c.Get(b.bridge.Key)
	if err != nil {
		return err
	}
	bridgeData, err := ParseData(bridgeAcct.Data)
	if err != nil {
		return err
	}
	collector, err := c.Get(b.feeCollector.Key)
	if err != nil {
		return err
	}
	if collector.Lamports < bridgeData.LastLamports || collector.Lamports-bridgeData.LastLamports < bridgeData.Fee {
		return fmt.Errorf("%w: fee is %d", ErrInsufficientFee, bridgeData.Fee)
	}
	bridgeData.LastLamports = collector.Lamports
	if err := c.Put(b.bridge.Key, bridgeData.Bytes()); err != nil {
		return err
	}

	var trackerData []byte
	if tracker, err := c.Get(sequenceAddr.Key); err == nil {
		trackerData = tracker.Data
	} else if !errors.Is(err, runtime.ErrAccountNotFound) {
		return err
	}
	sequence, err := NextSequence(trackerData)
	if err != nil {
		return err
	}

	msg := &PostedMessage{
		ConsistencyLevel: consistency,
		Timestamp:        uint32(c.Now().Unix()),
		Nonce:            nonce,
		Sequence:         sequence,
		EmitterChain:     b.chainID,
		EmitterAddress:   emitter,
		Payload:          payload,
	}
	msgBytes, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := c.CreateSignedAccount(messageMeta.PublicKey, msgBytes); err != nil {
		return err
	}

	next, err := hello.AddUint64(sequence, 1)
	if err != nil {
		return err
	}
	if err := c.Put(sequenceAddr.Key, sequenceBytes(next)); err != nil {
		return err
	}

	observation, err := observationAddress(b.programID, emitter, sequence)
	if err != nil {
		return err
	}
	if err := c.CreateAccount(observation.Key, observation.SignerSeeds(), messageMeta.PublicKey.Bytes()); err != nil {
		return err
	}

	c.Msg("Sequence: %d", sequence)
	return nil
}

func parsePostMessage(data []byte) (uint32, []byte, uint8, error) {
	dec := bin.NewBorshDecoder(data)
	nonce, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("%w: nonce: %w", ErrInvalidInstruction, err)
	}
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("%w: payload length: %w", ErrInvalidInstruction, err)
	}
	if int64(n) > int64(dec.Remaining()) {
		return 0, nil, 0, fmt.Errorf("%w: payload length %d exceeds data", ErrInvalidInstruction, n)
	}
	payload, err := dec.ReadNBytes(int(n))
	if err != nil {
		return 0, nil, 0, fmt.Errorf("%w: payload: %w", ErrInvalidInstruction, err)
	}
	consistency, err := dec.ReadByte()
	if err != nil {
		return 0, nil, 0, fmt.Errorf("%w: consistency: %w", ErrInvalidInstruction, err)
	}
	return nonce, payload, consistency, nil
}

// accounts: [payer, posted_vaa, ...]
func (b *CoreBridge) postVAA(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(accounts) < 2 {
		return fmt.Errorf("%w: post_vaa needs 2 accounts", ErrInvalidInstruction)
	}
	dec := bin.NewBorshDecoder(data)
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: body length: %w", ErrInvalidInstruction, err)
	}
	if int64(n) > int64(dec.Remaining()) {
		return fmt.Errorf("%w: body length %d exceeds data", ErrInvalidInstruction, n)
	}
	body, err := dec.ReadNBytes(int(n))
	if err != nil {
		return fmt.Errorf("%w: body: %w", ErrInvalidInstruction, err)
	}

	hash := hello.EnvelopeHash(body)
	posted, err := PostedVAAAddress(b.programID, hash)
	if err != nil {
		return err
	}
	if err := expect(accounts[1], posted.Key); err != nil {
		return err
	}
	if err := b.verifier.Verify(c.Context(), body); err != nil {
		return fmt.Errorf("envelope %s rejected: %w", hash, err)
	}

	// posting is idempotent
	exists, err := c.Exists(posted.Key)
	if err != nil || exists {
		return err
	}
	vaa := &PostedVAA{Hash: hash, Body: body}
	vaaBytes, err := vaa.Bytes()
	if err != nil {
		return err
	}
	if err := c.CreateAccount(posted.Key, posted.SignerSeeds(), vaaBytes); err != nil {
		return err
	}
	c.Msg("posted envelope %s", hash)
	return nil
}

func expect(meta *solana.AccountMeta, want solana.PublicKey) error {
	if meta.PublicKey != want {
		return fmt.Errorf("%w: have %s, want %s", ErrInvalidAccount, meta.PublicKey, want)
	}
	return nil
}

// InitializeInstruction builds the instruction creating the bridge accounts
func (b *CoreBridge) InitializeInstruction(payer solana.PublicKey, fee uint64, guardianSetIndex uint32) runtime.Instruction {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteByte(InstructionInitialize)
	_ = enc.WriteUint64(fee, binary.LittleEndian)
	_ = enc.WriteUint32(guardianSetIndex, binary.LittleEndian)
	return runtime.Instruction{
		ProgramID: b.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(b.bridge.Key, true, false),
			solana.NewAccountMeta(b.feeCollector.Key, true, false),
			solana.NewAccountMeta(payer, true, true),
		},
		Data: buf.Bytes(),
	}
}

// PostMessageData encodes the post_message instruction data
func PostMessageData(nonce uint32, payload []byte, consistency uint8) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteByte(InstructionPostMessage)
	_ = enc.WriteUint32(nonce, binary.LittleEndian)
	_ = enc.WriteUint32(uint32(len(payload)), binary.LittleEndian)
	_ = enc.WriteBytes(payload, false)
	_ = enc.WriteByte(consistency)
	return buf.Bytes()
}

// PostVAAInstruction builds the instruction posting an attested envelope
func (b *CoreBridge) PostVAAInstruction(payer solana.PublicKey, body []byte) (runtime.Instruction, error) {
	posted, err := PostedVAAAddress(b.programID, hello.EnvelopeHash(body))
	if err != nil {
		return runtime.Instruction{}, err
	}
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteByte(InstructionPostVAA)
	_ = enc.WriteUint32(uint32(len(body)), binary.LittleEndian)
	_ = enc.WriteBytes(body, false)
	return runtime.Instruction{
		ProgramID: b.programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(posted.Key, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: buf.Bytes(),
	}, nil
}

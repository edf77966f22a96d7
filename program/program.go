// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package program is the hello program: it publishes greetings through the
// bridge, accepts greetings from registered peers at most once and tells
// relayers how to deliver inbound envelopes.
package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/executor"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

// Instruction discriminators
var (
	InitializeDiscriminator          = hello.InstructionDiscriminator("initialize")
	RegisterPeerDiscriminator        = hello.InstructionDiscriminator("register_peer")
	SendGreetingDiscriminator        = hello.InstructionDiscriminator("send_greeting")
	AnnounceDiscriminator            = hello.InstructionDiscriminator("announce")
	ReceiveGreetingDiscriminator     = hello.InstructionDiscriminator("receive_greeting")
	RequestRelayDiscriminator        = hello.InstructionDiscriminator("request_relay")
	UpdateBridgeConfigDiscriminator  = hello.InstructionDiscriminator("update_bridge_config")
	ResolveExecuteVAAv1Discriminator = hello.InstructionDiscriminator("resolve_execute_vaa_v1")

	// ExecutorResolveDiscriminator is the opcode executors call resolvers
	// with. It carries [u32 LE length][envelope body] and no accounts.
	ExecutorResolveDiscriminator = hello.Discriminator{148, 184, 169, 222, 207, 8, 154, 127}
)

var _ runtime.Program = (*Program)(nil)

// Config configures the program
type Config struct {
	ProgramID         solana.PublicKey
	BridgeProgramID   solana.PublicKey
	ExecutorProgramID solana.PublicKey
}

// Program is the hello program
type Program struct {
	log        log.Logger
	programID  solana.PublicKey
	bridgeID   solana.PublicKey
	executorID solana.PublicKey

	config  state.Address
	emitter state.Address

	metrics *metrics
}

// New creates the program. Metrics are registered on registerer if it is
// not nil.
func New(log log.Logger, cfg *Config, registerer prometheus.Registerer) (*Program, error) {
	config, err := state.ConfigAddress(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	emitter, err := state.EmitterAddress(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	executorID := cfg.ExecutorProgramID
	if executorID.IsZero() {
		executorID = executor.DefaultProgramID
	}
	return &Program{
		log:        log,
		programID:  cfg.ProgramID,
		bridgeID:   cfg.BridgeProgramID,
		executorID: executorID,
		config:     config,
		emitter:    emitter,
		metrics:    m,
	}, nil
}

func (p *Program) ID() solana.PublicKey {
	return p.programID
}

// BridgeProgramID returns the bridge the program publishes through
func (p *Program) BridgeProgramID() solana.PublicKey {
	return p.bridgeID
}

// ExecutorProgramID returns the executor relay requests are paid to
func (p *Program) ExecutorProgramID() solana.PublicKey {
	return p.executorID
}

// ConfigAddress returns the settings account
func (p *Program) ConfigAddress() solana.PublicKey {
	return p.config.Key
}

// EmitterAddress returns the emitter identity of the program
func (p *Program) EmitterAddress() solana.PublicKey {
	return p.emitter.Key
}

// Process dispatches an instruction by its discriminator
func (p *Program) Process(c *runtime.Context, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) < hello.DiscriminatorLen {
		return fmt.Errorf("%w: %d bytes of instruction data", hello.ErrFallbackNotFound, len(data))
	}
	args := data[hello.DiscriminatorLen:]
	switch hello.Discriminator(data[:hello.DiscriminatorLen]) {
	case InitializeDiscriminator:
		return p.initialize(c, accounts, args)
	case RegisterPeerDiscriminator:
		return p.registerPeer(c, accounts, args)
	case SendGreetingDiscriminator:
		return p.sendGreeting(c, accounts, args)
	case AnnounceDiscriminator:
		return p.announce(c, accounts)
	case ReceiveGreetingDiscriminator:
		return p.receiveGreeting(c, accounts, args)
	case RequestRelayDiscriminator:
		return p.requestRelay(c, accounts, args)
	case UpdateBridgeConfigDiscriminator:
		return p.updateBridgeConfig(c, accounts)
	case ResolveExecuteVAAv1Discriminator:
		return p.resolveExecuteVAAv1(c, accounts, args)
	case ExecutorResolveDiscriminator:
		c.Msg("executor resolver call")
		return p.resolveRaw(c, args)
	default:
		return fmt.Errorf("%w: %x", hello.ErrFallbackNotFound, data[:hello.DiscriminatorLen])
	}
}

// loadConfig checks meta is the settings account and parses it
func (p *Program) loadConfig(c *runtime.Context, meta *solana.AccountMeta) (*state.Config, error) {
	if err := expect(meta, p.config.Key); err != nil {
		return nil, err
	}
	acct, err := c.Get(p.config.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: config: %w", hello.ErrAccountData, err)
	}
	if acct.Owner != p.programID {
		return nil, fmt.Errorf("%w: config owned by %s", hello.ErrAccountOwner, acct.Owner)
	}
	return state.ParseConfig(acct.Data)
}

// authorize checks meta is the configured owner and signed
func authorize(c *runtime.Context, meta *solana.AccountMeta, config *state.Config) error {
	if meta.PublicKey != config.Owner {
		return fmt.Errorf("%w: %s", hello.ErrOwnerOnly, meta.PublicKey)
	}
	return requireSigner(c, meta)
}

func requireSigner(c *runtime.Context, meta *solana.AccountMeta) error {
	if !c.IsSigner(meta.PublicKey) {
		return fmt.Errorf("%w: %s", hello.ErrMissingSigner, meta.PublicKey)
	}
	return nil
}

func requireAccounts(accounts []*solana.AccountMeta, n int, instruction string) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: %s needs %d accounts, have %d", hello.ErrNotEnoughKeys, instruction, n, len(accounts))
	}
	return nil
}

func expect(meta *solana.AccountMeta, want solana.PublicKey) error {
	if meta.PublicKey != want {
		return fmt.Errorf("%w: have %s, want %s", hello.ErrConstraintSeeds, meta.PublicKey, want)
	}
	return nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/executor"
	"github.com/luxfi/hello/program"
	"github.com/luxfi/hello/resolver"
	"github.com/luxfi/hello/state"
)

func (a *app) deriveCmd() *cobra.Command {
	var (
		chain    uint16
		sequence uint64
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the accounts of the configured program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.cfg.Program()
			if err != nil {
				return err
			}
			config, err := state.ConfigAddress(cfg.ProgramID)
			if err != nil {
				return err
			}
			emitter, err := state.EmitterAddress(cfg.ProgramID)
			if err != nil {
				return err
			}
			peer, err := state.PeerAddress(cfg.ProgramID, chain)
			if err != nil {
				return err
			}
			received, err := state.ReceivedAddress(cfg.ProgramID, chain, sequence)
			if err != nil {
				return err
			}
			sent, err := state.SentAddress(cfg.ProgramID, sequence)
			if err != nil {
				return err
			}
			bridgeData, err := bridge.BridgeAddress(cfg.BridgeProgramID)
			if err != nil {
				return err
			}
			feeCollector, err := bridge.FeeCollectorAddress(cfg.BridgeProgramID)
			if err != nil {
				return err
			}
			tracker, err := bridge.SequenceAddress(cfg.BridgeProgramID, emitter.Key)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]string{
				"config":       config.Key.String(),
				"emitter":      emitter.Key.String(),
				"peer":         peer.Key.String(),
				"received":     received.Key.String(),
				"sent":         sent.Key.String(),
				"bridge":       bridgeData.Key.String(),
				"feeCollector": feeCollector.Key.String(),
				"sequence":     tracker.Key.String(),
			})
		},
	}
	cmd.Flags().Uint16Var(&chain, "chain", 0, "chain of the peer and received accounts")
	cmd.Flags().Uint64Var(&sequence, "sequence", 0, "sequence of the received and sent accounts")
	return cmd
}

type accountView struct {
	Key      string `json:"key" yaml:"key"`
	Kind     string `json:"kind" yaml:"kind"`
	Signer   bool   `json:"signer" yaml:"signer"`
	Writable bool   `json:"writable" yaml:"writable"`
}

type instructionView struct {
	ProgramID string        `json:"programId" yaml:"programId"`
	Accounts  []accountView `json:"accounts" yaml:"accounts"`
	Data      string        `json:"data" yaml:"data"`
}

type planView struct {
	Groups [][]instructionView `json:"groups" yaml:"groups"`
	Borsh  string              `json:"borsh" yaml:"borsh"`
}

func newPlanView(plan *resolver.Result) (planView, error) {
	b, err := plan.MarshalBorsh()
	if err != nil {
		return planView{}, err
	}
	view := planView{Borsh: hexutil.Encode(b)}
	for _, group := range plan.Groups {
		var instructions []instructionView
		for _, ix := range group.Instructions {
			iv := instructionView{
				ProgramID: ix.ProgramID.String(),
				Data:      hexutil.Encode(ix.Data),
			}
			for _, meta := range ix.Accounts {
				iv.Accounts = append(iv.Accounts, accountView{
					Key:      meta.Key().String(),
					Kind:     meta.Kind.String(),
					Signer:   meta.IsSigner,
					Writable: meta.IsWritable,
				})
			}
			instructions = append(instructions, iv)
		}
		view.Groups = append(view.Groups, instructions)
	}
	return view, nil
}

func (a *app) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <envelope-hex>",
		Short: "Build the plan that delivers an envelope to the configured program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			cfg, err := a.cfg.Program()
			if err != nil {
				return err
			}
			plan, err := program.Plan(cfg.ProgramID, cfg.BridgeProgramID, body)
			if err != nil {
				return err
			}
			view, err := newPlanView(plan)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), view)
		},
	}
}

type requestView struct {
	Request           string `json:"request" yaml:"request"`
	RelayInstructions string `json:"relayInstructions" yaml:"relayInstructions"`
}

func (a *app) requestCmd() *cobra.Command {
	var (
		chain     uint16
		emitter   string
		sequence  uint64
		gasLimit  string
		msgValue  string
		dropOff   string
		recipient string
	)
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Encode the request and relay instructions of a relay request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if chain == 0 {
				chain = a.cfg.ChainID
			}
			emitterKey, err := a.emitter(emitter)
			if err != nil {
				return err
			}

			var instructions []executor.RelayInstruction
			if gasLimit != "" {
				ix := &executor.GasInstruction{}
				if ix.GasLimit, err = uint256.FromDecimal(gasLimit); err != nil {
					return fmt.Errorf("invalid gas limit %q: %w", gasLimit, err)
				}
				if ix.MsgValue, err = uint256.FromDecimal(msgValue); err != nil {
					return fmt.Errorf("invalid msg value %q: %w", msgValue, err)
				}
				instructions = append(instructions, ix)
			}
			if dropOff != "" {
				ix := &executor.GasDropOffInstruction{}
				if ix.DropOff, err = uint256.FromDecimal(dropOff); err != nil {
					return fmt.Errorf("invalid drop off %q: %w", dropOff, err)
				}
				to, err := solana.PublicKeyFromBase58(recipient)
				if err != nil {
					return fmt.Errorf("invalid recipient %q: %w", recipient, err)
				}
				ix.Recipient = to
				instructions = append(instructions, ix)
			}
			relayInstructions, err := executor.EncodeRelayInstructions(instructions...)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), requestView{
				Request:           hexutil.Encode(executor.MakeVAAv1Request(chain, emitterKey, sequence)),
				RelayInstructions: hexutil.Encode(relayInstructions),
			})
		},
	}
	flags := cmd.Flags()
	flags.Uint16Var(&chain, "emitter-chain", 0, "chain of the emitter, the configured chain by default")
	flags.StringVar(&emitter, "emitter", "", "emitter address, the configured program's by default")
	flags.Uint64Var(&sequence, "sequence", 0, "sequence of the message to relay")
	flags.StringVar(&gasLimit, "gas-limit", "", "compute limit requested on the destination")
	flags.StringVar(&msgValue, "msg-value", "0", "value attached on the destination")
	flags.StringVar(&dropOff, "drop-off", "", "native amount sent to the recipient")
	flags.StringVar(&recipient, "recipient", "", "drop off recipient")
	return cmd
}

func (a *app) emitter(address string) (solana.PublicKey, error) {
	if address != "" {
		key, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid emitter %q: %w", address, err)
		}
		return key, nil
	}
	cfg, err := a.cfg.Program()
	if err != nil {
		return solana.PublicKey{}, err
	}
	emitter, err := state.EmitterAddress(cfg.ProgramID)
	return emitter.Key, err
}

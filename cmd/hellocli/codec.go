// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/luxfi/hello"
)

type messageView struct {
	Type      string `json:"type" yaml:"type"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
	ProgramID string `json:"programId,omitempty" yaml:"programId,omitempty"`
	Encoded   string `json:"encoded" yaml:"encoded"`
}

func newMessageView(msg hello.Message, encoded []byte) messageView {
	view := messageView{Encoded: hexutil.Encode(encoded)}
	switch m := msg.(type) {
	case *hello.Hello:
		view.Type = "hello"
		view.Text = string(m.Text)
	case *hello.Alive:
		view.Type = "alive"
		view.ProgramID = m.ProgramID.String()
	}
	return view
}

type envelopeView struct {
	Hash             string `json:"hash" yaml:"hash"`
	Timestamp        uint32 `json:"timestamp" yaml:"timestamp"`
	Nonce            uint32 `json:"nonce" yaml:"nonce"`
	EmitterChain     uint16 `json:"emitterChain" yaml:"emitterChain"`
	EmitterAddress   string `json:"emitterAddress" yaml:"emitterAddress"`
	Sequence         uint64 `json:"sequence" yaml:"sequence"`
	ConsistencyLevel uint8  `json:"consistencyLevel" yaml:"consistencyLevel"`
	Payload          string `json:"payload" yaml:"payload"`
	Greeting         string `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	GreetingError    string `json:"greetingError,omitempty" yaml:"greetingError,omitempty"`
}

func (a *app) encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a greeting protocol message",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "hello <text>",
			Short: "Encode a Hello message",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := hello.NewHello([]byte(args[0]))
				if err != nil {
					return err
				}
				return a.printMessage(cmd, msg)
			},
		},
		&cobra.Command{
			Use:   "alive [program-id]",
			Short: "Encode an Alive message, for the configured program by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				programID := a.cfg.ProgramID
				if len(args) == 1 {
					programID = args[0]
				}
				key, err := solana.PublicKeyFromBase58(programID)
				if err != nil {
					return fmt.Errorf("invalid program id %q: %w", programID, err)
				}
				return a.printMessage(cmd, hello.NewAlive(key))
			},
		},
	)
	return cmd
}

func (a *app) printMessage(cmd *cobra.Command, msg hello.Message) error {
	b, err := hello.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return a.print(cmd.OutOrStdout(), newMessageView(msg, b))
}

func (a *app) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode an encoded greeting protocol message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			msg, err := hello.ParseMessage(b)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), newMessageView(msg, b))
		},
	}
}

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <envelope-hex>",
		Short: "Parse an envelope body and extract its greeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			envelope, err := hello.ParseEnvelope(body)
			if err != nil {
				return err
			}
			hash := hello.EnvelopeHash(body)
			view := envelopeView{
				Hash:             common.BytesToHash(hash[:]).Hex(),
				Timestamp:        envelope.Timestamp,
				Nonce:            envelope.Nonce,
				EmitterChain:     envelope.EmitterChain,
				EmitterAddress:   solana.PublicKeyFromBytes(envelope.EmitterAddress[:]).String(),
				Sequence:         envelope.Sequence,
				ConsistencyLevel: envelope.ConsistencyLevel,
				Payload:          hexutil.Encode(envelope.Payload),
			}
			greeting, err := hello.ParseGreeting(envelope.Payload)
			switch {
			case err != nil:
				view.GreetingError = err.Error()
			case !hello.ValidGreeting(greeting):
				view.GreetingError = hello.ErrInvalidMessage.Error()
			default:
				view.Greeting = string(greeting)
			}
			return a.print(cmd.OutOrStdout(), view)
		},
	}
}

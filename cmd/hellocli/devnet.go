// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/backend"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/executor"
	"github.com/luxfi/hello/program"
	"github.com/luxfi/hello/relay"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

const devnetFunds = 1_000_000_000

// devnetChain is one in-process chain of the devnet
type devnetChain struct {
	rt      *runtime.Runtime
	bridge  *bridge.CoreBridge
	program *program.Program
	owner   solana.PublicKey
	payee   solana.PublicKey
	logs    io.Writer
}

// newDevnetChain deploys the bridge, executor and program over b, and
// initializes the accounts that do not exist yet.
func newDevnetChain(
	ctx context.Context,
	logger log.Logger,
	b backend.Backend,
	cfg *program.Config,
	bridgeCfg *bridge.Config,
	fee uint64,
	registerer prometheus.Registerer,
	logs io.Writer,
) (*devnetChain, error) {
	rt := runtime.New(logger, b)
	core, err := bridge.New(logger, bridgeCfg)
	if err != nil {
		return nil, err
	}
	rt.Register(core)
	p, err := program.New(logger, cfg, registerer)
	if err != nil {
		return nil, err
	}
	rt.Register(p)
	payee := solana.PublicKeyFromBytes(hello.ComputeHash256(p.ExecutorProgramID().Bytes()))
	rt.Register(executor.NewProgram(logger, p.ExecutorProgramID(), payee))

	// the owner is derived so that a persisted devnet keeps its authority
	owner := solana.PublicKeyFromBytes(hello.ComputeHash256(p.ID().Bytes()))
	c := &devnetChain{
		rt:      rt,
		bridge:  core,
		program: p,
		owner:   owner,
		payee:   payee,
		logs:    logs,
	}
	if err := rt.Fund(ctx, owner, devnetFunds); err != nil {
		return nil, err
	}
	if _, err := rt.Account(ctx, core.Bridge()); errors.Is(err, runtime.ErrAccountNotFound) {
		if _, err := c.execute(ctx, core.InitializeInstruction(owner, fee, 0)); err != nil {
			return nil, fmt.Errorf("failed to initialize bridge: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	if _, err := rt.Account(ctx, p.ConfigAddress()); errors.Is(err, runtime.ErrAccountNotFound) {
		ix, err := p.InitializeInstruction(owner, bridgeCfg.ChainID)
		if err != nil {
			return nil, err
		}
		if _, err := c.execute(ctx, ix); err != nil {
			return nil, fmt.Errorf("failed to initialize program: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *devnetChain) execute(ctx context.Context, ix runtime.Instruction) (*runtime.Result, error) {
	res, err := c.rt.Execute(ctx, ix, c.owner)
	if c.logs != nil && res != nil {
		for _, line := range res.Logs {
			fmt.Fprintln(c.logs, line)
		}
	}
	return res, err
}

func (c *devnetChain) trust(ctx context.Context, chain uint16, peer *devnetChain) error {
	ix, err := c.program.RegisterPeerInstruction(c.owner, chain, peer.program.EmitterAddress())
	if err != nil {
		return err
	}
	_, err = c.execute(ctx, ix)
	return err
}

type deliveryView struct {
	SourceChain      uint16 `json:"sourceChain" yaml:"sourceChain"`
	DestinationChain uint16 `json:"destinationChain" yaml:"destinationChain"`
	Sequence         uint64 `json:"sequence" yaml:"sequence"`
	Envelope         string `json:"envelope" yaml:"envelope"`
	EnvelopeHash     string `json:"envelopeHash" yaml:"envelopeHash"`
	Received         string `json:"received" yaml:"received"`
	Job              string `json:"job" yaml:"job"`
}

func (a *app) devnetCmd() *cobra.Command {
	var (
		dstChain   uint16
		text       string
		execAmount uint64
	)
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Send a greeting between two in-process chains and relay it",
		Long: `devnet deploys the program on the configured chain and on a destination
chain, registers each as the other's peer, sends a greeting, requests a relay
and runs the relayer until the greeting is received on the destination.
The source chain keeps its accounts in the configured database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if dstChain == a.cfg.ChainID {
				return fmt.Errorf("destination chain %d is the source chain", dstChain)
			}
			var logs io.Writer
			if a.cfg.Verbose() {
				logs = cmd.ErrOrStderr()
			}

			cfg, err := a.cfg.Program()
			if err != nil {
				return err
			}
			srcBackend, err := a.cfg.OpenBackend(ctx)
			if err != nil {
				return err
			}
			defer srcBackend.Close()

			registry := prometheus.NewRegistry()
			src, err := newDevnetChain(ctx, a.log.With("chain", a.cfg.ChainID), srcBackend, cfg, a.cfg.Bridge(cfg.BridgeProgramID), a.cfg.MessageFee, prometheus.WrapRegistererWith(prometheus.Labels{"chain": "source"}, registry), logs)
			if err != nil {
				return err
			}
			dstBridge := a.cfg.Bridge(cfg.BridgeProgramID)
			dstBridge.ChainID = dstChain
			dst, err := newDevnetChain(ctx, a.log.With("chain", dstChain), backend.NewMemoryBackend(), cfg, dstBridge, 0, prometheus.WrapRegistererWith(prometheus.Labels{"chain": "destination"}, registry), logs)
			if err != nil {
				return err
			}
			if err := src.trust(ctx, dstChain, dst); err != nil {
				return err
			}
			if err := dst.trust(ctx, a.cfg.ChainID, src); err != nil {
				return err
			}

			sequence, err := src.program.NextSequence(ctx, src.rt)
			if err != nil {
				return err
			}
			send, err := src.program.SendGreetingInstruction(src.owner, sequence, text)
			if err != nil {
				return err
			}
			if _, err := src.execute(ctx, send); err != nil {
				return err
			}
			request, err := src.program.RequestRelayInstruction(src.owner, src.payee, &program.RequestRelayArgs{
				DstChain:   dstChain,
				ExecAmount: execAmount,
				Sequence:   &sequence,
			})
			if err != nil {
				return err
			}
			res, err := src.execute(ctx, request)
			if err != nil {
				return err
			}
			requests, err := relay.Requests(res)
			if err != nil {
				return err
			}

			relayCfg := a.cfg.Relayer(dst.owner)
			relayCfg.ChainID = dstChain
			relayCfg.Programs = map[solana.PublicKey]solana.PublicKey{
				dst.program.EmitterAddress(): dst.program.ID(),
			}
			observer := bridge.NewObserver(src.bridge, src.rt)
			relayer := relay.New(a.log.With("component", "relayer"), relayCfg, observer, dst.rt, dst.bridge, registry)
			if err := relayer.HandleRequests(ctx, requests); err != nil {
				return err
			}

			body, err := observer.Envelope(ctx, a.cfg.ChainID, src.program.EmitterAddress(), sequence)
			if err != nil {
				return err
			}
			receivedAddr, err := state.ReceivedAddress(dst.program.ID(), a.cfg.ChainID, sequence)
			if err != nil {
				return err
			}
			acct, err := dst.rt.Account(ctx, receivedAddr.Key)
			if err != nil {
				return err
			}
			received, err := state.ParseReceived(acct.Data)
			if err != nil {
				return err
			}
			hash := hello.EnvelopeHash(body)
			view := deliveryView{
				SourceChain:      a.cfg.ChainID,
				DestinationChain: dstChain,
				Sequence:         sequence,
				Envelope:         common.Bytes2Hex(body),
				EnvelopeHash:     common.BytesToHash(hash[:]).Hex(),
				Received:         string(received.Message),
			}
			if len(requests) > 0 {
				view.Job = requests[0].ID.String()
			}
			return a.print(cmd.OutOrStdout(), view)
		},
	}
	flags := cmd.Flags()
	flags.Uint16Var(&dstChain, "destination-chain", 2, "chain id of the destination")
	flags.StringVar(&text, "text", "hello", "greeting to send")
	flags.Uint64Var(&execAmount, "exec-amount", 0, "lamports paid to the executor")
	return cmd
}

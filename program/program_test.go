// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/backend"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/executor"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

const (
	localChain   uint16 = 1
	foreignChain uint16 = 2
	testFee             = 100
	ownerFunds          = 1_000_000
	testNow             = 1_700_000_000
)

var foreignPeer = [32]byte{0: 0xab, 31: 0xcd}

type testEnv struct {
	rt       *runtime.Runtime
	bridge   *bridge.CoreBridge
	observer *bridge.Observer
	program  *Program
	owner    solana.PublicKey
	payee    solana.PublicKey
}

func newTestEnv(t *testing.T, fee uint64) *testEnv {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()

	rt := runtime.New(
		log.NewNoOpLogger(),
		backend.NewMemoryBackend(),
		runtime.WithClock(func() time.Time { return time.Unix(testNow, 0) }),
	)
	b, err := bridge.New(log.NewNoOpLogger(), &bridge.Config{
		ProgramID: solana.NewWallet().PublicKey(),
		ChainID:   localChain,
	})
	require.NoError(err)
	rt.Register(b)

	p, err := New(log.NewNoOpLogger(), &Config{
		ProgramID:       solana.NewWallet().PublicKey(),
		BridgeProgramID: b.ID(),
	}, prometheus.NewRegistry())
	require.NoError(err)
	rt.Register(p)

	payee := solana.NewWallet().PublicKey()
	rt.Register(executor.NewProgram(log.NewNoOpLogger(), p.ExecutorProgramID(), payee))

	owner := solana.NewWallet().PublicKey()
	require.NoError(rt.Fund(ctx, owner, ownerFunds))
	_, err = rt.Execute(ctx, b.InitializeInstruction(owner, fee, 0), owner)
	require.NoError(err)

	ix, err := p.InitializeInstruction(owner, localChain)
	require.NoError(err)
	_, err = rt.Execute(ctx, ix, owner)
	require.NoError(err)

	return &testEnv{
		rt:       rt,
		bridge:   b,
		observer: bridge.NewObserver(b, rt),
		program:  p,
		owner:    owner,
		payee:    payee,
	}
}

func (e *testEnv) registerPeer(t *testing.T, chain uint16, address [32]byte) error {
	t.Helper()

	ix, err := e.program.RegisterPeerInstruction(e.owner, chain, address)
	require.NoError(t, err)
	_, err = e.rt.Execute(context.Background(), ix, e.owner)
	return err
}

func (e *testEnv) send(t *testing.T, payer solana.PublicKey, text string) (*runtime.Result, error) {
	t.Helper()

	next, err := e.program.NextSequence(context.Background(), e.rt)
	require.NoError(t, err)
	ix, err := e.program.SendGreetingInstruction(payer, next, text)
	require.NoError(t, err)
	return e.rt.Execute(context.Background(), ix, payer)
}

func (e *testEnv) config(t *testing.T) *state.Config {
	t.Helper()

	acct, err := e.rt.Account(context.Background(), e.program.ConfigAddress())
	require.NoError(t, err)
	config, err := state.ParseConfig(acct.Data)
	require.NoError(t, err)
	return config
}

func (e *testEnv) lamports(t *testing.T, addr solana.PublicKey) uint64 {
	t.Helper()

	acct, err := e.rt.Account(context.Background(), addr)
	require.NoError(t, err)
	return acct.Lamports
}

func TestInitialize(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, testFee)

	config := env.config(t)
	require.Equal(env.owner, config.Owner)
	require.Equal(localChain, config.ChainID)
	require.Equal(env.bridge.Bridge(), config.Bridge.Bridge)
	require.Equal(env.bridge.FeeCollector(), config.Bridge.FeeCollector)
	sequence, err := env.program.SequenceAddress()
	require.NoError(err)
	require.Equal(sequence, config.Bridge.Sequence)
	require.Zero(config.BatchID)
	require.Equal(state.FinalityFinalized, config.Finality)

	emitterAddr, err := state.EmitterAddress(env.program.ID())
	require.NoError(err)
	require.Equal(emitterAddr.Key, env.program.EmitterAddress())
	acct, err := env.rt.Account(ctx, emitterAddr.Key)
	require.NoError(err)
	emitter, err := state.ParseEmitter(acct.Data)
	require.NoError(err)
	require.Equal(emitterAddr.Bump, emitter.Bump)

	// nothing is published on initialize
	next, err := env.program.NextSequence(ctx, env.rt)
	require.NoError(err)
	require.Zero(next)

	ix, err := env.program.InitializeInstruction(env.owner, localChain)
	require.NoError(err)
	_, err = env.rt.Execute(ctx, ix, env.owner)
	require.ErrorIs(err, runtime.ErrAccountExists)
}

func TestInitializeChecksBridgeAccounts(t *testing.T) {
	tests := []struct {
		name        string
		index       int
		expectedErr error
	}{
		{name: "bridge program", index: 2, expectedErr: hello.ErrInvalidBridgeConfig},
		{name: "bridge data", index: 3, expectedErr: hello.ErrInvalidBridgeConfig},
		{name: "fee collector", index: 4, expectedErr: hello.ErrInvalidFeeCollector},
		{name: "emitter", index: 5, expectedErr: hello.ErrConstraintSeeds},
		{name: "sequence", index: 6, expectedErr: hello.ErrInvalidSequence},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			rt := runtime.New(log.NewNoOpLogger(), backend.NewMemoryBackend())
			p, err := New(log.NewNoOpLogger(), &Config{
				ProgramID:       solana.NewWallet().PublicKey(),
				BridgeProgramID: solana.NewWallet().PublicKey(),
			}, nil)
			require.NoError(err)
			rt.Register(p)

			owner := solana.NewWallet().PublicKey()
			ix, err := p.InitializeInstruction(owner, localChain)
			require.NoError(err)
			ix.Accounts[test.index].PublicKey = solana.NewWallet().PublicKey()
			_, err = rt.Execute(context.Background(), ix, owner)
			require.ErrorIs(err, test.expectedErr)
		})
	}
}

func TestRegisterPeer(t *testing.T) {
	env := newTestEnv(t, 0)
	stranger := solana.NewWallet().PublicKey()

	tests := []struct {
		name        string
		signer      solana.PublicKey
		chain       uint16
		address     [32]byte
		expectedErr error
	}{
		{name: "not owner", signer: stranger, chain: foreignChain, address: foreignPeer, expectedErr: hello.ErrOwnerOnly},
		{name: "chain zero", signer: env.owner, chain: 0, address: foreignPeer, expectedErr: hello.ErrInvalidPeer},
		{name: "own chain", signer: env.owner, chain: localChain, address: foreignPeer, expectedErr: hello.ErrInvalidPeer},
		{name: "zero address", signer: env.owner, chain: foreignChain, expectedErr: hello.ErrInvalidPeer},
		{name: "valid", signer: env.owner, chain: foreignChain, address: foreignPeer},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ix, err := env.program.RegisterPeerInstruction(env.owner, test.chain, test.address)
			require.NoError(t, err)
			ix.Accounts[0].PublicKey = test.signer
			_, err = env.rt.Execute(context.Background(), ix, test.signer)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestRegisterPeerOverwrites(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)

	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))
	replacement := [32]byte{0: 0x11}
	require.NoError(env.registerPeer(t, foreignChain, replacement))

	addr, err := state.PeerAddress(env.program.ID(), foreignChain)
	require.NoError(err)
	acct, err := env.rt.Account(context.Background(), addr.Key)
	require.NoError(err)
	peer, err := state.ParsePeer(acct.Data)
	require.NoError(err)
	require.Equal(foreignChain, peer.Chain)
	require.Equal(replacement, peer.Address)
	require.False(peer.Verify(foreignPeer))
}

func TestSendGreeting(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, testFee)

	for i, text := range []string{"hello", "again"} {
		res, err := env.send(t, env.owner, text)
		require.NoError(err)

		seq := uint64(i)
		require.Equal(binary.LittleEndian.AppendUint64(nil, seq), res.ReturnData)
		require.Equal(env.program.ID(), res.ReturnProgram)
		require.Contains(res.Events, GreetingSent{Greeting: text, Sequence: seq, Timestamp: testNow})

		body, err := env.observer.Envelope(ctx, localChain, env.program.EmitterAddress(), seq)
		require.NoError(err)
		envelope, err := hello.ParseEnvelope(body)
		require.NoError(err)
		require.Equal(seq, envelope.Sequence)
		require.Equal([32]byte(env.program.EmitterAddress()), envelope.EmitterAddress)
		require.Equal(state.FinalityFinalized, envelope.ConsistencyLevel)

		msg, err := hello.ParseMessage(envelope.Payload)
		require.NoError(err)
		require.Equal(&hello.Hello{Text: []byte(text)}, msg)
	}

	require.Equal(uint64(ownerFunds-2*testFee), env.lamports(t, env.owner))
	require.Equal(uint64(2*testFee), env.lamports(t, env.bridge.FeeCollector()))
	require.Equal(2.0, testutil.ToFloat64(env.program.metrics.greetingsSent))
}

func TestSendGreetingFailures(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, testFee)

	_, err := env.send(t, env.owner, strings.Repeat("a", hello.MaxGreetingLength+1))
	require.ErrorIs(err, hello.ErrMessageTooLarge)

	_, err = env.send(t, env.owner, strings.Repeat("a", hello.MaxGreetingLength))
	require.NoError(err)

	// the slot must be the one of the sequence about to be assigned
	ix, err := env.program.SendGreetingInstruction(env.owner, 5, "hi")
	require.NoError(err)
	_, err = env.rt.Execute(ctx, ix, env.owner)
	require.ErrorIs(err, hello.ErrConstraintSeeds)

	// fee and publish roll back together
	poor := solana.NewWallet().PublicKey()
	require.NoError(env.rt.Fund(ctx, poor, testFee-1))
	_, err = env.send(t, poor, "hi")
	require.ErrorIs(err, runtime.ErrInsufficientFunds)
	require.Equal(uint64(testFee-1), env.lamports(t, poor))

	next, err := env.program.NextSequence(ctx, env.rt)
	require.NoError(err)
	require.Equal(uint64(1), next)
	require.Equal(1.0, testutil.ToFloat64(env.program.metrics.greetingsSent))
}

func TestSendGreetingChecksConfiguredAccounts(t *testing.T) {
	tests := []struct {
		name        string
		index       int
		expectedErr error
	}{
		{name: "bridge data", index: 3, expectedErr: hello.ErrInvalidBridgeConfig},
		{name: "fee collector", index: 4, expectedErr: hello.ErrInvalidFeeCollector},
		{name: "sequence", index: 6, expectedErr: hello.ErrInvalidSequence},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			env := newTestEnv(t, testFee)

			ix, err := env.program.SendGreetingInstruction(env.owner, 0, "hi")
			require.NoError(err)
			ix.Accounts[test.index].PublicKey = solana.NewWallet().PublicKey()
			_, err = env.rt.Execute(context.Background(), ix, env.owner)
			require.ErrorIs(err, test.expectedErr)
			require.Equal(uint64(ownerFunds), env.lamports(t, env.owner))
		})
	}
}

func TestAnnounce(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, 0)

	stranger := solana.NewWallet().PublicKey()
	ix, err := env.program.AnnounceInstruction(stranger, 0)
	require.NoError(err)
	_, err = env.rt.Execute(ctx, ix, stranger)
	require.ErrorIs(err, hello.ErrOwnerOnly)

	ix, err = env.program.AnnounceInstruction(env.owner, 0)
	require.NoError(err)
	_, err = env.rt.Execute(ctx, ix, env.owner)
	require.NoError(err)

	body, err := env.observer.Envelope(ctx, localChain, env.program.EmitterAddress(), 0)
	require.NoError(err)
	envelope, err := hello.ParseEnvelope(body)
	require.NoError(err)
	msg, err := hello.ParseMessage(envelope.Payload)
	require.NoError(err)
	require.Equal(hello.NewAlive(env.program.ID()), msg)
}

func TestUpdateBridgeConfig(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, 0)

	other := solana.NewWallet().PublicKey()

	stranger := solana.NewWallet().PublicKey()
	ix, err := env.program.UpdateBridgeConfigInstruction(stranger, other)
	require.NoError(err)
	_, err = env.rt.Execute(ctx, ix, stranger)
	require.ErrorIs(err, hello.ErrOwnerOnly)

	ix, err = env.program.UpdateBridgeConfigInstruction(env.owner, other)
	require.NoError(err)
	ix.Accounts[3].PublicKey = env.bridge.Bridge()
	_, err = env.rt.Execute(ctx, ix, env.owner)
	require.ErrorIs(err, hello.ErrInvalidBridgeConfig)

	ix, err = env.program.UpdateBridgeConfigInstruction(env.owner, other)
	require.NoError(err)
	ix.Accounts[4].PublicKey = env.bridge.FeeCollector()
	_, err = env.rt.Execute(ctx, ix, env.owner)
	require.ErrorIs(err, hello.ErrInvalidFeeCollector)

	ix, err = env.program.UpdateBridgeConfigInstruction(env.owner, other)
	require.NoError(err)
	_, err = env.rt.Execute(ctx, ix, env.owner)
	require.NoError(err)

	bridgeAddr, err := bridge.BridgeAddress(other)
	require.NoError(err)
	feeAddr, err := bridge.FeeCollectorAddress(other)
	require.NoError(err)
	config := env.config(t)
	require.Equal(bridgeAddr.Key, config.Bridge.Bridge)
	require.Equal(feeAddr.Key, config.Bridge.FeeCollector)

	// publishing now fails the configuration check
	_, err = env.send(t, env.owner, "hi")
	require.ErrorIs(err, hello.ErrInvalidBridgeConfig)
}

func TestRequestRelay(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	args := &RequestRelayArgs{
		DstChain:    foreignChain,
		ExecAmount:  250,
		SignedQuote: []byte{0x01, 0x02},
	}
	request := func(args *RequestRelayArgs) (*runtime.Result, error) {
		ix, err := env.program.RequestRelayInstruction(env.owner, env.payee, args)
		require.NoError(err)
		return env.rt.Execute(ctx, ix, env.owner)
	}

	_, err := request(args)
	require.ErrorIs(err, hello.ErrNoMessagesYet)

	_, err = env.send(t, env.owner, "hello")
	require.NoError(err)
	_, err = env.send(t, env.owner, "again")
	require.NoError(err)

	res, err := request(args)
	require.NoError(err)
	require.Len(res.Events, 1)
	event, ok := res.Events[0].(executor.RequestForExecution)
	require.True(ok)
	require.Equal(env.owner, event.Payer)
	require.Equal(env.payee, event.Payee)
	require.Equal(foreignChain, event.Args.DstChain)
	require.Equal(foreignPeer, event.Args.DstAddr)
	require.Equal(env.owner, event.Args.RefundAddr)
	require.Equal(args.SignedQuote, event.Args.SignedQuote)

	req, err := executor.ParseVAAv1Request(event.Args.RequestBytes)
	require.NoError(err)
	require.Equal(localChain, req.EmitterChain)
	require.Equal([32]byte(env.program.EmitterAddress()), req.EmitterAddress)
	require.Equal(uint64(1), req.Sequence)
	require.Equal(uint64(250), env.lamports(t, env.payee))

	first := uint64(0)
	args.Sequence = &first
	res, err = request(args)
	require.NoError(err)
	req, err = executor.ParseVAAv1Request(res.Events[0].(executor.RequestForExecution).Args.RequestBytes)
	require.NoError(err)
	require.Zero(req.Sequence)

	unpublished := uint64(2)
	args.Sequence = &unpublished
	_, err = request(args)
	require.ErrorIs(err, hello.ErrSequenceNotPublished)

	args.Sequence = nil
	args.DstChain = 9
	_, err = request(args)
	require.ErrorIs(err, hello.ErrInvalidPeer)

	require.Equal(2.0, testutil.ToFloat64(env.program.metrics.relayRequests.WithLabelValues(chainLabel(foreignChain))))
}

func TestRequestRelayArgs(t *testing.T) {
	require := require.New(t)

	seq := uint64(3)
	args := &RequestRelayArgs{
		DstChain:          2,
		ExecAmount:        7,
		SignedQuote:       []byte{1},
		RelayInstructions: []byte{2, 3},
		Sequence:          &seq,
	}
	b, err := args.MarshalBorsh()
	require.NoError(err)
	// chain | amount | quote | instructions | option
	require.Len(b, 2+8+(4+1)+(4+2)+(1+8))

	parsed, err := ParseRequestRelayArgs(b)
	require.NoError(err)
	require.Equal(args, parsed)

	args.Sequence = nil
	b, err = args.MarshalBorsh()
	require.NoError(err)
	require.Equal(byte(0), b[len(b)-1])
	parsed, err = ParseRequestRelayArgs(b)
	require.NoError(err)
	require.Nil(parsed.Sequence)

	b[len(b)-1] = 2
	_, err = ParseRequestRelayArgs(b)
	require.ErrorIs(err, hello.ErrInvalidInstruction)
}

func TestUnknownDiscriminator(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)

	for _, data := range [][]byte{nil, {1, 2, 3}, make([]byte, hello.DiscriminatorLen)} {
		_, err := env.rt.Execute(context.Background(), runtime.Instruction{
			ProgramID: env.program.ID(),
			Data:      data,
		})
		require.ErrorIs(err, hello.ErrFallbackNotFound)
	}
}

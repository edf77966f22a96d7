// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/runtime"
	"github.com/luxfi/hello/state"
)

func foreignEnvelope(sequence uint64, sender [32]byte, payload []byte) []byte {
	e := &hello.Envelope{
		EnvelopeHeader: hello.EnvelopeHeader{
			Timestamp:        testNow,
			Nonce:            7,
			EmitterChain:     foreignChain,
			EmitterAddress:   sender,
			Sequence:         sequence,
			ConsistencyLevel: state.FinalityFinalized,
		},
		Payload: payload,
	}
	return e.Bytes()
}

func helloPayload(t *testing.T, text string) []byte {
	t.Helper()

	msg, err := hello.NewHello([]byte(text))
	require.NoError(t, err)
	b, err := hello.EncodeMessage(msg)
	require.NoError(t, err)
	return b
}

func (e *testEnv) post(t *testing.T, body []byte) {
	t.Helper()

	ix, err := e.bridge.PostVAAInstruction(e.owner, body)
	require.NoError(t, err)
	_, err = e.rt.Execute(context.Background(), ix, e.owner)
	require.NoError(t, err)
}

func (e *testEnv) receive(t *testing.T, body []byte) (*runtime.Result, error) {
	t.Helper()

	ix, err := e.program.ReceiveGreetingInstruction(e.owner, body)
	require.NoError(t, err)
	return e.rt.Execute(context.Background(), ix, e.owner)
}

func TestReceiveGreeting(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	body := foreignEnvelope(4, foreignPeer, helloPayload(t, "hola"))
	env.post(t, body)

	res, err := env.receive(t, body)
	require.NoError(err)
	require.Equal([]runtime.Event{GreetingReceived{
		Greeting:    "hola",
		SenderChain: foreignChain,
		Sender:      foreignPeer,
		Sequence:    4,
	}}, res.Events)

	addr, err := state.ReceivedAddress(env.program.ID(), foreignChain, 4)
	require.NoError(err)
	acct, err := env.rt.Account(ctx, addr.Key)
	require.NoError(err)
	received, err := state.ParseReceived(acct.Data)
	require.NoError(err)
	require.Equal(uint32(7), received.BatchID)
	require.Equal([32]byte(hello.EnvelopeHash(body)), received.EnvelopeHash)
	require.Equal([]byte("hola"), received.Message)

	_, err = env.receive(t, body)
	require.ErrorIs(err, hello.ErrAlreadyReceived)
	require.True(hello.IsAlreadyReceived(err))

	label := chainLabel(foreignChain)
	require.Equal(1.0, testutil.ToFloat64(env.program.metrics.greetingsReceived.WithLabelValues(label)))
	require.Equal(1.0, testutil.ToFloat64(env.program.metrics.duplicates.WithLabelValues(label)))
}

func TestReceiveRawGreeting(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	body := foreignEnvelope(0, foreignPeer, []byte("hello from a contract"))
	env.post(t, body)

	res, err := env.receive(t, body)
	require.NoError(err)
	require.Len(res.Events, 1)
	require.Equal("hello from a contract", res.Events[0].(GreetingReceived).Greeting)
}

func TestReceiveGreetingRejects(t *testing.T) {
	tests := []struct {
		name        string
		sender      [32]byte
		payload     []byte
		post        bool
		expectedErr error
	}{
		{
			name:        "not posted",
			sender:      foreignPeer,
			payload:     []byte("hi"),
			expectedErr: hello.ErrInvalidEnvelope,
		},
		{
			name:        "unknown emitter",
			sender:      [32]byte{1},
			payload:     []byte("hi"),
			post:        true,
			expectedErr: hello.ErrUnknownEmitter,
		},
		{
			name:        "raw greeting too long",
			sender:      foreignPeer,
			payload:     []byte(strings.Repeat("a", hello.MaxGreetingLength+1)),
			post:        true,
			expectedErr: hello.ErrInvalidMessage,
		},
		{
			name:        "raw greeting not utf8",
			sender:      foreignPeer,
			payload:     []byte{0xff, 0xfe},
			post:        true,
			expectedErr: hello.ErrInvalidMessage,
		},
		{
			name:        "structured greeting truncated",
			sender:      foreignPeer,
			payload:     []byte{hello.HelloID, 0x00, 0x05, 'h'},
			post:        true,
			expectedErr: hello.ErrInvalidMessage,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			env := newTestEnv(t, 0)
			require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

			body := foreignEnvelope(0, test.sender, test.payload)
			if test.post {
				env.post(t, body)
			}
			_, err := env.receive(t, body)
			require.ErrorIs(err, test.expectedErr)

			// nothing is recorded for a rejected envelope
			addr, err := state.ReceivedAddress(env.program.ID(), foreignChain, 0)
			require.NoError(err)
			_, err = env.rt.Account(context.Background(), addr.Key)
			require.ErrorIs(err, runtime.ErrAccountNotFound)
		})
	}
}

func TestReceiveReplayWithDifferentPayload(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	first := foreignEnvelope(9, foreignPeer, helloPayload(t, "hola"))
	env.post(t, first)
	_, err := env.receive(t, first)
	require.NoError(err)

	// same (chain, sequence), payload that would not decode
	replay := foreignEnvelope(9, foreignPeer, []byte{0xff, 0xfe, 0xfd})
	env.post(t, replay)
	_, err = env.receive(t, replay)
	require.ErrorIs(err, hello.ErrAlreadyReceived)
	require.NotErrorIs(err, hello.ErrInvalidMessage)

	label := chainLabel(foreignChain)
	require.Equal(1.0, testutil.ToFloat64(env.program.metrics.duplicates.WithLabelValues(label)))
	require.Equal(1.0, testutil.ToFloat64(env.program.metrics.greetingsReceived.WithLabelValues(label)))

	addr, err := state.ReceivedAddress(env.program.ID(), foreignChain, 9)
	require.NoError(err)
	acct, err := env.rt.Account(ctx, addr.Key)
	require.NoError(err)
	received, err := state.ParseReceived(acct.Data)
	require.NoError(err)
	require.Equal([]byte("hola"), received.Message)
	require.Equal([32]byte(hello.EnvelopeHash(first)), received.EnvelopeHash)
}

func TestRejectedReceiveIsNotCounted(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	body := foreignEnvelope(3, foreignPeer, []byte{0xff, 0xfe})
	env.post(t, body)
	_, err := env.receive(t, body)
	require.ErrorIs(err, hello.ErrInvalidMessage)

	label := chainLabel(foreignChain)
	require.Zero(testutil.ToFloat64(env.program.metrics.greetingsReceived.WithLabelValues(label)))
	require.Zero(testutil.ToFloat64(env.program.metrics.duplicates.WithLabelValues(label)))
}

func TestReceiveGreetingWithoutPeer(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)

	body := foreignEnvelope(0, foreignPeer, []byte("hi"))
	env.post(t, body)
	_, err := env.receive(t, body)
	require.ErrorIs(err, hello.ErrUnknownEmitter)
}

func TestReceiveGreetingRejectsForeignPostedAccount(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	body := foreignEnvelope(0, foreignPeer, []byte("hi"))
	env.post(t, body)

	ix, err := env.program.ReceiveGreetingInstruction(env.owner, body)
	require.NoError(err)
	ix.Accounts[3].PublicKey = solana.NewWallet().PublicKey()
	_, err = env.rt.Execute(context.Background(), ix, env.owner)
	require.ErrorIs(err, hello.ErrInvalidEnvelope)
}

func TestConcurrentReceive(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)
	require.NoError(env.registerPeer(t, foreignChain, foreignPeer))

	body := foreignEnvelope(9, foreignPeer, helloPayload(t, "once"))
	env.post(t, body)
	ix, err := env.program.ReceiveGreetingInstruction(env.owner, body)
	require.NoError(err)

	const attempts = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.rt.Execute(context.Background(), ix, env.owner)
		}(i)
	}
	wg.Wait()

	var delivered int
	for _, err := range errs {
		if err == nil {
			delivered++
			continue
		}
		require.ErrorIs(err, hello.ErrAlreadyReceived)
	}
	require.Equal(1, delivered)
}

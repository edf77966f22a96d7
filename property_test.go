// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/luxfi/hello"
)

// Property: ParseMessage(EncodeMessage(Hello{t})) == Hello{t} for len(t) <= 512
func TestHelloRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.MaxSize = hello.MaxGreetingLength
	properties := gopter.NewProperties(parameters)

	properties.Property("hello round trips", prop.ForAll(
		func(text []byte) bool {
			msg, err := hello.NewHello(text)
			if err != nil {
				return false
			}
			b, err := hello.EncodeMessage(msg)
			if err != nil {
				return false
			}
			parsed, err := hello.ParseMessage(b)
			if err != nil {
				return false
			}
			got, ok := parsed.(*hello.Hello)
			return ok && bytes.Equal(got.Text, text)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("oversized greetings are rejected", prop.ForAll(
		func(n int) bool {
			_, err := hello.NewHello(make([]byte, n))
			return errors.Is(err, hello.ErrPayloadTooLarge)
		},
		gen.IntRange(hello.MaxGreetingLength+1, 4*hello.MaxGreetingLength),
	))

	properties.TestingRun(t)
}

// Property: payloads not starting with the Hello tag are returned verbatim
func TestRawGreetingPassthroughProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("raw greetings pass through", prop.ForAll(
		func(payload []byte) bool {
			got, err := hello.ParseGreeting(payload)
			return err == nil && bytes.Equal(got, payload)
		},
		gen.SliceOf(gen.UInt8()).SuchThat(func(b []byte) bool {
			return len(b) == 0 || b[0] != hello.HelloID
		}),
	))

	properties.TestingRun(t)
}

// Property: every field is read back from its fixed offset
func TestEnvelopeFieldsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("envelope fields round trip", prop.ForAll(
		func(timestamp, nonce uint32, chain uint16, address []byte, sequence uint64, consistency uint8, payload []byte) bool {
			env := &hello.Envelope{
				EnvelopeHeader: hello.EnvelopeHeader{
					Timestamp:        timestamp,
					Nonce:            nonce,
					EmitterChain:     chain,
					Sequence:         sequence,
					ConsistencyLevel: consistency,
				},
				Payload: payload,
			}
			copy(env.EmitterAddress[:], address)

			body := env.Bytes()
			parsed, err := hello.ParseEnvelope(body)
			if err != nil {
				return false
			}
			return len(body) == hello.EnvelopeHeaderLen+len(payload) &&
				parsed.EnvelopeHeader == env.EnvelopeHeader &&
				bytes.Equal(parsed.Payload, payload)
		},
		gen.UInt32(),
		gen.UInt32(),
		gen.UInt16(),
		gen.SliceOfN(32, gen.UInt8()),
		gen.UInt64(),
		gen.UInt8(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("short bodies are malformed", prop.ForAll(
		func(n int) bool {
			_, err := hello.ParseEnvelope(make([]byte, n))
			return errors.Is(err, hello.ErrMalformedEnvelope)
		},
		gen.IntRange(0, hello.EnvelopeHeaderLen-1),
	))

	properties.TestingRun(t)
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	require := require.New(t)

	wrapped := fmt.Errorf("receive_greeting: chain 2 sequence 7: %w", ErrAlreadyReceived)
	require.True(IsAlreadyReceived(wrapped))
	require.ErrorIs(wrapped, ErrAlreadyReceived)
	require.NotErrorIs(wrapped, ErrUnknownEmitter)

	// errors rebuilt from their code match the sentinel
	decoded := &Error{Code: ErrAlreadyReceived.Code}
	require.ErrorIs(decoded, ErrAlreadyReceived)
	require.False(IsAlreadyReceived(ErrInvalidMessage))

	require.Equal(uint32(6000), ErrInvalidBridgeConfig.Code)
	require.Contains(ErrOwnerOnly.Error(), "OwnerOnly")
}

func TestCodecDiscriminator(t *testing.T) {
	require := require.New(t)

	type record struct {
		Chain   uint16
		Address [32]byte
	}
	d := AccountDiscriminator("Peer")
	in := record{Chain: 2, Address: [32]byte{1, 2, 3}}

	b, err := Codec.Marshal(d, &in)
	require.NoError(err)
	require.Equal(d[:], b[:DiscriminatorLen])

	var out record
	require.NoError(Codec.Unmarshal(d, b, &out))
	require.Equal(in, out)

	err = Codec.Unmarshal(AccountDiscriminator("Received"), b, &out)
	require.ErrorIs(err, ErrAccountData)

	err = Codec.Unmarshal(d, b[:4], &out)
	require.ErrorIs(err, ErrAccountData)
}

func TestInstructionDiscriminator(t *testing.T) {
	require := require.New(t)

	// sha256("global:initialize")[:8]
	require.Equal(
		Discriminator{175, 175, 109, 31, 13, 152, 155, 237},
		InstructionDiscriminator("initialize"),
	)
}

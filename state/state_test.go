// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/hello"
)

func TestAddresses(t *testing.T) {
	require := require.New(t)

	programID := solana.NewWallet().PublicKey()

	config1, err := ConfigAddress(programID)
	require.NoError(err)
	config2, err := ConfigAddress(programID)
	require.NoError(err)
	require.Equal(config1, config2)

	signer, err := solana.CreateProgramAddress(config1.SignerSeeds(), programID)
	require.NoError(err)
	require.Equal(config1.Key, signer)

	peer2, err := PeerAddress(programID, 2)
	require.NoError(err)
	peer3, err := PeerAddress(programID, 3)
	require.NoError(err)
	require.NotEqual(peer2.Key, peer3.Key)

	received, err := ReceivedAddress(programID, 2, 7)
	require.NoError(err)
	require.Equal([][]byte{ReceivedSeed, {2, 0}, {7, 0, 0, 0, 0, 0, 0, 0}}, received.Seeds)
	other, err := ReceivedAddress(programID, 2, 8)
	require.NoError(err)
	require.NotEqual(received.Key, other.Key)

	sent, err := SentAddress(programID, 7)
	require.NoError(err)
	require.NotEqual(received.Key, sent.Key)

	otherProgram, err := ConfigAddress(solana.NewWallet().PublicKey())
	require.NoError(err)
	require.NotEqual(config1.Key, otherProgram.Key)
}

func TestPeerVerify(t *testing.T) {
	require := require.New(t)

	peer := &Peer{Chain: 2, Address: [32]byte{31: 0xaa}}
	require.True(peer.Verify([32]byte{31: 0xaa}))
	require.False(peer.Verify([32]byte{31: 0xab}))
	require.False(peer.Verify([32]byte{}))
}

func TestRecordsRejectForeignData(t *testing.T) {
	require := require.New(t)

	received := &Received{EnvelopeHash: [32]byte{1}, Message: []byte("gm")}
	b, err := received.Bytes()
	require.NoError(err)

	parsed, err := ParseReceived(b)
	require.NoError(err)
	require.Equal(received, parsed)

	_, err = ParsePeer(b)
	require.ErrorIs(err, hello.ErrAccountData)

	config := &Config{Owner: solana.NewWallet().PublicKey(), ChainID: 1, Finality: FinalityFinalized}
	b, err = config.Bytes()
	require.NoError(err)
	parsedConfig, err := ParseConfig(b)
	require.NoError(err)
	require.Equal(config, parsedConfig)

	_, err = ParseEmitter(b)
	require.ErrorIs(err, hello.ErrAccountData)
}

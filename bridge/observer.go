// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/hello/backend"
)

// Viewer reads committed accounts
type Viewer interface {
	View(ctx context.Context, fn func(backend.Reader) error) error
}

// Observer reads published messages back as envelope bodies, the way an
// attestation network observes them.
type Observer struct {
	bridge *CoreBridge
	state  Viewer
}

// NewObserver creates an observer of bridge over state
func NewObserver(bridge *CoreBridge, state Viewer) *Observer {
	return &Observer{bridge: bridge, state: state}
}

// Envelope returns the body of the message emitter published with sequence.
// It returns ErrNotObserved if there is no such message yet.
func (o *Observer) Envelope(ctx context.Context, chain uint16, emitter [32]byte, sequence uint64) ([]byte, error) {
	if chain != o.bridge.chainID {
		return nil, fmt.Errorf("%w: chain %d is not observed", ErrNotObserved, chain)
	}
	observation, err := observationAddress(o.bridge.programID, emitter, sequence)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = o.state.View(ctx, func(r backend.Reader) error {
		index, err := r.Get(observation.Key)
		if errors.Is(err, backend.ErrNotFound) {
			return fmt.Errorf("%w: emitter %s sequence %d", ErrNotObserved, solana.PublicKey(emitter), sequence)
		}
		if err != nil {
			return err
		}
		acct, err := r.Get(solana.PublicKeyFromBytes(index.Data))
		if err != nil {
			return err
		}
		msg, err := ParsePostedMessage(acct.Data)
		if err != nil {
			return err
		}
		body = msg.Envelope().Bytes()
		return nil
	})
	return body, err
}

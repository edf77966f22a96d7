// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"

	"github.com/luxfi/hello"
)

// Verifier checks the attestation of an envelope before the bridge posts it.
type Verifier interface {
	// Verify returns nil if body is attested, or an error if it is not.
	Verify(ctx context.Context, body []byte) error
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, body []byte) error

func (f VerifierFunc) Verify(ctx context.Context, body []byte) error {
	return f(ctx, body)
}

// TrustedVerifier accepts any well-formed envelope. Attestation signatures
// are produced and checked outside this module.
type TrustedVerifier struct{}

func (TrustedVerifier) Verify(_ context.Context, body []byte) error {
	_, err := hello.ParseEnvelope(body)
	return err
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello

import (
	"fmt"

	"github.com/luxfi/geth/rlp"
)

// CodecImpl serializes account records: an 8-byte type discriminator
// followed by the RLP encoding of the record.
type CodecImpl struct{}

// Codec is the default codec instance
var Codec = &CodecImpl{}

// Marshal serializes v under the type discriminator d
func (c *CodecImpl) Marshal(d Discriminator, v interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	return append(d[:], body...), nil
}

// Unmarshal deserializes b into v, checking the type discriminator
func (c *CodecImpl) Unmarshal(d Discriminator, b []byte, v interface{}) error {
	if len(b) < DiscriminatorLen {
		return fmt.Errorf("%w: %d bytes", ErrAccountData, len(b))
	}
	if Discriminator(b[:DiscriminatorLen]) != d {
		return fmt.Errorf("%w: discriminator mismatch", ErrAccountData)
	}
	if err := rlp.DecodeBytes(b[DiscriminatorLen:], v); err != nil {
		return fmt.Errorf("%w: %w", ErrAccountData, err)
	}
	return nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package hello

import (
	"errors"
	"fmt"
)

// ErrorCodeOffset is the first code assigned to program errors.
const ErrorCodeOffset = 6000

// Error is a program error with a stable numeric code.
//
// Handlers return the sentinels below, usually wrapped with context via
// fmt.Errorf("...: %w", ErrX); callers match them with errors.Is.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("hello error %d (%s): %s", e.Code, e.Name, e.Msg)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func newError(offset uint32, name, msg string) *Error {
	return &Error{Code: ErrorCodeOffset + offset, Name: name, Msg: msg}
}

var (
	// configuration
	ErrInvalidBridgeConfig = newError(0, "InvalidBridgeConfig", "bridge data account does not match configuration")
	ErrInvalidFeeCollector = newError(1, "InvalidFeeCollector", "fee collector does not match configuration")
	ErrInvalidSequence     = newError(2, "InvalidSequence", "sequence tracker does not match configuration")

	// authorization
	ErrOwnerOnly = newError(3, "OwnerOnly", "only the program owner may perform this action")

	// peers and messages
	ErrInvalidPeer          = newError(4, "InvalidPeer", "invalid peer registration")
	ErrUnknownEmitter       = newError(5, "UnknownEmitter", "envelope was not sent by a registered peer")
	ErrInvalidMessage       = newError(6, "InvalidMessage", "envelope carries an invalid message")
	ErrMessageTooLarge      = newError(7, "MessageTooLarge", "greeting exceeds the maximum length")
	ErrInvalidEnvelope      = newError(8, "InvalidEnvelope", "posted envelope is missing or does not match its hash")
	ErrAlreadyReceived      = newError(9, "AlreadyReceived", "envelope already received")
	ErrNoMessagesYet        = newError(10, "NoMessagesYet", "no message has been published yet")
	ErrSequenceNotPublished = newError(11, "SequenceNotPublished", "sequence has not been published")
	ErrMalformedEnvelope    = newError(12, "MalformedEnvelope", "envelope is shorter than its fixed header")
	ErrTruncated            = newError(13, "Truncated", "declared length exceeds the instruction data")
	ErrFallbackNotFound     = newError(14, "FallbackNotFound", "unknown instruction discriminator")
	ErrInvalidInstruction   = newError(15, "InvalidInstruction", "instruction data could not be decoded")
	ErrConstraintSeeds      = newError(16, "ConstraintSeeds", "account is not at its derived address")
	ErrNotEnoughKeys        = newError(17, "NotEnoughAccountKeys", "instruction is missing accounts")
	ErrAccountOwner         = newError(18, "AccountOwnedByWrongProgram", "account is owned by another program")
	ErrAccountData          = newError(19, "AccountDidNotDeserialize", "account data could not be decoded")
	ErrMissingSigner        = newError(20, "MissingSigner", "a required signature is missing")
)

// IsAlreadyReceived reports whether err signals a duplicate delivery, which
// relayers treat as success.
func IsAlreadyReceived(err error) bool {
	return errors.Is(err, ErrAlreadyReceived)
}

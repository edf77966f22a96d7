// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package program

// GreetingSent is emitted when a greeting is published
type GreetingSent struct {
	Greeting  string
	Sequence  uint64
	Timestamp int64
}

func (GreetingSent) EventName() string { return "GreetingSent" }

// GreetingReceived is emitted when a greeting from a peer is accepted
type GreetingReceived struct {
	Greeting    string
	SenderChain uint16
	Sender      [32]byte
	Sequence    uint64
}

func (GreetingReceived) EventName() string { return "GreetingReceived" }

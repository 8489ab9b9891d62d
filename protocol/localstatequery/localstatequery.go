// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package localstatequery implements the Ouroboros local-state-query protocol, which runs
// queries against the ledger state of a local node at an acquired point
package localstatequery

import (
	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Protocol identifiers
const (
	ProtocolName        = "local-state-query"
	ProtocolId   uint16 = 7
)

// Acquire failure reasons
const (
	AcquireFailurePointTooOld     = 0
	AcquireFailurePointNotOnChain = 1
)

// State is a local-state-query protocol state
type State uint8

const (
	StateIdle State = iota + 1
	StateAcquiring
	StateAcquired
	StateQuerying
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiring:
		return "Acquiring"
	case StateAcquired:
		return "Acquired"
	case StateQuerying:
		return "Querying"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

func (s State) NextState(msg protocol.Message) State {
	switch s {
	case StateIdle:
		switch msg.Type() {
		case MessageTypeAcquire, MessageTypeAcquireVolatileTip, MessageTypeAcquireImmutableTip:
			return StateAcquiring
		case MessageTypeDone:
			return StateDone
		}
	case StateAcquiring:
		switch msg.Type() {
		case MessageTypeAcquired:
			return StateAcquired
		case MessageTypeFailure:
			return StateIdle
		}
	case StateAcquired:
		switch msg.Type() {
		case MessageTypeQuery:
			return StateQuerying
		case MessageTypeRelease:
			return StateIdle
		case MessageTypeReacquire, MessageTypeReacquireVolatileTip, MessageTypeReacquireImmutableTip:
			return StateAcquiring
		}
	case StateQuerying:
		if msg.Type() == MessageTypeResult {
			return StateAcquired
		}
	case StateDone:
	}
	return s
}

func (s State) HasAgency(isClient bool) bool {
	switch s {
	case StateIdle, StateAcquired:
		return isClient
	case StateAcquiring, StateQuerying:
		return !isClient
	default:
		return false
	}
}

// Config is used to configure the LocalStateQuery protocol instance
type Config struct {
	// ImmutableTip selects the immutable tip instead of the volatile tip when no
	// point is given
	ImmutableTip bool
	AcquiredFunc AcquiredFunc
	FailureFunc  FailureFunc
	ResultFunc   ResultFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// Callback function types
type (
	AcquiredFunc func(CallbackContext) error
	// FailureFunc is called when acquiring fails. Queued queries are discarded
	FailureFunc func(CallbackContext, uint64) error
	ResultFunc  func(CallbackContext, cbor.RawMessage, cbor.RawMessage) error
)

// LocalStateQueryOptionFunc represents a function used to modify the LocalStateQuery protocol config
type LocalStateQueryOptionFunc func(*Config)

// NewConfig returns a new LocalStateQuery config object with the provided options
func NewConfig(options ...LocalStateQueryOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithImmutableTip acquires the immutable tip when no point is given
func WithImmutableTip() LocalStateQueryOptionFunc {
	return func(c *Config) {
		c.ImmutableTip = true
	}
}

// WithAcquiredFunc specifies the callback for an acquired state
func WithAcquiredFunc(acquiredFunc AcquiredFunc) LocalStateQueryOptionFunc {
	return func(c *Config) {
		c.AcquiredFunc = acquiredFunc
	}
}

// WithFailureFunc specifies the callback for an acquire failure
func WithFailureFunc(failureFunc FailureFunc) LocalStateQueryOptionFunc {
	return func(c *Config) {
		c.FailureFunc = failureFunc
	}
}

// WithResultFunc specifies the callback for query results. It receives the query and
// the raw result
func WithResultFunc(resultFunc ResultFunc) LocalStateQueryOptionFunc {
	return func(c *Config) {
		c.ResultFunc = resultFunc
	}
}

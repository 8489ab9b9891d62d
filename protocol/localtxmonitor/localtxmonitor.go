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

// Package localtxmonitor implements the Ouroboros local-tx-monitor protocol, which
// inspects a snapshot of the local node's mempool
package localtxmonitor

import (
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Protocol identifiers
const (
	ProtocolName        = "local-tx-monitor"
	ProtocolId   uint16 = 9
)

// State is a local-tx-monitor protocol state
type State uint8

const (
	StateIdle State = iota + 1
	StateAcquiring
	StateAcquired
	StateBusy
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
	case StateBusy:
		return "Busy"
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
		case MessageTypeAcquire:
			return StateAcquiring
		case MessageTypeDone:
			return StateDone
		}
	case StateAcquiring:
		if msg.Type() == MessageTypeAcquired {
			return StateAcquired
		}
	case StateAcquired:
		switch msg.Type() {
		case MessageTypeAcquire:
			return StateAcquiring
		case MessageTypeRelease:
			return StateIdle
		case MessageTypeNextTx, MessageTypeHasTx, MessageTypeGetSizes:
			return StateBusy
		}
	case StateBusy:
		switch msg.Type() {
		case MessageTypeReplyNextTx, MessageTypeReplyHasTx, MessageTypeReplyGetSizes:
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
	case StateAcquiring, StateBusy:
		return !isClient
	default:
		return false
	}
}

// Config is used to configure the LocalTxMonitor protocol instance
type Config struct {
	AcquiredFunc AcquiredFunc
	NextTxFunc   NextTxFunc
	HasTxFunc    HasTxFunc
	SizesFunc    SizesFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// Callback function types
type (
	// AcquiredFunc is called with the slot of the acquired mempool snapshot
	AcquiredFunc func(CallbackContext, uint64) error
	// NextTxFunc is called with the next transaction from the snapshot. The
	// transaction is nil once the snapshot is exhausted
	NextTxFunc func(CallbackContext, uint8, []byte) error
	HasTxFunc  func(CallbackContext, common.Blake2b256, bool) error
	SizesFunc  func(CallbackContext, Sizes) error
)

// LocalTxMonitorOptionFunc represents a function used to modify the LocalTxMonitor protocol config
type LocalTxMonitorOptionFunc func(*Config)

// NewConfig returns a new LocalTxMonitor config object with the provided options
func NewConfig(options ...LocalTxMonitorOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithAcquiredFunc specifies the callback for an acquired snapshot
func WithAcquiredFunc(acquiredFunc AcquiredFunc) LocalTxMonitorOptionFunc {
	return func(c *Config) {
		c.AcquiredFunc = acquiredFunc
	}
}

// WithNextTxFunc specifies the callback for NextTx replies
func WithNextTxFunc(nextTxFunc NextTxFunc) LocalTxMonitorOptionFunc {
	return func(c *Config) {
		c.NextTxFunc = nextTxFunc
	}
}

// WithHasTxFunc specifies the callback for HasTx replies
func WithHasTxFunc(hasTxFunc HasTxFunc) LocalTxMonitorOptionFunc {
	return func(c *Config) {
		c.HasTxFunc = hasTxFunc
	}
}

// WithSizesFunc specifies the callback for GetSizes replies
func WithSizesFunc(sizesFunc SizesFunc) LocalTxMonitorOptionFunc {
	return func(c *Config) {
		c.SizesFunc = sizesFunc
	}
}

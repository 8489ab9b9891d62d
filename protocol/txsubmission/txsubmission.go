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

// Package txsubmission implements the Ouroboros node-to-node tx-submission protocol, in
// which the server pulls transaction ids and transactions from the client
package txsubmission

import (
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Protocol identifiers
const (
	ProtocolName        = "tx-submission"
	ProtocolId   uint16 = 4
)

// State is a tx-submission protocol state
type State uint8

const (
	StateInit State = iota + 1
	StateIdle
	StateTxIdsBlocking
	StateTxIdsNonBlocking
	StateTxs
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateIdle:
		return "Idle"
	case StateTxIdsBlocking:
		return "TxIdsBlocking"
	case StateTxIdsNonBlocking:
		return "TxIdsNonBlocking"
	case StateTxs:
		return "Txs"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

func (s State) NextState(msg protocol.Message) State {
	switch s {
	case StateInit:
		if msg.Type() == MessageTypeInit {
			return StateIdle
		}
	case StateIdle:
		switch msg.Type() {
		case MessageTypeRequestTxIds:
			if req, ok := msg.(*MsgRequestTxIds); ok && !req.Blocking {
				return StateTxIdsNonBlocking
			}
			return StateTxIdsBlocking
		case MessageTypeRequestTxs:
			return StateTxs
		}
	case StateTxIdsBlocking:
		switch msg.Type() {
		case MessageTypeReplyTxIds:
			return StateIdle
		case MessageTypeDone:
			return StateDone
		}
	case StateTxIdsNonBlocking:
		if msg.Type() == MessageTypeReplyTxIds {
			return StateIdle
		}
	case StateTxs:
		if msg.Type() == MessageTypeReplyTxs {
			return StateIdle
		}
	case StateDone:
	}
	return s
}

func (s State) HasAgency(isClient bool) bool {
	switch s {
	case StateInit, StateTxIdsBlocking, StateTxIdsNonBlocking, StateTxs:
		return isClient
	case StateIdle:
		return !isClient
	default:
		return false
	}
}

// Config is used to configure the TxSubmission protocol instance
type Config struct {
	AcknowledgedFunc AcknowledgedFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// AcknowledgedFunc is called with the ids of transactions the server has acknowledged
type AcknowledgedFunc func(CallbackContext, []common.Blake2b256) error

// TxSubmissionOptionFunc represents a function used to modify the TxSubmission protocol config
type TxSubmissionOptionFunc func(*Config)

// NewConfig returns a new TxSubmission config object with the provided options
func NewConfig(options ...TxSubmissionOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithAcknowledgedFunc specifies the callback for acknowledged transactions
func WithAcknowledgedFunc(acknowledgedFunc AcknowledgedFunc) TxSubmissionOptionFunc {
	return func(c *Config) {
		c.AcknowledgedFunc = acknowledgedFunc
	}
}

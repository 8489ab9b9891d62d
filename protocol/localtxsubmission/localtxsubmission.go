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

// Package localtxsubmission implements the Ouroboros local-tx-submission protocol, which
// submits transactions to a local node one at a time
package localtxsubmission

import (
	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Protocol identifiers
const (
	ProtocolName        = "local-tx-submission"
	ProtocolId   uint16 = 6
)

// State is a local-tx-submission protocol state
type State uint8

const (
	StateIdle State = iota + 1
	StateBusy
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
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
		case MessageTypeSubmitTx:
			return StateBusy
		case MessageTypeDone:
			return StateDone
		}
	case StateBusy:
		switch msg.Type() {
		case MessageTypeAcceptTx, MessageTypeRejectTx:
			return StateIdle
		}
	case StateDone:
	}
	return s
}

func (s State) HasAgency(isClient bool) bool {
	switch s {
	case StateIdle:
		return isClient
	case StateBusy:
		return !isClient
	default:
		return false
	}
}

// Config is used to configure the LocalTxSubmission protocol instance
type Config struct {
	AcceptedFunc AcceptedFunc
	RejectedFunc RejectedFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// Callback function types
type (
	AcceptedFunc func(CallbackContext, common.Blake2b256) error
	// RejectedFunc receives the raw CBOR of the rejection reason
	RejectedFunc func(CallbackContext, common.Blake2b256, cbor.RawMessage) error
)

// LocalTxSubmissionOptionFunc represents a function used to modify the LocalTxSubmission protocol config
type LocalTxSubmissionOptionFunc func(*Config)

// NewConfig returns a new LocalTxSubmission config object with the provided options
func NewConfig(options ...LocalTxSubmissionOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithAcceptedFunc specifies the callback for an accepted transaction
func WithAcceptedFunc(acceptedFunc AcceptedFunc) LocalTxSubmissionOptionFunc {
	return func(c *Config) {
		c.AcceptedFunc = acceptedFunc
	}
}

// WithRejectedFunc specifies the callback for a rejected transaction
func WithRejectedFunc(rejectedFunc RejectedFunc) LocalTxSubmissionOptionFunc {
	return func(c *Config) {
		c.RejectedFunc = rejectedFunc
	}
}

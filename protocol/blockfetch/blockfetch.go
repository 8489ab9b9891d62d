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

// Package blockfetch implements the Ouroboros block-fetch protocol, which downloads ranges
// of blocks from a remote node
package blockfetch

import (
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Protocol identifiers
const (
	ProtocolName        = "block-fetch"
	ProtocolId   uint16 = 3
)

// State is a block-fetch protocol state
type State uint8

const (
	StateIdle State = iota + 1
	StateBusy
	StateStreaming
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBusy:
		return "Busy"
	case StateStreaming:
		return "Streaming"
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
		case MessageTypeRequestRange:
			return StateBusy
		case MessageTypeClientDone:
			return StateDone
		}
	case StateBusy:
		switch msg.Type() {
		case MessageTypeStartBatch:
			return StateStreaming
		case MessageTypeNoBlocks:
			return StateIdle
		}
	case StateStreaming:
		switch msg.Type() {
		case MessageTypeBlock:
			return StateStreaming
		case MessageTypeBatchDone:
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
	case StateBusy, StateStreaming:
		return !isClient
	default:
		return false
	}
}

// Config is used to configure the BlockFetch protocol instance
type Config struct {
	StartBatchFunc StartBatchFunc
	NoBlocksFunc   NoBlocksFunc
	BlockFunc      BlockFunc
	BatchDoneFunc  BatchDoneFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// Callback function types
type (
	StartBatchFunc func(CallbackContext) error
	NoBlocksFunc   func(CallbackContext) error
	BlockFunc      func(CallbackContext, *MsgBlock) error
	BatchDoneFunc  func(CallbackContext) error
)

// BlockFetchOptionFunc represents a function used to modify the BlockFetch protocol config
type BlockFetchOptionFunc func(*Config)

// NewConfig returns a new BlockFetch config object with the provided options
func NewConfig(options ...BlockFetchOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithStartBatchFunc specifies the callback for the start of a batch
func WithStartBatchFunc(startBatchFunc StartBatchFunc) BlockFetchOptionFunc {
	return func(c *Config) {
		c.StartBatchFunc = startBatchFunc
	}
}

// WithNoBlocksFunc specifies the callback for a range with no blocks
func WithNoBlocksFunc(noBlocksFunc NoBlocksFunc) BlockFetchOptionFunc {
	return func(c *Config) {
		c.NoBlocksFunc = noBlocksFunc
	}
}

// WithBlockFunc specifies the callback for each received block
func WithBlockFunc(blockFunc BlockFunc) BlockFetchOptionFunc {
	return func(c *Config) {
		c.BlockFunc = blockFunc
	}
}

// WithBatchDoneFunc specifies the callback for the end of a batch
func WithBatchDoneFunc(batchDoneFunc BatchDoneFunc) BlockFetchOptionFunc {
	return func(c *Config) {
		c.BatchDoneFunc = batchDoneFunc
	}
}

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

// Package chainsync implements the Ouroboros chain-sync protocol, which follows the chain
// of a remote node from an agreed intersection point
package chainsync

import (
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Protocol identifiers
const (
	ProtocolName         = "chain-sync"
	ProtocolIdNtN uint16 = 2
	ProtocolIdNtC uint16 = 5
)

// State is a chain-sync protocol state
type State uint8

const (
	StateIdle State = iota + 1
	StateCanAwait
	StateMustReply
	StateIntersect
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCanAwait:
		return "CanAwait"
	case StateMustReply:
		return "MustReply"
	case StateIntersect:
		return "Intersect"
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
		case MessageTypeRequestNext:
			return StateCanAwait
		case MessageTypeFindIntersect:
			return StateIntersect
		case MessageTypeDone:
			return StateDone
		}
	case StateCanAwait:
		switch msg.Type() {
		case MessageTypeAwaitReply:
			return StateMustReply
		case MessageTypeRollForward, MessageTypeRollBackward:
			return StateIdle
		}
	case StateMustReply:
		switch msg.Type() {
		case MessageTypeRollForward, MessageTypeRollBackward:
			return StateIdle
		}
	case StateIntersect:
		switch msg.Type() {
		case MessageTypeIntersectFound, MessageTypeIntersectNotFound:
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
	case StateCanAwait, StateMustReply, StateIntersect:
		return !isClient
	default:
		return false
	}
}

// Config is used to configure the ChainSync protocol instance
type Config struct {
	IntersectPoints       []common.Point
	RollForwardFunc       RollForwardFunc
	RollBackwardFunc      RollBackwardFunc
	IntersectFoundFunc    IntersectFoundFunc
	IntersectNotFoundFunc IntersectNotFoundFunc
	AwaitReplyFunc        AwaitReplyFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// Callback function types
type (
	// RollForwardFunc receives the raw header (node-to-node) or wrapped block (node-to-client)
	RollForwardFunc       func(CallbackContext, *MsgRollForward) error
	RollBackwardFunc      func(CallbackContext, common.Point, common.Tip) error
	IntersectFoundFunc    func(CallbackContext, common.Point, common.Tip) error
	IntersectNotFoundFunc func(CallbackContext, common.Tip) error
	AwaitReplyFunc        func(CallbackContext) error
)

// ChainSyncOptionFunc represents a function used to modify the ChainSync protocol config
type ChainSyncOptionFunc func(*Config)

// NewConfig returns a new ChainSync config object with the provided options
func NewConfig(options ...ChainSyncOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithIntersectPoints specifies the points to find an intersection with before following
// the chain. Without them, the chain is followed from the origin
func WithIntersectPoints(points ...common.Point) ChainSyncOptionFunc {
	return func(c *Config) {
		c.IntersectPoints = points
	}
}

// WithRollForwardFunc specifies the RollForward callback function
func WithRollForwardFunc(rollForwardFunc RollForwardFunc) ChainSyncOptionFunc {
	return func(c *Config) {
		c.RollForwardFunc = rollForwardFunc
	}
}

// WithRollBackwardFunc specifies the RollBackward callback function
func WithRollBackwardFunc(rollBackwardFunc RollBackwardFunc) ChainSyncOptionFunc {
	return func(c *Config) {
		c.RollBackwardFunc = rollBackwardFunc
	}
}

// WithIntersectFoundFunc specifies the IntersectFound callback function
func WithIntersectFoundFunc(intersectFoundFunc IntersectFoundFunc) ChainSyncOptionFunc {
	return func(c *Config) {
		c.IntersectFoundFunc = intersectFoundFunc
	}
}

// WithIntersectNotFoundFunc specifies the IntersectNotFound callback function
func WithIntersectNotFoundFunc(
	intersectNotFoundFunc IntersectNotFoundFunc,
) ChainSyncOptionFunc {
	return func(c *Config) {
		c.IntersectNotFoundFunc = intersectNotFoundFunc
	}
}

// WithAwaitReplyFunc specifies the AwaitReply callback function
func WithAwaitReplyFunc(awaitReplyFunc AwaitReplyFunc) ChainSyncOptionFunc {
	return func(c *Config) {
		c.AwaitReplyFunc = awaitReplyFunc
	}
}

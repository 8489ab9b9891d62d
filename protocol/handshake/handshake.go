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

// Package handshake implements the Ouroboros handshake protocol, which negotiates a
// mutually supported protocol version before any other mini-protocol may proceed
package handshake

import (
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Protocol identifiers
const (
	ProtocolName        = "handshake"
	ProtocolId   uint16 = 0
)

// State is a handshake protocol state
type State uint8

const (
	StatePropose State = iota + 1
	StateConfirm
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePropose:
		return "Propose"
	case StateConfirm:
		return "Confirm"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

func (s State) NextState(msg protocol.Message) State {
	switch s {
	case StatePropose:
		if msg.Type() == MessageTypeProposeVersions {
			return StateConfirm
		}
	case StateConfirm:
		switch msg.Type() {
		case MessageTypeAcceptVersion, MessageTypeRefuse, MessageTypeQueryReply:
			return StateDone
		}
	case StateDone:
	}
	return s
}

func (s State) HasAgency(isClient bool) bool {
	switch s {
	case StatePropose:
		return isClient
	case StateConfirm:
		return !isClient
	default:
		return false
	}
}

// Handshake is a wrapper object that holds the client and server instances
type Handshake struct {
	Client *Client
	Server *Server
}

// Config is used to configure the Handshake protocol instance
type Config struct {
	ProtocolVersionMap ProtocolVersionMap
	AcceptedFunc       AcceptedFunc
	RefusedFunc        RefusedFunc
	QueryReplyFunc     QueryReplyFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
	Server *Server
}

// Callback function types
type (
	AcceptedFunc   func(CallbackContext, uint16, VersionData) error
	RefusedFunc    func(CallbackContext, RefuseReason) error
	QueryReplyFunc func(CallbackContext, ProtocolVersionMap) error
)

// New returns a new Handshake object
func New(cfg *Config, options ...protocol.ProtocolOptionFunc) *Handshake {
	h := &Handshake{
		Client: NewClient(cfg, options...),
		Server: NewServer(cfg, options...),
	}
	return h
}

// HandshakeOptionFunc represents a function used to modify the Handshake protocol config
type HandshakeOptionFunc func(*Config)

// NewConfig returns a new Handshake config object with the provided options
func NewConfig(options ...HandshakeOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithProtocolVersionMap specifies the supported protocol versions
func WithProtocolVersionMap(
	versionMap ProtocolVersionMap,
) HandshakeOptionFunc {
	return func(c *Config) {
		c.ProtocolVersionMap = versionMap
	}
}

// WithAcceptedFunc specifies the callback for an accepted version
func WithAcceptedFunc(acceptedFunc AcceptedFunc) HandshakeOptionFunc {
	return func(c *Config) {
		c.AcceptedFunc = acceptedFunc
	}
}

// WithRefusedFunc specifies the callback for a refused proposal
func WithRefusedFunc(refusedFunc RefusedFunc) HandshakeOptionFunc {
	return func(c *Config) {
		c.RefusedFunc = refusedFunc
	}
}

// WithQueryReplyFunc specifies the callback for a version query reply
func WithQueryReplyFunc(queryReplyFunc QueryReplyFunc) HandshakeOptionFunc {
	return func(c *Config) {
		c.QueryReplyFunc = queryReplyFunc
	}
}

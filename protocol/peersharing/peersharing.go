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

// Package peersharing implements the Ouroboros peer-sharing protocol, which asks a peer
// for addresses of other peers
package peersharing

import (
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Protocol identifiers
const (
	ProtocolName        = "peer-sharing"
	ProtocolId   uint16 = 10
)

// State is a peer-sharing protocol state
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
		case MessageTypeShareRequest:
			return StateBusy
		case MessageTypeDone:
			return StateDone
		}
	case StateBusy:
		if msg.Type() == MessageTypeSharePeers {
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

// Config is used to configure the PeerSharing protocol instance
type Config struct {
	SharePeersFunc SharePeersFunc
}

// Callback context
type CallbackContext struct {
	Client *Client
}

// SharePeersFunc is called with the addresses shared by the peer
type SharePeersFunc func(CallbackContext, []PeerAddress) error

// PeerSharingOptionFunc represents a function used to modify the PeerSharing protocol config
type PeerSharingOptionFunc func(*Config)

// NewConfig returns a new PeerSharing config object with the provided options
func NewConfig(options ...PeerSharingOptionFunc) Config {
	c := Config{}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithSharePeersFunc specifies the callback for shared peer addresses
func WithSharePeersFunc(sharePeersFunc SharePeersFunc) PeerSharingOptionFunc {
	return func(c *Config) {
		c.SharePeersFunc = sharePeersFunc
	}
}

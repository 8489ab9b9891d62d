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

// Package keepalive implements the Ouroboros keep-alive protocol, which is used to detect
// and maintain liveness between nodes
package keepalive

import (
	"time"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

const (
	// ProtocolName is the name of the keep-alive protocol
	ProtocolName = "keep-alive"
	// ProtocolId is the unique protocol identifier for the keep-alive protocol
	ProtocolId uint16 = 8
	// DefaultKeepAlivePeriod is the default interval between keep-alive probes, in seconds
	DefaultKeepAlivePeriod = 60
)

// State is a keep-alive protocol state
type State uint8

const (
	StateClient State = iota + 1
	StateServer
	StateDone
)

func (s State) String() string {
	switch s {
	case StateClient:
		return "Client"
	case StateServer:
		return "Server"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

func (s State) NextState(msg protocol.Message) State {
	switch s {
	case StateClient:
		switch msg.Type() {
		case MessageTypeKeepAlive:
			return StateServer
		case MessageTypeDone:
			return StateDone
		}
	case StateServer:
		if msg.Type() == MessageTypeKeepAliveResponse {
			return StateClient
		}
	case StateDone:
	}
	return s
}

func (s State) HasAgency(isClient bool) bool {
	switch s {
	case StateClient:
		return isClient
	case StateServer:
		return !isClient
	default:
		return false
	}
}

// KeepAlive provides both client and server implementations of the keep-alive protocol
type KeepAlive struct {
	Client *Client
	Server *Server
}

// Config contains configuration options for the keep-alive protocol
type Config struct {
	KeepAliveFunc         KeepAliveFunc
	KeepAliveResponseFunc KeepAliveResponseFunc
	DoneFunc              DoneFunc
	Period                time.Duration
	Cookie                uint16
}

// CallbackContext provides context information to keep-alive protocol callbacks
type CallbackContext struct {
	Client *Client
	Server *Server
}

// KeepAliveFunc is called by the server for each keep-alive request
type KeepAliveFunc func(CallbackContext, uint16) error

// KeepAliveResponseFunc is called by the client for each matching keep-alive response
type KeepAliveResponseFunc func(CallbackContext, uint16) error

// DoneFunc is called by the server when the client ends the protocol
type DoneFunc func(CallbackContext) error

// New returns a new KeepAlive protocol instance
func New(cfg *Config, options ...protocol.ProtocolOptionFunc) *KeepAlive {
	k := &KeepAlive{
		Client: NewClient(cfg, options...),
		Server: NewServer(cfg, options...),
	}
	return k
}

// KeepAliveOptionFunc is a function that modifies a Config
type KeepAliveOptionFunc func(*Config)

// NewConfig creates a new Config with default values, applying any provided option functions
func NewConfig(options ...KeepAliveOptionFunc) Config {
	c := Config{
		Period: DefaultKeepAlivePeriod * time.Second,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithKeepAliveFunc sets the KeepAliveFunc callback in the Config
func WithKeepAliveFunc(keepAliveFunc KeepAliveFunc) KeepAliveOptionFunc {
	return func(c *Config) {
		c.KeepAliveFunc = keepAliveFunc
	}
}

// WithKeepAliveResponseFunc sets the KeepAliveResponseFunc callback in the Config
func WithKeepAliveResponseFunc(
	keepAliveResponseFunc KeepAliveResponseFunc,
) KeepAliveOptionFunc {
	return func(c *Config) {
		c.KeepAliveResponseFunc = keepAliveResponseFunc
	}
}

// WithDoneFunc sets the DoneFunc callback in the Config
func WithDoneFunc(doneFunc DoneFunc) KeepAliveOptionFunc {
	return func(c *Config) {
		c.DoneFunc = doneFunc
	}
}

// WithPeriod sets the keep-alive period duration in the Config
func WithPeriod(period time.Duration) KeepAliveOptionFunc {
	return func(c *Config) {
		c.Period = period
	}
}

// WithCookie sets the initial cookie value in the Config
func WithCookie(cookie uint16) KeepAliveOptionFunc {
	return func(c *Config) {
		c.Cookie = cookie
	}
}

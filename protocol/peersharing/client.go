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

package peersharing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Client implements the peer-sharing client
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	requests        []uint8
	done            bool
}

// NewClient returns a new peer-sharing client
func NewClient(cfg *Config, options ...protocol.ProtocolOptionFunc) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	protoOptions := protocol.NewProtocolOptions(
		ProtocolId,
		protocol.RoleClient,
		options...,
	)
	c := &Client{
		config: cfg,
	}
	c.callbackContext = CallbackContext{
		Client: c,
	}
	c.Agent = protocol.NewAgent(protocol.AgentConfig[State]{
		Name:                ProtocolName,
		ProtocolId:          protoOptions.ProtocolId,
		Role:                protocol.RoleClient,
		InitialState:        StateIdle,
		DoneState:           StateDone,
		BuildMessageFunc:    c.buildMessage,
		MessageFromCborFunc: NewMsgFromCbor,
		MessageHandlerFunc:  c.messageHandler,
		ResetFunc:           c.reset,
		Logger:              protoOptions.Logger,
	})
	return c
}

// RequestPeers asks the peer for up to amount peer addresses
func (c *Client) RequestPeers(amount uint8) error {
	c.mutex.Lock()
	c.requests = append(c.requests, amount)
	c.mutex.Unlock()
	if c.IsAttached() {
		if err := c.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
			return err
		}
	}
	return nil
}

// MarkDone makes the client send Done once all requests have been sent
func (c *Client) MarkDone() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.done = true
}

// Pending returns the number of requests not yet sent
func (c *Client) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.requests)
}

func (c *Client) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.requests = nil
	c.done = false
}

func (c *Client) buildMessage(state State) protocol.Message {
	if state != StateIdle {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.requests) > 0 {
		amount := c.requests[0]
		c.requests = c.requests[1:]
		return NewMsgShareRequest(amount)
	}
	if c.done {
		return NewMsgDone()
	}
	return nil
}

func (c *Client) messageHandler(msg protocol.Message) error {
	if msg.Type() != MessageTypeSharePeers {
		return fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	peers := msg.(*MsgSharePeers).PeerAddresses
	c.Logger().Debug("received peer addresses", "count", len(peers))
	if c.config.SharePeersFunc != nil {
		if err := c.config.SharePeersFunc(c.callbackContext, peers); err != nil {
			return err
		}
	}
	if err := c.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
		return err
	}
	return nil
}

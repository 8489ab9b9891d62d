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

package blockfetch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

type blockRange struct {
	start common.Point
	end   common.Point
}

// Client implements the block-fetch client. Requested ranges are sent one at a time,
// each after the previous batch has completed
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	ranges          []blockRange
	done            bool
}

// NewClient returns a new block-fetch client
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

// RequestRange queues a request for the blocks between start and end, inclusive
func (c *Client) RequestRange(start common.Point, end common.Point) error {
	c.mutex.Lock()
	c.ranges = append(c.ranges, blockRange{start: start, end: end})
	c.mutex.Unlock()
	return c.trigger()
}

// GetBlock queues a request for a single block
func (c *Client) GetBlock(point common.Point) error {
	return c.RequestRange(point, point)
}

// Pending returns the number of ranges that have not been requested yet
func (c *Client) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.ranges)
}

// MarkDone makes the client send ClientDone once the queued ranges have been requested
func (c *Client) MarkDone() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.done = true
}

func (c *Client) trigger() error {
	if !c.IsAttached() {
		return nil
	}
	if err := c.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
		return err
	}
	return nil
}

func (c *Client) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ranges = nil
	c.done = false
}

func (c *Client) buildMessage(state State) protocol.Message {
	if state != StateIdle {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.ranges) > 0 {
		r := c.ranges[0]
		c.ranges = c.ranges[1:]
		return NewMsgRequestRange(r.start, r.end)
	}
	if c.done {
		return NewMsgClientDone()
	}
	return nil
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeStartBatch:
		if c.config.StartBatchFunc != nil {
			err = c.config.StartBatchFunc(c.callbackContext)
		}
	case MessageTypeNoBlocks:
		if c.config.NoBlocksFunc != nil {
			err = c.config.NoBlocksFunc(c.callbackContext)
		}
	case MessageTypeBlock:
		if c.config.BlockFunc != nil {
			err = c.config.BlockFunc(c.callbackContext, msg.(*MsgBlock))
		}
	case MessageTypeBatchDone:
		if c.config.BatchDoneFunc != nil {
			err = c.config.BatchDoneFunc(c.callbackContext)
		}
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

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

package chainsync

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Client implements the chain-sync client. It finds an intersection with the configured
// points and then requests the next update whenever it holds agency
type Client struct {
	*protocol.Agent[State]
	config           *Config
	callbackContext  CallbackContext
	mutex            sync.Mutex
	intersectPoints  []common.Point
	intersectPending bool
	paused           bool
	done             bool
}

// NewClient returns a new chain-sync client
func NewClient(cfg *Config, options ...protocol.ProtocolOptionFunc) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	protoOptions := protocol.NewProtocolOptions(
		ProtocolIdNtN,
		protocol.RoleClient,
		options...,
	)
	c := &Client{
		config:          cfg,
		intersectPoints: cfg.IntersectPoints,
	}
	c.intersectPending = len(c.intersectPoints) > 0
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

// Sync restarts chain-sync from an intersection with the provided points. The
// FindIntersect request is sent the next time the client holds agency
func (c *Client) Sync(points ...common.Point) error {
	c.mutex.Lock()
	c.intersectPoints = points
	c.intersectPending = len(points) > 0
	c.paused = false
	c.mutex.Unlock()
	return c.trigger()
}

// Pause stops the client from requesting further updates
func (c *Client) Pause() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.paused = true
}

// Resume restarts requesting updates after Pause
func (c *Client) Resume() error {
	c.mutex.Lock()
	c.paused = false
	c.mutex.Unlock()
	return c.trigger()
}

// MarkDone makes the client send Done the next time it holds agency
func (c *Client) MarkDone() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.done = true
}

// trigger sends the next message if the client is attached. Detached clients send it once
// attached
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
	c.intersectPending = len(c.intersectPoints) > 0
	c.done = false
}

func (c *Client) buildMessage(state State) protocol.Message {
	if state != StateIdle {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.done {
		return NewMsgDone()
	}
	if c.intersectPending {
		c.intersectPending = false
		return NewMsgFindIntersect(c.intersectPoints)
	}
	if c.paused {
		return nil
	}
	return NewMsgRequestNext()
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeAwaitReply:
		err = c.handleAwaitReply()
	case MessageTypeRollForward:
		err = c.handleRollForward(msg)
	case MessageTypeRollBackward:
		err = c.handleRollBackward(msg)
	case MessageTypeIntersectFound:
		err = c.handleIntersectFound(msg)
	case MessageTypeIntersectNotFound:
		err = c.handleIntersectNotFound(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (c *Client) handleAwaitReply() error {
	if c.config.AwaitReplyFunc != nil {
		return c.config.AwaitReplyFunc(c.callbackContext)
	}
	return nil
}

func (c *Client) handleRollForward(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgRollForward)
	if c.config.RollForwardFunc != nil {
		return c.config.RollForwardFunc(c.callbackContext, msg)
	}
	return nil
}

func (c *Client) handleRollBackward(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgRollBackward)
	if c.config.RollBackwardFunc != nil {
		return c.config.RollBackwardFunc(c.callbackContext, msg.Point, msg.Tip)
	}
	return nil
}

func (c *Client) handleIntersectFound(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgIntersectFound)
	c.Logger().Debug("intersect found", "point", msg.Point.String(), "tip", msg.Tip.String())
	if c.config.IntersectFoundFunc != nil {
		return c.config.IntersectFoundFunc(c.callbackContext, msg.Point, msg.Tip)
	}
	return nil
}

func (c *Client) handleIntersectNotFound(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgIntersectNotFound)
	if c.config.IntersectNotFoundFunc != nil {
		return c.config.IntersectNotFoundFunc(c.callbackContext, msg.Tip)
	}
	return nil
}

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

package localstatequery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Client implements the local-state-query client. Queued queries are run in order
// against a single acquired state, which is released once the queue drains
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	acquirePoint    *common.Point
	reacquire       bool
	queue           []cbor.RawMessage
	inFlight        cbor.RawMessage
	done            bool
}

// NewClient returns a new local-state-query client
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

// Query queues a query. The result is passed to the configured ResultFunc
func (c *Client) Query(query cbor.RawMessage) error {
	if !cbor.IsArray(query) {
		return fmt.Errorf("%s: query must be a CBOR array", ProtocolName)
	}
	c.mutex.Lock()
	c.queue = append(c.queue, query)
	c.mutex.Unlock()
	return c.drive()
}

// SetAcquirePoint changes the point queries run against. A nil point selects the
// volatile tip. Queries still queued run after the new point is acquired
func (c *Client) SetAcquirePoint(point *common.Point) error {
	c.mutex.Lock()
	c.acquirePoint = point
	c.reacquire = true
	c.mutex.Unlock()
	return c.drive()
}

// Pending returns the number of queries without a result
func (c *Client) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ret := len(c.queue)
	if c.inFlight != nil {
		ret++
	}
	return ret
}

// MarkDone makes the client send Done once the queue is empty
func (c *Client) MarkDone() {
	c.mutex.Lock()
	c.done = true
	c.mutex.Unlock()
	if err := c.drive(); err != nil {
		c.Logger().Warn("failed to send message", "error", err)
	}
}

// drive sends messages for as long as the client keeps agency and has something to send
func (c *Client) drive() error {
	if !c.IsAttached() {
		return nil
	}
	for {
		before := c.State()
		if err := c.SendNextMessage(); err != nil {
			if errors.Is(err, protocol.ErrNotAttached) {
				return nil
			}
			return err
		}
		if c.State() == before || !c.HasAgency() {
			return nil
		}
	}
}

func (c *Client) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.queue = nil
	c.inFlight = nil
	c.reacquire = false
	c.done = false
}

func (c *Client) acquireMessage(again bool) protocol.Message {
	switch {
	case c.acquirePoint != nil && again:
		return NewMsgReacquire(*c.acquirePoint)
	case c.acquirePoint != nil:
		return NewMsgAcquire(*c.acquirePoint)
	case c.config.ImmutableTip && again:
		return NewMsgReacquireImmutableTip()
	case c.config.ImmutableTip:
		return NewMsgAcquireImmutableTip()
	case again:
		return NewMsgReacquireVolatileTip()
	default:
		return NewMsgAcquireVolatileTip()
	}
}

func (c *Client) buildMessage(state State) protocol.Message {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch state {
	case StateIdle:
		if len(c.queue) > 0 {
			c.reacquire = false
			return c.acquireMessage(false)
		}
		if c.done {
			return NewMsgDone()
		}
	case StateAcquired:
		if len(c.queue) == 0 {
			return NewMsgRelease()
		}
		if c.reacquire {
			c.reacquire = false
			return c.acquireMessage(true)
		}
		c.inFlight = c.queue[0]
		c.queue = c.queue[1:]
		return NewMsgQuery(c.inFlight)
	}
	return nil
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeAcquired:
		err = c.handleAcquired()
	case MessageTypeFailure:
		err = c.handleFailure(msg)
	case MessageTypeResult:
		err = c.handleResult(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (c *Client) handleAcquired() error {
	if c.config.AcquiredFunc != nil {
		if err := c.config.AcquiredFunc(c.callbackContext); err != nil {
			return err
		}
	}
	return c.drive()
}

func (c *Client) handleFailure(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgFailure)
	c.mutex.Lock()
	dropped := len(c.queue)
	c.queue = nil
	c.mutex.Unlock()
	c.Logger().Debug(
		"failed to acquire",
		"reason", msg.Failure,
		"dropped_queries", dropped,
	)
	if c.config.FailureFunc != nil {
		if err := c.config.FailureFunc(c.callbackContext, msg.Failure); err != nil {
			return err
		}
	}
	return c.drive()
}

func (c *Client) handleResult(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgResult)
	c.mutex.Lock()
	query := c.inFlight
	c.inFlight = nil
	c.mutex.Unlock()
	if query == nil {
		return fmt.Errorf("%s: received result with no query in flight", ProtocolName)
	}
	if c.config.ResultFunc != nil {
		if err := c.config.ResultFunc(c.callbackContext, query, msg.Result); err != nil {
			return err
		}
	}
	return c.drive()
}

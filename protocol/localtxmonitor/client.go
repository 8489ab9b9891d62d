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

package localtxmonitor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

type requestType uint8

const (
	requestNextTx requestType = iota
	requestHasTx
	requestGetSizes
)

type request struct {
	requestType requestType
	txId        common.Blake2b256
}

// Client implements the local-tx-monitor client. Requests are queued and answered
// against one acquired mempool snapshot, which is released once the queue drains
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	queue           []request
	inFlight        *request
	reacquire       bool
	done            bool
}

// NewClient returns a new local-tx-monitor client
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

// NextTx queues a request for the next transaction of the snapshot
func (c *Client) NextTx() error {
	return c.enqueue(request{requestType: requestNextTx})
}

// HasTx queues a request asking whether the snapshot contains the transaction
func (c *Client) HasTx(txId common.Blake2b256) error {
	return c.enqueue(request{requestType: requestHasTx, txId: txId})
}

// GetSizes queues a request for the snapshot sizes
func (c *Client) GetSizes() error {
	return c.enqueue(request{requestType: requestGetSizes})
}

// Reacquire makes the client move to a fresh snapshot before its next request
func (c *Client) Reacquire() {
	c.mutex.Lock()
	c.reacquire = true
	c.mutex.Unlock()
}

// Pending returns the number of requests without a reply
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

func (c *Client) enqueue(req request) error {
	c.mutex.Lock()
	c.queue = append(c.queue, req)
	c.mutex.Unlock()
	return c.drive()
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

func (c *Client) buildMessage(state State) protocol.Message {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch state {
	case StateIdle:
		if len(c.queue) > 0 {
			c.reacquire = false
			return NewMsgAcquire()
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
			return NewMsgAcquire()
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.inFlight = &next
		switch next.requestType {
		case requestHasTx:
			return NewMsgHasTx(next.txId)
		case requestGetSizes:
			return NewMsgGetSizes()
		default:
			return NewMsgNextTx()
		}
	}
	return nil
}

// completed returns the request awaiting a reply
func (c *Client) completed(expected requestType) (request, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.inFlight == nil || c.inFlight.requestType != expected {
		return request{}, fmt.Errorf("%s: received reply that does not match the request in flight", ProtocolName)
	}
	ret := *c.inFlight
	c.inFlight = nil
	return ret, nil
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeAcquired:
		err = c.handleAcquired(msg)
	case MessageTypeReplyNextTx:
		err = c.handleReplyNextTx(msg)
	case MessageTypeReplyHasTx:
		err = c.handleReplyHasTx(msg)
	case MessageTypeReplyGetSizes:
		err = c.handleReplyGetSizes(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	if err != nil {
		return err
	}
	return c.drive()
}

func (c *Client) handleAcquired(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgAcquired)
	c.Logger().Debug("acquired mempool snapshot", "slot", msg.SlotNo)
	if c.config.AcquiredFunc != nil {
		return c.config.AcquiredFunc(c.callbackContext, msg.SlotNo)
	}
	return nil
}

func (c *Client) handleReplyNextTx(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgReplyNextTx)
	if _, err := c.completed(requestNextTx); err != nil {
		return err
	}
	if c.config.NextTxFunc != nil {
		return c.config.NextTxFunc(c.callbackContext, msg.EraId, msg.Tx)
	}
	return nil
}

func (c *Client) handleReplyHasTx(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgReplyHasTx)
	req, err := c.completed(requestHasTx)
	if err != nil {
		return err
	}
	if c.config.HasTxFunc != nil {
		return c.config.HasTxFunc(c.callbackContext, req.txId, msg.Result)
	}
	return nil
}

func (c *Client) handleReplyGetSizes(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgReplyGetSizes)
	if _, err := c.completed(requestGetSizes); err != nil {
		return err
	}
	if c.config.SizesFunc != nil {
		return c.config.SizesFunc(c.callbackContext, msg.Result)
	}
	return nil
}

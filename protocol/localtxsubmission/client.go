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

package localtxsubmission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

type submission struct {
	id    common.Blake2b256
	eraId uint16
	tx    []byte
}

// Client implements the local-tx-submission client. Transactions are submitted in the
// order they were queued, one at a time
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	queue           []submission
	inFlight        *submission
	done            bool
}

// NewClient returns a new local-tx-submission client
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

// SubmitTx queues a transaction for submission and returns its id
func (c *Client) SubmitTx(eraId uint16, tx []byte) (common.Blake2b256, error) {
	txId, err := common.TxIdFromCbor(tx)
	if err != nil {
		return common.Blake2b256{}, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	c.mutex.Lock()
	c.queue = append(c.queue, submission{id: txId, eraId: eraId, tx: tx})
	c.mutex.Unlock()
	if c.IsAttached() {
		if err := c.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
			return txId, err
		}
	}
	return txId, nil
}

// Pending returns the number of transactions waiting to be submitted, including one
// awaiting a reply
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
	defer c.mutex.Unlock()
	c.done = true
}

func (c *Client) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.queue = nil
	c.inFlight = nil
	c.done = false
}

func (c *Client) buildMessage(state State) protocol.Message {
	if state != StateIdle {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.queue) == 0 {
		if c.done {
			return NewMsgDone()
		}
		return nil
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.inFlight = &next
	return NewMsgSubmitTx(next.eraId, next.tx)
}

// completed returns the id of the transaction awaiting a reply
func (c *Client) completed() (common.Blake2b256, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.inFlight == nil {
		return common.Blake2b256{}, fmt.Errorf("%s: received reply with no transaction in flight", ProtocolName)
	}
	txId := c.inFlight.id
	c.inFlight = nil
	return txId, nil
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeAcceptTx:
		err = c.handleAcceptTx()
	case MessageTypeRejectTx:
		err = c.handleRejectTx(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (c *Client) handleAcceptTx() error {
	txId, err := c.completed()
	if err != nil {
		return err
	}
	c.Logger().Debug("transaction accepted", "tx_id", txId.String())
	if c.config.AcceptedFunc != nil {
		return c.config.AcceptedFunc(c.callbackContext, txId)
	}
	return nil
}

func (c *Client) handleRejectTx(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgRejectTx)
	txId, err := c.completed()
	if err != nil {
		return err
	}
	c.Logger().Debug("transaction rejected", "tx_id", txId.String())
	if c.config.RejectedFunc != nil {
		return c.config.RejectedFunc(c.callbackContext, txId, msg.Reason)
	}
	return nil
}

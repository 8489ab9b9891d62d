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

package txsubmission

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// ErrAckTooLarge is returned when the server acknowledges more ids than are outstanding
var ErrAckTooLarge = errors.New("acknowledged more transaction ids than outstanding")

type queuedTx struct {
	id   TxId
	body []byte
}

// Client implements the tx-submission client, which offers queued transactions to the
// server as it requests them
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	pending         []queuedTx
	unacked         []queuedTx
	request         *MsgRequestTxIds
	requestedTxs    []TxId
	done            bool
}

// NewClient returns a new tx-submission client
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
		InitialState:        StateInit,
		DoneState:           StateDone,
		BuildMessageFunc:    c.buildMessage,
		MessageFromCborFunc: NewMsgFromCbor,
		MessageHandlerFunc:  c.messageHandler,
		ResetFunc:           c.reset,
		Logger:              protoOptions.Logger,
	})
	return c
}

// AddTx queues a transaction to be offered to the server and returns its id
func (c *Client) AddTx(eraId uint16, txCbor []byte) (common.Blake2b256, error) {
	hash, err := common.TxIdFromCbor(txCbor)
	if err != nil {
		return common.Blake2b256{}, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	c.mutex.Lock()
	c.pending = append(
		c.pending,
		queuedTx{
			id:   TxId{EraId: eraId, TxId: hash},
			body: txCbor,
		},
	)
	c.mutex.Unlock()
	// A blocking request may be waiting for a transaction
	if c.IsAttached() {
		if err := c.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
			return hash, err
		}
	}
	return hash, nil
}

// Pending returns the number of transactions that have not been offered yet
func (c *Client) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.pending)
}

// Unacknowledged returns the number of offered transactions not yet acknowledged
func (c *Client) Unacknowledged() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.unacked)
}

// MarkDone makes the client answer the next blocking request with Done
func (c *Client) MarkDone() {
	c.mutex.Lock()
	c.done = true
	c.mutex.Unlock()
	if c.IsAttached() {
		if err := c.SendNextMessage(); err != nil {
			c.Logger().Debug("failed to send done", "error", err)
		}
	}
}

func (c *Client) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.pending = nil
	c.unacked = nil
	c.request = nil
	c.requestedTxs = nil
	c.done = false
}

func (c *Client) buildMessage(state State) protocol.Message {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch state {
	case StateInit:
		return NewMsgInit()
	case StateTxIdsBlocking:
		if c.done {
			return NewMsgDone()
		}
		if c.request == nil || len(c.pending) == 0 {
			return nil
		}
		return c.replyTxIds()
	case StateTxIdsNonBlocking:
		if c.request == nil {
			return nil
		}
		return c.replyTxIds()
	case StateTxs:
		if c.requestedTxs == nil {
			return nil
		}
		txs := make([]TxBody, 0, len(c.requestedTxs))
		for _, txId := range c.requestedTxs {
			idx := slices.IndexFunc(c.unacked, func(tx queuedTx) bool {
				return tx.id == txId
			})
			if idx < 0 {
				continue
			}
			txs = append(txs, TxBody{EraId: txId.EraId, TxBody: c.unacked[idx].body})
		}
		c.requestedTxs = nil
		return NewMsgReplyTxs(txs)
	default:
		return nil
	}
}

// replyTxIds moves up to the requested number of pending transactions to the
// unacknowledged list. The mutex must be held
func (c *Client) replyTxIds() protocol.Message {
	count := min(int(c.request.Req), len(c.pending))
	c.request = nil
	txIds := make([]TxIdAndSize, 0, count)
	for _, tx := range c.pending[:count] {
		txIds = append(
			txIds,
			TxIdAndSize{
				TxId: tx.id,
				// #nosec G115
				Size: uint32(len(tx.body)),
			},
		)
	}
	c.unacked = append(c.unacked, c.pending[:count]...)
	c.pending = c.pending[count:]
	return NewMsgReplyTxIds(txIds)
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeRequestTxIds:
		err = c.handleRequestTxIds(msg)
	case MessageTypeRequestTxs:
		err = c.handleRequestTxs(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (c *Client) handleRequestTxIds(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgRequestTxIds)
	c.mutex.Lock()
	if int(msg.Ack) > len(c.unacked) {
		c.mutex.Unlock()
		return fmt.Errorf(
			"%s: %w: %d > %d",
			ProtocolName,
			ErrAckTooLarge,
			msg.Ack,
			len(c.unacked),
		)
	}
	acked := make([]common.Blake2b256, 0, msg.Ack)
	for _, tx := range c.unacked[:msg.Ack] {
		acked = append(acked, tx.id.TxId)
	}
	c.unacked = c.unacked[msg.Ack:]
	c.request = msg
	c.mutex.Unlock()
	if len(acked) > 0 && c.config.AcknowledgedFunc != nil {
		if err := c.config.AcknowledgedFunc(c.callbackContext, acked); err != nil {
			return err
		}
	}
	return c.SendNextMessage()
}

func (c *Client) handleRequestTxs(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgRequestTxs)
	c.mutex.Lock()
	c.requestedTxs = msg.TxIds
	if c.requestedTxs == nil {
		c.requestedTxs = []TxId{}
	}
	c.mutex.Unlock()
	return c.SendNextMessage()
}

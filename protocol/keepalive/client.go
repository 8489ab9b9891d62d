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

package keepalive

import (
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Client sends a keep-alive request every Period while attached, using an incrementing
// cookie
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	cookie          uint16
	pingDue         bool
	done            bool
	timer           *time.Timer
}

// NewClient returns a new keep-alive client
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
		cookie: cfg.Cookie,
	}
	c.callbackContext = CallbackContext{
		Client: c,
	}
	c.Agent = protocol.NewAgent(protocol.AgentConfig[State]{
		Name:                ProtocolName,
		ProtocolId:          protoOptions.ProtocolId,
		Role:                protocol.RoleClient,
		InitialState:        StateClient,
		DoneState:           StateDone,
		BuildMessageFunc:    c.buildMessage,
		MessageFromCborFunc: NewMsgFromCbor,
		MessageHandlerFunc:  c.messageHandler,
		ResetFunc:           c.reset,
		AttachFunc:          c.startTimer,
		DetachFunc:          c.stopTimer,
		Logger:              protoOptions.Logger,
	})
	return c
}

// Cookie returns the cookie used for the next keep-alive request
func (c *Client) Cookie() uint16 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cookie
}

// Ping requests an immediate keep-alive request
func (c *Client) Ping() error {
	c.mutex.Lock()
	c.pingDue = true
	c.mutex.Unlock()
	return c.SendNextMessage()
}

// MarkDone makes the client send Done the next time it holds agency
func (c *Client) MarkDone() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.done = true
}

func (c *Client) startTimer() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.config.Period <= 0 {
		return
	}
	c.timer = time.AfterFunc(c.config.Period, c.timerExpired)
}

func (c *Client) stopTimer() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) timerExpired() {
	if !c.IsAttached() {
		return
	}
	if err := c.Ping(); err != nil {
		c.Logger().Warn("failed to send keep-alive", "error", err)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	// The timer is cleared on detach
	if c.timer != nil {
		c.timer.Reset(c.config.Period)
	}
}

func (c *Client) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.pingDue = false
	c.done = false
}

func (c *Client) buildMessage(state State) protocol.Message {
	if state != StateClient {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.done {
		return NewMsgDone()
	}
	if !c.pingDue {
		return nil
	}
	c.pingDue = false
	return NewMsgKeepAlive(c.cookie)
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeKeepAliveResponse:
		err = c.handleKeepAliveResponse(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (c *Client) handleKeepAliveResponse(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgKeepAliveResponse)
	c.mutex.Lock()
	expected := c.cookie
	if msg.Cookie == expected {
		c.cookie++
	}
	c.mutex.Unlock()
	if msg.Cookie != expected {
		return fmt.Errorf(
			"%s: unexpected cookie in response, expected %d but received %d",
			ProtocolName,
			expected,
			msg.Cookie,
		)
	}
	if c.config.KeepAliveResponseFunc != nil {
		// Call the user callback function
		return c.config.KeepAliveResponseFunc(c.callbackContext, msg.Cookie)
	}
	return nil
}

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

package handshake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// ErrNoVersionMap is returned when the client has no versions to propose
var ErrNoVersionMap = errors.New("no protocol versions configured")

// Client implements the handshake client, which proposes the configured versions
// exactly once per connection
type Client struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	resultMutex     sync.Mutex
	accepted        bool
	version         uint16
	versionData     VersionData
	refuseReason    *RefuseReason
}

// NewClient returns a new handshake client
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
		InitialState:        StatePropose,
		DoneState:           StateDone,
		BuildMessageFunc:    c.buildMessage,
		MessageFromCborFunc: NewMsgFromCbor,
		MessageHandlerFunc:  c.messageHandler,
		ResetFunc:           c.reset,
		Logger:              protoOptions.Logger,
	})
	return c
}

// Accepted returns the negotiated version and its version data. The last return value
// is false until the server has accepted a version
func (c *Client) Accepted() (uint16, VersionData, bool) {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()
	return c.version, c.versionData, c.accepted
}

// Refused returns the refusal reason, or nil if the proposal was not refused
func (c *Client) Refused() *RefuseReason {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()
	return c.refuseReason
}

func (c *Client) reset() {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()
	c.accepted = false
	c.version = 0
	c.versionData = nil
	c.refuseReason = nil
}

func (c *Client) buildMessage(state State) protocol.Message {
	if state != StatePropose {
		return nil
	}
	if len(c.config.ProtocolVersionMap) == 0 {
		c.Logger().Error(ErrNoVersionMap.Error())
		return nil
	}
	versionMap, err := c.config.ProtocolVersionMap.toCbor()
	if err != nil {
		c.Logger().Error("failed to build version proposal", "error", err)
		return nil
	}
	return NewMsgProposeVersions(versionMap)
}

func (c *Client) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeAcceptVersion:
		err = c.handleAcceptVersion(msg)
	case MessageTypeRefuse:
		err = c.handleRefuse(msg)
	case MessageTypeQueryReply:
		err = c.handleQueryReply(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (c *Client) handleAcceptVersion(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgAcceptVersion)
	versionData, err := NewVersionDataFromCbor(msg.Version, msg.VersionData)
	if err != nil {
		return err
	}
	c.resultMutex.Lock()
	c.accepted = true
	c.version = msg.Version
	c.versionData = versionData
	c.resultMutex.Unlock()
	c.Logger().Debug(
		"version accepted",
		"version", msg.Version,
		"network_magic", versionData.NetworkMagic(),
	)
	if c.config.AcceptedFunc != nil {
		return c.config.AcceptedFunc(c.callbackContext, msg.Version, versionData)
	}
	return nil
}

func (c *Client) handleRefuse(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgRefuse)
	reason := msg.Reason
	c.resultMutex.Lock()
	c.refuseReason = &reason
	c.resultMutex.Unlock()
	if c.config.RefusedFunc != nil {
		return c.config.RefusedFunc(c.callbackContext, reason)
	}
	return nil
}

func (c *Client) handleQueryReply(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgQueryReply)
	if c.config.QueryReplyFunc != nil {
		return c.config.QueryReplyFunc(
			c.callbackContext,
			protocolVersionMapFromCbor(msg.VersionMap),
		)
	}
	return nil
}

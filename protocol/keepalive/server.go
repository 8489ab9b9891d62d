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

	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Server answers each keep-alive request with the same cookie
type Server struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	mutex           sync.Mutex
	pending         *uint16
}

// NewServer returns a new keep-alive server
func NewServer(cfg *Config, options ...protocol.ProtocolOptionFunc) *Server {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	protoOptions := protocol.NewProtocolOptions(
		ProtocolId,
		protocol.RoleServer,
		options...,
	)
	s := &Server{
		config: cfg,
	}
	s.callbackContext = CallbackContext{
		Server: s,
	}
	s.Agent = protocol.NewAgent(protocol.AgentConfig[State]{
		Name:                ProtocolName,
		ProtocolId:          protoOptions.ProtocolId,
		Role:                protocol.RoleServer,
		InitialState:        StateClient,
		DoneState:           StateDone,
		BuildMessageFunc:    s.buildMessage,
		MessageFromCborFunc: NewMsgFromCbor,
		MessageHandlerFunc:  s.messageHandler,
		ResetFunc:           s.reset,
		Logger:              protoOptions.Logger,
	})
	return s
}

func (s *Server) reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pending = nil
}

func (s *Server) buildMessage(state State) protocol.Message {
	if state != StateServer {
		return nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.pending == nil {
		return nil
	}
	cookie := *s.pending
	s.pending = nil
	return NewMsgKeepAliveResponse(cookie)
}

func (s *Server) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeKeepAlive:
		err = s.handleKeepAlive(msg)
	case MessageTypeDone:
		err = s.handleDone()
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (s *Server) handleKeepAlive(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgKeepAlive)
	if s.config.KeepAliveFunc != nil {
		// Call the user callback function
		if err := s.config.KeepAliveFunc(s.callbackContext, msg.Cookie); err != nil {
			return err
		}
	}
	cookie := msg.Cookie
	s.mutex.Lock()
	s.pending = &cookie
	s.mutex.Unlock()
	return s.SendNextMessage()
}

func (s *Server) handleDone() error {
	if s.config.DoneFunc != nil {
		// Call the user callback function
		return s.config.DoneFunc(s.callbackContext)
	}
	return nil
}

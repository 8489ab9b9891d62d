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
	"fmt"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Server implements the handshake server, which answers a version proposal with the
// highest mutually supported version
type Server struct {
	*protocol.Agent[State]
	config          *Config
	callbackContext CallbackContext
	replyMutex      sync.Mutex
	reply           protocol.Message
}

// NewServer returns a new handshake server
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
		InitialState:        StatePropose,
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
	s.replyMutex.Lock()
	defer s.replyMutex.Unlock()
	s.reply = nil
}

func (s *Server) buildMessage(state State) protocol.Message {
	if state != StateConfirm {
		return nil
	}
	s.replyMutex.Lock()
	defer s.replyMutex.Unlock()
	reply := s.reply
	s.reply = nil
	return reply
}

func (s *Server) messageHandler(msg protocol.Message) error {
	var err error
	switch msg.Type() {
	case MessageTypeProposeVersions:
		err = s.handleProposeVersions(msg)
	default:
		err = fmt.Errorf(
			"%s: received unexpected message type %d",
			ProtocolName,
			msg.Type(),
		)
	}
	return err
}

func (s *Server) handleProposeVersions(msgGeneric protocol.Message) error {
	msg := msgGeneric.(*MsgProposeVersions)
	reply, acceptedVersion, acceptedData, err := s.selectVersion(msg.VersionMap)
	if err != nil {
		return err
	}
	s.replyMutex.Lock()
	s.reply = reply
	s.replyMutex.Unlock()
	if err := s.SendNextMessage(); err != nil {
		return err
	}
	if acceptedData != nil && s.config.AcceptedFunc != nil {
		return s.config.AcceptedFunc(s.callbackContext, acceptedVersion, acceptedData)
	}
	return nil
}

// selectVersion builds the reply to a version proposal. When a version is accepted, its
// number and the proposed version data are also returned
func (s *Server) selectVersion(
	proposed map[uint16]cbor.RawMessage,
) (protocol.Message, uint16, VersionData, error) {
	supported := s.config.ProtocolVersionMap
	supportedCbor, err := supported.toCbor()
	if err != nil {
		return nil, 0, nil, err
	}
	candidates := make(ProtocolVersionMap, len(proposed))
	for version := range proposed {
		if _, ok := supported[version]; ok {
			candidates[version] = nil
		}
	}
	if len(candidates) == 0 {
		return NewMsgRefuse(RefuseReason{
			Code:     RefuseReasonVersionMismatch,
			Versions: supported.Versions(),
		}), 0, nil, nil
	}
	version := candidates.Versions()[0]
	proposedData, err := NewVersionDataFromCbor(version, proposed[version])
	if err != nil {
		return NewMsgRefuse(RefuseReason{
			Code:    RefuseReasonDecodeError,
			Version: version,
			Message: err.Error(),
		}), 0, nil, nil
	}
	if proposedData.Query() {
		return NewMsgQueryReply(supportedCbor), 0, nil, nil
	}
	ourData := supported[version]
	if proposedData.NetworkMagic() != ourData.NetworkMagic() {
		return NewMsgRefuse(RefuseReason{
			Code:    RefuseReasonRefused,
			Version: version,
			Message: fmt.Sprintf(
				"network magic mismatch: expected %d, got %d",
				ourData.NetworkMagic(),
				proposedData.NetworkMagic(),
			),
		}), 0, nil, nil
	}
	s.Logger().Debug(
		"accepting version",
		"version", version,
		"network_magic", proposedData.NetworkMagic(),
	)
	return NewMsgAcceptVersion(version, supportedCbor[version]), version, proposedData, nil
}

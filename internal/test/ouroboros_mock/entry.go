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

package ouroboros_mock

import (
	"time"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
)

const (
	MockNetworkMagic       uint32 = 999999
	MockProtocolVersionNtC uint16 = 20 + handshake.ProtocolVersionNtCFlag
	MockProtocolVersionNtN uint16 = 14
)

// ConversationEntry is a single step in a mock conversation
type ConversationEntry interface {
	isConversationEntry()
}

// ConversationEntryInput expects a message from the connection under test. When Message
// is nil, only the message type is checked
type ConversationEntryInput struct {
	ProtocolId      uint16
	IsResponse      bool
	Message         protocol.Message
	MessageType     uint
	MsgFromCborFunc protocol.MessageFromCborFunc
}

func (ConversationEntryInput) isConversationEntry() {}

// ConversationEntryOutput sends the messages to the connection under test in a single segment
type ConversationEntryOutput struct {
	ProtocolId uint16
	IsResponse bool
	Messages   []protocol.Message
}

func (ConversationEntryOutput) isConversationEntry() {}

// ConversationEntrySleep pauses the conversation
type ConversationEntrySleep struct {
	Duration time.Duration
}

func (ConversationEntrySleep) isConversationEntry() {}

// ConversationEntryClose closes the connection
type ConversationEntryClose struct{}

func (ConversationEntryClose) isConversationEntry() {}

// ConversationEntryHandshakeRequestGeneric matches any handshake proposal from a client
var ConversationEntryHandshakeRequestGeneric = ConversationEntryInput{
	ProtocolId:  handshake.ProtocolId,
	MessageType: handshake.MessageTypeProposeVersions,
}

// ConversationEntryHandshakeNtCResponse is a server NtC handshake response
var ConversationEntryHandshakeNtCResponse = ConversationEntryOutput{
	ProtocolId: handshake.ProtocolId,
	IsResponse: true,
	Messages: []protocol.Message{
		handshake.NewMsgAcceptVersion(
			MockProtocolVersionNtC,
			mustEncode(handshake.VersionDataNtC15andUp{
				CborNetworkMagic: MockNetworkMagic,
			}),
		),
	},
}

// ConversationEntryHandshakeNtNResponse is a server NtN handshake response
var ConversationEntryHandshakeNtNResponse = ConversationEntryOutput{
	ProtocolId: handshake.ProtocolId,
	IsResponse: true,
	Messages: []protocol.Message{
		handshake.NewMsgAcceptVersion(
			MockProtocolVersionNtN,
			mustEncode(handshake.VersionDataNtN11andUp{
				CborNetworkMagic:  MockNetworkMagic,
				CborInitiatorOnly: true,
			}),
		),
	},
}

// ConversationEntryHandshakeRefuse is a server handshake refusal
var ConversationEntryHandshakeRefuse = ConversationEntryOutput{
	ProtocolId: handshake.ProtocolId,
	IsResponse: true,
	Messages: []protocol.Message{
		handshake.NewMsgRefuse(handshake.RefuseReason{
			Code:     handshake.RefuseReasonVersionMismatch,
			Versions: []uint16{7, 8},
		}),
	},
}

// ConversationHandshakeNtC is a complete NtC handshake
var ConversationHandshakeNtC = []ConversationEntry{
	ConversationEntryHandshakeRequestGeneric,
	ConversationEntryHandshakeNtCResponse,
}

// ConversationHandshakeNtN is a complete NtN handshake
var ConversationHandshakeNtN = []ConversationEntry{
	ConversationEntryHandshakeRequestGeneric,
	ConversationEntryHandshakeNtNResponse,
}

func mustEncode(v any) cbor.RawMessage {
	data, err := cbor.Encode(v)
	if err != nil {
		panic(err)
	}
	return data
}

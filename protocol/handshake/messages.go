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

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Message types
const (
	MessageTypeProposeVersions = 0
	MessageTypeAcceptVersion   = 1
	MessageTypeRefuse          = 2
	MessageTypeQueryReply      = 3
)

// Refusal reasons
const (
	RefuseReasonVersionMismatch uint64 = 0
	RefuseReasonDecodeError     uint64 = 1
	RefuseReasonRefused         uint64 = 2
)

// NewMsgFromCbor parses a handshake message from CBOR
func NewMsgFromCbor(msgType uint, data []byte) (protocol.Message, error) {
	var ret protocol.Message
	switch msgType {
	case MessageTypeProposeVersions:
		ret = &MsgProposeVersions{}
	case MessageTypeAcceptVersion:
		ret = &MsgAcceptVersion{}
	case MessageTypeRefuse:
		ret = &MsgRefuse{}
	case MessageTypeQueryReply:
		ret = &MsgQueryReply{}
	default:
		return nil, nil
	}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	// Store the raw message CBOR
	ret.SetCbor(data)
	return ret, nil
}

type MsgProposeVersions struct {
	protocol.MessageBase
	VersionMap map[uint16]cbor.RawMessage
}

func NewMsgProposeVersions(versionMap map[uint16]cbor.RawMessage) *MsgProposeVersions {
	m := &MsgProposeVersions{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeProposeVersions,
		},
		VersionMap: versionMap,
	}
	return m
}

type MsgAcceptVersion struct {
	protocol.MessageBase
	Version     uint16
	VersionData cbor.RawMessage
}

func NewMsgAcceptVersion(version uint16, versionData cbor.RawMessage) *MsgAcceptVersion {
	m := &MsgAcceptVersion{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeAcceptVersion,
		},
		Version:     version,
		VersionData: versionData,
	}
	return m
}

type MsgRefuse struct {
	protocol.MessageBase
	Reason RefuseReason
}

func NewMsgRefuse(reason RefuseReason) *MsgRefuse {
	m := &MsgRefuse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeRefuse,
		},
		Reason: reason,
	}
	return m
}

type MsgQueryReply struct {
	protocol.MessageBase
	VersionMap map[uint16]cbor.RawMessage
}

func NewMsgQueryReply(versionMap map[uint16]cbor.RawMessage) *MsgQueryReply {
	m := &MsgQueryReply{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeQueryReply,
		},
		VersionMap: versionMap,
	}
	return m
}

// RefuseReason is the reason given by the server for refusing a version proposal.
// Versions is only populated for a version mismatch, Version and Message for the others
type RefuseReason struct {
	Code     uint64
	Versions []uint16
	Version  uint16
	Message  string
}

func (r RefuseReason) MarshalCBOR() ([]byte, error) {
	var tmp []any
	switch r.Code {
	case RefuseReasonVersionMismatch:
		versions := r.Versions
		if versions == nil {
			versions = []uint16{}
		}
		tmp = []any{r.Code, versions}
	case RefuseReasonDecodeError, RefuseReasonRefused:
		tmp = []any{r.Code, r.Version, r.Message}
	default:
		return nil, fmt.Errorf("%s: unknown refuse reason: %d", ProtocolName, r.Code)
	}
	return cbor.Encode(tmp)
}

func (r *RefuseReason) UnmarshalCBOR(data []byte) error {
	var tmp []cbor.RawMessage
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return err
	}
	if len(tmp) < 2 {
		return fmt.Errorf("%s: invalid refuse reason", ProtocolName)
	}
	if _, err := cbor.Decode(tmp[0], &r.Code); err != nil {
		return err
	}
	switch r.Code {
	case RefuseReasonVersionMismatch:
		if _, err := cbor.Decode(tmp[1], &r.Versions); err != nil {
			return err
		}
	case RefuseReasonDecodeError, RefuseReasonRefused:
		if len(tmp) != 3 {
			return fmt.Errorf("%s: invalid refuse reason", ProtocolName)
		}
		if _, err := cbor.Decode(tmp[1], &r.Version); err != nil {
			return err
		}
		if _, err := cbor.Decode(tmp[2], &r.Message); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s: unknown refuse reason: %d", ProtocolName, r.Code)
	}
	return nil
}

func (r RefuseReason) String() string {
	switch r.Code {
	case RefuseReasonVersionMismatch:
		return fmt.Sprintf("version mismatch (supported versions: %v)", r.Versions)
	case RefuseReasonDecodeError:
		return fmt.Sprintf("decode error for version %d: %s", r.Version, r.Message)
	case RefuseReasonRefused:
		return fmt.Sprintf("refused version %d: %s", r.Version, r.Message)
	default:
		return fmt.Sprintf("unknown reason %d", r.Code)
	}
}

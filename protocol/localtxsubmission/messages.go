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
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

const (
	MessageTypeSubmitTx = 0
	MessageTypeAcceptTx = 1
	MessageTypeRejectTx = 2
	MessageTypeDone     = 3
)

// messageConstructors maps wire message types to empty message values
var messageConstructors = map[uint]func() protocol.Message{
	MessageTypeSubmitTx: func() protocol.Message { return &MsgSubmitTx{} },
	MessageTypeAcceptTx: func() protocol.Message { return &MsgAcceptTx{} },
	MessageTypeRejectTx: func() protocol.Message { return &MsgRejectTx{} },
	MessageTypeDone:     func() protocol.Message { return &MsgDone{} },
}

// NewMsgFromCbor parses a local-tx-submission message from CBOR. Unknown
// message types yield a nil message
func NewMsgFromCbor(msgType uint, data []byte) (protocol.Message, error) {
	newMsg, ok := messageConstructors[msgType]
	if !ok {
		return nil, nil
	}
	msg := newMsg()
	if _, err := cbor.Decode(data, msg); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	msg.SetCbor(data)
	return msg, nil
}

func base(msgType uint8) protocol.MessageBase {
	return protocol.MessageBase{MessageType: msgType}
}

// MsgSubmitTx carries an era-tagged transaction wrapped in tag 24
type MsgSubmitTx struct {
	protocol.MessageBase
	Transaction SubmittedTx
}

type SubmittedTx struct {
	cbor.StructAsArray
	EraId uint16
	Raw   cbor.WrappedCbor
}

func NewMsgSubmitTx(eraId uint16, tx []byte) *MsgSubmitTx {
	return &MsgSubmitTx{
		MessageBase: base(MessageTypeSubmitTx),
		Transaction: SubmittedTx{EraId: eraId, Raw: tx},
	}
}

type MsgAcceptTx struct {
	protocol.MessageBase
}

func NewMsgAcceptTx() *MsgAcceptTx {
	return &MsgAcceptTx{MessageBase: base(MessageTypeAcceptTx)}
}

// MsgRejectTx keeps the era-specific rejection reason as raw CBOR
type MsgRejectTx struct {
	protocol.MessageBase
	Reason cbor.RawMessage
}

func NewMsgRejectTx(reasonCbor []byte) *MsgRejectTx {
	return &MsgRejectTx{
		MessageBase: base(MessageTypeRejectTx),
		Reason:      cbor.RawMessage(reasonCbor),
	}
}

type MsgDone struct {
	protocol.MessageBase
}

func NewMsgDone() *MsgDone {
	return &MsgDone{MessageBase: base(MessageTypeDone)}
}

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
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/internal/test"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

type testDefinition struct {
	CborHex     string
	Message     protocol.Message
	MessageType uint
}

var testTxHashHex = strings.Repeat("01", 32)

var testTxId = TxId{
	EraId: 6,
	TxId:  common.NewBlake2b256(test.DecodeHexString(testTxHashHex)),
}

var tests = []testDefinition{
	{
		CborHex:     "8400f50003",
		Message:     NewMsgRequestTxIds(true, 0, 3),
		MessageType: MessageTypeRequestTxIds,
	},
	{
		CborHex: "820181828206" + "5820" + testTxHashHex + "1864",
		Message: NewMsgReplyTxIds(
			[]TxIdAndSize{
				{
					TxId: testTxId,
					Size: 100,
				},
			},
		),
		MessageType: MessageTypeReplyTxIds,
	},
	{
		CborHex:     "820180",
		Message:     NewMsgReplyTxIds(nil),
		MessageType: MessageTypeReplyTxIds,
	},
	{
		CborHex:     "8202818206" + "5820" + testTxHashHex,
		Message:     NewMsgRequestTxs([]TxId{testTxId}),
		MessageType: MessageTypeRequestTxs,
	},
	{
		CborHex: "8203818206d81843820102",
		Message: NewMsgReplyTxs(
			[]TxBody{
				{
					EraId:  6,
					TxBody: test.DecodeHexString("820102"),
				},
			},
		),
		MessageType: MessageTypeReplyTxs,
	},
	{
		CborHex:     "8104",
		Message:     NewMsgDone(),
		MessageType: MessageTypeDone,
	},
	{
		CborHex:     "8106",
		Message:     NewMsgInit(),
		MessageType: MessageTypeInit,
	},
}

func TestDecode(t *testing.T) {
	for _, test := range tests {
		cborData, err := hex.DecodeString(test.CborHex)
		if err != nil {
			t.Fatalf("failed to decode CBOR hex: %s", err)
		}
		msg, err := NewMsgFromCbor(test.MessageType, cborData)
		if err != nil {
			t.Fatalf("failed to decode CBOR: %s", err)
		}
		// Set the raw CBOR so the comparison should succeed
		test.Message.SetCbor(cborData)
		if !reflect.DeepEqual(msg, test.Message) {
			t.Fatalf(
				"CBOR did not decode to expected message object\n  got:    %#v\n  wanted: %#v",
				msg,
				test.Message,
			)
		}
	}
}

func TestEncode(t *testing.T) {
	for _, test := range tests {
		cborData, err := cbor.Encode(test.Message)
		if err != nil {
			t.Fatalf("failed to encode message to CBOR: %s", err)
		}
		cborHex := hex.EncodeToString(cborData)
		if cborHex != test.CborHex {
			t.Fatalf(
				"message did not encode to expected CBOR\n  got:    %s\n  wanted: %s",
				cborHex,
				test.CborHex,
			)
		}
	}
}

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

package localtxmonitor_test

import (
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/internal/test"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxmonitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, driver protocol.Driver, msg protocol.Message) {
	t.Helper()
	data, err := cbor.Encode(msg)
	require.NoError(t, err)
	decoded, err := driver.DeserializeMessage(data)
	require.NoError(t, err)
	driver.ReceiveMessage(decoded)
}

func payloads(sender *test.Sender) []string {
	var ret []string
	for _, segment := range sender.Segments() {
		ret = append(ret, hex.EncodeToString(segment.Payload))
	}
	return ret
}

func TestClientRequests(t *testing.T) {
	var events []string
	txId := common.Blake2b256Hash([]byte("tx"))
	cfg := localtxmonitor.NewConfig(
		localtxmonitor.WithAcquiredFunc(
			func(_ localtxmonitor.CallbackContext, slot uint64) error {
				events = append(events, "acquired")
				assert.Equal(t, uint64(1234), slot)
				return nil
			},
		),
		localtxmonitor.WithNextTxFunc(
			func(_ localtxmonitor.CallbackContext, eraId uint8, tx []byte) error {
				events = append(events, "next "+hex.EncodeToString(tx))
				assert.Equal(t, uint8(6), eraId)
				return nil
			},
		),
		localtxmonitor.WithHasTxFunc(
			func(_ localtxmonitor.CallbackContext, id common.Blake2b256, found bool) error {
				assert.Equal(t, txId, id)
				assert.True(t, found)
				events = append(events, "has")
				return nil
			},
		),
		localtxmonitor.WithSizesFunc(
			func(_ localtxmonitor.CallbackContext, sizes localtxmonitor.Sizes) error {
				assert.Equal(t, uint32(2), sizes.NumberOfTxs)
				events = append(events, "sizes")
				return nil
			},
		),
	)
	client := localtxmonitor.NewClient(&cfg)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.NextTx())
	require.NoError(t, client.HasTx(txId))
	require.NoError(t, client.GetSizes())
	assert.Equal(t, 3, client.Pending())
	receive(t, client, localtxmonitor.NewMsgAcquired(1234))
	assert.Equal(t, localtxmonitor.StateBusy, client.State())
	receive(t, client, localtxmonitor.NewMsgReplyNextTx(6, test.DecodeHexString("82a0a0")))
	receive(t, client, localtxmonitor.NewMsgReplyHasTx(true))
	receive(t, client, localtxmonitor.NewMsgReplyGetSizes(100, 50, 2))
	assert.Equal(t, []string{"acquired", "next 82a0a0", "has", "sizes"}, events)
	assert.Equal(t, localtxmonitor.StateIdle, client.State())
	client.MarkDone()
	assert.True(t, client.IsDone())
	assert.Equal(
		t,
		[]string{
			"8101",
			"8105",
			"82075820" + txId.String(),
			"8109",
			"8103",
			"8100",
		},
		payloads(sender),
	)
}

func TestClientReacquire(t *testing.T) {
	client := localtxmonitor.NewClient(nil)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.NextTx())
	require.NoError(t, client.NextTx())
	receive(t, client, localtxmonitor.NewMsgAcquired(10))
	client.Reacquire()
	receive(t, client, localtxmonitor.NewMsgReplyNextTx(0, nil))
	assert.Equal(t, localtxmonitor.StateAcquiring, client.State())
	receive(t, client, localtxmonitor.NewMsgAcquired(11))
	assert.Equal(t, []string{"8101", "8105", "8101", "8105"}, payloads(sender))
}

func TestClientMismatchedReply(t *testing.T) {
	called := false
	cfg := localtxmonitor.NewConfig(
		localtxmonitor.WithHasTxFunc(
			func(_ localtxmonitor.CallbackContext, _ common.Blake2b256, _ bool) error {
				called = true
				return nil
			},
		),
	)
	client := localtxmonitor.NewClient(&cfg)
	client.Attach(&test.Sender{})
	require.NoError(t, client.NextTx())
	receive(t, client, localtxmonitor.NewMsgAcquired(10))
	receive(t, client, localtxmonitor.NewMsgReplyHasTx(true))
	assert.False(t, called)
	assert.Equal(t, 1, client.Pending())
}

func TestClientResetDropsRequests(t *testing.T) {
	client := localtxmonitor.NewClient(nil)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.GetSizes())
	require.NoError(t, client.NextTx())
	receive(t, client, localtxmonitor.NewMsgAcquired(10))
	sent := len(sender.Segments())
	client.Reset()
	client.Reset()
	assert.Equal(t, localtxmonitor.StateIdle, client.State())
	assert.Equal(t, 0, client.Pending())
	require.NoError(t, client.SendNextMessage())
	assert.Len(t, sender.Segments(), sent)
}

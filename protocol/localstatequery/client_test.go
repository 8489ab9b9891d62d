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

package localstatequery_test

import (
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/internal/test"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localstatequery"
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

func TestClientQueries(t *testing.T) {
	var acquired int
	var results []string
	cfg := localstatequery.NewConfig(
		localstatequery.WithAcquiredFunc(
			func(_ localstatequery.CallbackContext) error {
				acquired++
				return nil
			},
		),
		localstatequery.WithResultFunc(
			func(_ localstatequery.CallbackContext, query cbor.RawMessage, result cbor.RawMessage) error {
				results = append(results, hex.EncodeToString(query)+"="+hex.EncodeToString(result))
				return nil
			},
		),
	)
	client := localstatequery.NewClient(&cfg)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.Query(localstatequery.NewChainPointQuery()))
	require.NoError(t, client.Query(localstatequery.NewSystemStartQuery()))
	assert.Equal(t, localstatequery.StateAcquiring, client.State())
	assert.Equal(t, 2, client.Pending())
	receive(t, client, localstatequery.NewMsgAcquired())
	assert.Equal(t, 1, acquired)
	assert.Equal(t, localstatequery.StateQuerying, client.State())
	receive(t, client, localstatequery.NewMsgResult(test.DecodeHexString("821904d242abcd")))
	receive(t, client, localstatequery.NewMsgResult(test.DecodeHexString("831907e119010a00")))
	assert.Equal(
		t,
		[]string{"8103=821904d242abcd", "8101=831907e119010a00"},
		results,
	)
	// The acquired state is released once the queue drains
	assert.Equal(t, localstatequery.StateIdle, client.State())
	assert.Equal(t, 0, client.Pending())
	client.MarkDone()
	assert.True(t, client.IsDone())
	assert.Equal(
		t,
		[]string{"8108", "82038103", "82038101", "8105", "8107"},
		payloads(sender),
	)
}

func TestClientAcquirePoint(t *testing.T) {
	point := common.NewPoint(1234, test.DecodeHexString("abcd"))
	client := localstatequery.NewClient(nil)
	require.NoError(t, client.SetAcquirePoint(&point))
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.Query(localstatequery.NewChainPointQuery()))
	require.NoError(t, client.Query(localstatequery.NewChainBlockNoQuery()))
	receive(t, client, localstatequery.NewMsgAcquired())
	// Switching to the volatile tip reacquires before the next query
	require.NoError(t, client.SetAcquirePoint(nil))
	receive(t, client, localstatequery.NewMsgResult(test.DecodeHexString("821904d242abcd")))
	assert.Equal(t, localstatequery.StateAcquiring, client.State())
	receive(t, client, localstatequery.NewMsgAcquired())
	assert.Equal(
		t,
		[]string{"8200821904d242abcd", "82038103", "8109", "82038102"},
		payloads(sender),
	)
}

func TestClientImmutableTip(t *testing.T) {
	cfg := localstatequery.NewConfig(localstatequery.WithImmutableTip())
	client := localstatequery.NewClient(&cfg)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.Query(localstatequery.NewChainPointQuery()))
	assert.Equal(t, "810a", hex.EncodeToString(sender.Last().Payload))
}

func TestClientAcquireFailure(t *testing.T) {
	var reasons []uint64
	cfg := localstatequery.NewConfig(
		localstatequery.WithFailureFunc(
			func(_ localstatequery.CallbackContext, reason uint64) error {
				reasons = append(reasons, reason)
				return nil
			},
		),
	)
	client := localstatequery.NewClient(&cfg)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.Query(localstatequery.NewChainPointQuery()))
	require.NoError(t, client.Query(localstatequery.NewSystemStartQuery()))
	receive(t, client, localstatequery.NewMsgFailure(localstatequery.AcquireFailurePointTooOld))
	assert.Equal(t, []uint64{localstatequery.AcquireFailurePointTooOld}, reasons)
	assert.Equal(t, localstatequery.StateIdle, client.State())
	assert.Equal(t, 0, client.Pending())
	assert.Len(t, sender.Segments(), 1)
}

func TestClientResetDropsQueries(t *testing.T) {
	client := localstatequery.NewClient(nil)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.Query(localstatequery.NewChainPointQuery()))
	require.NoError(t, client.Query(localstatequery.NewChainBlockNoQuery()))
	receive(t, client, localstatequery.NewMsgAcquired())
	assert.Equal(t, localstatequery.StateQuerying, client.State())
	sent := len(sender.Segments())
	client.Reset()
	client.Reset()
	assert.Equal(t, localstatequery.StateIdle, client.State())
	assert.Equal(t, 0, client.Pending())
	require.NoError(t, client.SendNextMessage())
	assert.Len(t, sender.Segments(), sent)
}

func TestClientRejectsNonArrayQuery(t *testing.T) {
	client := localstatequery.NewClient(nil)
	assert.Error(t, client.Query(cbor.RawMessage{0x01}))
	assert.Equal(t, 0, client.Pending())
}

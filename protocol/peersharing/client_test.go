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

package peersharing_test

import (
	"encoding/hex"
	"net"
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/internal/test"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/peersharing"
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

func TestClientRequestPeers(t *testing.T) {
	var shared []string
	cfg := peersharing.NewConfig(
		peersharing.WithSharePeersFunc(
			func(_ peersharing.CallbackContext, peers []peersharing.PeerAddress) error {
				for _, peer := range peers {
					shared = append(shared, peer.String())
				}
				return nil
			},
		),
	)
	client := peersharing.NewClient(&cfg)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.RequestPeers(5))
	require.NoError(t, client.RequestPeers(2))
	assert.Equal(t, peersharing.StateBusy, client.State())
	assert.Equal(t, "820005", hex.EncodeToString(sender.Last().Payload))
	receive(
		t,
		client,
		peersharing.NewMsgSharePeers(
			[]peersharing.PeerAddress{
				{IP: net.IPv4(10, 0, 0, 1).To4(), Port: 3001},
			},
		),
	)
	// The second request goes out once the first is answered
	assert.Equal(t, "820002", hex.EncodeToString(sender.Last().Payload))
	receive(t, client, peersharing.NewMsgSharePeers(nil))
	assert.Equal(t, []string{"10.0.0.1:3001"}, shared)
	client.MarkDone()
	require.NoError(t, client.SendNextMessage())
	assert.True(t, client.IsDone())
	assert.Equal(t, "8102", hex.EncodeToString(sender.Last().Payload))
	assert.Len(t, sender.Segments(), 3)
}

func TestClientRequestBeforeAttach(t *testing.T) {
	client := peersharing.NewClient(nil)
	require.NoError(t, client.RequestPeers(5))
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.SendNextMessage())
	assert.Equal(t, "820005", hex.EncodeToString(sender.Last().Payload))
}

func TestClientResetDropsRequests(t *testing.T) {
	client := peersharing.NewClient(nil)
	sender := &test.Sender{}
	client.Attach(sender)
	require.NoError(t, client.RequestPeers(5))
	require.NoError(t, client.RequestPeers(2))
	assert.Equal(t, 1, client.Pending())
	client.MarkDone()
	client.Reset()
	client.Reset()
	assert.Equal(t, peersharing.StateIdle, client.State())
	assert.Equal(t, 0, client.Pending())
	require.NoError(t, client.SendNextMessage())
	assert.Len(t, sender.Segments(), 1)
}

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

package protocol_test

import (
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/internal/test"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/blockfetch"
	"github.com/blinklabs-io/ouroboros-agent/protocol/chainsync"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
	"github.com/blinklabs-io/ouroboros-agent/protocol/keepalive"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localstatequery"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxmonitor"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxsubmission"
	"github.com/blinklabs-io/ouroboros-agent/protocol/peersharing"
	"github.com/blinklabs-io/ouroboros-agent/protocol/txsubmission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type anyMessage struct {
	protocol.MessageBase
}

// Every message type used by any protocol, plus some that none use
func allMessages() []protocol.Message {
	var ret []protocol.Message
	for i := range 16 {
		ret = append(
			ret,
			// #nosec G115
			&anyMessage{MessageBase: protocol.MessageBase{MessageType: uint8(i)}},
		)
	}
	return ret
}

func checkStateMachine[S protocol.State[S]](t *testing.T, states []S, done S) {
	t.Helper()
	for _, state := range states {
		client := state.HasAgency(true)
		server := state.HasAgency(false)
		if state == done {
			assert.False(t, client || server, "state %s: done state has agency", state)
			continue
		}
		assert.True(t, client != server, "state %s: exactly one side must have agency", state)
		assert.NotEqual(t, "Unknown", state.String())
	}
	for _, msg := range allMessages() {
		assert.Equal(t, done, done.NextState(msg), "message type %d left the done state", msg.Type())
	}
}

func TestStateMachines(t *testing.T) {
	t.Run("handshake", func(t *testing.T) {
		checkStateMachine(
			t,
			[]handshake.State{handshake.StatePropose, handshake.StateConfirm, handshake.StateDone},
			handshake.StateDone,
		)
	})
	t.Run("chain-sync", func(t *testing.T) {
		checkStateMachine(
			t,
			[]chainsync.State{
				chainsync.StateIdle,
				chainsync.StateCanAwait,
				chainsync.StateMustReply,
				chainsync.StateIntersect,
				chainsync.StateDone,
			},
			chainsync.StateDone,
		)
	})
	t.Run("block-fetch", func(t *testing.T) {
		checkStateMachine(
			t,
			[]blockfetch.State{
				blockfetch.StateIdle,
				blockfetch.StateBusy,
				blockfetch.StateStreaming,
				blockfetch.StateDone,
			},
			blockfetch.StateDone,
		)
	})
	t.Run("tx-submission", func(t *testing.T) {
		checkStateMachine(
			t,
			[]txsubmission.State{
				txsubmission.StateInit,
				txsubmission.StateIdle,
				txsubmission.StateTxIdsBlocking,
				txsubmission.StateTxIdsNonBlocking,
				txsubmission.StateTxs,
				txsubmission.StateDone,
			},
			txsubmission.StateDone,
		)
	})
	t.Run("local-tx-submission", func(t *testing.T) {
		checkStateMachine(
			t,
			[]localtxsubmission.State{
				localtxsubmission.StateIdle,
				localtxsubmission.StateBusy,
				localtxsubmission.StateDone,
			},
			localtxsubmission.StateDone,
		)
	})
	t.Run("local-state-query", func(t *testing.T) {
		checkStateMachine(
			t,
			[]localstatequery.State{
				localstatequery.StateIdle,
				localstatequery.StateAcquiring,
				localstatequery.StateAcquired,
				localstatequery.StateQuerying,
				localstatequery.StateDone,
			},
			localstatequery.StateDone,
		)
	})
	t.Run("keep-alive", func(t *testing.T) {
		checkStateMachine(
			t,
			[]keepalive.State{keepalive.StateClient, keepalive.StateServer, keepalive.StateDone},
			keepalive.StateDone,
		)
	})
	t.Run("local-tx-monitor", func(t *testing.T) {
		checkStateMachine(
			t,
			[]localtxmonitor.State{
				localtxmonitor.StateIdle,
				localtxmonitor.StateAcquiring,
				localtxmonitor.StateAcquired,
				localtxmonitor.StateBusy,
				localtxmonitor.StateDone,
			},
			localtxmonitor.StateDone,
		)
	})
	t.Run("peer-sharing", func(t *testing.T) {
		checkStateMachine(
			t,
			[]peersharing.State{peersharing.StateIdle, peersharing.StateBusy, peersharing.StateDone},
			peersharing.StateDone,
		)
	})
}

func TestClientsResetIdempotent(t *testing.T) {
	drivers := []protocol.Driver{
		handshake.NewClient(nil),
		chainsync.NewClient(nil),
		blockfetch.NewClient(nil),
		txsubmission.NewClient(nil),
		localtxsubmission.NewClient(nil),
		localstatequery.NewClient(nil),
		keepalive.NewClient(nil),
		localtxmonitor.NewClient(nil),
		peersharing.NewClient(nil),
	}
	ids := map[uint16]string{}
	for _, driver := range drivers {
		if other, ok := ids[driver.ProtocolId()]; ok {
			t.Fatalf("protocol id %d used by %s and %s", driver.ProtocolId(), other, driver.Name())
		}
		ids[driver.ProtocolId()] = driver.Name()
		assert.Equal(t, protocol.RoleClient, driver.Role())
		driver.Reset()
		hasAgency := driver.HasAgency()
		driver.Reset()
		assert.Equal(t, hasAgency, driver.HasAgency(), driver.Name())
		assert.False(t, driver.IsDone(), driver.Name())
		// Every client starts with agency
		assert.True(t, hasAgency, driver.Name())
	}
}

type queuingClient interface {
	protocol.Driver
	Pending() int
}

func TestClientsResetClearsQueues(t *testing.T) {
	txCbor := test.DecodeHexString("82a10001a0")
	point := common.NewPoint(1, []byte{0x01})
	blockFetch := blockfetch.NewClient(nil)
	txSubmission := txsubmission.NewClient(nil)
	localTxSubmission := localtxsubmission.NewClient(nil)
	localStateQuery := localstatequery.NewClient(nil)
	localTxMonitor := localtxmonitor.NewClient(nil)
	peerSharing := peersharing.NewClient(nil)
	require.NoError(t, blockFetch.RequestRange(point, point))
	require.NoError(t, blockFetch.GetBlock(point))
	_, err := txSubmission.AddTx(6, txCbor)
	require.NoError(t, err)
	_, err = localTxSubmission.SubmitTx(6, txCbor)
	require.NoError(t, err)
	_, err = localTxSubmission.SubmitTx(6, txCbor)
	require.NoError(t, err)
	require.NoError(t, localStateQuery.Query(localstatequery.NewChainPointQuery()))
	require.NoError(t, localTxMonitor.GetSizes())
	require.NoError(t, localTxMonitor.NextTx())
	require.NoError(t, peerSharing.RequestPeers(5))
	clients := []queuingClient{
		blockFetch,
		txSubmission,
		localTxSubmission,
		localStateQuery,
		localTxMonitor,
		peerSharing,
	}
	for _, client := range clients {
		require.NotZero(t, client.Pending(), client.Name())
		initial := client.HasAgency()
		for range 3 {
			client.Reset()
			assert.Equal(t, 0, client.Pending(), client.Name())
			assert.Equal(t, initial, client.HasAgency(), client.Name())
			assert.False(t, client.IsDone(), client.Name())
		}
	}
}

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

package ouroboros

import (
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/protocol/blockfetch"
	"github.com/blinklabs-io/ouroboros-agent/protocol/chainsync"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
	"github.com/blinklabs-io/ouroboros-agent/protocol/keepalive"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localstatequery"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxmonitor"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxsubmission"
	"github.com/blinklabs-io/ouroboros-agent/protocol/peersharing"
	"github.com/blinklabs-io/ouroboros-agent/protocol/txsubmission"
)

// Protocol IDs assigned by the node network. Agents accept an override with
// protocol.WithProtocolId
const (
	ProtocolIdHandshake         = handshake.ProtocolId
	ProtocolIdChainSyncNtN      = chainsync.ProtocolIdNtN
	ProtocolIdBlockFetch        = blockfetch.ProtocolId
	ProtocolIdTxSubmission      = txsubmission.ProtocolId
	ProtocolIdChainSyncNtC      = chainsync.ProtocolIdNtC
	ProtocolIdLocalTxSubmission = localtxsubmission.ProtocolId
	ProtocolIdLocalStateQuery   = localstatequery.ProtocolId
	ProtocolIdKeepAlive         = keepalive.ProtocolId
	ProtocolIdLocalTxMonitor    = localtxmonitor.ProtocolId
	ProtocolIdPeerSharing       = peersharing.ProtocolId
)

var protocolNames = map[uint16]string{
	ProtocolIdHandshake:         handshake.ProtocolName,
	ProtocolIdChainSyncNtN:      chainsync.ProtocolName + " (node-to-node)",
	ProtocolIdBlockFetch:        blockfetch.ProtocolName,
	ProtocolIdTxSubmission:      txsubmission.ProtocolName,
	ProtocolIdChainSyncNtC:      chainsync.ProtocolName + " (node-to-client)",
	ProtocolIdLocalTxSubmission: localtxsubmission.ProtocolName,
	ProtocolIdLocalStateQuery:   localstatequery.ProtocolName,
	ProtocolIdKeepAlive:         keepalive.ProtocolName,
	ProtocolIdLocalTxMonitor:    localtxmonitor.ProtocolName,
	ProtocolIdPeerSharing:       peersharing.ProtocolName,
}

// ProtocolName returns the name of the protocol assigned the specified ID
func ProtocolName(protocolId uint16) string {
	if name, ok := protocolNames[protocolId]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", protocolId)
}

// ProtocolEnabled returns whether the negotiated version enables the protocol with the
// specified ID. Protocols that every version of the mode carries are always enabled
func ProtocolEnabled(version uint16, protocolId uint16) bool {
	features, ok := handshake.GetProtocolVersion(version)
	if !ok {
		return false
	}
	switch protocolId {
	case ProtocolIdLocalStateQuery:
		return features.EnableLocalQueryProtocol
	case ProtocolIdLocalTxMonitor:
		return features.EnableLocalTxMonitorProtocol
	case ProtocolIdKeepAlive:
		return features.EnableKeepAliveProtocol
	case ProtocolIdPeerSharing:
		return features.EnablePeerSharingProtocol
	}
	return true
}

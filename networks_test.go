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

package ouroboros_test

import (
	"testing"

	ouroboros "github.com/blinklabs-io/ouroboros-agent"
	"github.com/stretchr/testify/assert"
)

func TestNetworkLookup(t *testing.T) {
	assert.Equal(t, ouroboros.NetworkPreview, ouroboros.NetworkByName("Preview"))
	assert.Equal(t, ouroboros.NetworkMainnet, ouroboros.NetworkByNetworkMagic(764824073))
	assert.Equal(t, ouroboros.NetworkInvalid, ouroboros.NetworkByName("nonexistent"))
	assert.False(t, ouroboros.NetworkInvalid.Valid())
	assert.True(t, ouroboros.NetworkPreprod.Valid())
	assert.Equal(t, "backbone.cardano.iog.io:3001", ouroboros.NetworkMainnet.PublicRoot())
	assert.Empty(t, ouroboros.NetworkInvalid.PublicRoot())
	assert.Len(t, ouroboros.Networks(), 4)
}

func TestProtocolName(t *testing.T) {
	assert.Equal(t, "handshake", ouroboros.ProtocolName(ouroboros.ProtocolIdHandshake))
	assert.Equal(t, "unknown (42)", ouroboros.ProtocolName(42))
}

func TestProtocolEnabled(t *testing.T) {
	// NtC 20 carries the local query protocols
	assert.True(t, ouroboros.ProtocolEnabled(32788, ouroboros.ProtocolIdLocalStateQuery))
	assert.True(t, ouroboros.ProtocolEnabled(32788, ouroboros.ProtocolIdChainSyncNtC))
	assert.False(t, ouroboros.ProtocolEnabled(14, ouroboros.ProtocolIdLocalTxMonitor))
	assert.True(t, ouroboros.ProtocolEnabled(14, ouroboros.ProtocolIdPeerSharing))
	assert.False(t, ouroboros.ProtocolEnabled(1, ouroboros.ProtocolIdBlockFetch))
}

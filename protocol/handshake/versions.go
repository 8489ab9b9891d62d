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
	"slices"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
)

// The NtC protocol versions have the 15th bit set in the handshake
const ProtocolVersionNtCFlag = 0x8000

// Peer sharing modes
const (
	PeerSharingModeNoPeerSharing     = 0
	PeerSharingModePeerSharingPublic = 1
)

// VersionData is the version-specific parameter data exchanged in the handshake
type VersionData interface {
	NetworkMagic() uint32
	InitiatorOnly() bool
	PeerSharing() bool
	Query() bool
}

type NewVersionDataFromCborFunc func([]byte) (VersionData, error)

// VersionDataNtN11andUp is the version data for node-to-node versions 11 and later
type VersionDataNtN11andUp struct {
	cbor.StructAsArray
	CborNetworkMagic  uint32
	CborInitiatorOnly bool
	CborPeerSharing   uint
	CborQuery         bool
}

func NewVersionDataNtN11andUpFromCbor(cborData []byte) (VersionData, error) {
	var v VersionDataNtN11andUp
	_, err := cbor.Decode(cborData, &v)
	return v, err
}

func (v VersionDataNtN11andUp) NetworkMagic() uint32 {
	return v.CborNetworkMagic
}

func (v VersionDataNtN11andUp) InitiatorOnly() bool {
	return v.CborInitiatorOnly
}

func (v VersionDataNtN11andUp) PeerSharing() bool {
	return v.CborPeerSharing >= PeerSharingModePeerSharingPublic
}

func (v VersionDataNtN11andUp) Query() bool {
	return v.CborQuery
}

// VersionDataNtC15andUp is the version data for node-to-client versions 15 and later
type VersionDataNtC15andUp struct {
	cbor.StructAsArray
	CborNetworkMagic uint32
	CborQuery        bool
}

func NewVersionDataNtC15andUpFromCbor(cborData []byte) (VersionData, error) {
	var v VersionDataNtC15andUp
	_, err := cbor.Decode(cborData, &v)
	return v, err
}

func (v VersionDataNtC15andUp) NetworkMagic() uint32 {
	return v.CborNetworkMagic
}

func (v VersionDataNtC15andUp) InitiatorOnly() bool {
	return true
}

func (v VersionDataNtC15andUp) PeerSharing() bool {
	return false
}

func (v VersionDataNtC15andUp) Query() bool {
	return v.CborQuery
}

// ProtocolVersion describes the features enabled by a protocol version
type ProtocolVersion struct {
	NewVersionDataFromCborFunc NewVersionDataFromCborFunc
	// NtC only
	EnableLocalQueryProtocol     bool
	EnableLocalTxMonitorProtocol bool
	// NtN only
	EnableKeepAliveProtocol   bool
	EnablePeerSharingProtocol bool
}

var protocolVersions = map[uint16]ProtocolVersion{
	// NtC protocol versions
	//
	// We don't bother supporting NtC protocol versions before 16 (when Conway was enabled)
	(16 + ProtocolVersionNtCFlag): {
		NewVersionDataFromCborFunc:   NewVersionDataNtC15andUpFromCbor,
		EnableLocalQueryProtocol:     true,
		EnableLocalTxMonitorProtocol: true,
	},
	(17 + ProtocolVersionNtCFlag): {
		NewVersionDataFromCborFunc:   NewVersionDataNtC15andUpFromCbor,
		EnableLocalQueryProtocol:     true,
		EnableLocalTxMonitorProtocol: true,
	},
	(18 + ProtocolVersionNtCFlag): {
		NewVersionDataFromCborFunc:   NewVersionDataNtC15andUpFromCbor,
		EnableLocalQueryProtocol:     true,
		EnableLocalTxMonitorProtocol: true,
	},
	(19 + ProtocolVersionNtCFlag): {
		NewVersionDataFromCborFunc:   NewVersionDataNtC15andUpFromCbor,
		EnableLocalQueryProtocol:     true,
		EnableLocalTxMonitorProtocol: true,
	},
	(20 + ProtocolVersionNtCFlag): {
		NewVersionDataFromCborFunc:   NewVersionDataNtC15andUpFromCbor,
		EnableLocalQueryProtocol:     true,
		EnableLocalTxMonitorProtocol: true,
	},

	// NtN versions
	//
	// We don't bother supporting NtN protocol versions before 11 (when peer sharing was added)
	11: {
		NewVersionDataFromCborFunc: NewVersionDataNtN11andUpFromCbor,
		EnableKeepAliveProtocol:    true,
		EnablePeerSharingProtocol:  true,
	},
	12: {
		NewVersionDataFromCborFunc: NewVersionDataNtN11andUpFromCbor,
		EnableKeepAliveProtocol:    true,
		EnablePeerSharingProtocol:  true,
	},
	13: {
		NewVersionDataFromCborFunc: NewVersionDataNtN11andUpFromCbor,
		EnableKeepAliveProtocol:    true,
		EnablePeerSharingProtocol:  true,
	},
	14: {
		NewVersionDataFromCborFunc: NewVersionDataNtN11andUpFromCbor,
		EnableKeepAliveProtocol:    true,
		EnablePeerSharingProtocol:  true,
	},
}

// GetProtocolVersion returns the feature set for the specified protocol version
func GetProtocolVersion(version uint16) (ProtocolVersion, bool) {
	v, ok := protocolVersions[version]
	return v, ok
}

// IsNodeToClientVersion returns whether the version number is a node-to-client version
func IsNodeToClientVersion(version uint16) bool {
	return version&ProtocolVersionNtCFlag > 0
}

// NewVersionDataFromCbor decodes the version data for the specified protocol version
func NewVersionDataFromCbor(version uint16, cborData []byte) (VersionData, error) {
	v, ok := protocolVersions[version]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported protocol version %d", ProtocolName, version)
	}
	return v.NewVersionDataFromCborFunc(cborData)
}

// ProtocolVersionMap maps protocol versions to their version data
type ProtocolVersionMap map[uint16]VersionData

// GetProtocolVersionMap returns the version map to propose for the specified mode
func GetProtocolVersionMap(
	nodeToNode bool,
	networkMagic uint32,
	initiatorOnly bool,
	peerSharing bool,
	query bool,
) ProtocolVersionMap {
	ret := ProtocolVersionMap{}
	for version := range protocolVersions {
		if nodeToNode == IsNodeToClientVersion(version) {
			continue
		}
		if nodeToNode {
			peerSharingMode := uint(PeerSharingModeNoPeerSharing)
			if peerSharing {
				peerSharingMode = PeerSharingModePeerSharingPublic
			}
			ret[version] = VersionDataNtN11andUp{
				CborNetworkMagic:  networkMagic,
				CborInitiatorOnly: initiatorOnly,
				CborPeerSharing:   peerSharingMode,
				CborQuery:         query,
			}
		} else {
			ret[version] = VersionDataNtC15andUp{
				CborNetworkMagic: networkMagic,
				CborQuery:        query,
			}
		}
	}
	return ret
}

// Versions returns the version numbers in the map, highest first
func (m ProtocolVersionMap) Versions() []uint16 {
	ret := make([]uint16, 0, len(m))
	for version := range m {
		ret = append(ret, version)
	}
	slices.Sort(ret)
	slices.Reverse(ret)
	return ret
}

// toCbor returns the map with each version data encoded to CBOR
func (m ProtocolVersionMap) toCbor() (map[uint16]cbor.RawMessage, error) {
	ret := make(map[uint16]cbor.RawMessage, len(m))
	for version, data := range m {
		tmp, err := cbor.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode version data for version %d: %w", ProtocolName, version, err)
		}
		ret[version] = tmp
	}
	return ret, nil
}

// protocolVersionMapFromCbor decodes the version data for each known version in the
// map. Unknown versions are skipped
func protocolVersionMapFromCbor(versionMap map[uint16]cbor.RawMessage) ProtocolVersionMap {
	ret := ProtocolVersionMap{}
	for version, data := range versionMap {
		versionData, err := NewVersionDataFromCbor(version, data)
		if err != nil {
			continue
		}
		ret[version] = versionData
	}
	return ret
}

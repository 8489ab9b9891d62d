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
	"net"
	"strconv"
	"strings"
)

// Network ID values used in addresses
const (
	NetworkIdTestnet uint8 = 0
	NetworkIdMainnet uint8 = 1
)

// Network definitions
var (
	NetworkMainnet = Network{
		Id:                NetworkIdMainnet,
		Name:              "mainnet",
		NetworkMagic:      764824073,
		PublicRootAddress: "backbone.cardano.iog.io",
		PublicRootPort:    3001,
	}
	NetworkPreprod = Network{
		Id:                NetworkIdTestnet,
		Name:              "preprod",
		NetworkMagic:      1,
		PublicRootAddress: "preprod-node.play.dev.cardano.org",
		PublicRootPort:    3001,
	}
	NetworkPreview = Network{
		Id:                NetworkIdTestnet,
		Name:              "preview",
		NetworkMagic:      2,
		PublicRootAddress: "preview-node.play.dev.cardano.org",
		PublicRootPort:    3001,
	}
	NetworkSancho = Network{
		Id:                NetworkIdTestnet,
		Name:              "sanchonet",
		NetworkMagic:      4,
		PublicRootAddress: "sanchonet-node.play.dev.cardano.org",
		PublicRootPort:    3001,
	}

	// NetworkInvalid is returned by the lookup functions when a network isn't found
	NetworkInvalid = Network{
		Name: "invalid",
	}
)

var networks = []Network{
	NetworkMainnet,
	NetworkPreprod,
	NetworkPreview,
	NetworkSancho,
}

// Networks returns the predefined networks
func Networks() []Network {
	ret := make([]Network, len(networks))
	copy(ret, networks)
	return ret
}

// NetworkByName returns a predefined network by name. The match is case-insensitive
func NetworkByName(name string) Network {
	for _, network := range networks {
		if strings.EqualFold(network.Name, name) {
			return network
		}
	}
	return NetworkInvalid
}

// NetworkByNetworkMagic returns a predefined network by network magic
func NetworkByNetworkMagic(networkMagic uint32) Network {
	for _, network := range networks {
		if network.NetworkMagic == networkMagic {
			return network
		}
	}
	return NetworkInvalid
}

// Network represents a Cardano network
type Network struct {
	Id                uint8 // network ID used for addresses
	Name              string
	NetworkMagic      uint32
	PublicRootAddress string
	PublicRootPort    uint
}

func (n Network) String() string {
	return n.Name
}

// Valid returns whether the network has a usable network magic
func (n Network) Valid() bool {
	return n.NetworkMagic != 0
}

// PublicRoot returns the host:port of the network's public relay, or an empty string
func (n Network) PublicRoot() string {
	if n.PublicRootAddress == "" {
		return ""
	}
	return net.JoinHostPort(
		n.PublicRootAddress,
		strconv.FormatUint(uint64(n.PublicRootPort), 10),
	)
}

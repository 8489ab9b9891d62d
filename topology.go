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
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
)

// TopologyConfig is a Cardano node topology file. Both the legacy producer list and the
// P2P root sets are supported
type TopologyConfig struct {
	Producers          []TopologyConfigLegacyProducer `json:"Producers"`
	LocalRoots         []TopologyConfigP2PRoot        `json:"localRoots"`
	PublicRoots        []TopologyConfigP2PRoot        `json:"publicRoots"`
	UseLedgerAfterSlot int64                          `json:"useLedgerAfterSlot"`
}

type TopologyConfigLegacyProducer struct {
	Address string `json:"addr"`
	Port    uint16 `json:"port"`
	Valency uint   `json:"valency"`
}

type TopologyConfigP2PAccessPoint struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

type TopologyConfigP2PRoot struct {
	AccessPoints []TopologyConfigP2PAccessPoint `json:"accessPoints"`
	Advertise    bool                           `json:"advertise"`
	Valency      uint                           `json:"valency"`
}

// NewTopologyConfigFromFile loads a topology file
func NewTopologyConfigFromFile(path string) (*TopologyConfig, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()
	return NewTopologyConfigFromReader(dataFile)
}

// NewTopologyConfigFromReader decodes a topology file from r
func NewTopologyConfigFromReader(r io.Reader) (*TopologyConfig, error) {
	t := &TopologyConfig{}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	return t, nil
}

// Addresses returns the host:port of every peer in the topology, local roots first,
// without duplicates
func (t *TopologyConfig) Addresses() []string {
	var ret []string
	seen := make(map[string]bool)
	add := func(host string, port uint16) {
		if host == "" {
			return
		}
		addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
		if seen[addr] {
			return
		}
		seen[addr] = true
		ret = append(ret, addr)
	}
	for _, root := range t.LocalRoots {
		for _, ap := range root.AccessPoints {
			add(ap.Address, ap.Port)
		}
	}
	for _, root := range t.PublicRoots {
		for _, ap := range root.AccessPoints {
			add(ap.Address, ap.Port)
		}
	}
	for _, producer := range t.Producers {
		add(producer.Address, producer.Port)
	}
	return ret
}

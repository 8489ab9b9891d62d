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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/internal/test"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "6e2d8ae1d1b62c8dfb6e1ff4f5e0cc0e4b7d1f5df8ccec3f0ef8e4a8b1a1d0c2"

func TestParsePoint(t *testing.T) {
	point, err := parsePoint("origin")
	require.NoError(t, err)
	assert.True(t, point.IsOrigin())
	point, err = parsePoint("1234." + testHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), point.Slot)
	assert.Equal(t, test.DecodeHexString(testHash), point.Hash)
	for _, value := range []string{"1234", "abc." + testHash, "1234.zz", "1234.abcd"} {
		_, err := parsePoint(value)
		assert.Error(t, err, value)
	}
}

func TestDecodeTx(t *testing.T) {
	expected := test.DecodeHexString("84a0a0f5f6")
	testDefs := []struct {
		name  string
		input []byte
	}{
		{name: "Raw", input: expected},
		{name: "Hex", input: []byte("84a0a0f5f6\n")},
		{
			name:  "TextEnvelope",
			input: []byte(`{"type": "Tx ConwayEra", "description": "", "cborHex": "84a0a0f5f6"}`),
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			tx, err := decodeTx(testDef.input)
			require.NoError(t, err)
			assert.Equal(t, expected, tx)
		})
	}
	_, err := decodeTx([]byte("  "))
	assert.Error(t, err)
	_, err = decodeTx([]byte(`{"type": "Tx"}`))
	assert.Error(t, err)
}

func TestReadTxFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.signed")
	require.NoError(t, os.WriteFile(path, []byte("84a0a0f5f6"), 0o600))
	tx, err := readTxFile(path)
	require.NoError(t, err)
	assert.Equal(t, test.DecodeHexString("84a0a0f5f6"), tx)
}

func TestParseTxId(t *testing.T) {
	txId, err := parseTxId(testHash)
	require.NoError(t, err)
	assert.Equal(t, testHash, txId.String())
	_, err = parseTxId("abcd")
	assert.Error(t, err)
}

func TestResolveTarget(t *testing.T) {
	topologyPath := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(
		topologyPath,
		[]byte(`{"Producers": [{"addr": "relay.example", "port": 3001}]}`),
		0o600,
	))
	testDefs := []struct {
		name       string
		flags      globalFlags
		nodeToNode bool
		expected   target
		wantErr    bool
	}{
		{
			name:     "Socket",
			flags:    globalFlags{socket: "/run/node.socket", network: "preview"},
			expected: target{network: "unix", address: "/run/node.socket", networkMagic: 2},
		},
		{
			name:       "AddressWithMagic",
			flags:      globalFlags{address: "localhost:3001", network: "preview", networkMagic: 42},
			nodeToNode: true,
			expected:   target{network: "tcp", address: "localhost:3001", networkMagic: 42},
		},
		{
			name:       "Topology",
			flags:      globalFlags{topology: topologyPath, network: "mainnet"},
			nodeToNode: true,
			expected:   target{network: "tcp", address: "relay.example:3001", networkMagic: 764824073},
		},
		{
			name:       "PublicRoot",
			flags:      globalFlags{network: "preprod"},
			nodeToNode: true,
			expected:   target{network: "tcp", address: "preprod-node.play.dev.cardano.org:3001", networkMagic: 1},
		},
		{
			name:    "NoAddress",
			flags:   globalFlags{network: "preview"},
			wantErr: true,
		},
		{
			name:       "SocketNodeToNode",
			flags:      globalFlags{socket: "/run/node.socket", network: "preview"},
			nodeToNode: true,
			wantErr:    true,
		},
		{
			name:    "UnknownNetwork",
			flags:   globalFlags{socket: "/run/node.socket", network: "nonexistent"},
			wantErr: true,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			ret, err := testDef.flags.resolveTarget(testDef.nodeToNode)
			if testDef.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testDef.expected, ret)
		})
	}
}

func TestResolveTargetListsNetworks(t *testing.T) {
	flags := globalFlags{socket: "/run/node.socket", network: "nonexistent"}
	_, err := flags.resolveTarget(false)
	require.Error(t, err)
	for _, name := range []string{"mainnet", "preprod", "preview"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, pterm.LogLevelWarn, level)
	_, err = parseLogLevel("verbose")
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	rootCmd := newRootCmd()
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(
		t,
		names,
		[]string{"chain-sync", "fetch", "submit-tx", "query", "mempool", "peers", "ping", "version"},
	)
	queryCmd, _, err := rootCmd.Find([]string{"query", "epoch"})
	require.NoError(t, err)
	assert.Equal(t, "epoch", queryCmd.Name())
}

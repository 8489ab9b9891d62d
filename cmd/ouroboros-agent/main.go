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

// ouroboros-agent is a command line client for Cardano nodes
package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Version information set at build time
var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	socket           string
	address          string
	useTls           bool
	ntn              bool
	network          string
	networkMagic     uint32
	topology         string
	retries          int
	retryDelay       time.Duration
	handshakeTimeout time.Duration
	reconnect        bool
	logLevel         string
	metricsAddr      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "ouroboros-agent",
		Short: "Talk to a Cardano node over the Ouroboros mini-protocols",
		Long: `ouroboros-agent connects to a Cardano node over a UNIX socket (node-to-client)
or TCP (node-to-node), negotiates a protocol version, and runs one of the
mini-protocols against it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(flags.logLevel)
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.socket, "socket", "", "UNIX socket path to connect to")
	pf.StringVar(&flags.address, "address", "", "TCP address to connect to in host:port format")
	pf.BoolVar(&flags.useTls, "tls", false, "enable TLS for TCP connections")
	pf.BoolVar(&flags.ntn, "ntn", false, "use node-to-node protocols (defaults to node-to-client)")
	pf.StringVar(
		&flags.network,
		"network",
		"preview",
		"named network the node participates in ("+strings.Join(networkNames(), ", ")+")",
	)
	pf.Uint32Var(&flags.networkMagic, "network-magic", 0, "network magic, overrides --network")
	pf.StringVar(&flags.topology, "topology", "", "topology file to pick a node-to-node peer from")
	pf.IntVar(&flags.retries, "retries", 3, "maximum connection attempts (0 retries forever)")
	pf.DurationVar(&flags.retryDelay, "retry-delay", 2*time.Second, "delay between connection attempts")
	pf.DurationVar(&flags.handshakeTimeout, "handshake-timeout", 10*time.Second, "handshake timeout (0 disables)")
	pf.BoolVar(&flags.reconnect, "reconnect", false, "reconnect when an established connection is lost")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(
		chainSyncCmd(flags),
		fetchCmd(flags),
		submitTxCmd(flags),
		queryCmd(flags),
		mempoolCmd(flags),
		peersCmd(flags),
		pingCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ouroboros-agent %s (commit %s, %s %s/%s)\n",
				version,
				commit,
				runtime.Version(),
				runtime.GOOS,
				runtime.GOARCH,
			)
		},
	}
}

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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ouroboros "github.com/blinklabs-io/ouroboros-agent"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
)

var errNoAddress = errors.New("one of --socket, --address or --topology is required")

func networkNames() []string {
	networks := ouroboros.Networks()
	ret := make([]string, 0, len(networks))
	for _, network := range networks {
		ret = append(ret, network.Name)
	}
	return ret
}

// target is a resolved node address and network magic
type target struct {
	network      string
	address      string
	networkMagic uint32
}

// resolveTarget works out where to connect. Node-to-node connections fall back to the
// topology file and then to the network's public root
func (f *globalFlags) resolveTarget(nodeToNode bool) (target, error) {
	ret := target{
		networkMagic: f.networkMagic,
	}
	network := ouroboros.NetworkByName(f.network)
	if ret.networkMagic == 0 {
		if !network.Valid() {
			return ret, fmt.Errorf(
				"unknown network %q (known networks: %s)",
				f.network,
				strings.Join(networkNames(), ", "),
			)
		}
		ret.networkMagic = network.NetworkMagic
	}
	switch {
	case f.socket != "":
		if nodeToNode {
			return ret, errors.New("node-to-node protocols require a TCP address")
		}
		ret.network = "unix"
		ret.address = f.socket
	case f.address != "":
		ret.network = "tcp"
		ret.address = f.address
	case f.topology != "" && nodeToNode:
		topology, err := ouroboros.NewTopologyConfigFromFile(f.topology)
		if err != nil {
			return ret, err
		}
		addresses := topology.Addresses()
		if len(addresses) == 0 {
			return ret, fmt.Errorf("no peers found in topology file %s", f.topology)
		}
		ret.network = "tcp"
		ret.address = addresses[0]
	case nodeToNode && network.PublicRoot() != "" && f.networkMagic == 0:
		ret.network = "tcp"
		ret.address = network.PublicRoot()
	default:
		return ret, errNoAddress
	}
	return ret, nil
}

// sessionOptions builds the session options shared by all commands. The connected
// function runs after every successful handshake
func (f *globalFlags) sessionOptions(
	nodeToNode bool,
	registry prometheus.Registerer,
	connected func(),
) ([]ouroboros.SessionOptionFunc, error) {
	t, err := f.resolveTarget(nodeToNode)
	if err != nil {
		return nil, err
	}
	options := []ouroboros.SessionOptionFunc{
		ouroboros.WithAddress(t.network, t.address),
		ouroboros.WithNetworkMagic(t.networkMagic),
		ouroboros.WithNodeToNode(nodeToNode),
		ouroboros.WithLogger(logger),
		ouroboros.WithMaxRetryAttempts(f.retries),
		ouroboros.WithRetryDelay(f.retryDelay),
		ouroboros.WithHandshakeTimeout(f.handshakeTimeout),
		ouroboros.WithAutoReconnect(f.reconnect),
		ouroboros.WithConnectedFunc(func(version uint16, versionData handshake.VersionData) {
			pterm.Success.Printfln(
				"connected to %s (protocol version %d, network magic %d)",
				t.address,
				version&^handshake.ProtocolVersionNtCFlag,
				versionData.NetworkMagic(),
			)
			if connected != nil {
				connected()
			}
		}),
	}
	if registry != nil {
		options = append(options, ouroboros.WithMetricsRegistry(registry))
	}
	if f.useTls && t.network == "tcp" {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{},
		}
		options = append(options, ouroboros.WithDialFunc(dialer.DialContext))
	}
	return options, nil
}

// runSession connects with the provided agents and runs until done receives, the
// session closes, or the process is interrupted. Agents start every connection with
// empty queues, so queueWork runs after each handshake to give them their work
func (f *globalFlags) runSession(
	ctx context.Context,
	nodeToNode bool,
	agents []protocol.Driver,
	queueWork func() error,
	done <-chan error,
	extraOptions ...ouroboros.SessionOptionFunc,
) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	var registry *prometheus.Registry
	var registerer prometheus.Registerer
	if f.metricsAddr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = registry
	}
	queueErr := make(chan error, 1)
	connected := func() {
		if queueWork == nil {
			return
		}
		if err := queueWork(); err != nil {
			select {
			case queueErr <- err:
			default:
			}
		}
	}
	options, err := f.sessionOptions(nodeToNode, registerer, connected)
	if err != nil {
		return err
	}
	options = append(options, ouroboros.WithAgents(agents...))
	options = append(options, extraOptions...)
	session, err := ouroboros.NewSession(options...)
	if err != nil {
		return err
	}
	if registry != nil {
		server := newMetricsServer(f.metricsAddr, registry, session)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}
	if err := session.Start(ctx); err != nil {
		return err
	}
	var result error
loop:
	for {
		select {
		case <-ctx.Done():
			pterm.Info.Println("interrupted")
			break loop
		case result = <-done:
			break loop
		case result = <-queueErr:
			break loop
		case err := <-session.ErrorChan():
			logger.Warn("session error", "error", err)
		case <-session.DoneChan():
			break loop
		}
	}
	_ = session.Stop()
	session.Wait()
	if result != nil {
		return result
	}
	return session.Err()
}

func newMetricsServer(addr string, registry *prometheus.Registry, session *ouroboros.Session) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		state := session.State()
		if state != ouroboros.SessionStateActive {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintln(w, state.String())
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

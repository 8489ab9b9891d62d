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
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRetryDelay        = 8 * time.Second
	DefaultMaxRetryAttempts  = 0
	DefaultAddressNetwork    = "tcp"
	defaultStalledThreshold  = 3
	defaultErrorChanCapacity = 10
)

// DialFunc opens the transport for a session
type DialFunc func(ctx context.Context, network string, address string) (net.Conn, error)

// ConnectedFunc is called when a connection has completed the handshake
type ConnectedFunc func(version uint16, versionData handshake.VersionData)

// DisconnectedFunc is called when an active connection is lost. The error is nil when
// the session was stopped
type DisconnectedFunc func(err error)

type sessionConfig struct {
	addressNetwork   string
	address          string
	dialFunc         DialFunc
	networkMagic     uint32
	nodeToNode       bool
	peerSharing      bool
	agents           []protocol.Driver
	handshake        *handshake.Client
	autoReconnect    bool
	retryDelay       time.Duration
	maxRetryAttempts int
	connLogging      bool
	logger           *slog.Logger
	registry         prometheus.Registerer
	tracerProvider   trace.TracerProvider
	connectedFunc    ConnectedFunc
	disconnectedFunc DisconnectedFunc
	handshakeTimeout time.Duration
	stalledThreshold int
}

func newSessionConfig(options ...SessionOptionFunc) sessionConfig {
	c := sessionConfig{
		addressNetwork:   DefaultAddressNetwork,
		autoReconnect:    true,
		retryDelay:       DefaultRetryDelay,
		maxRetryAttempts: DefaultMaxRetryAttempts,
		connLogging:      true,
		stalledThreshold: defaultStalledThreshold,
	}
	for _, option := range options {
		option(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.dialFunc == nil {
		dialer := &net.Dialer{}
		c.dialFunc = dialer.DialContext
	}
	return c
}

// SessionOptionFunc is a type that represents functions that modify the Session config
type SessionOptionFunc func(*sessionConfig)

// WithAddress specifies the network ("tcp" or "unix") and address of the node
func WithAddress(network string, address string) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.addressNetwork = network
		c.address = address
	}
}

// WithDialFunc specifies the function used to open the transport. The default uses
// a [net.Dialer]
func WithDialFunc(dialFunc DialFunc) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.dialFunc = dialFunc
	}
}

// WithNetwork specifies the network
func WithNetwork(network Network) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.networkMagic = network.NetworkMagic
	}
}

// WithNetworkMagic specifies the network magic value
func WithNetworkMagic(networkMagic uint32) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.networkMagic = networkMagic
	}
}

// WithNodeToNode specifies whether to use the node-to-node protocol. The default is to use node-to-client
func WithNodeToNode(nodeToNode bool) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.nodeToNode = nodeToNode
	}
}

// WithPeerSharing specifies whether to advertise peer sharing during a node-to-node handshake
func WithPeerSharing(peerSharing bool) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.peerSharing = peerSharing
	}
}

// WithAgents specifies the mini-protocol agents driven by the session. Each agent must
// use a distinct protocol ID other than the handshake's
func WithAgents(agents ...protocol.Driver) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.agents = append(c.agents, agents...)
	}
}

// WithHandshake specifies the handshake client to use. The default proposes every
// supported version for the configured mode and network magic
func WithHandshake(handshakeClient *handshake.Client) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.handshake = handshakeClient
	}
}

// WithAutoReconnect specifies whether to reconnect when an active connection is lost.
// This is enabled by default
func WithAutoReconnect(autoReconnect bool) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.autoReconnect = autoReconnect
	}
}

// WithRetryDelay specifies the delay between connection attempts
func WithRetryDelay(retryDelay time.Duration) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.retryDelay = retryDelay
	}
}

// WithMaxRetryAttempts specifies the number of consecutive failed connection attempts
// after which the session gives up. Zero means no limit
func WithMaxRetryAttempts(maxRetryAttempts int) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.maxRetryAttempts = maxRetryAttempts
	}
}

// WithConnectionLogging specifies whether connection events are logged by the session, its
// muxer and the default handshake client. This is enabled by default
func WithConnectionLogging(connLogging bool) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.connLogging = connLogging
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// WithMetricsRegistry specifies the Prometheus registerer for session and muxer metrics.
// Metrics are not registered by default
func WithMetricsRegistry(registry prometheus.Registerer) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.registry = registry
	}
}

// WithTracerProvider specifies the OpenTelemetry tracer provider. The global provider is
// used by default
func WithTracerProvider(tracerProvider trace.TracerProvider) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.tracerProvider = tracerProvider
	}
}

// WithConnectedFunc specifies a callback for completed handshakes
func WithConnectedFunc(connectedFunc ConnectedFunc) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.connectedFunc = connectedFunc
	}
}

// WithDisconnectedFunc specifies a callback for lost connections
func WithDisconnectedFunc(disconnectedFunc DisconnectedFunc) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.disconnectedFunc = disconnectedFunc
	}
}

// WithHandshakeTimeout specifies how long to wait for the handshake to complete. Zero
// means no timeout
func WithHandshakeTimeout(timeout time.Duration) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.handshakeTimeout = timeout
	}
}

// WithStalledThreshold specifies the number of consecutive receives an agent may ignore
// before the router reports a desynchronized protocol
func WithStalledThreshold(threshold int) SessionOptionFunc {
	return func(c *sessionConfig) {
		c.stalledThreshold = threshold
	}
}

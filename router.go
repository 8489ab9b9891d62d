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
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/ouroboros-agent/muxer"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

var (
	// ErrDuplicateProtocolId is returned when two agents use the same protocol ID
	ErrDuplicateProtocolId = errors.New("duplicate protocol ID")
)

type stalledReporter interface {
	StalledReceives() int
}

// Router delivers reassembled messages to the agent registered for their protocol ID
type Router struct {
	logger           *slog.Logger
	handshake        protocol.Driver
	agents           map[uint16]protocol.Driver
	stalledThreshold int
	handshakeFunc    func()
}

// NewRouter returns a router for the handshake agent and the application agents
func NewRouter(
	logger *slog.Logger,
	handshakeAgent protocol.Driver,
	agents ...protocol.Driver,
) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		logger:           logger.With("component", "router"),
		handshake:        handshakeAgent,
		agents:           make(map[uint16]protocol.Driver),
		stalledThreshold: defaultStalledThreshold,
	}
	for _, agent := range append([]protocol.Driver{handshakeAgent}, agents...) {
		if agent == nil {
			continue
		}
		if other, ok := r.agents[agent.ProtocolId()]; ok {
			return nil, fmt.Errorf(
				"%w: %d used by %s and %s",
				ErrDuplicateProtocolId,
				agent.ProtocolId(),
				other.Name(),
				agent.Name(),
			)
		}
		r.agents[agent.ProtocolId()] = agent
	}
	return r, nil
}

// ProtocolIds returns the protocol IDs with a registered agent
func (r *Router) ProtocolIds() []uint16 {
	ret := make([]uint16, 0, len(r.agents))
	for protocolId := range r.agents {
		ret = append(ret, protocolId)
	}
	return ret
}

// HandleSegment delivers a reassembled message to its agent and lets the agent send
// any reply. It is called from the muxer read loop
func (r *Router) HandleSegment(segment *muxer.Segment) {
	protocolId := segment.GetProtocolId()
	agent, ok := r.agents[protocolId]
	if !ok {
		r.logger.Warn(
			"received message for unknown protocol",
			"protocol_id", protocolId,
			"length", len(segment.Payload),
		)
		return
	}
	msg, err := agent.DeserializeMessage(segment.Payload)
	if err != nil {
		r.logger.Warn(
			"failed to decode message",
			"protocol", agent.Name(),
			"error", err,
		)
	}
	// A message that could not be decoded is delivered as nil, which does not change state
	agent.ReceiveMessage(msg)
	if stalled, ok := agent.(stalledReporter); ok && r.stalledThreshold > 0 {
		if count := stalled.StalledReceives(); count >= r.stalledThreshold {
			r.logger.Warn(
				"protocol appears desynchronized",
				"protocol", agent.Name(),
				"stalled_receives", count,
			)
		}
	}
	if err := agent.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
		r.logger.Warn(
			"failed to send message",
			"protocol", agent.Name(),
			"error", err,
		)
	}
	if agent == r.handshake && agent.IsDone() && r.handshakeFunc != nil {
		r.handshakeFunc()
	}
}

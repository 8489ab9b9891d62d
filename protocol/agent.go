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

// Package protocol provides the generic engine shared by all mini-protocols: the message
// and state abstractions and the Agent that drives a single mini-protocol over a
// multiplexed connection
package protocol

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/muxer"
)

// Sender writes segments to a connection
type Sender interface {
	Send(*muxer.Segment) error
}

// Driver is the protocol-independent view of an agent used by the session and router
type Driver interface {
	Name() string
	ProtocolId() uint16
	Role() Role
	HasAgency() bool
	IsDone() bool
	SendNextMessage() error
	DeserializeMessage([]byte) (Message, error)
	ReceiveMessage(Message)
	Reset()
	Attach(Sender)
	Detach()
}

// Terminator is implemented by agents that can end their protocol with a Done message.
// MarkDone causes the Done message to be sent at the next opportunity
type Terminator interface {
	MarkDone()
}

// StateChangeFunc is called after every state transition
type StateChangeFunc[S any] func(oldState S, newState S)

// BuildMessageFunc returns the next message to send in the given state, or nil if there
// is nothing to send
type BuildMessageFunc[S any] func(S) Message

// MessageHandlerFunc is called with each received message after the state transition
type MessageHandlerFunc func(Message) error

// AgentConfig holds the protocol-specific parts of an Agent
type AgentConfig[S State[S]] struct {
	Name                string
	ProtocolId          uint16
	Role                Role
	InitialState        S
	DoneState           S
	BuildMessageFunc    BuildMessageFunc[S]
	MessageFromCborFunc MessageFromCborFunc
	MessageHandlerFunc  MessageHandlerFunc
	// ResetFunc clears protocol-specific outbound work
	ResetFunc func()
	// AttachFunc and DetachFunc are called when the agent gains or loses its connection
	AttachFunc func()
	DetachFunc func()
	Logger     *slog.Logger
}

// Agent drives a single mini-protocol. It tracks the current state, decides whether the
// local side may send, builds and sends the next message through the
// protocol-specific builder, and advances state on received messages. All methods are
// safe for concurrent use
type Agent[S State[S]] struct {
	config          AgentConfig[S]
	logger          *slog.Logger
	mutex           sync.Mutex
	state           S
	sender          Sender
	now             func() time.Time
	attachTime      time.Time
	lastTimestamp   uint32
	lastCycle       int64
	stalledReceives int
	listenersMutex  sync.Mutex
	listeners       []StateChangeFunc[S]
}

func NewAgent[S State[S]](config AgentConfig[S]) *Agent[S] {
	if config.Role == RoleNone {
		config.Role = RoleClient
	}
	a := &Agent[S]{
		config: config,
		logger: config.Logger,
		state:  config.InitialState,
		now:    time.Now,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With(
		"component", "protocol",
		"protocol", config.Name,
		"role", config.Role.String(),
	)
	return a
}

func (a *Agent[S]) Name() string {
	return a.config.Name
}

func (a *Agent[S]) ProtocolId() uint16 {
	return a.config.ProtocolId
}

func (a *Agent[S]) Role() Role {
	return a.config.Role
}

// Logger returns the agent's logger
func (a *Agent[S]) Logger() *slog.Logger {
	return a.logger
}

func (a *Agent[S]) isClient() bool {
	return a.config.Role != RoleServer
}

// State returns the current protocol state
func (a *Agent[S]) State() S {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state
}

// HasAgency returns whether the local side may send the next message
func (a *Agent[S]) HasAgency() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state.HasAgency(a.isClient())
}

// IsDone returns whether the protocol has reached its terminal state
func (a *Agent[S]) IsDone() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state == a.config.DoneState
}

// StalledReceives returns the number of consecutive messages received while the peer
// did not hold agency. A growing count indicates the peers are out of sync
func (a *Agent[S]) StalledReceives() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.stalledReceives
}

// AddListener registers a function that is called after every state transition
func (a *Agent[S]) AddListener(listener StateChangeFunc[S]) {
	a.listenersMutex.Lock()
	defer a.listenersMutex.Unlock()
	a.listeners = append(a.listeners, listener)
}

func (a *Agent[S]) notifyListeners(oldState S, newState S) {
	a.listenersMutex.Lock()
	listeners := make([]StateChangeFunc[S], len(a.listeners))
	copy(listeners, a.listeners)
	a.listenersMutex.Unlock()
	for _, listener := range listeners {
		listener(oldState, newState)
	}
}

// Attach connects the agent to a live connection
func (a *Agent[S]) Attach(sender Sender) {
	a.mutex.Lock()
	a.sender = sender
	a.attachTime = a.now()
	a.lastTimestamp = 0
	a.lastCycle = 0
	a.mutex.Unlock()
	if a.config.AttachFunc != nil {
		a.config.AttachFunc()
	}
}

// Detach disconnects the agent from its connection
func (a *Agent[S]) Detach() {
	a.mutex.Lock()
	a.sender = nil
	a.mutex.Unlock()
	if a.config.DetachFunc != nil {
		a.config.DetachFunc()
	}
}

// IsAttached returns whether the agent currently has a live connection
func (a *Agent[S]) IsAttached() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.sender != nil
}

// Reset returns the agent to its initial state and clears any protocol-specific
// outbound work
func (a *Agent[S]) Reset() {
	a.mutex.Lock()
	a.state = a.config.InitialState
	a.stalledReceives = 0
	a.mutex.Unlock()
	if a.config.ResetFunc != nil {
		a.config.ResetFunc()
	}
}

// timestamp returns the low 32 bits of the microseconds since Attach. Within one
// 32-bit cycle the value never goes backwards. Must be called with the mutex held
func (a *Agent[S]) timestamp() uint32 {
	elapsed := max(a.now().Sub(a.attachTime).Microseconds(), 0)
	cycle := elapsed >> 32
	// #nosec G115
	ts := uint32(elapsed & 0xffffffff)
	if cycle < a.lastCycle || (cycle == a.lastCycle && ts < a.lastTimestamp) {
		ts = a.lastTimestamp
		cycle = a.lastCycle
	}
	a.lastTimestamp = ts
	a.lastCycle = cycle
	return ts
}

// SendNextMessage sends the next message if the local side has agency and the
// protocol has something to send, and advances the state. It does nothing when the
// peer has agency or there is no work queued
func (a *Agent[S]) SendNextMessage() error {
	a.mutex.Lock()
	if !a.state.HasAgency(a.isClient()) || a.config.BuildMessageFunc == nil {
		a.mutex.Unlock()
		return nil
	}
	if a.sender == nil {
		a.mutex.Unlock()
		return fmt.Errorf("%s: %w", a.config.Name, ErrNotAttached)
	}
	msg := a.config.BuildMessageFunc(a.state)
	if msg == nil {
		a.mutex.Unlock()
		return nil
	}
	data, err := cbor.Encode(msg)
	if err != nil {
		a.mutex.Unlock()
		return fmt.Errorf("%s: failed to encode message: %w", a.config.Name, err)
	}
	segment := muxer.NewSegment(
		a.timestamp(),
		a.config.ProtocolId,
		data,
		a.config.Role == RoleServer,
	)
	if err := a.sender.Send(segment); err != nil {
		a.mutex.Unlock()
		return fmt.Errorf("%s: failed to send message: %w", a.config.Name, err)
	}
	oldState := a.state
	a.state = a.state.NextState(msg)
	newState := a.state
	a.mutex.Unlock()
	a.logger.Debug(
		"sent message",
		"message_type", msg.Type(),
		"old_state", oldState.String(),
		"new_state", newState.String(),
	)
	a.notifyListeners(oldState, newState)
	return nil
}

// DeserializeMessage decodes a reassembled message payload for this protocol
func (a *Agent[S]) DeserializeMessage(data []byte) (Message, error) {
	msgType, err := cbor.DecodeIdFromList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decode message type: %w", a.config.Name, err)
	}
	if a.config.MessageFromCborFunc == nil {
		return nil, fmt.Errorf("%s: %w: %d", a.config.Name, ErrUnknownMessageType, msgType)
	}
	// #nosec G115
	msg, err := a.config.MessageFromCborFunc(uint(msgType), data)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("%s: %w: %d", a.config.Name, ErrUnknownMessageType, msgType)
	}
	return msg, nil
}

// ReceiveMessage advances the state for a message received from the peer, notifies the
// state listeners, and passes the message to the protocol-specific handler. A nil
// message, which is what the router delivers for an undecodable payload, is ignored
func (a *Agent[S]) ReceiveMessage(msg Message) {
	if msg == nil {
		return
	}
	a.mutex.Lock()
	oldState := a.state
	a.state = a.state.NextState(msg)
	newState := a.state
	// The peer may only send while it holds agency. Messages received outside of
	// that, including in the done state, cannot advance the state
	if !oldState.HasAgency(!a.isClient()) {
		a.stalledReceives++
	} else {
		a.stalledReceives = 0
	}
	a.mutex.Unlock()
	a.logger.Debug(
		"received message",
		"message_type", msg.Type(),
		"old_state", oldState.String(),
		"new_state", newState.String(),
	)
	a.notifyListeners(oldState, newState)
	if a.config.MessageHandlerFunc != nil {
		if err := a.config.MessageHandlerFunc(msg); err != nil {
			a.logger.Warn(
				"failed to handle message",
				"message_type", msg.Type(),
				"error", err,
			)
		}
	}
}

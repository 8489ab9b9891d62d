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

package protocol

import "log/slog"

// ProtocolOptions holds the settings shared by all mini-protocol agents
type ProtocolOptions struct {
	ProtocolId uint16
	Role       Role
	Logger     *slog.Logger
}

// ProtocolOptionFunc is a type that represents functions that modify the ProtocolOptions
type ProtocolOptionFunc func(*ProtocolOptions)

// NewProtocolOptions returns the options for an agent with the specified default
// protocol ID and role, with any provided option functions applied
func NewProtocolOptions(
	protocolId uint16,
	role Role,
	options ...ProtocolOptionFunc,
) ProtocolOptions {
	o := ProtocolOptions{
		ProtocolId: protocolId,
		Role:       role,
	}
	for _, option := range options {
		option(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// WithProtocolId overrides the protocol ID used by the agent. Protocol ID assignments
// are a property of the network the agent talks to
func WithProtocolId(protocolId uint16) ProtocolOptionFunc {
	return func(o *ProtocolOptions) {
		o.ProtocolId = protocolId
	}
}

// WithLogger specifies the logger for the agent
func WithLogger(logger *slog.Logger) ProtocolOptionFunc {
	return func(o *ProtocolOptions) {
		o.Logger = logger
	}
}

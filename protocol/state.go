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

import (
	"fmt"
)

// State is implemented by the state type of each mini-protocol. A protocol defines a
// closed set of states as constants of its own type, and NextState and HasAgency use an
// exhaustive switch over them. Agency is a function of role, so a single state table
// serves both peers
type State[S any] interface {
	comparable
	fmt.Stringer
	// NextState returns the state after the specified message has been sent or received
	// in the current state. Messages that are not valid in the current state leave the
	// state unchanged
	NextState(Message) S
	// HasAgency returns whether the client (isClient == true) or server may send the
	// next message in the current state
	HasAgency(isClient bool) bool
}

// Role is the side of a mini-protocol that an agent drives
type Role uint

const (
	RoleNone Role = iota
	RoleClient
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "none"
	}
}

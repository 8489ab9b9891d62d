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

package muxer

import (
	"github.com/blinklabs-io/ouroboros-agent/cbor"
)

// ProtocolChannel accumulates payload bytes received for a single protocol ID until
// they form one or more complete messages
type ProtocolChannel struct {
	protocolId uint16
	pending    []byte
}

func newProtocolChannel(protocolId uint16) *ProtocolChannel {
	return &ProtocolChannel{
		protocolId: protocolId,
	}
}

// ProtocolId returns the protocol ID for the channel, including the response flag
func (c *ProtocolChannel) ProtocolId() uint16 {
	return c.protocolId
}

// Len returns the number of buffered bytes that have not yet formed a complete message
func (c *ProtocolChannel) Len() int {
	return len(c.pending)
}

func (c *ProtocolChannel) append(data []byte) {
	c.pending = append(c.pending, data...)
}

// nextMessage removes and returns the next complete message from the channel. A nil
// message with a nil error means more bytes are needed. On error, the buffered bytes
// are left untouched.
//
// A message normally consists of a single top-level CBOR item. Non-array items that
// directly follow the first item are treated as part of the same message, and the
// message ends at the next array item. Some replies (local-state-query results, for
// example) carry trailing non-array data after the main array item.
func (c *ProtocolChannel) nextMessage() ([]byte, error) {
	first, rest, err := cbor.DecodeFirst(c.pending)
	if err != nil {
		if err == cbor.ErrIncomplete {
			return nil, nil
		}
		return nil, err
	}
	msgLen := len(first)
	for len(rest) > 0 {
		// An array item always starts a new message, even if it's incomplete
		if cbor.IsArray(rest) {
			break
		}
		item, tmpRest, err := cbor.DecodeFirst(rest)
		if err != nil {
			if err == cbor.ErrIncomplete {
				// The trailing item may belong to this message
				return nil, nil
			}
			return nil, err
		}
		msgLen += len(item)
		rest = tmpRest
	}
	msg := make([]byte, msgLen)
	copy(msg, c.pending[:msgLen])
	if msgLen == len(c.pending) {
		c.pending = nil
	} else {
		c.pending = c.pending[msgLen:]
	}
	return msg, nil
}

func (c *ProtocolChannel) reset() {
	c.pending = nil
}

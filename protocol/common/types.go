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

// Package common contains chain types shared by several mini-protocols
package common

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
)

// Point is a position on the chain, identified by slot number and block hash. The zero value
// is the origin of the chain
type Point struct {
	Slot uint64
	Hash []byte
}

// NewPoint returns a Point with the specified slot number and block hash
func NewPoint(slot uint64, blockHash []byte) Point {
	return Point{
		Slot: slot,
		Hash: blockHash,
	}
}

// NewPointOrigin returns the origin Point
func NewPointOrigin() Point {
	return Point{}
}

// IsOrigin returns whether the point is the origin of the chain
func (p Point) IsOrigin() bool {
	return p.Slot == 0 && len(p.Hash) == 0
}

func (p Point) String() string {
	if p.IsOrigin() {
		return "origin"
	}
	return fmt.Sprintf("%d.%s", p.Slot, hex.EncodeToString(p.Hash))
}

// UnmarshalCBOR decodes a Point, which is either an empty list (origin) or [slot, hash]
func (p *Point) UnmarshalCBOR(data []byte) error {
	var tmp []cbor.RawMessage
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return err
	}
	switch len(tmp) {
	case 0:
		*p = Point{}
	case 2:
		if _, err := cbor.Decode(tmp[0], &p.Slot); err != nil {
			return err
		}
		if _, err := cbor.Decode(tmp[1], &p.Hash); err != nil {
			return err
		}
	default:
		return errors.New("invalid point: unexpected list length")
	}
	return nil
}

// MarshalCBOR encodes a Point, using an empty list for the origin
func (p Point) MarshalCBOR() ([]byte, error) {
	var data []any
	if p.IsOrigin() {
		// Return an empty list if values are zero
		data = make([]any, 0)
	} else {
		data = []any{p.Slot, p.Hash}
	}
	return cbor.Encode(data)
}

// Tip represents a Point combined with a block number
type Tip struct {
	cbor.StructAsArray
	Point       Point
	BlockNumber uint64
}

func (t Tip) String() string {
	return fmt.Sprintf("%s (block %d)", t.Point, t.BlockNumber)
}

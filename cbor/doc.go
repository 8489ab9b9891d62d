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

// Package cbor wraps github.com/fxamacker/cbor/v2 with the encoding modes used by the
// Ouroboros mini-protocols.
//
// Encoding is deterministic, so maps are written with sorted keys. Decoding reads the
// first data item and reports how many bytes it used, which lets callers find message
// boundaries in a byte stream with DecodeFirst.
//
// Structs that embed StructAsArray are encoded as CBOR arrays, which is how every
// protocol message is laid out on the wire:
//
//	type MsgExample struct {
//	    cbor.StructAsArray
//	    Type  uint8
//	    Value uint64
//	}
//
// WrappedCbor carries a nested data item inside CBOR tag 24, as used for blocks and
// transactions.
package cbor

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
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	SegmentHeaderLength           = 8
	SegmentProtocolIdResponseFlag = 0x8000
	SegmentMaxPayloadLength       = 65535
)

var (
	// ErrNeedMoreBytes is returned when a buffer does not yet hold a complete segment
	ErrNeedMoreBytes = errors.New("incomplete segment")
	// ErrSegmentTooLarge is returned when encoding a payload that does not fit in a single segment
	ErrSegmentTooLarge = errors.New("segment payload exceeds maximum length")
)

// SegmentHeader is the fixed-size header that precedes every segment on the wire
type SegmentHeader struct {
	Timestamp     uint32
	ProtocolId    uint16
	PayloadLength uint16
}

// Segment is a single unit of the multiplexer wire format. Segments produced by the
// demuxer carry a fully reassembled message, which may be larger than a physical segment
type Segment struct {
	Timestamp  uint32
	ProtocolId uint16
	Payload    []byte
}

// NewSegment returns a new segment for the specified protocol. The response flag is
// added to the protocol ID when isResponse is true
func NewSegment(timestamp uint32, protocolId uint16, payload []byte, isResponse bool) *Segment {
	if isResponse {
		protocolId = protocolId | SegmentProtocolIdResponseFlag
	}
	return &Segment{
		Timestamp:  timestamp,
		ProtocolId: protocolId,
		Payload:    payload,
	}
}

func (s *Segment) IsRequest() bool {
	return (s.ProtocolId & SegmentProtocolIdResponseFlag) == 0
}

func (s *Segment) IsResponse() bool {
	return (s.ProtocolId & SegmentProtocolIdResponseFlag) > 0
}

// GetProtocolId returns the protocol ID with the response flag removed
func (s *Segment) GetProtocolId() uint16 {
	return s.ProtocolId &^ SegmentProtocolIdResponseFlag
}

// Header returns the wire header for the segment
func (s *Segment) Header() SegmentHeader {
	return SegmentHeader{
		Timestamp:     s.Timestamp,
		ProtocolId:    s.ProtocolId,
		PayloadLength: uint16(len(s.Payload)), // #nosec G115 -- checked by Encode
	}
}

// Encode returns the wire representation of the segment
func (s *Segment) Encode() ([]byte, error) {
	if len(s.Payload) > SegmentMaxPayloadLength {
		return nil, fmt.Errorf(
			"%w: %d bytes for protocol %d",
			ErrSegmentTooLarge,
			len(s.Payload),
			s.GetProtocolId(),
		)
	}
	header := s.Header()
	ret := make([]byte, SegmentHeaderLength+len(s.Payload))
	binary.BigEndian.PutUint32(ret[0:4], header.Timestamp)
	binary.BigEndian.PutUint16(ret[4:6], header.ProtocolId)
	binary.BigEndian.PutUint16(ret[6:8], header.PayloadLength)
	copy(ret[SegmentHeaderLength:], s.Payload)
	return ret, nil
}

// DecodeSegmentHeader decodes a segment header from the start of the provided data. No
// input is consumed when ErrNeedMoreBytes is returned
func DecodeSegmentHeader(data []byte) (SegmentHeader, error) {
	if len(data) < SegmentHeaderLength {
		return SegmentHeader{}, ErrNeedMoreBytes
	}
	return SegmentHeader{
		Timestamp:     binary.BigEndian.Uint32(data[0:4]),
		ProtocolId:    binary.BigEndian.Uint16(data[4:6]),
		PayloadLength: binary.BigEndian.Uint16(data[6:8]),
	}, nil
}

// DecodeSegment decodes a complete physical segment from the start of the provided data
// and returns it along with the number of bytes consumed. The payload is copied, so the
// returned segment does not alias the input
func DecodeSegment(data []byte) (*Segment, int, error) {
	header, err := DecodeSegmentHeader(data)
	if err != nil {
		return nil, 0, err
	}
	total := SegmentHeaderLength + int(header.PayloadLength)
	if len(data) < total {
		return nil, 0, ErrNeedMoreBytes
	}
	payload := make([]byte, header.PayloadLength)
	copy(payload, data[SegmentHeaderLength:total])
	return &Segment{
		Timestamp:  header.Timestamp,
		ProtocolId: header.ProtocolId,
		Payload:    payload,
	}, total, nil
}

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
	"errors"
	"fmt"
	"log/slog"
)

// DefaultMaxChannelBuffer is the default limit for bytes buffered on a single protocol
// channel while waiting for a complete message
const DefaultMaxChannelBuffer = 16 * 1024 * 1024

// ErrChannelBufferExceeded is returned when a protocol channel buffers more bytes than
// allowed without producing a complete message
var ErrChannelBufferExceeded = errors.New("protocol channel buffer limit exceeded")

// Demuxer reassembles messages from a raw inbound byte stream shared by many protocols.
// It is not safe for concurrent use and is meant to be driven by a single read loop
type Demuxer struct {
	buf              []byte
	channels         map[uint16]*ProtocolChannel
	maxChannelBuffer int
	logger           *slog.Logger
	metrics          *Metrics
}

// DemuxerOptionFunc is a type that represents functions that modify the Demuxer config
type DemuxerOptionFunc func(*Demuxer)

// WithMaxChannelBuffer specifies the maximum number of bytes buffered per protocol channel
func WithMaxChannelBuffer(maxBytes int) DemuxerOptionFunc {
	return func(d *Demuxer) {
		d.maxChannelBuffer = maxBytes
	}
}

// WithDemuxerLogger specifies the logger for framing errors
func WithDemuxerLogger(logger *slog.Logger) DemuxerOptionFunc {
	return func(d *Demuxer) {
		d.logger = logger
	}
}

// WithDemuxerMetrics specifies the metrics collector
func WithDemuxerMetrics(metrics *Metrics) DemuxerOptionFunc {
	return func(d *Demuxer) {
		d.metrics = metrics
	}
}

func NewDemuxer(options ...DemuxerOptionFunc) *Demuxer {
	d := &Demuxer{
		channels:         make(map[uint16]*ProtocolChannel),
		maxChannelBuffer: DefaultMaxChannelBuffer,
	}
	for _, option := range options {
		option(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// RegisterProtocol creates the channels for a protocol ID ahead of time. Channels for
// unregistered protocol IDs are created when the first segment for them arrives
func (d *Demuxer) RegisterProtocol(protocolId uint16) {
	for _, id := range []uint16{
		protocolId &^ SegmentProtocolIdResponseFlag,
		protocolId | SegmentProtocolIdResponseFlag,
	} {
		d.metrics.channelBufferedBytes(id, d.channel(id).Len())
	}
}

func (d *Demuxer) channel(protocolId uint16) *ProtocolChannel {
	ch, ok := d.channels[protocolId]
	if !ok {
		ch = newProtocolChannel(protocolId)
		d.channels[protocolId] = ch
	}
	return ch
}

// Buffered returns the number of bytes held that do not yet form a complete segment
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered data. This is used when a new connection is established
func (d *Demuxer) Reset() {
	d.buf = nil
	d.metrics.bufferedBytes(0)
	for _, ch := range d.channels {
		ch.reset()
		d.metrics.channelBufferedBytes(ch.ProtocolId(), 0)
	}
}

// Feed adds inbound data from the connection and returns any messages that have been
// fully reassembled as a result, in arrival order. Incomplete segments are kept until
// more data arrives
func (d *Demuxer) Feed(data []byte) ([]*Segment, error) {
	d.buf = append(d.buf, data...)
	var ret []*Segment
	for {
		segment, n, err := DecodeSegment(d.buf)
		if err != nil {
			if errors.Is(err, ErrNeedMoreBytes) {
				break
			}
			return ret, err
		}
		d.buf = d.buf[n:]
		d.metrics.segmentReceived(segment)
		msgs, err := d.reassemble(segment)
		ret = append(ret, msgs...)
		if err != nil {
			return ret, err
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	d.metrics.bufferedBytes(d.Buffered())
	return ret, nil
}

func (d *Demuxer) reassemble(segment *Segment) ([]*Segment, error) {
	ch := d.channel(segment.ProtocolId)
	ch.append(segment.Payload)
	defer func() {
		d.metrics.channelBufferedBytes(segment.ProtocolId, ch.Len())
	}()
	if d.maxChannelBuffer > 0 && ch.Len() > d.maxChannelBuffer {
		return nil, fmt.Errorf(
			"%w: protocol %d has %d bytes buffered",
			ErrChannelBufferExceeded,
			segment.ProtocolId,
			ch.Len(),
		)
	}
	var ret []*Segment
	for {
		msg, err := ch.nextMessage()
		if err != nil {
			// Keep the buffered bytes and wait for more data
			d.logger.Warn(
				"failed to decode buffered message data",
				"component", "muxer",
				"protocol_id", segment.ProtocolId,
				"buffered", ch.Len(),
				"error", err,
			)
			d.metrics.framingError(segment.ProtocolId)
			break
		}
		if msg == nil {
			break
		}
		d.metrics.messageReassembled(segment.ProtocolId)
		ret = append(
			ret,
			&Segment{
				Timestamp:  segment.Timestamp,
				ProtocolId: segment.ProtocolId,
				Payload:    msg,
			},
		)
	}
	return ret, nil
}

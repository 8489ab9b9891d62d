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

package muxer_test

import (
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/blinklabs-io/ouroboros-agent/muxer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// metricValue returns the value of a muxer counter or gauge. An empty protocolId
// selects the unlabeled series
func metricValue(t *testing.T, registry *prometheus.Registry, name string, protocolId string) (float64, bool) {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	fqName := prometheus.BuildFQName(muxer.MetricsNamespace, muxer.MetricsSubsystem, name)
	for _, family := range families {
		if family.GetName() != fqName {
			continue
		}
		for _, metric := range family.GetMetric() {
			label := ""
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "protocol_id" {
					label = pair.GetValue()
				}
			}
			if label != protocolId {
				continue
			}
			if counter := metric.GetCounter(); counter != nil {
				return counter.GetValue(), true
			}
			return metric.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

// channelBuffered returns the bytes held by the channel for a protocol ID
func channelBuffered(t *testing.T, registry *prometheus.Registry, protocolId uint16) (int, bool) {
	t.Helper()
	value, ok := metricValue(t, registry, "channel_buffered_bytes", strconv.Itoa(int(protocolId)))
	return int(value), ok
}

func newMeteredDemuxer(options ...muxer.DemuxerOptionFunc) (*muxer.Demuxer, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	options = append(
		[]muxer.DemuxerOptionFunc{
			muxer.WithDemuxerLogger(discardLogger()),
			muxer.WithDemuxerMetrics(muxer.NewMetrics(registry)),
		},
		options...,
	)
	return muxer.NewDemuxer(options...), registry
}

func encodeSegment(t *testing.T, protocolId uint16, payloadHex string) []byte {
	t.Helper()
	payload, err := hex.DecodeString(payloadHex)
	require.NoError(t, err)
	data, err := muxer.NewSegment(0, protocolId, payload, false).Encode()
	require.NoError(t, err)
	return data
}

func payloadsHex(segments []*muxer.Segment) []string {
	ret := make([]string, 0, len(segments))
	for _, segment := range segments {
		ret = append(ret, hex.EncodeToString(segment.Payload))
	}
	return ret
}

func feedChunked(t *testing.T, data []byte, chunkSize int) []*muxer.Segment {
	t.Helper()
	demuxer := muxer.NewDemuxer(muxer.WithDemuxerLogger(discardLogger()))
	var ret []*muxer.Segment
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		segments, err := demuxer.Feed(data[:n])
		require.NoError(t, err)
		ret = append(ret, segments...)
		data = data[n:]
	}
	assert.Equal(t, 0, demuxer.Buffered())
	return ret
}

func TestDemuxerSingleMessage(t *testing.T) {
	demuxer := muxer.NewDemuxer()
	segments, err := demuxer.Feed(encodeSegment(t, 8, "8200193039"))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, uint16(8), segments[0].ProtocolId)
	assert.Equal(t, "8200193039", hex.EncodeToString(segments[0].Payload))
}

func TestDemuxerFragmentationTolerance(t *testing.T) {
	var stream []byte
	// Two chain-sync messages in one segment, keep-alive response, then a block-fetch
	// message split across two segments
	stream = append(stream, encodeSegment(t, 0x8002, "8101"+"820380")...)
	stream = append(stream, encodeSegment(t, 0x8008, "8201193039")...)
	stream = append(stream, encodeSegment(t, 0x8003, "8304")...)
	stream = append(stream, encodeSegment(t, 0x8003, "4201020a")...)
	expected := feedChunked(t, stream, len(stream))
	require.Equal(
		t,
		[]string{"8101", "820380", "8201193039", "83044201020a"},
		payloadsHex(expected),
	)
	for _, chunkSize := range []int{1, 2, 3, 7, 8, 9, 13} {
		segments := feedChunked(t, stream, chunkSize)
		assert.Equal(t, payloadsHex(expected), payloadsHex(segments), "chunk size %d", chunkSize)
		for i := range segments {
			assert.Equal(t, expected[i].ProtocolId, segments[i].ProtocolId)
		}
	}
}

func TestDemuxerInterleavedProtocols(t *testing.T) {
	var stream []byte
	// First half of a chain-sync message, a complete keep-alive, then the rest
	stream = append(stream, encodeSegment(t, 0x8002, "8302")...)
	stream = append(stream, encodeSegment(t, 0x8008, "8201193039")...)
	stream = append(stream, encodeSegment(t, 0x8002, "8080")...)
	segments := feedChunked(t, stream, 1)
	require.Len(t, segments, 2)
	assert.Equal(t, uint16(0x8008), segments[0].ProtocolId)
	assert.Equal(t, "8201193039", hex.EncodeToString(segments[0].Payload))
	assert.Equal(t, uint16(0x8002), segments[1].ProtocolId)
	assert.Equal(t, "83028080", hex.EncodeToString(segments[1].Payload))
}

func TestDemuxerBatchingHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected []string
	}{
		{
			name:     "non-array item followed by array item",
			payload:  "0a" + "820102",
			expected: []string{"0a", "820102"},
		},
		{
			name:     "array item followed by non-array items",
			payload:  "820401" + "a10102" + "18ff",
			expected: []string{"820401a1010218ff"},
		},
		{
			name:     "two array items",
			payload:  "8101" + "8102",
			expected: []string{"8101", "8102"},
		},
		{
			name:     "array, trailing non-array, array",
			payload:  "8104" + "05" + "8106",
			expected: []string{"810405", "8106"},
		},
		{
			name:     "complete array followed by incomplete array",
			payload:  "8101" + "8302",
			expected: []string{"8101"},
		},
		{
			name:     "complete array followed by incomplete non-array",
			payload:  "8101" + "5820aa",
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			demuxer := muxer.NewDemuxer(muxer.WithDemuxerLogger(discardLogger()))
			segments, err := demuxer.Feed(encodeSegment(t, 0x8007, tt.payload))
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Empty(t, segments)
				return
			}
			assert.Equal(t, tt.expected, payloadsHex(segments))
		})
	}
}

func TestDemuxerTrailingItemCompletedLater(t *testing.T) {
	demuxer, registry := newMeteredDemuxer()
	segments, err := demuxer.Feed(encodeSegment(t, 0x8007, "8104"+"43aa"))
	require.NoError(t, err)
	assert.Empty(t, segments)
	buffered, _ := channelBuffered(t, registry, 0x8007)
	assert.Equal(t, 4, buffered)
	segments, err = demuxer.Feed(encodeSegment(t, 0x8007, "bbcc"+"8105"))
	require.NoError(t, err)
	assert.Equal(t, []string{"810443aabbcc", "8105"}, payloadsHex(segments))
	buffered, _ = channelBuffered(t, registry, 0x8007)
	assert.Equal(t, 0, buffered)
	reassembled, _ := metricValue(t, registry, "messages_reassembled_total", "32775")
	assert.Equal(t, float64(2), reassembled)
}

func TestDemuxerMalformedDataPreserved(t *testing.T) {
	demuxer, registry := newMeteredDemuxer()
	segments, err := demuxer.Feed(encodeSegment(t, 0x8002, "1c"))
	require.NoError(t, err)
	assert.Empty(t, segments)
	buffered, _ := channelBuffered(t, registry, 0x8002)
	assert.Equal(t, 1, buffered)
	framingErrors, _ := metricValue(t, registry, "framing_errors_total", "32770")
	assert.Equal(t, float64(1), framingErrors)
	// Other protocols are unaffected
	segments, err = demuxer.Feed(encodeSegment(t, 0x8008, "8201193039"))
	require.NoError(t, err)
	assert.Equal(t, []string{"8201193039"}, payloadsHex(segments))
}

func TestDemuxerChannelBufferLimit(t *testing.T) {
	demuxer := muxer.NewDemuxer(muxer.WithMaxChannelBuffer(4))
	_, err := demuxer.Feed(encodeSegment(t, 0x8003, "5820aabbccdd"))
	if !errors.Is(err, muxer.ErrChannelBufferExceeded) {
		t.Fatalf("did not get expected error\n  got: %v\n  wanted: %v", err, muxer.ErrChannelBufferExceeded)
	}
}

func TestDemuxerRegisterAndReset(t *testing.T) {
	demuxer, registry := newMeteredDemuxer()
	demuxer.RegisterProtocol(2)
	_, ok := channelBuffered(t, registry, 2)
	assert.True(t, ok)
	_, ok = channelBuffered(t, registry, 0x8002)
	assert.True(t, ok)
	_, ok = channelBuffered(t, registry, 3)
	assert.False(t, ok)
	data := encodeSegment(t, 0x8002, "8302")
	_, err := demuxer.Feed(data[:len(data)-1])
	require.NoError(t, err)
	assert.Equal(t, len(data)-1, demuxer.Buffered())
	pending, _ := metricValue(t, registry, "buffered_bytes", "")
	assert.Equal(t, float64(len(data)-1), pending)
	_, err = demuxer.Feed(data[len(data)-1:])
	require.NoError(t, err)
	buffered, _ := channelBuffered(t, registry, 0x8002)
	assert.Equal(t, 2, buffered)
	demuxer.Reset()
	assert.Equal(t, 0, demuxer.Buffered())
	buffered, _ = channelBuffered(t, registry, 0x8002)
	assert.Equal(t, 0, buffered)
}

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
	"net"
	"testing"
	"time"

	"github.com/blinklabs-io/ouroboros-agent/muxer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMuxerSendReceive(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	registry := prometheus.NewRegistry()
	metrics := muxer.NewMetrics(registry)
	client := muxer.New(clientConn, muxer.WithLogger(discardLogger()), muxer.WithMetrics(metrics))
	server := muxer.New(serverConn, muxer.WithLogger(discardLogger()))
	client.RegisterProtocol(8)
	recvChan := make(chan *muxer.Segment, 10)
	server.Start(func(segment *muxer.Segment) {
		recvChan <- segment
	})
	client.Start(nil)

	payload, _ := hex.DecodeString("8200193039")
	require.NoError(t, client.Send(muxer.NewSegment(1, 8, payload, false)))
	select {
	case segment := <-recvChan:
		assert.Equal(t, uint16(8), segment.ProtocolId)
		assert.Equal(t, payload, segment.Payload)
	case <-time.After(2 * time.Second):
		t.Fatalf("did not receive segment within timeout")
	}
	sent, ok := metricValue(t, registry, "segments_sent_total", "8")
	assert.True(t, ok)
	assert.Equal(t, float64(1), sent)

	client.Stop()
	client.Wait()
	// The peer sees the connection close
	select {
	case <-server.DoneChan():
	case <-time.After(2 * time.Second):
		t.Fatalf("server muxer did not stop within timeout")
	}
	server.Wait()
	assert.True(t, errors.Is(server.Err(), io.EOF))
	assert.NoError(t, client.Err())
	assert.ErrorIs(t, client.Send(muxer.NewSegment(1, 8, payload, false)), muxer.ErrMuxerStopped)
}

func TestMuxerStopMultipleTimes(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	m := muxer.New(clientConn)
	m.Start(nil)
	m.Stop()
	// Should be able to stop multiple times without panic
	m.Stop()
	m.Wait()
}

func TestMuxerSendTooLarge(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	m := muxer.New(clientConn)
	defer m.Stop()
	err := m.Send(muxer.NewSegment(0, 3, make([]byte, muxer.SegmentMaxPayloadLength+1), false))
	assert.ErrorIs(t, err, muxer.ErrSegmentTooLarge)
}

func TestMuxerStopsOnBufferLimit(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	m := muxer.New(
		clientConn,
		muxer.WithLogger(discardLogger()),
		muxer.WithDemuxerOptions(muxer.WithMaxChannelBuffer(2)),
	)
	m.Start(nil)
	go func() {
		// Incomplete byte string that exceeds the buffer limit
		data, _ := muxer.NewSegment(0, 0x8003, []byte{0x58, 0x20, 0x01, 0x02}, false).Encode()
		_, _ = serverConn.Write(data)
	}()
	select {
	case <-m.DoneChan():
	case <-time.After(2 * time.Second):
		t.Fatalf("muxer did not stop within timeout")
	}
	m.Wait()
	serverConn.Close()
	assert.ErrorIs(t, m.Err(), muxer.ErrChannelBufferExceeded)
}

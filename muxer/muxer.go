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

// Package muxer implements the Ouroboros segment multiplexer, which carries messages for
// multiple mini-protocols over a single connection
package muxer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

const (
	// Handshake protocol ID
	ProtocolHandshake = 0

	// DefaultReadBufferSize is the size of the buffer used for each connection read
	DefaultReadBufferSize = 64 * 1024
)

// ErrMuxerStopped is returned when sending on a muxer that has been stopped
var ErrMuxerStopped = errors.New("muxer is stopped")

// SegmentHandlerFunc is called from the muxer read loop for each reassembled message
type SegmentHandlerFunc func(*Segment)

// Muxer owns a connection, serializes outbound segments from all protocols, and runs a
// single read loop that feeds the demuxer
type Muxer struct {
	conn           net.Conn
	demuxer        *Demuxer
	sendMutex      sync.Mutex
	doneChan       chan struct{}
	errMutex       sync.Mutex
	err            error
	onceStart      sync.Once
	onceStop       sync.Once
	waitGroup      sync.WaitGroup
	logger         *slog.Logger
	metrics        *Metrics
	readBufferSize int
	demuxOptions   []DemuxerOptionFunc
}

// MuxerOptionFunc is a type that represents functions that modify the Muxer config
type MuxerOptionFunc func(*Muxer)

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) MuxerOptionFunc {
	return func(m *Muxer) {
		m.logger = logger
	}
}

// WithMetrics specifies the metrics collector to use
func WithMetrics(metrics *Metrics) MuxerOptionFunc {
	return func(m *Muxer) {
		m.metrics = metrics
	}
}

// WithReadBufferSize specifies the size of the buffer used for connection reads
func WithReadBufferSize(size int) MuxerOptionFunc {
	return func(m *Muxer) {
		m.readBufferSize = size
	}
}

// WithDemuxerOptions specifies options passed through to the demuxer
func WithDemuxerOptions(options ...DemuxerOptionFunc) MuxerOptionFunc {
	return func(m *Muxer) {
		m.demuxOptions = append(m.demuxOptions, options...)
	}
}

func New(conn net.Conn, options ...MuxerOptionFunc) *Muxer {
	m := &Muxer{
		conn:           conn,
		doneChan:       make(chan struct{}),
		readBufferSize: DefaultReadBufferSize,
	}
	for _, option := range options {
		option(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	demuxOptions := []DemuxerOptionFunc{
		WithDemuxerLogger(m.logger),
		WithDemuxerMetrics(m.metrics),
	}
	m.demuxer = NewDemuxer(append(demuxOptions, m.demuxOptions...)...)
	return m
}

// RegisterProtocol pre-creates the inbound channels for the specified protocol ID. This
// must be called before Start
func (m *Muxer) RegisterProtocol(protocolId uint16) {
	m.demuxer.RegisterProtocol(protocolId)
}

// Start launches the read loop. Each reassembled message is passed to the handler from
// the read loop goroutine, so messages for a protocol are delivered in order
func (m *Muxer) Start(handler SegmentHandlerFunc) {
	m.onceStart.Do(func() {
		m.waitGroup.Add(1)
		go m.readLoop(handler)
	})
}

// Stop closes the connection and stops the read loop. It is safe to call more than once
// and from within a segment handler
func (m *Muxer) Stop() {
	m.onceStop.Do(func() {
		close(m.doneChan)
		if err := m.conn.Close(); err != nil {
			m.logger.Debug(
				"error closing connection",
				"component", "muxer",
				"error", err,
			)
		}
	})
}

// Wait blocks until the read loop has exited. It must not be called from a segment handler
func (m *Muxer) Wait() {
	m.waitGroup.Wait()
}

// DoneChan returns a channel that is closed when the muxer stops
func (m *Muxer) DoneChan() <-chan struct{} {
	return m.doneChan
}

// Err returns the error that caused the muxer to stop, if any
func (m *Muxer) Err() error {
	m.errMutex.Lock()
	defer m.errMutex.Unlock()
	return m.err
}

func (m *Muxer) isStopped() bool {
	select {
	case <-m.doneChan:
		return true
	default:
		return false
	}
}

func (m *Muxer) stopWithError(err error) {
	if m.isStopped() {
		return
	}
	m.errMutex.Lock()
	if m.err == nil {
		m.err = err
	}
	m.errMutex.Unlock()
	m.Stop()
}

// Send writes a segment to the connection. Writes from all protocols are serialized
func (m *Muxer) Send(segment *Segment) error {
	data, err := segment.Encode()
	if err != nil {
		return err
	}
	// We use a mutex to make sure only one protocol can send at a time
	m.sendMutex.Lock()
	defer m.sendMutex.Unlock()
	if m.isStopped() {
		return ErrMuxerStopped
	}
	if _, err := m.conn.Write(data); err != nil {
		err = fmt.Errorf("connection write failed: %w", err)
		m.stopWithError(err)
		return err
	}
	m.metrics.segmentSent(segment)
	return nil
}

func (m *Muxer) readLoop(handler SegmentHandlerFunc) {
	defer m.waitGroup.Done()
	buf := make([]byte, m.readBufferSize)
	for {
		n, err := m.conn.Read(buf)
		if n > 0 {
			segments, demuxErr := m.demuxer.Feed(buf[:n])
			for _, segment := range segments {
				if handler != nil {
					handler(segment)
				}
			}
			if demuxErr != nil {
				m.stopWithError(demuxErr)
				return
			}
		}
		if err != nil {
			if m.isStopped() {
				return
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			m.stopWithError(err)
			return
		}
	}
}

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

// Package ouroboros_mock provides a mock Ouroboros peer driven by a scripted conversation
package ouroboros_mock

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/muxer"
)

// Connection mocks the remote end of an Ouroboros connection. The value itself is the
// local end, which is handed to the code under test
type Connection struct {
	mockConn      net.Conn
	conn          net.Conn
	conversation  []ConversationEntry
	muxer         *muxer.Muxer
	muxerRecvChan chan *muxer.Segment
	errorChan     chan error
	doneChan      chan struct{}
	onceClose     sync.Once
	closeErr      error
	waitGroup     sync.WaitGroup
}

// NewConnection returns a new Connection with the provided conversation entries
func NewConnection(conversation []ConversationEntry) *Connection {
	c := &Connection{
		conversation:  conversation,
		muxerRecvChan: make(chan *muxer.Segment, 100),
		errorChan:     make(chan error, 1),
		doneChan:      make(chan struct{}),
	}
	c.conn, c.mockConn = net.Pipe()
	// Start a muxer on the mocked side of the connection
	c.muxer = muxer.New(c.mockConn)
	c.muxer.Start(func(segment *muxer.Segment) {
		select {
		case c.muxerRecvChan <- segment:
		case <-c.doneChan:
		}
	})
	// Start async conversation handler
	c.waitGroup.Add(1)
	go c.asyncLoop()
	return c
}

// ErrorChan returns a channel that receives the first conversation error
func (c *Connection) ErrorChan() <-chan error {
	return c.errorChan
}

// Read provides a proxy to the client-side connection's Read function
func (c *Connection) Read(b []byte) (n int, err error) {
	return c.conn.Read(b)
}

// Write provides a proxy to the client-side connection's Write function
func (c *Connection) Write(b []byte) (n int, err error) {
	return c.conn.Write(b)
}

// Close closes both sides of the connection and waits for the conversation to stop
func (c *Connection) Close() error {
	c.shutdown()
	c.waitGroup.Wait()
	c.muxer.Wait()
	return c.closeErr
}

func (c *Connection) shutdown() {
	c.onceClose.Do(func() {
		close(c.doneChan)
		c.muxer.Stop()
		c.closeErr = errors.Join(
			ignoreClosed(c.conn.Close()),
			ignoreClosed(c.mockConn.Close()),
		)
	})
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Connection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *Connection) asyncLoop() {
	defer c.waitGroup.Done()
	for _, entry := range c.conversation {
		var err error
		switch e := entry.(type) {
		case ConversationEntryInput:
			err = c.processInputEntry(e)
		case ConversationEntryOutput:
			err = c.processOutputEntry(e)
		case ConversationEntrySleep:
			select {
			case <-time.After(e.Duration):
			case <-c.doneChan:
				return
			}
		case ConversationEntryClose:
			// Close from a separate goroutine, since Close waits for this loop
			go c.shutdown()
			return
		default:
			err = fmt.Errorf("unknown conversation entry type: %T", entry)
		}
		if err != nil {
			select {
			case c.errorChan <- err:
			default:
			}
			return
		}
	}
}

func (c *Connection) processInputEntry(entry ConversationEntryInput) error {
	// Wait for segment to be received from muxer
	var segment *muxer.Segment
	select {
	case segment = <-c.muxerRecvChan:
	case <-c.doneChan:
		return nil
	}
	if segment.GetProtocolId() != entry.ProtocolId {
		return fmt.Errorf(
			"input message protocol ID did not match expected value: expected %d, got %d",
			entry.ProtocolId,
			segment.GetProtocolId(),
		)
	}
	if segment.IsResponse() != entry.IsResponse {
		return fmt.Errorf(
			"input message response flag did not match expected value: expected %v, got %v",
			entry.IsResponse,
			segment.IsResponse(),
		)
	}
	// Determine message type
	msgType, err := cbor.DecodeIdFromList(segment.Payload)
	if err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	if entry.Message == nil {
		// #nosec G115
		if entry.MessageType != uint(msgType) {
			return fmt.Errorf(
				"input message is not of expected type: expected %d, got %d",
				entry.MessageType,
				msgType,
			)
		}
		return nil
	}
	if entry.MsgFromCborFunc != nil {
		// #nosec G115
		msg, err := entry.MsgFromCborFunc(uint(msgType), segment.Payload)
		if err != nil {
			return fmt.Errorf("message from CBOR error: %w", err)
		}
		if msg == nil {
			return fmt.Errorf("received unknown message type: %d", msgType)
		}
	}
	expected, err := cbor.Encode(entry.Message)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, segment.Payload) {
		return fmt.Errorf(
			"parsed message does not match expected value: got %x, expected %x",
			segment.Payload,
			expected,
		)
	}
	return nil
}

func (c *Connection) processOutputEntry(entry ConversationEntryOutput) error {
	payloadBuf := bytes.NewBuffer(nil)
	for _, msg := range entry.Messages {
		// Get raw CBOR from message
		data := msg.Cbor()
		// If message has no raw CBOR, encode the message
		if data == nil {
			var err error
			data, err = cbor.Encode(msg)
			if err != nil {
				return err
			}
		}
		payloadBuf.Write(data)
	}
	segment := muxer.NewSegment(
		0,
		entry.ProtocolId,
		payloadBuf.Bytes(),
		entry.IsResponse,
	)
	return c.muxer.Send(segment)
}

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

package ouroboros_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	ouroboros "github.com/blinklabs-io/ouroboros-agent"
	"github.com/blinklabs-io/ouroboros-agent/internal/test/ouroboros_mock"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
	"github.com/blinklabs-io/ouroboros-agent/protocol/keepalive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// mockDialer hands out a new mock connection for each dial attempt
type mockDialer struct {
	mutex         sync.Mutex
	conversations [][]ouroboros_mock.ConversationEntry
	conns         []*ouroboros_mock.Connection
	dials         int
}

func (d *mockDialer) Dial(ctx context.Context, network string, address string) (net.Conn, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.dials++
	if len(d.conversations) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := ouroboros_mock.NewConnection(d.conversations[0])
	d.conversations = d.conversations[1:]
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *mockDialer) Dials() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.dials
}

func (d *mockDialer) Close() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, conn := range d.conns {
		_ = conn.Close()
	}
}

func (d *mockDialer) ConversationErrors() []error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	var ret []error
	for _, conn := range d.conns {
		select {
		case err := <-conn.ErrorChan():
			ret = append(ret, err)
		default:
		}
	}
	return ret
}

// syncBuffer collects log output from several goroutines
type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, dialer *mockDialer, options ...ouroboros.SessionOptionFunc) *ouroboros.Session {
	t.Helper()
	session, err := ouroboros.NewSession(
		append(
			[]ouroboros.SessionOptionFunc{
				ouroboros.WithAddress("tcp", "node.example:3001"),
				ouroboros.WithDialFunc(dialer.Dial),
				ouroboros.WithNetworkMagic(ouroboros_mock.MockNetworkMagic),
				ouroboros.WithNodeToNode(true),
				ouroboros.WithRetryDelay(10 * time.Millisecond),
				ouroboros.WithHandshakeTimeout(2 * time.Second),
				ouroboros.WithLogger(quietLogger()),
			},
			options...,
		)...,
	)
	require.NoError(t, err)
	return session
}

func TestNewSessionErrors(t *testing.T) {
	_, err := ouroboros.NewSession(ouroboros.WithNetworkMagic(1))
	assert.ErrorIs(t, err, ouroboros.ErrNoAddress)
	_, err = ouroboros.NewSession(ouroboros.WithAddress("tcp", "localhost:3001"))
	assert.ErrorIs(t, err, ouroboros.ErrInvalidNetworkMagic)
	_, err = ouroboros.NewSession(
		ouroboros.WithAddress("tcp", "localhost:3001"),
		ouroboros.WithNetwork(ouroboros.NetworkPreview),
		ouroboros.WithAgents(
			keepalive.NewClient(nil),
			keepalive.NewClient(nil),
		),
	)
	assert.ErrorIs(t, err, ouroboros.ErrDuplicateProtocolId)
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "Idle", ouroboros.SessionStateIdle.String())
	assert.Equal(t, "Active", ouroboros.SessionStateActive.String())
	assert.Equal(t, "Reconnecting", ouroboros.SessionStateReconnecting.String())
	assert.Equal(t, "Unknown", ouroboros.SessionState(99).String())
}

func TestSessionHandshakeAndKeepAlive(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{
		conversations: [][]ouroboros_mock.ConversationEntry{
			{
				ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
				ouroboros_mock.ConversationEntryHandshakeNtNResponse,
				ouroboros_mock.ConversationEntryInput{
					ProtocolId: keepalive.ProtocolId,
					Message:    keepalive.NewMsgKeepAlive(42),
				},
				ouroboros_mock.ConversationEntryOutput{
					ProtocolId: keepalive.ProtocolId,
					IsResponse: true,
					Messages: []protocol.Message{
						keepalive.NewMsgKeepAliveResponse(42),
					},
				},
			},
		},
	}
	defer dialer.Close()
	responses := make(chan uint16, 1)
	kaCfg := keepalive.NewConfig(
		keepalive.WithCookie(42),
		keepalive.WithPeriod(0),
		keepalive.WithKeepAliveResponseFunc(
			func(_ keepalive.CallbackContext, cookie uint16) error {
				responses <- cookie
				return nil
			},
		),
	)
	kaClient := keepalive.NewClient(&kaCfg)
	var connectedVersion uint16
	session := newTestSession(
		t,
		dialer,
		ouroboros.WithAgents(kaClient),
		ouroboros.WithConnectedFunc(func(version uint16, _ handshake.VersionData) {
			connectedVersion = version
		}),
	)
	require.NoError(t, session.Start(context.Background()))
	assert.Equal(t, ouroboros.SessionStateActive, session.State())
	assert.Equal(t, ouroboros_mock.MockProtocolVersionNtN, connectedVersion)
	version, versionData := session.Version()
	assert.Equal(t, ouroboros_mock.MockProtocolVersionNtN, version)
	require.NotNil(t, versionData)
	assert.Equal(t, ouroboros_mock.MockNetworkMagic, versionData.NetworkMagic())
	assert.ErrorIs(t, session.Start(context.Background()), ouroboros.ErrSessionStarted)
	require.NoError(t, kaClient.Ping())
	select {
	case cookie := <-responses:
		assert.Equal(t, uint16(42), cookie)
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive keep-alive response")
	}
	assert.Empty(t, dialer.ConversationErrors())
	require.NoError(t, session.Stop())
	session.Wait()
	assert.Equal(t, ouroboros.SessionStateClosed, session.State())
	assert.NoError(t, session.Err())
	assert.False(t, kaClient.IsAttached())
}

func TestSessionHandshakeRefused(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{
		conversations: [][]ouroboros_mock.ConversationEntry{
			{
				ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
				ouroboros_mock.ConversationEntryHandshakeRefuse,
			},
		},
	}
	defer dialer.Close()
	session := newTestSession(t, dialer)
	err := session.Start(context.Background())
	require.ErrorIs(t, err, ouroboros.ErrHandshakeRefused)
	session.Wait()
	// A refusal is not retried
	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, ouroboros.SessionStateClosed, session.State())
	assert.ErrorIs(t, session.Err(), ouroboros.ErrHandshakeRefused)
	assert.NotNil(t, session.Handshake().Refused())
}

func TestSessionMaxRetries(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{}
	session := newTestSession(t, dialer, ouroboros.WithMaxRetryAttempts(3))
	err := session.Start(context.Background())
	require.ErrorIs(t, err, ouroboros.ErrMaxRetriesExceeded)
	session.Wait()
	assert.Equal(t, 3, dialer.Dials())
}

func TestSessionHandshakeTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{
		conversations: [][]ouroboros_mock.ConversationEntry{
			{
				ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
			},
		},
	}
	defer dialer.Close()
	session := newTestSession(
		t,
		dialer,
		ouroboros.WithMaxRetryAttempts(1),
		ouroboros.WithHandshakeTimeout(50*time.Millisecond),
	)
	err := session.Start(context.Background())
	require.ErrorIs(t, err, ouroboros.ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, ouroboros.ErrHandshakeTimeout)
	session.Wait()
}

func TestSessionStartContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{}
	session := newTestSession(t, dialer, ouroboros.WithRetryDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := session.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
	session.Wait()
}

func TestSessionReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{
		conversations: [][]ouroboros_mock.ConversationEntry{
			{
				ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
				ouroboros_mock.ConversationEntryHandshakeNtNResponse,
				ouroboros_mock.ConversationEntrySleep{Duration: 50 * time.Millisecond},
				ouroboros_mock.ConversationEntryClose{},
			},
			{
				ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
				ouroboros_mock.ConversationEntryHandshakeNtNResponse,
			},
		},
	}
	defer dialer.Close()
	connected := make(chan uint16, 2)
	disconnected := make(chan error, 2)
	session := newTestSession(
		t,
		dialer,
		ouroboros.WithAgents(keepalive.NewClient(nil)),
		ouroboros.WithConnectedFunc(func(version uint16, _ handshake.VersionData) {
			connected <- version
		}),
		ouroboros.WithDisconnectedFunc(func(err error) {
			disconnected <- err
		}),
	)
	require.NoError(t, session.Start(context.Background()))
	for range 2 {
		select {
		case <-connected:
		case <-time.After(5 * time.Second):
			t.Fatal("session did not connect")
		}
	}
	select {
	case err := <-disconnected:
		assert.Error(t, err)
	default:
		t.Fatal("disconnect callback was not called")
	}
	select {
	case err := <-session.ErrorChan():
		assert.Error(t, err)
	default:
		t.Fatal("connection error was not reported")
	}
	assert.Equal(t, 2, dialer.Dials())
	require.NoError(t, session.Stop())
	session.Wait()
	assert.NoError(t, session.Err())
}

func TestSessionNoAutoReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{
		conversations: [][]ouroboros_mock.ConversationEntry{
			{
				ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
				ouroboros_mock.ConversationEntryHandshakeNtNResponse,
				ouroboros_mock.ConversationEntrySleep{Duration: 50 * time.Millisecond},
				ouroboros_mock.ConversationEntryClose{},
			},
		},
	}
	defer dialer.Close()
	session := newTestSession(t, dialer, ouroboros.WithAutoReconnect(false))
	require.NoError(t, session.Start(context.Background()))
	select {
	case <-session.DoneChan():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close")
	}
	session.Wait()
	assert.Equal(t, ouroboros.SessionStateClosed, session.State())
	assert.Error(t, session.Err())
	assert.Equal(t, 1, dialer.Dials())
}

func TestSessionConnectionLoggingDisabled(t *testing.T) {
	defer goleak.VerifyNone(t)
	dialer := &mockDialer{
		conversations: [][]ouroboros_mock.ConversationEntry{
			ouroboros_mock.ConversationHandshakeNtN,
		},
	}
	defer dialer.Close()
	output := &syncBuffer{}
	logger := slog.New(
		slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	session := newTestSession(
		t,
		dialer,
		ouroboros.WithLogger(logger),
		ouroboros.WithConnectionLogging(false),
		ouroboros.WithAutoReconnect(false),
	)
	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Stop())
	session.Wait()
	assert.Empty(t, output.String())
}

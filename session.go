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

// Package ouroboros implements a client session for the Ouroboros network protocol used
// by Cardano nodes.
//
// A Session owns the connection to a node. It runs the version handshake, routes
// messages between the multiplexer and the mini-protocol agents, and reconnects when the
// connection is lost. The agents themselves live in the protocol packages.
package ouroboros

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/ouroboros-agent/muxer"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/handshake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/ouroboros-agent"

var (
	// ErrHandshakeRefused is returned when the peer refuses all proposed versions
	ErrHandshakeRefused = errors.New("handshake refused")
	// ErrHandshakeFailed is returned when the handshake ends without an accepted version
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrHandshakeTimeout is returned when the handshake does not complete in time
	ErrHandshakeTimeout = errors.New("handshake timed out")
	// ErrMaxRetriesExceeded is returned when the configured number of connection attempts fails
	ErrMaxRetriesExceeded = errors.New("maximum connection attempts exceeded")
	// ErrSessionStarted is returned when starting a session more than once
	ErrSessionStarted = errors.New("session already started")
	// ErrSessionClosed is returned when the session is stopped while connecting
	ErrSessionClosed = errors.New("session closed")
	// ErrNoAddress is returned when no address is configured
	ErrNoAddress = errors.New("no address configured")
	// ErrInvalidNetworkMagic is returned when no network magic is configured
	ErrInvalidNetworkMagic = errors.New("invalid network magic")
)

// SessionState is the connection state of a session
type SessionState uint8

const (
	SessionStateIdle SessionState = iota
	SessionStateConnecting
	SessionStateHandshaking
	SessionStateActive
	SessionStateReconnecting
	SessionStateClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionStateIdle:
		return "Idle"
	case SessionStateConnecting:
		return "Connecting"
	case SessionStateHandshaking:
		return "Handshaking"
	case SessionStateActive:
		return "Active"
	case SessionStateReconnecting:
		return "Reconnecting"
	case SessionStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session manages the connection to a node on behalf of a set of mini-protocol agents
type Session struct {
	config        sessionConfig
	logger        *slog.Logger
	connLogger    *slog.Logger
	tracer        trace.Tracer
	metrics       *sessionMetrics
	muxerMetrics  *muxer.Metrics
	handshake     *handshake.Client
	mutex         sync.Mutex
	state         SessionState
	started       bool
	muxer         *muxer.Muxer
	version       uint16
	versionData   handshake.VersionData
	err           error
	errorChan     chan error
	doneChan      chan struct{}
	onceStop      sync.Once
	waitGroup     sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	handshakeDone chan struct{}
}

// NewSession returns a new session with the specified options
func NewSession(options ...SessionOptionFunc) (*Session, error) {
	cfg := newSessionConfig(options...)
	if cfg.address == "" {
		return nil, ErrNoAddress
	}
	if cfg.networkMagic == 0 && cfg.handshake == nil {
		return nil, ErrInvalidNetworkMagic
	}
	s := &Session{
		config:       cfg,
		metrics:      newSessionMetrics(cfg.registry),
		muxerMetrics: muxer.NewMetrics(cfg.registry),
		errorChan:    make(chan error, defaultErrorChanCapacity),
		doneChan:     make(chan struct{}),
	}
	s.connLogger = cfg.logger
	if !cfg.connLogging {
		s.connLogger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.connLogger.With(
		"component", "session",
		"address", cfg.address,
	)
	tracerProvider := cfg.tracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	s.tracer = tracerProvider.Tracer(tracerName)
	s.handshake = cfg.handshake
	if s.handshake == nil {
		versionMap := handshake.GetProtocolVersionMap(
			cfg.nodeToNode,
			cfg.networkMagic,
			true,
			cfg.peerSharing,
			false,
		)
		hsCfg := handshake.NewConfig(handshake.WithProtocolVersionMap(versionMap))
		s.handshake = handshake.NewClient(
			&hsCfg,
			protocol.WithLogger(s.connLogger),
		)
	}
	// Validate the protocol IDs up front
	if _, err := NewRouter(s.logger, s.handshake, cfg.agents...); err != nil {
		return nil, err
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// State returns the current session state
func (s *Session) State() SessionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mutex.Lock()
	old := s.state
	if old == SessionStateClosed {
		s.mutex.Unlock()
		return
	}
	s.state = state
	s.mutex.Unlock()
	s.metrics.state.Set(float64(state))
	if old != state {
		s.logger.Debug(
			"session state changed",
			"old_state", old.String(),
			"new_state", state.String(),
		)
	}
}

// Version returns the negotiated protocol version and version data of the current
// connection. The version data is nil before the first handshake completes
func (s *Session) Version() (uint16, handshake.VersionData) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.version, s.versionData
}

// Handshake returns the handshake client
func (s *Session) Handshake() *handshake.Client {
	return s.handshake
}

// ErrorChan returns the channel for asynchronous errors. Errors are dropped when the
// channel is full
func (s *Session) ErrorChan() <-chan error {
	return s.errorChan
}

// Err returns the error that closed the session, if any
func (s *Session) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// DoneChan returns a channel that is closed when the session is closed
func (s *Session) DoneChan() <-chan struct{} {
	return s.doneChan
}

func (s *Session) sendError(err error) {
	select {
	case s.errorChan <- err:
	default:
		s.logger.Warn("dropping session error", "error", err)
	}
}

// Start connects to the node and completes the handshake. Failed attempts are retried
// according to the retry settings. Once Start returns successfully, lost connections
// are handled in the background
func (s *Session) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.started {
		s.mutex.Unlock()
		return ErrSessionStarted
	}
	s.started = true
	s.mutex.Unlock()
	if err := s.connectLoop(ctx); err != nil {
		s.shutdown(err)
		return err
	}
	s.waitGroup.Add(1)
	go s.supervise()
	return nil
}

// Stop marks the agents done, sends any final messages, and closes the connection. It
// does not wait for background goroutines, use Wait for that
func (s *Session) Stop() error {
	s.shutdown(nil)
	return nil
}

// Wait blocks until the session is closed and its goroutines have exited
func (s *Session) Wait() {
	<-s.doneChan
	s.waitGroup.Wait()
	if mux := s.currentMuxer(); mux != nil {
		mux.Wait()
	}
}

func (s *Session) currentMuxer() *muxer.Muxer {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.muxer
}

func (s *Session) shutdown(err error) {
	s.onceStop.Do(func() {
		graceful := err == nil && s.State() == SessionStateActive
		if graceful {
			for _, agent := range s.config.agents {
				if terminator, ok := agent.(protocol.Terminator); ok {
					terminator.MarkDone()
				}
				if sendErr := agent.SendNextMessage(); sendErr != nil && !errors.Is(sendErr, protocol.ErrNotAttached) {
					s.logger.Debug(
						"failed to send final message",
						"protocol", agent.Name(),
						"error", sendErr,
					)
				}
			}
		}
		s.mutex.Lock()
		s.err = err
		s.state = SessionStateClosed
		mux := s.muxer
		s.mutex.Unlock()
		s.metrics.state.Set(float64(SessionStateClosed))
		close(s.doneChan)
		s.cancel()
		if mux != nil {
			mux.Stop()
		}
		s.detachAgents()
		if err != nil {
			s.logger.Error("session closed", "error", err)
		} else {
			s.logger.Info("session closed")
		}
	})
}

func (s *Session) detachAgents() {
	s.handshake.Detach()
	for _, agent := range s.config.agents {
		agent.Detach()
	}
}

// connectLoop makes connection attempts until one reaches the active state, the
// attempts are exhausted, or the session is stopped
func (s *Session) connectLoop(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := s.connect(ctx, attempt)
		if err == nil {
			return nil
		}
		s.metrics.connectFailures.Inc()
		if errors.Is(err, ErrHandshakeRefused) || errors.Is(err, ErrSessionClosed) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if s.config.maxRetryAttempts > 0 && attempt >= s.config.maxRetryAttempts {
			return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}
		s.logger.Warn(
			"connection attempt failed",
			"attempt", attempt,
			"retry_delay", s.config.retryDelay.String(),
			"error", err,
		)
		if err := s.sleep(ctx, s.config.retryDelay); err != nil {
			return err
		}
	}
}

func (s *Session) sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneChan:
		return ErrSessionClosed
	case <-timer.C:
		return nil
	}
}

// connect makes a single connection attempt, including the handshake
func (s *Session) connect(ctx context.Context, attempt int) (err error) {
	ctx, span := s.tracer.Start(
		ctx,
		"ouroboros.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ouroboros.address", s.config.address),
			attribute.Int("ouroboros.attempt", attempt),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()
	select {
	case <-s.doneChan:
		return ErrSessionClosed
	default:
	}
	s.setState(SessionStateConnecting)
	s.metrics.connectAttempts.Inc()
	s.logger.Info("connecting", "attempt", attempt)
	conn, err := s.config.dialFunc(ctx, s.config.addressNetwork, s.config.address)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	s.setState(SessionStateHandshaking)
	// Agents start every connection from their initial state
	s.handshake.Reset()
	for _, agent := range s.config.agents {
		agent.Reset()
	}
	router, err := NewRouter(s.logger, s.handshake, s.config.agents...)
	if err != nil {
		_ = conn.Close()
		return err
	}
	router.stalledThreshold = s.config.stalledThreshold
	handshakeDone := make(chan struct{}, 1)
	router.handshakeFunc = func() {
		select {
		case handshakeDone <- struct{}{}:
		default:
		}
	}
	mux := muxer.New(
		conn,
		muxer.WithLogger(s.connLogger),
		muxer.WithMetrics(s.muxerMetrics),
	)
	for _, protocolId := range router.ProtocolIds() {
		mux.RegisterProtocol(protocolId)
	}
	s.handshake.Attach(mux)
	for _, agent := range s.config.agents {
		agent.Attach(mux)
	}
	mux.Start(router.HandleSegment)
	fail := func(err error) error {
		mux.Stop()
		mux.Wait()
		s.detachAgents()
		return err
	}
	if err := s.runHandshake(ctx, mux, handshakeDone); err != nil {
		return fail(err)
	}
	version, versionData, accepted := s.handshake.Accepted()
	if !accepted {
		if reason := s.handshake.Refused(); reason != nil {
			s.metrics.handshakeRefusals.Inc()
			return fail(fmt.Errorf("%w: %s", ErrHandshakeRefused, reason.String()))
		}
		return fail(ErrHandshakeFailed)
	}
	span.SetAttributes(attribute.Int("ouroboros.version", int(version)))
	s.mutex.Lock()
	if s.state == SessionStateClosed {
		s.mutex.Unlock()
		return fail(ErrSessionClosed)
	}
	s.muxer = mux
	s.version = version
	s.versionData = versionData
	s.mutex.Unlock()
	s.setState(SessionStateActive)
	s.logger.Info(
		"connected",
		"version", version,
		"network_magic", versionData.NetworkMagic(),
	)
	if s.config.connectedFunc != nil {
		s.config.connectedFunc(version, versionData)
	}
	for _, agent := range s.config.agents {
		if !ProtocolEnabled(version, agent.ProtocolId()) {
			s.logger.Warn(
				"protocol not enabled by negotiated version",
				"protocol", agent.Name(),
				"version", version,
			)
		}
		if err := agent.SendNextMessage(); err != nil && !errors.Is(err, protocol.ErrNotAttached) {
			s.logger.Warn(
				"failed to send message",
				"protocol", agent.Name(),
				"error", err,
			)
		}
	}
	return nil
}

func (s *Session) runHandshake(ctx context.Context, mux *muxer.Muxer, handshakeDone <-chan struct{}) (err error) {
	ctx, span := s.tracer.Start(ctx, "ouroboros.handshake")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if err := s.handshake.SendNextMessage(); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	var timeout <-chan time.Time
	if s.config.handshakeTimeout > 0 {
		timer := time.NewTimer(s.config.handshakeTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-handshakeDone:
		return nil
	case <-mux.DoneChan():
		if err := mux.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		return ErrHandshakeFailed
	case <-timeout:
		return ErrHandshakeTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneChan:
		return ErrSessionClosed
	}
}

// supervise watches the active connection and reconnects when it is lost
func (s *Session) supervise() {
	defer s.waitGroup.Done()
	for {
		mux := s.currentMuxer()
		<-mux.DoneChan()
		mux.Wait()
		err := mux.Err()
		s.detachAgents()
		select {
		case <-s.doneChan:
			if s.config.disconnectedFunc != nil {
				s.config.disconnectedFunc(nil)
			}
			return
		default:
		}
		if err == nil {
			err = ErrSessionClosed
		}
		s.logger.Warn("connection lost", "error", err)
		s.sendError(fmt.Errorf("connection error: %w", err))
		if s.config.disconnectedFunc != nil {
			s.config.disconnectedFunc(err)
		}
		if !s.config.autoReconnect {
			s.shutdown(err)
			return
		}
		s.setState(SessionStateReconnecting)
		s.metrics.reconnects.Inc()
		if err := s.sleep(s.ctx, s.config.retryDelay); err != nil {
			return
		}
		if err := s.connectLoop(s.ctx); err != nil {
			if !errors.Is(err, ErrSessionClosed) && !errors.Is(err, context.Canceled) {
				s.sendError(err)
				s.shutdown(err)
			}
			return
		}
	}
}

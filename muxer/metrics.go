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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "ouroboros"
	MetricsSubsystem = "muxer"
)

// Metrics holds the Prometheus collectors for a muxer. A nil *Metrics is valid and
// records nothing
type Metrics struct {
	segmentsSent        *prometheus.CounterVec
	segmentsReceived    *prometheus.CounterVec
	bytesSent           *prometheus.CounterVec
	bytesReceived       *prometheus.CounterVec
	messagesReassembled *prometheus.CounterVec
	framingErrors       *prometheus.CounterVec
	channelBuffered     *prometheus.GaugeVec
	buffered            prometheus.Gauge
}

// NewMetrics creates the muxer collectors and registers them with the provided
// registerer. A nil registerer creates unregistered collectors
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	labels := []string{"protocol_id"}
	return &Metrics{
		segmentsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "segments_sent_total",
			Help:      "Total number of segments written to the connection",
		}, labels),
		segmentsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "segments_received_total",
			Help:      "Total number of physical segments read from the connection",
		}, labels),
		bytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "payload_bytes_sent_total",
			Help:      "Total number of segment payload bytes written",
		}, labels),
		bytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "payload_bytes_received_total",
			Help:      "Total number of segment payload bytes read",
		}, labels),
		messagesReassembled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "messages_reassembled_total",
			Help:      "Total number of complete messages produced by the demuxer",
		}, labels),
		framingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "framing_errors_total",
			Help:      "Total number of undecodable buffered message payloads",
		}, labels),
		channelBuffered: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "channel_buffered_bytes",
			Help:      "Bytes held by a protocol channel waiting for a complete message",
		}, labels),
		buffered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "buffered_bytes",
			Help:      "Bytes read from the connection that do not yet form a complete segment",
		}),
	}
}

func protocolLabel(protocolId uint16) string {
	return strconv.FormatUint(uint64(protocolId), 10)
}

func (m *Metrics) segmentSent(segment *Segment) {
	if m == nil {
		return
	}
	label := protocolLabel(segment.ProtocolId)
	m.segmentsSent.WithLabelValues(label).Inc()
	m.bytesSent.WithLabelValues(label).Add(float64(len(segment.Payload)))
}

func (m *Metrics) segmentReceived(segment *Segment) {
	if m == nil {
		return
	}
	label := protocolLabel(segment.ProtocolId)
	m.segmentsReceived.WithLabelValues(label).Inc()
	m.bytesReceived.WithLabelValues(label).Add(float64(len(segment.Payload)))
}

func (m *Metrics) messageReassembled(protocolId uint16) {
	if m == nil {
		return
	}
	m.messagesReassembled.WithLabelValues(protocolLabel(protocolId)).Inc()
}

func (m *Metrics) framingError(protocolId uint16) {
	if m == nil {
		return
	}
	m.framingErrors.WithLabelValues(protocolLabel(protocolId)).Inc()
}

func (m *Metrics) channelBufferedBytes(protocolId uint16, n int) {
	if m == nil {
		return
	}
	m.channelBuffered.WithLabelValues(protocolLabel(protocolId)).Set(float64(n))
}

func (m *Metrics) bufferedBytes(n int) {
	if m == nil {
		return
	}
	m.buffered.Set(float64(n))
}

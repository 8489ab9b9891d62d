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

package ouroboros

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsSubsystem = "session"

type sessionMetrics struct {
	connectAttempts   prometheus.Counter
	connectFailures   prometheus.Counter
	reconnects        prometheus.Counter
	handshakeRefusals prometheus.Counter
	state             prometheus.Gauge
}

func newSessionMetrics(registry prometheus.Registerer) *sessionMetrics {
	factory := promauto.With(registry)
	return &sessionMetrics{
		connectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ouroboros",
			Subsystem: metricsSubsystem,
			Name:      "connect_attempts_total",
			Help:      "Total number of connection attempts",
		}),
		connectFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ouroboros",
			Subsystem: metricsSubsystem,
			Name:      "connect_failures_total",
			Help:      "Total number of connection attempts that did not reach the active state",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ouroboros",
			Subsystem: metricsSubsystem,
			Name:      "reconnects_total",
			Help:      "Total number of reconnects after losing an active connection",
		}),
		handshakeRefusals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ouroboros",
			Subsystem: metricsSubsystem,
			Name:      "handshake_refusals_total",
			Help:      "Total number of handshakes refused by the peer",
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ouroboros",
			Subsystem: metricsSubsystem,
			Name:      "state",
			Help:      "Current session state",
		}),
	}
}

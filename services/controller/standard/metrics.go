// Copyright © 2025 Accord Labs Limited.
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

package standard

import (
	"context"
	"time"

	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/accordlabs/accord/services/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var cycleTimer prometheus.Histogram
var cyclesCompleted *prometheus.CounterVec
var submissions *prometheus.CounterVec
var consensusAlerts prometheus.Counter
var bunkerSuppressions prometheus.Counter
var currentFrame prometheus.Gauge
var frameState prometheus.Gauge

func registerMetrics(ctx context.Context, monitor metrics.Service) error {
	if cycleTimer != nil {
		// Already registered.
		return nil
	}
	if monitor == nil {
		// No monitor.
		return nil
	}
	if monitor.Presenter() == "prometheus" {
		return registerPrometheusMetrics(ctx)
	}
	return nil
}

func registerPrometheusMetrics(_ context.Context) error {
	cycleTimer = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "cycle_duration_seconds",
		Help:      "The time taken to run an oracle cycle.",
		Buckets: []float64{
			0.5, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512,
		},
	})
	if err := prometheus.Register(cycleTimer); err != nil {
		return err
	}

	cyclesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "cycles_total",
		Help:      "The number of oracle cycles.",
	}, []string{"result"})
	if err := prometheus.Register(cyclesCompleted); err != nil {
		return err
	}

	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "submissions_total",
		Help:      "The number of transactions sent, by submission type.",
	}, []string{"type"})
	if err := prometheus.Register(submissions); err != nil {
		return err
	}

	consensusAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "consensus_alerts_total",
		Help:      "The number of cycles ending in a consensus alert.",
	})
	if err := prometheus.Register(consensusAlerts); err != nil {
		return err
	}

	bunkerSuppressions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "bunker_suppressions_total",
		Help:      "The number of submissions suppressed by bunker mode.",
	})
	if err := prometheus.Register(bunkerSuppressions); err != nil {
		return err
	}

	currentFrame = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "frame",
		Help:      "The index of the frame being processed.",
	})
	if err := prometheus.Register(currentFrame); err != nil {
		return err
	}

	frameState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "accord",
		Subsystem: "controller",
		Name:      "frame_state",
		Help:      "The lifecycle state of the frame being processed.",
	})
	return prometheus.Register(frameState)
}

// cycleCompleted is called when a cycle has completed.
func cycleCompleted(started time.Time, result string) {
	if cyclesCompleted == nil {
		return
	}

	cyclesCompleted.WithLabelValues(result).Inc()
	// Only log times for successful cycles.
	if result == "succeeded" {
		cycleTimer.Observe(time.Since(started).Seconds())
	}
}

// submissionCompleted is called when a transaction has been sent.
func submissionCompleted(submissionType string) {
	if submissions == nil {
		return
	}

	submissions.WithLabelValues(submissionType).Inc()
}

// consensusAlert is called when a cycle ends in a consensus alert.
func consensusAlert() {
	if consensusAlerts == nil {
		return
	}

	consensusAlerts.Inc()
}

// bunkerSuppressed is called when bunker mode suppresses a submission.
func bunkerSuppressed() {
	if bunkerSuppressions == nil {
		return
	}

	bunkerSuppressions.Inc()
}

// monitorFrame is called when a cycle starts work on a frame.
func monitorFrame(index uint64) {
	if currentFrame == nil {
		return
	}

	currentFrame.Set(float64(index))
}

// monitorFrameState is called when the tracker reports a frame's state.
func monitorFrameState(state consensustracker.State) {
	if frameState == nil {
		return
	}

	frameState.Set(float64(state))
}

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

	"github.com/accordlabs/accord/services/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var detectionTimer prometheus.Histogram
var detectionsCompleted *prometheus.CounterVec
var bunkerMode prometheus.Gauge

func registerMetrics(ctx context.Context, monitor metrics.Service) error {
	if detectionTimer != nil {
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
	detectionTimer =
		prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accord",
			Subsystem: "bunker",
			Name:      "detection_duration_seconds",
			Help:      "The time taken to detect bunker mode.",
			Buckets: []float64{
				0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32,
			},
		})
	if err := prometheus.Register(detectionTimer); err != nil {
		return err
	}

	detectionsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "bunker",
		Name:      "detections_total",
		Help:      "The number of bunker mode detections.",
	}, []string{"result"})
	if err := prometheus.Register(detectionsCompleted); err != nil {
		return err
	}

	bunkerMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "accord",
		Subsystem: "bunker",
		Name:      "mode",
		Help:      "1 if the protocol is in bunker mode, otherwise 0.",
	})
	return prometheus.Register(bunkerMode)
}

// detectionCompleted is called when a bunker mode detection has completed.
func detectionCompleted(started time.Time, result string) {
	if detectionsCompleted == nil {
		return
	}

	detectionsCompleted.WithLabelValues(result).Inc()
	// Only log times for successful detections.
	if result == "succeeded" {
		detectionTimer.Observe(time.Since(started).Seconds())
	}
}

// bunkerModeSet reports the detected bunker state.
func bunkerModeSet(active bool) {
	if bunkerMode == nil {
		return
	}

	if active {
		bunkerMode.Set(1)
	} else {
		bunkerMode.Set(0)
	}
}

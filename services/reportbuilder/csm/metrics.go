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

package csm

import (
	"context"
	"time"

	"github.com/accordlabs/accord/services/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var buildTimer prometheus.Histogram
var buildsCompleted *prometheus.CounterVec
var unprocessedEpochs prometheus.Gauge

func registerMetrics(ctx context.Context, monitor metrics.Service) error {
	if buildTimer != nil {
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
	buildTimer =
		prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accord",
			Subsystem: "feereport",
			Name:      "build_duration_seconds",
			Help:      "The time taken to build the fee report.",
			Buckets: []float64{
				0.5, 1, 2, 4, 8, 16, 32, 64, 128,
			},
		})
	if err := prometheus.Register(buildTimer); err != nil {
		return err
	}

	buildsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "feereport",
		Name:      "builds_total",
		Help:      "The number of fee report builds.",
	}, []string{"result"})
	if err := prometheus.Register(buildsCompleted); err != nil {
		return err
	}

	unprocessedEpochs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "accord",
		Subsystem: "feereport",
		Name:      "unprocessed_epochs",
		Help:      "The number of frame epochs still to be processed.",
	})
	return prometheus.Register(unprocessedEpochs)
}

// buildCompleted is called when a report build has completed.
func buildCompleted(started time.Time, result string) {
	if buildsCompleted == nil {
		return
	}

	buildsCompleted.WithLabelValues(result).Inc()
	// Only log times for successful builds.
	if result == "succeeded" {
		buildTimer.Observe(time.Since(started).Seconds())
	}
}

// monitorUnprocessedEpochs reports the collection backlog.
func monitorUnprocessedEpochs(epochs int) {
	if unprocessedEpochs == nil {
		return
	}

	unprocessedEpochs.Set(float64(epochs))
}

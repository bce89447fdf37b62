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

package http

import (
	"context"
	"time"

	"github.com/accordlabs/accord/services/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var requestTimer *prometheus.HistogramVec
var requestsCompleted *prometheus.CounterVec

func registerMetrics(ctx context.Context, monitor metrics.Service) error {
	if requestTimer != nil {
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
	requestTimer =
		prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "accord",
			Subsystem: "keysapi",
			Name:      "request_duration_seconds",
			Help:      "The time taken to fetch data from the keys API.",
			Buckets: []float64{
				0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0,
				1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.8, 1.9, 2.0,
			},
		}, []string{"endpoint"})
	if err := prometheus.Register(requestTimer); err != nil {
		return err
	}

	requestsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "keysapi",
		Name:      "requests_total",
		Help:      "The number of keys API requests.",
	}, []string{"endpoint", "result"})
	return prometheus.Register(requestsCompleted)
}

// requestCompleted is called when a keys API request has completed.
func requestCompleted(started time.Time, endpoint string, result string) {
	if requestsCompleted == nil {
		return
	}

	requestsCompleted.WithLabelValues(endpoint, result).Inc()
	// Only log times for successful requests.
	if result == "succeeded" {
		requestTimer.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	}
}

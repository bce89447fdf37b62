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

package pebble

import (
	"context"

	"github.com/accordlabs/accord/services/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var operationsProcessed *prometheus.CounterVec

func registerMetrics(ctx context.Context, monitor metrics.Service) error {
	if operationsProcessed != nil {
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
	operationsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accord",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "The number of cache operations.",
	}, []string{"operation", "result"})
	return prometheus.Register(operationsProcessed)
}

func monitorOperation(operation string, result string) {
	if operationsProcessed == nil {
		return
	}
	operationsProcessed.WithLabelValues(operation, result).Inc()
}

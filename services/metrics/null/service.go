// Copyright © 2020, 2021 Accord Labs Limited.
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

// Package null is a null metrics logger.
package null

import (
	"context"
	"time"
)

// Service is a metrics service that drops metrics.
type Service struct{}

// New creates a new null metrics service.
func New(_ context.Context) *Service {
	return &Service{}
}

// Presenter provides the presenter for this service.
func (s *Service) Presenter() string {
	return "null"
}

// JobScheduled is called when a job is scheduled.
func (s *Service) JobScheduled(_ string) {}

// JobCancelled is called when a scheduled job is cancelled.
func (s *Service) JobCancelled(_ string) {}

// JobStartedOnTimer is called when a scheduled job is started due to meeting its time.
func (s *Service) JobStartedOnTimer(_ string) {}

// JobStartedOnSignal is called when a scheduled job is started due to being manually signal.
func (s *Service) JobStartedOnSignal(_ string) {}

// ClientOperation provides a generic monitor for client operations.
func (s *Service) ClientOperation(_ string, _ string, _ bool, _ time.Duration) {
}

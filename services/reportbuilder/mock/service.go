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

// Package mock provides a mock report builder for testing.
package mock

import (
	"context"
	"errors"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/reportbuilder"
)

// Service is a mock report builder returning a canned report.
type Service struct {
	module           string
	consensusVersion uint64
	report           *reportbuilder.Report
}

// New creates a new mock report builder returning the given report.
func New(module string, consensusVersion uint64, report *reportbuilder.Report) *Service {
	return &Service{
		module:           module,
		consensusVersion: consensusVersion,
		report:           report,
	}
}

// Module is a mock.
func (s *Service) Module() string {
	return s.module
}

// ConsensusVersion is a mock.
func (s *Service) ConsensusVersion() uint64 {
	return s.consensusVersion
}

// Build is a mock.
func (s *Service) Build(_ context.Context, _ *framecalculator.Frame, _ *blockstamp.ReferenceBlockStamp) (*reportbuilder.Report, error) {
	return s.report, nil
}

// NotReadyService is a mock report builder whose report is never ready.
type NotReadyService struct {
	module           string
	consensusVersion uint64
}

// NewNotReady creates a new mock report builder that always returns ErrNotReady.
func NewNotReady(module string, consensusVersion uint64) *NotReadyService {
	return &NotReadyService{
		module:           module,
		consensusVersion: consensusVersion,
	}
}

// Module is a mock.
func (s *NotReadyService) Module() string {
	return s.module
}

// ConsensusVersion is a mock.
func (s *NotReadyService) ConsensusVersion() uint64 {
	return s.consensusVersion
}

// Build is a mock.
func (s *NotReadyService) Build(_ context.Context, _ *framecalculator.Frame, _ *blockstamp.ReferenceBlockStamp) (*reportbuilder.Report, error) {
	return nil, reportbuilder.ErrNotReady
}

// ErroringService is a mock report builder that returns errors.
type ErroringService struct {
	module           string
	consensusVersion uint64
}

// NewErroring creates a new mock report builder that returns errors.
func NewErroring(module string, consensusVersion uint64) *ErroringService {
	return &ErroringService{
		module:           module,
		consensusVersion: consensusVersion,
	}
}

// Module is a mock.
func (s *ErroringService) Module() string {
	return s.module
}

// ConsensusVersion is a mock.
func (s *ErroringService) ConsensusVersion() uint64 {
	return s.consensusVersion
}

// Build is a mock.
func (s *ErroringService) Build(_ context.Context, _ *framecalculator.Frame, _ *blockstamp.ReferenceBlockStamp) (*reportbuilder.Report, error) {
	return nil, errors.New("error")
}

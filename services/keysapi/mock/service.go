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

package mock

import (
	"context"
	"errors"
	"fmt"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/keysapi"
)

// Service is a mock keys API service.
type Service struct {
	modules   []*keysapi.Module
	operators map[uint64][]*keysapi.Operator
	keys      map[uint64][]*keysapi.OperatorKey
}

// New creates a new mock keys API service.
func New() *Service {
	return &Service{
		operators: make(map[uint64][]*keysapi.Operator),
		keys:      make(map[uint64][]*keysapi.OperatorKey),
	}
}

// AddModule adds a staking module with its operators and keys to the mock.
func (s *Service) AddModule(module *keysapi.Module, operators []*keysapi.Operator, keys []*keysapi.OperatorKey) {
	s.modules = append(s.modules, module)
	s.operators[module.ID] = operators
	s.keys[module.ID] = keys
}

// Modules is a mock.
func (s *Service) Modules(_ context.Context, _ *blockstamp.BlockStamp) ([]*keysapi.Module, error) {
	return s.modules, nil
}

// Operators is a mock.
func (s *Service) Operators(_ context.Context, _ *blockstamp.BlockStamp, moduleID uint64) ([]*keysapi.Operator, error) {
	operators, exists := s.operators[moduleID]
	if !exists {
		return nil, fmt.Errorf("unknown module %d", moduleID)
	}

	return operators, nil
}

// OperatorKeys is a mock.
func (s *Service) OperatorKeys(_ context.Context, _ *blockstamp.BlockStamp, moduleID uint64) ([]*keysapi.OperatorKey, error) {
	keys, exists := s.keys[moduleID]
	if !exists {
		return nil, fmt.Errorf("unknown module %d", moduleID)
	}

	return keys, nil
}

// Status is a mock.
func (*Service) Status(_ context.Context) (*keysapi.Status, error) {
	return &keysapi.Status{
		AppVersion: "mock",
		ChainID:    1,
	}, nil
}

// ErroringService is a mock keys API service that returns errors.
type ErroringService struct{}

// NewErroring creates a new mock keys API service that returns errors.
func NewErroring() *ErroringService {
	return &ErroringService{}
}

// Modules is a mock.
func (*ErroringService) Modules(_ context.Context, _ *blockstamp.BlockStamp) ([]*keysapi.Module, error) {
	return nil, errors.New("error")
}

// Operators is a mock.
func (*ErroringService) Operators(_ context.Context, _ *blockstamp.BlockStamp, _ uint64) ([]*keysapi.Operator, error) {
	return nil, errors.New("error")
}

// OperatorKeys is a mock.
func (*ErroringService) OperatorKeys(_ context.Context, _ *blockstamp.BlockStamp, _ uint64) ([]*keysapi.OperatorKey, error) {
	return nil, errors.New("error")
}

// Status is a mock.
func (*ErroringService) Status(_ context.Context) (*keysapi.Status, error) {
	return nil, errors.New("error")
}

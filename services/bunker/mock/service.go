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

	"github.com/accordlabs/accord/services/blockstamp"
)

// Service is a mock bunker mode detector.
type Service struct {
	bunker bool
}

// New creates a new mock bunker mode detector reporting the given mode.
func New(bunker bool) *Service {
	return &Service{
		bunker: bunker,
	}
}

// IsBunkerMode is a mock.
func (s *Service) IsBunkerMode(_ context.Context, _ *blockstamp.ReferenceBlockStamp) (bool, error) {
	return s.bunker, nil
}

// ErroringService is a mock bunker mode detector that returns errors.
type ErroringService struct{}

// NewErroring creates a new mock bunker mode detector that returns errors.
func NewErroring() *ErroringService {
	return &ErroringService{}
}

// IsBunkerMode is a mock.
func (*ErroringService) IsBunkerMode(_ context.Context, _ *blockstamp.ReferenceBlockStamp) (bool, error) {
	return false, errors.New("error")
}

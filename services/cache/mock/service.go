// Copyright © 2022, 2025 Accord Labs Limited.
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
	"sync"

	cache "github.com/accordlabs/accord/services/cache"
)

// Service is a mock key-value store, held in memory.
type Service struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New creates a new mock store.
func New() *Service {
	return &Service{
		values: make(map[string][]byte),
	}
}

// Fetch returns the value stored for the given key.
func (s *Service) Fetch(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return nil, cache.ErrNotFound
	}

	res := make([]byte, len(value))
	copy(res, value)
	return res, nil
}

// Store stores the value for the given key, overwriting any existing value.
func (s *Service) Store(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

// Delete removes the value for the given key.
func (s *Service) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

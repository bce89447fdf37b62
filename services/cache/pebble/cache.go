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

	"github.com/accordlabs/accord/services/cache"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Fetch returns the value stored for the given key.
func (s *Service) Fetch(_ context.Context, key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		monitorOperation("fetch", "not found")
		return nil, cache.ErrNotFound
	}
	if err != nil {
		monitorOperation("fetch", "failed")
		return nil, errors.Wrap(err, "failed to fetch value")
	}
	defer closer.Close()

	// The returned slice is only valid until the closer is closed.
	res := make([]byte, len(value))
	copy(res, value)

	monitorOperation("fetch", "succeeded")
	return res, nil
}

// Store stores the value for the given key, overwriting any existing value.
func (s *Service) Store(_ context.Context, key string, value []byte) error {
	// Sync so that the value survives a process crash once we return.
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		monitorOperation("store", "failed")
		return errors.Wrap(err, "failed to store value")
	}

	monitorOperation("store", "succeeded")
	return nil
}

// Delete removes the value for the given key.
func (s *Service) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		monitorOperation("delete", "failed")
		return errors.Wrap(err, "failed to delete value")
	}

	monitorOperation("delete", "succeeded")
	return nil
}

// Copyright © 2024, 2025 Accord Labs Limited.
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

// Package cache defines the interface to a persistent key-value store,
// used to carry report builder state across oracle cycles and process
// restarts.
package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested key is not in the store.
var ErrNotFound = errors.New("not found")

// Service is the interface to a persistent key-value store.
//
// Keys are namespaced strings, for example "csm/frames/". Values are opaque
// to the store and carry their own schema version, so a reader can reject
// state written by an incompatible version of the module.
type Service interface {
	// Fetch returns the value stored for the given key.
	// It returns ErrNotFound if the key is not present.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Store stores the value for the given key, overwriting any existing
	// value. The value is durable once Store returns.
	Store(ctx context.Context, key string, value []byte) error

	// Delete removes the value for the given key. Deleting a key that is
	// not present is not an error.
	Delete(ctx context.Context, key string) error
}

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

// Package pebble is a persistent key-value store backed by a pebble
// database on the local filesystem.
package pebble

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// Service is a persistent key-value store backed by a pebble database.
type Service struct {
	db *pebble.DB
}

// module-wide log.
var log zerolog.Logger

// New creates a new pebble-backed store.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "cache").Str("impl", "pebble").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.New("failed to register metrics")
	}

	db, err := pebble.Open(parameters.path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	log.Trace().Str("path", parameters.path).Msg("Opened database")

	s := &Service{
		db: db,
	}

	return s, nil
}

// Close closes the store, flushing outstanding writes.
func (s *Service) Close() error {
	return s.db.Close()
}

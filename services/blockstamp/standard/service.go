// Copyright © 2024 Accord Labs Limited.
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

// Package standard is a block stamp resolver that obtains blocks from a beacon
// node, walking forward over missed slots as required.
package standard

import (
	"context"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/accordlabs/accord/services/chaintime"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// Service is a block stamp resolver.
type Service struct {
	log                        zerolog.Logger
	chainTime                  chaintime.Service
	beaconBlockHeadersProvider eth2client.BeaconBlockHeadersProvider
	signedBeaconBlockProvider  eth2client.SignedBeaconBlockProvider
	stamps                     *lru.Cache
}

// New creates a new block stamp resolver.
func New(_ context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log := zerologger.With().Str("service", "blockstamp").Str("impl", "standard").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	stamps, err := lru.New(parameters.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stamp cache")
	}

	s := &Service{
		log:                        log,
		chainTime:                  parameters.chainTime,
		beaconBlockHeadersProvider: parameters.beaconBlockHeadersProvider,
		signedBeaconBlockProvider:  parameters.signedBeaconBlockProvider,
		stamps:                     stamps,
	}

	return s, nil
}

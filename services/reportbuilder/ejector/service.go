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

// Package ejector builds the exit bus oracle's report: the next validators
// each node operator should exit, selected from the largest operators first
// and encoded for the exit bus contract.
package ejector

import (
	"context"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/keysapi"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// consensusVersion is the version of the report semantics this builder implements.
const consensusVersion = 1

// DemandProvider is the interface for providing the number of validator
// exits required to cover pending withdrawals.  Implementations must be
// deterministic over the stamp, as every oracle member's selection depends
// on agreeing on the same demand.
type DemandProvider interface {
	// ExitDemand returns the number of validator exits required at the
	// given stamp.
	ExitDemand(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) (uint64, error)
}

// Service is an exit bus oracle report builder.
type Service struct {
	validatorsProvider   eth2client.ValidatorsProvider
	keysAPI              keysapi.Service
	exitRequests         contracts.LastRequestedValidatorIndicesProvider
	demand               DemandProvider
	maxRequestsPerReport uint64
}

// module-wide log.
var log zerolog.Logger

// New creates a new exit bus report builder.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "reportbuilder").Str("impl", "ejector").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	s := &Service{
		validatorsProvider:   parameters.validatorsProvider,
		keysAPI:              parameters.keysAPI,
		exitRequests:         parameters.exitRequests,
		demand:               parameters.demand,
		maxRequestsPerReport: parameters.maxRequestsPerReport,
	}

	return s, nil
}

// Module returns the name of the oracle module the builder reports for.
func (*Service) Module() string {
	return "ejector"
}

// ConsensusVersion returns the version of the report semantics the builder implements.
func (*Service) ConsensusVersion() uint64 {
	return consensusVersion
}

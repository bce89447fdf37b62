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

// Package accounting builds the accounting oracle's report: the protocol's
// consensus layer validator count and balance, vault balances, newly exited
// validator totals and the stuck and exited extra data, all read at the
// frame's reference stamp.
package accounting

import (
	"context"
	"math/big"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/bunker"
	"github.com/accordlabs/accord/services/keysapi"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// consensusVersion is the version of the report semantics this builder implements.
const consensusVersion = 1

// BalanceAtProvider is the interface for providing execution layer account
// balances.  It is satisfied by ethclient.Client.
type BalanceAtProvider interface {
	// BalanceAt returns the wei balance of the given account at the given
	// block number.
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Service is an accounting oracle report builder.
type Service struct {
	validatorsProvider       eth2client.ValidatorsProvider
	keysAPI                  keysapi.Service
	blockStamps              blockstamp.Service
	balanceProvider          BalanceAtProvider
	withdrawalVault          common.Address
	elRewardsVault           common.Address
	exitRequests             contracts.LastRequestedValidatorIndicesProvider
	bunker                   bunker.Service
	stuckValidatorDelaySlots uint64
	maxItemsPerChunk         uint64
	processConcurrency       int64
}

// module-wide log.
var log zerolog.Logger

// New creates a new accounting report builder.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "reportbuilder").Str("impl", "accounting").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	s := &Service{
		validatorsProvider:       parameters.validatorsProvider,
		keysAPI:                  parameters.keysAPI,
		blockStamps:              parameters.blockStamps,
		balanceProvider:          parameters.balanceProvider,
		withdrawalVault:          parameters.withdrawalVault,
		elRewardsVault:           parameters.elRewardsVault,
		exitRequests:             parameters.exitRequests,
		bunker:                   parameters.bunker,
		stuckValidatorDelaySlots: parameters.stuckValidatorDelaySlots,
		maxItemsPerChunk:         parameters.maxItemsPerChunk,
		processConcurrency:       parameters.processConcurrency,
	}

	return s, nil
}

// Module returns the name of the oracle module the builder reports for.
func (*Service) Module() string {
	return "accounting"
}

// ConsensusVersion returns the version of the report semantics the builder implements.
func (*Service) ConsensusVersion() uint64 {
	return consensusVersion
}

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

// Package standard is a bunker mode detector driven by consensus layer rebase
// anomalies.  It measures the protocol's rebase over the window between the
// previous processed report and the current reference stamp, crediting the
// withdrawal vault for skimmed rewards, and engages bunker mode when the
// rebase is negative or sustains below the normal per-validator daily reward.
package standard

import (
	"context"
	"math/big"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/accordlabs/accord/services/keysapi"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

const (
	// maxEffectiveBalanceGwei is the principal deposited for each validator,
	// discounted from the rebase for validators activated inside the window.
	maxEffectiveBalanceGwei = 32000000000
	// minNormalRebaseGweiPerValidatorDay is the daily per-validator rebase
	// below which the consensus layer is considered to be leaking.  Normal
	// mainnet rewards run well above this floor, so only a sustained loss of
	// most rewards trips it.
	minNormalRebaseGweiPerValidatorDay = 1000000
)

// BalanceAtProvider is the interface for providing execution layer account
// balances.  It is satisfied by ethclient.Client.
type BalanceAtProvider interface {
	// BalanceAt returns the wei balance of the given account at the given
	// block number.
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Service is a bunker mode detector.
type Service struct {
	chainTime          chaintime.Service
	validatorsProvider eth2client.ValidatorsProvider
	keysAPI            keysapi.Service
	blockStamps        blockstamp.Service
	lastProcessingSlot contracts.LastProcessingRefSlotProvider
	balanceProvider    BalanceAtProvider
	vaultWithdrawals   contracts.VaultWithdrawalsProvider
	withdrawalVault    common.Address
}

// module-wide log.
var log zerolog.Logger

// New creates a new bunker mode detector.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "bunker").Str("impl", "standard").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	s := &Service{
		chainTime:          parameters.chainTime,
		validatorsProvider: parameters.validatorsProvider,
		keysAPI:            parameters.keysAPI,
		blockStamps:        parameters.blockStamps,
		lastProcessingSlot: parameters.lastProcessingSlot,
		balanceProvider:    parameters.balanceProvider,
		vaultWithdrawals:   parameters.vaultWithdrawals,
		withdrawalVault:    parameters.withdrawalVault,
	}

	return s, nil
}

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

package accounting

import (
	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/bunker"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/accordlabs/accord/services/metrics"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel                 zerolog.Level
	monitor                  metrics.Service
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

// Parameter is the interface for service parameters.
type Parameter interface {
	apply(*parameters)
}

type parameterFunc func(*parameters)

func (f parameterFunc) apply(p *parameters) {
	f(p)
}

// WithLogLevel sets the log level for the module.
func WithLogLevel(logLevel zerolog.Level) Parameter {
	return parameterFunc(func(p *parameters) {
		p.logLevel = logLevel
	})
}

// WithMonitor sets the monitor for the module.
func WithMonitor(monitor metrics.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.monitor = monitor
	})
}

// WithValidatorsProvider sets the validators provider.
func WithValidatorsProvider(provider eth2client.ValidatorsProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.validatorsProvider = provider
	})
}

// WithKeysAPI sets the keys API service.
func WithKeysAPI(keysAPI keysapi.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.keysAPI = keysAPI
	})
}

// WithBlockStamps sets the block stamp resolver.
func WithBlockStamps(blockStamps blockstamp.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.blockStamps = blockStamps
	})
}

// WithBalanceProvider sets the execution layer balance provider.
func WithBalanceProvider(provider BalanceAtProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.balanceProvider = provider
	})
}

// WithWithdrawalVault sets the address of the withdrawal vault.
func WithWithdrawalVault(address common.Address) Parameter {
	return parameterFunc(func(p *parameters) {
		p.withdrawalVault = address
	})
}

// WithELRewardsVault sets the address of the execution layer rewards vault.
func WithELRewardsVault(address common.Address) Parameter {
	return parameterFunc(func(p *parameters) {
		p.elRewardsVault = address
	})
}

// WithExitRequests sets the provider of exit request watermarks.
func WithExitRequests(provider contracts.LastRequestedValidatorIndicesProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.exitRequests = provider
	})
}

// WithBunker sets the bunker mode detector.
func WithBunker(bunker bunker.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.bunker = bunker
	})
}

// WithStuckValidatorDelaySlots sets the number of slots an exit request must
// have been outstanding before an unexited validator is counted as stuck.
func WithStuckValidatorDelaySlots(slots uint64) Parameter {
	return parameterFunc(func(p *parameters) {
		p.stuckValidatorDelaySlots = slots
	})
}

// WithMaxItemsPerChunk sets the maximum number of extra data items submitted
// in a single transaction.
func WithMaxItemsPerChunk(items uint64) Parameter {
	return parameterFunc(func(p *parameters) {
		p.maxItemsPerChunk = items
	})
}

// WithProcessConcurrency sets the concurrency for processing module keys.
func WithProcessConcurrency(concurrency int64) Parameter {
	return parameterFunc(func(p *parameters) {
		p.processConcurrency = concurrency
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel:                 zerolog.GlobalLevel(),
		stuckValidatorDelaySlots: 7200,
		maxItemsPerChunk:         8,
		processConcurrency:       2,
	}
	for _, p := range params {
		if params != nil {
			p.apply(&parameters)
		}
	}

	if parameters.monitor == nil {
		return nil, errors.New("no monitor specified")
	}
	if parameters.validatorsProvider == nil {
		return nil, errors.New("no validators provider specified")
	}
	if parameters.keysAPI == nil {
		return nil, errors.New("no keys API service specified")
	}
	if parameters.blockStamps == nil {
		return nil, errors.New("no block stamp resolver specified")
	}
	if parameters.balanceProvider == nil {
		return nil, errors.New("no balance provider specified")
	}
	if parameters.withdrawalVault == (common.Address{}) {
		return nil, errors.New("no withdrawal vault address specified")
	}
	if parameters.elRewardsVault == (common.Address{}) {
		return nil, errors.New("no execution rewards vault address specified")
	}
	if parameters.exitRequests == nil {
		return nil, errors.New("no exit requests provider specified")
	}
	if parameters.bunker == nil {
		return nil, errors.New("no bunker mode detector specified")
	}
	if parameters.stuckValidatorDelaySlots == 0 {
		return nil, errors.New("no stuck validator delay specified")
	}
	if parameters.maxItemsPerChunk == 0 {
		return nil, errors.New("no maximum items per chunk specified")
	}
	if parameters.processConcurrency == 0 {
		return nil, errors.New("no process concurrency specified")
	}

	return &parameters, nil
}

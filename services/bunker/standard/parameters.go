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

package standard

import (
	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/accordlabs/accord/services/metrics"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel           zerolog.Level
	monitor            metrics.Service
	chainTime          chaintime.Service
	validatorsProvider eth2client.ValidatorsProvider
	keysAPI            keysapi.Service
	blockStamps        blockstamp.Service
	lastProcessingSlot contracts.LastProcessingRefSlotProvider
	balanceProvider    BalanceAtProvider
	vaultWithdrawals   contracts.VaultWithdrawalsProvider
	withdrawalVault    common.Address
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

// WithChainTime sets the chain time service.
func WithChainTime(chainTime chaintime.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.chainTime = chainTime
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

// WithLastProcessingSlot sets the provider of the last processed reference slot.
func WithLastProcessingSlot(provider contracts.LastProcessingRefSlotProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.lastProcessingSlot = provider
	})
}

// WithBalanceProvider sets the execution layer balance provider.
func WithBalanceProvider(provider BalanceAtProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.balanceProvider = provider
	})
}

// WithVaultWithdrawals sets the provider of rebase distribution withdrawals.
func WithVaultWithdrawals(provider contracts.VaultWithdrawalsProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.vaultWithdrawals = provider
	})
}

// WithWithdrawalVault sets the address of the withdrawal vault.
func WithWithdrawalVault(address common.Address) Parameter {
	return parameterFunc(func(p *parameters) {
		p.withdrawalVault = address
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel: zerolog.GlobalLevel(),
	}
	for _, p := range params {
		if params != nil {
			p.apply(&parameters)
		}
	}

	if parameters.monitor == nil {
		return nil, errors.New("no monitor specified")
	}
	if parameters.chainTime == nil {
		return nil, errors.New("no chain time service specified")
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
	if parameters.lastProcessingSlot == nil {
		return nil, errors.New("no last processing slot provider specified")
	}
	if parameters.balanceProvider == nil {
		return nil, errors.New("no balance provider specified")
	}
	if parameters.vaultWithdrawals == nil {
		return nil, errors.New("no vault withdrawals provider specified")
	}
	if parameters.withdrawalVault == (common.Address{}) {
		return nil, errors.New("no withdrawal vault address specified")
	}

	return &parameters, nil
}

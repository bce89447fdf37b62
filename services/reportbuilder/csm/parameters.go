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

package csm

import (
	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/cache"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/accordlabs/accord/services/metrics"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel           zerolog.Level
	monitor            metrics.Service
	chainTime          chaintime.Service
	validatorsProvider eth2client.ValidatorsProvider
	committeesProvider eth2client.BeaconCommitteesProvider
	blocksProvider     eth2client.SignedBeaconBlockProvider
	keysAPI            keysapi.Service
	blockStamps        blockstamp.Service
	cache              cache.Service
	moduleID           uint64
	perfLeeway         contracts.PerfLeewayProvider
	pendingShares      contracts.PendingSharesProvider
	publisher          TreePublisher
	processConcurrency int64
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

// WithBeaconCommitteesProvider sets the beacon committees provider.
func WithBeaconCommitteesProvider(provider eth2client.BeaconCommitteesProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.committeesProvider = provider
	})
}

// WithSignedBeaconBlockProvider sets the signed beacon block provider.
func WithSignedBeaconBlockProvider(provider eth2client.SignedBeaconBlockProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.blocksProvider = provider
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

// WithCache sets the store the collection state is persisted in.
func WithCache(cache cache.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.cache = cache
	})
}

// WithModuleID sets the staking router identifier of the permissionless module.
func WithModuleID(moduleID uint64) Parameter {
	return parameterFunc(func(p *parameters) {
		p.moduleID = moduleID
	})
}

// WithPerfLeeway sets the provider of the performance leeway.
func WithPerfLeeway(provider contracts.PerfLeewayProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.perfLeeway = provider
	})
}

// WithPendingShares sets the provider of the fee shares accrued for distribution.
func WithPendingShares(provider contracts.PendingSharesProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.pendingShares = provider
	})
}

// WithTreePublisher sets the publisher for the distribution tree and log.
// Without one the report carries empty content identifiers.
func WithTreePublisher(publisher TreePublisher) Parameter {
	return parameterFunc(func(p *parameters) {
		p.publisher = publisher
	})
}

// WithProcessConcurrency sets the number of epochs processed concurrently
// within a checkpoint.
func WithProcessConcurrency(concurrency int64) Parameter {
	return parameterFunc(func(p *parameters) {
		p.processConcurrency = concurrency
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel:           zerolog.GlobalLevel(),
		processConcurrency: 2,
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
	if parameters.committeesProvider == nil {
		return nil, errors.New("no beacon committees provider specified")
	}
	if parameters.blocksProvider == nil {
		return nil, errors.New("no signed beacon block provider specified")
	}
	if parameters.keysAPI == nil {
		return nil, errors.New("no keys API service specified")
	}
	if parameters.blockStamps == nil {
		return nil, errors.New("no block stamp resolver specified")
	}
	if parameters.cache == nil {
		return nil, errors.New("no cache specified")
	}
	if parameters.moduleID == 0 {
		return nil, errors.New("no module ID specified")
	}
	if parameters.perfLeeway == nil {
		return nil, errors.New("no performance leeway provider specified")
	}
	if parameters.pendingShares == nil {
		return nil, errors.New("no pending shares provider specified")
	}
	if parameters.processConcurrency == 0 {
		return nil, errors.New("no process concurrency specified")
	}

	return &parameters, nil
}

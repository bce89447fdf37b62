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

package ejector

import (
	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/accordlabs/accord/services/metrics"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel             zerolog.Level
	monitor              metrics.Service
	validatorsProvider   eth2client.ValidatorsProvider
	keysAPI              keysapi.Service
	exitRequests         contracts.LastRequestedValidatorIndicesProvider
	demand               DemandProvider
	maxRequestsPerReport uint64
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

// WithExitRequests sets the provider of exit request watermarks.
func WithExitRequests(provider contracts.LastRequestedValidatorIndicesProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.exitRequests = provider
	})
}

// WithDemand sets the exit demand provider.  Without one the builder reports
// no exit requests.
func WithDemand(provider DemandProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.demand = provider
	})
}

// WithMaxRequestsPerReport sets the maximum number of exit requests carried
// by a single report.
func WithMaxRequestsPerReport(requests uint64) Parameter {
	return parameterFunc(func(p *parameters) {
		p.maxRequestsPerReport = requests
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel:             zerolog.GlobalLevel(),
		maxRequestsPerReport: 600,
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
	if parameters.exitRequests == nil {
		return nil, errors.New("no exit requests provider specified")
	}
	if parameters.maxRequestsPerReport == 0 {
		return nil, errors.New("no maximum requests per report specified")
	}

	return &parameters, nil
}

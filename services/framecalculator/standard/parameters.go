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

package standard

import (
	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel            zerolog.Level
	chainTime           chaintime.Service
	chainConfigProvider contracts.ChainConfigProvider
	frameConfigProvider contracts.FrameConfigProvider
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

// WithChainTime sets the chain time service.
func WithChainTime(service chaintime.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.chainTime = service
	})
}

// WithChainConfigProvider sets the chain configuration provider.
func WithChainConfigProvider(provider contracts.ChainConfigProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.chainConfigProvider = provider
	})
}

// WithFrameConfigProvider sets the frame configuration provider.
func WithFrameConfigProvider(provider contracts.FrameConfigProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.frameConfigProvider = provider
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

	if parameters.chainTime == nil {
		return nil, errors.New("no chain time service specified")
	}
	if parameters.chainConfigProvider == nil {
		return nil, errors.New("no chain configuration provider specified")
	}
	if parameters.frameConfigProvider == nil {
		return nil, errors.New("no frame configuration provider specified")
	}

	return &parameters, nil
}

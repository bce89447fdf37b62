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
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel                   zerolog.Level
	chainTime                  chaintime.Service
	beaconBlockHeadersProvider eth2client.BeaconBlockHeadersProvider
	signedBeaconBlockProvider  eth2client.SignedBeaconBlockProvider
	cacheSize                  int
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
func WithChainTime(chainTime chaintime.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.chainTime = chainTime
	})
}

// WithBeaconBlockHeadersProvider sets the beacon block headers provider.
func WithBeaconBlockHeadersProvider(provider eth2client.BeaconBlockHeadersProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.beaconBlockHeadersProvider = provider
	})
}

// WithSignedBeaconBlockProvider sets the signed beacon block provider.
func WithSignedBeaconBlockProvider(provider eth2client.SignedBeaconBlockProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.signedBeaconBlockProvider = provider
	})
}

// WithCacheSize sets the number of resolved stamps to retain.
func WithCacheSize(cacheSize int) Parameter {
	return parameterFunc(func(p *parameters) {
		p.cacheSize = cacheSize
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel:  zerolog.GlobalLevel(),
		cacheSize: 64,
	}
	for _, p := range params {
		if params != nil {
			p.apply(&parameters)
		}
	}

	if parameters.chainTime == nil {
		return nil, errors.New("no chain time service specified")
	}
	if parameters.beaconBlockHeadersProvider == nil {
		return nil, errors.New("no beacon block headers provider specified")
	}
	if parameters.signedBeaconBlockProvider == nil {
		return nil, errors.New("no signed beacon block provider specified")
	}
	if parameters.cacheSize <= 0 {
		return nil, errors.New("no cache size specified")
	}

	return &parameters, nil
}

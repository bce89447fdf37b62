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

// Package onchain is a submitter that sends oracle reports to the protocol
// contracts as signed transactions.
package onchain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/metrics"
	nullmetrics "github.com/accordlabs/accord/services/metrics/null"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel         zerolog.Level
	clientMonitor    metrics.ClientMonitor
	hashConsensus    *contracts.HashConsensus
	accountingOracle *contracts.AccountingOracle
	exitBusOracle    *contracts.ExitBusOracle
	feeOracle        *contracts.FeeOracle
	privateKey       *ecdsa.PrivateKey
	chainID          *big.Int
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

// WithClientMonitor sets the client monitor.
func WithClientMonitor(clientMonitor metrics.ClientMonitor) Parameter {
	return parameterFunc(func(p *parameters) {
		p.clientMonitor = clientMonitor
	})
}

// WithHashConsensus sets the hash consensus contract.
func WithHashConsensus(hashConsensus *contracts.HashConsensus) Parameter {
	return parameterFunc(func(p *parameters) {
		p.hashConsensus = hashConsensus
	})
}

// WithAccountingOracle sets the accounting oracle contract.
func WithAccountingOracle(accountingOracle *contracts.AccountingOracle) Parameter {
	return parameterFunc(func(p *parameters) {
		p.accountingOracle = accountingOracle
	})
}

// WithExitBusOracle sets the exit bus oracle contract.
func WithExitBusOracle(exitBusOracle *contracts.ExitBusOracle) Parameter {
	return parameterFunc(func(p *parameters) {
		p.exitBusOracle = exitBusOracle
	})
}

// WithFeeOracle sets the fee oracle contract.
func WithFeeOracle(feeOracle *contracts.FeeOracle) Parameter {
	return parameterFunc(func(p *parameters) {
		p.feeOracle = feeOracle
	})
}

// WithPrivateKey sets the key that signs submission transactions.
func WithPrivateKey(privateKey *ecdsa.PrivateKey) Parameter {
	return parameterFunc(func(p *parameters) {
		p.privateKey = privateKey
	})
}

// WithChainID sets the execution chain ID for transaction signing.
func WithChainID(chainID *big.Int) Parameter {
	return parameterFunc(func(p *parameters) {
		p.chainID = chainID
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel:      zerolog.GlobalLevel(),
		clientMonitor: nullmetrics.New(context.Background()),
	}
	for _, p := range params {
		if params != nil {
			p.apply(&parameters)
		}
	}

	if parameters.clientMonitor == nil {
		return nil, errors.New("no client monitor specified")
	}
	if parameters.hashConsensus == nil {
		return nil, errors.New("no hash consensus contract specified")
	}
	if parameters.accountingOracle == nil && parameters.exitBusOracle == nil && parameters.feeOracle == nil {
		return nil, errors.New("no oracle contract specified")
	}
	if parameters.privateKey == nil {
		return nil, errors.New("no private key specified")
	}
	if parameters.chainID == nil {
		return nil, errors.New("no chain ID specified")
	}

	return &parameters, nil
}

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

package onchain

import (
	"context"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// Service is a submitter that sends oracle reports to the protocol contracts
// as signed transactions.
type Service struct {
	clientMonitor    metrics.ClientMonitor
	hashConsensus    *contracts.HashConsensus
	accountingOracle *contracts.AccountingOracle
	exitBusOracle    *contracts.ExitBusOracle
	feeOracle        *contracts.FeeOracle
	from             common.Address
	signer           bind.SignerFn
}

// module-wide log.
var log zerolog.Logger

// New creates a new on-chain submitter.
func New(_ context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "submitter").Str("impl", "onchain").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(parameters.privateKey, parameters.chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transactor")
	}

	s := &Service{
		clientMonitor:    parameters.clientMonitor,
		hashConsensus:    parameters.hashConsensus,
		accountingOracle: parameters.accountingOracle,
		exitBusOracle:    parameters.exitBusOracle,
		feeOracle:        parameters.feeOracle,
		from:             transactor.From,
		signer:           transactor.Signer,
	}

	return s, nil
}

// txOpts returns transaction options bound to the given context.  Nonce and
// gas values are left for the execution client to fill.
func (s *Service) txOpts(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    s.from,
		Signer:  s.signer,
		Context: ctx,
	}
}

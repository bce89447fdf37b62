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

// Package standard is a frame calculator that derives reporting frames from
// the consensus contract's frame configuration.
package standard

import (
	"context"
	"fmt"
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// Service is a frame calculator.
type Service struct {
	log                 zerolog.Logger
	chainTime           chaintime.Service
	frameConfigProvider contracts.FrameConfigProvider
}

// New creates a new frame calculator.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log := zerologger.With().Str("service", "framecalculator").Str("impl", "standard").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	// The contract's view of the chain must match the beacon node we compute
	// slot times from, otherwise every frame boundary would be wrong.
	chainConfig, err := parameters.chainConfigProvider.ChainConfig(ctx, common.Hash{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain chain configuration")
	}
	if chainConfig.SlotsPerEpoch != parameters.chainTime.SlotsPerEpoch() {
		return nil, fmt.Errorf("contract slots per epoch %d does not match chain %d",
			chainConfig.SlotsPerEpoch,
			parameters.chainTime.SlotsPerEpoch(),
		)
	}
	if chainConfig.SecondsPerSlot != uint64(parameters.chainTime.SlotDuration()/time.Second) {
		return nil, fmt.Errorf("contract seconds per slot %d does not match chain %d",
			chainConfig.SecondsPerSlot,
			uint64(parameters.chainTime.SlotDuration()/time.Second),
		)
	}
	if chainConfig.GenesisTime != uint64(parameters.chainTime.GenesisTime().Unix()) {
		return nil, fmt.Errorf("contract genesis time %d does not match chain %d",
			chainConfig.GenesisTime,
			parameters.chainTime.GenesisTime().Unix(),
		)
	}

	s := &Service{
		log:                 log,
		chainTime:           parameters.chainTime,
		frameConfigProvider: parameters.frameConfigProvider,
	}

	return s, nil
}

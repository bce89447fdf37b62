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

// Package csm builds the fee oracle's report for the permissionless staking
// module: each operator's share of the accrued fees, weighted by its
// validators' attestation performance over the whole frame, committed as a
// Merkle tree root.  Performance collection spans every epoch of the frame,
// so the builder accumulates state across cycles and reports
// reportbuilder.ErrNotReady until the collection is complete.
package csm

import (
	"context"
	"sync"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/cache"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/accordlabs/accord/services/keysapi"
	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// consensusVersion is the version of the report semantics this builder implements.
const consensusVersion = 1

const (
	// minCheckpointStep is the smallest batch of epochs worth processing
	// while the frame is still filling.
	minCheckpointStep = 10
	// maxCheckpointStep is the largest batch of epochs processed against a
	// single checkpoint state.
	maxCheckpointStep = 255
	// checkpointSlotDelayEpochs is the distance from a batch's last duty
	// epoch to the state its committees are read at.  Attestations for a
	// duty epoch can be included up to the end of the following epoch, so
	// the batch is read two epochs on.
	checkpointSlotDelayEpochs = 2
)

// totalBasisPoints is the divisor for basis point values.
const totalBasisPoints = 10000

// TreePublisher is the interface for publishing the distribution tree and
// log to content-addressed storage.  Publication must be deterministic: the
// returned identifiers are part of the report data the oracle members bring
// to consensus.  Without a publisher the report carries empty identifiers.
type TreePublisher interface {
	// PublishTree publishes the distribution tree, returning its content
	// identifier.
	PublishTree(ctx context.Context, data []byte) (string, error)

	// PublishLog publishes the distribution log, returning its content
	// identifier.
	PublishLog(ctx context.Context, data []byte) (string, error)
}

// Service is a fee oracle report builder for the permissionless module.
type Service struct {
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

	stateMu sync.Mutex
	state   *collectionState
}

// module-wide log.
var log zerolog.Logger

// New creates a new fee oracle report builder.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "reportbuilder").Str("impl", "csm").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	s := &Service{
		chainTime:          parameters.chainTime,
		validatorsProvider: parameters.validatorsProvider,
		committeesProvider: parameters.committeesProvider,
		blocksProvider:     parameters.blocksProvider,
		keysAPI:            parameters.keysAPI,
		blockStamps:        parameters.blockStamps,
		cache:              parameters.cache,
		moduleID:           parameters.moduleID,
		perfLeeway:         parameters.perfLeeway,
		pendingShares:      parameters.pendingShares,
		publisher:          parameters.publisher,
		processConcurrency: parameters.processConcurrency,
	}

	return s, nil
}

// Module returns the name of the oracle module the builder reports for.
func (*Service) Module() string {
	return "csm"
}

// ConsensusVersion returns the version of the report semantics the builder implements.
func (*Service) ConsensusVersion() uint64 {
	return consensusVersion
}

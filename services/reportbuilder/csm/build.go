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
	"context"
	"math/big"
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// Build assembles the fee oracle report for the given frame, reading chain
// state at the given reference block stamp.  The frame's epochs are
// processed incrementally as the chain finalizes past them, so Build returns
// reportbuilder.ErrNotReady until every epoch up to the reference epoch has
// been processed.
func (s *Service) Build(ctx context.Context,
	frame *framecalculator.Frame,
	stamp *blockstamp.ReferenceBlockStamp,
) (
	*reportbuilder.Report,
	error,
) {
	ctx, span := otel.Tracer("accordlabs.accord.services.reportbuilder.csm").Start(ctx, "Build")
	defer span.End()
	started := time.Now()

	if frame == nil {
		return nil, errors.New("no frame specified")
	}
	if stamp == nil {
		return nil, errors.New("no stamp specified")
	}

	if err := s.ensureState(ctx, frame.RefSlot); err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}
	startEpoch := s.frameStartEpoch(frame, stamp.RefEpoch)

	if err := s.advanceCollection(ctx, startEpoch, stamp.RefEpoch); err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}

	remaining := s.state.unprocessed(startEpoch, stamp.RefEpoch)
	monitorUnprocessedEpochs(len(remaining))
	if len(remaining) > 0 {
		log.Debug().
			Uint64("ref_slot", uint64(stamp.RefSlot)).
			Int("unprocessed_epochs", len(remaining)).
			Msg("Collection incomplete")
		buildCompleted(started, "not_ready")
		return nil, reportbuilder.ErrNotReady
	}

	result, err := s.distribution(ctx, stamp)
	if err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}
	tree := buildShareTree(result.shares)

	var treeCid, logCid string
	if s.publisher != nil && len(result.shares) > 0 {
		treeData, err := tree.encode()
		if err != nil {
			buildCompleted(started, "failed")
			return nil, err
		}
		treeCid, err = s.publisher.PublishTree(ctx, treeData)
		if err != nil {
			buildCompleted(started, "failed")
			return nil, errors.Wrap(err, "failed to publish share tree")
		}
		logData, err := encodeLog(stamp.RefSlot, result)
		if err != nil {
			buildCompleted(started, "failed")
			return nil, err
		}
		logCid, err = s.publisher.PublishLog(ctx, logData)
		if err != nil {
			buildCompleted(started, "failed")
			return nil, errors.Wrap(err, "failed to publish distribution log")
		}
	}

	tuple := &contracts.FeeReportData{
		ConsensusVersion: new(big.Int).SetUint64(consensusVersion),
		RefSlot:          new(big.Int).SetUint64(uint64(stamp.RefSlot)),
		TreeRoot:         tree.root,
		TreeCid:          treeCid,
		LogCid:           logCid,
		Distributed:      result.distributed,
	}
	encoded, err := tuple.Encode()
	if err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}

	log.Trace().
		Uint64("frame", frame.Index).
		Uint64("ref_slot", uint64(stamp.RefSlot)).
		Int("operators", len(result.shares)).
		Str("distributed", result.distributed.String()).
		Dur("elapsed", time.Since(started)).
		Msg("Built fee report")
	buildCompleted(started, "succeeded")

	return &reportbuilder.Report{
		RefSlot:          stamp.RefSlot,
		ConsensusVersion: consensusVersion,
		Tuple:            tuple,
		Data:             encoded,
		Hash:             contracts.HashReportData(encoded),
	}, nil
}

// frameStartEpoch returns the first duty epoch of the frame.  Frames span a
// fixed number of epochs ending at the reference epoch, recoverable from the
// distance between the frame's reference slot and its processing deadline.
func (s *Service) frameStartEpoch(frame *framecalculator.Frame, refEpoch phase0.Epoch) phase0.Epoch {
	epochsPerFrame := uint64(frame.ReportProcessingDeadlineSlot-frame.RefSlot) / s.chainTime.SlotsPerEpoch()
	if uint64(refEpoch)+1 < epochsPerFrame {
		return 0
	}

	return refEpoch + 1 - phase0.Epoch(epochsPerFrame)
}

// advanceCollection processes every checkpoint the chain has finalized past,
// persisting progress after each.
func (s *Service) advanceCollection(ctx context.Context, startEpoch phase0.Epoch, refEpoch phase0.Epoch) error {
	finalized, err := s.blockStamps.LastFinalizedBlockStamp(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to obtain last finalized block stamp")
	}
	finalizedEpoch := s.chainTime.SlotToEpoch(finalized.Slot)

	for _, cp := range s.planCheckpoints(startEpoch, refEpoch, finalizedEpoch) {
		if err := s.processCheckpoint(ctx, cp); err != nil {
			return err
		}
		log.Debug().
			Uint64("checkpoint_slot", uint64(cp.slot)).
			Int("epochs", len(cp.epochs)).
			Msg("Checkpoint processed")
	}

	return nil
}

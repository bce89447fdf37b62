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
	"context"
	"net/http"
	"strconv"

	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// BlockStamp resolves a stamp for the given slot, walking forward over missed
// slots up to the last finalized slot and taking the parent of the first
// existing block.
func (s *Service) BlockStamp(ctx context.Context, slot phase0.Slot, lastFinalizedSlot phase0.Slot) (*blockstamp.BlockStamp, error) {
	ctx, span := otel.Tracer("accordlabs.accord.services.blockstamp.standard").Start(ctx, "BlockStamp")
	defer span.End()

	if cached, exists := s.stamps.Get(slot); exists {
		return cached.(*blockstamp.BlockStamp), nil
	}

	if slot > lastFinalizedSlot {
		return nil, errors.Wrapf(blockstamp.ErrSlotNotFinalized, "slot %d beyond last finalized slot %d", slot, lastFinalizedSlot)
	}

	header, err := s.nonMissedSlotHeader(ctx, slot, lastFinalizedSlot)
	if err != nil {
		return nil, err
	}

	stamp, err := s.buildBlockStamp(ctx, header)
	if err != nil {
		return nil, err
	}
	s.stamps.Add(slot, stamp)

	return stamp, nil
}

// ReferenceBlockStamp resolves a stamp for the given report reference slot.
func (s *Service) ReferenceBlockStamp(ctx context.Context, refSlot phase0.Slot, lastFinalizedSlot phase0.Slot) (*blockstamp.ReferenceBlockStamp, error) {
	stamp, err := s.BlockStamp(ctx, refSlot, lastFinalizedSlot)
	if err != nil {
		return nil, err
	}

	return &blockstamp.ReferenceBlockStamp{
		BlockStamp: *stamp,
		RefSlot:    refSlot,
		RefEpoch:   s.chainTime.SlotToEpoch(refSlot),
	}, nil
}

// LastFinalizedBlockStamp resolves a stamp for the chain's last finalized block.
func (s *Service) LastFinalizedBlockStamp(ctx context.Context) (*blockstamp.BlockStamp, error) {
	ctx, span := otel.Tracer("accordlabs.accord.services.blockstamp.standard").Start(ctx, "LastFinalizedBlockStamp")
	defer span.End()

	headerResponse, err := s.beaconBlockHeadersProvider.BeaconBlockHeader(ctx, &api.BeaconBlockHeaderOpts{
		Block: "finalized",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain finalized block header")
	}

	return s.buildBlockStamp(ctx, headerResponse.Data)
}

// nonMissedSlotHeader finds the header nearest to the given slot in the range up
// to the last finalized slot.  When the slot itself is missed the parent of the
// first existing block is returned, which is the latest existing block before it.
func (s *Service) nonMissedSlotHeader(ctx context.Context, slot phase0.Slot, lastFinalizedSlot phase0.Slot) (*apiv1.BeaconBlockHeader, error) {
	var header *apiv1.BeaconBlockHeader
	slotIsMissing := false
	for i := slot; i <= lastFinalizedSlot; i++ {
		found, exists, err := s.slotHeader(ctx, i)
		if err != nil {
			return nil, err
		}
		if !exists {
			slotIsMissing = true
			s.log.Warn().Uint64("slot", uint64(i)).Msg("Missed slot; checking next slot")
			continue
		}
		header = found
		break
	}
	if header == nil {
		// Every slot up to the node's own finalized slot is missing, which means the
		// node is contradicting itself.
		return nil, blockstamp.ErrNoSlotsAvailable
	}
	if !header.Canonical {
		return nil, errors.Wrapf(blockstamp.ErrSlotNotFinalized, "slot %d is not canonical", header.Header.Message.Slot)
	}

	if !slotIsMissing {
		return header, nil
	}

	// The requested slot was missed, so the stamp is for the parent of the first
	// existing block after it.
	parentResponse, err := s.beaconBlockHeadersProvider.BeaconBlockHeader(ctx, &api.BeaconBlockHeaderOpts{
		Block: header.Header.Message.ParentRoot.String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain parent block header")
	}
	parent := parentResponse.Data
	if parent.Header.Message.Slot >= slot {
		return nil, errors.Wrapf(blockstamp.ErrInconsistentChain, "parent of first existing block has slot %d, expected before %d", parent.Header.Message.Slot, slot)
	}
	if !parent.Canonical {
		return nil, errors.Wrapf(blockstamp.ErrSlotNotFinalized, "slot %d is not canonical", parent.Header.Message.Slot)
	}

	return parent, nil
}

// slotHeader fetches the header for a slot, reporting a missed slot as non-existent.
func (s *Service) slotHeader(ctx context.Context, slot phase0.Slot) (*apiv1.BeaconBlockHeader, bool, error) {
	headerResponse, err := s.beaconBlockHeadersProvider.BeaconBlockHeader(ctx, &api.BeaconBlockHeaderOpts{
		Block: strconv.FormatUint(uint64(slot), 10),
	})
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to obtain beacon block header")
	}

	return headerResponse.Data, true, nil
}

// buildBlockStamp fetches the block behind a header and assembles the stamp.
func (s *Service) buildBlockStamp(ctx context.Context, header *apiv1.BeaconBlockHeader) (*blockstamp.BlockStamp, error) {
	blockResponse, err := s.signedBeaconBlockProvider.SignedBeaconBlock(ctx, &api.SignedBeaconBlockOpts{
		Block: header.Root.String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain signed beacon block")
	}
	block := blockResponse.Data

	blockHash, err := block.ExecutionBlockHash()
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain execution block hash")
	}
	blockNumber, err := block.ExecutionBlockNumber()
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain execution block number")
	}

	slot := header.Header.Message.Slot
	stamp := &blockstamp.BlockStamp{
		Slot:        slot,
		BlockRoot:   header.Root,
		StateRoot:   header.Header.Message.StateRoot,
		ParentRoot:  header.Header.Message.ParentRoot,
		BlockHash:   blockHash,
		BlockNumber: blockNumber,
		Timestamp:   s.chainTime.StartOfSlot(slot),
	}
	s.log.Trace().Uint64("slot", uint64(slot)).Str("block_root", stamp.BlockRoot.String()).Msg("Resolved block stamp")

	return stamp, nil
}

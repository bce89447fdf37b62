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
	"fmt"
	"net/http"
	"strconv"

	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"
	"golang.org/x/sync/errgroup"
)

// checkpoint is a batch of duty epochs processed together, with the slot of
// the state their committees are read at.
type checkpoint struct {
	slot   phase0.Slot
	epochs []phase0.Epoch
}

// committeeKey identifies a committee within a duty epoch.
type committeeKey struct {
	slot  phase0.Slot
	index phase0.CommitteeIndex
}

// blockAttestation is a fork-independent view of an attestation on chain.
// committeeBits is nil for pre-electra attestations, whose data carries a
// single committee index instead.
type blockAttestation struct {
	data            *phase0.AttestationData
	aggregationBits bitfield.Bitlist
	committeeBits   bitfield.Bitvector64
}

// committeeIndices returns the committees the attestation covers, in the
// order their members appear in the aggregation bits.
func (a *blockAttestation) committeeIndices() []phase0.CommitteeIndex {
	if a.committeeBits == nil {
		return []phase0.CommitteeIndex{a.data.Index}
	}

	indices := make([]phase0.CommitteeIndex, 0, 1)
	for i := uint64(0); i < a.committeeBits.Len(); i++ {
		if a.committeeBits.BitAt(i) {
			indices = append(indices, phase0.CommitteeIndex(i))
		}
	}

	return indices
}

// planCheckpoints groups the unprocessed epochs the chain has finalized past
// into checkpoints of at most maxCheckpointStep epochs.  A frame that is
// still filling is held back until at least minCheckpointStep epochs are
// available; the remainder of a fully available frame is always processed.
func (s *Service) planCheckpoints(startEpoch phase0.Epoch, refEpoch phase0.Epoch, finalizedEpoch phase0.Epoch) []*checkpoint {
	if finalizedEpoch < checkpointSlotDelayEpochs {
		return nil
	}
	maxAvailable := finalizedEpoch - checkpointSlotDelayEpochs
	if refEpoch < maxAvailable {
		maxAvailable = refEpoch
	}

	available := make([]phase0.Epoch, 0)
	for epoch := startEpoch; epoch <= refEpoch && epoch <= maxAvailable; epoch++ {
		if !s.state.ProcessedEpochs[epoch] {
			available = append(available, epoch)
		}
	}
	if len(available) == 0 {
		return nil
	}
	if maxAvailable < refEpoch && maxAvailable-startEpoch < minCheckpointStep {
		return nil
	}

	checkpoints := make([]*checkpoint, 0)
	for start := 0; start < len(available); start += maxCheckpointStep {
		end := start + maxCheckpointStep
		if end > len(available) {
			end = len(available)
		}
		epochs := available[start:end]
		checkpoints = append(checkpoints, &checkpoint{
			slot:   s.chainTime.FirstSlotOfEpoch(epochs[len(epochs)-1] + checkpointSlotDelayEpochs),
			epochs: epochs,
		})
	}

	return checkpoints
}

// processCheckpoint fans the batch's epochs out over the worker limit,
// folding each epoch's aggregates into the collection and persisting the
// collection once the batch completes.
func (s *Service) processCheckpoint(ctx context.Context, cp *checkpoint) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(int(s.processConcurrency))
	for _, epoch := range cp.epochs {
		eg.Go(func() error {
			duties, err := s.processEpoch(egCtx, cp.slot, epoch)
			if err != nil {
				return errors.Wrapf(err, "failed to process epoch %d", epoch)
			}
			s.stateMu.Lock()
			s.state.merge(epoch, duties)
			s.stateMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	return s.saveState(ctx)
}

// processEpoch computes one epoch's duty aggregates: every position a
// validator holds in the epoch's committees counts as an assigned duty, and
// the duty is included if any attestation on chain covers the position.
func (s *Service) processEpoch(ctx context.Context, stateSlot phase0.Slot, epoch phase0.Epoch) (map[phase0.ValidatorIndex]*DutyAggregate, error) {
	committees, err := s.epochCommittees(ctx, stateSlot, epoch)
	if err != nil {
		return nil, err
	}
	covered := make(map[committeeKey][]bool, len(committees))

	// Attestations for the duty epoch can be included up to the end of the
	// following epoch.
	firstSlot := s.chainTime.FirstSlotOfEpoch(epoch)
	lastSlot := s.chainTime.LastSlotOfEpoch(epoch + 1)
	for slot := firstSlot; slot <= lastSlot; slot++ {
		attestations, err := s.blockAttestations(ctx, slot)
		if err != nil {
			return nil, err
		}
		for _, attestation := range attestations {
			applyAttestation(attestation, committees, covered)
		}
	}

	duties := make(map[phase0.ValidatorIndex]*DutyAggregate)
	for key, validators := range committees {
		bits := covered[key]
		for position, index := range validators {
			duty, exists := duties[index]
			if !exists {
				duty = &DutyAggregate{}
				duties[index] = duty
			}
			duty.Assigned++
			if bits != nil && bits[position] {
				duty.Included++
			}
		}
	}

	return duties, nil
}

// epochCommittees returns the epoch's committees read at the checkpoint
// state, keyed by slot and committee index.
func (s *Service) epochCommittees(ctx context.Context, stateSlot phase0.Slot, epoch phase0.Epoch) (map[committeeKey][]phase0.ValidatorIndex, error) {
	committeesResponse, err := s.committeesProvider.BeaconCommittees(ctx, &api.BeaconCommitteesOpts{
		State: strconv.FormatUint(uint64(stateSlot), 10),
		Epoch: &epoch,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain beacon committees for epoch %d", epoch)
	}

	committees := make(map[committeeKey][]phase0.ValidatorIndex, len(committeesResponse.Data))
	for _, committee := range committeesResponse.Data {
		committees[committeeKey{slot: committee.Slot, index: committee.Index}] = committee.Validators
	}

	return committees, nil
}

// blockAttestations fetches the block at the given slot and extracts its
// attestations, returning none for a missed slot.
func (s *Service) blockAttestations(ctx context.Context, slot phase0.Slot) ([]*blockAttestation, error) {
	blockResponse, err := s.blocksProvider.SignedBeaconBlock(ctx, &api.SignedBeaconBlockOpts{
		Block: strconv.FormatUint(uint64(slot), 10),
	})
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			// Missed slot.
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to obtain signed beacon block for slot %d", slot)
	}

	return versionedAttestations(blockResponse.Data)
}

// applyAttestation marks the committee positions the attestation's
// aggregation bits cover.  Attestations for slots outside the duty epoch
// find no committees and fall through without moving the offset.
func applyAttestation(attestation *blockAttestation, committees map[committeeKey][]phase0.ValidatorIndex, covered map[committeeKey][]bool) {
	offset := uint64(0)
	for _, committeeIndex := range attestation.committeeIndices() {
		key := committeeKey{slot: attestation.data.Slot, index: committeeIndex}
		committee := committees[key]
		if len(committee) == 0 {
			continue
		}
		bits := covered[key]
		if bits == nil {
			bits = make([]bool, len(committee))
			covered[key] = bits
		}
		for position := range committee {
			if attestation.aggregationBits.BitAt(offset + uint64(position)) {
				bits[position] = true
			}
		}
		offset += uint64(len(committee))
	}
}

// versionedAttestations extracts the attestations of a block across forks.
func versionedAttestations(block *spec.VersionedSignedBeaconBlock) ([]*blockAttestation, error) {
	if block == nil {
		return nil, errors.New("no block supplied")
	}
	switch block.Version {
	case spec.DataVersionPhase0:
		if block.Phase0 == nil || block.Phase0.Message == nil || block.Phase0.Message.Body == nil {
			return nil, errors.New("phase0 block without body")
		}
		return phase0Attestations(block.Phase0.Message.Body.Attestations), nil
	case spec.DataVersionAltair:
		if block.Altair == nil || block.Altair.Message == nil || block.Altair.Message.Body == nil {
			return nil, errors.New("altair block without body")
		}
		return phase0Attestations(block.Altair.Message.Body.Attestations), nil
	case spec.DataVersionBellatrix:
		if block.Bellatrix == nil || block.Bellatrix.Message == nil || block.Bellatrix.Message.Body == nil {
			return nil, errors.New("bellatrix block without body")
		}
		return phase0Attestations(block.Bellatrix.Message.Body.Attestations), nil
	case spec.DataVersionCapella:
		if block.Capella == nil || block.Capella.Message == nil || block.Capella.Message.Body == nil {
			return nil, errors.New("capella block without body")
		}
		return phase0Attestations(block.Capella.Message.Body.Attestations), nil
	case spec.DataVersionDeneb:
		if block.Deneb == nil || block.Deneb.Message == nil || block.Deneb.Message.Body == nil {
			return nil, errors.New("deneb block without body")
		}
		return phase0Attestations(block.Deneb.Message.Body.Attestations), nil
	case spec.DataVersionElectra:
		if block.Electra == nil || block.Electra.Message == nil || block.Electra.Message.Body == nil {
			return nil, errors.New("electra block without body")
		}
		attestations := make([]*blockAttestation, 0, len(block.Electra.Message.Body.Attestations))
		for _, attestation := range block.Electra.Message.Body.Attestations {
			attestations = append(attestations, &blockAttestation{
				data:            attestation.Data,
				aggregationBits: attestation.AggregationBits,
				committeeBits:   attestation.CommitteeBits,
			})
		}
		return attestations, nil
	default:
		return nil, fmt.Errorf("unhandled block version %v", block.Version)
	}
}

// phase0Attestations maps single-committee attestations, used by every fork
// before electra.
func phase0Attestations(source []*phase0.Attestation) []*blockAttestation {
	attestations := make([]*blockAttestation, 0, len(source))
	for _, attestation := range source {
		attestations = append(attestations, &blockAttestation{
			data:            attestation.Data,
			aggregationBits: attestation.AggregationBits,
		})
	}

	return attestations
}

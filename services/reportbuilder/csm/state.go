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
	"encoding/json"

	"github.com/accordlabs/accord/services/cache"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/pkg/errors"
)

// stateSchemaVersion is bumped whenever the persisted collection state
// layout changes.
const stateSchemaVersion = 1

// stateCacheKey is the key the collection state is persisted under.
const stateCacheKey = "csm/state"

// DutyAggregate accumulates one validator's attestation duties over a frame.
type DutyAggregate struct {
	// Assigned is the number of attestation duties assigned to the validator.
	Assigned uint64 `json:"assigned"`
	// Included is the number of assigned duties included on chain.
	Included uint64 `json:"included"`
}

// collectionState is a frame's attestation performance collection.  It is
// persisted after every checkpoint so that a restarted oracle resumes from
// the epochs already processed rather than re-reading the whole frame.
type collectionState struct {
	// SchemaVersion is the layout version of the persisted state.
	SchemaVersion uint64 `json:"schema_version"`
	// ConsensusVersion is the report semantics version the state was
	// collected under.
	ConsensusVersion uint64 `json:"consensus_version"`
	// RefSlot is the reference slot of the frame being collected.
	RefSlot phase0.Slot `json:"ref_slot"`
	// Duties holds each validator's aggregates over the processed epochs.
	Duties map[phase0.ValidatorIndex]*DutyAggregate `json:"duties"`
	// ProcessedEpochs marks the duty epochs already processed.
	ProcessedEpochs map[phase0.Epoch]bool `json:"processed_epochs"`
}

func newCollectionState(refSlot phase0.Slot) *collectionState {
	return &collectionState{
		SchemaVersion:    stateSchemaVersion,
		ConsensusVersion: consensusVersion,
		RefSlot:          refSlot,
		Duties:           make(map[phase0.ValidatorIndex]*DutyAggregate),
		ProcessedEpochs:  make(map[phase0.Epoch]bool),
	}
}

// merge folds one epoch's duty aggregates into the collection and marks the
// epoch processed.
func (s *collectionState) merge(epoch phase0.Epoch, duties map[phase0.ValidatorIndex]*DutyAggregate) {
	for index, duty := range duties {
		aggregate, exists := s.Duties[index]
		if !exists {
			aggregate = &DutyAggregate{}
			s.Duties[index] = aggregate
		}
		aggregate.Assigned += duty.Assigned
		aggregate.Included += duty.Included
	}
	s.ProcessedEpochs[epoch] = true
}

// unprocessed returns the epochs of [startEpoch, refEpoch] not yet processed,
// in ascending order.
func (s *collectionState) unprocessed(startEpoch phase0.Epoch, refEpoch phase0.Epoch) []phase0.Epoch {
	epochs := make([]phase0.Epoch, 0)
	for epoch := startEpoch; epoch <= refEpoch; epoch++ {
		if !s.ProcessedEpochs[epoch] {
			epochs = append(epochs, epoch)
		}
	}

	return epochs
}

// ensureState points the service at the collection for the given frame,
// resuming persisted state where it matches and starting fresh where it does
// not.
func (s *Service) ensureState(ctx context.Context, refSlot phase0.Slot) error {
	if s.state != nil && s.state.RefSlot == refSlot {
		return nil
	}

	state, err := s.loadState(ctx, refSlot)
	if err != nil {
		return err
	}
	if state == nil {
		state = newCollectionState(refSlot)
	}
	s.state = state

	return nil
}

// loadState fetches the persisted collection state, returning nil if there
// is none or it was collected for a different frame or under different
// semantics.
func (s *Service) loadState(ctx context.Context, refSlot phase0.Slot) (*collectionState, error) {
	value, err := s.cache.Fetch(ctx, stateCacheKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch collection state")
	}

	state := &collectionState{}
	if err := json.Unmarshal(value, state); err != nil {
		log.Warn().Err(err).Msg("Discarding malformed collection state")
		return nil, nil
	}
	if state.SchemaVersion != stateSchemaVersion ||
		state.ConsensusVersion != consensusVersion ||
		state.RefSlot != refSlot {
		log.Debug().
			Uint64("state_ref_slot", uint64(state.RefSlot)).
			Uint64("ref_slot", uint64(refSlot)).
			Msg("Discarding collection state for a different frame")
		return nil, nil
	}
	if state.Duties == nil {
		state.Duties = make(map[phase0.ValidatorIndex]*DutyAggregate)
	}
	if state.ProcessedEpochs == nil {
		state.ProcessedEpochs = make(map[phase0.Epoch]bool)
	}
	log.Debug().
		Int("processed_epochs", len(state.ProcessedEpochs)).
		Int("validators", len(state.Duties)).
		Msg("Resuming persisted collection state")

	return state, nil
}

// saveState persists the collection state.
func (s *Service) saveState(ctx context.Context) error {
	value, err := json.Marshal(s.state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal collection state")
	}
	if err := s.cache.Store(ctx, stateCacheKey, value); err != nil {
		return errors.Wrap(err, "failed to store collection state")
	}

	return nil
}

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

package mock

import (
	"context"
	"errors"
	"fmt"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// Service is a mock block stamp resolver.
type Service struct {
	stamps        map[phase0.Slot]*blockstamp.BlockStamp
	lastFinalized *blockstamp.BlockStamp
}

// New creates a new mock block stamp resolver.
func New() *Service {
	return &Service{
		stamps: make(map[phase0.Slot]*blockstamp.BlockStamp),
	}
}

// AddStamp adds a stamp resolved at the given slot to the mock.
func (s *Service) AddStamp(slot phase0.Slot, stamp *blockstamp.BlockStamp) {
	s.stamps[slot] = stamp
}

// SetLastFinalized sets the stamp returned for the last finalized block.
func (s *Service) SetLastFinalized(stamp *blockstamp.BlockStamp) {
	s.lastFinalized = stamp
}

// BlockStamp is a mock.
func (s *Service) BlockStamp(_ context.Context, slot phase0.Slot, _ phase0.Slot) (*blockstamp.BlockStamp, error) {
	stamp, exists := s.stamps[slot]
	if !exists {
		return nil, fmt.Errorf("no stamp for slot %d", slot)
	}

	return stamp, nil
}

// ReferenceBlockStamp is a mock.
func (s *Service) ReferenceBlockStamp(ctx context.Context, refSlot phase0.Slot, lastFinalizedSlot phase0.Slot) (*blockstamp.ReferenceBlockStamp, error) {
	stamp, err := s.BlockStamp(ctx, refSlot, lastFinalizedSlot)
	if err != nil {
		return nil, err
	}

	return &blockstamp.ReferenceBlockStamp{
		BlockStamp: *stamp,
		RefSlot:    refSlot,
		RefEpoch:   phase0.Epoch(uint64(refSlot) / 32),
	}, nil
}

// LastFinalizedBlockStamp is a mock.
func (s *Service) LastFinalizedBlockStamp(_ context.Context) (*blockstamp.BlockStamp, error) {
	if s.lastFinalized == nil {
		return nil, errors.New("no last finalized stamp")
	}

	return s.lastFinalized, nil
}

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

package blockstamp

import (
	"context"
	"errors"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// ErrNoSlotsAvailable is returned when every slot in the requested range is missed.
// This contradicts the node's own finality information, so it usually indicates a
// problem with the consensus node.
var ErrNoSlotsAvailable = errors.New("no slots available")

// ErrSlotNotFinalized is returned when the requested slot is beyond the last
// finalized slot, or when the resolved header is not part of the canonical chain.
var ErrSlotNotFinalized = errors.New("slot not finalized")

// ErrInconsistentChain is returned when the parent of the first existing block
// after a missed slot does not precede the requested slot.
var ErrInconsistentChain = errors.New("inconsistent chain")

// BlockStamp identifies a finalized consensus block together with its execution payload.
type BlockStamp struct {
	// Slot is the slot of the block.
	Slot phase0.Slot
	// BlockRoot is the root of the block.
	BlockRoot phase0.Root
	// StateRoot is the state root of the block.
	StateRoot phase0.Root
	// ParentRoot is the root of the block's parent.
	ParentRoot phase0.Root
	// BlockHash is the hash of the block's execution payload.
	BlockHash phase0.Hash32
	// BlockNumber is the number of the block's execution payload.
	BlockNumber uint64
	// Timestamp is the start time of the block's slot.
	Timestamp time.Time
}

// ReferenceBlockStamp is a block stamp resolved for a report reference slot.
// When the reference slot itself is missed the stamp identifies the latest
// existing block at or before it, so Slot can be earlier than RefSlot.
type ReferenceBlockStamp struct {
	BlockStamp
	// RefSlot is the reference slot the stamp was resolved for.
	RefSlot phase0.Slot
	// RefEpoch is the epoch of the reference slot.
	RefEpoch phase0.Epoch
}

// Service is the interface for a block stamp resolver.
type Service interface {
	// BlockStamp resolves a stamp for the given slot, walking forward over missed
	// slots up to the last finalized slot and taking the parent of the first
	// existing block.
	BlockStamp(ctx context.Context, slot phase0.Slot, lastFinalizedSlot phase0.Slot) (*BlockStamp, error)

	// ReferenceBlockStamp resolves a stamp for the given report reference slot.
	ReferenceBlockStamp(ctx context.Context, refSlot phase0.Slot, lastFinalizedSlot phase0.Slot) (*ReferenceBlockStamp, error)

	// LastFinalizedBlockStamp resolves a stamp for the chain's last finalized block.
	LastFinalizedBlockStamp(ctx context.Context) (*BlockStamp, error)
}

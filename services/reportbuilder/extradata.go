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

package reportbuilder

import (
	"fmt"
	"sort"

	"github.com/accordlabs/accord/contracts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ExtraDataItemType identifies the payload carried by an extra data item.
type ExtraDataItemType uint16

const (
	// ExtraDataItemTypeStuckValidators carries new stuck validator totals.
	ExtraDataItemTypeStuckValidators ExtraDataItemType = 1
	// ExtraDataItemTypeExitedValidators carries new exited validator totals.
	ExtraDataItemTypeExitedValidators ExtraDataItemType = 2
)

// OperatorCount is a single operator's value within an extra data item.
type OperatorCount struct {
	// NodeOperatorID is the operator's index within its staking module.
	NodeOperatorID uint64
	// Count is the operator's new total for the item's type.
	Count uint64
}

// ExtraDataItem carries the new totals of one type for the affected
// operators of one staking module.
type ExtraDataItem struct {
	Type     ExtraDataItemType
	ModuleID uint64
	// Counts is ordered by ascending operator ID.
	Counts []OperatorCount
}

// ExtraData is a report's supplementary per-operator data, chunked for
// on-chain submission.  Each chunk is prefixed with the keccak-256 hash of
// the following chunk, a zero hash for the last, so the contract can verify
// the chunks arrive complete and in order from the single hash committed in
// the main report.
type ExtraData struct {
	// Format is the submission format, empty or chunked list.
	Format uint64
	// Hash is the keccak-256 hash of the first chunk, zero when empty.
	Hash common.Hash
	// ItemsCount is the total number of items across all chunks.
	ItemsCount uint64
	// Chunks holds the chunk payloads in submission order.
	Chunks [][]byte

	chunkItems []uint64
}

// BuildExtraData canonically orders, encodes and chunks the given items.
// Ordering is by item type then module ID, with the operators within each
// item already ascending; the resulting bytes must be identical across
// oracle members given identical items.  No items results in the empty
// format with a zero hash.
func BuildExtraData(items []*ExtraDataItem, maxItemsPerChunk uint64) (*ExtraData, error) {
	if maxItemsPerChunk == 0 {
		return nil, errors.New("no maximum items per chunk specified")
	}
	if len(items) == 0 {
		return &ExtraData{
			Format: contracts.ExtraDataFormatEmpty,
		}, nil
	}

	sorted := make([]*ExtraDataItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].ModuleID < sorted[j].ModuleID
	})

	for i, item := range sorted {
		if len(item.Counts) == 0 {
			return nil, fmt.Errorf("item type %d module %d has no operators", item.Type, item.ModuleID)
		}
		for j := 1; j < len(item.Counts); j++ {
			if item.Counts[j].NodeOperatorID <= item.Counts[j-1].NodeOperatorID {
				return nil, fmt.Errorf("item type %d module %d operators out of order", item.Type, item.ModuleID)
			}
		}
		if i > 0 && item.Type == sorted[i-1].Type && item.ModuleID == sorted[i-1].ModuleID {
			return nil, fmt.Errorf("duplicate item type %d module %d", item.Type, item.ModuleID)
		}
	}

	// Items are indexed globally across chunks.
	encoded := make([][]byte, len(sorted))
	for i, item := range sorted {
		encoded[i] = item.encode(uint64(i))
	}

	// Chunks are encoded last to first so that each can carry the hash of
	// its successor.
	chunkCount := (uint64(len(sorted)) + maxItemsPerChunk - 1) / maxItemsPerChunk
	chunks := make([][]byte, chunkCount)
	chunkItems := make([]uint64, chunkCount)
	nextHash := common.Hash{}
	for c := int(chunkCount) - 1; c >= 0; c-- {
		start := uint64(c) * maxItemsPerChunk
		end := start + maxItemsPerChunk
		if end > uint64(len(sorted)) {
			end = uint64(len(sorted))
		}
		chunk := make([]byte, 0, 32)
		chunk = append(chunk, nextHash[:]...)
		for _, itemBytes := range encoded[start:end] {
			chunk = append(chunk, itemBytes...)
		}
		chunks[c] = chunk
		chunkItems[c] = end - start
		nextHash = crypto.Keccak256Hash(chunk)
	}

	return &ExtraData{
		Format:     contracts.ExtraDataFormatList,
		Hash:       nextHash,
		ItemsCount: uint64(len(sorted)),
		Chunks:     chunks,
		chunkItems: chunkItems,
	}, nil
}

// NextChunk returns the first chunk not covered by the given number of
// already-submitted items, allowing submission to resume mid-report after a
// restart.  It returns nil once every item has been submitted, and an error
// if the count does not fall on a chunk boundary.
func (d *ExtraData) NextChunk(itemsSubmitted uint64) ([]byte, error) {
	covered := uint64(0)
	for i, items := range d.chunkItems {
		if covered == itemsSubmitted {
			return d.Chunks[i], nil
		}
		if itemsSubmitted < covered+items {
			return nil, fmt.Errorf("submitted item count %d does not align with chunk boundaries", itemsSubmitted)
		}
		covered += items
	}
	if covered == itemsSubmitted {
		return nil, nil
	}

	return nil, fmt.Errorf("submitted item count %d exceeds total items %d", itemsSubmitted, d.ItemsCount)
}

// encode serialises the item at the given global index.  The layout is the
// item index in 3 bytes, the type in 2, the module ID in 3, the operator
// count in 8, then the operator IDs in 8 bytes each followed by the new
// totals in 16 bytes each, all big-endian.
func (i *ExtraDataItem) encode(index uint64) []byte {
	buf := make([]byte, 0, 16+24*len(i.Counts))
	buf = appendUintN(buf, index, 3)
	buf = appendUintN(buf, uint64(i.Type), 2)
	buf = appendUintN(buf, i.ModuleID, 3)
	buf = appendUintN(buf, uint64(len(i.Counts)), 8)
	for _, count := range i.Counts {
		buf = appendUintN(buf, count.NodeOperatorID, 8)
	}
	for _, count := range i.Counts {
		buf = appendUintN(buf, count.Count, 16)
	}

	return buf
}

// appendUintN appends the big-endian encoding of value in width bytes.
func appendUintN(buf []byte, value uint64, width int) []byte {
	for shift := 8 * (width - 1); shift >= 0; shift -= 8 {
		buf = append(buf, byte(value>>uint(shift)))
	}

	return buf
}

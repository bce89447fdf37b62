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

package contracts

import (
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// Extra data transmission formats.
const (
	// ExtraDataFormatEmpty is the format for a report without extra data.
	ExtraDataFormatEmpty = uint64(0)
	// ExtraDataFormatList is the format for extra data sent as chunked lists.
	ExtraDataFormatList = uint64(1)
)

// Extra data item types.
const (
	// ExtraDataItemTypeStuckValidators carries per-operator stuck validator counts.
	ExtraDataItemTypeStuckValidators = uint64(1)
	// ExtraDataItemTypeExitedValidators carries per-operator exited validator counts.
	ExtraDataItemTypeExitedValidators = uint64(2)
)

// ExitRequestsDataFormatList is the only supported exit requests data format.
const ExitRequestsDataFormatList = uint64(1)

// ChainConfig is the consensus chain configuration held by the consensus contract.
type ChainConfig struct {
	SlotsPerEpoch  uint64
	SecondsPerSlot uint64
	GenesisTime    uint64
}

// FrameConfig is the reporting frame configuration held by the consensus contract.
type FrameConfig struct {
	InitialEpoch        phase0.Epoch
	EpochsPerFrame      uint64
	FastLaneLengthSlots uint64
}

// CurrentFrame is the consensus contract's view of the current reporting frame.
type CurrentFrame struct {
	RefSlot                      phase0.Slot
	ReportProcessingDeadlineSlot phase0.Slot
}

// MemberInfo is the consensus state of a single committee member.
type MemberInfo struct {
	IsMember                    bool
	IsFastLane                  bool
	CanReport                   bool
	LastMemberReportRefSlot     phase0.Slot
	CurrentFrameRefSlot         phase0.Slot
	CurrentFrameConsensusReport common.Hash
	CurrentFrameMemberReport    common.Hash
}

// ConsensusState is the consensus contract's view of the current frame's report.
type ConsensusState struct {
	RefSlot            phase0.Slot
	ConsensusReport    common.Hash
	IsReportProcessing bool
}

// ProcessingState is a normalised view of a report contract's processing
// progress for the current frame, common across report modules.
type ProcessingState struct {
	RefSlot                 phase0.Slot
	DeadlineTime            uint64
	DataHash                common.Hash
	DataSubmitted           bool
	ExtraDataItemsCount     uint64
	ExtraDataItemsSubmitted uint64
	ExtraDataSubmitted      bool
}

// AccountingProcessingState is the accounting oracle's native processing state.
type AccountingProcessingState struct {
	RefSlot                 phase0.Slot
	ProcessingDeadlineTime  uint64
	MainDataHash            common.Hash
	MainDataSubmitted       bool
	ExtraDataHash           common.Hash
	ExtraDataFormat         uint64
	ExtraDataSubmitted      bool
	ExtraDataItemsCount     uint64
	ExtraDataItemsSubmitted uint64
}

// EjectorProcessingState is the exit bus oracle's native processing state.
type EjectorProcessingState struct {
	RefSlot                phase0.Slot
	ProcessingDeadlineTime uint64
	DataHash               common.Hash
	DataSubmitted          bool
	DataFormat             uint64
	RequestsCount          uint64
	RequestsSubmitted      uint64
}

// ConsensusReport is a report contract's record of the report hash awaiting
// or undergoing processing.
type ConsensusReport struct {
	Hash                   common.Hash
	RefSlot                phase0.Slot
	ProcessingDeadlineTime uint64
	ProcessingStarted      bool
}

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
	"context"
	"math/big"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// Read providers take a block hash selecting the chain state to read, with the
// zero hash meaning the latest block.  Callers that assemble a view from
// multiple reads should anchor them all at the same block hash, otherwise the
// reads can interleave with transactions that land between them.

// ChainConfigProvider is the interface for providing the consensus chain configuration.
type ChainConfigProvider interface {
	// ChainConfig returns the chain configuration held by the consensus contract.
	ChainConfig(ctx context.Context, blockHash common.Hash) (*ChainConfig, error)
}

// FrameConfigProvider is the interface for providing the reporting frame configuration.
type FrameConfigProvider interface {
	// FrameConfig returns the frame configuration held by the consensus contract.
	FrameConfig(ctx context.Context, blockHash common.Hash) (*FrameConfig, error)
}

// CurrentFrameProvider is the interface for providing the contract's current frame.
type CurrentFrameProvider interface {
	// CurrentFrame returns the consensus contract's view of the current frame.
	CurrentFrame(ctx context.Context, blockHash common.Hash) (*CurrentFrame, error)
}

// MembersProvider is the interface for providing the oracle committee membership.
type MembersProvider interface {
	// Members returns the addresses of the oracle committee in contract order.
	Members(ctx context.Context, blockHash common.Hash) ([]common.Address, error)
}

// QuorumProvider is the interface for providing the consensus quorum.
type QuorumProvider interface {
	// Quorum returns the number of members required for consensus.
	Quorum(ctx context.Context, blockHash common.Hash) (uint64, error)
}

// ConsensusStateProvider is the interface for providing the current consensus state.
type ConsensusStateProvider interface {
	// ConsensusState returns the consensus contract's view of the current report.
	ConsensusState(ctx context.Context, blockHash common.Hash) (*ConsensusState, error)
}

// MemberInfoProvider is the interface for providing per-member consensus state.
type MemberInfoProvider interface {
	// MemberInfo returns the consensus state of the given committee member.
	MemberInfo(ctx context.Context, blockHash common.Hash, address common.Address) (*MemberInfo, error)
}

// MemberHashesProvider is the interface for providing each member's submitted report hash.
type MemberHashesProvider interface {
	// MemberHashes returns the report hash submitted by each of the given
	// members for the current frame.  Members that have not submitted are
	// mapped to the zero hash.
	MemberHashes(ctx context.Context, blockHash common.Hash, members []common.Address) (map[common.Address]common.Hash, error)
}

// ConsensusContractProvider is the interface for providing the consensus contract address.
type ConsensusContractProvider interface {
	// ConsensusContract returns the address of the hash consensus contract.
	ConsensusContract(ctx context.Context, blockHash common.Hash) (common.Address, error)
}

// ConsensusVersionProvider is the interface for providing the report contract's
// expected consensus version.
type ConsensusVersionProvider interface {
	// ConsensusVersion returns the consensus version expected by the report contract.
	ConsensusVersion(ctx context.Context, blockHash common.Hash) (uint64, error)
}

// ContractVersionProvider is the interface for providing the report contract's version.
type ContractVersionProvider interface {
	// ContractVersion returns the version of the report contract.
	ContractVersion(ctx context.Context, blockHash common.Hash) (uint64, error)
}

// LastProcessingRefSlotProvider is the interface for providing the last processed reference slot.
type LastProcessingRefSlotProvider interface {
	// LastProcessingRefSlot returns the reference slot of the last report
	// accepted for processing by the report contract.
	LastProcessingRefSlot(ctx context.Context, blockHash common.Hash) (phase0.Slot, error)
}

// ProcessingStateProvider is the interface for providing normalised report processing state.
type ProcessingStateProvider interface {
	// ProcessingState returns the report contract's processing progress for
	// the current frame.
	ProcessingState(ctx context.Context, blockHash common.Hash) (*ProcessingState, error)
}

// LastRequestedValidatorIndicesProvider is the interface for providing exit
// request watermarks.
type LastRequestedValidatorIndicesProvider interface {
	// LastRequestedValidatorIndices returns, for each given node operator of
	// the given module, the index of the latest validator whose exit has been
	// requested, or -1 if no exit has been requested.
	LastRequestedValidatorIndices(ctx context.Context, blockHash common.Hash, moduleID uint64, nodeOperatorIDs []uint64) ([]int64, error)
}

// PerfLeewayProvider is the interface for providing the fee oracle's
// performance leeway.
type PerfLeewayProvider interface {
	// AvgPerfLeewayBP returns the leeway below the network average performance,
	// in basis points, within which a validator still earns its share.
	AvgPerfLeewayBP(ctx context.Context, blockHash common.Hash) (uint64, error)
}

// PendingSharesProvider is the interface for providing the fee shares accrued
// for distribution by the fee distributor.
type PendingSharesProvider interface {
	// PendingSharesToDistribute returns the fee shares accrued and not yet
	// distributed.
	PendingSharesToDistribute(ctx context.Context, blockHash common.Hash) (*big.Int, error)
}

// VaultWithdrawalsProvider is the interface for providing the amounts taken
// out of the withdrawal vault by rebase distributions.
type VaultWithdrawalsProvider interface {
	// VaultWithdrawals returns the amount withdrawn from the withdrawal vault
	// by each rebase distribution in the given execution block range, both
	// bounds inclusive, in wei.
	VaultWithdrawals(ctx context.Context, fromBlock uint64, toBlock uint64) ([]*big.Int, error)
}

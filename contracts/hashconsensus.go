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
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// HashConsensus is a binding to a hash consensus contract.
type HashConsensus struct {
	*Contract
}

// memberConsensusStateRaw mirrors the getConsensusStateForMember return tuple.
type memberConsensusStateRaw struct {
	CurrentFrameRefSlot         *big.Int
	CurrentFrameConsensusReport [32]byte
	IsMember                    bool
	IsFastLane                  bool
	CanReport                   bool
	LastMemberReportRefSlot     *big.Int
	CurrentFrameMemberReport    [32]byte
}

// NewHashConsensus creates a binding to the hash consensus contract at the given address.
func NewHashConsensus(address common.Address, backend bind.ContractBackend) *HashConsensus {
	return &HashConsensus{Contract: newContract(address, hashConsensusABI, backend)}
}

// ChainConfig returns the chain configuration held by the consensus contract.
func (c *HashConsensus) ChainConfig(ctx context.Context, blockHash common.Hash) (*ChainConfig, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getChainConfig"); err != nil {
		return nil, err
	}

	return &ChainConfig{
		SlotsPerEpoch:  out[0].(*big.Int).Uint64(),
		SecondsPerSlot: out[1].(*big.Int).Uint64(),
		GenesisTime:    out[2].(*big.Int).Uint64(),
	}, nil
}

// FrameConfig returns the frame configuration held by the consensus contract.
func (c *HashConsensus) FrameConfig(ctx context.Context, blockHash common.Hash) (*FrameConfig, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getFrameConfig"); err != nil {
		return nil, err
	}

	return &FrameConfig{
		InitialEpoch:        phase0.Epoch(out[0].(*big.Int).Uint64()),
		EpochsPerFrame:      out[1].(*big.Int).Uint64(),
		FastLaneLengthSlots: out[2].(*big.Int).Uint64(),
	}, nil
}

// CurrentFrame returns the consensus contract's view of the current frame.
func (c *HashConsensus) CurrentFrame(ctx context.Context, blockHash common.Hash) (*CurrentFrame, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getCurrentFrame"); err != nil {
		return nil, err
	}

	return &CurrentFrame{
		RefSlot:                      phase0.Slot(out[0].(*big.Int).Uint64()),
		ReportProcessingDeadlineSlot: phase0.Slot(out[1].(*big.Int).Uint64()),
	}, nil
}

// InitialRefSlot returns the reference slot of the first possible frame.
func (c *HashConsensus) InitialRefSlot(ctx context.Context, blockHash common.Hash) (phase0.Slot, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getInitialRefSlot"); err != nil {
		return 0, err
	}

	return phase0.Slot(out[0].(*big.Int).Uint64()), nil
}

// Members returns the addresses of the oracle committee in contract order.
func (c *HashConsensus) Members(ctx context.Context, blockHash common.Hash) ([]common.Address, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getMembers"); err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// FastLaneMembers returns the members eligible to report in the frame's fast lane interval.
func (c *HashConsensus) FastLaneMembers(ctx context.Context, blockHash common.Hash) ([]common.Address, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getFastLaneMembers"); err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// Quorum returns the number of members required for consensus.
func (c *HashConsensus) Quorum(ctx context.Context, blockHash common.Hash) (uint64, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getQuorum"); err != nil {
		return 0, err
	}

	return out[0].(*big.Int).Uint64(), nil
}

// ConsensusState returns the consensus contract's view of the current report.
func (c *HashConsensus) ConsensusState(ctx context.Context, blockHash common.Hash) (*ConsensusState, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getConsensusState"); err != nil {
		return nil, err
	}

	return &ConsensusState{
		RefSlot:            phase0.Slot(out[0].(*big.Int).Uint64()),
		ConsensusReport:    common.Hash(out[1].([32]byte)),
		IsReportProcessing: out[2].(bool),
	}, nil
}

// MemberInfo returns the consensus state of the given committee member.
func (c *HashConsensus) MemberInfo(ctx context.Context, blockHash common.Hash, address common.Address) (*MemberInfo, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getConsensusStateForMember", address); err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(memberConsensusStateRaw)).(*memberConsensusStateRaw)

	return &MemberInfo{
		IsMember:                    raw.IsMember,
		IsFastLane:                  raw.IsFastLane,
		CanReport:                   raw.CanReport,
		LastMemberReportRefSlot:     phase0.Slot(raw.LastMemberReportRefSlot.Uint64()),
		CurrentFrameRefSlot:         phase0.Slot(raw.CurrentFrameRefSlot.Uint64()),
		CurrentFrameConsensusReport: common.Hash(raw.CurrentFrameConsensusReport),
		CurrentFrameMemberReport:    common.Hash(raw.CurrentFrameMemberReport),
	}, nil
}

// MemberHashes returns the report hash submitted by each of the given members
// for the current frame.  Members that have not submitted are mapped to the
// zero hash.
func (c *HashConsensus) MemberHashes(ctx context.Context, blockHash common.Hash, members []common.Address) (map[common.Address]common.Hash, error) {
	hashes := make(map[common.Address]common.Hash, len(members))
	for _, member := range members {
		info, err := c.MemberInfo(ctx, blockHash, member)
		if err != nil {
			return nil, errors.Wrap(err, "failed to obtain member consensus state")
		}
		hashes[member] = info.CurrentFrameMemberReport
	}

	return hashes, nil
}

// SubmitReport submits the member's report hash for the given reference slot.
func (c *HashConsensus) SubmitReport(opts *bind.TransactOpts, refSlot phase0.Slot, reportHash common.Hash, consensusVersion uint64) (*types.Transaction, error) {
	return c.transact(opts, "submitReport",
		new(big.Int).SetUint64(uint64(refSlot)),
		[32]byte(reportHash),
		new(big.Int).SetUint64(consensusVersion),
	)
}

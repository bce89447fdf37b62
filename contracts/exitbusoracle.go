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
)

// ExitBusOracle is a binding to a validator exit bus report contract.
type ExitBusOracle struct {
	BaseOracle
}

// ejectorProcessingStateRaw mirrors the getProcessingState return tuple.
type ejectorProcessingStateRaw struct {
	CurrentFrameRefSlot    *big.Int
	ProcessingDeadlineTime *big.Int
	DataHash               [32]byte
	DataSubmitted          bool
	DataFormat             *big.Int
	RequestsCount          *big.Int
	RequestsSubmitted      *big.Int
}

// NewExitBusOracle creates a binding to the exit bus oracle contract at the
// given address.
func NewExitBusOracle(address common.Address, backend bind.ContractBackend) *ExitBusOracle {
	return &ExitBusOracle{BaseOracle: BaseOracle{Contract: newContract(address, exitBusOracleABI, backend)}}
}

// EjectorProcessingState returns the native processing state of the contract.
func (c *ExitBusOracle) EjectorProcessingState(ctx context.Context, blockHash common.Hash) (*EjectorProcessingState, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getProcessingState"); err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(ejectorProcessingStateRaw)).(*ejectorProcessingStateRaw)

	return &EjectorProcessingState{
		RefSlot:                phase0.Slot(raw.CurrentFrameRefSlot.Uint64()),
		ProcessingDeadlineTime: raw.ProcessingDeadlineTime.Uint64(),
		DataHash:               common.Hash(raw.DataHash),
		DataSubmitted:          raw.DataSubmitted,
		DataFormat:             raw.DataFormat.Uint64(),
		RequestsCount:          raw.RequestsCount.Uint64(),
		RequestsSubmitted:      raw.RequestsSubmitted.Uint64(),
	}, nil
}

// ProcessingState returns the normalised processing state of the contract.
// Exit requests are part of the main report data, so a report with its data
// submitted has nothing further to deliver.
func (c *ExitBusOracle) ProcessingState(ctx context.Context, blockHash common.Hash) (*ProcessingState, error) {
	state, err := c.EjectorProcessingState(ctx, blockHash)
	if err != nil {
		return nil, err
	}

	return &ProcessingState{
		RefSlot:            state.RefSlot,
		DeadlineTime:       state.ProcessingDeadlineTime,
		DataHash:           state.DataHash,
		DataSubmitted:      state.DataSubmitted,
		ExtraDataSubmitted: state.DataSubmitted,
	}, nil
}

// IsPaused returns true if the contract does not accept reports.
func (c *ExitBusOracle) IsPaused(ctx context.Context, blockHash common.Hash) (bool, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "isPaused"); err != nil {
		return false, err
	}

	return out[0].(bool), nil
}

// LastRequestedValidatorIndices returns, for each given node operator of the
// given module, the index of the latest validator whose exit has been
// requested, or -1 if no exit has been requested.
func (c *ExitBusOracle) LastRequestedValidatorIndices(ctx context.Context, blockHash common.Hash, moduleID uint64, nodeOperatorIDs []uint64) ([]int64, error) {
	ids := make([]*big.Int, len(nodeOperatorIDs))
	for i, id := range nodeOperatorIDs {
		ids[i] = new(big.Int).SetUint64(id)
	}

	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getLastRequestedValidatorIndices", new(big.Int).SetUint64(moduleID), ids); err != nil {
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	indices := make([]int64, len(raw))
	for i, index := range raw {
		indices[i] = index.Int64()
	}

	return indices, nil
}

// SubmitReportData submits the report data for processing.
func (c *ExitBusOracle) SubmitReportData(opts *bind.TransactOpts, data *ExitBusReportData, contractVersion uint64) (*types.Transaction, error) {
	return c.transact(opts, "submitReportData", *data, new(big.Int).SetUint64(contractVersion))
}

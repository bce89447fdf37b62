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

// AccountingOracle is a binding to an accounting oracle report contract.
type AccountingOracle struct {
	BaseOracle
}

// accountingProcessingStateRaw mirrors the getProcessingState return tuple.
type accountingProcessingStateRaw struct {
	CurrentFrameRefSlot     *big.Int
	ProcessingDeadlineTime  *big.Int
	MainDataHash            [32]byte
	MainDataSubmitted       bool
	ExtraDataHash           [32]byte
	ExtraDataFormat         *big.Int
	ExtraDataSubmitted      bool
	ExtraDataItemsCount     *big.Int
	ExtraDataItemsSubmitted *big.Int
}

// NewAccountingOracle creates a binding to the accounting oracle contract at
// the given address.
func NewAccountingOracle(address common.Address, backend bind.ContractBackend) *AccountingOracle {
	return &AccountingOracle{BaseOracle: BaseOracle{Contract: newContract(address, accountingOracleABI, backend)}}
}

// AccountingProcessingState returns the native processing state of the contract.
func (c *AccountingOracle) AccountingProcessingState(ctx context.Context, blockHash common.Hash) (*AccountingProcessingState, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getProcessingState"); err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(accountingProcessingStateRaw)).(*accountingProcessingStateRaw)

	return &AccountingProcessingState{
		RefSlot:                 phase0.Slot(raw.CurrentFrameRefSlot.Uint64()),
		ProcessingDeadlineTime:  raw.ProcessingDeadlineTime.Uint64(),
		MainDataHash:            common.Hash(raw.MainDataHash),
		MainDataSubmitted:       raw.MainDataSubmitted,
		ExtraDataHash:           common.Hash(raw.ExtraDataHash),
		ExtraDataFormat:         raw.ExtraDataFormat.Uint64(),
		ExtraDataSubmitted:      raw.ExtraDataSubmitted,
		ExtraDataItemsCount:     raw.ExtraDataItemsCount.Uint64(),
		ExtraDataItemsSubmitted: raw.ExtraDataItemsSubmitted.Uint64(),
	}, nil
}

// ProcessingState returns the normalised processing state of the contract.
func (c *AccountingOracle) ProcessingState(ctx context.Context, blockHash common.Hash) (*ProcessingState, error) {
	state, err := c.AccountingProcessingState(ctx, blockHash)
	if err != nil {
		return nil, err
	}

	return &ProcessingState{
		RefSlot:                 state.RefSlot,
		DeadlineTime:            state.ProcessingDeadlineTime,
		DataHash:                state.MainDataHash,
		DataSubmitted:           state.MainDataSubmitted,
		ExtraDataItemsCount:     state.ExtraDataItemsCount,
		ExtraDataItemsSubmitted: state.ExtraDataItemsSubmitted,
		ExtraDataSubmitted:      state.ExtraDataSubmitted,
	}, nil
}

// SubmitReportData submits the report data for processing.
func (c *AccountingOracle) SubmitReportData(opts *bind.TransactOpts, data *AccountingReportData, contractVersion uint64) (*types.Transaction, error) {
	return c.transact(opts, "submitReportData", *data, new(big.Int).SetUint64(contractVersion))
}

// SubmitReportExtraDataList submits a chunk of extra data items.
func (c *AccountingOracle) SubmitReportExtraDataList(opts *bind.TransactOpts, items []byte) (*types.Transaction, error) {
	return c.transact(opts, "submitReportExtraDataList", items)
}

// SubmitReportExtraDataEmpty confirms that the report has no extra data.
func (c *AccountingOracle) SubmitReportExtraDataEmpty(opts *bind.TransactOpts) (*types.Transaction, error) {
	return c.transact(opts, "submitReportExtraDataEmpty")
}

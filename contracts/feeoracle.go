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

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeOracle is a binding to a permissionless module fee oracle contract.
type FeeOracle struct {
	BaseOracle
}

// NewFeeOracle creates a binding to the fee oracle contract at the given address.
func NewFeeOracle(address common.Address, backend bind.ContractBackend) *FeeOracle {
	return &FeeOracle{BaseOracle: BaseOracle{Contract: newContract(address, feeOracleABI, backend)}}
}

// IsPaused returns true if the contract does not accept reports.
func (c *FeeOracle) IsPaused(ctx context.Context, blockHash common.Hash) (bool, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "isPaused"); err != nil {
		return false, err
	}

	return out[0].(bool), nil
}

// AvgPerfLeewayBP returns the performance leeway below the network average,
// in basis points, within which a validator still earns its share.
func (c *FeeOracle) AvgPerfLeewayBP(ctx context.Context, blockHash common.Hash) (uint64, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "avgPerfLeewayBP"); err != nil {
		return 0, err
	}

	return out[0].(*big.Int).Uint64(), nil
}

// ProcessingState returns the normalised processing state of the contract.
// The fee oracle does not track submission progress beyond acceptance of the
// report for processing, so the state is derived from the consensus report
// record.
func (c *FeeOracle) ProcessingState(ctx context.Context, blockHash common.Hash) (*ProcessingState, error) {
	report, err := c.ConsensusReport(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	lastProcessingRefSlot, err := c.LastProcessingRefSlot(ctx, blockHash)
	if err != nil {
		return nil, err
	}

	dataSubmitted := report.RefSlot > 0 && lastProcessingRefSlot >= report.RefSlot

	return &ProcessingState{
		RefSlot:            report.RefSlot,
		DeadlineTime:       report.ProcessingDeadlineTime,
		DataHash:           report.Hash,
		DataSubmitted:      dataSubmitted,
		ExtraDataSubmitted: dataSubmitted,
	}, nil
}

// SubmitReportData submits the report data for processing.
func (c *FeeOracle) SubmitReportData(opts *bind.TransactOpts, data *FeeReportData, contractVersion uint64) (*types.Transaction, error) {
	return c.transact(opts, "submitReportData", *data, new(big.Int).SetUint64(contractVersion))
}

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

package accounting

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/accordlabs/accord/util"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// farFutureEpoch marks a validator that has not initiated an exit.
const farFutureEpoch = phase0.Epoch(0xffffffffffffffff)

// moduleAccounting aggregates one staking module's accounting at the reference stamp.
type moduleAccounting struct {
	module           *keysapi.Module
	operators        []*keysapi.Operator
	numValidators    uint64
	clBalance        phase0.Gwei
	exitedByOperator map[uint64]uint64
	stuckByOperator  map[uint64]uint64
	totalExited      uint64
}

// Build assembles the accounting report for the given frame, reading chain
// state at the given reference block stamp.
func (s *Service) Build(ctx context.Context,
	frame *framecalculator.Frame,
	stamp *blockstamp.ReferenceBlockStamp,
) (
	*reportbuilder.Report,
	error,
) {
	ctx, span := otel.Tracer("accordlabs.accord.services.reportbuilder.accounting").Start(ctx, "Build")
	defer span.End()
	started := time.Now()

	if frame == nil {
		return nil, errors.New("no frame specified")
	}
	if stamp == nil {
		return nil, errors.New("no stamp specified")
	}

	accountings, err := s.collectAccounting(ctx, stamp)
	if err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}

	var numValidators uint64
	var clBalance phase0.Gwei
	moduleIDs := make([]*big.Int, 0)
	exitedTotals := make([]*big.Int, 0)
	items := make([]*reportbuilder.ExtraDataItem, 0)
	for _, accounting := range accountings {
		numValidators += accounting.numValidators
		clBalance += accounting.clBalance
		if accounting.totalExited > accounting.module.ExitedValidators {
			moduleIDs = append(moduleIDs, new(big.Int).SetUint64(accounting.module.ID))
			exitedTotals = append(exitedTotals, new(big.Int).SetUint64(accounting.totalExited))
		}
		items = append(items, extraDataItems(accounting)...)
	}

	extraData, err := reportbuilder.BuildExtraData(items, s.maxItemsPerChunk)
	if err != nil {
		buildCompleted(started, "failed")
		return nil, errors.Wrap(err, "failed to build extra data")
	}

	withdrawalVaultBalance, err := s.vaultBalance(ctx, stamp, s.withdrawalVault)
	if err != nil {
		buildCompleted(started, "failed")
		return nil, errors.Wrap(err, "failed to obtain withdrawal vault balance")
	}
	elRewardsVaultBalance, err := s.vaultBalance(ctx, stamp, s.elRewardsVault)
	if err != nil {
		buildCompleted(started, "failed")
		return nil, errors.Wrap(err, "failed to obtain execution rewards vault balance")
	}

	bunkerMode, err := s.bunker.IsBunkerMode(ctx, stamp)
	if err != nil {
		buildCompleted(started, "failed")
		return nil, errors.Wrap(err, "failed to obtain bunker mode")
	}

	tuple := &contracts.AccountingReportData{
		ConsensusVersion: new(big.Int).SetUint64(consensusVersion),
		RefSlot:          new(big.Int).SetUint64(uint64(stamp.RefSlot)),
		NumValidators:    new(big.Int).SetUint64(numValidators),
		ClBalanceGwei:    new(big.Int).SetUint64(uint64(clBalance)),
		StakingModuleIdsWithNewlyExitedValidators: moduleIDs,
		NumExitedValidatorsByStakingModule:        exitedTotals,
		WithdrawalVaultBalance:                    withdrawalVaultBalance.ToBig(),
		ElRewardsVaultBalance:                     elRewardsVaultBalance.ToBig(),
		IsBunkerMode:                              bunkerMode,
		ExtraDataFormat:                           new(big.Int).SetUint64(extraData.Format),
		ExtraDataHash:                             extraData.Hash,
		ExtraDataItemsCount:                       new(big.Int).SetUint64(extraData.ItemsCount),
	}
	encoded, err := tuple.Encode()
	if err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}

	log.Trace().
		Uint64("frame", frame.Index).
		Uint64("ref_slot", uint64(stamp.RefSlot)).
		Uint64("validators", numValidators).
		Uint64("cl_balance_gwei", uint64(clBalance)).
		Uint64("extra_data_items", extraData.ItemsCount).
		Bool("bunker", bunkerMode).
		Dur("elapsed", time.Since(started)).
		Msg("Built accounting report")
	buildCompleted(started, "succeeded")

	return &reportbuilder.Report{
		RefSlot:          stamp.RefSlot,
		ConsensusVersion: consensusVersion,
		Tuple:            tuple,
		Data:             encoded,
		Hash:             contracts.HashReportData(encoded),
		ExtraData:        extraData,
		Bunker:           bunkerMode,
	}, nil
}

// collectAccounting aggregates the accounting of every staking module at the
// reference stamp.
func (s *Service) collectAccounting(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) ([]*moduleAccounting, error) {
	validatorsResponse, err := s.validatorsProvider.Validators(ctx, &api.ValidatorsOpts{
		State: fmt.Sprintf("%#x", stamp.StateRoot),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain validators")
	}
	validatorsByPubKey := make(map[phase0.BLSPubKey]*apiv1.Validator, len(validatorsResponse.Data))
	for _, validator := range validatorsResponse.Data {
		if validator.Validator == nil {
			continue
		}
		validatorsByPubKey[validator.Validator.PublicKey] = validator
	}

	modules, err := s.keysAPI.Modules(ctx, &stamp.BlockStamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain staking modules")
	}
	sorted := make([]*keysapi.Module, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	delayedStamp, err := s.delayedStamp(ctx, stamp)
	if err != nil {
		return nil, err
	}

	accountings := make([]*moduleAccounting, 0, len(sorted))
	for _, module := range sorted {
		accounting, err := s.accountModule(ctx, stamp, delayedStamp, module, validatorsByPubKey)
		if err != nil {
			return nil, err
		}
		accountings = append(accountings, accounting)
	}

	return accountings, nil
}

// accountModule aggregates a single module's accounting from its keys, the
// consensus layer validator set and the exit request watermarks.
func (s *Service) accountModule(ctx context.Context,
	stamp *blockstamp.ReferenceBlockStamp,
	delayedStamp *blockstamp.BlockStamp,
	module *keysapi.Module,
	validatorsByPubKey map[phase0.BLSPubKey]*apiv1.Validator,
) (
	*moduleAccounting,
	error,
) {
	operators, err := s.keysAPI.Operators(ctx, &stamp.BlockStamp, module.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain operators for module %d", module.ID)
	}
	sorted := make([]*keysapi.Operator, len(operators))
	copy(sorted, operators)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	keys, err := s.keysAPI.OperatorKeys(ctx, &stamp.BlockStamp, module.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain keys for module %d", module.ID)
	}

	watermarks, err := s.watermarks(ctx, delayedStamp, module, sorted)
	if err != nil {
		return nil, err
	}

	accounting := &moduleAccounting{
		module:           module,
		operators:        sorted,
		exitedByOperator: make(map[uint64]uint64),
		stuckByOperator:  make(map[uint64]uint64),
	}
	if len(keys) == 0 {
		return accounting, nil
	}

	results, err := util.Scatter(len(keys), int(s.processConcurrency), func(offset int, entries int, _ *sync.RWMutex) (interface{}, error) {
		extent := &moduleAccounting{
			exitedByOperator: make(map[uint64]uint64),
			stuckByOperator:  make(map[uint64]uint64),
		}
		for i := offset; i < offset+entries; i++ {
			key := keys[i]
			if !key.Used {
				continue
			}
			validator, exists := validatorsByPubKey[key.Key]
			if !exists {
				// Deposited but not yet visible on the consensus layer.
				continue
			}
			extent.numValidators++
			extent.clBalance += validator.Balance
			if validator.Validator.ExitEpoch <= stamp.RefEpoch {
				extent.exitedByOperator[key.OperatorIndex]++
				extent.totalExited++
			}
			if watermark, exists := watermarks[key.OperatorIndex]; exists &&
				int64(validator.Index) <= watermark &&
				validator.Validator.ExitEpoch == farFutureEpoch {
				extent.stuckByOperator[key.OperatorIndex]++
			}
		}
		return extent, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to process keys for module %d", module.ID)
	}
	for _, result := range results {
		extent := result.Extent.(*moduleAccounting)
		accounting.numValidators += extent.numValidators
		accounting.clBalance += extent.clBalance
		accounting.totalExited += extent.totalExited
		for operator, count := range extent.exitedByOperator {
			accounting.exitedByOperator[operator] += count
		}
		for operator, count := range extent.stuckByOperator {
			accounting.stuckByOperator[operator] += count
		}
	}

	return accounting, nil
}

// delayedStamp resolves the stamp at which exit request watermarks are read.
// Only requests outstanding since before this stamp can mark a validator
// stuck; requests newer than the delay leave operators time to act.  Returns
// nil when the chain is younger than the delay.
func (s *Service) delayedStamp(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) (*blockstamp.BlockStamp, error) {
	if uint64(stamp.RefSlot) < s.stuckValidatorDelaySlots {
		return nil, nil
	}

	delayedSlot := stamp.RefSlot - phase0.Slot(s.stuckValidatorDelaySlots)
	delayed, err := s.blockStamps.BlockStamp(ctx, delayedSlot, stamp.RefSlot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve exit request watermark stamp")
	}

	return delayed, nil
}

// watermarks fetches the exit request watermark of each operator, read at the
// delayed stamp.  Operators with no outstanding request are absent from the
// result.
func (s *Service) watermarks(ctx context.Context,
	delayedStamp *blockstamp.BlockStamp,
	module *keysapi.Module,
	operators []*keysapi.Operator,
) (
	map[uint64]int64,
	error,
) {
	watermarks := make(map[uint64]int64)
	if delayedStamp == nil || len(operators) == 0 {
		return watermarks, nil
	}

	operatorIDs := make([]uint64, 0, len(operators))
	for _, operator := range operators {
		operatorIDs = append(operatorIDs, operator.Index)
	}
	indices, err := s.exitRequests.LastRequestedValidatorIndices(ctx, common.Hash(delayedStamp.BlockHash), module.ID, operatorIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain exit request watermarks for module %d", module.ID)
	}
	if len(indices) != len(operatorIDs) {
		return nil, fmt.Errorf("exit request watermarks for module %d returned %d entries for %d operators", module.ID, len(indices), len(operatorIDs))
	}
	for i, operatorID := range operatorIDs {
		if indices[i] >= 0 {
			watermarks[operatorID] = indices[i]
		}
	}

	return watermarks, nil
}

// vaultBalance reads an execution layer account balance at the stamp's block.
func (s *Service) vaultBalance(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp, address common.Address) (*uint256.Int, error) {
	balance, err := s.balanceProvider.BalanceAt(ctx, address, new(big.Int).SetUint64(stamp.BlockNumber))
	if err != nil {
		return nil, err
	}
	value, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("balance of %s out of range", address.Hex())
	}

	return value, nil
}

// extraDataItems derives one module's stuck and exited extra data items by
// comparing the reference state against the operators' reported summaries.
func extraDataItems(accounting *moduleAccounting) []*reportbuilder.ExtraDataItem {
	stuck := make([]reportbuilder.OperatorCount, 0)
	exited := make([]reportbuilder.OperatorCount, 0)
	for _, operator := range accounting.operators {
		if count := accounting.stuckByOperator[operator.Index]; count != operator.StuckValidators {
			stuck = append(stuck, reportbuilder.OperatorCount{NodeOperatorID: operator.Index, Count: count})
		}
		if count := accounting.exitedByOperator[operator.Index]; count > operator.ExitedValidators {
			exited = append(exited, reportbuilder.OperatorCount{NodeOperatorID: operator.Index, Count: count})
		}
	}

	items := make([]*reportbuilder.ExtraDataItem, 0, 2)
	if len(stuck) > 0 {
		items = append(items, &reportbuilder.ExtraDataItem{
			Type:     reportbuilder.ExtraDataItemTypeStuckValidators,
			ModuleID: accounting.module.ID,
			Counts:   stuck,
		})
	}
	if len(exited) > 0 {
		items = append(items, &reportbuilder.ExtraDataItem{
			Type:     reportbuilder.ExtraDataItemTypeExitedValidators,
			ModuleID: accounting.module.ID,
			Counts:   exited,
		})
	}

	return items
}

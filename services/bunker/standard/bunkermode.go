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

package standard

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

// rebaseWindow is the protocol rebase measured between two report stamps.
type rebaseWindow struct {
	// rebase is the consensus layer rebase over the window, in Gwei.
	rebase decimal.Decimal
	// meanValidators is the mean number of protocol validators over the window.
	meanValidators decimal.Decimal
}

// IsBunkerMode reports whether the protocol should operate in bunker mode at
// the given reference stamp.  The rebase is measured from the previous
// processed report to the stamp; with no previous report there is no window
// to assess and the protocol is not in bunker mode.
func (s *Service) IsBunkerMode(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) (bool, error) {
	ctx, span := otel.Tracer("accordlabs.accord.services.bunker.standard").Start(ctx, "IsBunkerMode")
	defer span.End()
	started := time.Now()

	if stamp == nil {
		return false, errors.New("no stamp specified")
	}

	lastRefSlot, err := s.lastProcessingSlot.LastProcessingRefSlot(ctx, common.Hash(stamp.BlockHash))
	if err != nil {
		detectionCompleted(started, "failed")
		return false, errors.Wrap(err, "failed to obtain last processing reference slot")
	}
	if lastRefSlot == 0 {
		log.Debug().Msg("No processed report; not in bunker mode")
		bunkerModeSet(false)
		detectionCompleted(started, "succeeded")
		return false, nil
	}

	prevStamp, err := s.blockStamps.ReferenceBlockStamp(ctx, lastRefSlot, stamp.Slot)
	if err != nil {
		detectionCompleted(started, "failed")
		return false, errors.Wrap(err, "failed to resolve previous report stamp")
	}
	if prevStamp.RefEpoch >= stamp.RefEpoch {
		detectionCompleted(started, "failed")
		return false, fmt.Errorf("previous report reference epoch %d not before reference epoch %d", prevStamp.RefEpoch, stamp.RefEpoch)
	}

	keys, err := s.protocolKeys(ctx, &stamp.BlockStamp)
	if err != nil {
		detectionCompleted(started, "failed")
		return false, err
	}

	window, err := s.measureWindow(ctx, prevStamp, stamp, keys)
	if err != nil {
		detectionCompleted(started, "failed")
		return false, err
	}

	if window.rebase.IsNegative() {
		log.Warn().
			Str("rebase_gwei", window.rebase.String()).
			Uint64("prev_ref_slot", uint64(prevStamp.RefSlot)).
			Uint64("ref_slot", uint64(stamp.RefSlot)).
			Msg("Negative rebase; bunker mode engaged")
		bunkerModeSet(true)
		detectionCompleted(started, "succeeded")
		return true, nil
	}

	if window.meanValidators.IsZero() {
		// No protocol validators visible on the consensus layer.
		bunkerModeSet(false)
		detectionCompleted(started, "succeeded")
		return false, nil
	}

	elapsed := s.chainTime.StartOfEpoch(stamp.RefEpoch).Sub(s.chainTime.StartOfEpoch(prevStamp.RefEpoch))
	days := decimal.NewFromInt(int64(elapsed / time.Second)).Div(decimal.NewFromInt(86400))
	daily := window.rebase.Div(window.meanValidators).Div(days)
	if daily.LessThan(decimal.NewFromInt(minNormalRebaseGweiPerValidatorDay)) {
		log.Warn().
			Str("daily_rebase_gwei", daily.String()).
			Int64("min_normal_gwei", minNormalRebaseGweiPerValidatorDay).
			Uint64("prev_ref_slot", uint64(prevStamp.RefSlot)).
			Uint64("ref_slot", uint64(stamp.RefSlot)).
			Msg("Sustained low rebase; bunker mode engaged")
		bunkerModeSet(true)
		detectionCompleted(started, "succeeded")
		return true, nil
	}

	log.Trace().
		Str("rebase_gwei", window.rebase.String()).
		Str("daily_rebase_gwei", daily.String()).
		Dur("elapsed", time.Since(started)).
		Msg("Rebase normal")
	bunkerModeSet(false)
	detectionCompleted(started, "succeeded")

	return false, nil
}

// measureWindow computes the protocol's consensus layer rebase between the two
// stamps.  Skimmed rewards land in the withdrawal vault, so the vault balance
// is part of the protocol balance at both ends; principal deposited for
// validators activated inside the window is discounted, and ETH taken out of
// the vault by a rebase distribution inside the window is credited back.
func (s *Service) measureWindow(ctx context.Context,
	prevStamp *blockstamp.ReferenceBlockStamp,
	stamp *blockstamp.ReferenceBlockStamp,
	keys map[phase0.BLSPubKey]struct{},
) (
	*rebaseWindow,
	error,
) {
	prevCount, prevBalance, err := s.protocolState(ctx, &prevStamp.BlockStamp, keys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain validators at previous report stamp")
	}
	currCount, currBalance, err := s.protocolState(ctx, &stamp.BlockStamp, keys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain validators at reference stamp")
	}
	if currCount < prevCount {
		return nil, fmt.Errorf("protocol validator count decreased from %d to %d between reports", prevCount, currCount)
	}

	prevVault, err := s.vaultBalance(ctx, &prevStamp.BlockStamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain previous withdrawal vault balance")
	}
	currVault, err := s.vaultBalance(ctx, &stamp.BlockStamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain withdrawal vault balance")
	}

	withdrawn, err := s.vaultWithdrawn(ctx, prevStamp, stamp)
	if err != nil {
		return nil, err
	}

	curr := decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(currBalance)), 0).Add(currVault)
	prev := decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(prevBalance)), 0).Add(prevVault)
	principal := decimal.NewFromInt(int64(currCount - prevCount)).Mul(decimal.NewFromInt(maxEffectiveBalanceGwei))

	return &rebaseWindow{
		rebase:         curr.Sub(prev).Sub(principal).Add(withdrawn),
		meanValidators: decimal.NewFromInt(int64(prevCount + currCount)).Div(decimal.NewFromInt(2)),
	}, nil
}

// protocolKeys returns the used signing keys of every staking module, keyed
// for membership tests.
func (s *Service) protocolKeys(ctx context.Context, stamp *blockstamp.BlockStamp) (map[phase0.BLSPubKey]struct{}, error) {
	modules, err := s.keysAPI.Modules(ctx, stamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain staking modules")
	}

	keys := make(map[phase0.BLSPubKey]struct{})
	for _, module := range modules {
		moduleKeys, err := s.keysAPI.OperatorKeys(ctx, stamp, module.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to obtain keys for module %d", module.ID)
		}
		for _, key := range moduleKeys {
			if !key.Used {
				continue
			}
			keys[key.Key] = struct{}{}
		}
	}

	return keys, nil
}

// protocolState returns the number and combined balance of the protocol's
// validators visible on the consensus layer at the given stamp.
func (s *Service) protocolState(ctx context.Context,
	stamp *blockstamp.BlockStamp,
	keys map[phase0.BLSPubKey]struct{},
) (
	uint64,
	phase0.Gwei,
	error,
) {
	validatorsResponse, err := s.validatorsProvider.Validators(ctx, &api.ValidatorsOpts{
		State: fmt.Sprintf("%#x", stamp.StateRoot),
	})
	if err != nil {
		return 0, 0, err
	}

	var count uint64
	var balance phase0.Gwei
	for _, validator := range validatorsResponse.Data {
		if validator.Validator == nil {
			continue
		}
		if _, exists := keys[validator.Validator.PublicKey]; !exists {
			continue
		}
		count++
		balance += validator.Balance
	}

	return count, balance, nil
}

// vaultBalance reads the withdrawal vault balance at the stamp's block, in Gwei.
func (s *Service) vaultBalance(ctx context.Context, stamp *blockstamp.BlockStamp) (decimal.Decimal, error) {
	balance, err := s.balanceProvider.BalanceAt(ctx, s.withdrawalVault, new(big.Int).SetUint64(stamp.BlockNumber))
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(balance, -9), nil
}

// vaultWithdrawn sums the ETH taken out of the vault by rebase distributions
// strictly after the previous stamp's block, in Gwei.  The previous report's
// own distribution is already reflected in the vault balance at that block.
func (s *Service) vaultWithdrawn(ctx context.Context,
	prevStamp *blockstamp.ReferenceBlockStamp,
	stamp *blockstamp.ReferenceBlockStamp,
) (
	decimal.Decimal,
	error,
) {
	withdrawals, err := s.vaultWithdrawals.VaultWithdrawals(ctx, prevStamp.BlockNumber+1, stamp.BlockNumber)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to obtain vault withdrawals")
	}
	if len(withdrawals) > 1 {
		return decimal.Zero, fmt.Errorf("%d rebase distributions between consecutive reports", len(withdrawals))
	}

	withdrawn := decimal.Zero
	for _, withdrawal := range withdrawals {
		withdrawn = withdrawn.Add(decimal.NewFromBigInt(withdrawal, -9))
	}

	return withdrawn, nil
}

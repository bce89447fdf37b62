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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// The report hash that members bring to consensus is the keccak-256 of the
// ABI encoding of the report tuple, so encoding here must be byte-identical
// across members given identical inputs.

// ReportData is implemented by all oracle report tuples.
type ReportData interface {
	// Encode returns the canonical ABI encoding of the report data.
	Encode() ([]byte, error)
}

// AccountingReportData is the accounting oracle's report tuple.
// Field names follow the contract ABI.
type AccountingReportData struct {
	ConsensusVersion                          *big.Int
	RefSlot                                   *big.Int
	NumValidators                             *big.Int
	ClBalanceGwei                             *big.Int
	StakingModuleIdsWithNewlyExitedValidators []*big.Int
	NumExitedValidatorsByStakingModule        []*big.Int
	WithdrawalVaultBalance                    *big.Int
	ElRewardsVaultBalance                     *big.Int
	IsBunkerMode                              bool
	ExtraDataFormat                           *big.Int
	ExtraDataHash                             [32]byte
	ExtraDataItemsCount                       *big.Int
}

// Encode returns the canonical ABI encoding of the report data.
func (d *AccountingReportData) Encode() ([]byte, error) {
	encoded, err := accountingReportDataArgs.Pack(*d)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode accounting report data")
	}

	return encoded, nil
}

// HashReportData returns the keccak-256 hash of encoded report data.
func HashReportData(encoded []byte) common.Hash {
	return crypto.Keccak256Hash(encoded)
}

// ExitBusReportData is the exit bus oracle's report tuple.
// Field names follow the contract ABI.
type ExitBusReportData struct {
	ConsensusVersion *big.Int
	RefSlot          *big.Int
	RequestsCount    *big.Int
	DataFormat       *big.Int
	Data             []byte
}

// Encode returns the canonical ABI encoding of the report data.
func (d *ExitBusReportData) Encode() ([]byte, error) {
	encoded, err := exitBusReportDataArgs.Pack(*d)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode exit bus report data")
	}

	return encoded, nil
}

// FeeReportData is the fee oracle's report tuple.
// Field names follow the contract ABI.
type FeeReportData struct {
	ConsensusVersion *big.Int
	RefSlot          *big.Int
	TreeRoot         [32]byte
	TreeCid          string
	LogCid           string
	Distributed      *big.Int
}

// Encode returns the canonical ABI encoding of the report data.
func (d *FeeReportData) Encode() ([]byte, error) {
	encoded, err := feeReportDataArgs.Pack(*d)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode fee report data")
	}

	return encoded, nil
}

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

// BaseOracle provides the methods shared by all report contracts.
type BaseOracle struct {
	*Contract
}

// ConsensusContract returns the address of the hash consensus contract.
func (c *BaseOracle) ConsensusContract(ctx context.Context, blockHash common.Hash) (common.Address, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getConsensusContract"); err != nil {
		return common.Address{}, err
	}

	return out[0].(common.Address), nil
}

// ConsensusVersion returns the consensus version expected by the report contract.
func (c *BaseOracle) ConsensusVersion(ctx context.Context, blockHash common.Hash) (uint64, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getConsensusVersion"); err != nil {
		return 0, err
	}

	return out[0].(*big.Int).Uint64(), nil
}

// ContractVersion returns the version of the report contract.
func (c *BaseOracle) ContractVersion(ctx context.Context, blockHash common.Hash) (uint64, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getContractVersion"); err != nil {
		return 0, err
	}

	return out[0].(*big.Int).Uint64(), nil
}

// LastProcessingRefSlot returns the reference slot of the last report accepted
// for processing.
func (c *BaseOracle) LastProcessingRefSlot(ctx context.Context, blockHash common.Hash) (phase0.Slot, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getLastProcessingRefSlot"); err != nil {
		return 0, err
	}

	return phase0.Slot(out[0].(*big.Int).Uint64()), nil
}

// ConsensusReport returns the report contract's record of the report hash
// awaiting or undergoing processing.
func (c *BaseOracle) ConsensusReport(ctx context.Context, blockHash common.Hash) (*ConsensusReport, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "getConsensusReport"); err != nil {
		return nil, err
	}

	return &ConsensusReport{
		Hash:                   common.Hash(out[0].([32]byte)),
		RefSlot:                phase0.Slot(out[1].(*big.Int).Uint64()),
		ProcessingDeadlineTime: out[2].(*big.Int).Uint64(),
		ProcessingStarted:      out[3].(bool),
	}, nil
}

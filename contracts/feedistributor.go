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
)

// FeeDistributor is a binding to the fee distributor contract of the
// permissionless module.
type FeeDistributor struct {
	*Contract
}

// NewFeeDistributor creates a binding to the fee distributor contract at the
// given address.
func NewFeeDistributor(address common.Address, backend bind.ContractBackend) *FeeDistributor {
	return &FeeDistributor{Contract: newContract(address, feeDistributorABI, backend)}
}

// PendingSharesToDistribute returns the fee shares accrued and not yet
// distributed.
func (c *FeeDistributor) PendingSharesToDistribute(ctx context.Context, blockHash common.Hash) (*big.Int, error) {
	var out []interface{}
	if err := c.callAt(ctx, blockHash, &out, "pendingSharesToDistribute"); err != nil {
		return nil, err
	}

	return out[0].(*big.Int), nil
}

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

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Pool is a binding to the protocol pool contract.  The oracle only listens
// to the pool's rebase distribution events.
type Pool struct {
	*Contract
}

// NewPool creates a binding to the pool contract at the given address.
func NewPool(address common.Address, backend bind.ContractBackend) *Pool {
	return &Pool{Contract: newContract(address, poolABI, backend)}
}

// ethDistributedEvent mirrors the pool's ETHDistributed event.
type ethDistributedEvent struct {
	ReportTimestamp                *big.Int
	PreCLBalance                   *big.Int
	PostCLBalance                  *big.Int
	WithdrawalsWithdrawn           *big.Int
	ExecutionLayerRewardsWithdrawn *big.Int
	PostBufferedEther              *big.Int
}

// VaultWithdrawals returns the amount withdrawn from the withdrawal vault by
// each rebase distribution in the given execution block range, both bounds
// inclusive, in wei.
func (c *Pool) VaultWithdrawals(ctx context.Context, fromBlock uint64, toBlock uint64) ([]*big.Int, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events["ETHDistributed"].ID}},
	}
	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to filter rebase distribution events")
	}

	withdrawals := make([]*big.Int, 0, len(logs))
	for i := range logs {
		event := new(ethDistributedEvent)
		if err := c.bound.UnpackLog(event, "ETHDistributed", logs[i]); err != nil {
			return nil, errors.Wrap(err, "failed to unpack rebase distribution event")
		}
		withdrawals = append(withdrawals, event.WithdrawalsWithdrawn)
	}

	return withdrawals, nil
}

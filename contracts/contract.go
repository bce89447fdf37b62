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

// Package contracts provides bindings for the on-chain oracle contracts.
// The bindings are hand-rolled around bind.BoundContract so that the ABIs
// can be kept trimmed to the methods the oracle actually uses.
package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Contract is a generic wrapper around a bound Ethereum contract.
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	backend bind.ContractBackend
}

// newContract creates a contract bound to the given backend.
func newContract(address common.Address, contractABI abi.ABI, backend bind.ContractBackend) *Contract {
	return &Contract{
		address: address,
		abi:     contractABI,
		bound:   bind.NewBoundContract(address, contractABI, backend, backend, backend),
		backend: backend,
	}
}

// Address returns the address of the contract.
func (c *Contract) Address() common.Address {
	return c.address
}

// callAt invokes a read-only contract method at the block with the given
// hash.  A zero hash means the latest block.
func (c *Contract) callAt(ctx context.Context, blockHash common.Hash, results *[]interface{}, method string, args ...interface{}) error {
	opts := &bind.CallOpts{Context: ctx}
	if blockHash != (common.Hash{}) {
		opts.BlockHash = blockHash
	}
	if err := c.bound.Call(opts, results, method, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("call to %s failed", method))
	}

	return nil
}

// transact invokes a state-changing contract method.
func (c *Contract) transact(opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("transaction %s failed", method))
	}

	return tx, nil
}

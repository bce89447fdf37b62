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

// Package keysapi defines the interface to a protocol keys API service,
// which indexes the staking modules, node operators and signing keys of
// the protocol's registries.
package keysapi

import (
	"context"
	"errors"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// ErrStale is returned when the keys API data snapshot is older than the
// requested block stamp. The keys API indexes the chain asynchronously, so
// a caller that has just resolved a finalized stamp may have to wait for
// the service to catch up; retrying on the next cycle is the usual response.
var ErrStale = errors.New("keys API data older than requested stamp")

// Module contains the summary of a staking module.
type Module struct {
	// ID is the identifier of the module in the staking router.
	ID uint64
	// StakingModuleAddress is the address of the module contract.
	StakingModuleAddress common.Address
	// Name is the human-readable name of the module.
	Name string
	// Type identifies the module implementation, for example "curated-onchain-v1".
	Type string
	// Nonce increases whenever the module's key set changes.
	Nonce uint64
	// Active is true if the module can accept deposits.
	Active bool
	// ExitedValidators is the number of exited validators across the module.
	ExitedValidators uint64
}

// Operator contains the summary of a node operator within a staking module.
type Operator struct {
	// Index is the index of the operator within its module.
	Index uint64
	// Active is true if the operator participates in deposits.
	Active bool
	// Name is the human-readable name of the operator.
	Name string
	// RewardAddress receives the operator's share of rewards.
	RewardAddress common.Address
	// ModuleAddress is the address of the module contract the operator belongs to.
	ModuleAddress common.Address
	// TotalSigningKeys is the number of signing keys the operator has submitted.
	TotalSigningKeys uint64
	// UsedSigningKeys is the number of signing keys that have been deposited.
	UsedSigningKeys uint64
	// ExitedValidators is the number of the operator's validators that have exited.
	ExitedValidators uint64
	// StuckValidators is the number of the operator's validators that were
	// requested to exit but did not do so in time.
	StuckValidators uint64
}

// OperatorKey is a signing key submitted by a node operator.
type OperatorKey struct {
	// Index is the index of the key within its operator.
	Index uint64
	// Key is the BLS public key.
	Key phase0.BLSPubKey
	// DepositSignature is the deposit data signature for the key.
	DepositSignature phase0.BLSSignature
	// OperatorIndex is the index of the operator that submitted the key.
	OperatorIndex uint64
	// ModuleAddress is the address of the module contract the key belongs to.
	ModuleAddress common.Address
	// Used is true if the key has been deposited.
	Used bool
}

// Status contains the status of the keys API service.
type Status struct {
	// AppVersion is the version of the keys API service.
	AppVersion string
	// ChainID is the execution chain the service indexes.
	ChainID uint64
	// ELBlockNumber is the execution block of the service's current snapshot.
	ELBlockNumber uint64
}

// Service is the interface to a protocol keys API service.
//
// Operations that return registry data take the block stamp at which the
// caller resolved the rest of its inputs. Implementations confirm that the
// keys API snapshot is at least as recent as the stamp, returning ErrStale
// when it is not.
type Service interface {
	// Modules returns the staking modules known to the keys API.
	Modules(ctx context.Context, stamp *blockstamp.BlockStamp) ([]*Module, error)

	// Operators returns the operator summaries for the given staking module.
	Operators(ctx context.Context, stamp *blockstamp.BlockStamp, moduleID uint64) ([]*Operator, error)

	// OperatorKeys returns the signing keys of all operators in the given staking module.
	OperatorKeys(ctx context.Context, stamp *blockstamp.BlockStamp, moduleID uint64) ([]*OperatorKey, error)

	// Status returns the current status of the keys API service.
	Status(ctx context.Context) (*Status, error)
}

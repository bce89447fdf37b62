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

// Package controller is the interface to the oracle's cycle orchestrator,
// which drives the daemon's poll loop: it reads chain state, computes the
// current reporting frame, builds the frame's report, evaluates the hash
// consensus state machine and dispatches the recommended action through the
// submitters.
package controller

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// Service is the interface for the cycle orchestrator.
type Service interface {
	// RunCycle runs a single oracle cycle.  Transient failures are returned
	// for the caller to log; nothing is mutated on failure, so retrying on a
	// later cycle is always safe.
	RunCycle(ctx context.Context) error
}

// ConfirmFunc asks for confirmation of an action before a transaction is
// sent, returning false to decline it.  Used in manual mode to put an
// operator in the loop.
type ConfirmFunc func(ctx context.Context, action string) bool

// ExecutionHeaderProvider is the interface for providing execution block
// headers.  It is satisfied by ethclient.Client.
type ExecutionHeaderProvider interface {
	// HeaderByNumber returns the header of the given block, or of the chain
	// head if number is nil.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

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

// Package reportbuilder is the interface to the per-module oracle report
// builders.  A builder deterministically assembles the report for one frame
// from chain state at the frame's reference slot; every honest oracle member
// running the same builder against the same reference slot must produce
// byte-identical report data, as the hash of that data is what the members
// bring to consensus.
package reportbuilder

import (
	"context"
	"errors"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNotReady is returned by Build when the report cannot be completed yet,
// for example because a builder that accumulates state across cycles has not
// finished processing the frame.  The caller should retry on a later cycle.
var ErrNotReady = errors.New("report not ready")

// Report is a fully assembled oracle report for a single frame.
type Report struct {
	// RefSlot is the reference slot the report was built for.
	RefSlot phase0.Slot
	// ConsensusVersion is the version of the report semantics.
	ConsensusVersion uint64
	// Tuple is the typed report data submitted to the oracle contract.
	Tuple contracts.ReportData
	// Data is the canonical ABI encoding of Tuple.
	Data []byte
	// Hash is the keccak-256 hash of Data.  This is the value submitted to
	// the hash consensus contract.
	Hash common.Hash
	// ExtraData is the supplementary per-operator data, where the module
	// has any.
	ExtraData *ExtraData
	// Bunker is true if bunker mode was detected at the reference slot.
	Bunker bool
}

// Service is the interface for an oracle report builder.
type Service interface {
	// Module returns the name of the oracle module the builder reports for.
	Module() string

	// ConsensusVersion returns the version of the report semantics the
	// builder implements.  It must match the consensus version expected by
	// the module's report processor contract.
	ConsensusVersion() uint64

	// Build assembles the report for the given frame, reading chain state
	// at the given reference block stamp.  It returns ErrNotReady if the
	// report needs more cycles to complete.
	Build(ctx context.Context,
		frame *framecalculator.Frame,
		stamp *blockstamp.ReferenceBlockStamp,
	) (*Report, error)
}

// Copyright © 2024, 2025 Accord Labs Limited.
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

// Package consensustracker contains the hash consensus state machine.  Given a
// snapshot of on-chain consensus state for a frame and the locally computed
// report hash it determines the frame's state and the action this member
// should take.  Evaluation is pure: the same snapshot and hash always produce
// the same outcome, and all state is rebuilt from chain reads so a process
// restart mid-frame loses nothing.
package consensustracker

import (
	"context"
	"errors"

	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// ErrConsensusMismatch is returned when quorum is reached on a hash that differs
// from the locally computed report hash.  The local data diverged from the
// quorum, which could hide a bug or an adversarial majority, so it is never
// auto-resolved: submission is suppressed and an operator must intervene.
var ErrConsensusMismatch = errors.New("consensus hash differs from local report hash")

// ErrInconsistentConsensus is returned when the contract's reported consensus
// disagrees with a count of the members' submitted hashes, or when two distinct
// hashes qualify for quorum simultaneously.  The tracker never guesses a winner.
var ErrInconsistentConsensus = errors.New("inconsistent consensus state")

// State is the state of a frame's report lifecycle.
type State int

const (
	// StateCollecting means members are still computing and submitting hashes.
	StateCollecting State = iota
	// StateHashSubmitted means this member's hash is on-chain but quorum is not reached.
	StateHashSubmitted
	// StateQuorumReached means a quorum of members agree on a hash.
	StateQuorumReached
	// StateReportSubmitted means the main report data is on-chain.
	StateReportSubmitted
	// StateExtraDataSubmitted means extra data submission is under way.
	StateExtraDataSubmitted
	// StateClosed means the frame requires no further work.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateHashSubmitted:
		return "hash submitted"
	case StateQuorumReached:
		return "quorum reached"
	case StateReportSubmitted:
		return "report submitted"
	case StateExtraDataSubmitted:
		return "extra data submitted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Action is the action recommended to the caller.
type Action int

const (
	// ActionNone means no action is required for the frame.
	ActionNone Action = iota
	// ActionSubmitHash means this member should submit its report hash.
	ActionSubmitHash
	// ActionAwaitQuorum means the member should wait for more hashes.
	ActionAwaitQuorum
	// ActionSubmitReport means this member should submit the main report data.
	ActionSubmitReport
	// ActionAwaitReport means another member is expected to submit the main report data.
	ActionAwaitReport
	// ActionSubmitExtraData means this member should submit the next extra data chunk.
	ActionSubmitExtraData
	// ActionAwaitExtraData means another member is expected to submit extra data.
	ActionAwaitExtraData
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSubmitHash:
		return "submit hash"
	case ActionAwaitQuorum:
		return "await quorum"
	case ActionSubmitReport:
		return "submit report"
	case ActionAwaitReport:
		return "await report"
	case ActionSubmitExtraData:
		return "submit extra data"
	case ActionAwaitExtraData:
		return "await extra data"
	default:
		return "unknown"
	}
}

// Snapshot is the on-chain consensus state for a frame, read wholesale at a
// single block so the evaluation never acts on a partial view.
type Snapshot struct {
	// Frame is the frame under evaluation.
	Frame framecalculator.Frame
	// CurrentSlot is the slot at which the snapshot was taken.
	CurrentSlot phase0.Slot
	// Member is this operator's address, zero when observing without an account.
	Member common.Address
	// Members is the ordered member list as reported by the contract.
	Members []common.Address
	// Quorum is the number of matching hashes required for consensus.
	Quorum uint64
	// CanReport reports whether the contract will accept a hash from this
	// member at the snapshot's block.  False outside the member's reporting
	// window, most commonly while the frame's fast lane interval is reserved
	// for fast lane members.
	CanReport bool
	// FastLaneLengthSlots is the length of the frame's fast lane interval.
	FastLaneLengthSlots uint64
	// MemberHashes maps each member to its submitted hash for the frame, with
	// the zero hash for members that have not submitted.
	MemberHashes map[common.Address]common.Hash
	// ConsensusReport is the hash the contract reports as having reached
	// consensus for the frame, zero if none.
	ConsensusReport common.Hash
	// MainDataSubmitted reports whether the frame's main report data has been processed.
	MainDataSubmitted bool
	// ExtraDataItemsCount is the total number of extra data items declared by the report.
	ExtraDataItemsCount uint64
	// ExtraDataItemsSubmitted is the number of extra data items already processed.
	ExtraDataItemsSubmitted uint64
	// ExtraDataSubmitted reports whether extra data delivery is complete.  A
	// report without extra data still requires an explicit empty confirmation,
	// so this is not derivable from the item counts.
	ExtraDataSubmitted bool
	// LastProcessingRefSlot is the last reference slot the report contract processed.
	LastProcessingRefSlot phase0.Slot
}

// Outcome is the result of evaluating a snapshot.
type Outcome struct {
	// State is the frame's lifecycle state.
	State State
	// Action is the recommended action for this member.
	Action Action
	// ConsensusHash is the hash that reached quorum, zero if none.
	ConsensusHash common.Hash
	// SubmitDelaySlots is the stagger delay, in slots, this member should wait
	// and re-check on-chain state before carrying out a submit action.  Zero
	// for the frame's designated submitter.
	SubmitDelaySlots uint64
	// Alert is set for conditions that require operator attention.
	Alert bool
	// Reason is a human-readable explanation of the outcome.
	Reason string
}

// Service is the interface for the hash consensus tracker.
type Service interface {
	// Evaluate determines the frame state and recommended action for the given
	// snapshot and locally computed report hash.  On ErrConsensusMismatch and
	// ErrInconsistentConsensus the returned outcome is non-nil and carries the
	// alert detail.
	Evaluate(ctx context.Context, snapshot *Snapshot, localHash common.Hash) (*Outcome, error)
}

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

package standard

import (
	"context"
	"fmt"

	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// Evaluate determines the frame state and recommended action for the given
// snapshot and locally computed report hash.
func (s *Service) Evaluate(ctx context.Context, snapshot *consensustracker.Snapshot, localHash common.Hash) (*consensustracker.Outcome, error) {
	_, span := otel.Tracer("accordlabs.accord.services.consensustracker.standard").Start(ctx, "Evaluate")
	defer span.End()

	if snapshot == nil {
		return nil, errors.New("no snapshot supplied")
	}
	if localHash == (common.Hash{}) {
		return nil, errors.New("no local report hash supplied")
	}
	if snapshot.Quorum == 0 {
		return nil, errors.New("snapshot has zero quorum")
	}

	outcome, err := s.evaluate(snapshot, localHash)
	if outcome != nil {
		s.log.Trace().
			Uint64("frame", snapshot.Frame.Index).
			Uint64("ref_slot", uint64(snapshot.Frame.RefSlot)).
			Stringer("state", outcome.State).
			Stringer("action", outcome.Action).
			Uint64("delay_slots", outcome.SubmitDelaySlots).
			Str("reason", outcome.Reason).
			Msg("Evaluated consensus snapshot")
	}

	return outcome, err
}

func (s *Service) evaluate(snapshot *consensustracker.Snapshot, localHash common.Hash) (*consensustracker.Outcome, error) {
	// The report contract moving past the frame's reference slot means the
	// frame under evaluation is stale; recomputing the frame next cycle is
	// the only way forward.
	if snapshot.LastProcessingRefSlot > snapshot.Frame.RefSlot {
		return &consensustracker.Outcome{
			State:  consensustracker.StateClosed,
			Action: consensustracker.ActionNone,
			Reason: fmt.Sprintf("contract has already processed reference slot %d", snapshot.LastProcessingRefSlot),
		}, nil
	}

	if snapshot.MainDataSubmitted && snapshot.ExtraDataSubmitted {
		return &consensustracker.Outcome{
			State:         consensustracker.StateClosed,
			Action:        consensustracker.ActionNone,
			ConsensusHash: snapshot.ConsensusReport,
			Reason:        "report fully delivered",
		}, nil
	}

	if snapshot.CurrentSlot > snapshot.Frame.ReportProcessingDeadlineSlot {
		return &consensustracker.Outcome{
			State:         consensustracker.StateClosed,
			Action:        consensustracker.ActionNone,
			ConsensusHash: snapshot.ConsensusReport,
			Reason:        "report processing deadline missed",
		}, nil
	}

	countedHash, counted, err := countConsensus(snapshot)
	if err != nil {
		return &consensustracker.Outcome{
				State:  stateAtSnapshot(snapshot),
				Action: consensustracker.ActionNone,
				Alert:  true,
				Reason: err.Error(),
			},
			errors.Wrap(consensustracker.ErrInconsistentConsensus, err.Error())
	}
	consensusHash := snapshot.ConsensusReport
	if inconsistency := crossCheck(consensusHash, countedHash, counted); inconsistency != "" {
		return &consensustracker.Outcome{
				State:         stateAtSnapshot(snapshot),
				Action:        consensustracker.ActionNone,
				ConsensusHash: consensusHash,
				Alert:         true,
				Reason:        inconsistency,
			},
			errors.Wrap(consensustracker.ErrInconsistentConsensus, inconsistency)
	}

	if consensusHash == (common.Hash{}) {
		return s.evaluateCollecting(snapshot, localHash)
	}

	if consensusHash != localHash {
		reason := fmt.Sprintf("consensus hash %#x differs from local report hash %#x", consensusHash, localHash)
		return &consensustracker.Outcome{
				State:         consensustracker.StateQuorumReached,
				Action:        consensustracker.ActionNone,
				ConsensusHash: consensusHash,
				Alert:         true,
				Reason:        reason,
			},
			errors.Wrap(consensustracker.ErrConsensusMismatch, reason)
	}

	if !snapshot.MainDataSubmitted {
		return s.evaluateReportPhase(snapshot, localHash, consensusHash)
	}

	return s.evaluateExtraDataPhase(snapshot, consensusHash)
}

// evaluateCollecting handles frames on which the contract reports no consensus.
func (s *Service) evaluateCollecting(snapshot *consensustracker.Snapshot, localHash common.Hash) (*consensustracker.Outcome, error) {
	if _, isMember := memberPosition(snapshot); !isMember {
		return &consensustracker.Outcome{
			State:  consensustracker.StateCollecting,
			Action: consensustracker.ActionAwaitQuorum,
			Reason: "observing; waiting for member hashes",
		}, nil
	}

	myHash := snapshot.MemberHashes[snapshot.Member]
	if myHash == localHash {
		return &consensustracker.Outcome{
			State:  consensustracker.StateHashSubmitted,
			Action: consensustracker.ActionAwaitQuorum,
			Reason: "hash submitted; waiting for quorum",
		}, nil
	}

	return s.submitHashOutcome(snapshot, myHash, common.Hash{})
}

// evaluateReportPhase handles frames with consensus on the local hash whose
// main report data has not yet been submitted.
func (s *Service) evaluateReportPhase(snapshot *consensustracker.Snapshot, localHash common.Hash, consensusHash common.Hash) (*consensustracker.Outcome, error) {
	position, isMember := memberPosition(snapshot)
	if !isMember {
		return &consensustracker.Outcome{
			State:         consensustracker.StateQuorumReached,
			Action:        consensustracker.ActionAwaitReport,
			ConsensusHash: consensusHash,
			Reason:        "waiting for a member to submit report data",
		}, nil
	}

	// A member joining the quorum late still puts its hash on-chain, both to
	// strengthen the consensus and to leave an auditable record.
	if myHash := snapshot.MemberHashes[snapshot.Member]; myHash != localHash {
		return s.submitHashOutcome(snapshot, myHash, consensusHash)
	}

	delay := s.submitDelay(snapshot, position)
	reason := "designated submitter for the frame"
	if delay > 0 {
		reason = "fallback submitter after stagger delay"
	}

	return &consensustracker.Outcome{
		State:            consensustracker.StateQuorumReached,
		Action:           consensustracker.ActionSubmitReport,
		ConsensusHash:    consensusHash,
		SubmitDelaySlots: delay,
		Reason:           reason,
	}, nil
}

// evaluateExtraDataPhase handles frames whose main report data is on-chain but
// whose extra data delivery is incomplete.
func (s *Service) evaluateExtraDataPhase(snapshot *consensustracker.Snapshot, consensusHash common.Hash) (*consensustracker.Outcome, error) {
	state := consensustracker.StateReportSubmitted
	if snapshot.ExtraDataItemsSubmitted > 0 {
		state = consensustracker.StateExtraDataSubmitted
	}

	position, isMember := memberPosition(snapshot)
	if !isMember {
		return &consensustracker.Outcome{
			State:         state,
			Action:        consensustracker.ActionAwaitExtraData,
			ConsensusHash: consensusHash,
			Reason:        "waiting for a member to submit extra data",
		}, nil
	}

	delay := s.submitDelay(snapshot, position)
	reason := "designated submitter for the frame"
	if delay > 0 {
		reason = "fallback submitter after stagger delay"
	}

	return &consensustracker.Outcome{
		State:            state,
		Action:           consensustracker.ActionSubmitExtraData,
		ConsensusHash:    consensusHash,
		SubmitDelaySlots: delay,
		Reason:           reason,
	}, nil
}

// submitHashOutcome recommends hash submission, postponed for the remainder of
// the fast lane interval when the contract will not yet accept the hash.
func (s *Service) submitHashOutcome(snapshot *consensustracker.Snapshot, myHash common.Hash, consensusHash common.Hash) (*consensustracker.Outcome, error) {
	state := consensustracker.StateCollecting
	reason := "hash not yet submitted"
	switch {
	case consensusHash != (common.Hash{}):
		state = consensustracker.StateQuorumReached
		reason = "consensus reached without this member's hash"
	case myHash != (common.Hash{}):
		state = consensustracker.StateHashSubmitted
		reason = "local report hash changed; resubmitting"
	}

	delay := uint64(0)
	if !snapshot.CanReport {
		delay = 1
		reason = "member cannot report yet"
		if end := snapshot.Frame.RefSlot + phase0.Slot(snapshot.FastLaneLengthSlots); end > snapshot.CurrentSlot {
			delay = uint64(end - snapshot.CurrentSlot)
			reason = "waiting out the fast lane interval"
		}
	}

	return &consensustracker.Outcome{
		State:            state,
		Action:           consensustracker.ActionSubmitHash,
		ConsensusHash:    consensusHash,
		SubmitDelaySlots: delay,
		Reason:           reason,
	}, nil
}

// countConsensus tallies the members' submitted hashes and returns the hash
// reaching quorum, if any.  Two hashes qualifying simultaneously is an error.
func countConsensus(snapshot *consensustracker.Snapshot) (common.Hash, bool, error) {
	counts := make(map[common.Hash]uint64, len(snapshot.Members))
	for _, member := range snapshot.Members {
		hash := snapshot.MemberHashes[member]
		if hash == (common.Hash{}) {
			continue
		}
		counts[hash]++
	}

	winner := common.Hash{}
	found := false
	for hash, count := range counts {
		if count < snapshot.Quorum {
			continue
		}
		if found {
			return common.Hash{}, false, errors.New("multiple report hashes reached quorum")
		}
		winner = hash
		found = true
	}

	return winner, found, nil
}

// crossCheck compares the contract's reported consensus against the counted
// member hashes, returning a description of any disagreement.  With the
// snapshot anchored at a single block the two always agree on a consistent
// contract.
func crossCheck(consensusHash common.Hash, countedHash common.Hash, counted bool) string {
	switch {
	case consensusHash != (common.Hash{}) && !counted:
		return fmt.Sprintf("contract reports consensus %#x unsupported by member hashes", consensusHash)
	case consensusHash != (common.Hash{}) && countedHash != consensusHash:
		return fmt.Sprintf("contract reports consensus %#x but member hashes reach quorum on %#x", consensusHash, countedHash)
	case consensusHash == (common.Hash{}) && counted:
		return fmt.Sprintf("member hashes reach quorum on %#x but contract reports no consensus", countedHash)
	default:
		return ""
	}
}

// stateAtSnapshot derives the lifecycle state evident from the snapshot alone,
// used when an inconsistency stops evaluation from progressing further.
func stateAtSnapshot(snapshot *consensustracker.Snapshot) consensustracker.State {
	if snapshot.ConsensusReport != (common.Hash{}) {
		return consensustracker.StateQuorumReached
	}
	if snapshot.MemberHashes[snapshot.Member] != (common.Hash{}) {
		return consensustracker.StateHashSubmitted
	}

	return consensustracker.StateCollecting
}

// memberPosition returns this member's index in the contract's member list.
func memberPosition(snapshot *consensustracker.Snapshot) (int, bool) {
	if snapshot.Member == (common.Address{}) {
		return 0, false
	}
	for i, member := range snapshot.Members {
		if member == snapshot.Member {
			return i, true
		}
	}

	return 0, false
}

// submitDelay returns the stagger delay for this member's data submission.
// The designated submitter for frame k is Members[k mod len(Members)] and
// submits without delay; every other member backs it up after a delay growing
// with its rotational distance from the designated member.
func (s *Service) submitDelay(snapshot *consensustracker.Snapshot, position int) uint64 {
	memberCount := len(snapshot.Members)
	if memberCount == 0 {
		return 0
	}
	designated := int(snapshot.Frame.Index % uint64(memberCount))
	offset := ((position-designated)%memberCount + memberCount) % memberCount

	return uint64(offset) * s.submitDelaySlots
}

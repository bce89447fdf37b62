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

package standard_test

import (
	"context"
	"testing"

	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/accordlabs/accord/services/consensustracker/standard"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func hash(b byte) common.Hash {
	return common.BytesToHash([]byte{b})
}

func mustTracker(t *testing.T, params ...standard.Parameter) *standard.Service {
	t.Helper()

	s, err := standard.New(context.Background(), append([]standard.Parameter{standard.WithLogLevel(zerolog.Disabled)}, params...)...)
	require.NoError(t, err)

	return s
}

// testSnapshot returns a snapshot for a five-member committee with quorum 3,
// evaluated by the first member, who is also the frame's designated submitter.
func testSnapshot() *consensustracker.Snapshot {
	return &consensustracker.Snapshot{
		Frame: framecalculator.Frame{
			Index:                        0,
			RefSlot:                      1000,
			ReportProcessingDeadlineSlot: 1960,
		},
		CurrentSlot:  1100,
		Member:       addr(1),
		Members:      []common.Address{addr(1), addr(2), addr(3), addr(4), addr(5)},
		Quorum:       3,
		CanReport:    true,
		MemberHashes: map[common.Address]common.Hash{},
	}
}

func TestEvaluateGuards(t *testing.T) {
	ctx := context.Background()
	s := mustTracker(t)

	_, err := s.Evaluate(ctx, nil, hash(0xab))
	require.EqualError(t, err, "no snapshot supplied")

	_, err = s.Evaluate(ctx, testSnapshot(), common.Hash{})
	require.EqualError(t, err, "no local report hash supplied")

	snapshot := testSnapshot()
	snapshot.Quorum = 0
	_, err = s.Evaluate(ctx, snapshot, hash(0xab))
	require.EqualError(t, err, "snapshot has zero quorum")
}

func TestEvaluateStaleFrame(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	snapshot.LastProcessingRefSlot = 1960

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateClosed, outcome.State)
	require.Equal(t, consensustracker.ActionNone, outcome.Action)
	require.False(t, outcome.Alert)
}

func TestEvaluateFullyDelivered(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	for _, member := range snapshot.Members {
		snapshot.MemberHashes[member] = hash(0xab)
	}
	snapshot.ConsensusReport = hash(0xab)
	snapshot.MainDataSubmitted = true
	snapshot.ExtraDataItemsCount = 2
	snapshot.ExtraDataItemsSubmitted = 2
	snapshot.ExtraDataSubmitted = true

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateClosed, outcome.State)
	require.Equal(t, consensustracker.ActionNone, outcome.Action)
	require.Equal(t, "report fully delivered", outcome.Reason)
}

func TestEvaluateDeadlineMissed(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	snapshot.CurrentSlot = 1961

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateClosed, outcome.State)
	require.Equal(t, consensustracker.ActionNone, outcome.Action)
	require.Equal(t, "report processing deadline missed", outcome.Reason)
}

func TestEvaluateHashNotSubmitted(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateCollecting, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitHash, outcome.Action)
	require.Zero(t, outcome.SubmitDelaySlots)
}

func TestEvaluateHashSubmittedIdempotent(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	snapshot.MemberHashes[addr(1)] = hash(0xab)

	// A hash already on-chain must never be recommended for resubmission.
	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateHashSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionAwaitQuorum, outcome.Action)

	again, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, outcome, again)
}

func TestEvaluateHashChanged(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	snapshot.MemberHashes[addr(1)] = hash(0xcd)

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateHashSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitHash, outcome.Action)
	require.Equal(t, "local report hash changed; resubmitting", outcome.Reason)
}

func TestEvaluateFastLanePostponesHash(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	snapshot.CanReport = false
	snapshot.FastLaneLengthSlots = 110
	snapshot.CurrentSlot = 1100

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.ActionSubmitHash, outcome.Action)
	require.Equal(t, uint64(10), outcome.SubmitDelaySlots)
	require.Equal(t, "waiting out the fast lane interval", outcome.Reason)
}

func TestEvaluateObserver(t *testing.T) {
	s := mustTracker(t)

	// Collecting.
	snapshot := testSnapshot()
	snapshot.Member = common.Address{}
	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateCollecting, outcome.State)
	require.Equal(t, consensustracker.ActionAwaitQuorum, outcome.Action)

	// Quorum reached.
	snapshot = testSnapshot()
	snapshot.Member = common.Address{}
	for _, member := range snapshot.Members {
		snapshot.MemberHashes[member] = hash(0xab)
	}
	snapshot.ConsensusReport = hash(0xab)
	outcome, err = s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateQuorumReached, outcome.State)
	require.Equal(t, consensustracker.ActionAwaitReport, outcome.Action)

	// Extra data outstanding.
	snapshot.MainDataSubmitted = true
	snapshot.ExtraDataItemsCount = 2
	outcome, err = s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateReportSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionAwaitExtraData, outcome.Action)
}

func TestEvaluateQuorum(t *testing.T) {
	ctx := context.Background()
	s := mustTracker(t)

	// Two members short of quorum: no winner.
	snapshot := testSnapshot()
	snapshot.MemberHashes[addr(1)] = hash(0xab)
	snapshot.MemberHashes[addr(2)] = hash(0xab)
	snapshot.MemberHashes[addr(5)] = hash(0xcd)
	outcome, err := s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateHashSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionAwaitQuorum, outcome.Action)
	require.Equal(t, common.Hash{}, outcome.ConsensusHash)

	// Quorum of three on the local hash, confirmed by the contract.
	snapshot.MemberHashes[addr(3)] = hash(0xab)
	snapshot.ConsensusReport = hash(0xab)
	outcome, err = s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateQuorumReached, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitReport, outcome.Action)
	require.Equal(t, hash(0xab), outcome.ConsensusHash)
}

func TestEvaluateConsensusMismatch(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	for _, member := range snapshot.Members[1:] {
		snapshot.MemberHashes[member] = hash(0xcd)
	}
	snapshot.MemberHashes[addr(1)] = hash(0xab)
	snapshot.ConsensusReport = hash(0xcd)

	// Quorum on a hash that differs from the local computation must suppress
	// submission and alert, whatever this member's rotation position.
	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.ErrorIs(t, err, consensustracker.ErrConsensusMismatch)
	require.NotNil(t, outcome)
	require.Equal(t, consensustracker.StateQuorumReached, outcome.State)
	require.Equal(t, consensustracker.ActionNone, outcome.Action)
	require.True(t, outcome.Alert)
	require.Equal(t, hash(0xcd), outcome.ConsensusHash)
}

func TestEvaluateInconsistentConsensus(t *testing.T) {
	ctx := context.Background()
	s := mustTracker(t)

	tests := []struct {
		name     string
		snapshot func() *consensustracker.Snapshot
	}{
		{
			name: "ConsensusWithoutHashes",
			snapshot: func() *consensustracker.Snapshot {
				snapshot := testSnapshot()
				snapshot.ConsensusReport = hash(0xab)

				return snapshot
			},
		},
		{
			name: "ConsensusAgainstCount",
			snapshot: func() *consensustracker.Snapshot {
				snapshot := testSnapshot()
				for _, member := range snapshot.Members {
					snapshot.MemberHashes[member] = hash(0xab)
				}
				snapshot.ConsensusReport = hash(0xcd)

				return snapshot
			},
		},
		{
			name: "CountWithoutConsensus",
			snapshot: func() *consensustracker.Snapshot {
				snapshot := testSnapshot()
				for _, member := range snapshot.Members {
					snapshot.MemberHashes[member] = hash(0xab)
				}

				return snapshot
			},
		},
		{
			name: "MultipleQuorums",
			snapshot: func() *consensustracker.Snapshot {
				snapshot := testSnapshot()
				snapshot.Quorum = 2
				snapshot.MemberHashes[addr(1)] = hash(0xab)
				snapshot.MemberHashes[addr(2)] = hash(0xab)
				snapshot.MemberHashes[addr(3)] = hash(0xcd)
				snapshot.MemberHashes[addr(4)] = hash(0xcd)

				return snapshot
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			outcome, err := s.Evaluate(ctx, test.snapshot(), hash(0xab))
			require.ErrorIs(t, err, consensustracker.ErrInconsistentConsensus)
			require.NotNil(t, outcome)
			require.Equal(t, consensustracker.ActionNone, outcome.Action)
			require.True(t, outcome.Alert)
		})
	}
}

func TestEvaluateSubmitterElection(t *testing.T) {
	ctx := context.Background()
	s := mustTracker(t)

	// Four members of five agree; the fifth submitted a divergent hash.
	base := func() *consensustracker.Snapshot {
		snapshot := testSnapshot()
		for _, member := range snapshot.Members[:4] {
			snapshot.MemberHashes[member] = hash(0xab)
		}
		snapshot.MemberHashes[addr(5)] = hash(0xde)
		snapshot.ConsensusReport = hash(0xab)

		return snapshot
	}

	// The designated submitter for frame 0 submits without delay.
	snapshot := base()
	outcome, err := s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.ActionSubmitReport, outcome.Action)
	require.Zero(t, outcome.SubmitDelaySlots)
	require.Equal(t, "designated submitter for the frame", outcome.Reason)

	// Later members in the rotation back it up after growing delays.
	for position, delay := range map[byte]uint64{2: 6, 3: 12, 4: 18} {
		snapshot = base()
		snapshot.Member = addr(position)
		outcome, err = s.Evaluate(ctx, snapshot, hash(0xab))
		require.NoError(t, err)
		require.Equal(t, consensustracker.ActionSubmitReport, outcome.Action)
		require.Equal(t, delay, outcome.SubmitDelaySlots)
		require.Equal(t, "fallback submitter after stagger delay", outcome.Reason)
	}

	// The divergent member alerts instead of submitting.
	snapshot = base()
	snapshot.Member = addr(5)
	outcome, err = s.Evaluate(ctx, snapshot, hash(0xde))
	require.ErrorIs(t, err, consensustracker.ErrConsensusMismatch)
	require.Equal(t, consensustracker.ActionNone, outcome.Action)
	require.True(t, outcome.Alert)

	// The same member recomputing the consensus hash submits it late.
	snapshot = base()
	snapshot.Member = addr(5)
	outcome, err = s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.ActionSubmitHash, outcome.Action)
	require.Equal(t, consensustracker.StateQuorumReached, outcome.State)
	require.Equal(t, "consensus reached without this member's hash", outcome.Reason)
}

func TestEvaluateSubmitDelayConfigurable(t *testing.T) {
	s := mustTracker(t, standard.WithSubmitDelaySlots(3))
	snapshot := testSnapshot()
	snapshot.Member = addr(2)
	for _, member := range snapshot.Members {
		snapshot.MemberHashes[member] = hash(0xab)
	}
	snapshot.ConsensusReport = hash(0xab)

	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.ActionSubmitReport, outcome.Action)
	require.Equal(t, uint64(3), outcome.SubmitDelaySlots)
}

func TestEvaluateRotationFairness(t *testing.T) {
	ctx := context.Background()
	s := mustTracker(t)

	// Over five consecutive frames each of the five members is designated
	// exactly once.
	designations := make(map[common.Address]int)
	for frame := uint64(0); frame < 5; frame++ {
		for member := byte(1); member <= 5; member++ {
			snapshot := testSnapshot()
			snapshot.Frame.Index = frame
			snapshot.Member = addr(member)
			for _, m := range snapshot.Members {
				snapshot.MemberHashes[m] = hash(0xab)
			}
			snapshot.ConsensusReport = hash(0xab)

			outcome, err := s.Evaluate(ctx, snapshot, hash(0xab))
			require.NoError(t, err)
			require.Equal(t, consensustracker.ActionSubmitReport, outcome.Action)
			if outcome.SubmitDelaySlots == 0 {
				designations[snapshot.Member]++
			}
		}
	}
	require.Len(t, designations, 5)
	for member, count := range designations {
		require.Equal(t, 1, count, "member %s designated %d times", member, count)
	}
}

func TestEvaluateExtraDataPhase(t *testing.T) {
	ctx := context.Background()
	s := mustTracker(t)

	base := func() *consensustracker.Snapshot {
		snapshot := testSnapshot()
		for _, member := range snapshot.Members {
			snapshot.MemberHashes[member] = hash(0xab)
		}
		snapshot.ConsensusReport = hash(0xab)
		snapshot.MainDataSubmitted = true

		return snapshot
	}

	// Nothing submitted yet.
	snapshot := base()
	snapshot.ExtraDataItemsCount = 4
	outcome, err := s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateReportSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitExtraData, outcome.Action)
	require.Zero(t, outcome.SubmitDelaySlots)

	// Partially submitted.
	snapshot = base()
	snapshot.ExtraDataItemsCount = 4
	snapshot.ExtraDataItemsSubmitted = 2
	outcome, err = s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateExtraDataSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitExtraData, outcome.Action)

	// A report without extra data still needs its empty confirmation.
	snapshot = base()
	outcome, err = s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateReportSubmitted, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitExtraData, outcome.Action)

	// Fallback members stagger extra data submission too.
	snapshot = base()
	snapshot.ExtraDataItemsCount = 4
	snapshot.Member = addr(3)
	outcome, err = s.Evaluate(ctx, snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.ActionSubmitExtraData, outcome.Action)
	require.Equal(t, uint64(12), outcome.SubmitDelaySlots)
}

func TestEvaluateLateHashUnderConsensus(t *testing.T) {
	s := mustTracker(t)
	snapshot := testSnapshot()
	for _, member := range snapshot.Members[1:4] {
		snapshot.MemberHashes[member] = hash(0xab)
	}
	snapshot.ConsensusReport = hash(0xab)

	// Consensus formed without us; the hash still goes on-chain before any
	// report data does.
	outcome, err := s.Evaluate(context.Background(), snapshot, hash(0xab))
	require.NoError(t, err)
	require.Equal(t, consensustracker.StateQuorumReached, outcome.State)
	require.Equal(t, consensustracker.ActionSubmitHash, outcome.Action)
}

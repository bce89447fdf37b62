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

package standard_test

import (
	"context"
	"testing"
	"time"

	"github.com/accordlabs/accord/contracts"
	contractsmock "github.com/accordlabs/accord/contracts/mock"
	blockstampmock "github.com/accordlabs/accord/services/blockstamp/mock"
	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/accordlabs/accord/services/controller"
	"github.com/accordlabs/accord/services/controller/standard"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/reportbuilder"
	reportbuildermock "github.com/accordlabs/accord/services/reportbuilder/mock"
	schedulermock "github.com/accordlabs/accord/services/scheduler/mock"
	"github.com/accordlabs/accord/testing/logger"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	memberA = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	memberB = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	memberC = common.HexToAddress("0x0000000000000000000000000000000000000c03")

	hashLocal = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	hashOther = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
)

// cycleEnv is a configurable fixture for a single oracle cycle.  The default
// configuration has member A as the frame's designated submitter with no hash
// submitted yet and no consensus reached.
type cycleEnv struct {
	member                common.Address
	members               []common.Address
	quorum                uint64
	memberHashes          map[common.Address]common.Hash
	consensusReport       common.Hash
	memberInfo            *contracts.MemberInfo
	processingState       *contracts.ProcessingState
	lastProcessingRefSlot phase0.Slot
	contractFrame         *contracts.CurrentFrame
	frame                 *framecalculator.Frame
	builder               reportbuilder.Service
	allowBunkerReporting  bool
	maxCycleLifetime      time.Duration
	confirm               controller.ConfirmFunc
	submitter             *testSubmitter
	logLevel              zerolog.Level
}

func newCycleEnv() *cycleEnv {
	report := &reportbuilder.Report{
		RefSlot:          127,
		ConsensusVersion: 1,
		Hash:             hashLocal,
	}

	// Frame 1 with three members puts the designated submitter at position 1.
	return &cycleEnv{
		member:          memberA,
		members:         []common.Address{memberB, memberA, memberC},
		quorum:          2,
		memberHashes:    map[common.Address]common.Hash{},
		memberInfo:      &contracts.MemberInfo{IsMember: true, CanReport: true, CurrentFrameRefSlot: 127},
		processingState: &contracts.ProcessingState{},
		contractFrame:   &contracts.CurrentFrame{RefSlot: 127, ReportProcessingDeadlineSlot: 255},
		frame:           &framecalculator.Frame{Index: 1, RefSlot: 127, ReportProcessingDeadlineSlot: 255},
		builder:         reportbuildermock.New("accounting", 1, report),
		submitter:       &testSubmitter{},
		logLevel:        zerolog.Disabled,
	}
}

func (e *cycleEnv) service(t *testing.T) *standard.Service {
	t.Helper()

	genesisTime := time.Now().Add(-140 * 12 * time.Second)
	stamps := blockstampmock.New()
	stamps.SetLastFinalized(refStamp(135))
	stamps.AddStamp(127, refStamp(127))

	params := []standard.Parameter{
		standard.WithLogLevel(e.logLevel),
		standard.WithChainTime(mustChainTime(t, genesisTime)),
		standard.WithBlockStamps(stamps),
		standard.WithFrameCalculator(&testFrameCalculator{frame: e.frame}),
		standard.WithReportBuilder(e.builder),
		standard.WithConsensusTracker(mustTracker(t)),
		standard.WithScheduler(schedulermock.New()),
		standard.WithExecutionHeaderProvider(&testHeaderProvider{}),
		standard.WithCurrentFrameProvider(contractsmock.NewCurrentFrameProvider(e.contractFrame)),
		standard.WithFrameConfigProvider(contractsmock.NewFrameConfigProvider(&contracts.FrameConfig{EpochsPerFrame: 4})),
		standard.WithMembersProvider(contractsmock.NewMembersProvider(e.members)),
		standard.WithQuorumProvider(contractsmock.NewQuorumProvider(e.quorum)),
		standard.WithConsensusStateProvider(contractsmock.NewConsensusStateProvider(&contracts.ConsensusState{
			RefSlot:         127,
			ConsensusReport: e.consensusReport,
		})),
		standard.WithMemberInfoProvider(contractsmock.NewMemberInfoProvider(map[common.Address]*contracts.MemberInfo{
			e.member: e.memberInfo,
		})),
		standard.WithMemberHashesProvider(contractsmock.NewMemberHashesProvider(e.memberHashes)),
		standard.WithProcessingStateProvider(contractsmock.NewProcessingStateProvider(e.processingState)),
		standard.WithLastProcessingRefSlotProvider(contractsmock.NewLastProcessingRefSlotProvider(e.lastProcessingRefSlot)),
		standard.WithConsensusVersionProvider(contractsmock.NewConsensusVersionProvider(1)),
		standard.WithContractVersionProvider(contractsmock.NewContractVersionProvider(1)),
		standard.WithReportHashSubmitter(e.submitter),
		standard.WithReportDataSubmitter(e.submitter),
		standard.WithExtraDataSubmitter(e.submitter),
		standard.WithAllowBunkerReporting(e.allowBunkerReporting),
	}
	if e.member != (common.Address{}) {
		params = append(params, standard.WithMember(e.member))
	}
	if e.maxCycleLifetime > 0 {
		params = append(params, standard.WithMaxCycleLifetime(e.maxCycleLifetime))
	}
	if e.confirm != nil {
		params = append(params, standard.WithConfirmFunc(e.confirm))
	}

	s, err := standard.New(context.Background(), params...)
	require.NoError(t, err)

	return s
}

func TestCycleSubmitsHash(t *testing.T) {
	env := newCycleEnv()
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Equal(t, []common.Hash{hashLocal}, env.submitter.hashes)
	require.Empty(t, env.submitter.reports)
	require.Empty(t, env.submitter.chunks)
}

func TestCycleHashAlreadySubmitted(t *testing.T) {
	env := newCycleEnv()
	env.memberHashes[memberA] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.hashes)
	require.Empty(t, env.submitter.reports)
}

// A second cycle against an unchanged snapshot recommends the same action,
// so re-running after a hash submission that has not yet landed results in a
// resubmission attempt, and re-running after it has landed does nothing.
func TestCycleIdempotent(t *testing.T) {
	env := newCycleEnv()
	env.memberHashes[memberA] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.hashes)
}

func TestCycleSubmitsReportData(t *testing.T) {
	env := newCycleEnv()
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{RefSlot: 127}
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Len(t, env.submitter.reports, 1)
	require.Equal(t, hashLocal, env.submitter.reports[0].Hash)
	require.Equal(t, []uint64{1}, env.submitter.versions)
	require.Empty(t, env.submitter.hashes)
}

func TestCycleBunkerSuppressesReportData(t *testing.T) {
	capture := logger.NewLogCapture()
	env := newCycleEnv()
	env.logLevel = zerolog.WarnLevel
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{RefSlot: 127}
	env.builder = reportbuildermock.New("accounting", 1, &reportbuilder.Report{
		RefSlot:          127,
		ConsensusVersion: 1,
		Hash:             hashLocal,
		Bunker:           true,
	})
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.reports)
	capture.AssertHasEntry(t, "Bunker mode is active; suppressing report data submission")
}

func TestCycleBunkerReportingAllowed(t *testing.T) {
	env := newCycleEnv()
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{RefSlot: 127}
	env.allowBunkerReporting = true
	env.builder = reportbuildermock.New("accounting", 1, &reportbuilder.Report{
		RefSlot:          127,
		ConsensusVersion: 1,
		Hash:             hashLocal,
		Bunker:           true,
	})
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Len(t, env.submitter.reports, 1)
}

func TestCycleConsensusMismatch(t *testing.T) {
	env := newCycleEnv()
	env.consensusReport = hashOther
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashOther
	env.memberHashes[memberC] = hashOther
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	s := env.service(t)

	err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, consensustracker.ErrConsensusMismatch)
	require.Empty(t, env.submitter.hashes)
	require.Empty(t, env.submitter.reports)
}

func TestCycleReportNotReady(t *testing.T) {
	env := newCycleEnv()
	env.builder = reportbuildermock.NewNotReady("csm", 1)
	s := env.service(t)

	err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, reportbuilder.ErrNotReady)
	require.Empty(t, env.submitter.hashes)
}

func TestCycleSubmitsExtraData(t *testing.T) {
	extraData, err := reportbuilder.BuildExtraData([]*reportbuilder.ExtraDataItem{
		{
			Type:     reportbuilder.ExtraDataItemTypeStuckValidators,
			ModuleID: 1,
			Counts:   []reportbuilder.OperatorCount{{NodeOperatorID: 3, Count: 1}},
		},
		{
			Type:     reportbuilder.ExtraDataItemTypeExitedValidators,
			ModuleID: 1,
			Counts:   []reportbuilder.OperatorCount{{NodeOperatorID: 4, Count: 2}},
		},
	}, 1)
	require.NoError(t, err)
	require.Len(t, extraData.Chunks, 2)

	env := newCycleEnv()
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{
		RefSlot:             127,
		DataSubmitted:       true,
		ExtraDataItemsCount: extraData.ItemsCount,
	}
	env.builder = reportbuildermock.New("accounting", 1, &reportbuilder.Report{
		RefSlot:          127,
		ConsensusVersion: 1,
		Hash:             hashLocal,
		ExtraData:        extraData,
	})
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Len(t, env.submitter.chunks, 1)
	require.Equal(t, extraData.Chunks[0], env.submitter.chunks[0])
	require.Empty(t, env.submitter.reports)
}

func TestCycleConfirmsEmptyExtraData(t *testing.T) {
	env := newCycleEnv()
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{
		RefSlot:       127,
		DataSubmitted: true,
	}
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Len(t, env.submitter.chunks, 1)
	require.Empty(t, env.submitter.chunks[0])
}

func TestCycleClosedFrame(t *testing.T) {
	env := newCycleEnv()
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{
		RefSlot:            127,
		DataSubmitted:      true,
		ExtraDataSubmitted: true,
	}
	s := env.service(t)

	// The second cycle idles: the frame closed and the next reference slot
	// is not finalized yet.
	require.NoError(t, s.RunCycle(context.Background()))
	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.hashes)
	require.Empty(t, env.submitter.reports)
	require.Empty(t, env.submitter.chunks)
}

func TestCycleDeadlineMissed(t *testing.T) {
	capture := logger.NewLogCapture()
	env := newCycleEnv()
	env.logLevel = zerolog.WarnLevel
	env.frame = &framecalculator.Frame{Index: 0, RefSlot: 50, ReportProcessingDeadlineSlot: 100}
	env.contractFrame = &contracts.CurrentFrame{RefSlot: 50, ReportProcessingDeadlineSlot: 100}
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.hashes)
	capture.AssertHasEntry(t, "Report processing deadline missed; closing out frame")
}

func TestCycleContractFrameMismatch(t *testing.T) {
	env := newCycleEnv()
	env.contractFrame = &contracts.CurrentFrame{RefSlot: 255, ReportProcessingDeadlineSlot: 383}
	s := env.service(t)

	err := s.RunCycle(context.Background())
	require.EqualError(t, err, "calculated reference slot 127 does not match contract reference slot 255")
	require.Empty(t, env.submitter.hashes)
}

func TestCycleObserver(t *testing.T) {
	env := newCycleEnv()
	env.member = common.Address{}
	env.memberHashes[memberB] = hashLocal
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.hashes)
	require.Empty(t, env.submitter.reports)
}

// A fallback submitter whose stagger delay cannot complete within the cycle
// lifetime abandons the cycle without sending anything; the next cycle
// starts from fresh reads.
func TestCycleLifetimeExpiry(t *testing.T) {
	env := newCycleEnv()
	// Member A at position 2 with member C designated, so A waits.
	env.members = []common.Address{memberB, memberC, memberA}
	env.consensusReport = hashLocal
	env.memberHashes[memberA] = hashLocal
	env.memberHashes[memberB] = hashLocal
	env.memberInfo.CurrentFrameMemberReport = hashLocal
	env.processingState = &contracts.ProcessingState{RefSlot: 127}
	env.maxCycleLifetime = 100 * time.Millisecond
	s := env.service(t)

	err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, env.submitter.reports)
}

func TestCycleConfirmationDeclined(t *testing.T) {
	env := newCycleEnv()
	env.confirm = func(_ context.Context, _ string) bool { return false }
	s := env.service(t)

	require.NoError(t, s.RunCycle(context.Background()))
	require.Empty(t, env.submitter.hashes)
}

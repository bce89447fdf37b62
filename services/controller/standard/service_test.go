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
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/accordlabs/accord/contracts"
	contractsmock "github.com/accordlabs/accord/contracts/mock"
	"github.com/accordlabs/accord/mock"
	"github.com/accordlabs/accord/services/blockstamp"
	blockstampmock "github.com/accordlabs/accord/services/blockstamp/mock"
	"github.com/accordlabs/accord/services/chaintime"
	chaintimestandard "github.com/accordlabs/accord/services/chaintime/standard"
	trackerstandard "github.com/accordlabs/accord/services/consensustracker/standard"
	"github.com/accordlabs/accord/services/controller/standard"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/reportbuilder"
	reportbuildermock "github.com/accordlabs/accord/services/reportbuilder/mock"
	schedulermock "github.com/accordlabs/accord/services/scheduler/mock"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testFrameCalculator returns a canned frame, keeping tests independent of
// the wall clock.
type testFrameCalculator struct {
	frame *framecalculator.Frame
}

func (c *testFrameCalculator) CurrentFrame(_ context.Context) (*framecalculator.Frame, error) {
	return c.frame, nil
}

func (c *testFrameCalculator) FrameAtEpoch(_ context.Context, _ phase0.Epoch) (*framecalculator.Frame, error) {
	return c.frame, nil
}

// testHeaderProvider returns a fixed execution chain head.
type testHeaderProvider struct{}

func (p *testHeaderProvider) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100)}, nil
}

// testSubmitter records submissions across all three submitter interfaces.
type testSubmitter struct {
	mu       sync.Mutex
	hashes   []common.Hash
	reports  []*reportbuilder.Report
	versions []uint64
	chunks   [][]byte
}

func (s *testSubmitter) SubmitReportHash(_ context.Context, _ phase0.Slot, reportHash common.Hash, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes = append(s.hashes, reportHash)
	return nil
}

func (s *testSubmitter) SubmitReportData(_ context.Context, report *reportbuilder.Report, contractVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	s.versions = append(s.versions, contractVersion)
	return nil
}

func (s *testSubmitter) SubmitExtraData(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return nil
}

func mustChainTime(t *testing.T, genesisTime time.Time) chaintime.Service {
	t.Helper()

	chainTime, err := chaintimestandard.New(context.Background(),
		chaintimestandard.WithLogLevel(zerolog.Disabled),
		chaintimestandard.WithGenesisProvider(mock.NewGenesisProvider(genesisTime)),
		chaintimestandard.WithSpecProvider(mock.NewSpecProvider()),
	)
	require.NoError(t, err)

	return chainTime
}

func mustTracker(t *testing.T) *trackerstandard.Service {
	t.Helper()

	tracker, err := trackerstandard.New(context.Background(),
		trackerstandard.WithLogLevel(zerolog.Disabled),
	)
	require.NoError(t, err)

	return tracker
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	genesisTime := time.Now().Add(-140 * 12 * time.Second)
	member := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	submitter := &testSubmitter{}
	frame := &framecalculator.Frame{Index: 1, RefSlot: 127, ReportProcessingDeadlineSlot: 255}
	report := &reportbuilder.Report{
		RefSlot:          127,
		ConsensusVersion: 1,
		Hash:             common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
	}

	complete := func() map[string]standard.Parameter {
		return map[string]standard.Parameter{
			"logLevel":              standard.WithLogLevel(zerolog.Disabled),
			"chainTime":             standard.WithChainTime(mustChainTime(t, genesisTime)),
			"blockStamps":           standard.WithBlockStamps(blockstampmock.New()),
			"frameCalculator":       standard.WithFrameCalculator(&testFrameCalculator{frame: frame}),
			"reportBuilder":         standard.WithReportBuilder(reportbuildermock.New("accounting", 1, report)),
			"consensusTracker":      standard.WithConsensusTracker(mustTracker(t)),
			"scheduler":             standard.WithScheduler(schedulermock.New()),
			"executionHeaders":      standard.WithExecutionHeaderProvider(&testHeaderProvider{}),
			"currentFrame":          standard.WithCurrentFrameProvider(contractsmock.NewCurrentFrameProvider(&contracts.CurrentFrame{RefSlot: 127, ReportProcessingDeadlineSlot: 255})),
			"frameConfig":           standard.WithFrameConfigProvider(contractsmock.NewFrameConfigProvider(&contracts.FrameConfig{InitialEpoch: 0, EpochsPerFrame: 4})),
			"members":               standard.WithMembersProvider(contractsmock.NewMembersProvider([]common.Address{member})),
			"quorum":                standard.WithQuorumProvider(contractsmock.NewQuorumProvider(1)),
			"consensusState":        standard.WithConsensusStateProvider(contractsmock.NewConsensusStateProvider(&contracts.ConsensusState{RefSlot: 127})),
			"memberInfo":            standard.WithMemberInfoProvider(contractsmock.NewMemberInfoProvider(map[common.Address]*contracts.MemberInfo{member: {IsMember: true, CanReport: true}})),
			"memberHashes":          standard.WithMemberHashesProvider(contractsmock.NewMemberHashesProvider(map[common.Address]common.Hash{})),
			"processingState":       standard.WithProcessingStateProvider(contractsmock.NewProcessingStateProvider(&contracts.ProcessingState{})),
			"lastProcessingRefSlot": standard.WithLastProcessingRefSlotProvider(contractsmock.NewLastProcessingRefSlotProvider(0)),
			"consensusVersion":      standard.WithConsensusVersionProvider(contractsmock.NewConsensusVersionProvider(1)),
			"contractVersion":       standard.WithContractVersionProvider(contractsmock.NewContractVersionProvider(1)),
			"reportHashSubmitter":   standard.WithReportHashSubmitter(submitter),
			"reportDataSubmitter":   standard.WithReportDataSubmitter(submitter),
			"extraDataSubmitter":    standard.WithExtraDataSubmitter(submitter),
			"member":                standard.WithMember(member),
		}
	}

	tests := []struct {
		name    string
		without string
		err     string
	}{
		{
			name: "Good",
		},
		{
			name:    "ChainTimeMissing",
			without: "chainTime",
			err:     "problem with parameters: no chain time service specified",
		},
		{
			name:    "BlockStampsMissing",
			without: "blockStamps",
			err:     "problem with parameters: no block stamp resolver specified",
		},
		{
			name:    "FrameCalculatorMissing",
			without: "frameCalculator",
			err:     "problem with parameters: no frame calculator specified",
		},
		{
			name:    "ReportBuilderMissing",
			without: "reportBuilder",
			err:     "problem with parameters: no report builder specified",
		},
		{
			name:    "ConsensusTrackerMissing",
			without: "consensusTracker",
			err:     "problem with parameters: no consensus tracker specified",
		},
		{
			name:    "SchedulerMissing",
			without: "scheduler",
			err:     "problem with parameters: no scheduler specified",
		},
		{
			name:    "ExecutionHeaderProviderMissing",
			without: "executionHeaders",
			err:     "problem with parameters: no execution header provider specified",
		},
		{
			name:    "CurrentFrameProviderMissing",
			without: "currentFrame",
			err:     "problem with parameters: no current frame provider specified",
		},
		{
			name:    "MemberInfoProviderMissing",
			without: "memberInfo",
			err:     "problem with parameters: no member info provider specified",
		},
		{
			name:    "ReportHashSubmitterMissing",
			without: "reportHashSubmitter",
			err:     "problem with parameters: no report hash submitter specified",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			params := make([]standard.Parameter, 0)
			for name, param := range complete() {
				if name == test.without {
					continue
				}
				params = append(params, param)
			}
			_, err := standard.New(ctx, params...)
			if test.err != "" {
				require.EqualError(t, err, test.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewVersionMismatch(t *testing.T) {
	ctx := context.Background()
	genesisTime := time.Now().Add(-140 * 12 * time.Second)
	member := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	submitter := &testSubmitter{}
	frame := &framecalculator.Frame{Index: 1, RefSlot: 127, ReportProcessingDeadlineSlot: 255}

	_, err := standard.New(ctx,
		standard.WithLogLevel(zerolog.Disabled),
		standard.WithChainTime(mustChainTime(t, genesisTime)),
		standard.WithBlockStamps(blockstampmock.New()),
		standard.WithFrameCalculator(&testFrameCalculator{frame: frame}),
		standard.WithReportBuilder(reportbuildermock.New("accounting", 2, &reportbuilder.Report{ConsensusVersion: 2})),
		standard.WithConsensusTracker(mustTracker(t)),
		standard.WithScheduler(schedulermock.New()),
		standard.WithExecutionHeaderProvider(&testHeaderProvider{}),
		standard.WithCurrentFrameProvider(contractsmock.NewCurrentFrameProvider(&contracts.CurrentFrame{RefSlot: 127, ReportProcessingDeadlineSlot: 255})),
		standard.WithFrameConfigProvider(contractsmock.NewFrameConfigProvider(&contracts.FrameConfig{EpochsPerFrame: 4})),
		standard.WithMembersProvider(contractsmock.NewMembersProvider([]common.Address{member})),
		standard.WithQuorumProvider(contractsmock.NewQuorumProvider(1)),
		standard.WithConsensusStateProvider(contractsmock.NewConsensusStateProvider(&contracts.ConsensusState{RefSlot: 127})),
		standard.WithMemberInfoProvider(contractsmock.NewMemberInfoProvider(map[common.Address]*contracts.MemberInfo{member: {IsMember: true}})),
		standard.WithMemberHashesProvider(contractsmock.NewMemberHashesProvider(map[common.Address]common.Hash{})),
		standard.WithProcessingStateProvider(contractsmock.NewProcessingStateProvider(&contracts.ProcessingState{})),
		standard.WithLastProcessingRefSlotProvider(contractsmock.NewLastProcessingRefSlotProvider(0)),
		standard.WithConsensusVersionProvider(contractsmock.NewConsensusVersionProvider(1)),
		standard.WithContractVersionProvider(contractsmock.NewContractVersionProvider(1)),
		standard.WithReportHashSubmitter(submitter),
		standard.WithReportDataSubmitter(submitter),
		standard.WithExtraDataSubmitter(submitter),
		standard.WithMember(member),
	)
	require.EqualError(t, err, "contract expects consensus version 1 but the accounting report builder implements 2")
}

func TestNewNotAMember(t *testing.T) {
	ctx := context.Background()
	genesisTime := time.Now().Add(-140 * 12 * time.Second)
	member := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000b02")
	submitter := &testSubmitter{}
	frame := &framecalculator.Frame{Index: 1, RefSlot: 127, ReportProcessingDeadlineSlot: 255}

	_, err := standard.New(ctx,
		standard.WithLogLevel(zerolog.Disabled),
		standard.WithChainTime(mustChainTime(t, genesisTime)),
		standard.WithBlockStamps(blockstampmock.New()),
		standard.WithFrameCalculator(&testFrameCalculator{frame: frame}),
		standard.WithReportBuilder(reportbuildermock.New("accounting", 1, &reportbuilder.Report{ConsensusVersion: 1})),
		standard.WithConsensusTracker(mustTracker(t)),
		standard.WithScheduler(schedulermock.New()),
		standard.WithExecutionHeaderProvider(&testHeaderProvider{}),
		standard.WithCurrentFrameProvider(contractsmock.NewCurrentFrameProvider(&contracts.CurrentFrame{RefSlot: 127, ReportProcessingDeadlineSlot: 255})),
		standard.WithFrameConfigProvider(contractsmock.NewFrameConfigProvider(&contracts.FrameConfig{EpochsPerFrame: 4})),
		standard.WithMembersProvider(contractsmock.NewMembersProvider([]common.Address{member})),
		standard.WithQuorumProvider(contractsmock.NewQuorumProvider(1)),
		standard.WithConsensusStateProvider(contractsmock.NewConsensusStateProvider(&contracts.ConsensusState{RefSlot: 127})),
		standard.WithMemberInfoProvider(contractsmock.NewMemberInfoProvider(map[common.Address]*contracts.MemberInfo{member: {IsMember: true}})),
		standard.WithMemberHashesProvider(contractsmock.NewMemberHashesProvider(map[common.Address]common.Hash{})),
		standard.WithProcessingStateProvider(contractsmock.NewProcessingStateProvider(&contracts.ProcessingState{})),
		standard.WithLastProcessingRefSlotProvider(contractsmock.NewLastProcessingRefSlotProvider(0)),
		standard.WithConsensusVersionProvider(contractsmock.NewConsensusVersionProvider(1)),
		standard.WithContractVersionProvider(contractsmock.NewContractVersionProvider(1)),
		standard.WithReportHashSubmitter(submitter),
		standard.WithReportDataSubmitter(submitter),
		standard.WithExtraDataSubmitter(submitter),
		standard.WithMember(stranger),
	)
	require.EqualError(t, err, "address 0x0000000000000000000000000000000000000b02 is not a member of the oracle committee")
}

// refStamp returns a minimal reference stamp fixture for the given slot.
func refStamp(slot phase0.Slot) *blockstamp.BlockStamp {
	return &blockstamp.BlockStamp{
		Slot:        slot,
		BlockNumber: uint64(slot),
	}
}

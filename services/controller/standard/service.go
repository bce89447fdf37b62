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

// Package standard is the standard cycle orchestrator.  It polls chain and
// contract state, advances the current frame through the hash consensus
// state machine and dispatches the resulting action through the submitters.
// Every cycle rebuilds its view from fresh reads, so a restart mid-frame
// simply resumes where the contract says things stand.
package standard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/accordlabs/accord/services/controller"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/accordlabs/accord/services/scheduler"
	"github.com/accordlabs/accord/services/submitter"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// Service is the standard cycle orchestrator.
type Service struct {
	log                           zerolog.Logger
	chainTime                     chaintime.Service
	blockStamps                   blockstamp.Service
	frameCalculator               framecalculator.Service
	reportBuilder                 reportbuilder.Service
	consensusTracker              consensustracker.Service
	scheduler                     scheduler.Service
	executionHeaderProvider       controller.ExecutionHeaderProvider
	currentFrameProvider          contracts.CurrentFrameProvider
	frameConfigProvider           contracts.FrameConfigProvider
	membersProvider               contracts.MembersProvider
	quorumProvider                contracts.QuorumProvider
	consensusStateProvider        contracts.ConsensusStateProvider
	memberInfoProvider            contracts.MemberInfoProvider
	memberHashesProvider          contracts.MemberHashesProvider
	processingStateProvider       contracts.ProcessingStateProvider
	lastProcessingRefSlotProvider contracts.LastProcessingRefSlotProvider
	consensusVersionProvider      contracts.ConsensusVersionProvider
	contractVersionProvider       contracts.ContractVersionProvider
	reportHashSubmitter           submitter.ReportHashSubmitter
	reportDataSubmitter           submitter.ReportDataSubmitter
	extraDataSubmitter            submitter.ExtraDataSubmitter
	member                        common.Address
	allowBunkerReporting          bool
	cycleSleep                    time.Duration
	maxCycleLifetime              time.Duration
	confirm                       controller.ConfirmFunc

	// cycleMu serialises cycles: the loop is single-threaded by design, as
	// every step depends on the snapshot taken at the start of the cycle.
	cycleMu sync.Mutex
	// thresholdSlot is the finalized slot below which there is nothing to do,
	// advanced when a frame closes so the daemon idles until the next frame's
	// reference slot finalizes.
	thresholdSlot phase0.Slot
	// lastRefSlot is the reference slot of the last frame processed, used to
	// detect the chain or contract state moving backwards.
	lastRefSlot phase0.Slot
	// firstCycleScheduled flips when the initial cycle is scheduled.
	firstCycleScheduled atomic.Bool
}

// New creates a new cycle orchestrator.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log := zerologger.With().Str("service", "controller").Str("impl", "standard").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.New("failed to register metrics")
	}

	confirm := parameters.confirm
	if confirm == nil {
		confirm = func(_ context.Context, _ string) bool { return true }
	}

	s := &Service{
		log:                           log,
		chainTime:                     parameters.chainTime,
		blockStamps:                   parameters.blockStamps,
		frameCalculator:               parameters.frameCalculator,
		reportBuilder:                 parameters.reportBuilder,
		consensusTracker:              parameters.consensusTracker,
		scheduler:                     parameters.scheduler,
		executionHeaderProvider:       parameters.executionHeaderProvider,
		currentFrameProvider:          parameters.currentFrameProvider,
		frameConfigProvider:           parameters.frameConfigProvider,
		membersProvider:               parameters.membersProvider,
		quorumProvider:                parameters.quorumProvider,
		consensusStateProvider:        parameters.consensusStateProvider,
		memberInfoProvider:            parameters.memberInfoProvider,
		memberHashesProvider:          parameters.memberHashesProvider,
		processingStateProvider:       parameters.processingStateProvider,
		lastProcessingRefSlotProvider: parameters.lastProcessingRefSlotProvider,
		consensusVersionProvider:      parameters.consensusVersionProvider,
		contractVersionProvider:       parameters.contractVersionProvider,
		reportHashSubmitter:           parameters.reportHashSubmitter,
		reportDataSubmitter:           parameters.reportDataSubmitter,
		extraDataSubmitter:            parameters.extraDataSubmitter,
		member:                        parameters.member,
		allowBunkerReporting:          parameters.allowBunkerReporting,
		cycleSleep:                    parameters.cycleSleep,
		maxCycleLifetime:              parameters.maxCycleLifetime,
		confirm:                       confirm,
	}

	if err := s.checkVersions(ctx); err != nil {
		return nil, err
	}
	if err := s.checkMembership(ctx); err != nil {
		return nil, err
	}

	if parameters.daemon {
		if err := s.scheduleCycles(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to schedule cycles")
		}
	}

	return s, nil
}

// checkVersions ensures the report builder implements the consensus version
// the report contract expects.  A mismatch would have every report rejected,
// so it is fatal at startup and guarded again before each data submission.
func (s *Service) checkVersions(ctx context.Context) error {
	consensusVersion, err := s.consensusVersionProvider.ConsensusVersion(ctx, common.Hash{})
	if err != nil {
		return errors.Wrap(err, "failed to obtain contract consensus version")
	}
	if consensusVersion != s.reportBuilder.ConsensusVersion() {
		return fmt.Errorf("contract expects consensus version %d but the %s report builder implements %d",
			consensusVersion,
			s.reportBuilder.Module(),
			s.reportBuilder.ConsensusVersion(),
		)
	}

	return nil
}

// checkMembership ensures the configured member address is on the oracle
// committee.  Without a member address the controller observes consensus
// without submitting, which is an explicit configuration rather than a
// fallback for a mistyped address.
func (s *Service) checkMembership(ctx context.Context) error {
	if s.member == (common.Address{}) {
		s.log.Info().Msg("No member address; running as an observer")
		return nil
	}

	info, err := s.memberInfoProvider.MemberInfo(ctx, common.Hash{}, s.member)
	if err != nil {
		return errors.Wrap(err, "failed to obtain member info")
	}
	if !info.IsMember {
		return fmt.Errorf("address %s is not a member of the oracle committee", s.member)
	}
	s.log.Info().
		Stringer("member", s.member).
		Bool("fast_lane", info.IsFastLane).
		Uint64("last_report_ref_slot", uint64(info.LastMemberReportRefSlot)).
		Msg("Member of the oracle committee")

	return nil
}

// scheduleCycles schedules the daemon's periodic cycle job.
func (s *Service) scheduleCycles(ctx context.Context) error {
	if err := s.scheduler.SchedulePeriodicJob(ctx,
		"Oracle",
		"Oracle cycle",
		s.cycleRuntime,
		nil,
		s.runCycleJob,
		nil,
	); err != nil {
		return err
	}
	s.log.Info().Dur("cycle_sleep", s.cycleSleep).Msg("Scheduled oracle cycles")

	return nil
}

// cycleRuntime provides the time of the next cycle.  The first cycle runs
// immediately rather than after a sleep.
func (s *Service) cycleRuntime(_ context.Context, _ interface{}) (time.Time, error) {
	if s.firstCycleScheduled.CompareAndSwap(false, true) {
		return time.Now(), nil
	}

	return time.Now().Add(s.cycleSleep), nil
}

// runCycleJob is the scheduled wrapper around a cycle.  All per-cycle errors
// stop here: they are logged and counted, and the loop carries on to the
// next cycle.
func (s *Service) runCycleJob(ctx context.Context, _ interface{}) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Cycle panicked")
			cycleCompleted(time.Now(), "panicked")
		}
	}()

	if err := s.RunCycle(ctx); err != nil {
		switch {
		case errors.Is(err, reportbuilder.ErrNotReady):
			s.log.Debug().Err(err).Msg("Report not ready; will retry next cycle")
		case errors.Is(err, consensustracker.ErrConsensusMismatch),
			errors.Is(err, consensustracker.ErrInconsistentConsensus):
			s.log.Error().Err(err).Msg("Consensus alert; submission suppressed")
		default:
			s.log.Warn().Err(err).Msg("Cycle failed; will retry next cycle")
		}
	}
}

// RunCycle runs a single oracle cycle.
func (s *Service) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.maxCycleLifetime)
	defer cancel()

	err := s.cycle(ctx)
	switch {
	case err == nil:
		cycleCompleted(started, "succeeded")
	case errors.Is(err, reportbuilder.ErrNotReady):
		cycleCompleted(started, "deferred")
	case errors.Is(err, consensustracker.ErrConsensusMismatch),
		errors.Is(err, consensustracker.ErrInconsistentConsensus):
		consensusAlert()
		cycleCompleted(started, "alerted")
	case errors.Is(err, context.DeadlineExceeded):
		cycleCompleted(started, "expired")
	default:
		cycleCompleted(started, "failed")
	}

	return err
}

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

package standard

import (
	"context"
	"fmt"
	"time"

	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// cycle runs the read, build, evaluate and dispatch steps of one poll cycle.
// The steps are strictly sequential: every decision rests on the snapshot
// taken earlier in the same cycle, and nothing is mutated until all reads
// and computation have succeeded.
func (s *Service) cycle(ctx context.Context) error {
	ctx, span := otel.Tracer("accordlabs.accord.services.controller.standard").Start(ctx, "cycle")
	defer span.End()

	finalized, err := s.blockStamps.LastFinalizedBlockStamp(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to obtain last finalized block stamp")
	}
	if finalized.Slot <= s.thresholdSlot {
		s.log.Trace().
			Uint64("finalized_slot", uint64(finalized.Slot)).
			Uint64("threshold_slot", uint64(s.thresholdSlot)).
			Msg("Finalized slot below threshold; nothing to do")
		return nil
	}

	frame, err := s.frameCalculator.CurrentFrame(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to calculate current frame")
	}
	if frame.RefSlot < s.lastRefSlot {
		return fmt.Errorf("reference slot moved backwards from %d to %d", s.lastRefSlot, frame.RefSlot)
	}
	s.lastRefSlot = frame.RefSlot
	monitorFrame(frame.Index)

	// All contract reads in this cycle are anchored at one execution block so
	// the view cannot be torn by transactions landing between reads.
	header, err := s.executionHeaderProvider.HeaderByNumber(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to obtain execution chain head")
	}
	anchor := header.Hash()

	// The contract names the frame every member must report on; computing it
	// locally and diverging would have this member submitting against the
	// wrong reference slot.
	contractFrame, err := s.currentFrameProvider.CurrentFrame(ctx, anchor)
	if err != nil {
		return errors.Wrap(err, "failed to obtain contract current frame")
	}
	if contractFrame.RefSlot != frame.RefSlot {
		return fmt.Errorf("calculated reference slot %d does not match contract reference slot %d",
			frame.RefSlot,
			contractFrame.RefSlot,
		)
	}

	log := s.log.With().
		Uint64("frame", frame.Index).
		Uint64("ref_slot", uint64(frame.RefSlot)).
		Logger()

	if s.chainTime.CurrentSlot() > frame.ReportProcessingDeadlineSlot {
		// A frame past its deadline is never retried; the protocol handles
		// missed reports externally.
		log.Warn().Msg("Report processing deadline missed; closing out frame")
		s.thresholdSlot = frame.ReportProcessingDeadlineSlot
		return nil
	}

	if finalized.Slot < frame.RefSlot {
		log.Debug().
			Uint64("finalized_slot", uint64(finalized.Slot)).
			Msg("Reference slot is not yet finalized; waiting")
		return nil
	}

	stamp, err := s.blockStamps.ReferenceBlockStamp(ctx, frame.RefSlot, finalized.Slot)
	if err != nil {
		return errors.Wrap(err, "failed to resolve reference block stamp")
	}

	report, err := s.reportBuilder.Build(ctx, frame, stamp)
	if err != nil {
		return errors.Wrap(err, "failed to build report")
	}
	log.Trace().Stringer("hash", report.Hash).Msg("Built report")

	snapshot, err := s.snapshot(ctx, anchor, frame)
	if err != nil {
		return err
	}

	outcome, err := s.consensusTracker.Evaluate(ctx, snapshot, report.Hash)
	if err != nil {
		if outcome != nil && outcome.Alert {
			log.Error().
				Stringer("local_hash", report.Hash).
				Stringer("consensus_hash", outcome.ConsensusHash).
				Str("reason", outcome.Reason).
				Msg("Consensus alert")
		}
		return err
	}
	monitorFrameState(outcome.State)

	if outcome.State == consensustracker.StateClosed {
		log.Info().Str("reason", outcome.Reason).Msg("Frame closed")
		s.thresholdSlot = frame.ReportProcessingDeadlineSlot
		return nil
	}

	return s.dispatch(ctx, frame, report, outcome)
}

// snapshot assembles the consensus snapshot from contract reads anchored at
// the given execution block.
func (s *Service) snapshot(ctx context.Context,
	anchor common.Hash,
	frame *framecalculator.Frame,
) (*consensustracker.Snapshot, error) {
	members, err := s.membersProvider.Members(ctx, anchor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain members")
	}
	quorum, err := s.quorumProvider.Quorum(ctx, anchor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain quorum")
	}
	memberHashes, err := s.memberHashesProvider.MemberHashes(ctx, anchor, members)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain member hashes")
	}
	consensusState, err := s.consensusStateProvider.ConsensusState(ctx, anchor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain consensus state")
	}
	if consensusState.RefSlot != frame.RefSlot {
		return nil, fmt.Errorf("consensus state is for reference slot %d, not %d",
			consensusState.RefSlot,
			frame.RefSlot,
		)
	}
	frameConfig, err := s.frameConfigProvider.FrameConfig(ctx, anchor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain frame configuration")
	}
	lastProcessingRefSlot, err := s.lastProcessingRefSlotProvider.LastProcessingRefSlot(ctx, anchor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain last processing reference slot")
	}

	snapshot := &consensustracker.Snapshot{
		Frame:                 *frame,
		CurrentSlot:           s.chainTime.CurrentSlot(),
		Member:                s.member,
		Members:               members,
		Quorum:                quorum,
		FastLaneLengthSlots:   frameConfig.FastLaneLengthSlots,
		MemberHashes:          memberHashes,
		ConsensusReport:       consensusState.ConsensusReport,
		LastProcessingRefSlot: lastProcessingRefSlot,
	}

	if s.member != (common.Address{}) {
		info, err := s.memberInfoProvider.MemberInfo(ctx, anchor, s.member)
		if err != nil {
			return nil, errors.Wrap(err, "failed to obtain member info")
		}
		snapshot.CanReport = info.CanReport
	}

	// The report contract's processing state covers the frame only once its
	// report hash has reached consensus; before that the contract still shows
	// the previous frame and the progress fields stay zero.
	processingState, err := s.processingStateProvider.ProcessingState(ctx, anchor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain processing state")
	}
	if processingState.RefSlot == frame.RefSlot {
		snapshot.MainDataSubmitted = processingState.DataSubmitted
		snapshot.ExtraDataItemsCount = processingState.ExtraDataItemsCount
		snapshot.ExtraDataItemsSubmitted = processingState.ExtraDataItemsSubmitted
		snapshot.ExtraDataSubmitted = processingState.ExtraDataSubmitted
	}

	return snapshot, nil
}

// dispatch carries out the tracker's recommended action.
func (s *Service) dispatch(ctx context.Context,
	frame *framecalculator.Frame,
	report *reportbuilder.Report,
	outcome *consensustracker.Outcome,
) error {
	log := s.log.With().
		Uint64("frame", frame.Index).
		Uint64("ref_slot", uint64(frame.RefSlot)).
		Stringer("action", outcome.Action).
		Logger()

	switch outcome.Action {
	case consensustracker.ActionNone,
		consensustracker.ActionAwaitQuorum,
		consensustracker.ActionAwaitReport,
		consensustracker.ActionAwaitExtraData:
		log.Trace().Str("reason", outcome.Reason).Msg("No action required")
		return nil
	case consensustracker.ActionSubmitHash:
		return s.submitHash(ctx, frame, report, outcome)
	case consensustracker.ActionSubmitReport:
		return s.submitReport(ctx, frame, report, outcome)
	case consensustracker.ActionSubmitExtraData:
		return s.submitExtraData(ctx, frame, report, outcome)
	default:
		return fmt.Errorf("unknown action %v", outcome.Action)
	}
}

// submitHash submits this member's report hash, waiting out any fast lane
// postponement.  The bunker gate does not apply: the hash carries no report
// effects, and withholding it would weaken the consensus.
func (s *Service) submitHash(ctx context.Context,
	frame *framecalculator.Frame,
	report *reportbuilder.Report,
	outcome *consensustracker.Outcome,
) error {
	err := s.awaitSlots(ctx, outcome.SubmitDelaySlots, func(ctx context.Context) (bool, error) {
		info, err := s.memberInfoProvider.MemberInfo(ctx, common.Hash{}, s.member)
		if err != nil {
			return false, errors.Wrap(err, "failed to obtain member info")
		}
		return info.CanReport, nil
	})
	if err != nil {
		return err
	}

	// Re-check against fresh state: the delay may have been consumed by
	// another cycle, or the hash may already be on-chain.
	info, err := s.memberInfoProvider.MemberInfo(ctx, common.Hash{}, s.member)
	if err != nil {
		return errors.Wrap(err, "failed to obtain member info")
	}
	if info.CurrentFrameRefSlot == frame.RefSlot && info.CurrentFrameMemberReport == report.Hash {
		s.log.Trace().Msg("Report hash already on-chain")
		return nil
	}
	if !info.CanReport {
		return errors.New("contract will not accept a report hash from this member yet")
	}

	if !s.confirm(ctx, fmt.Sprintf("submit report hash %#x for reference slot %d", report.Hash, frame.RefSlot)) {
		s.log.Info().Msg("Report hash submission declined")
		return nil
	}
	if err := s.reportHashSubmitter.SubmitReportHash(ctx, frame.RefSlot, report.Hash, report.ConsensusVersion); err != nil {
		return errors.Wrap(err, "failed to submit report hash")
	}
	submissionCompleted("hash")
	s.log.Info().
		Uint64("ref_slot", uint64(frame.RefSlot)).
		Stringer("hash", report.Hash).
		Msg("Submitted report hash")

	return nil
}

// submitReport submits the frame's main report data, after any stagger delay
// and subject to the bunker gate.
func (s *Service) submitReport(ctx context.Context,
	frame *framecalculator.Frame,
	report *reportbuilder.Report,
	outcome *consensustracker.Outcome,
) error {
	if report.Bunker && !s.allowBunkerReporting {
		bunkerSuppressed()
		s.log.Warn().
			Uint64("ref_slot", uint64(frame.RefSlot)).
			Msg("Bunker mode is active; suppressing report data submission")
		return nil
	}

	err := s.awaitSlots(ctx, outcome.SubmitDelaySlots, func(ctx context.Context) (bool, error) {
		return s.mainDataSubmitted(ctx, frame)
	})
	if err != nil {
		return err
	}

	submitted, err := s.mainDataSubmitted(ctx, frame)
	if err != nil {
		return err
	}
	if submitted {
		s.log.Trace().Msg("Report data already submitted")
		return nil
	}

	// The contract rejects report data encoded for a different contract
	// version, so fetch the current one rather than assuming the version
	// seen at startup.
	contractVersion, err := s.contractVersionProvider.ContractVersion(ctx, common.Hash{})
	if err != nil {
		return errors.Wrap(err, "failed to obtain contract version")
	}
	consensusVersion, err := s.consensusVersionProvider.ConsensusVersion(ctx, common.Hash{})
	if err != nil {
		return errors.Wrap(err, "failed to obtain consensus version")
	}
	if consensusVersion != report.ConsensusVersion {
		return fmt.Errorf("contract expects consensus version %d but the report carries %d",
			consensusVersion,
			report.ConsensusVersion,
		)
	}

	if !s.confirm(ctx, fmt.Sprintf("submit report data for reference slot %d with hash %#x", frame.RefSlot, report.Hash)) {
		s.log.Info().Msg("Report data submission declined")
		return nil
	}
	if err := s.reportDataSubmitter.SubmitReportData(ctx, report, contractVersion); err != nil {
		return errors.Wrap(err, "failed to submit report data")
	}
	submissionCompleted("report")
	s.log.Info().
		Uint64("ref_slot", uint64(frame.RefSlot)).
		Stringer("hash", report.Hash).
		Msg("Submitted report data")

	return nil
}

// submitExtraData submits the next outstanding extra data chunk, after any
// stagger delay and subject to the bunker gate.
func (s *Service) submitExtraData(ctx context.Context,
	frame *framecalculator.Frame,
	report *reportbuilder.Report,
	outcome *consensustracker.Outcome,
) error {
	if report.Bunker && !s.allowBunkerReporting {
		bunkerSuppressed()
		s.log.Warn().
			Uint64("ref_slot", uint64(frame.RefSlot)).
			Msg("Bunker mode is active; suppressing extra data submission")
		return nil
	}

	err := s.awaitSlots(ctx, outcome.SubmitDelaySlots, func(ctx context.Context) (bool, error) {
		state, err := s.frameProcessingState(ctx, frame)
		if err != nil {
			return false, err
		}
		return state != nil && state.ExtraDataSubmitted, nil
	})
	if err != nil {
		return err
	}

	state, err := s.frameProcessingState(ctx, frame)
	if err != nil {
		return err
	}
	if state == nil || !state.DataSubmitted {
		// The main report data landed and then disappeared from the contract's
		// view, which only a reorg of the submission block explains.  Start
		// over next cycle.
		return errors.New("report data no longer submitted for the frame")
	}
	if state.ExtraDataSubmitted {
		s.log.Trace().Msg("Extra data already submitted")
		return nil
	}

	var chunk []byte
	if report.ExtraData != nil {
		chunk, err = report.ExtraData.NextChunk(state.ExtraDataItemsSubmitted)
		if err != nil {
			return errors.Wrap(err, "failed to determine next extra data chunk")
		}
		if chunk == nil && report.ExtraData.ItemsCount > 0 {
			// Every item is on-chain; the contract will flip the submitted
			// flag when it finishes processing.
			s.log.Trace().Msg("All extra data items submitted")
			return nil
		}
	}

	action := fmt.Sprintf("submit extra data chunk of %d bytes for reference slot %d", len(chunk), frame.RefSlot)
	if len(chunk) == 0 {
		action = fmt.Sprintf("confirm empty extra data for reference slot %d", frame.RefSlot)
	}
	if !s.confirm(ctx, action) {
		s.log.Info().Msg("Extra data submission declined")
		return nil
	}
	if err := s.extraDataSubmitter.SubmitExtraData(ctx, chunk); err != nil {
		return errors.Wrap(err, "failed to submit extra data")
	}
	submissionCompleted("extra_data")
	s.log.Info().
		Uint64("ref_slot", uint64(frame.RefSlot)).
		Int("chunk_bytes", len(chunk)).
		Uint64("items_submitted", state.ExtraDataItemsSubmitted).
		Msg("Submitted extra data")

	return nil
}

// mainDataSubmitted reports whether the frame's main report data is on-chain.
func (s *Service) mainDataSubmitted(ctx context.Context, frame *framecalculator.Frame) (bool, error) {
	state, err := s.frameProcessingState(ctx, frame)
	if err != nil {
		return false, err
	}

	return state != nil && state.DataSubmitted, nil
}

// frameProcessingState returns the report contract's processing state when it
// covers the given frame, nil when the contract still shows an earlier frame.
func (s *Service) frameProcessingState(ctx context.Context, frame *framecalculator.Frame) (*frameProgress, error) {
	state, err := s.processingStateProvider.ProcessingState(ctx, common.Hash{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain processing state")
	}
	if state.RefSlot != frame.RefSlot {
		return nil, nil
	}

	return &frameProgress{
		DataSubmitted:           state.DataSubmitted,
		ExtraDataItemsSubmitted: state.ExtraDataItemsSubmitted,
		ExtraDataSubmitted:      state.ExtraDataSubmitted,
	}, nil
}

type frameProgress struct {
	DataSubmitted           bool
	ExtraDataItemsSubmitted uint64
	ExtraDataSubmitted      bool
}

// awaitSlots consumes a stagger delay one slot at a time, returning early
// when the satisfied check reports that the awaited condition has been met
// by another member.  The cycle deadline bounds the total wait.
func (s *Service) awaitSlots(ctx context.Context,
	slots uint64,
	satisfied func(ctx context.Context) (bool, error),
) error {
	if slots == 0 {
		return nil
	}
	s.log.Debug().Uint64("delay_slots", slots).Msg("Waiting out stagger delay")

	for i := uint64(0); i < slots; i++ {
		done, err := satisfied(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := s.sleepSlot(ctx); err != nil {
			return err
		}
	}

	return nil
}

// sleepSlot sleeps for one slot or until the cycle deadline.
func (s *Service) sleepSlot(ctx context.Context) error {
	timer := time.NewTimer(s.chainTime.SlotDuration())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Copyright © 2024 Accord Labs Limited.
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

	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// CurrentFrame provides the frame for the current wall-clock epoch.
func (s *Service) CurrentFrame(ctx context.Context) (*framecalculator.Frame, error) {
	ctx, span := otel.Tracer("accordlabs.accord.services.framecalculator.standard").Start(ctx, "CurrentFrame")
	defer span.End()

	return s.FrameAtEpoch(ctx, s.chainTime.CurrentEpoch())
}

// FrameAtEpoch provides the frame containing the given epoch.
func (s *Service) FrameAtEpoch(ctx context.Context, epoch phase0.Epoch) (*framecalculator.Frame, error) {
	ctx, span := otel.Tracer("accordlabs.accord.services.framecalculator.standard").Start(ctx, "FrameAtEpoch")
	defer span.End()

	// The frame configuration can be changed by contract governance, so it is
	// re-read on each calculation rather than held from startup.
	frameConfig, err := s.frameConfigProvider.FrameConfig(ctx, common.Hash{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain frame configuration")
	}
	if frameConfig.EpochsPerFrame == 0 {
		return nil, errors.New("frame configuration has zero epochs per frame")
	}
	if frameConfig.InitialEpoch == 0 {
		return nil, errors.New("frame configuration has zero initial epoch")
	}
	if epoch < frameConfig.InitialEpoch {
		return nil, errors.Wrapf(framecalculator.ErrBeforeInitialEpoch, "epoch %d before initial epoch %d", epoch, frameConfig.InitialEpoch)
	}

	index := uint64(epoch-frameConfig.InitialEpoch) / frameConfig.EpochsPerFrame
	startEpoch := frameConfig.InitialEpoch + phase0.Epoch(index*frameConfig.EpochsPerFrame)
	nextStartEpoch := startEpoch + phase0.Epoch(frameConfig.EpochsPerFrame)

	frame := &framecalculator.Frame{
		Index:                        index,
		RefSlot:                      s.chainTime.FirstSlotOfEpoch(startEpoch) - 1,
		ReportProcessingDeadlineSlot: s.chainTime.FirstSlotOfEpoch(nextStartEpoch) - 1,
	}
	s.log.Trace().
		Uint64("epoch", uint64(epoch)).
		Uint64("frame", frame.Index).
		Uint64("ref_slot", uint64(frame.RefSlot)).
		Uint64("deadline_slot", uint64(frame.ReportProcessingDeadlineSlot)).
		Msg("Calculated frame")

	return frame, nil
}

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

package framecalculator

import (
	"context"
	"errors"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// ErrBeforeInitialEpoch is returned when a frame is requested for an epoch
// before the consensus contract's initial epoch.
var ErrBeforeInitialEpoch = errors.New("epoch before initial epoch")

// Frame identifies one reporting period.
type Frame struct {
	// Index is the ordinal of the frame, starting at 0 for the frame beginning
	// at the initial epoch.
	Index uint64
	// RefSlot is the slot whose state the frame reports on, the slot
	// immediately before the frame's first epoch.
	RefSlot phase0.Slot
	// ReportProcessingDeadlineSlot is the last slot at which the frame's report
	// is accepted, equal to the next frame's reference slot.
	ReportProcessingDeadlineSlot phase0.Slot
}

// Service is the interface for the frame calculator.
type Service interface {
	// CurrentFrame provides the frame for the current wall-clock epoch.
	CurrentFrame(ctx context.Context) (*Frame, error)

	// FrameAtEpoch provides the frame containing the given epoch.
	FrameAtEpoch(ctx context.Context, epoch phase0.Epoch) (*Frame, error)
}

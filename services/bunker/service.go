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

// Package bunker is the interface to the bunker mode detector.  Bunker mode
// is a protocol-wide protective state entered when the consensus layer shows
// an abnormal rebase, under which the protocol suspends withdrawal
// finalization until conditions normalise.
package bunker

import (
	"context"

	"github.com/accordlabs/accord/services/blockstamp"
)

// Service is the interface for a bunker mode detector.
type Service interface {
	// IsBunkerMode reports whether the protocol should operate in bunker
	// mode at the given reference stamp.
	IsBunkerMode(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) (bool, error)
}

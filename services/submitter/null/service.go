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

// Package null is a submitter that logs would-be submissions without sending
// any transactions, for dry runs and observer mode.
package null

import (
	"context"

	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// Service is a submitter that drops submissions.
type Service struct {
	log zerolog.Logger
}

// New creates a new submitter.
func New(_ context.Context, params ...Parameter) (*Service, error) {
	parameters := parseAndCheckParameters(params...)

	// Set logging.
	log := zerologger.With().Str("service", "submitter").Str("impl", "null").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	s := &Service{
		log: log,
	}

	return s, nil
}

// SubmitReportHash logs the report hash without submitting it.
func (s *Service) SubmitReportHash(_ context.Context, refSlot phase0.Slot, reportHash common.Hash, consensusVersion uint64) error {
	if reportHash == (common.Hash{}) {
		return errors.New("no report hash supplied")
	}

	s.log.Info().
		Uint64("ref_slot", uint64(refSlot)).
		Str("report_hash", reportHash.Hex()).
		Uint64("consensus_version", consensusVersion).
		Msg("Not submitting report hash")

	return nil
}

// SubmitReportData logs the report without submitting it.
func (s *Service) SubmitReportData(_ context.Context, report *reportbuilder.Report, contractVersion uint64) error {
	if report == nil {
		return errors.New("no report supplied")
	}

	s.log.Info().
		Uint64("ref_slot", uint64(report.RefSlot)).
		Str("report_hash", report.Hash.Hex()).
		Uint64("contract_version", contractVersion).
		Msg("Not submitting report data")

	return nil
}

// SubmitExtraData logs the extra data chunk without submitting it.
func (s *Service) SubmitExtraData(_ context.Context, chunk []byte) error {
	s.log.Info().
		Int("chunk_bytes", len(chunk)).
		Msg("Not submitting extra data")

	return nil
}

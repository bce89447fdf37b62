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

package onchain

import (
	"context"
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// SubmitReportHash submits the hash of a report for the given reference slot
// to the hash consensus contract.
func (s *Service) SubmitReportHash(ctx context.Context, refSlot phase0.Slot, reportHash common.Hash, consensusVersion uint64) error {
	ctx, span := otel.Tracer("accordlabs.accord.services.submitter.onchain").Start(ctx, "SubmitReportHash")
	defer span.End()

	if reportHash == (common.Hash{}) {
		return errors.New("no report hash supplied")
	}

	started := time.Now()
	tx, err := s.hashConsensus.SubmitReport(s.txOpts(ctx), refSlot, reportHash, consensusVersion)
	s.clientMonitor.ClientOperation(s.hashConsensus.Address().Hex(), "submit report hash", err == nil, time.Since(started))
	if err != nil {
		return errors.Wrap(err, "failed to submit report hash")
	}

	log.Info().
		Uint64("ref_slot", uint64(refSlot)).
		Str("report_hash", reportHash.Hex()).
		Str("tx", tx.Hash().Hex()).
		Msg("Submitted report hash")

	return nil
}

// SubmitReportData submits the main report data to the report processor
// contract for the report's module.
func (s *Service) SubmitReportData(ctx context.Context, report *reportbuilder.Report, contractVersion uint64) error {
	ctx, span := otel.Tracer("accordlabs.accord.services.submitter.onchain").Start(ctx, "SubmitReportData")
	defer span.End()

	if report == nil || report.Tuple == nil {
		return errors.New("no report supplied")
	}

	var (
		tx      *types.Transaction
		address common.Address
		err     error
	)
	started := time.Now()
	switch data := report.Tuple.(type) {
	case *contracts.AccountingReportData:
		if s.accountingOracle == nil {
			return errors.New("no accounting oracle contract configured")
		}
		address = s.accountingOracle.Address()
		tx, err = s.accountingOracle.SubmitReportData(s.txOpts(ctx), data, contractVersion)
	case *contracts.ExitBusReportData:
		if s.exitBusOracle == nil {
			return errors.New("no exit bus oracle contract configured")
		}
		address = s.exitBusOracle.Address()
		tx, err = s.exitBusOracle.SubmitReportData(s.txOpts(ctx), data, contractVersion)
	case *contracts.FeeReportData:
		if s.feeOracle == nil {
			return errors.New("no fee oracle contract configured")
		}
		address = s.feeOracle.Address()
		tx, err = s.feeOracle.SubmitReportData(s.txOpts(ctx), data, contractVersion)
	default:
		return errors.New("unknown report data type")
	}
	s.clientMonitor.ClientOperation(address.Hex(), "submit report data", err == nil, time.Since(started))
	if err != nil {
		return errors.Wrap(err, "failed to submit report data")
	}

	log.Info().
		Uint64("ref_slot", uint64(report.RefSlot)).
		Str("report_hash", report.Hash.Hex()).
		Str("tx", tx.Hash().Hex()).
		Msg("Submitted report data")

	return nil
}

// SubmitExtraData submits one extra data chunk to the accounting oracle.  An
// empty chunk marks the report's extra data as empty.
func (s *Service) SubmitExtraData(ctx context.Context, chunk []byte) error {
	ctx, span := otel.Tracer("accordlabs.accord.services.submitter.onchain").Start(ctx, "SubmitExtraData")
	defer span.End()

	if s.accountingOracle == nil {
		return errors.New("no accounting oracle contract configured")
	}

	var (
		tx  *types.Transaction
		err error
	)
	started := time.Now()
	if len(chunk) == 0 {
		tx, err = s.accountingOracle.SubmitReportExtraDataEmpty(s.txOpts(ctx))
	} else {
		tx, err = s.accountingOracle.SubmitReportExtraDataList(s.txOpts(ctx), chunk)
	}
	s.clientMonitor.ClientOperation(s.accountingOracle.Address().Hex(), "submit extra data", err == nil, time.Since(started))
	if err != nil {
		return errors.Wrap(err, "failed to submit extra data")
	}

	log.Info().
		Int("chunk_bytes", len(chunk)).
		Str("tx", tx.Hash().Hex()).
		Msg("Submitted extra data")

	return nil
}

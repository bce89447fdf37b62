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

// Package submitter contains the interfaces for submitting oracle data to
// the protocol contracts.
package submitter

import (
	"context"

	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// Service is the submitter service.
type Service interface{}

// ReportHashSubmitter is the interface for a submitter of report hashes.
type ReportHashSubmitter interface {
	// SubmitReportHash submits the hash of a report for the given reference
	// slot to the hash consensus contract.
	SubmitReportHash(ctx context.Context, refSlot phase0.Slot, reportHash common.Hash, consensusVersion uint64) error
}

// ReportDataSubmitter is the interface for a submitter of main report data.
type ReportDataSubmitter interface {
	// SubmitReportData submits the main report data to the report processor
	// contract.  The data must hash to the value previously brought to
	// consensus for the report's reference slot.
	SubmitReportData(ctx context.Context, report *reportbuilder.Report, contractVersion uint64) error
}

// ExtraDataSubmitter is the interface for a submitter of report extra data.
type ExtraDataSubmitter interface {
	// SubmitExtraData submits one extra data chunk to the report processor
	// contract.  An empty chunk marks a report whose extra data is empty.
	SubmitExtraData(ctx context.Context, chunk []byte) error
}

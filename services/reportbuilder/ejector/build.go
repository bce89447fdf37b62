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

package ejector

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// farFutureEpoch marks a validator that has not initiated an exit.
const farFutureEpoch = phase0.Epoch(0xffffffffffffffff)

// exitRequest identifies one validator to be exited.
type exitRequest struct {
	moduleID       uint64
	nodeOperatorID uint64
	validatorIndex phase0.ValidatorIndex
	pubKey         phase0.BLSPubKey
}

// operatorQueue holds one operator's exitable validators, lowest index first.
type operatorQueue struct {
	moduleID   uint64
	operatorID uint64
	eligible   []*exitRequest
}

// Build assembles the exit bus report for the given frame, reading chain
// state at the given reference block stamp.
func (s *Service) Build(ctx context.Context,
	frame *framecalculator.Frame,
	stamp *blockstamp.ReferenceBlockStamp,
) (
	*reportbuilder.Report,
	error,
) {
	ctx, span := otel.Tracer("accordlabs.accord.services.reportbuilder.ejector").Start(ctx, "Build")
	defer span.End()
	started := time.Now()

	if frame == nil {
		return nil, errors.New("no frame specified")
	}
	if stamp == nil {
		return nil, errors.New("no stamp specified")
	}

	demand := uint64(0)
	if s.demand != nil {
		var err error
		demand, err = s.demand.ExitDemand(ctx, stamp)
		if err != nil {
			buildCompleted(started, "failed")
			return nil, errors.Wrap(err, "failed to obtain exit demand")
		}
	}
	if demand > s.maxRequestsPerReport {
		demand = s.maxRequestsPerReport
	}

	requests := make([]*exitRequest, 0)
	if demand > 0 {
		queues, err := s.operatorQueues(ctx, stamp)
		if err != nil {
			buildCompleted(started, "failed")
			return nil, err
		}
		requests = selectRequests(queues, demand)
	}

	tuple := &contracts.ExitBusReportData{
		ConsensusVersion: new(big.Int).SetUint64(consensusVersion),
		RefSlot:          new(big.Int).SetUint64(uint64(stamp.RefSlot)),
		RequestsCount:    new(big.Int).SetUint64(uint64(len(requests))),
		DataFormat:       new(big.Int).SetUint64(contracts.ExitRequestsDataFormatList),
		Data:             encodeRequests(requests),
	}
	encoded, err := tuple.Encode()
	if err != nil {
		buildCompleted(started, "failed")
		return nil, err
	}

	log.Trace().
		Uint64("frame", frame.Index).
		Uint64("ref_slot", uint64(stamp.RefSlot)).
		Uint64("demand", demand).
		Int("requests", len(requests)).
		Dur("elapsed", time.Since(started)).
		Msg("Built exit bus report")
	buildCompleted(started, "succeeded")

	return &reportbuilder.Report{
		RefSlot:          stamp.RefSlot,
		ConsensusVersion: consensusVersion,
		Tuple:            tuple,
		Data:             encoded,
		Hash:             contracts.HashReportData(encoded),
	}, nil
}

// operatorQueues assembles each operator's exitable validators at the
// reference stamp: used keys whose validators are active, not already
// exiting, and above the operator's exit request watermark.
func (s *Service) operatorQueues(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) ([]*operatorQueue, error) {
	validatorsResponse, err := s.validatorsProvider.Validators(ctx, &api.ValidatorsOpts{
		State: fmt.Sprintf("%#x", stamp.StateRoot),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain validators")
	}
	validatorsByPubKey := make(map[phase0.BLSPubKey]*apiv1.Validator, len(validatorsResponse.Data))
	for _, validator := range validatorsResponse.Data {
		if validator.Validator == nil {
			continue
		}
		validatorsByPubKey[validator.Validator.PublicKey] = validator
	}

	modules, err := s.keysAPI.Modules(ctx, &stamp.BlockStamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain staking modules")
	}
	sorted := make([]*keysapi.Module, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	queues := make([]*operatorQueue, 0)
	for _, module := range sorted {
		moduleQueues, err := s.moduleQueues(ctx, stamp, module, validatorsByPubKey)
		if err != nil {
			return nil, err
		}
		queues = append(queues, moduleQueues...)
	}

	return queues, nil
}

// moduleQueues assembles the queues of a single module's operators.
func (s *Service) moduleQueues(ctx context.Context,
	stamp *blockstamp.ReferenceBlockStamp,
	module *keysapi.Module,
	validatorsByPubKey map[phase0.BLSPubKey]*apiv1.Validator,
) (
	[]*operatorQueue,
	error,
) {
	operators, err := s.keysAPI.Operators(ctx, &stamp.BlockStamp, module.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain operators for module %d", module.ID)
	}
	sorted := make([]*keysapi.Operator, len(operators))
	copy(sorted, operators)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	if len(sorted) == 0 {
		return nil, nil
	}

	keys, err := s.keysAPI.OperatorKeys(ctx, &stamp.BlockStamp, module.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain keys for module %d", module.ID)
	}

	// Watermarks are read at the reference stamp itself: a validator at or
	// under its operator's watermark already has an outstanding request.
	operatorIDs := make([]uint64, 0, len(sorted))
	for _, operator := range sorted {
		operatorIDs = append(operatorIDs, operator.Index)
	}
	indices, err := s.exitRequests.LastRequestedValidatorIndices(ctx, common.Hash(stamp.BlockHash), module.ID, operatorIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain exit request watermarks for module %d", module.ID)
	}
	if len(indices) != len(operatorIDs) {
		return nil, fmt.Errorf("exit request watermarks for module %d returned %d entries for %d operators", module.ID, len(indices), len(operatorIDs))
	}
	watermarks := make(map[uint64]int64, len(operatorIDs))
	for i, operatorID := range operatorIDs {
		watermarks[operatorID] = indices[i]
	}

	queues := make(map[uint64]*operatorQueue, len(sorted))
	for _, operator := range sorted {
		queues[operator.Index] = &operatorQueue{
			moduleID:   module.ID,
			operatorID: operator.Index,
		}
	}
	for _, key := range keys {
		if !key.Used {
			continue
		}
		validator, exists := validatorsByPubKey[key.Key]
		if !exists {
			continue
		}
		queue, exists := queues[key.OperatorIndex]
		if !exists {
			continue
		}
		if validator.Validator.ActivationEpoch > stamp.RefEpoch ||
			validator.Validator.ExitEpoch != farFutureEpoch {
			continue
		}
		if int64(validator.Index) <= watermarks[key.OperatorIndex] {
			// Already requested.
			continue
		}
		queue.eligible = append(queue.eligible, &exitRequest{
			moduleID:       module.ID,
			nodeOperatorID: key.OperatorIndex,
			validatorIndex: validator.Index,
			pubKey:         key.Key,
		})
	}

	ordered := make([]*operatorQueue, 0, len(sorted))
	for _, operator := range sorted {
		queue := queues[operator.Index]
		sort.Slice(queue.eligible, func(i, j int) bool {
			return queue.eligible[i].validatorIndex < queue.eligible[j].validatorIndex
		})
		ordered = append(ordered, queue)
	}

	return ordered, nil
}

// selectRequests picks up to limit validators, each time taking the lowest
// index from the operator with the most exitable validators remaining, ties
// to the lowest module then operator ID.
func selectRequests(queues []*operatorQueue, limit uint64) []*exitRequest {
	selected := make([]*exitRequest, 0, limit)
	for uint64(len(selected)) < limit {
		var best *operatorQueue
		for _, queue := range queues {
			if len(queue.eligible) == 0 {
				continue
			}
			if best == nil || queueBefore(queue, best) {
				best = queue
			}
		}
		if best == nil {
			break
		}
		selected = append(selected, best.eligible[0])
		best.eligible = best.eligible[1:]
	}

	return selected
}

// queueBefore reports whether a takes priority over b for the next exit.
func queueBefore(a *operatorQueue, b *operatorQueue) bool {
	if len(a.eligible) != len(b.eligible) {
		return len(a.eligible) > len(b.eligible)
	}
	if a.moduleID != b.moduleID {
		return a.moduleID < b.moduleID
	}

	return a.operatorID < b.operatorID
}

// encodeRequests serialises the requests in ascending (module, operator,
// validator) order.  Each request is 64 bytes: the module ID in 3 bytes,
// the operator ID in 5, the validator index in 8, all big-endian, then the
// validator's public key.
func encodeRequests(requests []*exitRequest) []byte {
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].moduleID != requests[j].moduleID {
			return requests[i].moduleID < requests[j].moduleID
		}
		if requests[i].nodeOperatorID != requests[j].nodeOperatorID {
			return requests[i].nodeOperatorID < requests[j].nodeOperatorID
		}
		return requests[i].validatorIndex < requests[j].validatorIndex
	})

	data := make([]byte, 0, 64*len(requests))
	for _, request := range requests {
		data = appendUintN(data, request.moduleID, 3)
		data = appendUintN(data, request.nodeOperatorID, 5)
		data = appendUintN(data, uint64(request.validatorIndex), 8)
		data = append(data, request.pubKey[:]...)
	}

	return data
}

// appendUintN appends the big-endian encoding of value in width bytes.
func appendUintN(buf []byte, value uint64, width int) []byte {
	for shift := 8 * (width - 1); shift >= 0; shift -= 8 {
		buf = append(buf, byte(value>>uint(shift)))
	}

	return buf
}

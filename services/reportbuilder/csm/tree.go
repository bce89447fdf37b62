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

package csm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// operatorShare pairs a node operator with the fee shares it earned over the
// frame.
type operatorShare struct {
	nodeOperatorID uint64
	shares         *big.Int
}

// distributionResult is the outcome of dividing the distributable fees
// between the module's operators.
type distributionResult struct {
	// threshold is the performance cut-off validators had to beat.
	threshold decimal.Decimal
	// counts is the number of each operator's validators above the
	// threshold.
	counts map[uint64]uint64
	// total is the number of validators above the threshold across the
	// module.
	total uint64
	// shares holds the operators that earned a non-zero amount, ordered by
	// operator identifier.
	shares []*operatorShare
	// distributed is the sum of the earned amounts.  Any remainder of the
	// distributable fees stays accrued for the next frame.
	distributed *big.Int
}

// distribution divides the distributable fees between the module's operators
// in proportion to how many of their validators performed above the
// threshold over the frame.  The collection must be complete.
func (s *Service) distribution(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) (*distributionResult, error) {
	threshold, err := s.perfThreshold(ctx, stamp)
	if err != nil {
		return nil, err
	}

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

	keys, err := s.keysAPI.OperatorKeys(ctx, &stamp.BlockStamp, s.moduleID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to obtain keys for module %d", s.moduleID)
	}

	counts := make(map[uint64]uint64)
	total := uint64(0)
	for _, key := range keys {
		if !key.Used {
			continue
		}
		validator, exists := validatorsByPubKey[key.Key]
		if !exists {
			continue
		}
		duty, exists := s.state.Duties[validator.Index]
		if !exists || duty.Assigned == 0 {
			continue
		}
		perf := decimal.NewFromInt(int64(duty.Included)).Div(decimal.NewFromInt(int64(duty.Assigned)))
		if perf.GreaterThan(threshold) {
			counts[key.OperatorIndex]++
			total++
		}
	}

	pending, err := s.pendingShares.PendingSharesToDistribute(ctx, common.Hash(stamp.BlockHash))
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain pending shares")
	}

	operatorIDs := make([]uint64, 0, len(counts))
	for operatorID := range counts {
		operatorIDs = append(operatorIDs, operatorID)
	}
	sort.Slice(operatorIDs, func(i, j int) bool { return operatorIDs[i] < operatorIDs[j] })

	shares := make([]*operatorShare, 0, len(operatorIDs))
	distributed := new(big.Int)
	for _, operatorID := range operatorIDs {
		amount := new(big.Int).Mul(pending, new(big.Int).SetUint64(counts[operatorID]))
		amount.Div(amount, new(big.Int).SetUint64(total))
		if amount.Sign() == 0 {
			continue
		}
		shares = append(shares, &operatorShare{
			nodeOperatorID: operatorID,
			shares:         amount,
		})
		distributed.Add(distributed, amount)
	}

	return &distributionResult{
		threshold:   threshold,
		counts:      counts,
		total:       total,
		shares:      shares,
		distributed: distributed,
	}, nil
}

// perfThreshold returns the performance cut-off: the network average over
// the collected validators, less the contract's leeway.
func (s *Service) perfThreshold(ctx context.Context, stamp *blockstamp.ReferenceBlockStamp) (decimal.Decimal, error) {
	leewayBP, err := s.perfLeeway.AvgPerfLeewayBP(ctx, common.Hash(stamp.BlockHash))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to obtain performance leeway")
	}

	sum := decimal.Zero
	validators := int64(0)
	for _, duty := range s.state.Duties {
		if duty.Assigned == 0 {
			continue
		}
		sum = sum.Add(decimal.NewFromInt(int64(duty.Included)).Div(decimal.NewFromInt(int64(duty.Assigned))))
		validators++
	}
	if validators == 0 {
		return decimal.Zero, nil
	}
	average := sum.Div(decimal.NewFromInt(validators))
	leeway := decimal.NewFromInt(int64(leewayBP)).Div(decimal.NewFromInt(totalBasisPoints))

	return average.Sub(leeway), nil
}

// shareTree is the operator share distribution in Merkle form, compatible
// with the standard merkle tree layout: leaves are the double-keccak hashes
// of the abi-encoded (nodeOperatorId, shares) pairs, sorted ascending, and
// internal nodes hash their children in sorted order so that proofs need no
// position information.
type shareTree struct {
	root  common.Hash
	nodes []common.Hash
	// treeIndices maps each share, in input order, to its node position.
	treeIndices []int
	shares      []*operatorShare
}

// buildShareTree builds the Merkle tree over the given shares.  An empty
// distribution has a zero root.
func buildShareTree(shares []*operatorShare) *shareTree {
	if len(shares) == 0 {
		return &shareTree{shares: shares}
	}

	type leaf struct {
		hash  common.Hash
		share int
	}
	leaves := make([]*leaf, 0, len(shares))
	for i, share := range shares {
		leaves = append(leaves, &leaf{hash: leafHash(share), share: i})
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].hash[:], leaves[j].hash[:]) < 0
	})

	nodes := make([]common.Hash, 2*len(leaves)-1)
	treeIndices := make([]int, len(shares))
	for i, l := range leaves {
		position := len(nodes) - 1 - i
		nodes[position] = l.hash
		treeIndices[l.share] = position
	}
	for i := len(nodes) - 1 - len(leaves); i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}

	return &shareTree{
		root:        nodes[0],
		nodes:       nodes,
		treeIndices: treeIndices,
		shares:      shares,
	}
}

// leafHash double-hashes the abi encoding of a (nodeOperatorId, shares)
// pair, the second hash keeping leaves from being presented as internal
// nodes.
func leafHash(share *operatorShare) common.Hash {
	encoded := make([]byte, 64)
	copy(encoded[:32], common.BigToHash(new(big.Int).SetUint64(share.nodeOperatorID)).Bytes())
	copy(encoded[32:], common.BigToHash(share.shares).Bytes())

	return common.BytesToHash(crypto.Keccak256(crypto.Keccak256(encoded)))
}

// hashPair hashes two nodes in ascending order.
func hashPair(a common.Hash, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}

	return common.BytesToHash(crypto.Keccak256(a[:], b[:]))
}

// treeDump is the published form of the share tree, in the standard merkle
// tree interchange format so that operators can rebuild their proofs.
type treeDump struct {
	Format       string      `json:"format"`
	Tree         []string    `json:"tree"`
	Values       []treeValue `json:"values"`
	LeafEncoding []string    `json:"leafEncoding"`
}

type treeValue struct {
	Value     [2]string `json:"value"`
	TreeIndex int       `json:"treeIndex"`
}

// encode serializes the tree for publication.
func (t *shareTree) encode() ([]byte, error) {
	nodes := make([]string, 0, len(t.nodes))
	for _, node := range t.nodes {
		nodes = append(nodes, node.Hex())
	}
	values := make([]treeValue, 0, len(t.shares))
	for i, share := range t.shares {
		values = append(values, treeValue{
			Value:     [2]string{strconv.FormatUint(share.nodeOperatorID, 10), share.shares.String()},
			TreeIndex: t.treeIndices[i],
		})
	}

	encoded, err := json.Marshal(&treeDump{
		Format:       "standard-v1",
		Tree:         nodes,
		Values:       values,
		LeafEncoding: []string{"uint256", "uint256"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode share tree")
	}

	return encoded, nil
}

// distributionLog is the published record of how the distribution was
// computed.
type distributionLog struct {
	RefSlot     uint64         `json:"refSlot"`
	Threshold   string         `json:"threshold"`
	Distributed string         `json:"distributed"`
	Operators   []*logOperator `json:"operators"`
}

type logOperator struct {
	NodeOperatorID uint64 `json:"nodeOperatorId"`
	Validators     uint64 `json:"validators"`
	Shares         string `json:"shares"`
}

// encodeLog serializes the distribution record for publication.
func encodeLog(refSlot phase0.Slot, result *distributionResult) ([]byte, error) {
	operators := make([]*logOperator, 0, len(result.shares))
	for _, share := range result.shares {
		operators = append(operators, &logOperator{
			NodeOperatorID: share.nodeOperatorID,
			Validators:     result.counts[share.nodeOperatorID],
			Shares:         share.shares.String(),
		})
	}

	encoded, err := json.Marshal(&distributionLog{
		RefSlot:     uint64(refSlot),
		Threshold:   result.threshold.String(),
		Distributed: result.distributed.String(),
		Operators:   operators,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode distribution log")
	}

	return encoded, nil
}

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
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func share(id uint64, amount int64) *operatorShare {
	return &operatorShare{
		nodeOperatorID: id,
		shares:         big.NewInt(amount),
	}
}

func TestBuildShareTreeEmpty(t *testing.T) {
	tree := buildShareTree(nil)

	require.Equal(t, common.Hash{}, tree.root)
	require.Empty(t, tree.nodes)
}

func TestBuildShareTreeSingle(t *testing.T) {
	only := share(7, 1000)
	tree := buildShareTree([]*operatorShare{only})

	require.Equal(t, leafHash(only), tree.root)
	require.Len(t, tree.nodes, 1)
	require.Equal(t, []int{0}, tree.treeIndices)
}

func TestBuildShareTreePair(t *testing.T) {
	a := share(1, 100)
	b := share(2, 200)
	tree := buildShareTree([]*operatorShare{a, b})

	require.Len(t, tree.nodes, 3)
	require.Equal(t, hashPair(leafHash(a), leafHash(b)), tree.root)
	require.Equal(t, leafHash(a), tree.nodes[tree.treeIndices[0]])
	require.Equal(t, leafHash(b), tree.nodes[tree.treeIndices[1]])
}

func TestBuildShareTreeOrderIndependent(t *testing.T) {
	a := share(1, 100)
	b := share(2, 200)
	c := share(3, 300)

	first := buildShareTree([]*operatorShare{a, b, c})
	second := buildShareTree([]*operatorShare{c, a, b})
	third := buildShareTree([]*operatorShare{b, c, a})

	require.Equal(t, first.root, second.root)
	require.Equal(t, first.root, third.root)
	require.Equal(t, first.nodes, second.nodes)
}

func TestHashPairCommutative(t *testing.T) {
	a := common.Hash{0x01}
	b := common.Hash{0x02}

	require.Equal(t, hashPair(a, b), hashPair(b, a))
	require.NotEqual(t, hashPair(a, b), hashPair(a, a))
}

func TestLeafHashDistinct(t *testing.T) {
	require.NotEqual(t, leafHash(share(1, 100)), leafHash(share(2, 100)))
	require.NotEqual(t, leafHash(share(1, 100)), leafHash(share(1, 101)))
	require.Equal(t, leafHash(share(1, 100)), leafHash(share(1, 100)))
}

func TestShareTreeEncode(t *testing.T) {
	shares := []*operatorShare{share(1, 100), share(2, 200)}
	tree := buildShareTree(shares)

	encoded, err := tree.encode()
	require.NoError(t, err)

	dump := treeDump{}
	require.NoError(t, json.Unmarshal(encoded, &dump))
	require.Equal(t, "standard-v1", dump.Format)
	require.Equal(t, []string{"uint256", "uint256"}, dump.LeafEncoding)
	require.Len(t, dump.Tree, 3)
	require.Equal(t, tree.root.Hex(), dump.Tree[0])
	require.Len(t, dump.Values, 2)
	require.Equal(t, [2]string{"1", "100"}, dump.Values[0].Value)
	require.Equal(t, tree.treeIndices[0], dump.Values[0].TreeIndex)
	require.Equal(t, [2]string{"2", "200"}, dump.Values[1].Value)
	require.Equal(t, tree.treeIndices[1], dump.Values[1].TreeIndex)
}

func TestEncodeLog(t *testing.T) {
	result := &distributionResult{
		threshold:   decimal.RequireFromString("0.85"),
		counts:      map[uint64]uint64{1: 2},
		total:       2,
		shares:      []*operatorShare{share(1, 500)},
		distributed: big.NewInt(500),
	}

	encoded, err := encodeLog(6399, result)
	require.NoError(t, err)

	record := distributionLog{}
	require.NoError(t, json.Unmarshal(encoded, &record))
	require.Equal(t, uint64(6399), record.RefSlot)
	require.Equal(t, "0.85", record.Threshold)
	require.Equal(t, "500", record.Distributed)
	require.Len(t, record.Operators, 1)
	require.Equal(t, uint64(1), record.Operators[0].NodeOperatorID)
	require.Equal(t, uint64(2), record.Operators[0].Validators)
	require.Equal(t, "500", record.Operators[0].Shares)
}

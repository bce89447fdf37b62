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

package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type operatorKeyJSON struct {
	Index            uint64 `json:"index"`
	Key              string `json:"key"`
	DepositSignature string `json:"depositSignature"`
	OperatorIndex    uint64 `json:"operatorIndex"`
	ModuleAddress    string `json:"moduleAddress"`
	Used             bool   `json:"used"`
}

type keysDataJSON struct {
	Keys   []*operatorKeyJSON `json:"keys"`
	Module *moduleJSON        `json:"module"`
}

type keysResponseJSON struct {
	Data keysDataJSON `json:"data"`
	Meta metaJSON     `json:"meta"`
}

// OperatorKeys returns the signing keys of all operators in the given staking module.
func (s *Service) OperatorKeys(ctx context.Context, stamp *blockstamp.BlockStamp, moduleID uint64) ([]*keysapi.OperatorKey, error) {
	started := time.Now()

	keys, err := s.operatorKeys(ctx, stamp, moduleID)
	if err != nil {
		requestCompleted(started, "keys", "failed")
		return nil, err
	}

	requestCompleted(started, "keys", "succeeded")
	return keys, nil
}

func (s *Service) operatorKeys(ctx context.Context, stamp *blockstamp.BlockStamp, moduleID uint64) ([]*keysapi.OperatorKey, error) {
	keys := make([]*keysapi.OperatorKey, 0)

	var snapshotBlock uint64
	offset := uint64(0)
	for {
		query := url.Values{}
		query.Set("limit", strconv.FormatUint(s.pageSize, 10))
		query.Set("offset", strconv.FormatUint(offset, 10))
		data, err := s.getWithRetries(ctx, fmt.Sprintf("v1/modules/%d/keys", moduleID), query)
		if err != nil {
			return nil, errors.Wrap(err, "failed to obtain operator keys")
		}

		var response keysResponseJSON
		if err := json.Unmarshal(data, &response); err != nil {
			return nil, errors.Wrap(err, "failed to parse operator keys response")
		}
		if err := verifySnapshot(&response.Meta, stamp); err != nil {
			return nil, err
		}
		if offset == 0 {
			snapshotBlock = response.Meta.ELBlockSnapshot.BlockNumber
		} else if response.Meta.ELBlockSnapshot.BlockNumber != snapshotBlock {
			// A snapshot change invalidates the pages fetched so far.
			return nil, errors.New("keys API snapshot changed during pagination")
		}
		if response.Data.Module != nil && response.Data.Module.ID != moduleID {
			return nil, fmt.Errorf("keys API returned module %d when module %d was requested", response.Data.Module.ID, moduleID)
		}

		for _, keyData := range response.Data.Keys {
			key, err := parseOperatorKey(keyData)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}

		// A short page is the last page.
		if uint64(len(response.Data.Keys)) < s.pageSize {
			break
		}
		offset += uint64(len(response.Data.Keys))
	}

	log.Trace().Uint64("module_id", moduleID).Int("keys", len(keys)).Msg("Fetched operator keys")
	return keys, nil
}

func parseOperatorKey(data *operatorKeyJSON) (*keysapi.OperatorKey, error) {
	key := &keysapi.OperatorKey{
		Index:         data.Index,
		OperatorIndex: data.OperatorIndex,
		ModuleAddress: common.HexToAddress(data.ModuleAddress),
		Used:          data.Used,
	}

	pubKey, err := hex.DecodeString(strings.TrimPrefix(data.Key, "0x"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid public key for operator %d key %d", data.OperatorIndex, data.Index)
	}
	if len(pubKey) != len(key.Key) {
		return nil, fmt.Errorf("public key for operator %d key %d has %d bytes", data.OperatorIndex, data.Index, len(pubKey))
	}
	copy(key.Key[:], pubKey)

	if data.DepositSignature != "" {
		signature, err := hex.DecodeString(strings.TrimPrefix(data.DepositSignature, "0x"))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid deposit signature for operator %d key %d", data.OperatorIndex, data.Index)
		}
		if len(signature) != len(key.DepositSignature) {
			return nil, fmt.Errorf("deposit signature for operator %d key %d has %d bytes", data.OperatorIndex, data.Index, len(signature))
		}
		copy(key.DepositSignature[:], signature)
	}

	return key, nil
}

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
	"encoding/json"
	"fmt"
	"time"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type operatorJSON struct {
	Index            uint64 `json:"index"`
	Active           bool   `json:"active"`
	Name             string `json:"name"`
	RewardAddress    string `json:"rewardAddress"`
	ModuleAddress    string `json:"moduleAddress"`
	TotalSigningKeys uint64 `json:"totalSigningKeys"`
	UsedSigningKeys  uint64 `json:"usedSigningKeys"`
	ExitedValidators uint64 `json:"totalExitedValidators"`
	StuckValidators  uint64 `json:"stuckValidatorsCount"`
}

type operatorsDataJSON struct {
	Operators []*operatorJSON `json:"operators"`
	Module    *moduleJSON     `json:"module"`
}

type operatorsResponseJSON struct {
	Data operatorsDataJSON `json:"data"`
	Meta metaJSON          `json:"meta"`
}

// Operators returns the operator summaries for the given staking module.
func (s *Service) Operators(ctx context.Context, stamp *blockstamp.BlockStamp, moduleID uint64) ([]*keysapi.Operator, error) {
	started := time.Now()

	operators, err := s.operators(ctx, stamp, moduleID)
	if err != nil {
		requestCompleted(started, "operators", "failed")
		return nil, err
	}

	requestCompleted(started, "operators", "succeeded")
	return operators, nil
}

func (s *Service) operators(ctx context.Context, stamp *blockstamp.BlockStamp, moduleID uint64) ([]*keysapi.Operator, error) {
	data, err := s.getWithRetries(ctx, fmt.Sprintf("v1/modules/%d/operators", moduleID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain operators")
	}

	var response operatorsResponseJSON
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse operators response")
	}
	if err := verifySnapshot(&response.Meta, stamp); err != nil {
		return nil, err
	}
	if response.Data.Module != nil && response.Data.Module.ID != moduleID {
		return nil, fmt.Errorf("keys API returned module %d when module %d was requested", response.Data.Module.ID, moduleID)
	}

	operators := make([]*keysapi.Operator, 0, len(response.Data.Operators))
	for _, operatorData := range response.Data.Operators {
		operators = append(operators, &keysapi.Operator{
			Index:            operatorData.Index,
			Active:           operatorData.Active,
			Name:             operatorData.Name,
			RewardAddress:    common.HexToAddress(operatorData.RewardAddress),
			ModuleAddress:    common.HexToAddress(operatorData.ModuleAddress),
			TotalSigningKeys: operatorData.TotalSigningKeys,
			UsedSigningKeys:  operatorData.UsedSigningKeys,
			ExitedValidators: operatorData.ExitedValidators,
			StuckValidators:  operatorData.StuckValidators,
		})
	}

	log.Trace().Uint64("module_id", moduleID).Int("operators", len(operators)).Msg("Fetched operators")
	return operators, nil
}

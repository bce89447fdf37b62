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
	"time"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type moduleJSON struct {
	ID                    uint64 `json:"id"`
	StakingModuleAddress  string `json:"stakingModuleAddress"`
	Name                  string `json:"name"`
	Type                  string `json:"type"`
	Nonce                 uint64 `json:"nonce"`
	Active                bool   `json:"active"`
	ExitedValidatorsCount uint64 `json:"exitedValidatorsCount"`
}

type modulesResponseJSON struct {
	Data []*moduleJSON `json:"data"`
	Meta metaJSON      `json:"meta"`
}

// Modules returns the staking modules known to the keys API.
func (s *Service) Modules(ctx context.Context, stamp *blockstamp.BlockStamp) ([]*keysapi.Module, error) {
	started := time.Now()

	modules, err := s.modules(ctx, stamp)
	if err != nil {
		requestCompleted(started, "modules", "failed")
		return nil, err
	}

	requestCompleted(started, "modules", "succeeded")
	return modules, nil
}

func (s *Service) modules(ctx context.Context, stamp *blockstamp.BlockStamp) ([]*keysapi.Module, error) {
	data, err := s.getWithRetries(ctx, "v1/modules", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain staking modules")
	}

	var response modulesResponseJSON
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse staking modules response")
	}
	if err := verifySnapshot(&response.Meta, stamp); err != nil {
		return nil, err
	}

	modules := make([]*keysapi.Module, 0, len(response.Data))
	for _, moduleData := range response.Data {
		modules = append(modules, &keysapi.Module{
			ID:                   moduleData.ID,
			StakingModuleAddress: common.HexToAddress(moduleData.StakingModuleAddress),
			Name:                 moduleData.Name,
			Type:                 moduleData.Type,
			Nonce:                moduleData.Nonce,
			Active:               moduleData.Active,
			ExitedValidators:     moduleData.ExitedValidatorsCount,
		})
	}

	log.Trace().Int("modules", len(modules)).Msg("Fetched staking modules")
	return modules, nil
}

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

	"github.com/accordlabs/accord/services/keysapi"
	"github.com/pkg/errors"
)

// The status response is not wrapped in a data/meta envelope.
type statusResponseJSON struct {
	AppVersion      string              `json:"appVersion"`
	ChainID         uint64              `json:"chainId"`
	ELBlockSnapshot elBlockSnapshotJSON `json:"elBlockSnapshot"`
}

// Status returns the current status of the keys API service.
func (s *Service) Status(ctx context.Context) (*keysapi.Status, error) {
	started := time.Now()

	status, err := s.status(ctx)
	if err != nil {
		requestCompleted(started, "status", "failed")
		return nil, err
	}

	requestCompleted(started, "status", "succeeded")
	return status, nil
}

func (s *Service) status(ctx context.Context) (*keysapi.Status, error) {
	data, err := s.getWithRetries(ctx, "v1/status", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain status")
	}

	var response statusResponseJSON
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse status response")
	}

	return &keysapi.Status{
		AppVersion:    response.AppVersion,
		ChainID:       response.ChainID,
		ELBlockNumber: response.ELBlockSnapshot.BlockNumber,
	}, nil
}

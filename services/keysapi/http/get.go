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
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/keysapi"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

type elBlockSnapshotJSON struct {
	BlockNumber uint64 `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
	Timestamp   uint64 `json:"timestamp"`
}

type metaJSON struct {
	ELBlockSnapshot elBlockSnapshotJSON `json:"elBlockSnapshot"`
}

// verifySnapshot confirms that a response snapshot is not older than the
// stamp at which the caller resolved the rest of its inputs.
func verifySnapshot(meta *metaJSON, stamp *blockstamp.BlockStamp) error {
	if stamp == nil {
		return errors.New("no stamp supplied")
	}
	if meta.ELBlockSnapshot.BlockNumber < stamp.BlockNumber {
		return errors.Wrapf(keysapi.ErrStale, "snapshot at block %d, stamp at block %d",
			meta.ELBlockSnapshot.BlockNumber,
			stamp.BlockNumber,
		)
	}

	return nil
}

// getWithRetries sends an HTTP GET request, retrying transient failures
// according to the service's retry policy, and returns the body.
func (s *Service) getWithRetries(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	// The policy counts the first attempt; WithMaxRetries counts only retries.
	schedule := backoff.WithContext(backoff.WithMaxRetries(s.retryPolicy.Schedule(), s.retryPolicy.MaxAttempts-1), ctx)

	var data []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		data, err = s.get(ctx, endpoint, query)
		if err != nil {
			log.Trace().Str("endpoint", endpoint).Int("attempt", attempt).Err(err).Msg("Keys API request failed")
		}
		return err
	}, schedule)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// get sends a single HTTP GET request and returns the body. Failures that
// are worth retrying are returned as plain errors; the rest are marked
// permanent so that getWithRetries gives up immediately.
func (s *Service) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	// #nosec G404
	log := log.With().Str("id", fmt.Sprintf("%02x", rand.Int31())).Str("endpoint", endpoint).Logger()

	callURL, err := url.Parse(fmt.Sprintf("%s/%s", strings.TrimSuffix(s.baseURL.String(), "/"), endpoint))
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "invalid endpoint"))
	}
	if len(query) > 0 {
		callURL.RawQuery = query.Encode()
	}
	log.Trace().Str("url", callURL.String()).Msg("URL for GET")

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(opCtx, http.MethodGet, callURL.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "failed to create GET request"))
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call GET endpoint")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read GET response")
	}

	statusFamily := resp.StatusCode / 100
	if statusFamily != 2 {
		log.Trace().Int("status_code", resp.StatusCode).Str("data", string(data)).Msg("GET failed")
		err := fmt.Errorf("GET failed with status %d: %s", resp.StatusCode, string(data))
		if retryable(resp.StatusCode) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	log.Trace().Str("response", string(data)).Msg("GET response")

	return data, nil
}

// retryable reports whether a request that failed with the given status
// code is worth retrying.
func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode/100 == 5
}

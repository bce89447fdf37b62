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

package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"appVersion":"1.9.2","chainId":17000,"elBlockSnapshot":{"blockNumber":1234567,"blockHash":"0x0102","timestamp":1700000000}}`))
	}))
	defer srv.Close()

	s := mustClient(t, srv.URL)
	status, err := s.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.9.2", status.AppVersion)
	require.Equal(t, uint64(17000), status.ChainID)
	require.Equal(t, uint64(1234567), status.ELBlockNumber)
}

func TestStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	s := mustClient(t, srv.URL, constantRetries(2))
	_, err := s.Status(context.Background())
	require.ErrorContains(t, err, "failed to obtain status")
}

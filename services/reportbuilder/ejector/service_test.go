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

package ejector_test

import (
	"context"
	"testing"

	contractsmock "github.com/accordlabs/accord/contracts/mock"
	"github.com/accordlabs/accord/mock"
	keysapimock "github.com/accordlabs/accord/services/keysapi/mock"
	nullmetrics "github.com/accordlabs/accord/services/metrics/null"
	"github.com/accordlabs/accord/services/reportbuilder/ejector"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	ctx := context.Background()

	monitor := nullmetrics.New(ctx)
	validatorsProvider := mock.NewValidatorsProvider(nil)
	keysAPI := keysapimock.New()
	exitRequests := contractsmock.NewLastRequestedValidatorIndicesProvider(nil)

	tests := []struct {
		name   string
		params []ejector.Parameter
		err    string
	}{
		{
			name: "MonitorMissing",
			params: []ejector.Parameter{
				ejector.WithLogLevel(zerolog.Disabled),
				ejector.WithValidatorsProvider(validatorsProvider),
				ejector.WithKeysAPI(keysAPI),
				ejector.WithExitRequests(exitRequests),
			},
			err: "problem with parameters: no monitor specified",
		},
		{
			name: "ValidatorsProviderMissing",
			params: []ejector.Parameter{
				ejector.WithLogLevel(zerolog.Disabled),
				ejector.WithMonitor(monitor),
				ejector.WithKeysAPI(keysAPI),
				ejector.WithExitRequests(exitRequests),
			},
			err: "problem with parameters: no validators provider specified",
		},
		{
			name: "KeysAPIMissing",
			params: []ejector.Parameter{
				ejector.WithLogLevel(zerolog.Disabled),
				ejector.WithMonitor(monitor),
				ejector.WithValidatorsProvider(validatorsProvider),
				ejector.WithExitRequests(exitRequests),
			},
			err: "problem with parameters: no keys API service specified",
		},
		{
			name: "ExitRequestsMissing",
			params: []ejector.Parameter{
				ejector.WithLogLevel(zerolog.Disabled),
				ejector.WithMonitor(monitor),
				ejector.WithValidatorsProvider(validatorsProvider),
				ejector.WithKeysAPI(keysAPI),
			},
			err: "problem with parameters: no exit requests provider specified",
		},
		{
			name: "MaxRequestsPerReportZero",
			params: []ejector.Parameter{
				ejector.WithLogLevel(zerolog.Disabled),
				ejector.WithMonitor(monitor),
				ejector.WithValidatorsProvider(validatorsProvider),
				ejector.WithKeysAPI(keysAPI),
				ejector.WithExitRequests(exitRequests),
				ejector.WithMaxRequestsPerReport(0),
			},
			err: "problem with parameters: no maximum requests per report specified",
		},
		{
			name: "Good",
			params: []ejector.Parameter{
				ejector.WithLogLevel(zerolog.Disabled),
				ejector.WithMonitor(monitor),
				ejector.WithValidatorsProvider(validatorsProvider),
				ejector.WithKeysAPI(keysAPI),
				ejector.WithExitRequests(exitRequests),
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := ejector.New(ctx, test.params...)
			if test.err != "" {
				require.EqualError(t, err, test.err)
			} else {
				require.NoError(t, err)
				require.Equal(t, "ejector", s.Module())
				require.Equal(t, uint64(1), s.ConsensusVersion())
			}
		})
	}
}

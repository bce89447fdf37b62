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

package accounting_test

import (
	"context"
	"testing"

	contractsmock "github.com/accordlabs/accord/contracts/mock"
	"github.com/accordlabs/accord/mock"
	blockstampmock "github.com/accordlabs/accord/services/blockstamp/mock"
	bunkermock "github.com/accordlabs/accord/services/bunker/mock"
	keysapimock "github.com/accordlabs/accord/services/keysapi/mock"
	nullmetrics "github.com/accordlabs/accord/services/metrics/null"
	"github.com/accordlabs/accord/services/reportbuilder/accounting"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	ctx := context.Background()

	monitor := nullmetrics.New(ctx)
	validatorsProvider := mock.NewValidatorsProvider(nil)
	keysAPI := keysapimock.New()
	blockStamps := blockstampmock.New()
	balances := &balanceProvider{}
	exitRequests := contractsmock.NewLastRequestedValidatorIndicesProvider(nil)
	bunkerDetector := bunkermock.New(false)

	tests := []struct {
		name   string
		params []accounting.Parameter
		err    string
	}{
		{
			name: "MonitorMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no monitor specified",
		},
		{
			name: "ValidatorsProviderMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no validators provider specified",
		},
		{
			name: "KeysAPIMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no keys API service specified",
		},
		{
			name: "BlockStampsMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no block stamp resolver specified",
		},
		{
			name: "BalanceProviderMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no balance provider specified",
		},
		{
			name: "WithdrawalVaultMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no withdrawal vault address specified",
		},
		{
			name: "ELRewardsVaultMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no execution rewards vault address specified",
		},
		{
			name: "ExitRequestsMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithBunker(bunkerDetector),
			},
			err: "problem with parameters: no exit requests provider specified",
		},
		{
			name: "BunkerMissing",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
			},
			err: "problem with parameters: no bunker mode detector specified",
		},
		{
			name: "StuckValidatorDelayZero",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
				accounting.WithStuckValidatorDelaySlots(0),
			},
			err: "problem with parameters: no stuck validator delay specified",
		},
		{
			name: "MaxItemsPerChunkZero",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
				accounting.WithMaxItemsPerChunk(0),
			},
			err: "problem with parameters: no maximum items per chunk specified",
		},
		{
			name: "ProcessConcurrencyZero",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
				accounting.WithProcessConcurrency(0),
			},
			err: "problem with parameters: no process concurrency specified",
		},
		{
			name: "Good",
			params: []accounting.Parameter{
				accounting.WithLogLevel(zerolog.Disabled),
				accounting.WithMonitor(monitor),
				accounting.WithValidatorsProvider(validatorsProvider),
				accounting.WithKeysAPI(keysAPI),
				accounting.WithBlockStamps(blockStamps),
				accounting.WithBalanceProvider(balances),
				accounting.WithWithdrawalVault(withdrawalVault),
				accounting.WithELRewardsVault(elRewardsVault),
				accounting.WithExitRequests(exitRequests),
				accounting.WithBunker(bunkerDetector),
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := accounting.New(ctx, test.params...)
			if test.err != "" {
				require.EqualError(t, err, test.err)
			} else {
				require.NoError(t, err)
				require.Equal(t, "accounting", s.Module())
				require.Equal(t, uint64(1), s.ConsensusVersion())
			}
		})
	}
}

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

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// runCommands potentially runs commands expressed as flags.  It returns true
// if accord should exit, along with the exit code.
func runCommands(ctx context.Context) (bool, int) {
	if viper.GetBool("version") {
		fmt.Fprintf(os.Stdout, "%s\n", ReleaseVersion)
		if viper.GetString("log-level") == "trace" {
			fmt.Fprintf(os.Stdout, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		}
		return true, 0
	}

	if viper.GetBool("check") {
		return true, connectivityCheck(ctx)
	}

	return false, 0
}

// connectivityCheck confirms that the configured nodes, contracts and keys
// API are reachable and consistent with each other, without submitting
// anything.  It returns 0 if all checks pass and 2 otherwise.
func connectivityCheck(ctx context.Context) int {
	// Force disable metrics; this is an interactive command.
	viper.Set("metrics.prometheus", nil)

	ok := true
	report := func(name string, err error) {
		if err != nil {
			ok = false
			fmt.Fprintf(os.Stdout, "✗ %s: %v\n", name, err)
		} else {
			fmt.Fprintf(os.Stdout, "✓ %s\n", name)
		}
	}

	_, chainTime, monitor, err := startBasicServices(ctx)
	report("consensus node", err)
	if err != nil {
		return 2
	}
	fmt.Fprintf(os.Stdout, "  genesis %s, slot duration %s, %d slots per epoch\n",
		chainTime.GenesisTime().Format("2006-01-02 15:04:05 UTC"),
		chainTime.SlotDuration(),
		chainTime.SlotsPerEpoch(),
	)

	executionClient, chainID, err := startExecutionClient(ctx)
	report("execution node", err)
	if err != nil {
		return 2
	}
	fmt.Fprintf(os.Stdout, "  chain ID %d\n", chainID)

	oracles, err := startContracts(ctx, executionClient)
	report("contracts", err)
	if err != nil {
		return 2
	}
	report("contract chain configuration", checkChainConfig(ctx, chainTime, oracles.hashConsensus))

	consensusVersion, err := oracles.oracle.ConsensusVersion(ctx, common.Hash{})
	report("consensus version", err)
	if err == nil {
		fmt.Fprintf(os.Stdout, "  consensus version %d\n", consensusVersion)
	}
	contractVersion, err := oracles.oracle.ContractVersion(ctx, common.Hash{})
	report("contract version", err)
	if err == nil {
		fmt.Fprintf(os.Stdout, "  contract version %d\n", contractVersion)
	}

	keysAPI, err := startKeysAPI(ctx, monitor)
	report("keys API client", err)
	if err == nil {
		status, err := keysAPI.Status(ctx)
		report("keys API status", err)
		if err == nil {
			fmt.Fprintf(os.Stdout, "  app %s\n", status.AppVersion)
		}
	}

	member := common.HexToAddress(viper.GetString("member-address"))
	if member != (common.Address{}) {
		memberInfo, err := oracles.hashConsensus.MemberInfo(ctx, common.Hash{}, member)
		report("member info", err)
		if err == nil && !memberInfo.IsMember {
			ok = false
			fmt.Fprintf(os.Stdout, "✗ %s is not a member of the hash consensus committee\n", member)
		}
	}

	if !ok {
		return 2
	}
	return 0
}

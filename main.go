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
	"bufio"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	zerologger "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	majordomo "github.com/wealdtech/go-majordomo"
	asmconfidant "github.com/wealdtech/go-majordomo/confidants/asm"
	directconfidant "github.com/wealdtech/go-majordomo/confidants/direct"
	fileconfidant "github.com/wealdtech/go-majordomo/confidants/file"
	gsmconfidant "github.com/wealdtech/go-majordomo/confidants/gsm"
	standardmajordomo "github.com/wealdtech/go-majordomo/standard"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	standardblockstamp "github.com/accordlabs/accord/services/blockstamp/standard"
	"github.com/accordlabs/accord/services/bunker"
	standardbunker "github.com/accordlabs/accord/services/bunker/standard"
	"github.com/accordlabs/accord/services/cache"
	pebblecache "github.com/accordlabs/accord/services/cache/pebble"
	"github.com/accordlabs/accord/services/chaintime"
	standardchaintime "github.com/accordlabs/accord/services/chaintime/standard"
	standardconsensustracker "github.com/accordlabs/accord/services/consensustracker/standard"
	"github.com/accordlabs/accord/services/controller"
	standardcontroller "github.com/accordlabs/accord/services/controller/standard"
	standardframecalculator "github.com/accordlabs/accord/services/framecalculator/standard"
	"github.com/accordlabs/accord/services/keysapi"
	httpkeysapi "github.com/accordlabs/accord/services/keysapi/http"
	"github.com/accordlabs/accord/services/metrics"
	nullmetrics "github.com/accordlabs/accord/services/metrics/null"
	prometheusmetrics "github.com/accordlabs/accord/services/metrics/prometheus"
	"github.com/accordlabs/accord/services/reportbuilder"
	accountingreportbuilder "github.com/accordlabs/accord/services/reportbuilder/accounting"
	csmreportbuilder "github.com/accordlabs/accord/services/reportbuilder/csm"
	ejectorreportbuilder "github.com/accordlabs/accord/services/reportbuilder/ejector"
	"github.com/accordlabs/accord/services/scheduler"
	advancedscheduler "github.com/accordlabs/accord/services/scheduler/advanced"
	basicscheduler "github.com/accordlabs/accord/services/scheduler/basic"
	"github.com/accordlabs/accord/services/submitter"
	nullsubmitter "github.com/accordlabs/accord/services/submitter/null"
	onchainsubmitter "github.com/accordlabs/accord/services/submitter/onchain"
	"github.com/accordlabs/accord/util"
)

// ReleaseVersion is the release version of the oracle.
var ReleaseVersion = "0.4.1"

func main() {
	os.Exit(main2())
}

func main2() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fetchConfig(); err != nil {
		zerologger.Error().Err(err).Msg("Failed to fetch configuration")
		return 1
	}

	if err := initLogging(); err != nil {
		zerologger.Error().Err(err).Msg("Failed to initialise logging")
		return 1
	}

	majordomoSvc, err := initMajordomo(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialise majordomo")
		return 1
	}

	// runCommands carries out commands expressed as flags; it returns if
	// accord should exit.
	if exit, exitCode := runCommands(ctx); exit {
		return exitCode
	}

	logModules()
	log.Info().Str("version", ReleaseVersion).Str("module", viper.GetString("module")).Msg("Starting accord")

	initProfiling()

	if err := initTracing(ctx, majordomoSvc); err != nil {
		log.Error().Err(err).Msg("Failed to initialise tracing")
		return 1
	}

	ctrl, err := startServices(ctx, majordomoSvc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start services")
		return 1
	}

	if viper.GetBool("one-shot") {
		return runOneShot(ctx, ctrl)
	}

	log.Info().Msg("All services operational")

	// Wait for signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-sigCh
		if sig == syscall.SIGINT || sig == syscall.SIGTERM {
			break
		}
	}

	log.Info().Msg("Stopping accord")
	cancel()
	// Give services a chance to stop cleanly before exiting.
	time.Sleep(2 * time.Second)

	return 0
}

// runOneShot runs a single oracle cycle and maps its outcome to an exit code.
func runOneShot(ctx context.Context, ctrl controller.Service) int {
	err := ctrl.RunCycle(ctx)
	switch {
	case err == nil:
		log.Info().Msg("Cycle completed")
		return 0
	case errors.Is(err, reportbuilder.ErrNotReady):
		log.Info().Err(err).Msg("Report not ready")
		return 0
	default:
		log.Error().Err(err).Msg("Cycle failed")
		return 1
	}
}

// fetchConfig fetches configuration from various sources.
func fetchConfig() error {
	pflag.String("base-dir", "", "base directory for configuration files")
	pflag.String("log-level", "info", "minimum level of messages to log")
	pflag.String("log-file", "", "redirect log output to a file")
	pflag.String("profile-address", "", "address on which to run profile server")
	pflag.String("beacon-node-address", "", "address of the beacon node")
	pflag.String("execution-node-address", "", "address of the execution node")
	pflag.String("keys-api-address", "", "address of the protocol keys API")
	pflag.String("module", "accounting", "oracle module to run (accounting, ejector or csm)")
	pflag.Int64("process-concurrency", int64(runtime.GOMAXPROCS(-1)), "maximum number of concurrent processes")
	pflag.String("member-address", "", "address of this oracle committee member")
	pflag.Bool("one-shot", false, "run a single oracle cycle and exit")
	pflag.Bool("check", false, "run connectivity checks and exit")
	pflag.Bool("allow-bunker-reporting", false, "submit report data even when bunker mode is active")
	pflag.Bool("manual-confirm", false, "require confirmation before sending each transaction")
	pflag.Bool("dry-run", false, "log transactions instead of sending them")
	pflag.Bool("version", false, "show version and exit")
	pflag.Parse()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return errors.Wrap(err, "failed to bind pflags to viper")
	}

	if viper.GetString("base-dir") != "" {
		// Use the base directory to find the configuration file.
		viper.AddConfigPath(resolvePath(""))
		viper.SetConfigName("accord")
	} else {
		// Find the home directory.
		home, err := homedir.Dir()
		if err != nil {
			return errors.Wrap(err, "failed to obtain home directory")
		}
		// Search for the configuration file "accord" in the home directory.
		viper.AddConfigPath(home)
		viper.SetConfigName(".accord")
	}

	viper.SetEnvPrefix("ACCORD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		switch {
		case errors.As(err, &viper.ConfigFileNotFoundError{}):
			// A missing configuration file is allowed; everything can be
			// supplied through the environment or flags.
		default:
			return errors.Wrap(err, "failed to read configuration file")
		}
	}

	return nil
}

// initProfiling initialises the profiling server.
func initProfiling() {
	profileAddress := viper.GetString("profile-address")
	if profileAddress != "" {
		go func() {
			log.Info().Str("profile_address", profileAddress).Msg("Starting profile server")
			runtime.SetMutexProfileFraction(1)
			server := &http.Server{
				Addr:              profileAddress,
				ReadHeaderTimeout: 5 * time.Second,
			}
			if err := server.ListenAndServe(); err != nil {
				log.Warn().Str("profile_address", profileAddress).Err(err).Msg("Failed to run profile server")
			}
		}()
	}
}

// initMajordomo initialises the majordomo service, used to fetch secrets such
// as the member private key and TLS client credentials.
func initMajordomo(ctx context.Context) (majordomo.Service, error) {
	majordomoSvc, err := standardmajordomo.New(ctx,
		standardmajordomo.WithLogLevel(util.LogLevel("majordomo")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create majordomo service")
	}

	directConfidant, err := directconfidant.New(ctx,
		directconfidant.WithLogLevel(util.LogLevel("majordomo.confidants.direct")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create direct confidant")
	}
	if err := majordomoSvc.RegisterConfidant(ctx, directConfidant); err != nil {
		return nil, errors.Wrap(err, "failed to register direct confidant")
	}

	fileConfidant, err := fileconfidant.New(ctx,
		fileconfidant.WithLogLevel(util.LogLevel("majordomo.confidants.file")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file confidant")
	}
	if err := majordomoSvc.RegisterConfidant(ctx, fileConfidant); err != nil {
		return nil, errors.Wrap(err, "failed to register file confidant")
	}

	if viper.GetString("majordomo.asm.region") != "" {
		var asmCredentials *credentials.Credentials
		if viper.GetString("majordomo.asm.id") != "" {
			asmCredentials = credentials.NewStaticCredentials(viper.GetString("majordomo.asm.id"), viper.GetString("majordomo.asm.secret"), "")
		}
		asmConfidant, err := asmconfidant.New(ctx,
			asmconfidant.WithLogLevel(util.LogLevel("majordomo.confidants.asm")),
			asmconfidant.WithCredentials(asmCredentials),
			asmconfidant.WithRegion(viper.GetString("majordomo.asm.region")),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create AWS secrets manager confidant")
		}
		if err := majordomoSvc.RegisterConfidant(ctx, asmConfidant); err != nil {
			return nil, errors.Wrap(err, "failed to register AWS secrets manager confidant")
		}
	}

	if viper.GetString("majordomo.gsm.credentials") != "" {
		gsmConfidant, err := gsmconfidant.New(ctx,
			gsmconfidant.WithLogLevel(util.LogLevel("majordomo.confidants.gsm")),
			gsmconfidant.WithCredentialsPath(resolvePath(viper.GetString("majordomo.gsm.credentials"))),
			gsmconfidant.WithProject(viper.GetString("majordomo.gsm.project")),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Google secrets manager confidant")
		}
		if err := majordomoSvc.RegisterConfidant(ctx, gsmConfidant); err != nil {
			return nil, errors.Wrap(err, "failed to register Google secrets manager confidant")
		}
	}

	return majordomoSvc, nil
}

// oracleContracts holds the contract bindings for the configured module.
type oracleContracts struct {
	hashConsensus *contracts.HashConsensus
	// oracle is the report processor contract for the configured module.
	oracle oracleContract
	// accountingOracle is set for the accounting module; the exit bus oracle
	// is additionally set for the accounting module to supply exit request
	// watermarks.
	accountingOracle *contracts.AccountingOracle
	exitBusOracle    *contracts.ExitBusOracle
	feeOracle        *contracts.FeeOracle
}

// oracleContract is the surface every report processor contract provides.
type oracleContract interface {
	contracts.ProcessingStateProvider
	contracts.LastProcessingRefSlotProvider
	contracts.ConsensusVersionProvider
	contracts.ContractVersionProvider
	ConsensusContract(ctx context.Context, blockHash common.Hash) (common.Address, error)
}

// startContracts binds the on-chain contracts for the configured module.  The
// hash consensus contract address is read from the report contract itself
// unless explicitly configured.
func startContracts(ctx context.Context, executionClient *ethclient.Client) (*oracleContracts, error) {
	res := &oracleContracts{}

	switch viper.GetString("module") {
	case "accounting":
		address, err := contractAddress("contracts.accounting-oracle-address")
		if err != nil {
			return nil, err
		}
		res.accountingOracle = contracts.NewAccountingOracle(address, executionClient)
		res.oracle = res.accountingOracle
		// The exit bus supplies the accounting module's exit request watermarks.
		exitBusAddress, err := contractAddress("contracts.exit-bus-oracle-address")
		if err != nil {
			return nil, err
		}
		res.exitBusOracle = contracts.NewExitBusOracle(exitBusAddress, executionClient)
	case "ejector":
		address, err := contractAddress("contracts.exit-bus-oracle-address")
		if err != nil {
			return nil, err
		}
		res.exitBusOracle = contracts.NewExitBusOracle(address, executionClient)
		res.oracle = res.exitBusOracle
	case "csm":
		address, err := contractAddress("contracts.fee-oracle-address")
		if err != nil {
			return nil, err
		}
		res.feeOracle = contracts.NewFeeOracle(address, executionClient)
		res.oracle = res.feeOracle
	default:
		return nil, fmt.Errorf("unknown module %q", viper.GetString("module"))
	}

	hashConsensusAddress := common.HexToAddress(viper.GetString("contracts.hash-consensus-address"))
	if hashConsensusAddress == (common.Address{}) {
		var err error
		hashConsensusAddress, err = res.oracle.ConsensusContract(ctx, common.Hash{})
		if err != nil {
			return nil, errors.Wrap(err, "failed to obtain hash consensus contract address")
		}
	}
	res.hashConsensus = contracts.NewHashConsensus(hashConsensusAddress, executionClient)
	log.Trace().
		Stringer("hash_consensus", hashConsensusAddress).
		Str("module", viper.GetString("module")).
		Msg("Bound contracts")

	return res, nil
}

// contractAddress fetches a required contract address from configuration.
func contractAddress(key string) (common.Address, error) {
	if viper.GetString(key) == "" {
		return common.Address{}, fmt.Errorf("no %s supplied", key)
	}
	if !common.IsHexAddress(viper.GetString(key)) {
		return common.Address{}, fmt.Errorf("invalid %s %q", key, viper.GetString(key))
	}

	return common.HexToAddress(viper.GetString(key)), nil
}

// startMonitor starts the metrics monitor.
func startMonitor(ctx context.Context) (metrics.Service, error) {
	var monitor metrics.Service
	if viper.Get("metrics.prometheus") != nil {
		var err error
		monitor, err = prometheusmetrics.New(ctx,
			prometheusmetrics.WithLogLevel(util.LogLevel("metrics.prometheus")),
			prometheusmetrics.WithAddress(viper.GetString("metrics.prometheus.listen-address")),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to start prometheus metrics service")
		}
		log.Info().Str("listen_address", viper.GetString("metrics.prometheus.listen-address")).Msg("Started prometheus metrics service")
	} else {
		log.Debug().Msg("No metrics service supplied; monitor not starting")
		monitor = nullmetrics.New(ctx)
	}

	return monitor, nil
}

// startBasicServices starts the monitor, the consensus client and the chain
// time service that almost everything else depends on.
func startBasicServices(ctx context.Context) (eth2client.Service, chaintime.Service, metrics.Service, error) {
	monitor, err := startMonitor(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	consensusClient, err := fetchMultiClient(ctx, util.BeaconNodeAddresses(""))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to fetch consensus client")
	}

	genesisProvider, isProvider := consensusClient.(eth2client.GenesisProvider)
	if !isProvider {
		return nil, nil, nil, errors.New("consensus client does not provide genesis")
	}
	specProvider, isProvider := consensusClient.(eth2client.SpecProvider)
	if !isProvider {
		return nil, nil, nil, errors.New("consensus client does not provide spec")
	}
	chainTime, err := standardchaintime.New(ctx,
		standardchaintime.WithLogLevel(util.LogLevel("chaintime")),
		standardchaintime.WithGenesisProvider(genesisProvider),
		standardchaintime.WithSpecProvider(specProvider),
	)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to start chain time service")
	}

	return consensusClient, chainTime, monitor, nil
}

// startExecutionClient dials the execution node and confirms its chain ID
// against configuration.
func startExecutionClient(ctx context.Context) (*ethclient.Client, *big.Int, error) {
	executionClient, err := fetchExecutionClient(ctx, util.ExecutionNodeAddress(""))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch execution client")
	}

	chainID, err := executionClient.ChainID(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to obtain execution chain ID")
	}
	if viper.GetUint64("execution-chain-id") != 0 &&
		chainID.Uint64() != viper.GetUint64("execution-chain-id") {
		return nil, nil, fmt.Errorf("execution node reports chain ID %d; configuration expects %d",
			chainID.Uint64(),
			viper.GetUint64("execution-chain-id"),
		)
	}

	return executionClient, chainID, nil
}

// startScheduler starts the job scheduler.
func startScheduler(ctx context.Context, monitor metrics.Service) (scheduler.Service, error) {
	schedulerMonitor, isMonitor := monitor.(metrics.SchedulerMonitor)
	if !isMonitor {
		return nil, errors.New("monitor does not monitor the scheduler")
	}

	if viper.GetString("scheduler.style") == "basic" {
		log.Info().Msg("Using basic scheduler")
		return basicscheduler.New(ctx,
			basicscheduler.WithLogLevel(util.LogLevel("scheduler")),
			basicscheduler.WithMonitor(schedulerMonitor),
		)
	}

	return advancedscheduler.New(ctx,
		advancedscheduler.WithLogLevel(util.LogLevel("scheduler")),
		advancedscheduler.WithMonitor(schedulerMonitor),
	)
}

// startKeysAPI starts the protocol keys API client.
func startKeysAPI(ctx context.Context, monitor metrics.Service) (keysapi.Service, error) {
	return httpkeysapi.New(ctx,
		httpkeysapi.WithLogLevel(util.LogLevel("keysapi")),
		httpkeysapi.WithMonitor(monitor),
		httpkeysapi.WithTimeout(util.Timeout("keysapi")),
		httpkeysapi.WithBaseURL(util.KeysAPIAddress("")),
	)
}

// startBlockStamps starts the block stamp resolver.
func startBlockStamps(ctx context.Context,
	chainTime chaintime.Service,
	consensusClient eth2client.Service,
) (blockstamp.Service, error) {
	headersProvider, isProvider := consensusClient.(eth2client.BeaconBlockHeadersProvider)
	if !isProvider {
		return nil, errors.New("consensus client does not provide beacon block headers")
	}
	blocksProvider, isProvider := consensusClient.(eth2client.SignedBeaconBlockProvider)
	if !isProvider {
		return nil, errors.New("consensus client does not provide signed beacon blocks")
	}

	return standardblockstamp.New(ctx,
		standardblockstamp.WithLogLevel(util.LogLevel("blockstamp")),
		standardblockstamp.WithChainTime(chainTime),
		standardblockstamp.WithBeaconBlockHeadersProvider(headersProvider),
		standardblockstamp.WithSignedBeaconBlockProvider(blocksProvider),
	)
}

// startBunker starts the bunker mode detector used by the accounting module.
func startBunker(ctx context.Context,
	monitor metrics.Service,
	chainTime chaintime.Service,
	consensusClient eth2client.Service,
	executionClient *ethclient.Client,
	keysAPI keysapi.Service,
	blockStamps blockstamp.Service,
	oracles *oracleContracts,
) (bunker.Service, error) {
	validatorsProvider, isProvider := consensusClient.(eth2client.ValidatorsProvider)
	if !isProvider {
		return nil, errors.New("consensus client does not provide validators")
	}
	poolAddress, err := contractAddress("contracts.pool-address")
	if err != nil {
		return nil, err
	}
	withdrawalVault, err := contractAddress("contracts.withdrawal-vault-address")
	if err != nil {
		return nil, err
	}

	return standardbunker.New(ctx,
		standardbunker.WithLogLevel(util.LogLevel("bunker")),
		standardbunker.WithMonitor(monitor),
		standardbunker.WithChainTime(chainTime),
		standardbunker.WithValidatorsProvider(validatorsProvider),
		standardbunker.WithKeysAPI(keysAPI),
		standardbunker.WithBlockStamps(blockStamps),
		standardbunker.WithLastProcessingSlot(oracles.oracle),
		standardbunker.WithBalanceProvider(executionClient),
		standardbunker.WithVaultWithdrawals(contracts.NewPool(poolAddress, executionClient)),
		standardbunker.WithWithdrawalVault(withdrawalVault),
	)
}

// startReportBuilder starts the report builder for the configured module.
func startReportBuilder(ctx context.Context,
	monitor metrics.Service,
	chainTime chaintime.Service,
	consensusClient eth2client.Service,
	executionClient *ethclient.Client,
	keysAPI keysapi.Service,
	blockStamps blockstamp.Service,
	oracles *oracleContracts,
) (reportbuilder.Service, error) {
	validatorsProvider, isProvider := consensusClient.(eth2client.ValidatorsProvider)
	if !isProvider {
		return nil, errors.New("consensus client does not provide validators")
	}

	switch viper.GetString("module") {
	case "accounting":
		bunkerSvc, err := startBunker(ctx, monitor, chainTime, consensusClient, executionClient, keysAPI, blockStamps, oracles)
		if err != nil {
			return nil, errors.Wrap(err, "failed to start bunker mode detector")
		}
		withdrawalVault, err := contractAddress("contracts.withdrawal-vault-address")
		if err != nil {
			return nil, err
		}
		elRewardsVault, err := contractAddress("contracts.el-rewards-vault-address")
		if err != nil {
			return nil, err
		}
		return accountingreportbuilder.New(ctx,
			accountingreportbuilder.WithLogLevel(util.LogLevel("reportbuilder.accounting")),
			accountingreportbuilder.WithMonitor(monitor),
			accountingreportbuilder.WithValidatorsProvider(validatorsProvider),
			accountingreportbuilder.WithKeysAPI(keysAPI),
			accountingreportbuilder.WithBlockStamps(blockStamps),
			accountingreportbuilder.WithBalanceProvider(executionClient),
			accountingreportbuilder.WithWithdrawalVault(withdrawalVault),
			accountingreportbuilder.WithELRewardsVault(elRewardsVault),
			accountingreportbuilder.WithExitRequests(oracles.exitBusOracle),
			accountingreportbuilder.WithBunker(bunkerSvc),
			accountingreportbuilder.WithProcessConcurrency(util.ProcessConcurrency("reportbuilder.accounting")),
		)
	case "ejector":
		return ejectorreportbuilder.New(ctx,
			ejectorreportbuilder.WithLogLevel(util.LogLevel("reportbuilder.ejector")),
			ejectorreportbuilder.WithMonitor(monitor),
			ejectorreportbuilder.WithValidatorsProvider(validatorsProvider),
			ejectorreportbuilder.WithKeysAPI(keysAPI),
			ejectorreportbuilder.WithExitRequests(oracles.exitBusOracle),
		)
	case "csm":
		committeesProvider, isProvider := consensusClient.(eth2client.BeaconCommitteesProvider)
		if !isProvider {
			return nil, errors.New("consensus client does not provide beacon committees")
		}
		blocksProvider, isProvider := consensusClient.(eth2client.SignedBeaconBlockProvider)
		if !isProvider {
			return nil, errors.New("consensus client does not provide signed beacon blocks")
		}
		feeDistributorAddress, err := contractAddress("contracts.fee-distributor-address")
		if err != nil {
			return nil, err
		}
		cacheSvc, err := startCache(ctx, monitor)
		if err != nil {
			return nil, errors.Wrap(err, "failed to start cache")
		}
		return csmreportbuilder.New(ctx,
			csmreportbuilder.WithLogLevel(util.LogLevel("reportbuilder.csm")),
			csmreportbuilder.WithMonitor(monitor),
			csmreportbuilder.WithChainTime(chainTime),
			csmreportbuilder.WithValidatorsProvider(validatorsProvider),
			csmreportbuilder.WithBeaconCommitteesProvider(committeesProvider),
			csmreportbuilder.WithSignedBeaconBlockProvider(blocksProvider),
			csmreportbuilder.WithKeysAPI(keysAPI),
			csmreportbuilder.WithBlockStamps(blockStamps),
			csmreportbuilder.WithCache(cacheSvc),
			csmreportbuilder.WithModuleID(viper.GetUint64("csm.module-id")),
			csmreportbuilder.WithPerfLeeway(oracles.feeOracle),
			csmreportbuilder.WithPendingShares(contracts.NewFeeDistributor(feeDistributorAddress, executionClient)),
			csmreportbuilder.WithProcessConcurrency(util.ProcessConcurrency("reportbuilder.csm")),
		)
	default:
		return nil, fmt.Errorf("unknown module %q", viper.GetString("module"))
	}
}

// startCache starts the persistent key/value cache.
func startCache(ctx context.Context, monitor metrics.Service) (cache.Service, error) {
	path := viper.GetString("cache.path")
	if path == "" {
		path = "cache"
	}

	return pebblecache.New(ctx,
		pebblecache.WithLogLevel(util.LogLevel("cache")),
		pebblecache.WithMonitor(monitor),
		pebblecache.WithPath(resolvePath(path)),
	)
}

// startSubmitters starts the transaction submitter, returning the member
// address the submissions will come from.  Without a member private key the
// null submitter is used and the oracle observes without submitting; with
// dry-run set the key still determines the member address but transactions
// are logged instead of sent.
func startSubmitters(ctx context.Context,
	majordomoSvc majordomo.Service,
	monitor metrics.Service,
	chainID *big.Int,
	oracles *oracleContracts,
) (submitter.Service, common.Address, error) {
	member := common.HexToAddress(viper.GetString("member-address"))

	keyURL := viper.GetString("member-private-key")
	if keyURL == "" {
		log.Info().Msg("No member private key supplied; not submitting")
		svc, err := nullsubmitter.New(ctx,
			nullsubmitter.WithLogLevel(util.LogLevel("submitter")),
		)
		return svc, member, err
	}

	keyData, err := majordomoSvc.Fetch(ctx, keyURL)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "failed to fetch member private key")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(keyData)), "0x"))
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "invalid member private key")
	}
	keyAddress := crypto.PubkeyToAddress(privateKey.PublicKey)
	if member == (common.Address{}) {
		member = keyAddress
	} else if member != keyAddress {
		return nil, common.Address{}, fmt.Errorf("member address %s does not match private key address %s", member, keyAddress)
	}

	if viper.GetBool("dry-run") {
		log.Info().Stringer("member", member).Msg("Dry run; not submitting")
		svc, err := nullsubmitter.New(ctx,
			nullsubmitter.WithLogLevel(util.LogLevel("submitter")),
		)
		return svc, member, err
	}

	clientMonitor, isMonitor := monitor.(metrics.ClientMonitor)
	if !isMonitor {
		return nil, common.Address{}, errors.New("monitor does not monitor clients")
	}
	svc, err := onchainsubmitter.New(ctx,
		onchainsubmitter.WithLogLevel(util.LogLevel("submitter")),
		onchainsubmitter.WithClientMonitor(clientMonitor),
		onchainsubmitter.WithHashConsensus(oracles.hashConsensus),
		onchainsubmitter.WithAccountingOracle(oracles.accountingOracle),
		onchainsubmitter.WithExitBusOracle(oracles.exitBusOracle),
		onchainsubmitter.WithFeeOracle(oracles.feeOracle),
		onchainsubmitter.WithPrivateKey(privateKey),
		onchainsubmitter.WithChainID(chainID),
	)

	return svc, member, err
}

// startServices starts the services for the configured module, in dependency
// order, and returns the cycle orchestrator.
func startServices(ctx context.Context, majordomoSvc majordomo.Service) (controller.Service, error) {
	consensusClient, chainTime, monitor, err := startBasicServices(ctx)
	if err != nil {
		return nil, err
	}

	executionClient, chainID, err := startExecutionClient(ctx)
	if err != nil {
		return nil, err
	}

	oracles, err := startContracts(ctx, executionClient)
	if err != nil {
		return nil, err
	}
	if err := checkChainConfig(ctx, chainTime, oracles.hashConsensus); err != nil {
		return nil, err
	}

	log.Trace().Msg("Starting scheduler")
	schedulerSvc, err := startScheduler(ctx, monitor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start scheduler")
	}

	log.Trace().Msg("Starting block stamp resolver")
	blockStamps, err := startBlockStamps(ctx, chainTime, consensusClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start block stamp resolver")
	}

	log.Trace().Msg("Starting frame calculator")
	frameCalculator, err := standardframecalculator.New(ctx,
		standardframecalculator.WithLogLevel(util.LogLevel("framecalculator")),
		standardframecalculator.WithChainTime(chainTime),
		standardframecalculator.WithChainConfigProvider(oracles.hashConsensus),
		standardframecalculator.WithFrameConfigProvider(oracles.hashConsensus),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start frame calculator")
	}

	log.Trace().Msg("Starting keys API client")
	keysAPI, err := startKeysAPI(ctx, monitor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start keys API client")
	}

	log.Trace().Msg("Starting report builder")
	reportBuilder, err := startReportBuilder(ctx, monitor, chainTime, consensusClient, executionClient, keysAPI, blockStamps, oracles)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start report builder")
	}

	log.Trace().Msg("Starting consensus tracker")
	trackerParams := []standardconsensustracker.Parameter{
		standardconsensustracker.WithLogLevel(util.LogLevel("consensustracker")),
	}
	if viper.GetUint64("consensustracker.submit-delay-slots") != 0 {
		trackerParams = append(trackerParams,
			standardconsensustracker.WithSubmitDelaySlots(viper.GetUint64("consensustracker.submit-delay-slots")))
	}
	consensusTracker, err := standardconsensustracker.New(ctx, trackerParams...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start consensus tracker")
	}

	log.Trace().Msg("Starting submitter")
	submitterSvc, member, err := startSubmitters(ctx, majordomoSvc, monitor, chainID, oracles)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start submitter")
	}
	hashSubmitter, isSubmitter := submitterSvc.(submitter.ReportHashSubmitter)
	if !isSubmitter {
		return nil, errors.New("submitter does not submit report hashes")
	}
	reportDataSubmitter, isSubmitter := submitterSvc.(submitter.ReportDataSubmitter)
	if !isSubmitter {
		return nil, errors.New("submitter does not submit report data")
	}
	extraDataSubmitter, isSubmitter := submitterSvc.(submitter.ExtraDataSubmitter)
	if !isSubmitter {
		return nil, errors.New("submitter does not submit extra data")
	}

	log.Trace().Msg("Starting controller")
	controllerParams := []standardcontroller.Parameter{
		standardcontroller.WithLogLevel(util.LogLevel("controller")),
		standardcontroller.WithMonitor(monitor),
		standardcontroller.WithChainTime(chainTime),
		standardcontroller.WithBlockStamps(blockStamps),
		standardcontroller.WithFrameCalculator(frameCalculator),
		standardcontroller.WithReportBuilder(reportBuilder),
		standardcontroller.WithConsensusTracker(consensusTracker),
		standardcontroller.WithScheduler(schedulerSvc),
		standardcontroller.WithExecutionHeaderProvider(executionClient),
		standardcontroller.WithCurrentFrameProvider(oracles.hashConsensus),
		standardcontroller.WithFrameConfigProvider(oracles.hashConsensus),
		standardcontroller.WithMembersProvider(oracles.hashConsensus),
		standardcontroller.WithQuorumProvider(oracles.hashConsensus),
		standardcontroller.WithConsensusStateProvider(oracles.hashConsensus),
		standardcontroller.WithMemberInfoProvider(oracles.hashConsensus),
		standardcontroller.WithMemberHashesProvider(oracles.hashConsensus),
		standardcontroller.WithProcessingStateProvider(oracles.oracle),
		standardcontroller.WithLastProcessingRefSlotProvider(oracles.oracle),
		standardcontroller.WithConsensusVersionProvider(oracles.oracle),
		standardcontroller.WithContractVersionProvider(oracles.oracle),
		standardcontroller.WithReportHashSubmitter(hashSubmitter),
		standardcontroller.WithReportDataSubmitter(reportDataSubmitter),
		standardcontroller.WithExtraDataSubmitter(extraDataSubmitter),
		standardcontroller.WithMember(member),
		standardcontroller.WithAllowBunkerReporting(viper.GetBool("allow-bunker-reporting")),
		standardcontroller.WithDaemon(!viper.GetBool("one-shot")),
	}
	if viper.GetDuration("controller.cycle-sleep") != 0 {
		controllerParams = append(controllerParams,
			standardcontroller.WithCycleSleep(viper.GetDuration("controller.cycle-sleep")))
	}
	if viper.GetDuration("controller.max-cycle-lifetime") != 0 {
		controllerParams = append(controllerParams,
			standardcontroller.WithMaxCycleLifetime(viper.GetDuration("controller.max-cycle-lifetime")))
	}
	if viper.GetBool("manual-confirm") {
		controllerParams = append(controllerParams,
			standardcontroller.WithConfirmFunc(confirmAction))
	}
	ctrl, err := standardcontroller.New(ctx, controllerParams...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start controller")
	}

	return ctrl, nil
}

// checkChainConfig confirms that the hash consensus contract's chain
// configuration matches the consensus node's genesis and spec.  A mismatch
// means the oracle is pointed at the wrong chain or the wrong contract, and
// every frame calculation would be wrong.
func checkChainConfig(ctx context.Context, chainTime chaintime.Service, provider contracts.ChainConfigProvider) error {
	config, err := provider.ChainConfig(ctx, common.Hash{})
	if err != nil {
		return errors.Wrap(err, "failed to obtain contract chain configuration")
	}
	if config.SlotsPerEpoch != chainTime.SlotsPerEpoch() {
		return fmt.Errorf("contract expects %d slots per epoch; chain has %d", config.SlotsPerEpoch, chainTime.SlotsPerEpoch())
	}
	if config.SecondsPerSlot != uint64(chainTime.SlotDuration().Seconds()) {
		return fmt.Errorf("contract expects %d seconds per slot; chain has %d", config.SecondsPerSlot, uint64(chainTime.SlotDuration().Seconds()))
	}
	if config.GenesisTime != uint64(chainTime.GenesisTime().Unix()) {
		return fmt.Errorf("contract expects genesis time %d; chain has %d", config.GenesisTime, chainTime.GenesisTime().Unix())
	}

	return nil
}

// confirmAction prompts for confirmation of a transaction on stdin.
func confirmAction(_ context.Context, action string) bool {
	fmt.Fprintf(os.Stdout, "Confirm: %s? [y/N] ", action)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// logModules logs a trace of the modules in use to help debugging.
func logModules() {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Trace().Str("path", buildInfo.Path).Msg("Main package")
		for _, dep := range buildInfo.Deps {
			path := dep.Path
			if dep.Replace != nil {
				path = dep.Replace.Path
			}
			log.Trace().Str("path", path).Str("version", dep.Version).Msg("Dependency")
		}
	}
}

// resolvePath resolves a potentially relative path to an absolute path,
// anchored at the base directory.
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	baseDir := viper.GetString("base-dir")
	if baseDir == "" {
		homeDir, err := homedir.Dir()
		if err != nil {
			log.Fatal().Err(err).Msg("Could not determine home directory")
		}
		baseDir = homeDir
	}

	return filepath.Join(baseDir, path)
}

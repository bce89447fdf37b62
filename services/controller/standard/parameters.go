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

package standard

import (
	"time"

	"github.com/accordlabs/accord/contracts"
	"github.com/accordlabs/accord/services/blockstamp"
	"github.com/accordlabs/accord/services/chaintime"
	"github.com/accordlabs/accord/services/consensustracker"
	"github.com/accordlabs/accord/services/controller"
	"github.com/accordlabs/accord/services/framecalculator"
	"github.com/accordlabs/accord/services/metrics"
	"github.com/accordlabs/accord/services/reportbuilder"
	"github.com/accordlabs/accord/services/scheduler"
	"github.com/accordlabs/accord/services/submitter"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type parameters struct {
	logLevel                      zerolog.Level
	monitor                       metrics.Service
	chainTime                     chaintime.Service
	blockStamps                   blockstamp.Service
	frameCalculator               framecalculator.Service
	reportBuilder                 reportbuilder.Service
	consensusTracker              consensustracker.Service
	scheduler                     scheduler.Service
	executionHeaderProvider       controller.ExecutionHeaderProvider
	currentFrameProvider          contracts.CurrentFrameProvider
	frameConfigProvider           contracts.FrameConfigProvider
	membersProvider               contracts.MembersProvider
	quorumProvider                contracts.QuorumProvider
	consensusStateProvider        contracts.ConsensusStateProvider
	memberInfoProvider            contracts.MemberInfoProvider
	memberHashesProvider          contracts.MemberHashesProvider
	processingStateProvider       contracts.ProcessingStateProvider
	lastProcessingRefSlotProvider contracts.LastProcessingRefSlotProvider
	consensusVersionProvider      contracts.ConsensusVersionProvider
	contractVersionProvider       contracts.ContractVersionProvider
	reportHashSubmitter           submitter.ReportHashSubmitter
	reportDataSubmitter           submitter.ReportDataSubmitter
	extraDataSubmitter            submitter.ExtraDataSubmitter
	member                        common.Address
	allowBunkerReporting          bool
	daemon                        bool
	cycleSleep                    time.Duration
	maxCycleLifetime              time.Duration
	confirm                       controller.ConfirmFunc
}

// Parameter is the interface for service parameters.
type Parameter interface {
	apply(*parameters)
}

type parameterFunc func(*parameters)

func (f parameterFunc) apply(p *parameters) {
	f(p)
}

// WithLogLevel sets the log level for the module.
func WithLogLevel(logLevel zerolog.Level) Parameter {
	return parameterFunc(func(p *parameters) {
		p.logLevel = logLevel
	})
}

// WithMonitor sets the monitor for the module.
func WithMonitor(monitor metrics.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.monitor = monitor
	})
}

// WithChainTime sets the chain time service.
func WithChainTime(service chaintime.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.chainTime = service
	})
}

// WithBlockStamps sets the block stamp resolver.
func WithBlockStamps(service blockstamp.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.blockStamps = service
	})
}

// WithFrameCalculator sets the frame calculator.
func WithFrameCalculator(service framecalculator.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.frameCalculator = service
	})
}

// WithReportBuilder sets the report builder for the oracle module.
func WithReportBuilder(service reportbuilder.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.reportBuilder = service
	})
}

// WithConsensusTracker sets the hash consensus tracker.
func WithConsensusTracker(service consensustracker.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.consensusTracker = service
	})
}

// WithScheduler sets the scheduler that drives the daemon's cycles.
func WithScheduler(service scheduler.Service) Parameter {
	return parameterFunc(func(p *parameters) {
		p.scheduler = service
	})
}

// WithExecutionHeaderProvider sets the execution block header provider.
func WithExecutionHeaderProvider(provider controller.ExecutionHeaderProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.executionHeaderProvider = provider
	})
}

// WithCurrentFrameProvider sets the contract's current frame provider.
func WithCurrentFrameProvider(provider contracts.CurrentFrameProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.currentFrameProvider = provider
	})
}

// WithFrameConfigProvider sets the frame configuration provider.
func WithFrameConfigProvider(provider contracts.FrameConfigProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.frameConfigProvider = provider
	})
}

// WithMembersProvider sets the committee members provider.
func WithMembersProvider(provider contracts.MembersProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.membersProvider = provider
	})
}

// WithQuorumProvider sets the quorum provider.
func WithQuorumProvider(provider contracts.QuorumProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.quorumProvider = provider
	})
}

// WithConsensusStateProvider sets the consensus state provider.
func WithConsensusStateProvider(provider contracts.ConsensusStateProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.consensusStateProvider = provider
	})
}

// WithMemberInfoProvider sets the member info provider.
func WithMemberInfoProvider(provider contracts.MemberInfoProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.memberInfoProvider = provider
	})
}

// WithMemberHashesProvider sets the member hashes provider.
func WithMemberHashesProvider(provider contracts.MemberHashesProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.memberHashesProvider = provider
	})
}

// WithProcessingStateProvider sets the report processing state provider.
func WithProcessingStateProvider(provider contracts.ProcessingStateProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.processingStateProvider = provider
	})
}

// WithLastProcessingRefSlotProvider sets the last processing reference slot provider.
func WithLastProcessingRefSlotProvider(provider contracts.LastProcessingRefSlotProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.lastProcessingRefSlotProvider = provider
	})
}

// WithConsensusVersionProvider sets the consensus version provider.
func WithConsensusVersionProvider(provider contracts.ConsensusVersionProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.consensusVersionProvider = provider
	})
}

// WithContractVersionProvider sets the contract version provider.
func WithContractVersionProvider(provider contracts.ContractVersionProvider) Parameter {
	return parameterFunc(func(p *parameters) {
		p.contractVersionProvider = provider
	})
}

// WithReportHashSubmitter sets the report hash submitter.
func WithReportHashSubmitter(submitter submitter.ReportHashSubmitter) Parameter {
	return parameterFunc(func(p *parameters) {
		p.reportHashSubmitter = submitter
	})
}

// WithReportDataSubmitter sets the report data submitter.
func WithReportDataSubmitter(submitter submitter.ReportDataSubmitter) Parameter {
	return parameterFunc(func(p *parameters) {
		p.reportDataSubmitter = submitter
	})
}

// WithExtraDataSubmitter sets the extra data submitter.
func WithExtraDataSubmitter(submitter submitter.ExtraDataSubmitter) Parameter {
	return parameterFunc(func(p *parameters) {
		p.extraDataSubmitter = submitter
	})
}

// WithMember sets this operator's member address.  Leaving it unset runs the
// controller as an observer that follows consensus without submitting.
func WithMember(member common.Address) Parameter {
	return parameterFunc(func(p *parameters) {
		p.member = member
	})
}

// WithAllowBunkerReporting allows report data submission while bunker mode is active.
func WithAllowBunkerReporting(allow bool) Parameter {
	return parameterFunc(func(p *parameters) {
		p.allowBunkerReporting = allow
	})
}

// WithDaemon sets whether the controller schedules cycles itself.  When
// false the caller runs cycles through RunCycle.
func WithDaemon(daemon bool) Parameter {
	return parameterFunc(func(p *parameters) {
		p.daemon = daemon
	})
}

// WithCycleSleep sets the time between the end of one cycle and the start of the next.
func WithCycleSleep(sleep time.Duration) Parameter {
	return parameterFunc(func(p *parameters) {
		p.cycleSleep = sleep
	})
}

// WithMaxCycleLifetime sets the wall-clock budget for a single cycle.
func WithMaxCycleLifetime(lifetime time.Duration) Parameter {
	return parameterFunc(func(p *parameters) {
		p.maxCycleLifetime = lifetime
	})
}

// WithConfirmFunc sets the confirmation function called before each
// transaction send.  Without one every send is confirmed automatically.
func WithConfirmFunc(confirm controller.ConfirmFunc) Parameter {
	return parameterFunc(func(p *parameters) {
		p.confirm = confirm
	})
}

// parseAndCheckParameters parses and checks parameters to ensure that mandatory parameters are present and correct.
func parseAndCheckParameters(params ...Parameter) (*parameters, error) {
	parameters := parameters{
		logLevel:         zerolog.GlobalLevel(),
		cycleSleep:       12 * time.Second,
		maxCycleLifetime: 3000 * time.Second,
	}
	for _, p := range params {
		if params != nil {
			p.apply(&parameters)
		}
	}

	if parameters.chainTime == nil {
		return nil, errors.New("no chain time service specified")
	}
	if parameters.blockStamps == nil {
		return nil, errors.New("no block stamp resolver specified")
	}
	if parameters.frameCalculator == nil {
		return nil, errors.New("no frame calculator specified")
	}
	if parameters.reportBuilder == nil {
		return nil, errors.New("no report builder specified")
	}
	if parameters.consensusTracker == nil {
		return nil, errors.New("no consensus tracker specified")
	}
	if parameters.scheduler == nil {
		return nil, errors.New("no scheduler specified")
	}
	if parameters.executionHeaderProvider == nil {
		return nil, errors.New("no execution header provider specified")
	}
	if parameters.currentFrameProvider == nil {
		return nil, errors.New("no current frame provider specified")
	}
	if parameters.frameConfigProvider == nil {
		return nil, errors.New("no frame configuration provider specified")
	}
	if parameters.membersProvider == nil {
		return nil, errors.New("no members provider specified")
	}
	if parameters.quorumProvider == nil {
		return nil, errors.New("no quorum provider specified")
	}
	if parameters.consensusStateProvider == nil {
		return nil, errors.New("no consensus state provider specified")
	}
	if parameters.memberInfoProvider == nil {
		return nil, errors.New("no member info provider specified")
	}
	if parameters.memberHashesProvider == nil {
		return nil, errors.New("no member hashes provider specified")
	}
	if parameters.processingStateProvider == nil {
		return nil, errors.New("no processing state provider specified")
	}
	if parameters.lastProcessingRefSlotProvider == nil {
		return nil, errors.New("no last processing reference slot provider specified")
	}
	if parameters.consensusVersionProvider == nil {
		return nil, errors.New("no consensus version provider specified")
	}
	if parameters.contractVersionProvider == nil {
		return nil, errors.New("no contract version provider specified")
	}
	if parameters.reportHashSubmitter == nil {
		return nil, errors.New("no report hash submitter specified")
	}
	if parameters.reportDataSubmitter == nil {
		return nil, errors.New("no report data submitter specified")
	}
	if parameters.extraDataSubmitter == nil {
		return nil, errors.New("no extra data submitter specified")
	}
	if parameters.cycleSleep <= 0 {
		return nil, errors.New("no cycle sleep specified")
	}
	if parameters.maxCycleLifetime <= 0 {
		return nil, errors.New("no maximum cycle lifetime specified")
	}

	return &parameters, nil
}

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

// Package mock provides static implementations of the contract provider
// interfaces for testing.
package mock

import (
	"context"
	"errors"
	"math/big"

	"github.com/accordlabs/accord/contracts"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
)

// ChainConfigProvider is a mock for contracts.ChainConfigProvider.
type ChainConfigProvider struct {
	config *contracts.ChainConfig
}

// NewChainConfigProvider returns a mock chain configuration provider returning
// the given configuration.
func NewChainConfigProvider(config *contracts.ChainConfig) contracts.ChainConfigProvider {
	return &ChainConfigProvider{config: config}
}

// ChainConfig is a mock.
func (m *ChainConfigProvider) ChainConfig(_ context.Context, _ common.Hash) (*contracts.ChainConfig, error) {
	return m.config, nil
}

// ErroringChainConfigProvider is a mock for contracts.ChainConfigProvider that returns errors.
type ErroringChainConfigProvider struct{}

// NewErroringChainConfigProvider returns a mock chain configuration provider that returns errors.
func NewErroringChainConfigProvider() contracts.ChainConfigProvider {
	return &ErroringChainConfigProvider{}
}

// ChainConfig is a mock.
func (m *ErroringChainConfigProvider) ChainConfig(_ context.Context, _ common.Hash) (*contracts.ChainConfig, error) {
	return nil, errors.New("error")
}

// FrameConfigProvider is a mock for contracts.FrameConfigProvider.
type FrameConfigProvider struct {
	config *contracts.FrameConfig
}

// NewFrameConfigProvider returns a mock frame configuration provider returning
// the given configuration.
func NewFrameConfigProvider(config *contracts.FrameConfig) contracts.FrameConfigProvider {
	return &FrameConfigProvider{config: config}
}

// FrameConfig is a mock.
func (m *FrameConfigProvider) FrameConfig(_ context.Context, _ common.Hash) (*contracts.FrameConfig, error) {
	return m.config, nil
}

// ErroringFrameConfigProvider is a mock for contracts.FrameConfigProvider that returns errors.
type ErroringFrameConfigProvider struct{}

// NewErroringFrameConfigProvider returns a mock frame configuration provider that returns errors.
func NewErroringFrameConfigProvider() contracts.FrameConfigProvider {
	return &ErroringFrameConfigProvider{}
}

// FrameConfig is a mock.
func (m *ErroringFrameConfigProvider) FrameConfig(_ context.Context, _ common.Hash) (*contracts.FrameConfig, error) {
	return nil, errors.New("error")
}

// CurrentFrameProvider is a mock for contracts.CurrentFrameProvider.
type CurrentFrameProvider struct {
	frame *contracts.CurrentFrame
}

// NewCurrentFrameProvider returns a mock current frame provider returning the
// given frame.
func NewCurrentFrameProvider(frame *contracts.CurrentFrame) contracts.CurrentFrameProvider {
	return &CurrentFrameProvider{frame: frame}
}

// CurrentFrame is a mock.
func (m *CurrentFrameProvider) CurrentFrame(_ context.Context, _ common.Hash) (*contracts.CurrentFrame, error) {
	return m.frame, nil
}

// MembersProvider is a mock for contracts.MembersProvider.
type MembersProvider struct {
	members []common.Address
}

// NewMembersProvider returns a mock members provider returning the given
// addresses.
func NewMembersProvider(members []common.Address) contracts.MembersProvider {
	return &MembersProvider{members: members}
}

// Members is a mock.
func (m *MembersProvider) Members(_ context.Context, _ common.Hash) ([]common.Address, error) {
	return m.members, nil
}

// QuorumProvider is a mock for contracts.QuorumProvider.
type QuorumProvider struct {
	quorum uint64
}

// NewQuorumProvider returns a mock quorum provider returning the given quorum.
func NewQuorumProvider(quorum uint64) contracts.QuorumProvider {
	return &QuorumProvider{quorum: quorum}
}

// Quorum is a mock.
func (m *QuorumProvider) Quorum(_ context.Context, _ common.Hash) (uint64, error) {
	return m.quorum, nil
}

// ConsensusStateProvider is a mock for contracts.ConsensusStateProvider.
type ConsensusStateProvider struct {
	state *contracts.ConsensusState
}

// NewConsensusStateProvider returns a mock consensus state provider returning
// the given state.
func NewConsensusStateProvider(state *contracts.ConsensusState) contracts.ConsensusStateProvider {
	return &ConsensusStateProvider{state: state}
}

// ConsensusState is a mock.
func (m *ConsensusStateProvider) ConsensusState(_ context.Context, _ common.Hash) (*contracts.ConsensusState, error) {
	return m.state, nil
}

// MemberHashesProvider is a mock for contracts.MemberHashesProvider.
type MemberHashesProvider struct {
	hashes map[common.Address]common.Hash
}

// NewMemberHashesProvider returns a mock member hashes provider returning the
// given hashes.  Members absent from the map are reported as not having
// submitted.
func NewMemberHashesProvider(hashes map[common.Address]common.Hash) contracts.MemberHashesProvider {
	return &MemberHashesProvider{hashes: hashes}
}

// MemberHashes is a mock.
func (m *MemberHashesProvider) MemberHashes(_ context.Context, _ common.Hash, members []common.Address) (map[common.Address]common.Hash, error) {
	hashes := make(map[common.Address]common.Hash, len(members))
	for _, member := range members {
		hashes[member] = m.hashes[member]
	}

	return hashes, nil
}

// ProcessingStateProvider is a mock for contracts.ProcessingStateProvider.
type ProcessingStateProvider struct {
	state *contracts.ProcessingState
}

// NewProcessingStateProvider returns a mock processing state provider
// returning the given state.
func NewProcessingStateProvider(state *contracts.ProcessingState) contracts.ProcessingStateProvider {
	return &ProcessingStateProvider{state: state}
}

// ProcessingState is a mock.
func (m *ProcessingStateProvider) ProcessingState(_ context.Context, _ common.Hash) (*contracts.ProcessingState, error) {
	return m.state, nil
}

// LastProcessingRefSlotProvider is a mock for contracts.LastProcessingRefSlotProvider.
type LastProcessingRefSlotProvider struct {
	slot phase0.Slot
}

// NewLastProcessingRefSlotProvider returns a mock last processing reference
// slot provider returning the given slot.
func NewLastProcessingRefSlotProvider(slot phase0.Slot) contracts.LastProcessingRefSlotProvider {
	return &LastProcessingRefSlotProvider{slot: slot}
}

// LastProcessingRefSlot is a mock.
func (m *LastProcessingRefSlotProvider) LastProcessingRefSlot(_ context.Context, _ common.Hash) (phase0.Slot, error) {
	return m.slot, nil
}

// ErroringLastProcessingRefSlotProvider is a mock for
// contracts.LastProcessingRefSlotProvider that returns errors.
type ErroringLastProcessingRefSlotProvider struct{}

// NewErroringLastProcessingRefSlotProvider returns a mock last processing
// reference slot provider that returns errors.
func NewErroringLastProcessingRefSlotProvider() contracts.LastProcessingRefSlotProvider {
	return &ErroringLastProcessingRefSlotProvider{}
}

// LastProcessingRefSlot is a mock.
func (m *ErroringLastProcessingRefSlotProvider) LastProcessingRefSlot(_ context.Context, _ common.Hash) (phase0.Slot, error) {
	return 0, errors.New("error")
}

// ConsensusVersionProvider is a mock for contracts.ConsensusVersionProvider.
type ConsensusVersionProvider struct {
	version uint64
}

// NewConsensusVersionProvider returns a mock consensus version provider
// returning the given version.
func NewConsensusVersionProvider(version uint64) contracts.ConsensusVersionProvider {
	return &ConsensusVersionProvider{version: version}
}

// ConsensusVersion is a mock.
func (m *ConsensusVersionProvider) ConsensusVersion(_ context.Context, _ common.Hash) (uint64, error) {
	return m.version, nil
}

// ContractVersionProvider is a mock for contracts.ContractVersionProvider.
type ContractVersionProvider struct {
	version uint64
}

// NewContractVersionProvider returns a mock contract version provider
// returning the given version.
func NewContractVersionProvider(version uint64) contracts.ContractVersionProvider {
	return &ContractVersionProvider{version: version}
}

// ContractVersion is a mock.
func (m *ContractVersionProvider) ContractVersion(_ context.Context, _ common.Hash) (uint64, error) {
	return m.version, nil
}

// LastRequestedValidatorIndicesProvider is a mock for contracts.LastRequestedValidatorIndicesProvider.
type LastRequestedValidatorIndicesProvider struct {
	watermarks map[uint64]map[uint64]int64
}

// NewLastRequestedValidatorIndicesProvider returns a mock exit request
// watermark provider returning the given watermarks, keyed by module then
// operator.  Operators without an entry report -1.
func NewLastRequestedValidatorIndicesProvider(watermarks map[uint64]map[uint64]int64) contracts.LastRequestedValidatorIndicesProvider {
	return &LastRequestedValidatorIndicesProvider{watermarks: watermarks}
}

// LastRequestedValidatorIndices is a mock.
func (m *LastRequestedValidatorIndicesProvider) LastRequestedValidatorIndices(_ context.Context, _ common.Hash, moduleID uint64, nodeOperatorIDs []uint64) ([]int64, error) {
	indices := make([]int64, len(nodeOperatorIDs))
	for i, operatorID := range nodeOperatorIDs {
		indices[i] = -1
		if operators, exists := m.watermarks[moduleID]; exists {
			if index, exists := operators[operatorID]; exists {
				indices[i] = index
			}
		}
	}

	return indices, nil
}

// ErroringLastRequestedValidatorIndicesProvider is a mock for contracts.LastRequestedValidatorIndicesProvider that returns errors.
type ErroringLastRequestedValidatorIndicesProvider struct{}

// NewErroringLastRequestedValidatorIndicesProvider returns a mock exit request
// watermark provider that returns errors.
func NewErroringLastRequestedValidatorIndicesProvider() contracts.LastRequestedValidatorIndicesProvider {
	return &ErroringLastRequestedValidatorIndicesProvider{}
}

// LastRequestedValidatorIndices is a mock.
func (m *ErroringLastRequestedValidatorIndicesProvider) LastRequestedValidatorIndices(_ context.Context, _ common.Hash, _ uint64, _ []uint64) ([]int64, error) {
	return nil, errors.New("error")
}

// PerfLeewayProvider is a mock for contracts.PerfLeewayProvider.
type PerfLeewayProvider struct {
	leewayBP uint64
}

// NewPerfLeewayProvider returns a mock performance leeway provider returning
// the given leeway in basis points.
func NewPerfLeewayProvider(leewayBP uint64) contracts.PerfLeewayProvider {
	return &PerfLeewayProvider{leewayBP: leewayBP}
}

// AvgPerfLeewayBP is a mock.
func (m *PerfLeewayProvider) AvgPerfLeewayBP(_ context.Context, _ common.Hash) (uint64, error) {
	return m.leewayBP, nil
}

// ErroringPerfLeewayProvider is a mock for contracts.PerfLeewayProvider that returns errors.
type ErroringPerfLeewayProvider struct{}

// NewErroringPerfLeewayProvider returns a mock performance leeway provider
// that returns errors.
func NewErroringPerfLeewayProvider() contracts.PerfLeewayProvider {
	return &ErroringPerfLeewayProvider{}
}

// AvgPerfLeewayBP is a mock.
func (m *ErroringPerfLeewayProvider) AvgPerfLeewayBP(_ context.Context, _ common.Hash) (uint64, error) {
	return 0, errors.New("error")
}

// PendingSharesProvider is a mock for contracts.PendingSharesProvider.
type PendingSharesProvider struct {
	shares *big.Int
}

// NewPendingSharesProvider returns a mock pending shares provider returning
// the given shares.
func NewPendingSharesProvider(shares *big.Int) contracts.PendingSharesProvider {
	return &PendingSharesProvider{shares: shares}
}

// PendingSharesToDistribute is a mock.
func (m *PendingSharesProvider) PendingSharesToDistribute(_ context.Context, _ common.Hash) (*big.Int, error) {
	return new(big.Int).Set(m.shares), nil
}

// ErroringPendingSharesProvider is a mock for contracts.PendingSharesProvider that returns errors.
type ErroringPendingSharesProvider struct{}

// NewErroringPendingSharesProvider returns a mock pending shares provider that
// returns errors.
func NewErroringPendingSharesProvider() contracts.PendingSharesProvider {
	return &ErroringPendingSharesProvider{}
}

// PendingSharesToDistribute is a mock.
func (m *ErroringPendingSharesProvider) PendingSharesToDistribute(_ context.Context, _ common.Hash) (*big.Int, error) {
	return nil, errors.New("error")
}

// VaultWithdrawalsProvider is a mock for contracts.VaultWithdrawalsProvider.
type VaultWithdrawalsProvider struct {
	withdrawals []*big.Int
}

// NewVaultWithdrawalsProvider returns a mock vault withdrawals provider
// returning the given withdrawals regardless of the requested range.
func NewVaultWithdrawalsProvider(withdrawals []*big.Int) contracts.VaultWithdrawalsProvider {
	return &VaultWithdrawalsProvider{withdrawals: withdrawals}
}

// VaultWithdrawals is a mock.
func (m *VaultWithdrawalsProvider) VaultWithdrawals(_ context.Context, _ uint64, _ uint64) ([]*big.Int, error) {
	return m.withdrawals, nil
}

// ErroringVaultWithdrawalsProvider is a mock for contracts.VaultWithdrawalsProvider that returns errors.
type ErroringVaultWithdrawalsProvider struct{}

// NewErroringVaultWithdrawalsProvider returns a mock vault withdrawals
// provider that returns errors.
func NewErroringVaultWithdrawalsProvider() contracts.VaultWithdrawalsProvider {
	return &ErroringVaultWithdrawalsProvider{}
}

// VaultWithdrawals is a mock.
func (m *ErroringVaultWithdrawalsProvider) VaultWithdrawals(_ context.Context, _ uint64, _ uint64) ([]*big.Int, error) {
	return nil, errors.New("error")
}

// MemberInfoProvider is a mock for contracts.MemberInfoProvider.
type MemberInfoProvider struct {
	infos map[common.Address]*contracts.MemberInfo
}

// NewMemberInfoProvider returns a mock member info provider returning the
// given per-member info.  Addresses absent from the map are reported as
// non-members.
func NewMemberInfoProvider(infos map[common.Address]*contracts.MemberInfo) contracts.MemberInfoProvider {
	return &MemberInfoProvider{infos: infos}
}

// MemberInfo is a mock.
func (m *MemberInfoProvider) MemberInfo(_ context.Context, _ common.Hash, address common.Address) (*contracts.MemberInfo, error) {
	info, exists := m.infos[address]
	if !exists {
		return &contracts.MemberInfo{}, nil
	}

	return info, nil
}

// ErroringMemberInfoProvider is a mock for contracts.MemberInfoProvider that returns errors.
type ErroringMemberInfoProvider struct{}

// NewErroringMemberInfoProvider returns a mock member info provider that returns errors.
func NewErroringMemberInfoProvider() contracts.MemberInfoProvider {
	return &ErroringMemberInfoProvider{}
}

// MemberInfo is a mock.
func (m *ErroringMemberInfoProvider) MemberInfo(_ context.Context, _ common.Hash, _ common.Address) (*contracts.MemberInfo, error) {
	return nil, errors.New("error")
}

// Copyright © 2020 - 2025 Accord Labs Limited.
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

package mock

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/deneb"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/holiman/uint256"
	"github.com/prysmaticlabs/go-bitfield"
)

// GenesisProvider is a mock for eth2client.GenesisProvider.
type GenesisProvider struct {
	genesisTime time.Time
}

// NewGenesisProvider returns a mock genesis provider with the provided genesis time.
func NewGenesisProvider(genesisTime time.Time) eth2client.GenesisProvider {
	return &GenesisProvider{
		genesisTime: genesisTime,
	}
}

// Genesis is a mock.
func (m *GenesisProvider) Genesis(_ context.Context, _ *api.GenesisOpts) (*api.Response[*apiv1.Genesis], error) {
	return &api.Response[*apiv1.Genesis]{
		Data: &apiv1.Genesis{
			GenesisTime: m.genesisTime,
		},
		Metadata: make(map[string]any),
	}, nil
}

// ErroringGenesisProvider is a mock for eth2client.GenesisProvider that returns errors.
type ErroringGenesisProvider struct{}

// NewErroringGenesisProvider returns a mock genesis provider that returns errors.
func NewErroringGenesisProvider() eth2client.GenesisProvider {
	return &ErroringGenesisProvider{}
}

// Genesis is a mock.
func (m *ErroringGenesisProvider) Genesis(_ context.Context, _ *api.GenesisOpts) (*api.Response[*apiv1.Genesis], error) {
	return nil, errors.New("error")
}

// SpecProvider is a mock for eth2client.SpecProvider.
type SpecProvider struct{}

// NewSpecProvider returns a mock spec provider with mainnet values.
func NewSpecProvider() eth2client.SpecProvider {
	return &SpecProvider{}
}

// Spec is a mock.
func (m *SpecProvider) Spec(_ context.Context, _ *api.SpecOpts) (*api.Response[map[string]any], error) {
	return &api.Response[map[string]any]{
		Data: map[string]any{
			"SECONDS_PER_SLOT":             12 * time.Second,
			"SLOTS_PER_EPOCH":              uint64(32),
			"EPOCHS_PER_HISTORICAL_VECTOR": uint64(65536),
			"MAX_EFFECTIVE_BALANCE":        uint64(32000000000),
		},
		Metadata: make(map[string]any),
	}, nil
}

// ErroringSpecProvider is a mock for eth2client.SpecProvider that returns errors.
type ErroringSpecProvider struct{}

// NewErroringSpecProvider returns a mock spec provider that returns errors.
func NewErroringSpecProvider() eth2client.SpecProvider {
	return &ErroringSpecProvider{}
}

// Spec is a mock.
func (m *ErroringSpecProvider) Spec(_ context.Context, _ *api.SpecOpts) (*api.Response[map[string]any], error) {
	return nil, errors.New("error")
}

// BeaconBlockHeadersProvider is a mock for eth2client.BeaconBlockHeadersProvider.
// It returns a deterministic canonical header for any block ID, with missing
// slots reported as 404 errors in the manner of the beacon API.
type BeaconBlockHeadersProvider struct {
	headSlot phase0.Slot
	missing  map[phase0.Slot]bool
}

// NewBeaconBlockHeadersProvider returns a mock beacon block headers provider.
func NewBeaconBlockHeadersProvider(headSlot phase0.Slot, missing ...phase0.Slot) eth2client.BeaconBlockHeadersProvider {
	missed := make(map[phase0.Slot]bool, len(missing))
	for _, slot := range missing {
		missed[slot] = true
	}
	return &BeaconBlockHeadersProvider{
		headSlot: headSlot,
		missing:  missed,
	}
}

// BeaconBlockHeader is a mock.
func (m *BeaconBlockHeadersProvider) BeaconBlockHeader(_ context.Context, opts *api.BeaconBlockHeaderOpts) (*api.Response[*apiv1.BeaconBlockHeader], error) {
	slot, err := mockSlotForBlockID(opts.Block, m.headSlot)
	if err != nil {
		return nil, err
	}
	if slot > m.headSlot || m.missing[slot] {
		return nil, &api.Error{
			Method:     http.MethodGet,
			StatusCode: http.StatusNotFound,
			Endpoint:   "/eth/v1/beacon/headers",
		}
	}

	// Walk back over missed slots to find the parent.
	parentSlot := slot
	for parentSlot > 0 {
		parentSlot--
		if !m.missing[parentSlot] {
			break
		}
	}

	return &api.Response[*apiv1.BeaconBlockHeader]{
		Data: &apiv1.BeaconBlockHeader{
			Root:      mockRootForSlot(slot),
			Canonical: true,
			Header: &phase0.SignedBeaconBlockHeader{
				Message: &phase0.BeaconBlockHeader{
					Slot:          slot,
					ProposerIndex: 1,
					ParentRoot:    mockRootForSlot(parentSlot),
					StateRoot:     mockStateRootForSlot(slot),
					BodyRoot:      phase0.Root{},
				},
			},
		},
		Metadata: make(map[string]any),
	}, nil
}

// ErroringBeaconBlockHeadersProvider is a mock for eth2client.BeaconBlockHeadersProvider that returns errors.
type ErroringBeaconBlockHeadersProvider struct{}

// NewErroringBeaconBlockHeadersProvider returns a mock beacon block headers provider that returns errors.
func NewErroringBeaconBlockHeadersProvider() eth2client.BeaconBlockHeadersProvider {
	return &ErroringBeaconBlockHeadersProvider{}
}

// BeaconBlockHeader is a mock.
func (m *ErroringBeaconBlockHeadersProvider) BeaconBlockHeader(_ context.Context, _ *api.BeaconBlockHeaderOpts) (*api.Response[*apiv1.BeaconBlockHeader], error) {
	return nil, errors.New("error")
}

// SignedBeaconBlockProvider is a mock for eth2client.SignedBeaconBlockProvider.
type SignedBeaconBlockProvider struct{}

// NewSignedBeaconBlockProvider returns a mock signed beacon block provider.
func NewSignedBeaconBlockProvider() eth2client.SignedBeaconBlockProvider {
	return &SignedBeaconBlockProvider{}
}

// SignedBeaconBlock is a mock.
func (m *SignedBeaconBlockProvider) SignedBeaconBlock(_ context.Context, opts *api.SignedBeaconBlockOpts) (*api.Response[*spec.VersionedSignedBeaconBlock], error) {
	slot, err := mockSlotForBlockID(opts.Block, 0)
	if err != nil {
		return nil, err
	}
	return &api.Response[*spec.VersionedSignedBeaconBlock]{
		Data: &spec.VersionedSignedBeaconBlock{
			Version: spec.DataVersionDeneb,
			Deneb:   signedBeaconBlockForSlot(slot),
		},
		Metadata: make(map[string]any),
	}, nil
}

// ErroringSignedBeaconBlockProvider is a mock for eth2client.SignedBeaconBlockProvider that returns errors.
type ErroringSignedBeaconBlockProvider struct{}

// NewErroringSignedBeaconBlockProvider returns a mock signed beacon block provider that returns errors.
func NewErroringSignedBeaconBlockProvider() eth2client.SignedBeaconBlockProvider {
	return &ErroringSignedBeaconBlockProvider{}
}

// SignedBeaconBlock is a mock.
func (m *ErroringSignedBeaconBlockProvider) SignedBeaconBlock(_ context.Context, _ *api.SignedBeaconBlockOpts) (*api.Response[*spec.VersionedSignedBeaconBlock], error) {
	return nil, errors.New("error")
}

// PrimedSignedBeaconBlockProvider is a mock for eth2client.SignedBeaconBlockProvider
// that serves the given blocks keyed by slot, with absent slots reported as 404
// errors in the manner of the beacon API.
type PrimedSignedBeaconBlockProvider struct {
	blocks map[phase0.Slot]*spec.VersionedSignedBeaconBlock
}

// NewPrimedSignedBeaconBlockProvider returns a mock signed beacon block provider
// serving the given blocks.
func NewPrimedSignedBeaconBlockProvider(blocks map[phase0.Slot]*spec.VersionedSignedBeaconBlock) eth2client.SignedBeaconBlockProvider {
	return &PrimedSignedBeaconBlockProvider{
		blocks: blocks,
	}
}

// SignedBeaconBlock is a mock.
func (m *PrimedSignedBeaconBlockProvider) SignedBeaconBlock(_ context.Context, opts *api.SignedBeaconBlockOpts) (*api.Response[*spec.VersionedSignedBeaconBlock], error) {
	slot, err := mockSlotForBlockID(opts.Block, 0)
	if err != nil {
		return nil, err
	}
	block, exists := m.blocks[slot]
	if !exists {
		return nil, &api.Error{
			Method:     http.MethodGet,
			StatusCode: http.StatusNotFound,
			Endpoint:   "/eth/v2/beacon/blocks",
		}
	}
	return &api.Response[*spec.VersionedSignedBeaconBlock]{
		Data:     block,
		Metadata: make(map[string]any),
	}, nil
}

// ValidatorsProvider is a mock for eth2client.ValidatorsProvider.
type ValidatorsProvider struct {
	validators map[phase0.ValidatorIndex]*apiv1.Validator
}

// NewValidatorsProvider returns a mock validators provider with the provided validators.
func NewValidatorsProvider(validators map[phase0.ValidatorIndex]*apiv1.Validator) eth2client.ValidatorsProvider {
	return &ValidatorsProvider{
		validators: validators,
	}
}

// Validators is a mock.
func (m *ValidatorsProvider) Validators(_ context.Context, opts *api.ValidatorsOpts) (*api.Response[map[phase0.ValidatorIndex]*apiv1.Validator], error) {
	data := m.validators
	if len(opts.Indices) > 0 {
		data = make(map[phase0.ValidatorIndex]*apiv1.Validator, len(opts.Indices))
		for _, index := range opts.Indices {
			if validator, exists := m.validators[index]; exists {
				data[index] = validator
			}
		}
	}
	return &api.Response[map[phase0.ValidatorIndex]*apiv1.Validator]{
		Data:     data,
		Metadata: make(map[string]any),
	}, nil
}

// ErroringValidatorsProvider is a mock for eth2client.ValidatorsProvider that returns errors.
type ErroringValidatorsProvider struct{}

// NewErroringValidatorsProvider returns a mock validators provider that returns errors.
func NewErroringValidatorsProvider() eth2client.ValidatorsProvider {
	return &ErroringValidatorsProvider{}
}

// Validators is a mock.
func (m *ErroringValidatorsProvider) Validators(_ context.Context, _ *api.ValidatorsOpts) (*api.Response[map[phase0.ValidatorIndex]*apiv1.Validator], error) {
	return nil, errors.New("error")
}

// PrimedValidatorsProvider is a mock for eth2client.ValidatorsProvider that
// serves the given validator sets keyed by the requested state.
type PrimedValidatorsProvider struct {
	validators map[string]map[phase0.ValidatorIndex]*apiv1.Validator
}

// NewPrimedValidatorsProvider returns a mock validators provider serving the
// given validator sets.
func NewPrimedValidatorsProvider(validators map[string]map[phase0.ValidatorIndex]*apiv1.Validator) eth2client.ValidatorsProvider {
	return &PrimedValidatorsProvider{
		validators: validators,
	}
}

// Validators is a mock.
func (m *PrimedValidatorsProvider) Validators(_ context.Context, opts *api.ValidatorsOpts) (*api.Response[map[phase0.ValidatorIndex]*apiv1.Validator], error) {
	data, exists := m.validators[opts.State]
	if !exists {
		return nil, fmt.Errorf("no validators for state %s", opts.State)
	}
	return &api.Response[map[phase0.ValidatorIndex]*apiv1.Validator]{
		Data:     data,
		Metadata: make(map[string]any),
	}, nil
}

// BeaconCommitteesProvider is a mock for eth2client.BeaconCommitteesProvider.
type BeaconCommitteesProvider struct {
	committees map[phase0.Epoch][]*apiv1.BeaconCommittee
}

// NewBeaconCommitteesProvider returns a mock beacon committees provider with the provided committees.
func NewBeaconCommitteesProvider(committees map[phase0.Epoch][]*apiv1.BeaconCommittee) eth2client.BeaconCommitteesProvider {
	return &BeaconCommitteesProvider{
		committees: committees,
	}
}

// BeaconCommittees is a mock.
func (m *BeaconCommitteesProvider) BeaconCommittees(_ context.Context, opts *api.BeaconCommitteesOpts) (*api.Response[[]*apiv1.BeaconCommittee], error) {
	var committees []*apiv1.BeaconCommittee
	if opts.Epoch != nil {
		committees = m.committees[*opts.Epoch]
	}
	return &api.Response[[]*apiv1.BeaconCommittee]{
		Data:     committees,
		Metadata: make(map[string]any),
	}, nil
}

// ErroringBeaconCommitteesProvider is a mock for eth2client.BeaconCommitteesProvider that returns errors.
type ErroringBeaconCommitteesProvider struct{}

// NewErroringBeaconCommitteesProvider returns a mock beacon committees provider that returns errors.
func NewErroringBeaconCommitteesProvider() eth2client.BeaconCommitteesProvider {
	return &ErroringBeaconCommitteesProvider{}
}

// BeaconCommittees is a mock.
func (m *ErroringBeaconCommitteesProvider) BeaconCommittees(_ context.Context, _ *api.BeaconCommitteesOpts) (*api.Response[[]*apiv1.BeaconCommittee], error) {
	return nil, errors.New("error")
}

func signedBeaconBlockForSlot(slot phase0.Slot) *deneb.SignedBeaconBlock {
	attestationSlot := phase0.Slot(0)
	if slot > 0 {
		attestationSlot = slot - 1
	}
	attestations := make([]*phase0.Attestation, 2)
	for i := range attestations {
		aggregationBits := bitfield.NewBitlist(128)
		aggregationBits.SetBitAt(uint64(i), true)
		attestations[i] = &phase0.Attestation{
			AggregationBits: aggregationBits,
			Data: &phase0.AttestationData{
				Slot:            attestationSlot,
				Index:           phase0.CommitteeIndex(i),
				BeaconBlockRoot: mockRootForSlot(attestationSlot),
				Source: &phase0.Checkpoint{
					Epoch: phase0.Epoch(uint64(attestationSlot) / 32),
					Root:  mockRootForSlot(attestationSlot),
				},
				Target: &phase0.Checkpoint{
					Epoch: phase0.Epoch(uint64(slot) / 32),
					Root:  mockRootForSlot(slot),
				},
			},
		}
	}

	var blockHash phase0.Hash32
	blockRoot := mockRootForSlot(slot)
	copy(blockHash[:], blockRoot[:])
	blockHash[1] = 0xee

	return &deneb.SignedBeaconBlock{
		Message: &deneb.BeaconBlock{
			Slot:          slot,
			ProposerIndex: 1,
			ParentRoot:    mockRootForSlot(attestationSlot),
			StateRoot:     mockStateRootForSlot(slot),
			Body: &deneb.BeaconBlockBody{
				ETH1Data: &phase0.ETH1Data{
					DepositCount: 16384,
				},
				Attestations: attestations,
				ExecutionPayload: &deneb.ExecutionPayload{
					BlockNumber:   uint64(slot) + 10000,
					BlockHash:     blockHash,
					BaseFeePerGas: uint256.NewInt(1000000000),
				},
			},
		},
	}
}

// mockSlotForBlockID resolves a beacon API block ID, which can be a keyword, a
// slot number or a 0x-prefixed block root, to the slot encoded within it.
func mockSlotForBlockID(blockID string, headSlot phase0.Slot) (phase0.Slot, error) {
	switch {
	case blockID == "head" || blockID == "finalized" || blockID == "justified":
		return headSlot, nil
	case strings.HasPrefix(blockID, "0x"):
		data, err := hex.DecodeString(strings.TrimPrefix(blockID, "0x"))
		if err != nil || len(data) != 32 {
			return 0, errors.New("invalid block root")
		}
		return phase0.Slot(binary.BigEndian.Uint64(data[24:])), nil
	default:
		value, err := strconv.ParseUint(blockID, 10, 64)
		if err != nil {
			return 0, errors.New("unhandled block ID")
		}
		return phase0.Slot(value), nil
	}
}

func mockRootForSlot(slot phase0.Slot) phase0.Root {
	var root phase0.Root
	root[0] = 0x01
	binary.BigEndian.PutUint64(root[24:], uint64(slot))
	return root
}

func mockStateRootForSlot(slot phase0.Slot) phase0.Root {
	var root phase0.Root
	root[0] = 0x02
	binary.BigEndian.PutUint64(root[24:], uint64(slot))
	return root
}

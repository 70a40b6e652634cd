// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package params

const (
	// Mainnet preset values, used by the built-in network configs.
	EpochLength      = 32
	SyncPeriodLength = 8192
	SecondsPerSlot   = 12

	BLSSignatureSize = 96
	BLSPubkeySize    = 48

	SyncCommitteeSize        = 512
	SyncCommitteeBitmaskSize = SyncCommitteeSize / 8
)

// Generalized indices of the light client relevant fields in the beacon state.
const (
	StateIndexFinalBlock        = 105
	StateIndexSyncCommittee     = 54
	StateIndexNextSyncCommittee = 55

	// Electra extended the beacon state beyond 32 fields which added an
	// extra level to the state tree.
	StateIndexFinalBlockElectra        = 169
	StateIndexSyncCommitteeElectra     = 86
	StateIndexNextSyncCommitteeElectra = 87

	BodyIndexExecPayload = 25
)

// ForkSpec describes the fork dependent layout of the beacon state as seen
// by the light client.
type ForkSpec struct {
	FinalizedRootIndex     uint64
	CurrentCommitteeIndex  uint64
	NextCommitteeIndex     uint64
	ExecutionPayloadIndex  uint64
	HasExecutionPayload    bool
	LightClientUnsupported bool
}

var (
	phase0Spec = ForkSpec{LightClientUnsupported: true}
	altairSpec = ForkSpec{
		FinalizedRootIndex:    StateIndexFinalBlock,
		CurrentCommitteeIndex: StateIndexSyncCommittee,
		NextCommitteeIndex:    StateIndexNextSyncCommittee,
	}
	bellatrixSpec = ForkSpec{
		FinalizedRootIndex:    StateIndexFinalBlock,
		CurrentCommitteeIndex: StateIndexSyncCommittee,
		NextCommitteeIndex:    StateIndexNextSyncCommittee,
		ExecutionPayloadIndex: BodyIndexExecPayload,
		HasExecutionPayload:   true,
	}
	electraSpec = ForkSpec{
		FinalizedRootIndex:    StateIndexFinalBlockElectra,
		CurrentCommitteeIndex: StateIndexSyncCommitteeElectra,
		NextCommitteeIndex:    StateIndexNextSyncCommitteeElectra,
		ExecutionPayloadIndex: BodyIndexExecPayload,
		HasExecutionPayload:   true,
	}
)

// forkSpecs maps known fork names to their state layout. Unknown fork names
// inherit the layout of the latest known fork before them.
var forkSpecs = map[string]ForkSpec{
	"GENESIS":   phase0Spec,
	"ALTAIR":    altairSpec,
	"BELLATRIX": bellatrixSpec,
	"CAPELLA":   bellatrixSpec,
	"DENEB":     bellatrixSpec,
	"ELECTRA":   electraSpec,
}

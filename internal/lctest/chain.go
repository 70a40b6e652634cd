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

package lctest

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmlc/evm-light-client/beacon/merkle"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// GenesisValidatorsRoot is the validators root of generated test chains.
var GenesisValidatorsRoot = common.HexToHash("0x5c0f3e1ba5ce48bb6f5e2bcde4b4efb3ee1bbc2e0c4a30a4b2ec9e7ed1a7e6a1")

// Config returns a minimal preset chain config with the given genesis time.
func Config(genesisTime uint64) *params.ChainConfig {
	return params.MinimalConfig(genesisTime, GenesisValidatorsRoot)
}

// State describes the parts of a beacon state that light clients can prove.
type State struct {
	CurrentCommittee *Committee
	NextCommittee    *Committee
	Finalized        *types.Header
}

// Build assembles a state tree committing to the described objects, leaving
// every other field zero.
func (s State) Build(spec params.ForkSpec) *merkle.Tree {
	tree := merkle.NewTree()
	set := func(index uint64, value merkle.Value) {
		if err := tree.Set(index, value); err != nil {
			panic(err)
		}
	}
	if s.CurrentCommittee != nil {
		set(spec.CurrentCommitteeIndex, merkle.Value(s.CurrentCommittee.Root()))
	}
	if s.NextCommittee != nil {
		set(spec.NextCommitteeIndex, merkle.Value(s.NextCommittee.Root()))
	}
	if s.Finalized != nil {
		set(spec.FinalizedRootIndex, merkle.Value(s.Finalized.Hash()))
	}
	return tree
}

// Header creates a header at the given slot with deterministic proposer and
// body fields.
func Header(slot uint64, parent, stateRoot common.Hash) types.Header {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], slot)
	return types.Header{
		Slot:          slot,
		ProposerIndex: slot % 97,
		ParentRoot:    parent,
		StateRoot:     stateRoot,
		BodyRoot:      sha256.Sum256(seed[:]),
	}
}

// HeaderChain generates a chain of headers linked by their parent roots, one
// for every listed slot.
func HeaderChain(parent common.Hash, slots ...uint64) []types.Header {
	headers := make([]types.Header, len(slots))
	for i, slot := range slots {
		var state [8]byte
		binary.LittleEndian.PutUint64(state[:], slot)
		headers[i] = Header(slot, parent, sha256.Sum256(append([]byte("state"), state[:]...)))
		parent = headers[i].Hash()
	}
	return headers
}

// Bootstrap creates bootstrap data for a checkpoint at the given slot whose
// current committee is c.
func Bootstrap(config *params.ChainConfig, slot uint64, c *Committee) *types.BootstrapData {
	spec, err := config.ForkSpec(slot)
	if err != nil {
		panic(err)
	}
	tree := State{CurrentCommittee: c}.Build(spec)
	return &types.BootstrapData{
		Header:          Header(slot, common.Hash{}, tree.Root()),
		CommitteeRoot:   c.Root(),
		Committee:       c.Serialized,
		CommitteeBranch: tree.Proof(spec.CurrentCommitteeIndex),
	}
}

// UpdateParams describes a light client update to generate.
type UpdateParams struct {
	AttestedSlot  uint64
	SignatureSlot uint64        // defaults to AttestedSlot+1
	Signer        *Committee    // committee of the signature slot's period
	Signers       []int         // participating members, defaults to all
	Finalized     *types.Header // optional finality proof target
	Next          *Committee    // optional next sync committee
	Parent        common.Hash
}

// Update creates a signed update with valid proofs.
func Update(config *params.ChainConfig, p UpdateParams) *types.LightClientUpdate {
	spec, err := config.ForkSpec(p.AttestedSlot)
	if err != nil {
		panic(err)
	}
	tree := State{NextCommittee: p.Next, Finalized: p.Finalized}.Build(spec)
	update := &types.LightClientUpdate{
		AttestedHeader: types.SignedHeader{
			Header:        Header(p.AttestedSlot, p.Parent, tree.Root()),
			SignatureSlot: p.SignatureSlot,
		},
	}
	if update.AttestedHeader.SignatureSlot == 0 {
		update.AttestedHeader.SignatureSlot = p.AttestedSlot + 1
	}
	if p.Next != nil {
		update.NextSyncCommittee = p.Next.Serialized
		update.NextSyncCommitteeBranch = tree.Proof(spec.NextCommitteeIndex)
	}
	if p.Finalized != nil {
		finalized := *p.Finalized
		update.FinalizedHeader = &finalized
		update.FinalityBranch = tree.Proof(spec.FinalizedRootIndex)
	}
	Resign(config, update, p.Signer, p.Signers)
	return update
}

// Resign replaces the sync aggregate of the update. A nil signer list means
// every committee member participates.
func Resign(config *params.ChainConfig, update *types.LightClientUpdate, c *Committee, signers []int) {
	if signers == nil {
		signers = Signers(c.Size())
	}
	update.AttestedHeader.Signature = c.Sign(config, update.AttestedHeader.Header, update.AttestedHeader.SignatureSlot, signers)
}

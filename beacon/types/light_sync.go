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

package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmlc/evm-light-client/beacon/merkle"
	"github.com/evmlc/evm-light-client/beacon/params"
)

// BootstrapData contains a sync committee where light sync can be started,
// together with a proof through a beacon header and corresponding state.
// Note: BootstrapData is fetched from a server based on a known checkpoint hash.
type BootstrapData struct {
	Header          Header
	CommitteeRoot   common.Hash
	Committee       SerializedSyncCommittee
	CommitteeBranch merkle.Values
}

// Validate verifies the proof included in BootstrapData against the state
// layout of the given fork.
func (c *BootstrapData) Validate(spec params.ForkSpec) error {
	if c.CommitteeRoot != c.Committee.Root() {
		return errors.New("wrong committee root")
	}
	return merkle.VerifyProof(c.Header.StateRoot, spec.CurrentCommitteeIndex, c.CommitteeBranch, merkle.Value(c.CommitteeRoot))
}

type jsonBootstrapData struct {
	Header          jsonLightClientHeader   `json:"header"`
	Committee       SerializedSyncCommittee `json:"current_sync_committee"`
	CommitteeBranch merkle.Values           `json:"current_sync_committee_branch"`
}

// MarshalJSON encodes the bootstrap in the beacon API format.
func (c BootstrapData) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonBootstrapData{
		Header:          jsonLightClientHeader{Beacon: c.Header},
		Committee:       c.Committee,
		CommitteeBranch: c.CommitteeBranch,
	})
}

// UnmarshalJSON decodes the bootstrap from the beacon API format.
func (c *BootstrapData) UnmarshalJSON(input []byte) error {
	var dec jsonBootstrapData
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.Committee.Size() == 0 {
		return errors.New("missing current sync committee")
	}
	c.Header = dec.Header.Beacon
	c.Committee = dec.Committee
	c.CommitteeRoot = dec.Committee.Root()
	c.CommitteeBranch = dec.CommitteeBranch
	return nil
}

// LightClientUpdate is a header signed by the sync committee of the signature
// slot's period. Optionally, the update can prove the committee of the next
// period through the attested header's state, and it can prove finality by the
// attested header referring to a previous, finalized header.
//
// See data structure definition here:
// https://github.com/ethereum/consensus-specs/blob/dev/specs/altair/light-client/sync-protocol.md#lightclientupdate
type LightClientUpdate struct {
	AttestedHeader          SignedHeader            // Header signed by the sync committee
	NextSyncCommittee       SerializedSyncCommittee // Sync committee of the next period advertised in the attested one, empty if absent
	NextSyncCommitteeBranch merkle.Values           // Proof for the next period's sync committee

	FinalizedHeader *Header       `rlp:"nil"` // Optional header to announce a point of finality
	FinalityBranch  merkle.Values // Proof for the announced finality
}

// HasNextSyncCommittee returns true if the update carries a committee for the
// period after the attested header's.
func (update *LightClientUpdate) HasNextSyncCommittee() bool {
	return !update.NextSyncCommittee.IsEmpty()
}

// VerifyFinality verifies the proof of the finalized header against the state
// root of the attested header. It is a no-op for updates without finality.
func (update *LightClientUpdate) VerifyFinality(spec params.ForkSpec) error {
	if update.FinalizedHeader == nil {
		return nil
	}
	if update.FinalizedHeader.Slot > update.AttestedHeader.Header.Slot {
		return fmt.Errorf("finalized slot %d is above attested slot %d", update.FinalizedHeader.Slot, update.AttestedHeader.Header.Slot)
	}
	return merkle.VerifyProof(update.AttestedHeader.Header.StateRoot, spec.FinalizedRootIndex, update.FinalityBranch, merkle.Value(update.FinalizedHeader.Hash()))
}

// VerifyNextSyncCommittee verifies the proof of the next sync committee
// against the state root of the attested header. It is a no-op for updates
// without a next committee.
func (update *LightClientUpdate) VerifyNextSyncCommittee(spec params.ForkSpec) error {
	if !update.HasNextSyncCommittee() {
		return nil
	}
	return merkle.VerifyProof(update.AttestedHeader.Header.StateRoot, spec.NextCommitteeIndex, update.NextSyncCommitteeBranch, merkle.Value(update.NextSyncCommittee.Root()))
}

// Score returns the UpdateScore describing the proof strength of the update.
func (update *LightClientUpdate) Score() UpdateScore {
	return UpdateScore{
		SignerCount:     uint32(update.AttestedHeader.Signature.SignerCount()),
		AttestedSlot:    update.AttestedHeader.Header.Slot,
		FinalizedHeader: update.FinalizedHeader != nil,
	}
}

// UpdateScore allows the comparison between verified updates in order to
// select the one that is promoted when no finality proof arrives in time.
type UpdateScore struct {
	SignerCount     uint32 // number of signers in the header signature aggregate
	AttestedSlot    uint64 // slot of the signed header
	FinalizedHeader bool   // update carries a finality proof
}

// BetterThan returns true if update u is considered better than w. Higher
// participation wins, equal participation is decided by the newer header.
func (u UpdateScore) BetterThan(w UpdateScore) bool {
	if u.SignerCount != w.SignerCount {
		return u.SignerCount > w.SignerCount
	}
	return u.AttestedSlot > w.AttestedSlot
}

// jsonLightClientHeader is the beacon API representation of a light client
// header. Since Capella the beacon header is wrapped together with the
// execution payload header, Altair encodes the beacon header directly.
type jsonLightClientHeader struct {
	Beacon Header `json:"beacon"`
}

func (h *jsonLightClientHeader) UnmarshalJSON(input []byte) error {
	var wrapped struct {
		Beacon *Header `json:"beacon"`
	}
	if err := json.Unmarshal(input, &wrapped); err != nil {
		return err
	}
	if wrapped.Beacon != nil {
		h.Beacon = *wrapped.Beacon
		return nil
	}
	return json.Unmarshal(input, &h.Beacon)
}

type jsonLightClientUpdate struct {
	AttestedHeader          jsonLightClientHeader   `json:"attested_header"`
	NextSyncCommittee       SerializedSyncCommittee `json:"next_sync_committee,omitempty"`
	NextSyncCommitteeBranch merkle.Values           `json:"next_sync_committee_branch,omitempty"`
	FinalizedHeader         *jsonLightClientHeader  `json:"finalized_header,omitempty"`
	FinalityBranch          merkle.Values           `json:"finality_branch,omitempty"`
	SyncAggregate           SyncAggregate           `json:"sync_aggregate"`
	SignatureSlot           decimal                 `json:"signature_slot"`
}

// MarshalJSON encodes the update in the beacon API format.
func (update LightClientUpdate) MarshalJSON() ([]byte, error) {
	enc := jsonLightClientUpdate{
		AttestedHeader:          jsonLightClientHeader{Beacon: update.AttestedHeader.Header},
		NextSyncCommitteeBranch: update.NextSyncCommitteeBranch,
		FinalityBranch:          update.FinalityBranch,
		SyncAggregate:           update.AttestedHeader.Signature,
		SignatureSlot:           decimal(update.AttestedHeader.SignatureSlot),
	}
	if update.HasNextSyncCommittee() {
		enc.NextSyncCommittee = update.NextSyncCommittee
	}
	if update.FinalizedHeader != nil {
		enc.FinalizedHeader = &jsonLightClientHeader{Beacon: *update.FinalizedHeader}
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON decodes the update from the beacon API format (used by all of
// the updates, finality_update and optimistic_update endpoints). Zero filled
// committees and finalized headers are treated as absent.
func (update *LightClientUpdate) UnmarshalJSON(input []byte) error {
	var dec jsonLightClientUpdate
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	update.AttestedHeader = SignedHeader{
		Header:        dec.AttestedHeader.Beacon,
		Signature:     dec.SyncAggregate,
		SignatureSlot: uint64(dec.SignatureSlot),
	}
	update.NextSyncCommittee, update.NextSyncCommitteeBranch = nil, nil
	if !dec.NextSyncCommittee.IsEmpty() {
		update.NextSyncCommittee = dec.NextSyncCommittee
		update.NextSyncCommitteeBranch = dec.NextSyncCommitteeBranch
	}
	update.FinalizedHeader, update.FinalityBranch = nil, nil
	if dec.FinalizedHeader != nil && dec.FinalizedHeader.Beacon != (Header{}) {
		header := dec.FinalizedHeader.Beacon
		update.FinalizedHeader = &header
		update.FinalityBranch = dec.FinalityBranch
	}
	return nil
}

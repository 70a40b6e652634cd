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

package light

import (
	"bytes"
	"fmt"

	"github.com/evmlc/evm-light-client/beacon/merkle"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// CommitteeProof anchors a sync committee in the beacon state of a header:
// the committee root is proven by Branch at generalized index Index against
// Header.StateRoot. Index is either the current or the next committee index of
// the header's fork.
type CommitteeProof struct {
	Header types.Header
	Branch merkle.Values
	Index  uint64
}

// period returns the sync period the proven committee belongs to.
func (p *CommitteeProof) period(config *params.ChainConfig) (uint64, error) {
	spec, err := config.ForkSpec(p.Header.Slot)
	if err != nil {
		return 0, err
	}
	period := config.SyncPeriod(p.Header.Slot)
	switch p.Index {
	case spec.CurrentCommitteeIndex:
		return period, nil
	case spec.NextCommitteeIndex:
		return period + 1, nil
	}
	return 0, fmt.Errorf("unexpected committee index %d at slot %d", p.Index, p.Header.Slot)
}

// verify checks the proof for the given committee and returns the committee's
// sync period.
func (p *CommitteeProof) verify(config *params.ChainConfig, committee types.SerializedSyncCommittee) (uint64, error) {
	period, err := p.period(config)
	if err != nil {
		return 0, err
	}
	if err := merkle.VerifyProof(p.Header.StateRoot, p.Index, p.Branch, merkle.Value(committee.Root())); err != nil {
		return 0, err
	}
	return period, nil
}

// Store is the trusted state of the light client. A Store is never modified
// after it has been published by the LightClient; every accepted mutation
// produces a new Store, so snapshots can be read without locking.
//
// The following invariants are checked by checkInvariants:
//   - Finalized.Slot <= Optimistic.Slot
//   - CurrentCommittee, when present, is proven for period(Finalized.Slot)
//   - NextCommittee, when present, is proven for period(Finalized.Slot)+1
//
// A missing CurrentCommittee means that finality crossed a period boundary
// before the next committee was known. Updates signed in that period can not
// be verified until the client is reinitialized.
type Store struct {
	Finalized  types.Header
	Optimistic types.Header

	CurrentCommittee types.SerializedSyncCommittee
	CurrentProof     *CommitteeProof
	NextCommittee    types.SerializedSyncCommittee
	NextProof        *CommitteeProof

	// BestValidUpdate is the best verified update since the last finality
	// advance, promoted by force-update when finality stalls.
	BestValidUpdate *types.LightClientUpdate
}

// FinalizedPeriod returns the sync period of the finalized header.
func (s *Store) FinalizedPeriod(config *params.ChainConfig) uint64 {
	return config.SyncPeriod(s.Finalized.Slot)
}

// HasCurrentCommittee returns false if the store is in degraded state.
func (s *Store) HasCurrentCommittee() bool {
	return len(s.CurrentCommittee) != 0
}

// HasNextCommittee returns true if the committee of the next period is known.
func (s *Store) HasNextCommittee() bool {
	return len(s.NextCommittee) != 0
}

// copy returns a shallow copy. Headers are values and committees are never
// modified in place, so sharing them between snapshots is safe.
func (s *Store) copy() *Store {
	c := *s
	return &c
}

// Equal reports whether two stores hold the same state.
func (s *Store) Equal(o *Store) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Finalized == o.Finalized &&
		s.Optimistic == o.Optimistic &&
		bytes.Equal(s.CurrentCommittee, o.CurrentCommittee) &&
		bytes.Equal(s.NextCommittee, o.NextCommittee) &&
		proofEqual(s.CurrentProof, o.CurrentProof) &&
		proofEqual(s.NextProof, o.NextProof) &&
		updateEqual(s.BestValidUpdate, o.BestValidUpdate)
}

func proofEqual(a, b *CommitteeProof) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Header != b.Header || a.Index != b.Index || len(a.Branch) != len(b.Branch) {
		return false
	}
	for i := range a.Branch {
		if a.Branch[i] != b.Branch[i] {
			return false
		}
	}
	return true
}

func updateEqual(a, b *types.LightClientUpdate) bool {
	if a == nil || b == nil {
		return a == b
	}
	ea, err := encodeUpdate(a)
	if err != nil {
		return false
	}
	eb, err := encodeUpdate(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// checkInvariants verifies the consistency of the store, including the
// committee proofs.
func (s *Store) checkInvariants(config *params.ChainConfig) error {
	if s.Finalized.Slot > s.Optimistic.Slot {
		return fmt.Errorf("finalized slot %d above optimistic slot %d", s.Finalized.Slot, s.Optimistic.Slot)
	}
	period := s.FinalizedPeriod(config)
	check := func(name string, committee types.SerializedSyncCommittee, proof *CommitteeProof, want uint64) error {
		if len(committee) == 0 {
			if proof != nil {
				return fmt.Errorf("%s committee proof without committee", name)
			}
			return nil
		}
		if err := committee.CheckSize(config.SyncCommitteeSize); err != nil {
			return fmt.Errorf("%s committee: %w", name, err)
		}
		if proof == nil {
			return fmt.Errorf("%s committee without proof", name)
		}
		have, err := proof.verify(config, committee)
		if err != nil {
			return fmt.Errorf("%s committee proof: %w", name, err)
		}
		if have != want {
			return fmt.Errorf("%s committee proven for period %d, want %d", name, have, want)
		}
		return nil
	}
	if err := check("current", s.CurrentCommittee, s.CurrentProof, period); err != nil {
		return err
	}
	if err := check("next", s.NextCommittee, s.NextProof, period+1); err != nil {
		return err
	}
	if s.BestValidUpdate != nil && s.BestValidUpdate.AttestedHeader.Header.Slot <= s.Finalized.Slot {
		return fmt.Errorf("best valid update at slot %d not above finalized slot %d", s.BestValidUpdate.AttestedHeader.Header.Slot, s.Finalized.Slot)
	}
	return nil
}

// Status is a summary of the store.
type Status struct {
	FinalizedSlot    uint64 `json:"finalizedSlot"`
	FinalizedRoot    string `json:"finalizedRoot"`
	OptimisticSlot   uint64 `json:"optimisticSlot"`
	OptimisticRoot   string `json:"optimisticRoot"`
	Period           uint64 `json:"period"`
	CurrentCommittee string `json:"currentCommittee,omitempty"`
	NextCommittee    string `json:"nextCommittee,omitempty"`
	BestUpdateSlot   uint64 `json:"bestUpdateSlot,omitempty"`
	Degraded         bool   `json:"degraded"`
}

func (s *Store) status(config *params.ChainConfig) Status {
	st := Status{
		FinalizedSlot:  s.Finalized.Slot,
		FinalizedRoot:  s.Finalized.Hash().Hex(),
		OptimisticSlot: s.Optimistic.Slot,
		OptimisticRoot: s.Optimistic.Hash().Hex(),
		Period:         s.FinalizedPeriod(config),
		Degraded:       !s.HasCurrentCommittee(),
	}
	if s.HasCurrentCommittee() {
		st.CurrentCommittee = s.CurrentCommittee.Root().Hex()
	}
	if s.HasNextCommittee() {
		st.NextCommittee = s.NextCommittee.Root().Hex()
	}
	if s.BestValidUpdate != nil {
		st.BestUpdateSlot = s.BestValidUpdate.AttestedHeader.Header.Slot
	}
	return st
}

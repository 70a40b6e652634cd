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

	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// Outcome is the effect of an update on the store.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeNoChange
	OutcomeAdvanceOptimistic
	OutcomeAdvanceFinalized
)

var outcomeNames = [...]string{
	OutcomeRejected:          "rejected",
	OutcomeNoChange:          "noChange",
	OutcomeAdvanceOptimistic: "advanceOptimistic",
	OutcomeAdvanceFinalized:  "advanceFinalized",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(input []byte) error {
	for i, name := range outcomeNames {
		if name == string(input) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", input)
}

// decision is the result of validating an update against a store snapshot.
// It is computed without touching the store, applyDecision turns it into a
// new store.
type decision struct {
	update           *types.LightClientUpdate
	spec             params.ForkSpec
	finalityImproves bool // carries a finalized header above the store's
	newOptimistic    bool // attested header above the store's optimistic header
}

func (d *decision) outcome() Outcome {
	switch {
	case d.finalityImproves:
		return OutcomeAdvanceFinalized
	case d.newOptimistic:
		return OutcomeAdvanceOptimistic
	default:
		return OutcomeNoChange
	}
}

// validator holds the parameters of update validation.
type validator struct {
	config      *params.ChainConfig
	verifier    *signatureVerifier
	enforceTime bool
}

// validate checks the update against the store snapshot. currentSlot is the
// wall clock slot, only used if time is enforced. The returned error is
// ErrStale if the update is valid but brings no new information.
func (v *validator) validate(store *Store, update *types.LightClientUpdate, currentSlot uint64) (*decision, error) {
	var (
		attested = &update.AttestedHeader.Header
		sigSlot  = update.AttestedHeader.SignatureSlot
	)
	if attested.Slot < store.Finalized.Slot {
		return nil, fmt.Errorf("%w: attested slot %d below finalized slot %d", ErrStale, attested.Slot, store.Finalized.Slot)
	}
	if sigSlot <= attested.Slot {
		return nil, fmt.Errorf("%w: signature slot %d not after attested slot %d", ErrInvalidUpdate, sigSlot, attested.Slot)
	}
	if v.enforceTime && sigSlot > currentSlot+1 {
		return nil, fmt.Errorf("%w: signature slot %d, current slot %d", ErrFutureUpdate, sigSlot, currentSlot)
	}
	spec, err := v.config.ForkSpec(attested.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	// Structural checks of the optional parts.
	if update.FinalizedHeader != nil {
		if err := update.VerifyFinality(spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFinalityProof, err)
		}
		if update.FinalizedHeader.Slot == store.Finalized.Slot && *update.FinalizedHeader != store.Finalized {
			return nil, fmt.Errorf("%w: conflicting finalized header at slot %d", ErrInvalidFinalityProof, store.Finalized.Slot)
		}
	}
	storePeriod := store.FinalizedPeriod(v.config)
	if update.HasNextSyncCommittee() {
		if err := update.NextSyncCommittee.CheckSize(v.config.SyncCommitteeSize); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommitteeProof, err)
		}
		if err := update.VerifyNextSyncCommittee(spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommitteeProof, err)
		}
		if _, err := v.verifier.committee(update.NextSyncCommittee); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCommitteeProof, err)
		}
		if v.config.SyncPeriod(attested.Slot) == storePeriod && store.HasNextCommittee() && !bytes.Equal(store.NextCommittee, update.NextSyncCommittee) {
			return nil, fmt.Errorf("%w: next committee conflicts with known committee of period %d", ErrInvalidCommitteeProof, storePeriod+1)
		}
	}
	// Committee selection by the signature period.
	var committee types.SerializedSyncCommittee
	switch sigPeriod := v.config.SyncPeriod(sigSlot); sigPeriod {
	case storePeriod:
		if !store.HasCurrentCommittee() {
			return nil, fmt.Errorf("%w: %d (current committee unknown)", ErrMissingCommitteeForPeriod, sigPeriod)
		}
		committee = store.CurrentCommittee
	case storePeriod + 1:
		if !store.HasNextCommittee() {
			return nil, fmt.Errorf("%w: %d (next committee unknown)", ErrMissingCommitteeForPeriod, sigPeriod)
		}
		committee = store.NextCommittee
	default:
		return nil, fmt.Errorf("%w: %d (store period %d)", ErrMissingCommitteeForPeriod, sigPeriod, storePeriod)
	}
	signingRoot, err := v.config.SigningRoot(sigSlot, attested.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if err := v.verifier.verify(committee, signingRoot, &update.AttestedHeader.Signature); err != nil {
		return nil, err
	}
	d := &decision{
		update:           update,
		spec:             spec,
		finalityImproves: update.FinalizedHeader != nil && update.FinalizedHeader.Slot > store.Finalized.Slot,
		newOptimistic:    attested.Slot > store.Optimistic.Slot,
	}
	// A next committee alone does not make an update acceptable, stale updates
	// never touch the store.
	if !d.newOptimistic && !d.finalityImproves {
		return nil, fmt.Errorf("%w: attested slot %d, optimistic slot %d", ErrStale, attested.Slot, store.Optimistic.Slot)
	}
	return d, nil
}

// applyDecision returns the store resulting from a validated update. The
// input store is not modified.
func applyDecision(config *params.ChainConfig, store *Store, d *decision) *Store {
	var (
		next     = store.copy()
		update   = d.update
		attested = update.AttestedHeader.Header
	)
	if d.newOptimistic {
		next.Optimistic = attested
	}
	if d.finalityImproves {
		next.Finalized = *update.FinalizedHeader
		if config.SyncPeriod(next.Finalized.Slot) != config.SyncPeriod(store.Finalized.Slot) {
			// The next committee becomes current. If it was never established the
			// store is left without a current committee.
			next.CurrentCommittee, next.CurrentProof = store.NextCommittee, store.NextProof
			next.NextCommittee, next.NextProof = nil, nil
		}
		next.BestValidUpdate = nil
		if next.Optimistic.Slot < next.Finalized.Slot {
			next.Optimistic = next.Finalized
		}
	}
	if update.HasNextSyncCommittee() && !next.HasNextCommittee() && config.SyncPeriod(attested.Slot) == next.FinalizedPeriod(config) {
		next.NextCommittee = update.NextSyncCommittee
		next.NextProof = &CommitteeProof{
			Header: attested,
			Branch: update.NextSyncCommitteeBranch,
			Index:  d.spec.NextCommitteeIndex,
		}
	}
	if !d.finalityImproves && attested.Slot > next.Finalized.Slot && (next.BestValidUpdate == nil || update.Score().BetterThan(next.BestValidUpdate.Score())) {
		next.BestValidUpdate = update
	}
	return next
}

// forceUpdate promotes the best valid update if finality did not advance for
// longer than the update timeout. It returns nil if there is nothing to do.
// Unless the best update proves a newer finalized header, its attested header
// is treated as finalized.
func forceUpdate(config *params.ChainConfig, store *Store, currentSlot uint64) *Store {
	best := store.BestValidUpdate
	if best == nil || currentSlot <= store.Finalized.Slot+config.UpdateTimeout() {
		return nil
	}
	spec, err := config.ForkSpec(best.AttestedHeader.Header.Slot)
	if err != nil {
		return nil
	}
	promoted := *best
	if promoted.FinalizedHeader == nil || promoted.FinalizedHeader.Slot <= store.Finalized.Slot {
		attested := promoted.AttestedHeader.Header
		promoted.FinalizedHeader, promoted.FinalityBranch = &attested, nil
	}
	next := applyDecision(config, store, &decision{
		update:           &promoted,
		spec:             spec,
		finalityImproves: true,
		newOptimistic:    promoted.AttestedHeader.Header.Slot > store.Optimistic.Slot,
	})
	next.BestValidUpdate = nil
	return next
}

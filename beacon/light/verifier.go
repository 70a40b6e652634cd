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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// signatureVerifier checks sync committee signatures with participation
// threshold. Deserialized committees are cached by committee root since key
// decompression is the expensive part of verification.
type signatureVerifier struct {
	threshold       params.Fraction
	minParticipants int
	committees      *lru.Cache[common.Hash, *types.SyncCommittee]
}

func newSignatureVerifier(threshold params.Fraction, minParticipants int) *signatureVerifier {
	return &signatureVerifier{
		threshold:       threshold,
		minParticipants: minParticipants,
		committees:      lru.NewCache[common.Hash, *types.SyncCommittee](4),
	}
}

// required returns the minimum number of signers for a committee of size n.
func (v *signatureVerifier) required(n int) int {
	required := v.threshold.Required(n)
	if required < v.minParticipants {
		required = v.minParticipants
	}
	return required
}

// committee returns the deserialized form of a serialized committee.
func (v *signatureVerifier) committee(sc types.SerializedSyncCommittee) (*types.SyncCommittee, error) {
	root := sc.Root()
	if c, ok := v.committees.Get(root); ok {
		return c, nil
	}
	c, err := sc.Deserialize()
	if err != nil {
		return nil, err
	}
	v.committees.Add(root, c)
	return c, nil
}

// verify checks that enough members of the committee signed the signing
// root. It has no side effects besides filling the committee cache.
func (v *signatureVerifier) verify(sc types.SerializedSyncCommittee, signingRoot common.Hash, aggregate *types.SyncAggregate) error {
	committee, err := v.committee(sc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingCommitteeForPeriod, err)
	}
	if len(aggregate.Signers)*8 != committee.Size() {
		return fmt.Errorf("%w: %d participation bits for %d members", ErrInvalidSignature, len(aggregate.Signers)*8, committee.Size())
	}
	if count, required := aggregate.SignerCount(), v.required(committee.Size()); count < required {
		return fmt.Errorf("%w: %d of %d signers, need %d", ErrInsufficientParticipation, count, committee.Size(), required)
	}
	if !committee.VerifySignature(signingRoot, aggregate) {
		return ErrInvalidSignature
	}
	return nil
}

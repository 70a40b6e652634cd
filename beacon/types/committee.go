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
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/evmlc/evm-light-client/beacon/params"
	bls "github.com/protolambda/bls12-381-util"
	"github.com/prysmaticlabs/go-bitfield"
)

var (
	ErrCommitteeSize     = errors.New("invalid sync committee size")
	ErrAggregateMismatch = errors.New("aggregate pubkey mismatch")
	ErrSignersSize       = errors.New("invalid sync committee bitfield size")
)

// SerializedSyncCommittee is the serialized version of a sync committee
// plus the aggregate public key: the member pubkeys followed by the aggregate,
// 48 bytes each. The committee size is implied by the length.
type SerializedSyncCommittee []byte

// SerializeSyncCommittee assembles a serialized committee from its member
// keys and aggregate key.
func SerializeSyncCommittee(pubkeys [][params.BLSPubkeySize]byte, aggregate [params.BLSPubkeySize]byte) SerializedSyncCommittee {
	s := make(SerializedSyncCommittee, 0, (len(pubkeys)+1)*params.BLSPubkeySize)
	for _, key := range pubkeys {
		s = append(s, key[:]...)
	}
	return append(s, aggregate[:]...)
}

// Size returns the number of committee members.
func (s SerializedSyncCommittee) Size() int {
	if len(s) < 2*params.BLSPubkeySize || len(s)%params.BLSPubkeySize != 0 {
		return 0
	}
	return len(s)/params.BLSPubkeySize - 1
}

// CheckSize returns an error if the serialized committee does not have
// exactly n members.
func (s SerializedSyncCommittee) CheckSize(n int) error {
	if len(s) != (n+1)*params.BLSPubkeySize {
		return fmt.Errorf("%w: have %d bytes, want %d members", ErrCommitteeSize, len(s), n)
	}
	return nil
}

// IsEmpty returns true if the committee is missing or consists of zero keys
// only. Beacon nodes fill unknown committees with zeroes.
func (s SerializedSyncCommittee) IsEmpty() bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}

// Pubkey returns the serialized key of the i-th member.
func (s SerializedSyncCommittee) Pubkey(i int) []byte {
	return s[i*params.BLSPubkeySize : (i+1)*params.BLSPubkeySize]
}

// AggregatePubkey returns the serialized aggregate key.
func (s SerializedSyncCommittee) AggregatePubkey() []byte {
	return s[len(s)-params.BLSPubkeySize:]
}

// jsonSyncCommittee is the JSON representation of a sync committee.
//
// See data structure definition here:
// https://github.com/ethereum/consensus-specs/blob/dev/specs/altair/beacon-chain.md#synccommittee
type jsonSyncCommittee struct {
	Pubkeys   []hexutil.Bytes `json:"pubkeys"`
	Aggregate hexutil.Bytes   `json:"aggregate_pubkey"`
}

// MarshalJSON implements json.Marshaler.
func (s SerializedSyncCommittee) MarshalJSON() ([]byte, error) {
	n := s.Size()
	if n == 0 {
		return []byte("null"), nil
	}
	sc := jsonSyncCommittee{Pubkeys: make([]hexutil.Bytes, n)}
	for i := range sc.Pubkeys {
		sc.Pubkeys[i] = bytes.Clone(s.Pubkey(i))
	}
	sc.Aggregate = bytes.Clone(s.AggregatePubkey())
	return json.Marshal(&sc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SerializedSyncCommittee) UnmarshalJSON(input []byte) error {
	if string(input) == "null" {
		*s = nil
		return nil
	}
	var sc jsonSyncCommittee
	if err := json.Unmarshal(input, &sc); err != nil {
		return err
	}
	if len(sc.Pubkeys) == 0 {
		return fmt.Errorf("%w: no pubkeys", ErrCommitteeSize)
	}
	out := make(SerializedSyncCommittee, 0, (len(sc.Pubkeys)+1)*params.BLSPubkeySize)
	for i, key := range sc.Pubkeys {
		if len(key) != params.BLSPubkeySize {
			return fmt.Errorf("pubkey %d has invalid size %d", i, len(key))
		}
		out = append(out, key...)
	}
	if len(sc.Aggregate) != params.BLSPubkeySize {
		return fmt.Errorf("invalid aggregate pubkey size %d", len(sc.Aggregate))
	}
	*s = append(out, sc.Aggregate...)
	return nil
}

// Root calculates the root hash of the binary tree representation of a sync
// committee provided in serialized format. The member list is padded with
// zero leaves up to the next power of two.
func (s SerializedSyncCommittee) Root() common.Hash {
	n := s.Size()
	if n == 0 {
		return common.Hash{}
	}
	var (
		hasher  = sha256.New()
		padding [64 - params.BLSPubkeySize]byte
		width   = 1 << bits.Len(uint(n-1))
		data    = make([]common.Hash, width)
		root    common.Hash
	)
	for i := 0; i < n; i++ {
		hasher.Reset()
		hasher.Write(s.Pubkey(i))
		hasher.Write(padding[:])
		hasher.Sum(data[i][:0])
	}
	for l := width; l > 1; l /= 2 {
		for i := 0; i < l/2; i++ {
			hasher.Reset()
			hasher.Write(data[i*2][:])
			hasher.Write(data[i*2+1][:])
			hasher.Sum(data[i][:0])
		}
	}
	hasher.Reset()
	hasher.Write(s.AggregatePubkey())
	hasher.Write(padding[:])
	hasher.Sum(root[:0])
	hasher.Reset()
	hasher.Write(data[0][:])
	hasher.Write(root[:])
	hasher.Sum(root[:0])
	return root
}

// Deserialize splits open the pubkeys into proper BLS key types and checks
// that the advertised aggregate key matches the members.
func (s SerializedSyncCommittee) Deserialize() (*SyncCommittee, error) {
	n := s.Size()
	if n == 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCommitteeSize, len(s))
	}
	sc := &SyncCommittee{keys: make([]*bls.Pubkey, n)}
	for i := 0; i <= n; i++ {
		key := new(bls.Pubkey)

		var raw [params.BLSPubkeySize]byte
		copy(raw[:], s[i*params.BLSPubkeySize:(i+1)*params.BLSPubkeySize])

		if err := key.Deserialize(&raw); err != nil {
			return nil, fmt.Errorf("invalid pubkey %d: %w", i, err)
		}
		if i < n {
			sc.keys[i] = key
		} else {
			sc.aggregate = key
		}
	}
	aggregate, err := bls.AggregatePubkeys(sc.keys)
	if err != nil {
		return nil, err
	}
	if aggregate.Serialize() != sc.aggregate.Serialize() {
		return nil, ErrAggregateMismatch
	}
	return sc, nil
}

// SyncCommittee is a set of sync committee signer pubkeys and the aggregate key.
//
// See data structure definition here:
// https://github.com/ethereum/consensus-specs/blob/dev/specs/altair/beacon-chain.md#synccommittee
type SyncCommittee struct {
	keys      []*bls.Pubkey
	aggregate *bls.Pubkey
}

// Size returns the number of committee members.
func (sc *SyncCommittee) Size() int {
	return len(sc.keys)
}

// EffectiveKey sums the keys of the members marked in the participation
// bitfield.
func (sc *SyncCommittee) EffectiveKey(signers bitfield.Bitfield) (*bls.Pubkey, error) {
	if signers.Len() != uint64(len(sc.keys)) {
		return nil, fmt.Errorf("%w: %d bits for %d members", ErrSignersSize, signers.Len(), len(sc.keys))
	}
	indices := signers.BitIndices()
	if len(indices) == 0 {
		return nil, errors.New("no signers")
	}
	keys := make([]*bls.Pubkey, len(indices))
	for i, index := range indices {
		keys[i] = sc.keys[index]
	}
	return bls.AggregatePubkeys(keys)
}

// VerifySignature returns true if the given sync aggregate is a valid signature
// or the given hash.
func (sc *SyncCommittee) VerifySignature(signingRoot common.Hash, signature *SyncAggregate) bool {
	var sig bls.Signature
	if err := sig.Deserialize(&signature.Signature); err != nil {
		return false
	}
	signers, err := signature.Bitfield()
	if err != nil {
		return false
	}
	key, err := sc.EffectiveKey(signers)
	if err != nil {
		return false
	}
	return bls.Verify(key, signingRoot[:], &sig)
}

// SyncAggregate represents an aggregated BLS signature with Signers referring
// to a subset of the corresponding sync committee.
//
// See data structure definition here:
// https://github.com/ethereum/consensus-specs/blob/dev/specs/altair/beacon-chain.md#syncaggregate
type SyncAggregate struct {
	Signers   hexutil.Bytes                  `json:"sync_committee_bits"`
	Signature [params.BLSSignatureSize]byte `json:"sync_committee_signature"`
}

type syncAggregateMarshaling struct {
	Signers   hexutil.Bytes `json:"sync_committee_bits"`
	Signature hexutil.Bytes `json:"sync_committee_signature"`
}

// MarshalJSON marshals as JSON.
func (s SyncAggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(&syncAggregateMarshaling{
		Signers:   s.Signers,
		Signature: s.Signature[:],
	})
}

// UnmarshalJSON unmarshals from JSON.
func (s *SyncAggregate) UnmarshalJSON(input []byte) error {
	var dec syncAggregateMarshaling
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.Signers == nil {
		return errors.New("missing required field 'sync_committee_bits' for SyncAggregate")
	}
	if len(dec.Signature) != params.BLSSignatureSize {
		return fmt.Errorf("invalid signature size %d", len(dec.Signature))
	}
	s.Signers = dec.Signers
	copy(s.Signature[:], dec.Signature)
	return nil
}

// Bitfield returns the participation bits as a bitvector of the committee
// size implied by the length of Signers.
func (s *SyncAggregate) Bitfield() (bitfield.Bitfield, error) {
	switch len(s.Signers) {
	case 1:
		return bitfield.Bitvector8(s.Signers), nil
	case 4:
		return bitfield.Bitvector32(s.Signers), nil
	case 8:
		return bitfield.Bitvector64(s.Signers), nil
	case 16:
		return bitfield.Bitvector128(s.Signers), nil
	case 32:
		return bitfield.Bitvector256(s.Signers), nil
	case 64:
		return bitfield.Bitvector512(s.Signers), nil
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrSignersSize, len(s.Signers))
}

// SignerCount returns the number of signers in the aggregate signature.
func (s *SyncAggregate) SignerCount() int {
	var count int
	for _, v := range s.Signers {
		count += bits.OnesCount8(v)
	}
	return count
}

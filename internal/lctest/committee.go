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

// Package lctest generates deterministic sync committees, signed headers and
// light client updates with valid proofs for tests.
package lctest

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	bls "github.com/protolambda/bls12-381-util"
	"github.com/prysmaticlabs/go-bitfield"
)

// Committee is a sync committee with known secret keys.
type Committee struct {
	secrets    []*bls.SecretKey
	Serialized types.SerializedSyncCommittee
}

// NewCommittee generates a committee of the given size. Committees created
// with the same seed are identical.
func NewCommittee(size int, seed uint64) *Committee {
	var (
		c       = &Committee{secrets: make([]*bls.SecretKey, size)}
		pubkeys = make([][params.BLSPubkeySize]byte, size)
		keys    = make([]*bls.Pubkey, size)
	)
	for i := range c.secrets {
		var raw [32]byte
		binary.BigEndian.PutUint64(raw[16:24], seed+1)
		binary.BigEndian.PutUint64(raw[24:], uint64(i)+1)
		sk := new(bls.SecretKey)
		if err := sk.Deserialize(&raw); err != nil {
			panic(fmt.Errorf("invalid secret key %d: %v", i, err))
		}
		pk, err := bls.SkToPk(sk)
		if err != nil {
			panic(err)
		}
		c.secrets[i], keys[i], pubkeys[i] = sk, pk, pk.Serialize()
	}
	aggregate, err := bls.AggregatePubkeys(keys)
	if err != nil {
		panic(err)
	}
	c.Serialized = types.SerializeSyncCommittee(pubkeys, aggregate.Serialize())
	return c
}

// Size returns the number of committee members.
func (c *Committee) Size() int {
	return len(c.secrets)
}

// Root returns the committee root.
func (c *Committee) Root() common.Hash {
	return c.Serialized.Root()
}

// Signers returns a participation list where the first count members sign.
func Signers(count int) []int {
	list := make([]int, count)
	for i := range list {
		list[i] = i
	}
	return list
}

// Sign creates a sync aggregate of the listed members over the header, signed
// at the given slot.
func (c *Committee) Sign(config *params.ChainConfig, header types.Header, signatureSlot uint64, signers []int) types.SyncAggregate {
	signingRoot, err := config.SigningRoot(signatureSlot, header.Hash())
	if err != nil {
		panic(err)
	}
	return c.SignRoot(signingRoot, signers)
}

// SignRoot creates a sync aggregate of the listed members over a signing root.
func (c *Committee) SignRoot(signingRoot common.Hash, signers []int) types.SyncAggregate {
	bits := newBitvector(len(c.secrets))
	sigs := make([]*bls.Signature, 0, len(signers))
	for _, index := range signers {
		bits.SetBitAt(uint64(index), true)
		sigs = append(sigs, bls.Sign(c.secrets[index], signingRoot[:]))
	}
	aggregate := types.SyncAggregate{Signers: bits.Bytes()}
	if len(sigs) == 0 {
		return aggregate
	}
	sig, err := bls.Aggregate(sigs)
	if err != nil {
		panic(err)
	}
	aggregate.Signature = sig.Serialize()
	return aggregate
}

func newBitvector(size int) bitfield.Bitfield {
	switch size {
	case 8:
		return bitfield.NewBitvector8()
	case 32:
		return bitfield.NewBitvector32()
	case 64:
		return bitfield.NewBitvector64()
	case 128:
		return bitfield.NewBitvector128()
	case 256:
		return bitfield.NewBitvector256()
	case 512:
		return bitfield.NewBitvector512()
	}
	panic(fmt.Errorf("unsupported committee size %d", size))
}

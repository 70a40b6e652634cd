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

// Package merkle implements proof verifications in binary merkle trees.
package merkle

import (
	"crypto/sha256"
	"errors"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrExtraItems   = errors.New("branch has extra items")
	ErrMissingItems = errors.New("branch is missing items")
	ErrRootMismatch = errors.New("root mismatch")
)

// Value represents either a 32 byte leaf value or hash node in a binary merkle tree/partial proof.
type Value [32]byte

// Values represent a series of merkle tree leaves/nodes.
type Values []Value

var valueT = reflect.TypeOf(Value{})

// MarshalText encodes the value in hex syntax.
func (m Value) MarshalText() ([]byte, error) {
	return hexutil.Bytes(m[:]).MarshalText()
}

// UnmarshalJSON parses a merkle value in hex syntax.
func (m *Value) UnmarshalJSON(input []byte) error {
	return hexutil.UnmarshalFixedJSON(valueT, input, m[:])
}

// Hash combines two sibling nodes into their parent.
func Hash(left, right Value) (parent Value) {
	hasher := sha256.New()
	hasher.Write(left[:])
	hasher.Write(right[:])
	hasher.Sum(parent[:0])
	return parent
}

// ComputeRoot calculates the root of the tree implied by a proof branch for
// a single value (index is a generalized tree index).
func ComputeRoot(index uint64, branch Values, value Value) (common.Hash, error) {
	hasher := sha256.New()
	for _, sibling := range branch {
		hasher.Reset()
		if index&1 == 0 {
			hasher.Write(value[:])
			hasher.Write(sibling[:])
		} else {
			hasher.Write(sibling[:])
			hasher.Write(value[:])
		}
		hasher.Sum(value[:0])
		if index >>= 1; index == 0 {
			return common.Hash{}, ErrExtraItems
		}
	}
	if index != 1 {
		return common.Hash{}, ErrMissingItems
	}
	return common.Hash(value), nil
}

// VerifyProof verifies a Merkle proof branch for a single value in a
// binary Merkle tree (index is a generalized tree index).
func VerifyProof(root common.Hash, index uint64, branch Values, value Value) error {
	computed, err := ComputeRoot(index, branch, value)
	if err != nil {
		return err
	}
	if computed != root {
		return ErrRootMismatch
	}
	return nil
}

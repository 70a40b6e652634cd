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

package merkle

import (
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
)

// Tree is a sparse binary merkle tree built from a set of leaves at arbitrary
// generalized indices. Subtrees without any leaf are represented by a zero
// value. It is used for assembling state roots and proofs of partially known
// containers.
type Tree struct {
	leaves    map[uint64]Value
	ancestors map[uint64]struct{}
	nodes     map[uint64]Value
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		leaves:    make(map[uint64]Value),
		ancestors: make(map[uint64]struct{}),
	}
}

// Set places a leaf at the given generalized index. It fails if the index
// would be an ancestor or descendant of an already existing leaf.
func (t *Tree) Set(index uint64, value Value) error {
	if index == 0 {
		return fmt.Errorf("invalid generalized index 0")
	}
	if _, ok := t.ancestors[index]; ok {
		return fmt.Errorf("index %d is an inner node of the tree", index)
	}
	for i := index >> 1; i > 0; i >>= 1 {
		if _, ok := t.leaves[i]; ok {
			return fmt.Errorf("index %d is below leaf %d", index, i)
		}
	}
	t.leaves[index] = value
	for i := index >> 1; i > 0; i >>= 1 {
		t.ancestors[i] = struct{}{}
	}
	t.nodes = nil
	return nil
}

func (t *Tree) node(index uint64) Value {
	if value, ok := t.leaves[index]; ok {
		return value
	}
	if _, ok := t.ancestors[index]; !ok {
		return Value{}
	}
	if value, ok := t.nodes[index]; ok {
		return value
	}
	value := Hash(t.node(index*2), t.node(index*2+1))
	t.nodes[index] = value
	return value
}

// Root returns the root hash of the tree.
func (t *Tree) Root() common.Hash {
	if t.nodes == nil {
		t.nodes = make(map[uint64]Value)
	}
	return common.Hash(t.node(1))
}

// Proof returns the proof branch of the node at the given generalized index,
// ordered from the bottom of the tree upwards.
func (t *Tree) Proof(index uint64) Values {
	if t.nodes == nil {
		t.nodes = make(map[uint64]Value)
	}
	branch := make(Values, 0, bits.Len64(index)-1)
	for ; index > 1; index >>= 1 {
		branch = append(branch, t.node(index^1))
	}
	return branch
}

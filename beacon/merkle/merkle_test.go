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
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestVerifyProof(t *testing.T) {
	var (
		leaf    = Value{1}
		sibling = Value{2}
		uncle   = Value{3}
	)
	// index 6 = left child of node 3
	parent := Hash(leaf, sibling)
	root := common.Hash(Hash(uncle, parent))

	if err := VerifyProof(root, 6, Values{sibling, uncle}, leaf); err != nil {
		t.Fatalf("valid proof rejected: %v", err)
	}
	if err := VerifyProof(root, 7, Values{sibling, uncle}, leaf); !errors.Is(err, ErrRootMismatch) {
		t.Fatalf("wrong index: expected root mismatch, got %v", err)
	}
	if err := VerifyProof(root, 6, Values{sibling}, leaf); !errors.Is(err, ErrMissingItems) {
		t.Fatalf("short branch: expected missing items, got %v", err)
	}
	if err := VerifyProof(root, 6, Values{sibling, uncle, uncle}, leaf); !errors.Is(err, ErrExtraItems) {
		t.Fatalf("long branch: expected extra items, got %v", err)
	}
	tampered := Value{1, 1}
	if err := VerifyProof(root, 6, Values{sibling, uncle}, tampered); !errors.Is(err, ErrRootMismatch) {
		t.Fatalf("tampered leaf: expected root mismatch, got %v", err)
	}
}

func TestTreeProofs(t *testing.T) {
	// Leaves at the light client relevant indices of the beacon state share
	// ancestors, so their proofs must all verify against the same root.
	tree := NewTree()
	leaves := map[uint64]Value{
		105: {0xf1},
		54:  {0xc1},
		55:  {0xc2},
		33:  {0x33},
	}
	for index, value := range leaves {
		if err := tree.Set(index, value); err != nil {
			t.Fatalf("failed to set leaf %d: %v", index, err)
		}
	}
	root := tree.Root()
	for index, value := range leaves {
		if err := VerifyProof(root, index, tree.Proof(index), value); err != nil {
			t.Errorf("proof of leaf %d failed: %v", index, err)
		}
	}
	if err := tree.Set(27, Value{1}); err == nil {
		t.Fatal("expected error when overwriting an inner node")
	}
	if err := tree.Set(110, Value{1}); err == nil {
		t.Fatal("expected error when placing a leaf below another leaf")
	}
	// Updating a leaf changes the root.
	if err := tree.Set(33, Value{0x34}); err != nil {
		t.Fatal(err)
	}
	if tree.Root() == root {
		t.Fatal("root unchanged after leaf update")
	}
}

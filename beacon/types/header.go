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

// Package types implements a few types of the beacon chain for light client usage.
package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmlc/evm-light-client/beacon/merkle"
	zrntcommon "github.com/protolambda/zrnt/eth2/beacon/common"
)

const (
	headerIndexSlot          = 8
	headerIndexProposerIndex = 9
	headerIndexParentRoot    = 10
	headerIndexStateRoot     = 11
	headerIndexBodyRoot      = 12
)

// Header defines a beacon header.
//
// See data structure definition here:
// https://github.com/ethereum/consensus-specs/blob/dev/specs/phase0/beacon-chain.md#beaconblockheader
type Header struct {
	// Monotonically increasing slot number for the beacon block (may be gapped)
	Slot uint64 `json:"slot"`

	// Index into the validator table who created the beacon block
	ProposerIndex uint64 `json:"proposer_index"`

	// SSZ hash of the parent beacon header
	ParentRoot common.Hash `json:"parent_root"`

	// SSZ hash of the beacon state (https://github.com/ethereum/consensus-specs/blob/dev/specs/bellatrix/beacon-chain.md#beacon-state)
	StateRoot common.Hash `json:"state_root"`

	// SSZ hash of the beacon block body (https://github.com/ethereum/consensus-specs/blob/dev/specs/bellatrix/beacon-chain.md#beaconblockbody)
	BodyRoot common.Hash `json:"body_root"`
}

// headerFromZRNT converts a zrnt BeaconBlockHeader to a local Header.
func headerFromZRNT(zh *zrntcommon.BeaconBlockHeader) Header {
	return Header{
		Slot:          uint64(zh.Slot),
		ProposerIndex: uint64(zh.ProposerIndex),
		ParentRoot:    common.Hash(zh.ParentRoot),
		StateRoot:     common.Hash(zh.StateRoot),
		BodyRoot:      common.Hash(zh.BodyRoot),
	}
}

// headerMarshaling is the JSON representation of a header. The beacon API
// encodes integers as decimal strings.
type headerMarshaling struct {
	Slot          *decimal     `json:"slot"`
	ProposerIndex *decimal     `json:"proposer_index"`
	ParentRoot    *common.Hash `json:"parent_root"`
	StateRoot     *common.Hash `json:"state_root"`
	BodyRoot      *common.Hash `json:"body_root"`
}

// MarshalJSON marshals as JSON.
func (h Header) MarshalJSON() ([]byte, error) {
	enc := headerMarshaling{
		Slot:          (*decimal)(&h.Slot),
		ProposerIndex: (*decimal)(&h.ProposerIndex),
		ParentRoot:    &h.ParentRoot,
		StateRoot:     &h.StateRoot,
		BodyRoot:      &h.BodyRoot,
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON unmarshals from JSON.
func (h *Header) UnmarshalJSON(input []byte) error {
	var dec headerMarshaling
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.Slot == nil {
		return errors.New("missing required field 'slot' for Header")
	}
	if dec.ProposerIndex == nil {
		return errors.New("missing required field 'proposer_index' for Header")
	}
	if dec.ParentRoot == nil {
		return errors.New("missing required field 'parent_root' for Header")
	}
	if dec.StateRoot == nil {
		return errors.New("missing required field 'state_root' for Header")
	}
	if dec.BodyRoot == nil {
		return errors.New("missing required field 'body_root' for Header")
	}
	h.Slot = uint64(*dec.Slot)
	h.ProposerIndex = uint64(*dec.ProposerIndex)
	h.ParentRoot = *dec.ParentRoot
	h.StateRoot = *dec.StateRoot
	h.BodyRoot = *dec.BodyRoot
	return nil
}

// Hash calculates the block root of the header.
func (h *Header) Hash() common.Hash {
	var values [16]merkle.Value // values corresponding to indices 8 to 15 of the beacon header tree
	binary.LittleEndian.PutUint64(values[headerIndexSlot][:8], h.Slot)
	binary.LittleEndian.PutUint64(values[headerIndexProposerIndex][:8], h.ProposerIndex)
	values[headerIndexParentRoot] = merkle.Value(h.ParentRoot)
	values[headerIndexStateRoot] = merkle.Value(h.StateRoot)
	values[headerIndexBodyRoot] = merkle.Value(h.BodyRoot)
	hasher := sha256.New()
	for i := 7; i > 0; i-- {
		hasher.Reset()
		hasher.Write(values[i*2][:])
		hasher.Write(values[i*2+1][:])
		hasher.Sum(values[i][:0])
	}
	return common.Hash(values[1])
}

// SignedHeader represents a beacon header signed by a sync committee.
type SignedHeader struct {
	// Beacon header being signed
	Header Header

	// Sync committee BLS signature aggregate
	Signature SyncAggregate

	// Slot in which the signature has been created (newer than Header.Slot,
	// determines the signing sync committee)
	SignatureSlot uint64
}

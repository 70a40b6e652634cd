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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/protolambda/zrnt/eth2/beacon/capella"
	zrntcommon "github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
	"github.com/protolambda/zrnt/eth2/configs"
	"github.com/protolambda/ztyp/tree"
)

type blockObject interface {
	HashTreeRoot(spec *zrntcommon.Spec, hFn tree.HashFn) zrntcommon.Root
	Header(spec *zrntcommon.Spec) *zrntcommon.BeaconBlockHeader
}

// BeaconBlock represents a full block in the beacon chain.
type BeaconBlock struct {
	fork     string
	blockObj blockObject
}

// BlockFromJSON decodes a beacon block from JSON.
func BlockFromJSON(forkName string, data []byte) (*BeaconBlock, error) {
	var obj blockObject
	switch forkName {
	case "deneb":
		obj = new(deneb.BeaconBlock)
	case "capella":
		obj = new(capella.BeaconBlock)
	default:
		return nil, fmt.Errorf("unsupported fork: %s", forkName)
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, err
	}
	return &BeaconBlock{fork: forkName, blockObj: obj}, nil
}

// NewBeaconBlock wraps a ZRNT block.
func NewBeaconBlock(obj blockObject) *BeaconBlock {
	switch obj := obj.(type) {
	case *capella.BeaconBlock:
		return &BeaconBlock{fork: "capella", blockObj: obj}
	case *deneb.BeaconBlock:
		return &BeaconBlock{fork: "deneb", blockObj: obj}
	default:
		panic(fmt.Errorf("unsupported block type %T", obj))
	}
}

// Fork returns the lower case name of the fork the block was created in.
func (b *BeaconBlock) Fork() string {
	return b.fork
}

// Slot returns the slot number of the block.
func (b *BeaconBlock) Slot() uint64 {
	switch obj := b.blockObj.(type) {
	case *capella.BeaconBlock:
		return uint64(obj.Slot)
	case *deneb.BeaconBlock:
		return uint64(obj.Slot)
	default:
		panic(fmt.Errorf("unsupported block type %T", b.blockObj))
	}
}

// ExecutionNumber returns the number and hash of the execution block embedded
// into the beacon block.
func (b *BeaconBlock) ExecutionNumber() (uint64, common.Hash) {
	switch obj := b.blockObj.(type) {
	case *capella.BeaconBlock:
		return uint64(obj.Body.ExecutionPayload.BlockNumber), common.Hash(obj.Body.ExecutionPayload.BlockHash)
	case *deneb.BeaconBlock:
		return uint64(obj.Body.ExecutionPayload.BlockNumber), common.Hash(obj.Body.ExecutionPayload.BlockHash)
	default:
		panic(fmt.Errorf("unsupported block type %T", b.blockObj))
	}
}

// Header returns the block's header data.
func (b *BeaconBlock) Header() Header {
	return headerFromZRNT(b.blockObj.Header(configs.Mainnet))
}

// Root computes the SSZ root hash of the block.
func (b *BeaconBlock) Root() common.Hash {
	return common.Hash(b.blockObj.HashTreeRoot(configs.Mainnet, tree.GetHashFn()))
}

type jsonBeaconBlock struct {
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// MarshalJSON encodes the block together with its fork name, the way the
// beacon API serves blocks.
func (b *BeaconBlock) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(b.blockObj)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&jsonBeaconBlock{Version: b.fork, Data: data})
}

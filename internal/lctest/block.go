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

package lctest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ctypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	zcommon "github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
	"github.com/protolambda/ztyp/view"
)

// Block creates a deneb beacon block whose otherwise empty execution payload
// carries the given block number and a matching block hash.
func Block(slot, number uint64, parentRoot common.Hash) *types.BeaconBlock {
	return stateBlock(slot, number, parentRoot, common.Hash{})
}

// BootstrapBlock creates a block whose state holds c as the current committee,
// together with the bootstrap data of its header.
func BootstrapBlock(config *params.ChainConfig, slot, number uint64, c *Committee) (*types.BootstrapData, *types.BeaconBlock) {
	spec, err := config.ForkSpec(slot)
	if err != nil {
		panic(err)
	}
	tree := State{CurrentCommittee: c}.Build(spec)
	block := stateBlock(slot, number, common.Hash{}, tree.Root())
	return &types.BootstrapData{
		Header:          block.Header(),
		CommitteeRoot:   c.Root(),
		Committee:       c.Serialized,
		CommitteeBranch: tree.Proof(spec.CurrentCommitteeIndex),
	}, block
}

func stateBlock(slot, number uint64, parentRoot, stateRoot common.Hash) *types.BeaconBlock {
	obj := new(deneb.BeaconBlock)
	obj.Slot = zcommon.Slot(slot)
	obj.ParentRoot = zcommon.Root(parentRoot)
	obj.StateRoot = zcommon.Root(stateRoot)
	obj.Body.ExecutionPayload.BlockNumber = view.Uint64View(number)

	var (
		zero            uint64
		withdrawalsHash = ctypes.EmptyWithdrawalsHash
	)
	header := &ctypes.Header{
		UncleHash:        ctypes.EmptyUncleHash,
		TxHash:           ctypes.EmptyTxsHash,
		Difficulty:       new(big.Int),
		Number:           new(big.Int).SetUint64(number),
		Extra:            []byte{},
		BaseFee:          new(big.Int),
		WithdrawalsHash:  &withdrawalsHash,
		BlobGasUsed:      &zero,
		ExcessBlobGas:    &zero,
		ParentBeaconRoot: &parentRoot,
	}
	obj.Body.ExecutionPayload.BlockHash = zcommon.Hash32(header.Hash())
	return types.NewBeaconBlock(obj)
}

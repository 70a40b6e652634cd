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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/protolambda/zrnt/eth2/beacon/capella"
	zrntcommon "github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
	"github.com/stretchr/testify/require"
)

func TestBlockHeaderRoot(t *testing.T) {
	for _, obj := range []blockObject{new(capella.BeaconBlock), new(deneb.BeaconBlock)} {
		block := NewBeaconBlock(obj)
		header := block.Header()
		require.Equal(t, header.Hash(), block.Root(), block.Fork())
	}
}

func TestBlockJSON(t *testing.T) {
	obj := new(deneb.BeaconBlock)
	obj.Slot = 1234
	obj.ProposerIndex = 7
	obj.ParentRoot = zrntcommon.Root{1}
	obj.Body.ExecutionPayload.BlockNumber = 99
	block := NewBeaconBlock(obj)

	enc, err := json.Marshal(block)
	require.NoError(t, err)
	var wrapped struct {
		Version string          `json:"version"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(enc, &wrapped))
	require.Equal(t, "deneb", wrapped.Version)

	dec, err := BlockFromJSON(wrapped.Version, wrapped.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), dec.Slot())
	require.Equal(t, block.Root(), dec.Root())
	number, _ := dec.ExecutionNumber()
	require.Equal(t, uint64(99), number)

	_, err = BlockFromJSON("electra", wrapped.Data)
	require.Error(t, err)
}

func TestExecutionBlock(t *testing.T) {
	obj := new(deneb.BeaconBlock)
	obj.Slot = 1234
	obj.ParentRoot = zrntcommon.Root{1}
	payload := &obj.Body.ExecutionPayload
	payload.BlockNumber = 99
	payload.Timestamp = 1700000000
	payload.StateRoot = zrntcommon.Root{2}
	payload.Withdrawals = zrntcommon.Withdrawals{{Index: 1, ValidatorIndex: 2, Address: zrntcommon.Eth1Address{3}, Amount: 4}}
	block := NewBeaconBlock(obj)

	// The payload claims no hash yet.
	_, err := block.ExecutionBlock()
	require.ErrorIs(t, err, ErrPayloadHashMismatch)

	rebuilt, err := denebExecutionBlock(payload, common.Hash{1})
	require.NoError(t, err)
	payload.BlockHash = zrntcommon.Hash32(rebuilt.Hash())

	exec, err := block.ExecutionBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(99), exec.NumberU64())
	require.Equal(t, common.Hash{2}, exec.Root())
	require.Equal(t, common.Hash{1}, *exec.BeaconRoot())
	require.Len(t, exec.Withdrawals(), 1)
	number, hash := block.ExecutionNumber()
	require.Equal(t, exec.NumberU64(), number)
	require.Equal(t, exec.Hash(), hash)

	// Changing the beacon parent changes the execution block hash.
	obj.ParentRoot = zrntcommon.Root{5}
	_, err = block.ExecutionBlock()
	require.ErrorIs(t, err, ErrPayloadHashMismatch)
}

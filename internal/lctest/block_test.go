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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestBlockExecutionPayload(t *testing.T) {
	block := Block(24, 1000, common.Hash{7})
	exec, err := block.ExecutionBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), exec.NumberU64())
	require.Equal(t, common.Hash{7}, *exec.BeaconRoot())

	number, hash := block.ExecutionNumber()
	require.Equal(t, uint64(1000), number)
	require.Equal(t, exec.Hash(), hash)
}

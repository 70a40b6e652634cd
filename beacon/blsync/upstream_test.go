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

package blsync

import (
	"context"
	"testing"

	"github.com/evmlc/evm-light-client/beacon/light/api"
	"github.com/stretchr/testify/require"
)

func TestFailover(t *testing.T) {
	var (
		ctx     = context.Background()
		primary = newTestUpstream("primary")
		backup  = newTestUpstream("backup")
		f       = newFailover(primary, backup)
		block   = testBlock(10, 100)
	)
	backup.addBlock(block)

	// The primary does not know the block, the backup is asked.
	fetched, err := f.Block(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, block.Root(), fetched.Root())
	require.Equal(t, 1, primary.callCount())
	require.Equal(t, 1, backup.callCount())

	// The primary answers, the backup is not asked.
	primary.addBlock(block)
	_, err = f.Block(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, primary.callCount())
	require.Equal(t, 1, backup.callCount())

	// Every failure is reported.
	primary.setFail(true)
	_, err = f.Block(ctx, 11)
	require.ErrorIs(t, err, errTestUpstream)
	require.ErrorIs(t, err, api.ErrNotFound)
	require.ErrorContains(t, err, "primary")
	require.ErrorContains(t, err, "backup")
}

func TestFailoverCanceled(t *testing.T) {
	var (
		primary = newTestUpstream("primary")
		backup  = newTestUpstream("backup")
		f       = newFailover(primary, backup)
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.UpdateForPeriod(ctx, 0)
	require.ErrorIs(t, err, api.ErrNotFound)
	require.Equal(t, 1, primary.callCount())
	require.Equal(t, 0, backup.callCount())
}

func TestFailoverEmpty(t *testing.T) {
	_, err := newFailover().Header(context.Background(), [32]byte{})
	require.Error(t, err)
}

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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/light/sync"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/evmlc/evm-light-client/node"
	"github.com/stretchr/testify/require"
)

func TestClientLifecycle(t *testing.T) {
	// A beacon node that knows nothing.
	beacon := httptest.NewServer(http.NotFoundHandler())
	defer beacon.Close()

	var (
		nodeConfig = &node.Config{Name: "evmlc", DataDir: t.TempDir()}
		chain      = lctest.Config(0)
		config     = params.DefaultClientConfig
	)
	config.ChainConfig = *chain
	config.Apis = []string{beacon.URL}

	stack, err := node.New(nodeConfig)
	require.NoError(t, err)
	client, err := New(stack, &config, sync.DefaultConfig)
	require.NoError(t, err)
	require.NoError(t, stack.Start())

	rpcClient := stack.Attach()
	var status light.Status
	requireRPCError(t, rpcClient.Call(&status, "lightclient_status"), errCodeFetch, "NotInitialized")
	err = rpcClient.Call(nil, "lightclient_initFromCheckpoint", common.Hash{1})
	requireRPCError(t, err, errCodeInit, "UpstreamUnavailable")

	bootstrap := lctest.Bootstrap(chain, 8, lctest.NewCommittee(chain.SyncCommitteeSize, 0))
	require.NoError(t, rpcClient.Call(nil, "lightclient_init", bootstrap))
	rpcClient.Close()

	// Closing the node persists the store.
	require.NoError(t, stack.Close())
	require.Equal(t, uint64(8), client.LightClient().Store().Finalized.Slot)

	stack, err = node.New(nodeConfig)
	require.NoError(t, err)
	defer stack.Close()
	restored, err := New(stack, &config, sync.DefaultConfig)
	require.NoError(t, err)
	require.NotNil(t, restored.LightClient().Store())
	require.Equal(t, bootstrap.Header, restored.LightClient().Store().Finalized)
	require.Equal(t, []common.Hash{bootstrap.Header.Hash()}, restored.LightClient().Checkpoints())
}

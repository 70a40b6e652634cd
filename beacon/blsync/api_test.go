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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/types"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) dial() *rpc.Client {
	server := rpc.NewServer()
	for _, api := range env.client.APIs() {
		require.NoError(env.t, server.RegisterName(api.Namespace, api.Service))
	}
	client := rpc.DialInProc(server)
	env.t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func requireRPCError(t *testing.T, err error, code int, kind string) {
	t.Helper()

	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr), "not an RPC error: %v", err)
	require.Equal(t, code, rpcErr.ErrorCode())
	var dataErr rpc.DataError
	require.True(t, errors.As(err, &dataErr))
	require.Equal(t, kind, dataErr.ErrorData())
}

func TestAPIErrorKind(t *testing.T) {
	err := newAPIError(light.ErrFutureUpdate, errCodeUpdate).(*apiError)
	require.Equal(t, "FutureUpdate", err.ErrorData())
	require.ErrorIs(t, err, light.ErrInvalidUpdate)

	err = newAPIError(light.ErrNotInitialized, errCodeFetch).(*apiError)
	require.Equal(t, errCodeFetch, err.ErrorCode())
	require.Equal(t, "NotInitialized", err.ErrorData())

	require.NoError(t, newAPIError(nil, errCodeInit))
}

func TestAPIInitAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	client := env.dial()

	var status light.Status
	requireRPCError(t, client.Call(&status, "lightclient_status"), errCodeFetch, "NotInitialized")

	bootstrap := env.bootstrap(8)
	require.NoError(t, client.Call(nil, "lightclient_init", bootstrap))
	require.NoError(t, client.Call(&status, "lightclient_status"))
	require.Equal(t, uint64(8), status.FinalizedSlot)
	require.Equal(t, bootstrap.Header.Hash().Hex(), status.FinalizedRoot)

	var checkpoints []common.Hash
	require.NoError(t, client.Call(&checkpoints, "lightclient_checkpoints"))
	require.Equal(t, []common.Hash{bootstrap.Header.Hash()}, checkpoints)

	finalized := lctest.Header(24, common.Hash{}, common.HexToHash("0x01"))
	update := env.update(lctest.UpdateParams{AttestedSlot: 40, Finalized: &finalized, Next: env.committees[1]})
	var result UpdateResult
	require.NoError(t, client.Call(&result, "lightclient_update", update))
	require.Equal(t, light.OutcomeAdvanceFinalized, result.Outcome)
	require.Equal(t, uint64(24), result.Status.FinalizedSlot)
	require.Equal(t, uint64(40), result.Status.OptimisticSlot)

	// The same update again brings nothing new.
	err := client.Call(&result, "lightclient_update", update)
	requireRPCError(t, err, errCodeUpdate, "Stale")

	weak := env.update(lctest.UpdateParams{AttestedSlot: 50, Signers: lctest.Signers(10)})
	err = client.Call(&result, "lightclient_update", weak)
	requireRPCError(t, err, errCodeUpdate, "InsufficientParticipation")

	// Updates from the future are invalid as well, but reported specifically.
	future := env.update(lctest.UpdateParams{AttestedSlot: 120, Signer: env.committees[1]})
	err = client.Call(&result, "lightclient_update", future)
	requireRPCError(t, err, errCodeUpdate, "FutureUpdate")

	require.NoError(t, client.Call(nil, "lightclient_persist"))
}

func TestAPIInitFromCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	client := env.dial()

	bootstrap := env.bootstrap(16)
	root := bootstrap.Header.Hash()
	err := client.Call(nil, "lightclient_initFromCheckpoint", root)
	requireRPCError(t, err, errCodeInit, "UpstreamUnavailable")

	env.upstream.bootstraps[root] = bootstrap
	require.NoError(t, client.Call(nil, "lightclient_initFromCheckpoint", root))

	var status light.Status
	require.NoError(t, client.Call(&status, "lightclient_status"))
	require.Equal(t, uint64(16), status.FinalizedSlot)

	// A bootstrap not matching the requested root is rejected.
	other := env.bootstrap(17)
	env.upstream.bootstraps[common.Hash{1}] = other
	err = client.Call(nil, "lightclient_initFromCheckpoint", common.Hash{1})
	requireRPCError(t, err, errCodeInit, "InvalidBootstrap")
}

func TestAPIUpdateFromUpstream(t *testing.T) {
	env := newTestEnv(t)
	client := env.dial()
	require.NoError(t, client.Call(nil, "lightclient_init", env.bootstrap(8)))

	var result UpdateResult
	err := client.Call(&result, "lightclient_updateForPeriod", hexutil.Uint64(0))
	requireRPCError(t, err, errCodeUpdate, "UpstreamUnavailable")

	env.upstream.periods[0] = env.update(lctest.UpdateParams{AttestedSlot: 60, Next: env.committees[1]})
	require.NoError(t, client.Call(&result, "lightclient_updateForPeriod", hexutil.Uint64(0)))
	require.Equal(t, light.OutcomeAdvanceOptimistic, result.Outcome)
	require.NotEmpty(t, result.Status.NextCommittee)

	err = client.Call(&result, "lightclient_updateForSlot", hexutil.Uint64(70))
	requireRPCError(t, err, errCodeUpdate, "UpstreamUnavailable")
	err = client.Call(&result, "lightclient_updateForBlockNumber", hexutil.Uint64(1000))
	requireRPCError(t, err, errCodeUpdate, "UpstreamUnavailable")
}

func TestAPIFetch(t *testing.T) {
	env := newTestEnv(t)
	client := env.dial()
	require.NoError(t, client.Call(nil, "lightclient_init", env.bootstrap(8)))

	block := testBlock(24, 1000)
	header := block.Header()
	update := env.update(lctest.UpdateParams{AttestedSlot: 40, Finalized: &header})
	require.NoError(t, client.Call(nil, "lightclient_update", update))

	var fetched types.Header
	require.NoError(t, client.Call(&fetched, "lightclient_fetchHeaderFromSlot", hexutil.Uint64(24)))
	require.Equal(t, header, fetched)

	err := client.Call(&fetched, "lightclient_fetchHeaderFromSlot", hexutil.Uint64(40))
	requireRPCError(t, err, errCodeFetch, "UnverifiedSlot")

	var raw json.RawMessage
	err = client.Call(&raw, "lightclient_fetchBlockFromSlot", hexutil.Uint64(24))
	requireRPCError(t, err, errCodeFetch, "UpstreamUnavailable")

	env.upstream.addBlock(block)
	require.NoError(t, client.Call(&raw, "lightclient_fetchBlockFromSlot", hexutil.Uint64(24)))
	var enc struct {
		Version string          `json:"version"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &enc))
	decoded, err := types.BlockFromJSON(enc.Version, enc.Data)
	require.NoError(t, err)
	require.Equal(t, header.Hash(), decoded.Root())
}

func TestAPIHeadsSubscription(t *testing.T) {
	env := newTestEnv(t)
	client := env.dial()
	require.NoError(t, client.Call(nil, "lightclient_init", env.bootstrap(8)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	heads := make(chan *headNotification, 4)
	sub, err := client.Subscribe(ctx, "lightclient", heads, "heads")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	update := env.update(lctest.UpdateParams{AttestedSlot: 30})
	require.NoError(t, client.Call(nil, "lightclient_update", update))

	select {
	case head := <-heads:
		require.Equal(t, uint64(8), head.Finalized.Slot)
		require.Equal(t, uint64(30), head.Optimistic.Slot)
	case err := <-sub.Err():
		t.Fatal(err)
	case <-ctx.Done():
		t.Fatal("no head notification")
	}
}

func TestAPIFinalizedBlocksSubscription(t *testing.T) {
	env := newTestEnv(t)
	client := env.dial()
	require.NoError(t, client.Call(nil, "lightclient_init", env.bootstrap(8)))
	env.client.blockSync.start()
	defer env.client.blockSync.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	blocks := make(chan FinalizedBlockEvent, 4)
	sub, err := client.Subscribe(ctx, "lightclient", blocks, "finalizedBlocks")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	block := testBlock(24, 1000)
	header := block.Header()
	env.upstream.addBlock(block)
	update := env.update(lctest.UpdateParams{AttestedSlot: 40, Finalized: &header})
	require.NoError(t, client.Call(nil, "lightclient_update", update))

	select {
	case ev := <-blocks:
		require.Equal(t, uint64(24), ev.Slot)
		require.Equal(t, header.Hash(), ev.BlockRoot)
		require.Equal(t, uint64(1000), ev.ExecNumber)
	case err := <-sub.Err():
		t.Fatal(err)
	case <-ctx.Done():
		t.Fatal("no finalized block notification")
	}
}

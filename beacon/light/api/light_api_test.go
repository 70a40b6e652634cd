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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
	"github.com/stretchr/testify/require"
)

// testBeaconNode serves JSON responses by request path.
type testBeaconNode struct {
	t         *testing.T
	responses map[string]interface{}
	statuses  map[string]int
	headers   []http.Header
	lock      sync.Mutex
}

func newTestBeaconNode(t *testing.T) (*testBeaconNode, *BeaconLightApi, *params.ChainConfig) {
	node := &testBeaconNode{
		t:         t,
		responses: make(map[string]interface{}),
		statuses:  make(map[string]int),
	}
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	config := lctest.Config(1000)
	return node, NewBeaconLightApi(server.URL, map[string]string{"X-Api-Key": "secret"}, config), config
}

func (n *testBeaconNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.lock.Lock()
	n.headers = append(n.headers, r.Header.Clone())
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	status, hasStatus := n.statuses[key]
	resp, hasResp := n.responses[key]
	n.lock.Unlock()

	switch {
	case hasStatus:
		w.WriteHeader(status)
	case !hasResp:
		w.WriteHeader(http.StatusNotFound)
	default:
		w.Header().Set("Content-Type", "application/json")
		require.NoError(n.t, json.NewEncoder(w).Encode(resp))
	}
}

func (n *testBeaconNode) set(key string, resp interface{}) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.responses[key] = resp
}

func testUpdate(config *params.ChainConfig, attested uint64) *types.LightClientUpdate {
	committee := lctest.NewCommittee(config.SyncCommitteeSize, 0)
	return lctest.Update(config, lctest.UpdateParams{AttestedSlot: attested, Signer: committee, Next: committee})
}

func TestUpdateForPeriod(t *testing.T) {
	node, api, config := newTestBeaconNode(t)
	update := testUpdate(config, 70)
	node.set("/eth/v1/beacon/light_client/updates?count=1&start_period=1", []versionedUpdate{{Version: "deneb", Data: *update}})

	got, err := api.UpdateForPeriod(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, update.AttestedHeader, got.AttestedHeader)
	require.Equal(t, update.NextSyncCommittee, got.NextSyncCommittee)
	require.Equal(t, "secret", node.headers[0].Get("X-Api-Key"))

	_, err = api.UpdateForPeriod(context.Background(), 2)
	require.ErrorIs(t, err, ErrNotFound)

	node.set("/eth/v1/beacon/light_client/updates?count=1&start_period=3", []versionedUpdate{})
	_, err = api.UpdateForPeriod(context.Background(), 3)
	require.Error(t, err)
}

func TestStatusCodes(t *testing.T) {
	node, api, _ := newTestBeaconNode(t)
	node.statuses["/eth/v1/beacon/light_client/finality_update"] = http.StatusServiceUnavailable
	node.statuses["/eth/v1/beacon/light_client/optimistic_update"] = http.StatusBadRequest

	_, err := api.FinalityUpdate(context.Background())
	require.ErrorIs(t, err, ErrInternal)
	_, err = api.OptimisticUpdate(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInternal) || errors.Is(err, ErrNotFound))
	_, err = api.Header(context.Background(), common.Hash{1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateForSlot(t *testing.T) {
	node, api, config := newTestBeaconNode(t)
	ctx := context.Background()

	finality := testUpdate(config, 40)
	optimistic := testUpdate(config, 50)
	node.set("/eth/v1/beacon/light_client/finality_update", versionedUpdate{Version: "deneb", Data: *finality})
	node.set("/eth/v1/beacon/light_client/optimistic_update", versionedUpdate{Version: "deneb", Data: *optimistic})

	got, err := api.UpdateForSlot(ctx, 35)
	require.NoError(t, err)
	require.Equal(t, uint64(40), got.AttestedHeader.Header.Slot)

	got, err = api.UpdateForSlot(ctx, 45)
	require.NoError(t, err)
	require.Equal(t, uint64(50), got.AttestedHeader.Header.Slot)

	_, err = api.UpdateForSlot(ctx, 55)
	require.ErrorIs(t, err, ErrNotFound)

	// Slots of past periods are served by the period's best update.
	node.set("/eth/v1/beacon/light_client/finality_update", versionedUpdate{Version: "deneb", Data: *testUpdate(config, 70)})
	node.set("/eth/v1/beacon/light_client/optimistic_update", versionedUpdate{Version: "deneb", Data: *testUpdate(config, 72)})
	node.set("/eth/v1/beacon/light_client/updates?count=1&start_period=0", []versionedUpdate{{Version: "deneb", Data: *finality}})
	got, err = api.UpdateForSlot(ctx, 20)
	require.NoError(t, err)
	require.Equal(t, uint64(40), got.AttestedHeader.Header.Slot)
}

type testExecution map[uint64]uint64

func (e testExecution) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	ts, ok := e[number.Uint64()]
	if !ok {
		return nil, errors.New("unknown block")
	}
	return &ethtypes.Header{Number: number, Time: ts}, nil
}

func TestUpdateForBlockNumber(t *testing.T) {
	node, api, config := newTestBeaconNode(t)
	ctx := context.Background()

	_, err := api.UpdateForBlockNumber(ctx, 1)
	require.ErrorIs(t, err, ErrBlockNumberUnsupported)

	node.set("/eth/v1/beacon/light_client/finality_update", versionedUpdate{Version: "deneb", Data: *testUpdate(config, 40)})
	api.exec = testExecution{
		100: config.GenesisTime + 38*config.SecondsPerSlot,
		200: config.GenesisTime + 41*config.SecondsPerSlot,
	}
	got, err := api.UpdateForBlockNumber(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(40), got.AttestedHeader.Header.Slot)

	_, err = api.UpdateForBlockNumber(ctx, 200)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = api.UpdateForBlockNumber(ctx, 300)
	require.Error(t, err)
}

func TestHeader(t *testing.T) {
	node, api, _ := newTestBeaconNode(t)
	header := lctest.Header(12, common.Hash{1}, common.Hash{2})
	root := header.Hash()

	type message struct {
		Message types.Header `json:"message"`
	}
	type data struct {
		Root   common.Hash `json:"root"`
		Header message     `json:"header"`
	}
	node.set("/eth/v1/beacon/headers/"+root.Hex(), map[string]interface{}{"data": data{Root: root, Header: message{header}}})
	got, err := api.Header(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, header, *got)

	// Served under a foreign root.
	other := common.Hash{3}
	node.set("/eth/v1/beacon/headers/"+other.Hex(), map[string]interface{}{"data": data{Root: root, Header: message{header}}})
	_, err = api.Header(context.Background(), other)
	require.Error(t, err)
}

func TestBootstrap(t *testing.T) {
	node, api, config := newTestBeaconNode(t)
	bootstrap := lctest.Bootstrap(config, 8, lctest.NewCommittee(config.SyncCommitteeSize, 0))
	root := bootstrap.Header.Hash()

	node.set(fmt.Sprintf("/eth/v1/beacon/light_client/bootstrap/0x%x", root[:]), map[string]interface{}{"version": "deneb", "data": bootstrap})
	got, err := api.Bootstrap(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, bootstrap.Header, got.Header)
	require.Equal(t, bootstrap.Committee, got.Committee)
	require.Equal(t, bootstrap.CommitteeBranch, got.CommitteeBranch)

	other := common.Hash{5}
	node.set(fmt.Sprintf("/eth/v1/beacon/light_client/bootstrap/0x%x", other[:]), map[string]interface{}{"version": "deneb", "data": bootstrap})
	_, err = api.Bootstrap(context.Background(), other)
	require.Error(t, err)
}

func TestBlock(t *testing.T) {
	node, api, _ := newTestBeaconNode(t)
	obj := new(deneb.BeaconBlock)
	obj.Slot = 24
	obj.Body.ExecutionPayload.BlockNumber = 1000
	block := types.NewBeaconBlock(obj)

	message, err := json.Marshal(obj)
	require.NoError(t, err)
	resp := map[string]interface{}{
		"version": "deneb",
		"data":    map[string]json.RawMessage{"message": message},
	}
	node.set("/eth/v2/beacon/blocks/24", resp)
	node.set("/eth/v2/beacon/blocks/25", resp)

	got, err := api.Block(context.Background(), 24)
	require.NoError(t, err)
	require.Equal(t, block.Root(), got.Root())
	number, _ := got.ExecutionNumber()
	require.Equal(t, uint64(1000), number)

	_, err = api.Block(context.Background(), 25)
	require.Error(t, err)
}

func TestConcurrentRequestsShared(t *testing.T) {
	var (
		requests atomic.Int32
		started  = make(chan struct{}, 1)
		release  = make(chan struct{})
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	api := NewBeaconLightApi(server.URL, nil, lctest.Config(0))

	var wg sync.WaitGroup
	query := func() {
		defer wg.Done()
		_, err := api.OptimisticUpdate(context.Background())
		require.ErrorIs(t, err, ErrNotFound)
	}
	wg.Add(1)
	go query()
	<-started
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go query()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), requests.Load())
}

func TestRequestCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)
	api := NewBeaconLightApi(server.URL, nil, lctest.Config(0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := api.FinalityUpdate(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHeadListener(t *testing.T) {
	root := common.Hash{7}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/v1/events", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: head\ndata: {\"slot\":\"12\",\"block\":\"%s\"}\n\n", root.Hex())
		fmt.Fprintf(w, "event: head\ndata: {\"slot\":\"x\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()
	api := NewBeaconLightApi(server.URL, nil, lctest.Config(0))

	var (
		heads = make(chan uint64, 1)
		errCh = make(chan error, 1)
	)
	stop := api.StartHeadListener(HeadEventListener{
		OnNewHead: func(slot uint64, blockRoot common.Hash) {
			require.Equal(t, root, blockRoot)
			heads <- slot
		},
		OnError: func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	})
	defer stop()

	select {
	case slot := <-heads:
		require.Equal(t, uint64(12), slot)
	case <-time.After(5 * time.Second):
		t.Fatal("no head event received")
	}
	select {
	case err := <-errCh:
		require.ErrorContains(t, err, "head event")
	case <-time.After(5 * time.Second):
		t.Fatal("no decoding error received")
	}
}

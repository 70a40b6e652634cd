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
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/light/api"
	"github.com/evmlc/evm-light-client/beacon/light/sync"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/stretchr/testify/require"
)

var errTestUpstream = errors.New("upstream down")

// testUpstream is a beacon API serving fixed data.
type testUpstream struct {
	name string

	mu         gosync.Mutex
	fail       bool
	calls      int
	periods    map[uint64]*types.LightClientUpdate
	bootstraps map[common.Hash]*types.BootstrapData
	headers    map[common.Hash]*types.Header
	blocks     map[uint64]*types.BeaconBlock
}

func newTestUpstream(name string) *testUpstream {
	return &testUpstream{
		name:       name,
		periods:    make(map[uint64]*types.LightClientUpdate),
		bootstraps: make(map[common.Hash]*types.BootstrapData),
		headers:    make(map[common.Hash]*types.Header),
		blocks:     make(map[uint64]*types.BeaconBlock),
	}
}

func (u *testUpstream) Name() string { return u.name }

func (u *testUpstream) setFail(fail bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fail = fail
}

func (u *testUpstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func serve[T any](u *testUpstream, lookup func() (T, bool)) (T, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var zero T
	u.calls++
	if u.fail {
		return zero, errTestUpstream
	}
	if v, ok := lookup(); ok {
		return v, nil
	}
	return zero, api.ErrNotFound
}

func (u *testUpstream) UpdateForPeriod(ctx context.Context, period uint64) (*types.LightClientUpdate, error) {
	return serve(u, func() (*types.LightClientUpdate, bool) {
		update, ok := u.periods[period]
		return update, ok
	})
}

func (u *testUpstream) UpdateForSlot(ctx context.Context, slot uint64) (*types.LightClientUpdate, error) {
	return serve(u, func() (*types.LightClientUpdate, bool) { return nil, false })
}

func (u *testUpstream) UpdateForBlockNumber(ctx context.Context, number uint64) (*types.LightClientUpdate, error) {
	return serve(u, func() (*types.LightClientUpdate, bool) { return nil, false })
}

func (u *testUpstream) Bootstrap(ctx context.Context, root common.Hash) (*types.BootstrapData, error) {
	return serve(u, func() (*types.BootstrapData, bool) {
		bootstrap, ok := u.bootstraps[root]
		return bootstrap, ok
	})
}

func (u *testUpstream) Header(ctx context.Context, root common.Hash) (*types.Header, error) {
	return serve(u, func() (*types.Header, bool) {
		header, ok := u.headers[root]
		return header, ok
	})
}

func (u *testUpstream) Block(ctx context.Context, slot uint64) (*types.BeaconBlock, error) {
	return serve(u, func() (*types.BeaconBlock, bool) {
		block, ok := u.blocks[slot]
		return block, ok
	})
}

func (u *testUpstream) addBlock(block *types.BeaconBlock) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.blocks[block.Slot()] = block
}

// testEnv is a light client service on a minimal preset chain whose clock
// stands at slot 100.
type testEnv struct {
	t          *testing.T
	config     *params.ChainConfig
	committees []*lctest.Committee
	upstream   *testUpstream
	client     *Client
}

func newTestEnv(t *testing.T) *testEnv {
	config := lctest.Config(0)
	env := &testEnv{
		t:        t,
		config:   config,
		upstream: newTestUpstream("test"),
	}
	for i := 0; i < 4; i++ {
		env.committees = append(env.committees, lctest.NewCommittee(config.SyncCommitteeSize, uint64(i)))
	}
	clock := new(mclock.Simulated)
	clock.Run(time.Duration(100*config.SecondsPerSlot) * time.Second)

	clientConfig := params.DefaultClientConfig
	clientConfig.ChainConfig = *config
	lc, err := light.NewTestLightClient(&clientConfig, memorydb.New(), newFailover(env.upstream), clock)
	require.NoError(t, err)
	env.client = newClient(lc, clock, sync.DefaultConfig, time.Second)
	return env
}

func (env *testEnv) bootstrap(slot uint64) *types.BootstrapData {
	return lctest.Bootstrap(env.config, slot, env.committees[env.config.SyncPeriod(slot)])
}

func (env *testEnv) update(p lctest.UpdateParams) *types.LightClientUpdate {
	sigSlot := p.SignatureSlot
	if sigSlot == 0 {
		sigSlot = p.AttestedSlot + 1
	}
	if p.Signer == nil {
		p.Signer = env.committees[env.config.SyncPeriod(sigSlot)]
	}
	return lctest.Update(env.config, p)
}

// testBlock creates a block carrying the given execution block number.
func testBlock(slot, number uint64) *types.BeaconBlock {
	return lctest.Block(slot, number, common.Hash{})
}

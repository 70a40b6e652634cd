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

package light

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/stretchr/testify/require"
)

var errTestUpstream = errors.New("upstream down")

// testUpstream serves prepared data and records the requests it receives.
type testUpstream struct {
	lock        sync.Mutex
	periods     map[uint64]*types.LightClientUpdate
	slots       map[uint64]*types.LightClientUpdate
	numbers     map[uint64]*types.LightClientUpdate
	bootstraps  map[common.Hash]*types.BootstrapData
	headers     map[common.Hash]*types.Header
	blocks      map[uint64]*types.BeaconBlock
	fail        bool
	requests    []string
	slotQueries []uint64
}

func newTestUpstream() *testUpstream {
	return &testUpstream{
		periods:    make(map[uint64]*types.LightClientUpdate),
		slots:      make(map[uint64]*types.LightClientUpdate),
		numbers:    make(map[uint64]*types.LightClientUpdate),
		bootstraps: make(map[common.Hash]*types.BootstrapData),
		headers:    make(map[common.Hash]*types.Header),
		blocks:     make(map[uint64]*types.BeaconBlock),
	}
}

func (u *testUpstream) request(name string) error {
	u.lock.Lock()
	defer u.lock.Unlock()

	u.requests = append(u.requests, name)
	if u.fail {
		return errTestUpstream
	}
	return nil
}

func (u *testUpstream) addHeaders(headers ...types.Header) {
	for i := range headers {
		header := headers[i]
		u.headers[header.Hash()] = &header
	}
}

func (u *testUpstream) UpdateForPeriod(ctx context.Context, period uint64) (*types.LightClientUpdate, error) {
	if err := u.request("period"); err != nil {
		return nil, err
	}
	if update, ok := u.periods[period]; ok {
		return update, nil
	}
	return nil, errors.New("not found")
}

func (u *testUpstream) UpdateForSlot(ctx context.Context, slot uint64) (*types.LightClientUpdate, error) {
	u.lock.Lock()
	u.slotQueries = append(u.slotQueries, slot)
	u.lock.Unlock()

	if err := u.request("slot"); err != nil {
		return nil, err
	}
	if update, ok := u.slots[slot]; ok {
		return update, nil
	}
	return nil, errors.New("not found")
}

func (u *testUpstream) UpdateForBlockNumber(ctx context.Context, number uint64) (*types.LightClientUpdate, error) {
	if err := u.request("number"); err != nil {
		return nil, err
	}
	if update, ok := u.numbers[number]; ok {
		return update, nil
	}
	return nil, errors.New("not found")
}

func (u *testUpstream) Bootstrap(ctx context.Context, root common.Hash) (*types.BootstrapData, error) {
	if err := u.request("bootstrap"); err != nil {
		return nil, err
	}
	if bootstrap, ok := u.bootstraps[root]; ok {
		return bootstrap, nil
	}
	return nil, errors.New("not found")
}

func (u *testUpstream) Header(ctx context.Context, root common.Hash) (*types.Header, error) {
	if err := u.request("header"); err != nil {
		return nil, err
	}
	if header, ok := u.headers[root]; ok {
		return header, nil
	}
	return nil, errors.New("not found")
}

func (u *testUpstream) Block(ctx context.Context, slot uint64) (*types.BeaconBlock, error) {
	if err := u.request("block"); err != nil {
		return nil, err
	}
	if block, ok := u.blocks[slot]; ok {
		return block, nil
	}
	return nil, errors.New("not found")
}

func testClientConfig(chain *params.ChainConfig) *params.ClientConfig {
	config := params.DefaultClientConfig
	config.ChainConfig = *chain
	config.UpstreamTimeout = time.Second
	return &config
}

// testEnv is a light client on a minimal preset chain together with the
// committees of the first few periods.
type testEnv struct {
	t          *testing.T
	config     *params.ChainConfig
	committees []*lctest.Committee
	db         ethdb.KeyValueStore
	upstream   *testUpstream
	client     *LightClient
}

func newTestEnv(t *testing.T, chain *params.ChainConfig) *testEnv {
	env := &testEnv{
		t:        t,
		config:   chain,
		db:       memorydb.New(),
		upstream: newTestUpstream(),
	}
	for i := 0; i < 4; i++ {
		env.committees = append(env.committees, lctest.NewCommittee(chain.SyncCommitteeSize, uint64(i)))
	}
	env.client = env.newClient()
	return env
}

// newClient creates a client without time enforcement on the environment's
// database.
func (env *testEnv) newClient() *LightClient {
	client, err := newLightClient(testClientConfig(env.config), env.db, env.upstream, false, func() int64 { return 0 })
	require.NoError(env.t, err)
	return client
}

// init bootstraps the client at the given slot with the committee of its
// period.
func (env *testEnv) init(slot uint64) *types.BootstrapData {
	bootstrap := lctest.Bootstrap(env.config, slot, env.committees[env.config.SyncPeriod(slot)])
	require.NoError(env.t, env.client.Init(bootstrap))
	return bootstrap
}

// update creates an update signed by the committee of the signature slot's
// period.
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

// apply submits the update and checks the outcome.
func (env *testEnv) apply(update *types.LightClientUpdate, want Outcome) {
	outcome, err := env.client.Update(update)
	require.NoError(env.t, err)
	require.Equal(env.t, want, outcome)
}

func finalizedHeader(slot uint64) *types.Header {
	header := lctest.Header(slot, common.Hash{}, common.HexToHash("0x01"))
	return &header
}

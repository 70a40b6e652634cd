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
	"time"

	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/stretchr/testify/require"
)

func TestBlockSync(t *testing.T) {
	env := newTestEnv(t)
	blockSync := env.client.blockSync
	blockSync.start()
	defer blockSync.stop()

	events := make(chan FinalizedBlockEvent, 4)
	sub := blockSync.SubscribeFinalized(events)
	defer sub.Unsubscribe()

	expectEvent := func() FinalizedBlockEvent {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("no finalized block event")
			return FinalizedBlockEvent{}
		}
	}
	expectNoEvent := func() {
		t.Helper()
		select {
		case ev := <-events:
			t.Fatalf("unexpected finalized block event %+v", ev)
		case <-time.After(100 * time.Millisecond):
		}
	}

	// The bootstrap head is not announced even when its block is available.
	lc := env.client.LightClient()
	bootstrap, bootBlock := lctest.BootstrapBlock(env.config, 8, 900, env.committees[0])
	env.upstream.addBlock(bootBlock)
	require.NoError(t, lc.Init(bootstrap))
	fetched, err := lc.FetchBlockFromSlot(context.Background(), 8)
	require.NoError(t, err)
	require.Equal(t, bootstrap.Header.Hash(), fetched.Root())
	expectNoEvent()

	block := testBlock(24, 1000)
	header := block.Header()
	env.upstream.addBlock(block)
	_, err = lc.Update(env.update(lctest.UpdateParams{AttestedSlot: 40, Finalized: &header}))
	require.NoError(t, err)

	ev := expectEvent()
	require.Equal(t, uint64(24), ev.Slot)
	require.Equal(t, header.Hash(), ev.BlockRoot)
	require.Equal(t, uint64(1000), ev.ExecNumber)

	// Moving only the optimistic head does not announce the same block again.
	_, err = lc.Update(env.update(lctest.UpdateParams{AttestedSlot: 50}))
	require.NoError(t, err)
	expectNoEvent()

	// The block is cached now.
	env.upstream.setFail(true)
	fetched, err = lc.FetchBlockFromSlot(context.Background(), 24)
	require.NoError(t, err)
	require.Equal(t, header.Hash(), fetched.Root())
}

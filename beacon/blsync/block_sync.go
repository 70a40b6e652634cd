// Copyright 2023 The go-ethereum Authors
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
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// FinalizedBlockEvent announces a new finalized beacon block together with the
// execution block it carries.
type FinalizedBlockEvent struct {
	Slot          uint64      `json:"slot"`
	BlockRoot     common.Hash `json:"blockRoot"`
	ExecNumber    uint64      `json:"executionNumber"`
	ExecHash      common.Hash `json:"executionHash"`
	ExecStateRoot common.Hash `json:"executionStateRoot"`
	ExecTime      uint64      `json:"executionTimestamp"`
}

// blockSource is the part of light.LightClient used by beaconBlockSync.
type blockSource interface {
	SubscribeHeads(ch chan<- light.HeadEvent) event.Subscription
	FetchBlockFromSlot(ctx context.Context, slot uint64) (*types.BeaconBlock, error)
}

// beaconBlockSync fetches the beacon block of every new finalized head. The
// blocks are authenticated and cached by the light client, so that later
// block queries for these slots are served locally.
type beaconBlockSync struct {
	lc      blockSource
	timeout time.Duration

	lastSlot      uint64
	finalizedFeed event.FeedOf[FinalizedBlockEvent]
	headSub       event.Subscription
	closeCh       chan struct{}
	wg            sync.WaitGroup
}

func newBeaconBlockSync(lc blockSource, timeout time.Duration) *beaconBlockSync {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &beaconBlockSync{
		lc:      lc,
		timeout: timeout,
		closeCh: make(chan struct{}),
	}
}

// SubscribeFinalized subscribes to finalized block events.
func (s *beaconBlockSync) SubscribeFinalized(ch chan<- FinalizedBlockEvent) event.Subscription {
	return s.finalizedFeed.Subscribe(ch)
}

func (s *beaconBlockSync) start() {
	headCh := make(chan light.HeadEvent, 16)
	s.headSub = s.lc.SubscribeHeads(headCh)
	s.wg.Add(1)
	go s.loop(headCh)
}

func (s *beaconBlockSync) stop() {
	close(s.closeCh)
	s.headSub.Unsubscribe()
	s.wg.Wait()
}

func (s *beaconBlockSync) loop(headCh <-chan light.HeadEvent) {
	defer s.wg.Done()

	for {
		select {
		case head := <-headCh:
			// Only the latest finalized head is of interest.
		drain:
			for {
				select {
				case head = <-headCh:
				default:
					break drain
				}
			}
			if head.Init {
				// The bootstrap header is trusted, not newly finalized.
				s.lastSlot = head.Finalized.Slot
				continue
			}
			s.process(head.Finalized)
		case <-s.headSub.Err():
			return
		case <-s.closeCh:
			return
		}
	}
}

func (s *beaconBlockSync) process(finalized types.Header) {
	if finalized.Slot <= s.lastSlot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	block, err := s.lc.FetchBlockFromSlot(ctx, finalized.Slot)
	if err != nil {
		log.Warn("Failed to fetch finalized beacon block", "slot", finalized.Slot, "error", err)
		return
	}
	s.lastSlot = finalized.Slot
	execBlock, err := block.ExecutionBlock()
	if err != nil {
		log.Error("Invalid execution payload in finalized beacon block", "slot", finalized.Slot, "error", err)
		return
	}
	log.Info("New finalized execution block", "number", execBlock.NumberU64(), "hash", execBlock.Hash(), "slot", finalized.Slot)
	s.finalizedFeed.Send(FinalizedBlockEvent{
		Slot:          finalized.Slot,
		BlockRoot:     block.Root(),
		ExecNumber:    execBlock.NumberU64(),
		ExecHash:      execBlock.Hash(),
		ExecStateRoot: execBlock.Root(),
		ExecTime:      execBlock.Time(),
	})
}

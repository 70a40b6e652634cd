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
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// headerCache holds authenticated headers and blocks by slot. Only headers at
// or below the finalized slot are ever added, so everything in the cache is
// trusted. Eviction never affects correctness, evicted entries are fetched and
// authenticated again on demand.
type headerCache struct {
	headers *lru.Cache[uint64, types.Header]
	blocks  *lru.Cache[uint64, *types.BeaconBlock]
}

func newHeaderCache(headers, blocks int) *headerCache {
	if headers < 1 {
		headers = 1
	}
	if blocks < 1 {
		blocks = 1
	}
	return &headerCache{
		headers: lru.NewCache[uint64, types.Header](headers),
		blocks:  lru.NewCache[uint64, *types.BeaconBlock](blocks),
	}
}

func (c *headerCache) addHeader(header types.Header) {
	c.headers.Add(header.Slot, header)
}

func (c *headerCache) header(slot uint64) (types.Header, bool) {
	header, ok := c.headers.Get(slot)
	if ok {
		cacheHitMeter.Mark(1)
	} else {
		cacheMissMeter.Mark(1)
	}
	return header, ok
}

func (c *headerCache) addBlock(block *types.BeaconBlock) {
	c.blocks.Add(block.Slot(), block)
}

func (c *headerCache) block(slot uint64) (*types.BeaconBlock, bool) {
	block, ok := c.blocks.Get(slot)
	if ok {
		cacheHitMeter.Mark(1)
	} else {
		cacheMissMeter.Mark(1)
	}
	return block, ok
}

// nearestAbove returns the cached header with the lowest slot above the given
// one, if any.
func (c *headerCache) nearestAbove(slot uint64) (types.Header, bool) {
	var (
		best  types.Header
		found bool
	)
	for _, s := range c.headers.Keys() {
		if s > slot && (!found || s < best.Slot) {
			if header, ok := c.headers.Peek(s); ok {
				best, found = header, true
			}
		}
	}
	return best, found
}

// blockByNumber returns a cached block containing the given execution block.
func (c *headerCache) blockByNumber(number uint64) (*types.BeaconBlock, bool) {
	for _, slot := range c.blocks.Keys() {
		block, ok := c.blocks.Peek(slot)
		if !ok {
			continue
		}
		if n, _ := block.ExecutionNumber(); n == number {
			return block, true
		}
	}
	return nil, false
}

func (c *headerCache) reset() {
	c.headers.Purge()
	c.blocks.Purge()
}

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

package params

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"
)

// ErrInvalidSlot is returned when a slot, epoch or period conversion does not
// fit into the configured chain parameters.
var ErrInvalidSlot = errors.New("invalid slot")

// SyncPeriodLength returns the number of slots in a sync committee period.
func (c *ChainConfig) SyncPeriodLength() uint64 {
	return c.SlotsPerEpoch * c.EpochsPerSyncCommitteePeriod
}

// UpdateTimeout is the number of slots after which the best valid update may
// be applied without a finality proof.
func (c *ChainConfig) UpdateTimeout() uint64 {
	return c.SyncPeriodLength()
}

// Epoch returns the epoch the given slot belongs to.
func (c *ChainConfig) Epoch(slot uint64) uint64 {
	return slot / c.SlotsPerEpoch
}

// SyncPeriod returns the sync committee period the given slot belongs to.
func (c *ChainConfig) SyncPeriod(slot uint64) uint64 {
	return slot / c.SyncPeriodLength()
}

// EpochStart returns the first slot of the given epoch.
func (c *ChainConfig) EpochStart(epoch uint64) (uint64, error) {
	hi, lo := bits.Mul64(epoch, c.SlotsPerEpoch)
	if hi != 0 {
		return 0, fmt.Errorf("%w: epoch %d start overflows", ErrInvalidSlot, epoch)
	}
	return lo, nil
}

// SyncPeriodStart returns the first slot of the given sync committee period.
func (c *ChainConfig) SyncPeriodStart(period uint64) (uint64, error) {
	hi, lo := bits.Mul64(period, c.SyncPeriodLength())
	if hi != 0 {
		return 0, fmt.Errorf("%w: period %d start overflows", ErrInvalidSlot, period)
	}
	return lo, nil
}

// SlotTimestamp returns the unix timestamp (in seconds) at which the given
// slot starts.
func (c *ChainConfig) SlotTimestamp(slot uint64) (uint64, error) {
	hi, offset := bits.Mul64(slot, c.SecondsPerSlot)
	if hi != 0 {
		return 0, fmt.Errorf("%w: slot %d timestamp overflows", ErrInvalidSlot, slot)
	}
	ts, carry := bits.Add64(c.GenesisTime, offset, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: slot %d timestamp overflows", ErrInvalidSlot, slot)
	}
	return ts, nil
}

// TimestampSlot returns the slot that is in progress at the given unix
// timestamp (in seconds).
func (c *ChainConfig) TimestampSlot(ts uint64) (uint64, error) {
	if ts < c.GenesisTime {
		return 0, fmt.Errorf("%w: timestamp %d precedes genesis %d", ErrInvalidSlot, ts, c.GenesisTime)
	}
	return (ts - c.GenesisTime) / c.SecondsPerSlot, nil
}

// CurrentSlot returns the slot in progress at the given time.
func (c *ChainConfig) CurrentSlot(now time.Time) (uint64, error) {
	unix := now.Unix()
	if unix < 0 {
		return 0, fmt.Errorf("%w: negative unix time", ErrInvalidSlot)
	}
	return c.TimestampSlot(uint64(unix))
}

// SlotTime returns the start of the given slot as a time.Time.
func (c *ChainConfig) SlotTime(slot uint64) (time.Time, error) {
	ts, err := c.SlotTimestamp(slot)
	if err != nil {
		return time.Time{}, err
	}
	if ts > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: slot %d time overflows", ErrInvalidSlot, slot)
	}
	return time.Unix(int64(ts), 0), nil
}

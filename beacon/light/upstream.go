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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// Upstream is the untrusted source of light client data, typically a beacon
// node. Nothing returned by it is trusted before verification.
type Upstream interface {
	// UpdateForPeriod returns the best update attesting a header in the given
	// sync period.
	UpdateForPeriod(ctx context.Context, period uint64) (*types.LightClientUpdate, error)
	// UpdateForSlot returns an update attesting the given slot or a later one
	// in the same sync period.
	UpdateForSlot(ctx context.Context, slot uint64) (*types.LightClientUpdate, error)
	// UpdateForBlockNumber returns an update attesting the beacon block which
	// contains the given execution block, or a later one in the same period.
	UpdateForBlockNumber(ctx context.Context, number uint64) (*types.LightClientUpdate, error)
	// Bootstrap returns the bootstrap data of a checkpoint.
	Bootstrap(ctx context.Context, root common.Hash) (*types.BootstrapData, error)
	// Header returns the beacon header with the given root.
	Header(ctx context.Context, root common.Hash) (*types.Header, error)
	// Block returns the beacon block at the given slot.
	Block(ctx context.Context, slot uint64) (*types.BeaconBlock, error)
}

// fetch calls the upstream with the configured timeout and classifies every
// failure as ErrUpstreamUnavailable.
func fetch[T any](ctx context.Context, lc *LightClient, what string, fn func(context.Context, Upstream) (T, error)) (T, error) {
	var zero T
	if lc.upstream == nil {
		return zero, fmt.Errorf("%w: no upstream configured", ErrUpstreamUnavailable)
	}
	if lc.config.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lc.config.UpstreamTimeout)
		defer cancel()
	}
	result, err := fn(ctx, lc.upstream)
	if err != nil {
		log.Warn("Upstream request failed", "request", what, "error", err)
		fetchErrorMeter.Mark(1)
		return zero, fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, what, err)
	}
	return result, nil
}

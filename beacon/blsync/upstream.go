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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// namedUpstream is an upstream with a name for logging.
type namedUpstream interface {
	light.Upstream
	Name() string
}

// failover queries a list of upstreams in order and returns the first
// successful answer. Nothing is trusted more than from a single upstream, the
// light client verifies every answer.
type failover struct {
	upstreams []namedUpstream
}

var _ light.Upstream = (*failover)(nil)

func newFailover(upstreams ...namedUpstream) *failover {
	return &failover{upstreams: upstreams}
}

// first calls fn on every upstream until one succeeds. If all of them fail,
// the joined errors are returned so that callers can still match their causes.
func first[T any](ctx context.Context, f *failover, what string, fn func(light.Upstream) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)
	if len(f.upstreams) == 0 {
		return zero, errors.New("no beacon API configured")
	}
	for _, u := range f.upstreams {
		result, err := fn(u)
		if err == nil {
			return result, nil
		}
		log.Debug("Beacon API request failed", "api", u.Name(), "request", what, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", u.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return zero, errors.Join(errs...)
}

func (f *failover) UpdateForPeriod(ctx context.Context, period uint64) (*types.LightClientUpdate, error) {
	return first(ctx, f, "update by period", func(u light.Upstream) (*types.LightClientUpdate, error) {
		return u.UpdateForPeriod(ctx, period)
	})
}

func (f *failover) UpdateForSlot(ctx context.Context, slot uint64) (*types.LightClientUpdate, error) {
	return first(ctx, f, "update by slot", func(u light.Upstream) (*types.LightClientUpdate, error) {
		return u.UpdateForSlot(ctx, slot)
	})
}

func (f *failover) UpdateForBlockNumber(ctx context.Context, number uint64) (*types.LightClientUpdate, error) {
	return first(ctx, f, "update by block number", func(u light.Upstream) (*types.LightClientUpdate, error) {
		return u.UpdateForBlockNumber(ctx, number)
	})
}

func (f *failover) Bootstrap(ctx context.Context, root common.Hash) (*types.BootstrapData, error) {
	return first(ctx, f, "bootstrap", func(u light.Upstream) (*types.BootstrapData, error) {
		return u.Bootstrap(ctx, root)
	})
}

func (f *failover) Header(ctx context.Context, root common.Hash) (*types.Header, error) {
	return first(ctx, f, "header", func(u light.Upstream) (*types.Header, error) {
		return u.Header(ctx, root)
	})
}

func (f *failover) Block(ctx context.Context, slot uint64) (*types.BeaconBlock, error) {
	return first(ctx, f, "block", func(u light.Upstream) (*types.BeaconBlock, error) {
		return u.Block(ctx, slot)
	})
}

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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// JSON-RPC error codes, one per operation class.
const (
	errCodeInit    = -39001
	errCodeUpdate  = -39002
	errCodeFetch   = -39003
	errCodePersist = -39004
)

// errorKinds names the specific errors reported in the data field of RPC
// errors. More specific errors come first.
var errorKinds = []struct {
	err  error
	name string
}{
	{light.ErrNotInitialized, "NotInitialized"},
	{light.ErrInvalidBootstrap, "InvalidBootstrap"},
	{light.ErrFutureUpdate, "FutureUpdate"},
	{light.ErrInvalidUpdate, "InvalidUpdate"},
	{light.ErrInvalidFinalityProof, "InvalidFinalityProof"},
	{light.ErrInvalidCommitteeProof, "InvalidCommitteeProof"},
	{light.ErrInvalidSignature, "InvalidSignature"},
	{light.ErrInsufficientParticipation, "InsufficientParticipation"},
	{light.ErrMissingCommitteeForPeriod, "MissingCommitteeForPeriod"},
	{light.ErrStale, "Stale"},
	{light.ErrUnverifiedSlot, "UnverifiedSlot"},
	{light.ErrNotCached, "NotCached"},
	{light.ErrUpstreamUnavailable, "UpstreamUnavailable"},
	{light.ErrCorruptPersistedState, "CorruptPersistedState"},
	{light.ErrIOFailure, "IOFailure"},
}

// apiError is an RPC error carrying the error class as code and the specific
// error kind as data.
type apiError struct {
	err  error
	code int
	kind string
}

func newAPIError(err error, code int) error {
	if err == nil {
		return nil
	}
	e := &apiError{err: err, code: code}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			e.kind = k.name
			break
		}
	}
	return e
}

func (e *apiError) Error() string          { return e.err.Error() }
func (e *apiError) Unwrap() error          { return e.err }
func (e *apiError) ErrorCode() int         { return e.code }
func (e *apiError) ErrorData() interface{} { return e.kind }

// UpdateResult is the result of the update operations.
type UpdateResult struct {
	Outcome light.Outcome `json:"outcome"`
	Status  light.Status  `json:"status"`
}

// LightClientAPI exposes the light client operations under the lightclient
// namespace.
type LightClientAPI struct {
	lc        *light.LightClient
	blockSync *beaconBlockSync
}

func (api *LightClientAPI) updateResult(outcome light.Outcome, err error) (*UpdateResult, error) {
	if err != nil {
		if light.IsSecurityRelevant(err) {
			log.Error("Rejected invalid light client update", "error", err)
		}
		return nil, newAPIError(err, errCodeUpdate)
	}
	status, err := api.lc.Status()
	if err != nil {
		return nil, newAPIError(err, errCodeUpdate)
	}
	return &UpdateResult{Outcome: outcome, Status: status}, nil
}

// Init installs a new store from the given bootstrap data.
func (api *LightClientAPI) Init(bootstrap *types.BootstrapData) error {
	return newAPIError(api.lc.Init(bootstrap), errCodeInit)
}

// InitFromCheckpoint initializes the client from a trusted checkpoint root.
func (api *LightClientAPI) InitFromCheckpoint(ctx context.Context, root common.Hash) error {
	return newAPIError(api.lc.InitFromCheckpoint(ctx, root), errCodeInit)
}

// Update validates and applies the given update.
func (api *LightClientAPI) Update(update *types.LightClientUpdate) (*UpdateResult, error) {
	return api.updateResult(api.lc.Update(update))
}

// UpdateForBlockNumber fetches and applies an update attesting the given
// execution block.
func (api *LightClientAPI) UpdateForBlockNumber(ctx context.Context, number hexutil.Uint64) (*UpdateResult, error) {
	return api.updateResult(api.lc.UpdateForBlockNumber(ctx, uint64(number)))
}

// UpdateForPeriod fetches and applies the best update of the given period.
func (api *LightClientAPI) UpdateForPeriod(ctx context.Context, period hexutil.Uint64) (*UpdateResult, error) {
	return api.updateResult(api.lc.UpdateForPeriod(ctx, uint64(period)))
}

// UpdateForSlot fetches and applies an update attesting the given slot.
func (api *LightClientAPI) UpdateForSlot(ctx context.Context, slot hexutil.Uint64) (*UpdateResult, error) {
	return api.updateResult(api.lc.UpdateForSlot(ctx, uint64(slot)))
}

// FetchHeaderFromSlot returns the verified beacon header at the given slot.
func (api *LightClientAPI) FetchHeaderFromSlot(ctx context.Context, slot hexutil.Uint64) (*types.Header, error) {
	header, err := api.lc.FetchHeaderFromSlot(ctx, uint64(slot))
	if err != nil {
		return nil, newAPIError(err, errCodeFetch)
	}
	return header, nil
}

// FetchBlockFromSlot returns the verified beacon block at the given slot.
func (api *LightClientAPI) FetchBlockFromSlot(ctx context.Context, slot hexutil.Uint64) (*types.BeaconBlock, error) {
	block, err := api.lc.FetchBlockFromSlot(ctx, uint64(slot))
	if err != nil {
		return nil, newAPIError(err, errCodeFetch)
	}
	return block, nil
}

// Persist writes the store to the database.
func (api *LightClientAPI) Persist() error {
	return newAPIError(api.lc.Persist(), errCodePersist)
}

// Status returns a summary of the store.
func (api *LightClientAPI) Status() (*light.Status, error) {
	status, err := api.lc.Status()
	if err != nil {
		return nil, newAPIError(err, errCodeFetch)
	}
	return &status, nil
}

// Checkpoints returns the roots of the locally stored checkpoints.
func (api *LightClientAPI) Checkpoints() []common.Hash {
	return api.lc.Checkpoints()
}

// Heads creates a subscription that is notified when the finalized or the
// optimistic head changes.
func (api *LightClientAPI) Heads(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	var (
		rpcSub = notifier.CreateSubscription()
		heads  = make(chan light.HeadEvent, 16)
		sub    = api.lc.SubscribeHeads(heads)
	)
	go func() {
		defer sub.Unsubscribe()

		for {
			select {
			case head := <-heads:
				notifier.Notify(rpcSub.ID, &headNotification{
					Finalized:  head.Finalized,
					Optimistic: head.Optimistic,
				})
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

type headNotification struct {
	Finalized  types.Header `json:"finalized"`
	Optimistic types.Header `json:"optimistic"`
}

// FinalizedBlocks creates a subscription that is notified with the execution
// block of every new finalized beacon block.
func (api *LightClientAPI) FinalizedBlocks(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	var (
		rpcSub = notifier.CreateSubscription()
		blocks = make(chan FinalizedBlockEvent, 16)
		sub    = api.blockSync.SubscribeFinalized(blocks)
	)
	go func() {
		defer sub.Unsubscribe()

		for {
			select {
			case block := <-blocks:
				notifier.Notify(rpcSub.ID, block)
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

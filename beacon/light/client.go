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
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// LightClient tracks the finalized and optimistic heads of a beacon chain by
// verifying sync committee signed updates, starting from a trusted bootstrap.
//
// Mutating operations (Init, Update and its variants, ForceUpdate) are
// serialized. The store is replaced as a whole on every accepted mutation, so
// readers always observe a consistent snapshot and may run concurrently with
// an update in progress.
type LightClient struct {
	config      params.ClientConfig
	chain       *params.ChainConfig
	upstream    Upstream
	validator   *validator
	cache       *headerCache
	persister   *persister
	checkpoints *checkpointStore
	unixNano    func() int64

	updateMu  sync.Mutex   // serializes store mutations
	storeLock sync.RWMutex // guards the store pointer
	store     *Store
	persistMu sync.Mutex // serializes persist calls

	headFeed event.FeedOf[HeadEvent]
}

// HeadEvent is sent when an accepted mutation moved the finalized or the
// optimistic head.
type HeadEvent struct {
	Finalized  types.Header
	Optimistic types.Header
	NewPeriod  bool // finality crossed into a new sync period
	Init       bool // first head after bootstrap
}

// New creates a light client. If the database holds a persisted store it is
// restored and verified, an inconsistent record fails with
// ErrCorruptPersistedState. A nil database means in-memory operation.
func New(config *params.ClientConfig, db ethdb.KeyValueStore, upstream Upstream) (*LightClient, error) {
	return newLightClient(config, db, upstream, true, func() int64 { return time.Now().UnixNano() })
}

// NewTestLightClient creates a light client driven by a simulated clock.
func NewTestLightClient(config *params.ClientConfig, db ethdb.KeyValueStore, upstream Upstream, clock *mclock.Simulated) (*LightClient, error) {
	return newLightClient(config, db, upstream, true, func() int64 { return int64(clock.Now()) })
}

// newLightClient creates a LightClient with the option of replacing the clock
// source and disabling the future update check for testing purposes.
func newLightClient(config *params.ClientConfig, db ethdb.KeyValueStore, upstream Upstream, enforceTime bool, unixNano func() int64) (*LightClient, error) {
	if err := config.ChainConfig.Validate(); err != nil {
		return nil, err
	}
	if err := config.SignatureThreshold.Validate(); err != nil {
		return nil, err
	}
	if db == nil {
		db = memorydb.New()
	}
	lc := &LightClient{
		config:      *config,
		upstream:    upstream,
		cache:       newHeaderCache(config.HeaderCacheSize, config.BlockCacheSize),
		checkpoints: &checkpointStore{db: db},
		unixNano:    unixNano,
	}
	lc.chain = &lc.config.ChainConfig
	lc.validator = &validator{
		config:      lc.chain,
		verifier:    newSignatureVerifier(config.SignatureThreshold, config.MinSyncCommitteeParticipants),
		enforceTime: enforceTime,
	}
	lc.persister = &persister{db: db, config: lc.chain}

	store, err := lc.persister.load()
	if err != nil {
		return nil, err
	}
	if store != nil {
		lc.setStore(store)
		lc.cache.addHeader(store.Finalized)
		log.Info("Restored light client store", "finalized", store.Finalized.Slot, "optimistic", store.Optimistic.Slot, "period", store.FinalizedPeriod(lc.chain))
	}
	return lc, nil
}

// Config returns the chain config of the client.
func (lc *LightClient) Config() *params.ChainConfig {
	return lc.chain
}

// Store returns the current store snapshot or nil if the client is not
// initialized. The returned store must not be modified.
func (lc *LightClient) Store() *Store {
	lc.storeLock.RLock()
	defer lc.storeLock.RUnlock()

	return lc.store
}

func (lc *LightClient) setStore(store *Store) {
	lc.storeLock.Lock()
	prev := lc.store
	lc.store = store
	lc.storeLock.Unlock()

	finalizedSlotGauge.Update(int64(store.Finalized.Slot))
	optimisticSlotGauge.Update(int64(store.Optimistic.Slot))

	if prev != nil && prev.Finalized == store.Finalized && prev.Optimistic == store.Optimistic {
		return
	}
	lc.headFeed.Send(HeadEvent{
		Finalized:  store.Finalized,
		Optimistic: store.Optimistic,
		NewPeriod:  prev == nil || prev.FinalizedPeriod(lc.chain) != store.FinalizedPeriod(lc.chain),
		Init:       prev == nil,
	})
}

// SubscribeHeads subscribes to head changes. Receivers must not call mutating
// operations of the client from the receiving goroutine.
func (lc *LightClient) SubscribeHeads(ch chan<- HeadEvent) event.Subscription {
	return lc.headFeed.Subscribe(ch)
}

// CurrentSlot returns the wall clock slot, or zero before genesis.
func (lc *LightClient) CurrentSlot() uint64 {
	slot, err := lc.chain.CurrentSlot(time.Unix(0, lc.unixNano()))
	if err != nil {
		return 0
	}
	return slot
}

// Init installs a new store from trusted bootstrap data, replacing any
// existing one.
func (lc *LightClient) Init(bootstrap *types.BootstrapData) error {
	if bootstrap == nil {
		return fmt.Errorf("%w: missing bootstrap data", ErrInvalidBootstrap)
	}
	header := bootstrap.Header
	spec, err := lc.chain.ForkSpec(header.Slot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	if err := bootstrap.Committee.CheckSize(lc.chain.SyncCommitteeSize); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	if err := bootstrap.Validate(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	if _, err := lc.validator.verifier.committee(bootstrap.Committee); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	store := &Store{
		Finalized:        header,
		Optimistic:       header,
		CurrentCommittee: bootstrap.Committee,
		CurrentProof: &CommitteeProof{
			Header: header,
			Branch: bootstrap.CommitteeBranch,
			Index:  spec.CurrentCommitteeIndex,
		},
	}
	if err := store.checkInvariants(lc.chain); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	lc.updateMu.Lock()
	defer lc.updateMu.Unlock()

	lc.setStore(store)
	lc.cache.reset()
	lc.cache.addHeader(header)
	if err := lc.checkpoints.put(bootstrap); err != nil {
		log.Warn("Failed to store checkpoint", "root", header.Hash(), "error", err)
	}
	log.Info("Initialized light client", "slot", header.Slot, "root", header.Hash(), "period", lc.chain.SyncPeriod(header.Slot))
	return nil
}

// InitFromCheckpoint initializes the client from the bootstrap data of the
// given checkpoint root, taken from the local checkpoint store if available
// or fetched from the upstream otherwise.
func (lc *LightClient) InitFromCheckpoint(ctx context.Context, root common.Hash) error {
	bootstrap, err := lc.checkpoints.get(root)
	if err != nil {
		log.Warn("Failed to read stored checkpoint", "root", root, "error", err)
	}
	if bootstrap == nil {
		bootstrap, err = fetch(ctx, lc, "bootstrap", func(ctx context.Context, u Upstream) (*types.BootstrapData, error) {
			return u.Bootstrap(ctx, root)
		})
		if err != nil {
			return err
		}
		if bootstrap == nil {
			return fmt.Errorf("%w: empty bootstrap response", ErrUpstreamUnavailable)
		}
	}
	if have := bootstrap.Header.Hash(); have != root {
		return fmt.Errorf("%w: bootstrap header root %x, want %x", ErrInvalidBootstrap, have, root)
	}
	return lc.Init(bootstrap)
}

// Checkpoints returns the roots of the locally stored checkpoints.
func (lc *LightClient) Checkpoints() []common.Hash {
	return lc.checkpoints.roots()
}

// Update validates the given update and applies it to the store if it brings
// new information. If finality stalled for longer than the update timeout, the
// update is validated against the store with the best valid update promoted,
// and the promotion is published together with the accepted update.
//
// A valid update that does not advance any head fails with ErrStale. Failed
// updates leave the store unchanged, a due promotion is then left to
// ForceUpdate.
func (lc *LightClient) Update(update *types.LightClientUpdate) (Outcome, error) {
	if update == nil {
		return OutcomeRejected, fmt.Errorf("%w: missing update", ErrInvalidUpdate)
	}
	lc.updateMu.Lock()
	defer lc.updateMu.Unlock()

	store := lc.Store()
	if store == nil {
		return OutcomeRejected, ErrNotInitialized
	}
	var (
		currentSlot = lc.CurrentSlot()
		base        = store
		forced      = lc.promote(store, currentSlot)
	)
	if forced != nil {
		base = forced
	}
	d, err := lc.validator.validate(base, update, currentSlot)
	if err != nil {
		lc.logRejected(update, err)
		return OutcomeRejected, err
	}
	next := applyDecision(lc.chain, base, d)
	if err := next.checkInvariants(lc.chain); err != nil {
		log.Error("Update would violate store invariants", "attested", update.AttestedHeader.Header.Slot, "error", err)
		updateRejectedMeter.Mark(1)
		return OutcomeRejected, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	lc.setStore(next)
	outcome := d.outcome()
	if forced != nil {
		lc.cache.addHeader(forced.Finalized)
		lc.logForced(store, forced, currentSlot)
		outcome = OutcomeAdvanceFinalized
	}
	if next.Finalized != store.Finalized {
		lc.cache.addHeader(next.Finalized)
	}
	updateAcceptedMeter.Mark(1)

	log.Info("Accepted light client update", "outcome", outcome, "attested", update.AttestedHeader.Header.Slot,
		"signers", update.AttestedHeader.Signature.SignerCount(), "optimistic", next.Optimistic.Slot, "finalized", next.Finalized.Slot)
	if next.FinalizedPeriod(lc.chain) != store.FinalizedPeriod(lc.chain) {
		log.Info("Sync committee period changed", "period", next.FinalizedPeriod(lc.chain), "next committee known", next.HasNextCommittee())
	}
	return outcome, nil
}

func (lc *LightClient) logRejected(update *types.LightClientUpdate, err error) {
	attested, sigSlot := update.AttestedHeader.Header.Slot, update.AttestedHeader.SignatureSlot
	switch {
	case errors.Is(err, ErrStale):
		updateStaleMeter.Mark(1)
		log.Debug("Ignoring stale light client update", "attested", attested, "error", err)
	case IsSecurityRelevant(err):
		updateRejectedMeter.Mark(1)
		log.Error("Rejected invalid light client update", "attested", attested, "signature slot", sigSlot, "error", err)
	default:
		updateRejectedMeter.Mark(1)
		log.Warn("Rejected light client update", "attested", attested, "signature slot", sigSlot, "error", err)
	}
}

// promote returns the store with the best valid update promoted if its
// timeout has passed, or nil if nothing changes. The result is not published.
func (lc *LightClient) promote(store *Store, currentSlot uint64) *Store {
	forced := forceUpdate(lc.chain, store, currentSlot)
	if forced == nil {
		return nil
	}
	if err := forced.checkInvariants(lc.chain); err != nil {
		log.Error("Forced update would violate store invariants", "error", err)
		return nil
	}
	return forced
}

func (lc *LightClient) logForced(prev, forced *Store, currentSlot uint64) {
	forceUpdateCounter.Inc(1)
	log.Warn("Forced light client finality", "finalized", forced.Finalized.Slot, "previous", prev.Finalized.Slot, "current slot", currentSlot)
}

// ForceUpdate promotes the best valid update if finality did not advance
// within the update timeout.
func (lc *LightClient) ForceUpdate() (Outcome, error) {
	lc.updateMu.Lock()
	defer lc.updateMu.Unlock()

	store := lc.Store()
	if store == nil {
		return OutcomeRejected, ErrNotInitialized
	}
	currentSlot := lc.CurrentSlot()
	forced := lc.promote(store, currentSlot)
	if forced == nil {
		return OutcomeNoChange, nil
	}
	lc.setStore(forced)
	lc.cache.addHeader(forced.Finalized)
	lc.logForced(store, forced, currentSlot)
	return OutcomeAdvanceFinalized, nil
}

// UpdateForPeriod fetches the best update of the given sync period and
// applies it.
func (lc *LightClient) UpdateForPeriod(ctx context.Context, period uint64) (Outcome, error) {
	update, err := fetch(ctx, lc, "update by period", func(ctx context.Context, u Upstream) (*types.LightClientUpdate, error) {
		return u.UpdateForPeriod(ctx, period)
	})
	if err != nil {
		return OutcomeRejected, err
	}
	if update == nil {
		return OutcomeRejected, fmt.Errorf("%w: empty update response", ErrUpstreamUnavailable)
	}
	if have := lc.chain.SyncPeriod(update.AttestedHeader.Header.Slot); have != period {
		return OutcomeRejected, fmt.Errorf("%w: requested period %d, got update of period %d", ErrUpstreamUnavailable, period, have)
	}
	return lc.Update(update)
}

// UpdateForSlot fetches an update attesting the given slot, or a later one of
// the same sync period, and applies it.
func (lc *LightClient) UpdateForSlot(ctx context.Context, slot uint64) (Outcome, error) {
	update, err := fetch(ctx, lc, "update by slot", func(ctx context.Context, u Upstream) (*types.LightClientUpdate, error) {
		return u.UpdateForSlot(ctx, slot)
	})
	if err != nil {
		return OutcomeRejected, err
	}
	if update == nil {
		return OutcomeRejected, fmt.Errorf("%w: empty update response", ErrUpstreamUnavailable)
	}
	attested := update.AttestedHeader.Header.Slot
	if attested < slot || lc.chain.SyncPeriod(attested) != lc.chain.SyncPeriod(slot) {
		return OutcomeRejected, fmt.Errorf("%w: requested slot %d, got update attesting slot %d", ErrUpstreamUnavailable, slot, attested)
	}
	return lc.Update(update)
}

// UpdateForBlockNumber fetches an update attesting the beacon block carrying
// the given execution block and applies it. Blocks in the local cache are
// resolved without asking the upstream.
func (lc *LightClient) UpdateForBlockNumber(ctx context.Context, number uint64) (Outcome, error) {
	if block, ok := lc.cache.blockByNumber(number); ok {
		return lc.UpdateForSlot(ctx, block.Slot())
	}
	update, err := fetch(ctx, lc, "update by block number", func(ctx context.Context, u Upstream) (*types.LightClientUpdate, error) {
		return u.UpdateForBlockNumber(ctx, number)
	})
	if err != nil {
		return OutcomeRejected, err
	}
	if update == nil {
		return OutcomeRejected, fmt.Errorf("%w: empty update response", ErrUpstreamUnavailable)
	}
	return lc.Update(update)
}

// FetchHeaderFromSlot returns the finalized chain's header at the given slot.
// Headers missing from the cache are authenticated by walking parent roots
// down from the nearest trusted header above the slot. Slots above the
// finalized head fail with ErrUnverifiedSlot, empty slots and slots out of
// backfill reach fail with ErrNotCached.
func (lc *LightClient) FetchHeaderFromSlot(ctx context.Context, slot uint64) (*types.Header, error) {
	store := lc.Store()
	if store == nil {
		return nil, ErrNotInitialized
	}
	if slot > store.Finalized.Slot {
		return nil, fmt.Errorf("%w: slot %d above finalized slot %d", ErrUnverifiedSlot, slot, store.Finalized.Slot)
	}
	if slot == store.Finalized.Slot {
		header := store.Finalized
		return &header, nil
	}
	if header, ok := lc.cache.header(slot); ok {
		return &header, nil
	}
	anchor, ok := lc.cache.nearestAbove(slot)
	if !ok || anchor.Slot > store.Finalized.Slot {
		anchor = store.Finalized
	}
	for i := 0; i < lc.config.MaxBackfill; i++ {
		root := anchor.ParentRoot
		header, err := fetch(ctx, lc, "header", func(ctx context.Context, u Upstream) (*types.Header, error) {
			return u.Header(ctx, root)
		})
		if err != nil {
			return nil, err
		}
		if header == nil {
			return nil, fmt.Errorf("%w: empty header response", ErrUpstreamUnavailable)
		}
		if have := header.Hash(); have != root {
			return nil, fmt.Errorf("%w: header root %x, want %x", ErrUpstreamUnavailable, have, root)
		}
		if header.Slot >= anchor.Slot {
			return nil, fmt.Errorf("%w: parent slot %d not below child slot %d", ErrUpstreamUnavailable, header.Slot, anchor.Slot)
		}
		lc.cache.addHeader(*header)
		if header.Slot == slot {
			return header, nil
		}
		if header.Slot < slot {
			return nil, fmt.Errorf("%w: slot %d is empty", ErrNotCached, slot)
		}
		anchor = *header
	}
	return nil, fmt.Errorf("%w: slot %d is beyond backfill reach", ErrNotCached, slot)
}

// FetchBlockFromSlot returns the finalized chain's block at the given slot. The
// block is authenticated against the header of the same slot.
func (lc *LightClient) FetchBlockFromSlot(ctx context.Context, slot uint64) (*types.BeaconBlock, error) {
	header, err := lc.FetchHeaderFromSlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	root := header.Hash()
	if block, ok := lc.cache.block(slot); ok && block.Root() == root {
		return block, nil
	}
	block, err := fetch(ctx, lc, "block", func(ctx context.Context, u Upstream) (*types.BeaconBlock, error) {
		return u.Block(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("%w: empty block response", ErrUpstreamUnavailable)
	}
	if have := block.Root(); have != root {
		return nil, fmt.Errorf("%w: block root %x does not match header root %x", ErrUnverifiedSlot, have, root)
	}
	lc.cache.addBlock(block)
	return block, nil
}

// Persist writes the current store to the database. It does not block
// updates.
func (lc *LightClient) Persist() error {
	lc.persistMu.Lock()
	defer lc.persistMu.Unlock()

	// Read under the lock, a later generation never holds an older store.
	store := lc.Store()
	if store == nil {
		return ErrNotInitialized
	}
	if err := lc.persister.save(store); err != nil {
		return err
	}
	log.Info("Persisted light client store", "generation", lc.persister.generation, "finalized", store.Finalized.Slot, "optimistic", store.Optimistic.Slot)
	return nil
}

// Status returns a summary of the store.
func (lc *LightClient) Status() (Status, error) {
	store := lc.Store()
	if store == nil {
		return Status{}, ErrNotInitialized
	}
	return store.status(lc.chain), nil
}

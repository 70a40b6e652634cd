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

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/light/api"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// Config contains the settings of the sync driver.
type Config struct {
	Interval        time.Duration // time between sync attempts, one slot if zero
	MaxBackoff      time.Duration // upper limit of the retry delay after upstream failures
	PersistInterval int           // persist after this many accepted updates, zero disables
}

// DefaultConfig contains the default sync driver settings.
var DefaultConfig = Config{
	MaxBackoff: 2 * time.Minute,
}

// lightClient is the part of light.LightClient used by the syncer.
type lightClient interface {
	Config() *params.ChainConfig
	Store() *light.Store
	CurrentSlot() uint64
	Update(update *types.LightClientUpdate) (light.Outcome, error)
	UpdateForPeriod(ctx context.Context, period uint64) (light.Outcome, error)
	UpdateForSlot(ctx context.Context, slot uint64) (light.Outcome, error)
	ForceUpdate() (light.Outcome, error)
	Persist() error
}

// Syncer periodically pulls updates from the upstream into the light client.
// While the next sync committee is unknown, only the best update of the
// finalized period is requested and pushed updates are held back, since a
// committee is only accepted with a head above the optimistic one and the
// latest updates carry none. Otherwise the syncer follows the latest updates. If
// the wall clock ran more than a period ahead of the store, the best update of
// the next period is requested so that committees are rotated one by one.
type Syncer struct {
	lc       lightClient
	clock    mclock.Clock
	config   Config
	interval time.Duration

	backoff  time.Duration
	accepted int

	trigger chan struct{}
	pushCh  chan *types.LightClientUpdate
	closeCh chan struct{}
	doneCh  chan struct{}
}

// NewSyncer creates a syncer. It does nothing until started.
func NewSyncer(lc lightClient, clock mclock.Clock, config Config) *Syncer {
	interval := config.Interval
	if interval == 0 {
		interval = time.Duration(lc.Config().SecondsPerSlot) * time.Second
	}
	if config.MaxBackoff < interval {
		config.MaxBackoff = interval
	}
	return &Syncer{
		lc:       lc,
		clock:    clock,
		config:   config,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		pushCh:   make(chan *types.LightClientUpdate, 4),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sync loop. The first attempt happens immediately.
func (s *Syncer) Start() {
	go s.loop()
}

// Stop terminates the sync loop and waits for it to exit.
func (s *Syncer) Stop() {
	close(s.closeCh)
	<-s.doneCh
}

// Trigger requests a sync attempt without waiting for the timer, for example
// when the beacon node announced a new head.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Syncer) loop() {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.closeCh
		cancel()
	}()

	timer := s.clock.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-timer.C():
		case <-s.trigger:
			timer.Stop()
		case update := <-s.pushCh:
			if s.awaitingCommittee() {
				timer.Stop()
				break
			}
			s.handle(noStale(s.lc.Update(update)))
			continue
		case <-s.closeCh:
			return
		}
		outcome, err := s.SyncOnce(ctx)
		timer.Reset(s.handle(outcome, err))
	}
}

// Push queues an update announced by the upstream. It is validated and
// applied by the sync loop.
func (s *Syncer) Push(update *types.LightClientUpdate) {
	select {
	case s.pushCh <- update:
	default:
		log.Debug("Dropping pushed light client update", "attested", update.AttestedHeader.Header.Slot)
	}
}

// SyncOnce performs a single sync step. A stale update is reported as
// OutcomeNoChange without error.
func (s *Syncer) SyncOnce(ctx context.Context) (light.Outcome, error) {
	store := s.lc.Store()
	if store == nil {
		return light.OutcomeRejected, light.ErrNotInitialized
	}
	if _, err := s.lc.ForceUpdate(); err != nil {
		return light.OutcomeRejected, err
	}
	store = s.lc.Store()

	var (
		chain       = s.lc.Config()
		storePeriod = store.FinalizedPeriod(chain)
		wallPeriod  = chain.SyncPeriod(s.lc.CurrentSlot())
	)
	if !store.HasNextCommittee() {
		outcome, err := s.lc.UpdateForPeriod(ctx, storePeriod)
		if errors.Is(err, light.ErrStale) {
			log.Warn("Best update of the period is behind the optimistic head", "period", storePeriod, "optimistic", store.Optimistic.Slot)
			return light.OutcomeNoChange, nil
		}
		return outcome, err
	}
	if wallPeriod > storePeriod+1 {
		return noStale(s.lc.UpdateForPeriod(ctx, storePeriod+1))
	}
	slot := store.Optimistic.Slot + 1
	if start, err := chain.SyncPeriodStart(wallPeriod); err == nil && start > slot {
		slot = start
	}
	return noStale(s.lc.UpdateForSlot(ctx, slot))
}

// awaitingCommittee reports whether the next sync committee is still to be
// learned from a period update.
func (s *Syncer) awaitingCommittee() bool {
	store := s.lc.Store()
	return store != nil && !store.HasNextCommittee()
}

func noStale(outcome light.Outcome, err error) (light.Outcome, error) {
	if errors.Is(err, light.ErrStale) {
		return light.OutcomeNoChange, nil
	}
	return outcome, err
}

// handle logs the result of a sync step, persists if due and returns the
// delay until the next attempt.
func (s *Syncer) handle(outcome light.Outcome, err error) time.Duration {
	switch {
	case err == nil:
		s.backoff = 0
		if outcome == light.OutcomeAdvanceOptimistic || outcome == light.OutcomeAdvanceFinalized {
			s.accepted++
			if s.config.PersistInterval > 0 && s.accepted%s.config.PersistInterval == 0 {
				if err := s.lc.Persist(); err != nil {
					log.Error("Failed to persist light client store", "error", err)
				}
			}
		}
		return s.interval

	case errors.Is(err, api.ErrNotFound):
		log.Debug("No new light client update available", "error", err)
		s.backoff = 0
		return s.interval

	case errors.Is(err, light.ErrNotInitialized):
		log.Debug("Light client not initialized, waiting")
		return s.interval

	case light.IsSecurityRelevant(err):
		log.Error("Upstream served an invalid light client update", "error", err)
		return s.interval

	case errors.Is(err, light.ErrUpstreamUnavailable):
		if s.backoff == 0 {
			s.backoff = s.interval
		} else {
			s.backoff *= 2
		}
		if s.backoff > s.config.MaxBackoff {
			s.backoff = s.config.MaxBackoff
		}
		log.Warn("Light client upstream unavailable", "retry", s.backoff, "error", err)
		return s.backoff

	default:
		log.Warn("Light client sync failed", "error", err)
		return s.interval
	}
}

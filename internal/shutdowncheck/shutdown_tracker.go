// Copyright 2021 The go-ethereum Authors
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

// Package shutdowncheck keeps a record of process startups in the database to
// detect shutdowns that skipped persisting the light client store.
package shutdowncheck

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

// refreshInterval is how often the marker of the running process is updated.
const refreshInterval = 5 * time.Minute

// ShutdownTracker is a service that reports previous unclean shutdowns
// upon start. It needs to be started after a successful start-up and stopped
// after a successful shutdown, just before the db is closed.
type ShutdownTracker struct {
	db       ethdb.KeyValueStore
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewShutdownTracker creates a new ShutdownTracker instance and has
// no other side-effect.
func NewShutdownTracker(db ethdb.KeyValueStore) *ShutdownTracker {
	return &ShutdownTracker{
		db:     db,
		stopCh: make(chan struct{}),
	}
}

// MarkStartup records the startup of the process and returns the boot
// timestamps of earlier runs that never marked their shutdown.
func (t *ShutdownTracker) MarkStartup() []uint64 {
	uncleanShutdowns, discards, err := rawdb.PushUncleanShutdownMarker(t.db)
	if err != nil {
		log.Error("Could not update unclean-shutdown-marker list", "error", err)
		return nil
	}
	if discards > 0 {
		log.Warn("Old unclean shutdowns found", "count", discards)
	}
	for _, tstamp := range uncleanShutdowns {
		t := time.Unix(int64(tstamp), 0)
		log.Warn("Unclean shutdown detected, light client state may be behind", "booted", t, "age", common.PrettyAge(t))
	}
	return uncleanShutdowns
}

// Start runs an event loop that updates the current marker's timestamp every 5 minutes.
func (t *ShutdownTracker) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rawdb.UpdateUncleanShutdownMarker(t.db)
			case <-t.stopCh:
				return
			}
		}
	}()
}

// Stop stops the update loop and clears the marker of this run.
func (t *ShutdownTracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
		rawdb.PopUncleanShutdownMarker(t.db)
	})
}

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

import "github.com/ethereum/go-ethereum/metrics"

var (
	updateAcceptedMeter = metrics.NewRegisteredMeter("lightclient/update/accepted", nil)
	updateRejectedMeter = metrics.NewRegisteredMeter("lightclient/update/rejected", nil)
	updateStaleMeter    = metrics.NewRegisteredMeter("lightclient/update/stale", nil)
	forceUpdateCounter  = metrics.NewRegisteredCounter("lightclient/update/forced", nil)

	finalizedSlotGauge  = metrics.NewRegisteredGauge("lightclient/head/finalized", nil)
	optimisticSlotGauge = metrics.NewRegisteredGauge("lightclient/head/optimistic", nil)

	cacheHitMeter   = metrics.NewRegisteredMeter("lightclient/cache/hit", nil)
	cacheMissMeter  = metrics.NewRegisteredMeter("lightclient/cache/miss", nil)
	fetchErrorMeter = metrics.NewRegisteredMeter("lightclient/upstream/errors", nil)
)

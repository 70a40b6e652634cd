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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/donovanhide/eventsource"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// HeadEventListener receives the events of the beacon node event stream. The
// callbacks are never called concurrently. Unset callbacks are skipped.
type HeadEventListener struct {
	OnNewHead  func(slot uint64, blockRoot common.Hash)
	OnFinality func(update *types.LightClientUpdate)
	OnError    func(err error)
}

func decodeHeadEvent(enc []byte) (uint64, common.Hash, error) {
	var data struct {
		Slot  string      `json:"slot"`
		Block common.Hash `json:"block"`
	}
	if err := json.Unmarshal(enc, &data); err != nil {
		return 0, common.Hash{}, err
	}
	slot, err := strconv.ParseUint(data.Slot, 10, 64)
	if err != nil {
		return 0, common.Hash{}, fmt.Errorf("invalid slot %q", data.Slot)
	}
	return slot, data.Block, nil
}

func decodeFinalityEvent(enc []byte) (*types.LightClientUpdate, error) {
	// The event carries the update either directly or in a versioned wrapper.
	var wrapped versionedUpdate
	if err := json.Unmarshal(enc, &wrapped); err == nil && wrapped.Data.AttestedHeader.Header != (types.Header{}) {
		return &wrapped.Data, nil
	}
	update := new(types.LightClientUpdate)
	if err := json.Unmarshal(enc, update); err != nil {
		return nil, err
	}
	return update, nil
}

// StartHeadListener creates an event subscription for heads and finality
// updates and calls the specified callbacks when they are received. The
// returned function closes the subscription.
func (api *BeaconLightApi) StartHeadListener(listener HeadEventListener) func() {
	var (
		ctx, closeCtx = context.WithCancel(context.Background())
		wg            sync.WaitGroup
	)
	onError := func(err error) {
		if listener.OnError != nil {
			listener.OnError(err)
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()

		stream := api.startEventStream(ctx, onError)
		if stream == nil {
			// This case happens when the context was closed.
			return
		}
		defer stream.Close()

		log.Trace("Starting event stream processing loop")
		for {
			select {
			case event, ok := <-stream.Events:
				if !ok {
					log.Trace("Event stream closed")
					return
				}
				log.Trace("New event received from event stream", "type", event.Event())
				switch event.Event() {
				case "head":
					slot, blockRoot, err := decodeHeadEvent([]byte(event.Data()))
					if err != nil {
						onError(fmt.Errorf("error decoding head event: %v", err))
					} else if listener.OnNewHead != nil {
						listener.OnNewHead(slot, blockRoot)
					}
				case "light_client_finality_update":
					update, err := decodeFinalityEvent([]byte(event.Data()))
					if err != nil {
						onError(fmt.Errorf("error decoding finality update event: %v", err))
					} else if listener.OnFinality != nil {
						listener.OnFinality(update)
					}
				default:
					onError(fmt.Errorf("unexpected event: %s", event.Event()))
				}

			case err, ok := <-stream.Errors:
				if !ok {
					return
				}
				onError(err)

			case <-ctx.Done():
				log.Trace("Stopping event stream processing loop")
				return
			}
		}
	}()

	return func() {
		closeCtx()
		wg.Wait()
	}
}

func (api *BeaconLightApi) startEventStream(ctx context.Context, onError func(error)) *eventsource.Stream {
	for retry := true; retry; retry = ctxSleep(ctx, 5*time.Second) {
		log.Trace("Sending event subscription request")
		uri, err := api.buildURL("/eth/v1/events", map[string][]string{"topics": {"head", "light_client_finality_update"}})
		if err != nil {
			onError(fmt.Errorf("error creating event subscription URL: %v", err))
			continue
		}
		req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
		if err != nil {
			onError(fmt.Errorf("error creating event subscription request: %v", err))
			continue
		}
		for k, v := range api.customHeaders {
			req.Header.Set(k, v)
		}
		stream, err := eventsource.SubscribeWithRequest("", req)
		if err != nil {
			onError(fmt.Errorf("error creating event subscription: %v", err))
			continue
		}
		log.Trace("Successfully created event stream")
		return stream
	}
	return nil
}

func ctxSleep(ctx context.Context, timeout time.Duration) (ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

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
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	ErrNotFound               = errors.New("404 Not Found")
	ErrInternal               = errors.New("500 Internal Server Error")
	ErrBlockNumberUnsupported = errors.New("block number lookup needs an execution RPC endpoint")
)

// fetcher is an interface useful for debug-harnessing the http api.
type fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// executionClient resolves execution block numbers. It is implemented by
// ethclient.Client.
type executionClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
}

var _ light.Upstream = (*BeaconLightApi)(nil)

// BeaconLightApi requests light client information from a beacon node REST API.
// Identical requests issued concurrently are sent only once.
type BeaconLightApi struct {
	url           string
	client        fetcher
	customHeaders map[string]string
	config        *params.ChainConfig
	exec          executionClient
	limiter       *rate.Limiter
	group         singleflight.Group
}

func NewBeaconLightApi(url string, customHeaders map[string]string, config *params.ChainConfig) *BeaconLightApi {
	return &BeaconLightApi{
		url: url,
		client: &http.Client{
			Timeout: time.Second * 10,
		},
		customHeaders: customHeaders,
		config:        config,
		limiter:       rate.NewLimiter(rate.Inf, 0),
	}
}

// SetRateLimit limits the number of requests per second sent to the beacon
// node. Zero or less removes the limit.
func (api *BeaconLightApi) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		api.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	api.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// DialExecution connects to an execution layer RPC endpoint used to map block
// numbers to beacon slots.
func (api *BeaconLightApi) DialExecution(ctx context.Context, rawurl string) error {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return err
	}
	api.exec = client
	return nil
}

// Name returns the endpoint URL.
func (api *BeaconLightApi) Name() string {
	return api.url
}

// httpGet sends a GET request and returns the response body. Concurrent
// requests for the same URI share a single round trip.
func (api *BeaconLightApi) httpGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	uri, err := api.buildURL(path, params)
	if err != nil {
		return nil, err
	}
	ch := api.group.DoChan(uri, func() (interface{}, error) {
		return api.doGet(context.WithoutCancel(ctx), uri, path)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (api *BeaconLightApi) doGet(ctx context.Context, uri, path string) ([]byte, error) {
	if err := api.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range api.customHeaders {
		req.Header.Set(k, v)
	}
	resp, err := api.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == 200:
		return io.ReadAll(resp.Body)
	case resp.StatusCode == 404:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: endpoint \"%s\" status code %d", ErrInternal, path, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected error from API endpoint \"%s\": status code %d", path, resp.StatusCode)
	}
}

type versionedUpdate struct {
	Version string                  `json:"version"`
	Data    types.LightClientUpdate `json:"data"`
}

// UpdateForPeriod fetches the best update of the given sync period. The update
// is not verified, its signature and proofs are checked by the light client.
//
// See data structure definition here:
// https://github.com/ethereum/consensus-specs/blob/dev/specs/altair/light-client/sync-protocol.md#lightclientupdate
func (api *BeaconLightApi) UpdateForPeriod(ctx context.Context, period uint64) (*types.LightClientUpdate, error) {
	resp, err := api.httpGet(ctx, "/eth/v1/beacon/light_client/updates", map[string][]string{
		"start_period": {strconv.FormatUint(period, 10)},
		"count":        {"1"},
	})
	if err != nil {
		return nil, err
	}
	var data []versionedUpdate
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, err
	}
	if len(data) != 1 {
		return nil, fmt.Errorf("invalid number of committee updates: %d", len(data))
	}
	return &data[0].Data, nil
}

// FinalityUpdate fetches the latest available finality update.
func (api *BeaconLightApi) FinalityUpdate(ctx context.Context) (*types.LightClientUpdate, error) {
	return api.latestUpdate(ctx, "/eth/v1/beacon/light_client/finality_update")
}

// OptimisticUpdate fetches the latest available optimistic update.
func (api *BeaconLightApi) OptimisticUpdate(ctx context.Context) (*types.LightClientUpdate, error) {
	return api.latestUpdate(ctx, "/eth/v1/beacon/light_client/optimistic_update")
}

func (api *BeaconLightApi) latestUpdate(ctx context.Context, path string) (*types.LightClientUpdate, error) {
	resp, err := api.httpGet(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var data versionedUpdate
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, err
	}
	if data.Data.AttestedHeader.Header == (types.Header{}) {
		return nil, errors.New("missing attested header")
	}
	return &data.Data, nil
}

// UpdateForSlot returns an update attesting the given slot or a later one of
// the same sync period. The latest finality and optimistic updates are tried
// first. Slots of an earlier period are served by the best update of their
// period. If the beacon node has nothing that recent yet, ErrNotFound is
// returned.
func (api *BeaconLightApi) UpdateForSlot(ctx context.Context, slot uint64) (*types.LightClientUpdate, error) {
	period := api.config.SyncPeriod(slot)
	var latest uint64
	for _, get := range []func(context.Context) (*types.LightClientUpdate, error){api.FinalityUpdate, api.OptimisticUpdate} {
		update, err := get(ctx)
		if err != nil {
			log.Debug("Latest light client update unavailable", "error", err)
			continue
		}
		attested := update.AttestedHeader.Header.Slot
		if attested >= slot && api.config.SyncPeriod(attested) == period {
			return update, nil
		}
		if attested > latest {
			latest = attested
		}
	}
	if period < api.config.SyncPeriod(latest) {
		return api.UpdateForPeriod(ctx, period)
	}
	return nil, fmt.Errorf("%w: no update attesting slot %d (latest %d)", ErrNotFound, slot, latest)
}

// UpdateForBlockNumber maps the execution block number to its slot through the
// block timestamp and returns an update for that slot.
func (api *BeaconLightApi) UpdateForBlockNumber(ctx context.Context, number uint64) (*types.LightClientUpdate, error) {
	if api.exec == nil {
		return nil, ErrBlockNumberUnsupported
	}
	header, err := api.exec.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("execution header %d: %w", number, err)
	}
	slot, err := api.config.TimestampSlot(header.Time)
	if err != nil {
		return nil, err
	}
	log.Trace("Resolved execution block", "number", number, "time", header.Time, "slot", slot)
	return api.UpdateForSlot(ctx, slot)
}

// Header fetches and validates the beacon header with the given blockRoot.
func (api *BeaconLightApi) Header(ctx context.Context, blockRoot common.Hash) (*types.Header, error) {
	resp, err := api.httpGet(ctx, fmt.Sprintf("/eth/v1/beacon/headers/%s", blockRoot.Hex()), nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Data struct {
			Root      common.Hash `json:"root"`
			Canonical bool        `json:"canonical"`
			Header    struct {
				Message   types.Header  `json:"message"`
				Signature hexutil.Bytes `json:"signature"`
			} `json:"header"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, err
	}
	header := data.Data.Header.Message
	if header.Hash() != blockRoot {
		return nil, errors.New("retrieved beacon header root does not match")
	}
	return &header, nil
}

// Bootstrap fetches the bootstrap data belonging to the given checkpoint. The
// committee proof is verified by the light client.
func (api *BeaconLightApi) Bootstrap(ctx context.Context, checkpointHash common.Hash) (*types.BootstrapData, error) {
	resp, err := api.httpGet(ctx, fmt.Sprintf("/eth/v1/beacon/light_client/bootstrap/0x%x", checkpointHash[:]), nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Version string              `json:"version"`
		Data    types.BootstrapData `json:"data"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, err
	}
	if have := data.Data.Header.Hash(); have != checkpointHash {
		return nil, fmt.Errorf("invalid checkpoint block header, have %v want %v", have, checkpointHash)
	}
	return &data.Data, nil
}

// Block fetches the beacon block at the given slot.
func (api *BeaconLightApi) Block(ctx context.Context, slot uint64) (*types.BeaconBlock, error) {
	resp, err := api.httpGet(ctx, fmt.Sprintf("/eth/v2/beacon/blocks/%d", slot), nil)
	if err != nil {
		return nil, err
	}
	var beaconBlockMessage struct {
		Version string
		Data    struct {
			Message json.RawMessage `json:"message"`
		}
	}
	if err := json.Unmarshal(resp, &beaconBlockMessage); err != nil {
		return nil, fmt.Errorf("invalid block json data: %v", err)
	}
	block, err := types.BlockFromJSON(beaconBlockMessage.Version, beaconBlockMessage.Data.Message)
	if err != nil {
		return nil, err
	}
	if block.Slot() != slot {
		return nil, fmt.Errorf("beacon block slot mismatch (requested: %d, got: %d)", slot, block.Slot())
	}
	return block, nil
}

func (api *BeaconLightApi) buildURL(path string, params url.Values) (string, error) {
	uri, err := url.Parse(api.url)
	if err != nil {
		return "", err
	}
	uri = uri.JoinPath(path)
	if params != nil {
		uri.RawQuery = params.Encode()
	}
	return uri.String(), nil
}

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

// Package blsync runs the beacon light client as a service of a node. It
// connects the light client to the configured beacon APIs, keeps it in sync,
// prefetches finalized blocks and serves the lightclient RPC namespace.
package blsync

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/light/api"
	"github.com/evmlc/evm-light-client/beacon/light/sync"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/internal/shutdowncheck"
	"github.com/evmlc/evm-light-client/node"
)

// Client is the light client service. It implements node.Lifecycle.
type Client struct {
	lc        *light.LightClient
	apis      []*api.BeaconLightApi
	syncer    *sync.Syncer
	blockSync *beaconBlockSync
	stopHeads func()
	shutdown  *shutdowncheck.ShutdownTracker // nil if not backed by a node database
}

// New creates the light client service on the database of the given node and
// registers its APIs and lifecycle.
func New(stack *node.Node, config *params.ClientConfig, syncConfig sync.Config) (*Client, error) {
	var (
		apis      []*api.BeaconLightApi
		upstreams []namedUpstream
	)
	for _, url := range config.Apis {
		beaconApi := api.NewBeaconLightApi(url, config.CustomHeader, &config.ChainConfig)
		beaconApi.SetRateLimit(config.ApiRateLimit)
		if config.ExecRPC != "" {
			if err := beaconApi.DialExecution(context.Background(), config.ExecRPC); err != nil {
				return nil, err
			}
		}
		apis = append(apis, beaconApi)
		upstreams = append(upstreams, beaconApi)
	}
	lc, err := light.New(config, stack.Database(), newFailover(upstreams...))
	if err != nil {
		return nil, err
	}
	client := newClient(lc, mclock.System{}, syncConfig, config.UpstreamTimeout)
	client.apis = apis
	client.shutdown = shutdowncheck.NewShutdownTracker(stack.Database())
	client.register(stack)
	return client, nil
}

func newClient(lc *light.LightClient, clock mclock.Clock, syncConfig sync.Config, fetchTimeout time.Duration) *Client {
	return &Client{
		lc:        lc,
		syncer:    sync.NewSyncer(lc, clock, syncConfig),
		blockSync: newBeaconBlockSync(lc, fetchTimeout),
	}
}

func (c *Client) register(stack *node.Node) {
	stack.RegisterAPIs(c.APIs())
	stack.RegisterLifecycle(c)
}

// LightClient returns the underlying light client.
func (c *Client) LightClient() *light.LightClient {
	return c.lc
}

// APIs returns the RPC services of the client.
func (c *Client) APIs() []rpc.API {
	return []rpc.API{{
		Namespace: "lightclient",
		Service:   &LightClientAPI{lc: c.lc, blockSync: c.blockSync},
	}}
}

// Start implements node.Lifecycle.
func (c *Client) Start() error {
	if c.shutdown != nil {
		c.shutdown.MarkStartup()
		c.shutdown.Start()
	}
	if c.lc.Store() == nil {
		log.Warn("Light client is not initialized, waiting for a checkpoint")
	}
	c.syncer.Start()
	c.blockSync.start()
	if len(c.apis) > 0 {
		// Events of a single beacon node are enough to trigger syncing, the
		// updates themselves are fetched through the failover.
		c.stopHeads = c.apis[0].StartHeadListener(api.HeadEventListener{
			OnNewHead: func(slot uint64, blockRoot common.Hash) {
				log.Trace("New beacon head announced", "slot", slot, "root", blockRoot)
				c.syncer.Trigger()
			},
			OnFinality: c.syncer.Push,
			OnError: func(err error) {
				log.Debug("Beacon event stream error", "api", c.apis[0].Name(), "error", err)
			},
		})
	}
	return nil
}

// Stop implements node.Lifecycle. The store is persisted after syncing has
// stopped.
func (c *Client) Stop() error {
	if c.stopHeads != nil {
		c.stopHeads()
	}
	c.blockSync.stop()
	c.syncer.Stop()
	if err := c.lc.Persist(); err != nil && !errors.Is(err, light.ErrNotInitialized) {
		return err
	}
	// Only a persisted store counts as a clean shutdown.
	if c.shutdown != nil {
		c.shutdown.Stop()
	}
	return nil
}

// SyncOnce runs a single sync step without starting the service.
func (c *Client) SyncOnce(ctx context.Context) (light.Outcome, error) {
	return c.syncer.SyncOnce(ctx)
}

// Copyright 2015 The go-ethereum Authors
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

// Package node hosts the light client: it owns the data directory and the
// database, serves the registered RPC APIs and runs the registered lifecycles.
//
// A node is created in initializing state, in which APIs and lifecycles can be
// registered and the database is already usable. Start moves it into running
// state. Close releases every resource and must always be called, even if the
// node was never started.
package node

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gofrs/flock"
)

// Lifecycle is a service run by the node. Start is called once the node's
// RPC APIs are registered, Stop must block until the service has terminated.
type Lifecycle interface {
	Start() error
	Stop() error
}

// Node is a container on which services can be registered.
type Node struct {
	config        *Config
	log           log.Logger
	dirLock       *flock.Flock  // prevents concurrent use of instance directory
	stop          chan struct{} // Channel to wait for termination notifications
	startStopLock sync.Mutex    // Start/Stop are protected by an additional lock
	state         int           // Tracks state of node lifecycle

	lock          sync.Mutex
	lifecycles    []Lifecycle // All registered services that have a lifecycle
	rpcAPIs       []rpc.API   // List of APIs currently provided by the node
	http          *httpServer
	inprocHandler *rpc.Server // In-process RPC request handler to process the API requests
	db            ethdb.KeyValueStore
}

const (
	initializingState = iota
	runningState
	closedState
)

// New creates a new node, acquires its data directory and opens the database.
func New(conf *Config) (*Node, error) {
	// Copy config and resolve the datadir so future changes to the current
	// working directory don't affect the node.
	confCopy := *conf
	conf = &confCopy
	if conf.DataDir != "" {
		absdatadir, err := filepath.Abs(conf.DataDir)
		if err != nil {
			return nil, err
		}
		conf.DataDir = absdatadir
	}
	if conf.Logger == nil {
		conf.Logger = log.New()
	}
	// Ensure that the instance name doesn't cause weird conflicts with
	// other files in the data directory.
	if strings.ContainsAny(conf.Name, `/\`) {
		return nil, errors.New(`Config.Name must not contain '/' or '\'`)
	}
	if conf.Name == datadirDatabase {
		return nil, errors.New(`Config.Name cannot be "` + datadirDatabase + `"`)
	}
	server := rpc.NewServer()
	server.SetBatchLimits(conf.BatchRequestLimit, conf.BatchResponseMaxSize)
	node := &Node{
		config:        conf,
		inprocHandler: server,
		log:           conf.Logger,
		stop:          make(chan struct{}),
	}
	node.http = newHTTPServer(node.log, conf.HTTPTimeouts)

	// Acquire the instance directory lock.
	if err := node.openDataDir(); err != nil {
		return nil, err
	}
	if err := node.openDatabase(); err != nil {
		node.closeDataDir()
		return nil, err
	}
	return node, nil
}

// Start starts all registered lifecycles and the RPC endpoints. Start can
// only be called once.
func (n *Node) Start() error {
	n.startStopLock.Lock()
	defer n.startStopLock.Unlock()

	n.lock.Lock()
	switch n.state {
	case runningState:
		n.lock.Unlock()
		return ErrNodeRunning
	case closedState:
		n.lock.Unlock()
		return ErrNodeStopped
	}
	n.state = runningState
	err := n.startRPC()
	lifecycles := make([]Lifecycle, len(n.lifecycles))
	copy(lifecycles, n.lifecycles)
	n.lock.Unlock()

	// Check if endpoint startup failed.
	if err != nil {
		n.doClose(nil)
		return err
	}
	// Start all registered lifecycles.
	var started []Lifecycle
	for _, lifecycle := range lifecycles {
		if err = lifecycle.Start(); err != nil {
			break
		}
		started = append(started, lifecycle)
	}
	// Check if any lifecycle failed to start.
	if err != nil {
		n.stopServices(started)
		n.doClose(nil)
	}
	return err
}

// Close stops the Node and releases resources acquired in
// Node constructor New.
func (n *Node) Close() error {
	n.startStopLock.Lock()
	defer n.startStopLock.Unlock()

	n.lock.Lock()
	state := n.state
	n.lock.Unlock()
	switch state {
	case initializingState:
		// The node was never started.
		return n.doClose(nil)
	case runningState:
		// The node was started, release resources acquired by Start().
		var errs []error
		if err := n.stopServices(n.lifecycles); err != nil {
			errs = append(errs, err)
		}
		return n.doClose(errs)
	case closedState:
		return ErrNodeStopped
	default:
		panic(fmt.Sprintf("node is in unknown state %d", state))
	}
}

// doClose releases resources acquired by New(), collecting errors.
func (n *Node) doClose(errs []error) error {
	n.lock.Lock()
	n.state = closedState
	if err := n.db.Close(); err != nil {
		errs = append(errs, err)
	}
	n.lock.Unlock()

	// Release instance directory lock.
	n.closeDataDir()

	// Unblock n.Wait.
	close(n.stop)

	// Report any errors that might have occurred.
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return fmt.Errorf("%v", errs)
	}
}

// stopServices terminates running services, RPC and the HTTP endpoint.
func (n *Node) stopServices(running []Lifecycle) error {
	n.stopRPC()

	// Stop running lifecycles in reverse order.
	failure := &StopError{}
	for i := len(running) - 1; i >= 0; i-- {
		if err := running[i].Stop(); err != nil {
			failure.Lifecycles = append(failure.Lifecycles, err)
		}
	}
	if len(failure.Lifecycles) > 0 {
		return failure
	}
	return nil
}

func (n *Node) openDataDir() error {
	if n.config.DataDir == "" {
		return nil // ephemeral
	}
	instdir := n.config.instanceDir()
	if err := os.MkdirAll(instdir, 0700); err != nil {
		return err
	}
	// Lock the instance directory to prevent concurrent use by another instance as well as
	// accidental use of the instance directory as a database.
	n.dirLock = flock.New(filepath.Join(instdir, "LOCK"))

	if locked, err := n.dirLock.TryLock(); err != nil {
		return convertFileLockError(err)
	} else if !locked {
		return ErrDatadirUsed
	}
	return nil
}

func (n *Node) closeDataDir() {
	// Release instance directory lock.
	if n.dirLock != nil && n.dirLock.Locked() {
		n.dirLock.Unlock()
		n.dirLock = nil
	}
}

func (n *Node) openDatabase() error {
	if n.config.DataDir == "" {
		n.db = memorydb.New()
		return nil
	}
	dir := n.config.ResolvePath(datadirDatabase)
	engine, err := resolveDBEngine(n.config.DBEngine, rawdb.PreexistingDatabase(dir))
	if err != nil {
		return err
	}
	const namespace = "lightclient/db/"
	var db ethdb.KeyValueStore
	switch engine {
	case rawdb.DBLeveldb:
		db, err = leveldb.New(dir, n.config.DatabaseCache, n.config.DatabaseHandles, namespace, false)
	default:
		db, err = pebble.New(dir, n.config.DatabaseCache, n.config.DatabaseHandles, namespace, false)
	}
	if err != nil {
		return err
	}
	n.log.Info("Opened light client database", "engine", engine, "path", dir, "cache", n.config.DatabaseCache)
	n.db = db
	return nil
}

// resolveDBEngine picks the database engine from the configured one and the
// one found on disk. They must agree when both are set, pebble is the default.
func resolveDBEngine(requested, existing string) (string, error) {
	switch requested {
	case "", rawdb.DBPebble, rawdb.DBLeveldb:
	default:
		return "", fmt.Errorf("unknown db.engine %q", requested)
	}
	switch {
	case requested != "" && existing != "" && requested != existing:
		return "", fmt.Errorf("db.engine is %s but the data directory holds a %s database", requested, existing)
	case existing != "":
		return existing, nil
	case requested != "":
		return requested, nil
	default:
		return rawdb.DBPebble, nil
	}
}

// obtainJWTSecret loads the jwt secret from the given file, or generates and
// stores a new one if the file does not exist.
func (n *Node) obtainJWTSecret(fileName string) ([]byte, error) {
	if data, err := os.ReadFile(fileName); err == nil {
		jwtSecret := common.FromHex(strings.TrimSpace(string(data)))
		if len(jwtSecret) == 32 {
			n.log.Info("Loaded JWT secret file", "path", fileName, "crc32", fmt.Sprintf("%#x", crc32.ChecksumIEEE(jwtSecret)))
			return jwtSecret, nil
		}
		n.log.Error("Invalid JWT secret", "path", fileName, "length", len(jwtSecret))
		return nil, errors.New("invalid JWT secret")
	}
	// Need to generate one
	jwtSecret := make([]byte, 32)
	crand.Read(jwtSecret)
	if err := os.WriteFile(fileName, []byte(hexutil.Encode(jwtSecret)), 0600); err != nil {
		return nil, err
	}
	n.log.Info("Generated JWT secret", "path", fileName)
	return jwtSecret, nil
}

// startRPC registers the APIs on the in-process handler and starts the HTTP
// endpoint if configured. Callers hold n.lock.
func (n *Node) startRPC() error {
	for _, api := range n.rpcAPIs {
		if err := n.inprocHandler.RegisterName(api.Namespace, api.Service); err != nil {
			return err
		}
	}
	endpoint := n.config.HTTPEndpoint()
	if endpoint == "" {
		return nil
	}
	config := httpConfig{
		CorsAllowedOrigins: n.config.HTTPCors,
		Vhosts:             n.config.HTTPVirtualHosts,
		WSOrigins:          n.config.WSOrigins,
	}
	if n.config.JWTSecret != "" {
		secret, err := n.obtainJWTSecret(n.config.JWTSecret)
		if err != nil {
			return err
		}
		config.jwtSecret = secret
	}
	return n.http.start(endpoint, config, n.inprocHandler)
}

func (n *Node) stopRPC() {
	n.http.stop()
	n.inprocHandler.Stop()
}

// Wait blocks until the node is closed.
func (n *Node) Wait() {
	<-n.stop
}

// RegisterLifecycle registers the given Lifecycle on the node.
func (n *Node) RegisterLifecycle(lifecycle Lifecycle) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.state != initializingState {
		panic("can't register lifecycle on running/stopped node")
	}
	for _, existing := range n.lifecycles {
		if existing == lifecycle {
			panic(fmt.Sprintf("attempt to register lifecycle %T more than once", lifecycle))
		}
	}
	n.lifecycles = append(n.lifecycles, lifecycle)
}

// RegisterAPIs registers the APIs a service provides on the node.
func (n *Node) RegisterAPIs(apis []rpc.API) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.state != initializingState {
		panic("can't register APIs on running/stopped node")
	}
	n.rpcAPIs = append(n.rpcAPIs, apis...)
}

// Attach creates an RPC client attached to an in-process API handler.
func (n *Node) Attach() *rpc.Client {
	return rpc.DialInProc(n.inprocHandler)
}

// Config returns the configuration of node.
func (n *Node) Config() *Config {
	return n.config
}

// Database returns the key/value store of the node. It is closed by Close.
func (n *Node) Database() ethdb.KeyValueStore {
	return n.db
}

// HTTPEndpoint returns the URL of the HTTP server, or "" if it is not running.
func (n *Node) HTTPEndpoint() string {
	return n.http.url()
}

// ResolvePath returns the absolute path of a resource in the instance directory.
func (n *Node) ResolvePath(x string) string {
	return n.config.ResolvePath(x)
}

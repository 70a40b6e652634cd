// Copyright 2014 The go-ethereum Authors
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

package node

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	DefaultHTTPHost = "localhost"
	DefaultHTTPPort = 8547

	defaultInstance = "evmlc"
	datadirDatabase = "lightclientdata" // store database inside the instance dir
)

// DefaultConfig contains the default node settings. The database engine is
// left empty so that an existing database decides it.
var DefaultConfig = Config{
	DataDir:              DefaultDataDir(),
	HTTPPort:             DefaultHTTPPort,
	HTTPVirtualHosts:     []string{"localhost"},
	HTTPTimeouts:         rpc.DefaultHTTPTimeouts,
	DatabaseCache:        16,
	DatabaseHandles:      64,
	BatchRequestLimit:    100,
	BatchResponseMaxSize: 25 * 1000 * 1000,
}

// Config holds the settings of the process hosting the light client.
type Config struct {
	// Name is the instance directory inside DataDir. It defaults to "evmlc"
	// and must not contain path separators.
	Name string `toml:"-"`

	// DataDir holds the instance directory. Empty means an in-memory database
	// and no directory lock.
	DataDir string

	DBEngine        string `toml:",omitempty"` // "pebble", "leveldb" or empty
	DatabaseCache   int    // megabytes
	DatabaseHandles int    `toml:"-"`

	// HTTPHost enables the RPC endpoint. HTTPPort zero picks a random port.
	HTTPHost         string
	HTTPPort         int      `toml:",omitempty"`
	HTTPCors         []string `toml:",omitempty"`
	HTTPVirtualHosts []string `toml:",omitempty"` // accepted Host headers, "*" for any
	HTTPTimeouts     rpc.HTTPTimeouts

	// WSOrigins enables websocket subscriptions on the HTTP port for the
	// listed origins.
	WSOrigins []string `toml:",omitempty"`

	// JWTSecret is the path of a hex-encoded secret. When set, RPC requests
	// must carry a token signed with it. A missing file is created.
	JWTSecret string `toml:",omitempty"`

	BatchRequestLimit    int `toml:",omitempty"`
	BatchResponseMaxSize int `toml:",omitempty"`

	Logger log.Logger `toml:",omitempty"`
}

// HTTPEndpoint returns the listen address of the RPC endpoint, or "" if it is
// disabled.
func (c *Config) HTTPEndpoint() string {
	if c.HTTPHost == "" {
		return ""
	}
	return net.JoinHostPort(c.HTTPHost, fmt.Sprint(c.HTTPPort))
}

// ResolvePath resolves path in the instance directory. Relative paths of an
// in-memory node resolve to "".
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	dir := c.instanceDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, path)
}

func (c *Config) instanceDir() string {
	if c.DataDir == "" {
		return ""
	}
	name := c.Name
	if name == "" {
		name = defaultInstance
	}
	return filepath.Join(c.DataDir, name)
}

// DefaultDataDir returns the platform data directory of the light client, or
// "" if the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "EvmLightClient")
	case "windows":
		if appdata := os.Getenv("LOCALAPPDATA"); appdata != "" {
			return filepath.Join(appdata, "EvmLightClient")
		}
		return filepath.Join(home, "AppData", "Local", "EvmLightClient")
	default:
		return filepath.Join(home, ".evmlc")
	}
}

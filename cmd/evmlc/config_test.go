// Copyright 2025 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[Node]
DataDir = "/tmp/evmlc"
HTTPHost = "0.0.0.0"
HTTPPort = 9000

[Client]
Apis = ["http://localhost:5052", "http://localhost:5053"]
ApiRateLimit = 5.0
MaxBackfill = 16

[Client.SignatureThreshold]
Numerator = 1
Denominator = 2

[Sync]
PersistInterval = 8
`), 0644))

	cfg := defaultConfig()
	require.NoError(t, loadConfig(file, &cfg))
	require.Equal(t, "/tmp/evmlc", cfg.Node.DataDir)
	require.Equal(t, 9000, cfg.Node.HTTPPort)
	require.Equal(t, "0.0.0.0:9000", cfg.Node.HTTPEndpoint())
	require.Equal(t, []string{"http://localhost:5052", "http://localhost:5053"}, cfg.Client.Apis)
	require.Equal(t, 5.0, cfg.Client.ApiRateLimit)
	require.Equal(t, 16, cfg.Client.MaxBackfill)
	require.Equal(t, uint64(2), cfg.Client.SignatureThreshold.Denominator)
	require.Equal(t, 8, cfg.Sync.PersistInterval)

	// Untouched values keep their defaults.
	require.Equal(t, 2*time.Minute, cfg.Sync.MaxBackoff)
	require.Equal(t, clientIdentifier, cfg.Node.Name)
}

func TestLoadConfigUnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[Client]\nNoSuchField = 1\n"), 0644))

	cfg := defaultConfig()
	err := loadConfig(file, &cfg)
	require.ErrorContains(t, err, "NoSuchField")
	require.ErrorContains(t, err, file)
}

func TestDumpConfig(t *testing.T) {
	out, err := runEvmlc(t, "dumpconfig", "--sepolia", "--beacon.api", "http://localhost:5052", "--http", "--http.port", "9545", "--datadir", "/tmp/evmlc-dump")
	require.NoError(t, err)
	require.Contains(t, out, "[Node]")
	require.Contains(t, out, `DataDir = "/tmp/evmlc-dump"`)
	require.Contains(t, out, "HTTPPort = 9545")
	require.Contains(t, out, `Apis = ["http://localhost:5052"]`)
	require.Contains(t, out, "[Sync]")
}

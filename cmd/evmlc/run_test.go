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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/stretchr/testify/require"
)

// runEvmlc runs the app in-process and returns what it printed.
func runEvmlc(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app.Writer = &out
	defer func() { app.Writer = os.Stdout }()
	err := app.Run(append([]string{"evmlc"}, args...))
	return out.String(), err
}

// testChain is a minimal preset devnet whose genesis lies 1000 slots in the past.
type testChain struct {
	dir        string
	config     *params.ChainConfig
	committees []*lctest.Committee
}

func newTestChain(t *testing.T) *testChain {
	genesis := uint64(time.Now().Unix()) - 1000*6
	chain := &testChain{
		dir:    t.TempDir(),
		config: lctest.Config(genesis),
	}
	for i := 0; i < 2; i++ {
		chain.committees = append(chain.committees, lctest.NewCommittee(chain.config.SyncCommitteeSize, uint64(i)))
	}
	return chain
}

// flags returns the chain and database selection flags.
func (c *testChain) flags() []string {
	return []string{
		"--minimal",
		"--beacon.genesis.time", fmt.Sprint(c.config.GenesisTime),
		"--beacon.genesis.gvroot", c.config.GenesisValidatorsRoot.Hex(),
		"--datadir", filepath.Join(c.dir, "data"),
	}
}

func (c *testChain) writeJSON(t *testing.T, name string, v interface{}) string {
	t.Helper()
	blob, err := json.Marshal(v)
	require.NoError(t, err)
	file := filepath.Join(c.dir, name)
	require.NoError(t, os.WriteFile(file, blob, 0644))
	return file
}

func (c *testChain) command(name string, args ...string) []string {
	return append(append([]string{name}, c.flags()...), args...)
}

func TestImportAndStatus(t *testing.T) {
	chain := newTestChain(t)

	// Status of a fresh database.
	_, err := runEvmlc(t, chain.command("status")...)
	require.ErrorIs(t, err, light.ErrNotInitialized)

	bootstrap := lctest.Bootstrap(chain.config, 8, chain.committees[0])
	finalized := lctest.Header(24, common.Hash{}, common.HexToHash("0x01"))
	updates := []interface{}{
		map[string]interface{}{
			"version": "deneb",
			"data":    lctest.Update(chain.config, lctest.UpdateParams{AttestedSlot: 40, Finalized: &finalized, Next: chain.committees[1], Signer: chain.committees[0]}),
		},
		// The same update again is stale and skipped.
		lctest.Update(chain.config, lctest.UpdateParams{AttestedSlot: 40, Finalized: &finalized, Next: chain.committees[1], Signer: chain.committees[0]}),
	}
	var (
		genesisFile = chain.writeJSON(t, "genesis.json", map[string]interface{}{"data": map[string]string{
			"genesis_time":            fmt.Sprint(chain.config.GenesisTime),
			"genesis_validators_root": chain.config.GenesisValidatorsRoot.Hex(),
		}})
		bootstrapFile = chain.writeJSON(t, "bootstrap.json", map[string]interface{}{"version": "deneb", "data": bootstrap})
		updatesFile   = chain.writeJSON(t, "updates.json", updates)
	)
	out, err := runEvmlc(t, chain.command("import", "--genesis", genesisFile, "--bootstrap", bootstrapFile, "--update", updatesFile)...)
	require.NoError(t, err)

	var status light.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Equal(t, uint64(24), status.FinalizedSlot)
	require.Equal(t, uint64(40), status.OptimisticSlot)
	require.Equal(t, chain.committees[1].Root().Hex(), status.NextCommittee)

	// A later run reads the persisted store.
	out, err = runEvmlc(t, chain.command("status")...)
	require.NoError(t, err)
	var restored light.Status
	require.NoError(t, json.Unmarshal([]byte(out), &restored))
	require.Equal(t, status, restored)
}

func TestImportRejected(t *testing.T) {
	chain := newTestChain(t)

	bootstrapFile := chain.writeJSON(t, "bootstrap.json", lctest.Bootstrap(chain.config, 8, chain.committees[0]))
	weak := lctest.Update(chain.config, lctest.UpdateParams{AttestedSlot: 40, Signer: chain.committees[0], Signers: lctest.Signers(10)})
	updateFile := chain.writeJSON(t, "update.json", weak)

	_, err := runEvmlc(t, chain.command("import", "--bootstrap", bootstrapFile, "--update", updateFile)...)
	require.ErrorIs(t, err, light.ErrInsufficientParticipation)

	// Nothing was written.
	_, err = runEvmlc(t, chain.command("status")...)
	require.ErrorIs(t, err, light.ErrNotInitialized)

	// Updates need a bootstrap.
	_, err = runEvmlc(t, chain.command("import", "--update", updateFile)...)
	require.ErrorContains(t, err, "not initialized")
}

func TestImportIncompleteGenesis(t *testing.T) {
	chain := newTestChain(t)

	// Genesis files must name the validators root.
	genesisFile := chain.writeJSON(t, "genesis.json", map[string]string{"genesis_time": "12"})
	bootstrapFile := chain.writeJSON(t, "bootstrap.json", lctest.Bootstrap(chain.config, 8, chain.committees[0]))
	_, err := runEvmlc(t, chain.command("import", "--genesis", genesisFile, "--bootstrap", bootstrapFile)...)
	require.ErrorContains(t, err, "missing genesis validators root")
}

func TestUpdateFlagsExclusive(t *testing.T) {
	chain := newTestChain(t)
	_, err := runEvmlc(t, chain.command("update", "--period", "1", "--slot", "2")...)
	require.ErrorContains(t, err, "can't be used at the same time")
}

func TestNetworkFlagsExclusive(t *testing.T) {
	_, err := runEvmlc(t, "status", "--mainnet", "--sepolia", "--datadir", t.TempDir())
	require.ErrorContains(t, err, "can't be used at the same time")

	_, err = runEvmlc(t, "status", "--minimal", "--datadir", t.TempDir())
	require.ErrorContains(t, err, "requires")
}

func TestInitWithoutCheckpoint(t *testing.T) {
	chain := newTestChain(t)
	_, err := runEvmlc(t, chain.command("init")...)
	require.ErrorContains(t, err, "no checkpoint configured")
}

func TestHeaderRequiresSlot(t *testing.T) {
	chain := newTestChain(t)
	_, err := runEvmlc(t, chain.command("header")...)
	require.ErrorContains(t, err, "missing --slot")
}

func TestRunRequiresBeaconAPI(t *testing.T) {
	chain := newTestChain(t)
	_, err := runEvmlc(t, chain.command("run")...)
	require.ErrorContains(t, err, "no beacon API configured")
}

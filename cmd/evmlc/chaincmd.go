// Copyright 2015 The go-ethereum Authors
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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/blsync"
	"github.com/evmlc/evm-light-client/beacon/light"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	"github.com/evmlc/evm-light-client/cmd/utils"
	"github.com/evmlc/evm-light-client/internal/flags"
	"github.com/urfave/cli/v2"
)

var (
	checkpointFlag = &cli.StringFlag{
		Name:  "checkpoint",
		Usage: "Checkpoint block root to initialize from (defaults to the network checkpoint)",
	}
	periodFlag = &cli.Uint64Flag{
		Name:  "period",
		Usage: "Fetch the best update of the given sync committee period",
	}
	slotFlag = &cli.Uint64Flag{
		Name:  "slot",
		Usage: "Beacon chain slot",
	}
	blockFlag = &cli.Uint64Flag{
		Name:  "block",
		Usage: "Fetch an update covering the given execution block number",
	}
	genesisFileFlag = &cli.StringFlag{
		Name:  "genesis",
		Usage: "Beacon genesis JSON file (/eth/v1/beacon/genesis response)",
	}
	bootstrapFileFlag = &cli.StringFlag{
		Name:  "bootstrap",
		Usage: "Light client bootstrap JSON file",
	}
	updateFileFlag = &cli.StringSliceFlag{
		Name:  "update",
		Usage: "Light client update JSON file, holding a single update or a list of them. This flag can be given multiple times.",
	}
)

var (
	initCommand = &cli.Command{
		Action:    initLightClient,
		Name:      "init",
		Usage:     "Bootstrap the light client from a trusted checkpoint",
		ArgsUsage: " ",
		Flags:     flags.Merge(chainFlags, []cli.Flag{checkpointFlag}),
		Description: `
The init command initializes the light client store from the bootstrap data of
a trusted checkpoint block root. Bootstrap data stored locally by an earlier
run is used if available, otherwise it is fetched from the beacon APIs. Any
existing store is replaced.`,
	}
	updateCommand = &cli.Command{
		Action:    updateLightClient,
		Name:      "update",
		Usage:     "Apply a single light client update",
		ArgsUsage: " ",
		Flags:     flags.Merge(chainFlags, []cli.Flag{periodFlag, slotFlag, blockFlag}),
		Description: `
The update command fetches one light client update, verifies it and persists
the resulting store. Without flags, it performs one step of the regular sync.`,
	}
	headerCommand = &cli.Command{
		Action:    printHeader,
		Name:      "header",
		Usage:     "Print the verified beacon header of a slot",
		ArgsUsage: " ",
		Flags:     flags.Merge(chainFlags, []cli.Flag{slotFlag}),
	}
	blockCommand = &cli.Command{
		Action:    printBlock,
		Name:      "block",
		Usage:     "Print the verified beacon block of a slot and its execution header",
		ArgsUsage: " ",
		Flags:     flags.Merge(chainFlags, []cli.Flag{slotFlag}),
	}
	statusCommand = &cli.Command{
		Action:    printStatus,
		Name:      "status",
		Usage:     "Print a summary of the stored light client state",
		ArgsUsage: " ",
		Flags:     chainFlags,
	}
	importCommand = &cli.Command{
		Action:    importData,
		Name:      "import",
		Usage:     "Verify beacon API data from files and persist the resulting store",
		ArgsUsage: " ",
		Flags:     flags.Merge(chainFlags, []cli.Flag{genesisFileFlag, bootstrapFileFlag, updateFileFlag}),
		Description: `
The import command initializes the light client offline. The genesis file sets
the genesis time and validators root of the configured chain. The bootstrap
replaces any stored state, the updates are applied in the given order. Stale
updates are skipped, any other rejected update aborts the import before
anything is written.`,
	}
)

func initLightClient(ctx *cli.Context) error {
	stack, client, cfg, err := makeLightClient(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	if ctx.IsSet(checkpointFlag.Name) {
		if err := cfg.Client.Checkpoint.UnmarshalText([]byte(ctx.String(checkpointFlag.Name))); err != nil {
			return fmt.Errorf("invalid checkpoint: %v", err)
		}
	}
	if err := initFromCheckpoint(client, &cfg.Client); err != nil {
		return err
	}
	return persistAndPrint(ctx, client.LightClient())
}

// initFromCheckpoint initializes the client from the configured checkpoint.
func initFromCheckpoint(client *blsync.Client, cfg *params.ClientConfig) error {
	if cfg.Checkpoint == (common.Hash{}) {
		return fmt.Errorf("light client not initialized and no checkpoint configured, use --%s", utils.BeaconCheckpointFlag.Name)
	}
	fetchCtx, cancel := context.WithTimeout(context.Background(), utils.FetchTimeout(cfg))
	defer cancel()

	log.Info("Initializing light client", "checkpoint", cfg.Checkpoint)
	if err := client.LightClient().InitFromCheckpoint(fetchCtx, cfg.Checkpoint); err != nil {
		return fmt.Errorf("failed to initialize from checkpoint %x: %w", cfg.Checkpoint, err)
	}
	return nil
}

func updateLightClient(ctx *cli.Context) error {
	if err := flags.CheckExclusive(ctx, periodFlag, slotFlag, blockFlag); err != nil {
		return err
	}
	stack, client, cfg, err := makeLightClient(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	fetchCtx, cancel := context.WithTimeout(context.Background(), utils.FetchTimeout(&cfg.Client))
	defer cancel()

	var (
		lc      = client.LightClient()
		outcome light.Outcome
	)
	switch {
	case ctx.IsSet(periodFlag.Name):
		outcome, err = lc.UpdateForPeriod(fetchCtx, ctx.Uint64(periodFlag.Name))
	case ctx.IsSet(slotFlag.Name):
		outcome, err = lc.UpdateForSlot(fetchCtx, ctx.Uint64(slotFlag.Name))
	case ctx.IsSet(blockFlag.Name):
		outcome, err = lc.UpdateForBlockNumber(fetchCtx, ctx.Uint64(blockFlag.Name))
	default:
		outcome, err = client.SyncOnce(fetchCtx)
	}
	if errors.Is(err, light.ErrStale) {
		outcome, err = light.OutcomeNoChange, nil
	}
	if err != nil {
		return err
	}
	log.Info("Light client update processed", "outcome", outcome)
	return persistAndPrint(ctx, lc)
}

func printHeader(ctx *cli.Context) error {
	if !ctx.IsSet(slotFlag.Name) {
		return fmt.Errorf("missing --%s", slotFlag.Name)
	}
	stack, client, cfg, err := makeLightClient(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	fetchCtx, cancel := context.WithTimeout(context.Background(), utils.FetchTimeout(&cfg.Client))
	defer cancel()

	header, err := client.LightClient().FetchHeaderFromSlot(fetchCtx, ctx.Uint64(slotFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(ctx, header)
}

func printBlock(ctx *cli.Context) error {
	if !ctx.IsSet(slotFlag.Name) {
		return fmt.Errorf("missing --%s", slotFlag.Name)
	}
	stack, client, cfg, err := makeLightClient(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	fetchCtx, cancel := context.WithTimeout(context.Background(), utils.FetchTimeout(&cfg.Client))
	defer cancel()

	block, err := client.LightClient().FetchBlockFromSlot(fetchCtx, ctx.Uint64(slotFlag.Name))
	if err != nil {
		return err
	}
	execBlock, err := block.ExecutionBlock()
	if err != nil {
		return err
	}
	return printJSON(ctx, map[string]interface{}{
		"beacon":    block,
		"execution": execBlock.Header(),
	})
}

func printStatus(ctx *cli.Context) error {
	stack, client, _, err := makeLightClient(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	status, err := client.LightClient().Status()
	if err != nil {
		return err
	}
	return printJSON(ctx, status)
}

func importData(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if file := ctx.String(genesisFileFlag.Name); file != "" {
		if err := applyGenesis(file, &cfg.Client.ChainConfig); err != nil {
			return err
		}
	}
	stack, client, err := openLightClient(&cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	lc := client.LightClient()
	if file := ctx.String(bootstrapFileFlag.Name); file != "" {
		bootstrap := new(types.BootstrapData)
		if err := readJSONFile(file, bootstrap); err != nil {
			return err
		}
		if err := lc.Init(bootstrap); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	} else if lc.Store() == nil {
		return fmt.Errorf("light client not initialized, use --%s", bootstrapFileFlag.Name)
	}
	for _, file := range ctx.StringSlice(updateFileFlag.Name) {
		updates, err := readUpdates(file)
		if err != nil {
			return err
		}
		for i, update := range updates {
			outcome, err := lc.Update(update)
			switch {
			case errors.Is(err, light.ErrStale):
				log.Info("Skipping stale update", "file", file, "index", i, "attested", update.AttestedHeader.Header.Slot)
			case err != nil:
				return fmt.Errorf("%s: update %d: %w", file, i, err)
			default:
				log.Info("Imported light client update", "file", file, "index", i, "outcome", outcome)
			}
		}
	}
	return persistAndPrint(ctx, lc)
}

// genesisInfo is the data of the /eth/v1/beacon/genesis response.
type genesisInfo struct {
	GenesisTime           math.HexOrDecimal64 `json:"genesis_time"`
	GenesisValidatorsRoot common.Hash         `json:"genesis_validators_root"`
}

func applyGenesis(file string, config *params.ChainConfig) error {
	var genesis genesisInfo
	if err := readJSONFile(file, &genesis); err != nil {
		return err
	}
	if genesis.GenesisValidatorsRoot == (common.Hash{}) {
		return fmt.Errorf("%s: missing genesis validators root", file)
	}
	if config.GenesisValidatorsRoot != genesis.GenesisValidatorsRoot {
		log.Warn("Genesis file overrides the configured chain", "configured", config.GenesisValidatorsRoot, "genesis", genesis.GenesisValidatorsRoot)
	}
	config.GenesisTime = uint64(genesis.GenesisTime)
	config.GenesisValidatorsRoot = genesis.GenesisValidatorsRoot
	return config.Validate()
}

// readJSONFile decodes a JSON file, unwrapping the "data" field of beacon API
// responses.
func readJSONFile(file string, v interface{}) error {
	blob, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(unwrapData(blob), v); err != nil {
		return fmt.Errorf("%s: %v", file, err)
	}
	return nil
}

func unwrapData(blob []byte) []byte {
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(blob, &wrapped); err == nil && len(wrapped.Data) > 0 {
		return wrapped.Data
	}
	return blob
}

// readUpdates decodes a file holding an update or a list of updates. List
// items may be wrapped in a versioned envelope as served by the
// light_client/updates endpoint.
func readUpdates(file string) ([]*types.LightClientUpdate, error) {
	blob, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(unwrapData(blob))
	var items []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%s: %v", file, err)
		}
	} else {
		items = []json.RawMessage{data}
	}
	updates := make([]*types.LightClientUpdate, len(items))
	for i, item := range items {
		update := new(types.LightClientUpdate)
		if err := json.Unmarshal(unwrapData(item), update); err != nil {
			return nil, fmt.Errorf("%s: update %d: %v", file, i, err)
		}
		updates[i] = update
	}
	return updates, nil
}

func persistAndPrint(ctx *cli.Context, lc *light.LightClient) error {
	if err := lc.Persist(); err != nil {
		return err
	}
	status, err := lc.Status()
	if err != nil {
		return err
	}
	return printJSON(ctx, status)
}

func printJSON(ctx *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, string(out))
	return nil
}

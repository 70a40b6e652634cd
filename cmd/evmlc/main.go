// Copyright 2014 The go-ethereum Authors
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

// evmlc is the command-line client of the EVM light client.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/cmd/utils"
	"github.com/evmlc/evm-light-client/internal/debug"
	"github.com/evmlc/evm-light-client/internal/flags"
	"github.com/evmlc/evm-light-client/internal/version"
	"github.com/urfave/cli/v2"
)

const (
	clientIdentifier = "evmlc" // Client identifier to advertise over the network
)

var (
	// chainFlags select and tune the verified chain and its upstreams.
	chainFlags = flags.Merge(utils.NetworkFlags, utils.BeaconFlags, utils.DatabaseFlags, []cli.Flag{configFileFlag})

	app = flags.NewApp("the EVM light client sync and verification engine")

	runCommand = &cli.Command{
		Action:    runLightClient,
		Name:      "run",
		Usage:     "Run the light client service (default command)",
		ArgsUsage: " ",
		Flags:     flags.Merge(chainFlags, utils.RPCFlags, utils.MetricsFlags),
	}
)

func init() {
	// Initialize the CLI app and start evmlc
	app.Action = runLightClient
	app.Commands = []*cli.Command{
		runCommand,
		initCommand,
		updateCommand,
		headerCommand,
		blockCommand,
		statusCommand,
		importCommand,
		dumpConfigCommand,
		versionCommand,
	}
	app.Flags = flags.Merge(
		chainFlags,
		utils.RPCFlags,
		utils.MetricsFlags,
		debug.Flags,
	)
	app.Before = func(ctx *cli.Context) error {
		if err := flags.CheckEnvVars(ctx, "EVMLC"); err != nil {
			return err
		}
		if err := debug.Setup(ctx); err != nil {
			return err
		}
		utils.SetupMetrics(ctx)
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		debug.Exit()
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runLightClient is the main entry point into the system if no special subcommand is run.
// It opens the database, restores or bootstraps the light client, starts the sync
// driver and the RPC server and blocks until the node is shut down.
func runLightClient(ctx *cli.Context) error {
	if args := ctx.Args().Slice(); len(args) > 0 {
		return fmt.Errorf("invalid command: %q", args[0])
	}
	stack, client, cfg, err := makeLightClient(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	if len(cfg.Client.Apis) == 0 {
		return fmt.Errorf("no beacon API configured, use --%s", utils.BeaconApiFlag.Name)
	}
	if client.LightClient().Store() == nil {
		if err := initFromCheckpoint(client, &cfg.Client); err != nil {
			return err
		}
	}
	stack.RegisterAPIs(debug.APIs())

	log.Info("Starting light client", "client", version.ClientName(clientIdentifier), "apis", cfg.Client.Apis, "threshold", cfg.Client.SignatureThreshold)
	utils.StartNode(stack)
	if endpoint := stack.HTTPEndpoint(); endpoint != "" {
		log.Info("Light client RPC available", "url", "http://"+endpoint)
	}
	stack.Wait()
	return nil
}

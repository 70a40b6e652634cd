// Copyright 2017 The go-ethereum Authors
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
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/evmlc/evm-light-client/beacon/blsync"
	"github.com/evmlc/evm-light-client/beacon/light/sync"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/cmd/utils"
	"github.com/evmlc/evm-light-client/internal/flags"
	"github.com/evmlc/evm-light-client/node"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

var (
	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Export configuration values in a TOML format",
		ArgsUsage:   "<dumpfile (optional)>",
		Flags:       flags.Merge(chainFlags, utils.RPCFlags),
		Description: `Export configuration values in TOML format (to stdout by default).`,
	}

	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type evmlcConfig struct {
	Node   node.Config
	Client params.ClientConfig
	Sync   sync.Config
}

func loadConfig(file string, cfg *evmlcConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultConfig() evmlcConfig {
	cfg := evmlcConfig{
		Node:   node.DefaultConfig,
		Client: params.DefaultClientConfig,
		Sync:   sync.DefaultConfig,
	}
	cfg.Node.Name = clientIdentifier
	// The defaults share their fork list with the network presets.
	cfg.Client.ChainConfig = *params.MainnetLightConfig.Copy()
	return cfg
}

// makeConfig loads the configuration file if given and applies the command
// line flags on top of it.
func makeConfig(ctx *cli.Context) (evmlcConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	utils.SetNodeConfig(ctx, &cfg.Node)
	utils.SetSyncConfig(ctx, &cfg.Sync)
	if err := utils.SetClientConfig(ctx, &cfg.Client); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// makeLightClient creates the node and the light client service on top of it.
// The node is not started.
func makeLightClient(ctx *cli.Context) (*node.Node, *blsync.Client, evmlcConfig, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, nil, cfg, err
	}
	stack, client, err := openLightClient(&cfg)
	return stack, client, cfg, err
}

func openLightClient(cfg *evmlcConfig) (*node.Node, *blsync.Client, error) {
	stack, err := node.New(&cfg.Node)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create the node: %v", err)
	}
	client, err := blsync.New(stack, &cfg.Client, cfg.Sync)
	if err != nil {
		stack.Close()
		return nil, nil, err
	}
	return stack, client, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = dump.Write(out)
	return err
}

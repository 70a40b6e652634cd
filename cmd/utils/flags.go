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

// Package utils contains internal helper functions for the evmlc commands.
package utils

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/evmlc/evm-light-client/beacon/light/sync"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/internal/flags"
	"github.com/evmlc/evm-light-client/node"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// Network selection
	MainnetFlag = &cli.BoolFlag{
		Name:     "mainnet",
		Usage:    "Ethereum mainnet (default)",
		Category: flags.BeaconCategory,
	}
	SepoliaFlag = &cli.BoolFlag{
		Name:     "sepolia",
		Usage:    "Sepolia network: pre-configured proof-of-stake test network",
		Category: flags.BeaconCategory,
	}
	HoleskyFlag = &cli.BoolFlag{
		Name:     "holesky",
		Usage:    "Holesky network: pre-configured proof-of-stake test network",
		Category: flags.BeaconCategory,
	}
	MinimalFlag = &cli.BoolFlag{
		Name:     "minimal",
		Usage:    "Local devnet using the minimal preset (requires --beacon.genesis.time and --beacon.genesis.gvroot)",
		Category: flags.BeaconCategory,
	}

	// Beacon chain settings
	BeaconConfigFlag = &cli.StringFlag{
		Name:     "beacon.config",
		Usage:    "Beacon chain config YAML file",
		Category: flags.BeaconCategory,
	}
	BeaconGenesisRootFlag = &cli.StringFlag{
		Name:     "beacon.genesis.gvroot",
		Usage:    "Beacon chain genesis validators root",
		Category: flags.BeaconCategory,
	}
	BeaconGenesisTimeFlag = &cli.Uint64Flag{
		Name:     "beacon.genesis.time",
		Usage:    "Beacon chain genesis time",
		Category: flags.BeaconCategory,
	}
	BeaconCheckpointFlag = &cli.StringFlag{
		Name:     "beacon.checkpoint",
		Usage:    "Beacon chain weak subjectivity checkpoint block hash",
		Category: flags.BeaconCategory,
	}
	BeaconApiFlag = &cli.StringSliceFlag{
		Name:     "beacon.api",
		Usage:    "Beacon node (CL) light client API URL. This flag can be given multiple times, later ones are used as fallbacks.",
		Category: flags.BeaconCategory,
	}
	BeaconApiHeaderFlag = &cli.StringSliceFlag{
		Name:     "beacon.api.header",
		Usage:    "Pass custom HTTP header fields to the remote beacon node API in \"key:value\" format. This flag can be given multiple times.",
		Category: flags.BeaconCategory,
	}
	BeaconApiRateLimitFlag = &cli.Float64Flag{
		Name:     "beacon.api.ratelimit",
		Usage:    "Maximum number of beacon API requests per second (0 = unlimited)",
		Category: flags.BeaconCategory,
	}
	BeaconThresholdFlag = &cli.StringFlag{
		Name:     "beacon.threshold",
		Usage:    "Fraction of the sync committee that must sign an update, e.g. \"2/3\"",
		Value:    params.DefaultClientConfig.SignatureThreshold.String(),
		Category: flags.BeaconCategory,
	}
	BeaconMinParticipantsFlag = &cli.IntFlag{
		Name:     "beacon.minparticipants",
		Usage:    "Minimum number of sync committee signers regardless of the threshold",
		Value:    params.DefaultClientConfig.MinSyncCommitteeParticipants,
		Category: flags.BeaconCategory,
	}

	// Execution layer settings
	ExecRPCFlag = &cli.StringFlag{
		Name:     "exec.rpc",
		Usage:    "Execution node RPC URL used to map block numbers to slots",
		Category: flags.ExecutionCategory,
	}

	// Sync settings
	SyncIntervalFlag = &cli.DurationFlag{
		Name:     "sync.interval",
		Usage:    "Time between sync attempts (0 = one slot)",
		Category: flags.SyncCategory,
	}
	SyncPersistFlag = &cli.IntFlag{
		Name:     "sync.persist",
		Usage:    "Persist the store after this many accepted updates (0 = only on shutdown)",
		Category: flags.SyncCategory,
	}
	UpstreamTimeoutFlag = &cli.DurationFlag{
		Name:     "sync.timeout",
		Usage:    "Timeout of a single upstream request",
		Value:    params.DefaultClientConfig.UpstreamTimeout,
		Category: flags.SyncCategory,
	}

	// Database settings
	DataDirFlag = &flags.DirectoryFlag{
		Name:     "datadir",
		Usage:    "Data directory for the database and the checkpoint store",
		Value:    flags.DirectoryString(node.DefaultDataDir()),
		Category: flags.DatabaseCategory,
	}
	DBEngineFlag = &cli.StringFlag{
		Name:     "db.engine",
		Usage:    "Backing database implementation to use ('pebble' or 'leveldb')",
		Value:    node.DefaultConfig.DBEngine,
		Category: flags.DatabaseCategory,
	}
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to the database",
		Value:    node.DefaultConfig.DatabaseCache,
		Category: flags.DatabaseCategory,
	}

	// RPC settings
	HTTPEnabledFlag = &cli.BoolFlag{
		Name:     "http",
		Usage:    "Enable the HTTP-RPC server",
		Category: flags.APICategory,
	}
	HTTPListenAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Usage:    "HTTP-RPC server listening interface",
		Value:    node.DefaultHTTPHost,
		Category: flags.APICategory,
	}
	HTTPPortFlag = &cli.IntFlag{
		Name:     "http.port",
		Usage:    "HTTP-RPC server listening port",
		Value:    node.DefaultHTTPPort,
		Category: flags.APICategory,
	}
	HTTPCORSDomainFlag = &cli.StringFlag{
		Name:     "http.corsdomain",
		Usage:    "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
		Category: flags.APICategory,
	}
	HTTPVirtualHostsFlag = &cli.StringFlag{
		Name:     "http.vhosts",
		Usage:    "Comma separated list of virtual hostnames from which to accept requests (server enforced). Accepts '*' wildcard.",
		Value:    strings.Join(node.DefaultConfig.HTTPVirtualHosts, ","),
		Category: flags.APICategory,
	}
	WSAllowedOriginsFlag = &cli.StringFlag{
		Name:     "ws.origins",
		Usage:    "Origins from which to accept websocket requests on the HTTP port (enables websocket subscriptions)",
		Category: flags.APICategory,
	}
	JWTSecretFlag = &flags.DirectoryFlag{
		Name:     "authrpc.jwtsecret",
		Usage:    "Path to a JWT secret to authenticate every RPC request",
		Category: flags.APICategory,
	}

	// Metrics
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	MetricsHTTPFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable stand-alone metrics HTTP server listening interface",
		Category: flags.MetricsCategory,
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:     "metrics.port",
		Usage:    "Metrics HTTP server listening port",
		Value:    6061,
		Category: flags.MetricsCategory,
	}
)

var (
	// NetworkFlags is the flag group of all built-in supported networks.
	NetworkFlags = []cli.Flag{
		MainnetFlag,
		SepoliaFlag,
		HoleskyFlag,
		MinimalFlag,
	}

	// BeaconFlags configures the chain and the upstream beacon nodes.
	BeaconFlags = []cli.Flag{
		BeaconConfigFlag,
		BeaconGenesisRootFlag,
		BeaconGenesisTimeFlag,
		BeaconCheckpointFlag,
		BeaconApiFlag,
		BeaconApiHeaderFlag,
		BeaconApiRateLimitFlag,
		BeaconThresholdFlag,
		BeaconMinParticipantsFlag,
		ExecRPCFlag,
		UpstreamTimeoutFlag,
	}

	// DatabaseFlags is the flag group of all database flags.
	DatabaseFlags = []cli.Flag{
		DataDirFlag,
		DBEngineFlag,
		CacheFlag,
	}

	// RPCFlags configures the RPC server of the run command.
	RPCFlags = []cli.Flag{
		HTTPEnabledFlag,
		HTTPListenAddrFlag,
		HTTPPortFlag,
		HTTPCORSDomainFlag,
		HTTPVirtualHostsFlag,
		WSAllowedOriginsFlag,
		JWTSecretFlag,
		SyncIntervalFlag,
		SyncPersistFlag,
	}

	// MetricsFlags is the flag group of the metrics collection.
	MetricsFlags = []cli.Flag{
		MetricsEnabledFlag,
		MetricsHTTPFlag,
		MetricsPortFlag,
	}
)

// MakeChainConfig returns the chain config selected by the network flags. The
// returned config is a copy that can be modified freely.
func MakeChainConfig(ctx *cli.Context) (*params.ChainConfig, error) {
	if err := flags.CheckExclusive(ctx, MainnetFlag, SepoliaFlag, HoleskyFlag, MinimalFlag, BeaconConfigFlag); err != nil {
		return nil, err
	}
	var config *params.ChainConfig
	switch {
	case ctx.Bool(SepoliaFlag.Name):
		config = params.SepoliaLightConfig.Copy()
	case ctx.Bool(HoleskyFlag.Name):
		config = params.HoleskyLightConfig.Copy()
	case ctx.Bool(MinimalFlag.Name):
		if !ctx.IsSet(BeaconGenesisTimeFlag.Name) || !ctx.IsSet(BeaconGenesisRootFlag.Name) {
			return nil, fmt.Errorf("--%s requires --%s and --%s", MinimalFlag.Name, BeaconGenesisTimeFlag.Name, BeaconGenesisRootFlag.Name)
		}
		config = params.MinimalConfig(0, common.Hash{})
	case ctx.IsSet(BeaconConfigFlag.Name):
		if !ctx.IsSet(BeaconGenesisTimeFlag.Name) || !ctx.IsSet(BeaconGenesisRootFlag.Name) {
			return nil, fmt.Errorf("custom beacon chain config requires --%s and --%s", BeaconGenesisTimeFlag.Name, BeaconGenesisRootFlag.Name)
		}
		config = params.MainnetLightConfig.Copy()
		config.Checkpoint = common.Hash{}
		if err := config.LoadForks(ctx.String(BeaconConfigFlag.Name)); err != nil {
			return nil, err
		}
	default:
		config = params.MainnetLightConfig.Copy()
	}
	if ctx.IsSet(BeaconGenesisTimeFlag.Name) {
		config.GenesisTime = ctx.Uint64(BeaconGenesisTimeFlag.Name)
	}
	if ctx.IsSet(BeaconGenesisRootFlag.Name) {
		root, err := parseHash(ctx.String(BeaconGenesisRootFlag.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %v", BeaconGenesisRootFlag.Name, err)
		}
		config.GenesisValidatorsRoot = root
	}
	if ctx.IsSet(BeaconCheckpointFlag.Name) {
		checkpoint, err := parseHash(ctx.String(BeaconCheckpointFlag.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %v", BeaconCheckpointFlag.Name, err)
		}
		config.Checkpoint = checkpoint
	}
	// Fork domains depend on the genesis validators root.
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SetClientConfig applies the beacon and execution flags to the light client
// config. The chain config is only replaced if a network flag was given or none
// was configured yet.
func SetClientConfig(ctx *cli.Context, cfg *params.ClientConfig) error {
	networkSet := ctx.IsSet(BeaconConfigFlag.Name) || ctx.IsSet(BeaconGenesisTimeFlag.Name) ||
		ctx.IsSet(BeaconGenesisRootFlag.Name) || ctx.IsSet(BeaconCheckpointFlag.Name)
	for _, flag := range NetworkFlags {
		networkSet = networkSet || ctx.IsSet(flag.Names()[0])
	}
	if networkSet || len(cfg.Forks) == 0 {
		chain, err := MakeChainConfig(ctx)
		if err != nil {
			return err
		}
		cfg.ChainConfig = *chain
	}
	if ctx.IsSet(BeaconApiFlag.Name) {
		cfg.Apis = ctx.StringSlice(BeaconApiFlag.Name)
	}
	if ctx.IsSet(BeaconApiHeaderFlag.Name) {
		cfg.CustomHeader = make(map[string]string)
		for _, s := range ctx.StringSlice(BeaconApiHeaderFlag.Name) {
			kv := strings.SplitN(s, ":", 2)
			if len(kv) != 2 {
				return fmt.Errorf("invalid custom API header entry: %s", s)
			}
			cfg.CustomHeader[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	if ctx.IsSet(BeaconApiRateLimitFlag.Name) {
		cfg.ApiRateLimit = ctx.Float64(BeaconApiRateLimitFlag.Name)
	}
	if ctx.IsSet(BeaconThresholdFlag.Name) {
		threshold, err := parseFraction(ctx.String(BeaconThresholdFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid --%s: %v", BeaconThresholdFlag.Name, err)
		}
		cfg.SignatureThreshold = threshold
	}
	if ctx.IsSet(BeaconMinParticipantsFlag.Name) {
		cfg.MinSyncCommitteeParticipants = ctx.Int(BeaconMinParticipantsFlag.Name)
	}
	if ctx.IsSet(ExecRPCFlag.Name) {
		cfg.ExecRPC = ctx.String(ExecRPCFlag.Name)
	}
	if ctx.IsSet(UpstreamTimeoutFlag.Name) {
		cfg.UpstreamTimeout = ctx.Duration(UpstreamTimeoutFlag.Name)
	}
	return cfg.SignatureThreshold.Validate()
}

// SetSyncConfig applies the sync driver flags.
func SetSyncConfig(ctx *cli.Context, cfg *sync.Config) {
	if ctx.IsSet(SyncIntervalFlag.Name) {
		cfg.Interval = ctx.Duration(SyncIntervalFlag.Name)
	}
	if ctx.IsSet(SyncPersistFlag.Name) {
		cfg.PersistInterval = ctx.Int(SyncPersistFlag.Name)
	}
}

// SetNodeConfig applies node-related command line flags to the config.
func SetNodeConfig(ctx *cli.Context, cfg *node.Config) {
	if ctx.IsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	}
	if ctx.IsSet(DBEngineFlag.Name) {
		cfg.DBEngine = ctx.String(DBEngineFlag.Name)
	}
	if ctx.IsSet(CacheFlag.Name) {
		cfg.DatabaseCache = ctx.Int(CacheFlag.Name)
	}
	setHTTP(ctx, cfg)
	if ctx.IsSet(JWTSecretFlag.Name) {
		cfg.JWTSecret = ctx.String(JWTSecretFlag.Name)
	}
}

// setHTTP creates the HTTP RPC listener interface string from the set
// command line flags, returning empty if the HTTP endpoint is disabled.
func setHTTP(ctx *cli.Context, cfg *node.Config) {
	if ctx.Bool(HTTPEnabledFlag.Name) && cfg.HTTPHost == "" {
		cfg.HTTPHost = node.DefaultHTTPHost
		if ctx.IsSet(HTTPListenAddrFlag.Name) {
			cfg.HTTPHost = ctx.String(HTTPListenAddrFlag.Name)
		}
	}
	if ctx.IsSet(HTTPPortFlag.Name) {
		cfg.HTTPPort = ctx.Int(HTTPPortFlag.Name)
	}
	if ctx.IsSet(HTTPCORSDomainFlag.Name) {
		cfg.HTTPCors = SplitAndTrim(ctx.String(HTTPCORSDomainFlag.Name))
	}
	if ctx.IsSet(HTTPVirtualHostsFlag.Name) {
		cfg.HTTPVirtualHosts = SplitAndTrim(ctx.String(HTTPVirtualHostsFlag.Name))
	}
	if ctx.IsSet(WSAllowedOriginsFlag.Name) {
		cfg.WSOrigins = SplitAndTrim(ctx.String(WSAllowedOriginsFlag.Name))
	}
}

// SetupMetrics enables metrics collection and starts the stand-alone metrics
// HTTP server if requested.
func SetupMetrics(ctx *cli.Context) {
	if !ctx.Bool(MetricsEnabledFlag.Name) {
		return
	}
	log.Info("Enabling metrics collection")
	metrics.Enable()
	if ctx.IsSet(MetricsHTTPFlag.Name) {
		address := net.JoinHostPort(ctx.String(MetricsHTTPFlag.Name), fmt.Sprintf("%d", ctx.Int(MetricsPortFlag.Name)))
		log.Info("Enabling stand-alone metrics HTTP endpoint", "address", address)
		exp.Setup(address)
	} else if ctx.IsSet(MetricsPortFlag.Name) {
		log.Warn(fmt.Sprintf("--%s specified without --%s, metrics server will not start.", MetricsPortFlag.Name, MetricsHTTPFlag.Name))
	}
}

// SplitAndTrim splits input separated by a comma
// and trims excessive white space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.Split(input, ",")
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}

func parseHash(s string) (common.Hash, error) {
	var h common.Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

// parseFraction parses a ratio in "n/d" notation.
func parseFraction(s string) (params.Fraction, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return params.Fraction{}, fmt.Errorf("%q is not a fraction", s)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return params.Fraction{}, err
	}
	d, err := strconv.ParseUint(strings.TrimSpace(den), 10, 64)
	if err != nil {
		return params.Fraction{}, err
	}
	f := params.Fraction{Numerator: n, Denominator: d}
	return f, f.Validate()
}

// FetchTimeout returns the deadline applied to one-shot commands that talk to
// the upstream, leaving room for failover between several beacon APIs.
func FetchTimeout(cfg *params.ClientConfig) time.Duration {
	n := len(cfg.Apis)
	if n == 0 {
		n = 1
	}
	if cfg.UpstreamTimeout <= 0 || cfg.UpstreamTimeout > time.Duration(math.MaxInt64/int64(n)) {
		return time.Minute
	}
	return cfg.UpstreamTimeout * time.Duration(n)
}

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

package params

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/evmlc/evm-light-client/beacon/merkle"
	"gopkg.in/yaml.v3"
)

// syncCommitteeDomain specifies the signatures specific use to avoid clashes
// across signing different data structures.
const syncCommitteeDomain = 7

var knownForks = []string{"GENESIS", "ALTAIR", "BELLATRIX", "CAPELLA", "DENEB", "ELECTRA"}

var (
	ErrUnknownFork            = errors.New("unknown fork")
	ErrNoForks                = errors.New("no forks configured")
	ErrInvalidForkOrder       = errors.New("invalid fork parameters order")
	ErrLightClientUnsupported = errors.New("fork does not support light clients")
	ErrInvalidConfig          = errors.New("invalid chain config")
	ErrInvalidThreshold       = errors.New("invalid signature threshold")
)

// ClientConfig contains beacon light client configuration.
type ClientConfig struct {
	ChainConfig
	Apis         []string
	CustomHeader map[string]string
	ExecRPC      string
	ApiRateLimit float64 // beacon API requests per second, zero means unlimited

	SignatureThreshold           Fraction
	MinSyncCommitteeParticipants int
	HeaderCacheSize              int
	BlockCacheSize               int
	MaxBackfill                  int
	UpstreamTimeout              time.Duration
}

// DefaultClientConfig contains the default light client settings on top of
// the mainnet chain config.
var DefaultClientConfig = ClientConfig{
	ChainConfig:                  *MainnetLightConfig,
	SignatureThreshold:           Fraction{Numerator: 2, Denominator: 3},
	MinSyncCommitteeParticipants: 1,
	HeaderCacheSize:              256,
	BlockCacheSize:               32,
	MaxBackfill:                  64,
	UpstreamTimeout:              10 * time.Second,
}

// ChainConfig contains the beacon chain configuration.
type ChainConfig struct {
	GenesisTime           uint64
	GenesisValidatorsRoot common.Hash

	SecondsPerSlot               uint64
	SlotsPerEpoch                uint64
	EpochsPerSyncCommitteePeriod uint64
	SyncCommitteeSize            int

	Forks      Forks
	Checkpoint common.Hash `toml:",omitempty"`
}

// Validate checks the sanity of the chain parameters and (re)calculates the
// fork domains. It must be called after the config was filled by any means
// other than AddFork, e.g. decoding from a config file.
func (c *ChainConfig) Validate() error {
	if c.SecondsPerSlot == 0 || c.SlotsPerEpoch == 0 || c.EpochsPerSyncCommitteePeriod == 0 {
		return fmt.Errorf("%w: zero slot timing parameter", ErrInvalidConfig)
	}
	if c.SlotsPerEpoch > math.MaxUint64/c.EpochsPerSyncCommitteePeriod {
		return fmt.Errorf("%w: sync period length overflows", ErrInvalidConfig)
	}
	switch c.SyncCommitteeSize {
	case 8, 32, 64, 128, 256, 512:
	default:
		return fmt.Errorf("%w: unsupported sync committee size %d", ErrInvalidConfig, c.SyncCommitteeSize)
	}
	if len(c.Forks) == 0 {
		return ErrNoForks
	}
	names := make(map[string]struct{}, len(c.Forks))
	for _, fork := range c.Forks {
		if _, ok := names[fork.Name]; ok {
			return fmt.Errorf("%w: duplicate fork %q", ErrInvalidForkOrder, fork.Name)
		}
		names[fork.Name] = struct{}{}
		if len(fork.Version) != 4 {
			return fmt.Errorf("%w: fork %q has version of length %d", ErrInvalidConfig, fork.Name, len(fork.Version))
		}
		fork.knownIndex = knownIndex(fork.Name)
		fork.computeDomain(c.GenesisValidatorsRoot)
	}
	sort.Sort(c.Forks)
	return nil
}

// ForkAtEpoch returns the latest active fork at the given epoch.
func (c *ChainConfig) ForkAtEpoch(epoch uint64) Fork {
	for i := len(c.Forks) - 1; i >= 0; i-- {
		if c.Forks[i].Epoch <= epoch {
			return *c.Forks[i]
		}
	}
	return Fork{}
}

// ForkSpec returns the state layout of the fork active at the given slot.
func (c *ChainConfig) ForkSpec(slot uint64) (ForkSpec, error) {
	epoch := c.Epoch(slot)
	for i := len(c.Forks) - 1; i >= 0; i-- {
		if c.Forks[i].Epoch > epoch {
			continue
		}
		for j := i; j >= 0; j-- {
			if spec, ok := forkSpecs[c.Forks[j].Name]; ok {
				if spec.LightClientUnsupported {
					return ForkSpec{}, fmt.Errorf("%w: %s at epoch %d", ErrLightClientUnsupported, c.Forks[j].Name, epoch)
				}
				return spec, nil
			}
		}
		return ForkSpec{}, fmt.Errorf("%w: no known fork before %q", ErrUnknownFork, c.Forks[i].Name)
	}
	return ForkSpec{}, fmt.Errorf("%w: epoch %d", ErrUnknownFork, epoch)
}

// SigningRoot calculates the signing root of a header root signed at the
// given signature slot. The fork version is taken from the slot preceding
// the signature slot, which is the slot the committee members have been
// attesting in.
func (c *ChainConfig) SigningRoot(signatureSlot uint64, root common.Hash) (common.Hash, error) {
	if signatureSlot > 0 {
		signatureSlot--
	}
	return c.Forks.SigningRoot(c.Epoch(signatureSlot), root)
}

// AddFork adds a new item to the list of forks.
func (c *ChainConfig) AddFork(name string, epoch uint64, version []byte) *ChainConfig {
	index := knownIndex(name)
	if index == math.MaxInt && epoch != math.MaxUint64 {
		log.Warn("Unknown fork in config.yaml", "fork name", name, "known forks", knownForks)
	}
	fork := &Fork{
		Name:       name,
		Epoch:      epoch,
		Version:    version,
		knownIndex: index,
	}
	fork.computeDomain(c.GenesisValidatorsRoot)
	c.Forks = append(c.Forks, fork)
	sort.Sort(c.Forks)
	return c
}

// Copy returns a deep copy of the chain config. Forks are shared by pointer
// in the original, so they are duplicated here.
func (c *ChainConfig) Copy() *ChainConfig {
	cpy := *c
	cpy.Forks = make(Forks, len(c.Forks))
	for i, fork := range c.Forks {
		f := *fork
		f.Version = slices.Clone(fork.Version)
		cpy.Forks[i] = &f
	}
	return &cpy
}

func knownIndex(name string) int {
	index := slices.Index(knownForks, name)
	if index == -1 {
		return math.MaxInt
	}
	return index
}

// LoadForks parses the beacon chain configuration file (config.yaml) and extracts
// the list of forks along with the slot timing parameters found in it.
func (c *ChainConfig) LoadForks(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read beacon chain config file: %v", err)
	}
	config := make(map[string]string)
	if err := yaml.Unmarshal(file, &config); err != nil {
		return fmt.Errorf("failed to parse beacon chain config file: %v", err)
	}
	var (
		versions = make(map[string][]byte)
		epochs   = make(map[string]uint64)
	)
	epochs["GENESIS"] = 0

	for key, value := range config {
		if strings.HasSuffix(key, "_FORK_VERSION") {
			name := key[:len(key)-len("_FORK_VERSION")]
			if v, err := hexutil.Decode(value); err == nil {
				versions[name] = v
			} else {
				return fmt.Errorf("failed to decode hex fork id %q in beacon chain config file: %v", value, err)
			}
		}
		if strings.HasSuffix(key, "_FORK_EPOCH") {
			name := key[:len(key)-len("_FORK_EPOCH")]
			if v, err := strconv.ParseUint(value, 10, 64); err == nil {
				epochs[name] = v
			} else {
				return fmt.Errorf("failed to parse epoch number %q in beacon chain config file: %v", value, err)
			}
		}
	}
	timing := []struct {
		key string
		dst *uint64
	}{
		{"SECONDS_PER_SLOT", &c.SecondsPerSlot},
		{"SLOTS_PER_EPOCH", &c.SlotsPerEpoch},
		{"EPOCHS_PER_SYNC_COMMITTEE_PERIOD", &c.EpochsPerSyncCommitteePeriod},
	}
	for _, t := range timing {
		if value, ok := config[t.key]; ok {
			v, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse %s %q in beacon chain config file: %v", t.key, value, err)
			}
			*t.dst = v
		}
	}
	if value, ok := config["SYNC_COMMITTEE_SIZE"]; ok {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("failed to parse SYNC_COMMITTEE_SIZE %q in beacon chain config file: %v", value, err)
		}
		c.SyncCommitteeSize = v
	}
	c.Forks = nil
	for name, epoch := range epochs {
		if version, ok := versions[name]; ok {
			delete(versions, name)
			c.AddFork(name, epoch, version)
		} else {
			return fmt.Errorf("fork id missing for %q in beacon chain config file", name)
		}
	}
	for name := range versions {
		return fmt.Errorf("epoch number missing for fork %q in beacon chain config file", name)
	}
	return nil
}

// Fork describes a single beacon chain fork and also stores the calculated
// signature domain used after this fork.
type Fork struct {
	// Name of the fork in the chain config (config.yaml) file
	Name string

	// Epoch when given fork version is activated
	Epoch uint64

	// Fork version, see https://github.com/ethereum/consensus-specs/blob/dev/specs/phase0/beacon-chain.md#custom-types
	Version hexutil.Bytes

	// index in list of known forks or MaxInt if unknown
	knownIndex int

	// calculated by computeDomain, based on fork version and genesis validators root
	domain merkle.Value
}

// computeDomain returns the signature domain based on the given fork version
// and genesis validator set root.
func (f *Fork) computeDomain(genesisValidatorsRoot common.Hash) {
	var (
		hasher        = sha256.New()
		forkVersion32 merkle.Value
		forkDataRoot  merkle.Value
	)
	copy(forkVersion32[:], f.Version)
	hasher.Write(forkVersion32[:])
	hasher.Write(genesisValidatorsRoot[:])
	hasher.Sum(forkDataRoot[:0])

	f.domain = merkle.Value{}
	f.domain[0] = syncCommitteeDomain
	copy(f.domain[4:], forkDataRoot[:28])
}

// Domain returns the sync committee signature domain of the fork.
func (f *Fork) Domain() merkle.Value {
	return f.domain
}

// Forks is the list of all beacon chain forks in the chain configuration.
type Forks []*Fork

// domain returns the signature domain for the given epoch (assumes that domains
// have already been calculated).
func (f Forks) domain(epoch uint64) (merkle.Value, error) {
	for i := len(f) - 1; i >= 0; i-- {
		if epoch >= f[i].Epoch {
			return f[i].domain, nil
		}
	}
	return merkle.Value{}, fmt.Errorf("%w: epoch %d", ErrUnknownFork, epoch)
}

// SigningRoot calculates the signing root of the given header.
func (f Forks) SigningRoot(epoch uint64, root common.Hash) (common.Hash, error) {
	domain, err := f.domain(epoch)
	if err != nil {
		return common.Hash{}, err
	}
	var (
		signingRoot common.Hash
		hasher      = sha256.New()
	)
	hasher.Write(root[:])
	hasher.Write(domain[:])
	hasher.Sum(signingRoot[:0])

	return signingRoot, nil
}

func (f Forks) Len() int      { return len(f) }
func (f Forks) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f Forks) Less(i, j int) bool {
	if f[i].Epoch != f[j].Epoch {
		return f[i].Epoch < f[j].Epoch
	}
	return f[i].knownIndex < f[j].knownIndex
}

// Fraction is a ratio used for the sync committee participation threshold.
type Fraction struct {
	Numerator   uint64
	Denominator uint64
}

// Validate checks that the fraction is a proper ratio in [0, 1].
func (f Fraction) Validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("%w: zero denominator", ErrInvalidThreshold)
	}
	if f.Numerator > f.Denominator {
		return fmt.Errorf("%w: %d/%d is greater than one", ErrInvalidThreshold, f.Numerator, f.Denominator)
	}
	return nil
}

// Required returns the smallest number of signers out of n that reaches the
// fraction (rounded up). The fraction must be valid.
func (f Fraction) Required(n int) int {
	hi, lo := bits.Mul64(uint64(n), f.Numerator)
	lo, carry := bits.Add64(lo, f.Denominator-1, 0)
	q, _ := bits.Div64(hi+carry, lo, f.Denominator)
	return int(q)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

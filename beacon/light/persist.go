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

package light

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
)

// storeVersion is the format version of the persisted store record.
const storeVersion = 1

var (
	storeHeadKey   = []byte("lc-store-head") // generation of the authoritative store record
	storeRecordKey = []byte("lc-store-")     // storeRecordKey + generation (uint64 big endian) -> record
	chainConfigKey = []byte("lc-config")     // genesis and fork parameters of the persisted store
)

func storeKey(generation uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, storeRecordKey...), generation)
}

// storeRecord is the RLP layout of a Store.
type storeRecord struct {
	Finalized        types.Header
	Optimistic       types.Header
	CurrentCommittee []byte
	CurrentProof     *CommitteeProof `rlp:"nil"`
	NextCommittee    []byte
	NextProof        *CommitteeProof          `rlp:"nil"`
	BestValidUpdate  *types.LightClientUpdate `rlp:"nil"`
}

type versionedRecord struct {
	Version uint64
	Store   storeRecord
}

// configRecord identifies the chain a store was persisted for.
type configRecord struct {
	GenesisTime           uint64
	GenesisValidatorsRoot common.Hash
	Forks                 []forkRecord
}

type forkRecord struct {
	Name    string
	Epoch   uint64
	Version []byte
}

func newConfigRecord(config *params.ChainConfig) *configRecord {
	rec := &configRecord{
		GenesisTime:           config.GenesisTime,
		GenesisValidatorsRoot: config.GenesisValidatorsRoot,
	}
	for _, fork := range config.Forks {
		rec.Forks = append(rec.Forks, forkRecord{Name: fork.Name, Epoch: fork.Epoch, Version: fork.Version})
	}
	return rec
}

func encodeUpdate(update *types.LightClientUpdate) ([]byte, error) {
	return rlp.EncodeToBytes(update)
}

// encodeStore serializes the store into a checksummed record.
func encodeStore(store *Store) ([]byte, error) {
	enc, err := rlp.EncodeToBytes(&versionedRecord{
		Version: storeVersion,
		Store: storeRecord{
			Finalized:        store.Finalized,
			Optimistic:       store.Optimistic,
			CurrentCommittee: store.CurrentCommittee,
			CurrentProof:     store.CurrentProof,
			NextCommittee:    store.NextCommittee,
			NextProof:        store.NextProof,
			BestValidUpdate:  store.BestValidUpdate,
		},
	})
	if err != nil {
		return nil, err
	}
	return append(enc, crypto.Keccak256(enc)...), nil
}

// decodeStore parses a checksummed record and verifies the consistency of the
// resulting store. Any failure is reported as ErrCorruptPersistedState.
func decodeStore(config *params.ChainConfig, blob []byte) (*Store, error) {
	if len(blob) < common.HashLength {
		return nil, fmt.Errorf("%w: record too short (%d bytes)", ErrCorruptPersistedState, len(blob))
	}
	enc, sum := blob[:len(blob)-common.HashLength], blob[len(blob)-common.HashLength:]
	if !bytes.Equal(crypto.Keccak256(enc), sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptPersistedState)
	}
	var rec versionedRecord
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPersistedState, err)
	}
	if rec.Version != storeVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptPersistedState, rec.Version)
	}
	store := &Store{
		Finalized:        rec.Store.Finalized,
		Optimistic:       rec.Store.Optimistic,
		CurrentCommittee: rec.Store.CurrentCommittee,
		CurrentProof:     rec.Store.CurrentProof,
		NextCommittee:    rec.Store.NextCommittee,
		NextProof:        rec.Store.NextProof,
		BestValidUpdate:  rec.Store.BestValidUpdate,
	}
	if len(store.CurrentCommittee) == 0 {
		store.CurrentCommittee = nil
	}
	if len(store.NextCommittee) == 0 {
		store.NextCommittee = nil
	}
	if err := store.checkInvariants(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPersistedState, err)
	}
	return store, nil
}

// persister writes and restores store records with write-new-then-swap
// semantics: a record is first written under a fresh generation key and the
// head pointer is switched in a single batch that also deletes the previous
// generation.
type persister struct {
	db         ethdb.KeyValueStore
	config     *params.ChainConfig
	generation uint64
}

// load restores the persisted store. It returns nil without error if nothing
// was persisted yet.
func (p *persister) load() (*Store, error) {
	has, err := p.db.Has(storeHeadKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if !has {
		return nil, nil
	}
	head, err := p.db.Get(storeHeadKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if len(head) != 8 {
		return nil, fmt.Errorf("%w: invalid head pointer %x", ErrCorruptPersistedState, head)
	}
	generation := binary.BigEndian.Uint64(head)
	if err := p.checkConfig(); err != nil {
		return nil, err
	}
	if has, err := p.db.Has(storeKey(generation)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	} else if !has {
		return nil, fmt.Errorf("%w: missing store record %d", ErrCorruptPersistedState, generation)
	}
	blob, err := p.db.Get(storeKey(generation))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	store, err := decodeStore(p.config, blob)
	if err != nil {
		return nil, err
	}
	p.generation = generation
	log.Debug("Loaded persisted light client store", "generation", generation, "finalized", store.Finalized.Slot, "optimistic", store.Optimistic.Slot)
	return store, nil
}

// checkConfig refuses stores persisted for a different chain.
func (p *persister) checkConfig() error {
	enc, err := p.db.Get(chainConfigKey)
	if err != nil {
		return fmt.Errorf("%w: missing chain config record", ErrCorruptPersistedState)
	}
	var rec configRecord
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return fmt.Errorf("%w: chain config record: %v", ErrCorruptPersistedState, err)
	}
	if rec.GenesisValidatorsRoot != p.config.GenesisValidatorsRoot {
		return fmt.Errorf("%w: store persisted for genesis validators root %x, have %x", ErrCorruptPersistedState, rec.GenesisValidatorsRoot, p.config.GenesisValidatorsRoot)
	}
	if rec.GenesisTime != p.config.GenesisTime {
		log.Warn("Persisted genesis time differs from configuration", "persisted", rec.GenesisTime, "configured", p.config.GenesisTime)
	}
	return nil
}

// save writes the store as a new generation and makes it authoritative.
func (p *persister) save(store *Store) error {
	blob, err := encodeStore(store)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	cfg, err := rlp.EncodeToBytes(newConfigRecord(p.config))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	generation := p.generation + 1
	if err := p.db.Put(storeKey(generation), blob); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	batch := p.db.NewBatch()
	if err := batch.Put(storeHeadKey, binary.BigEndian.AppendUint64(nil, generation)); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := batch.Put(chainConfigKey, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if p.generation != 0 {
		if err := batch.Delete(storeKey(p.generation)); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}
	if err := batch.Write(); err != nil {
		log.Error("Error writing batch into light client database", "error", err)
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	p.generation = generation
	return nil
}

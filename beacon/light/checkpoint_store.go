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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/evmlc/evm-light-client/beacon/types"
)

var checkpointPrefix = []byte("lc-checkpoint-") // checkpointPrefix + header root -> bootstrap data

// checkpointStore keeps the bootstrap data of every checkpoint the client was
// initialized from, so that a client can be reinitialized offline.
type checkpointStore struct {
	db ethdb.KeyValueStore
}

func checkpointKey(root common.Hash) []byte {
	return append(append([]byte{}, checkpointPrefix...), root[:]...)
}

func (cs *checkpointStore) put(bootstrap *types.BootstrapData) error {
	enc, err := rlp.EncodeToBytes(bootstrap)
	if err != nil {
		return err
	}
	return cs.db.Put(checkpointKey(bootstrap.Header.Hash()), enc)
}

// get returns the stored bootstrap data of the given checkpoint or nil if it
// is not stored.
func (cs *checkpointStore) get(root common.Hash) (*types.BootstrapData, error) {
	if has, err := cs.db.Has(checkpointKey(root)); err != nil || !has {
		return nil, err
	}
	enc, err := cs.db.Get(checkpointKey(root))
	if err != nil {
		return nil, err
	}
	bootstrap := new(types.BootstrapData)
	if err := rlp.DecodeBytes(enc, bootstrap); err != nil {
		return nil, err
	}
	if bootstrap.Header.Hash() != root {
		return nil, errors.New("checkpoint record does not match its key")
	}
	return bootstrap, nil
}

// roots lists the stored checkpoints.
func (cs *checkpointStore) roots() []common.Hash {
	it := cs.db.NewIterator(checkpointPrefix, nil)
	defer it.Release()

	var roots []common.Hash
	for it.Next() {
		if len(it.Key()) != len(checkpointPrefix)+common.HashLength {
			log.Warn("Invalid key length in the checkpoint store", "key", fmt.Sprintf("%#x", it.Key()))
			continue
		}
		roots = append(roots, common.BytesToHash(it.Key()[len(checkpointPrefix):]))
	}
	return roots
}

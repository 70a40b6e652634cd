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

package types_test

import (
	"encoding/json"
	"testing"

	"github.com/evmlc/evm-light-client/beacon/params"
	"github.com/evmlc/evm-light-client/beacon/types"
	"github.com/evmlc/evm-light-client/internal/lctest"
	"github.com/protolambda/zrnt/eth2/beacon/altair"
	zrntcommon "github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/configs"
	"github.com/protolambda/ztyp/tree"
	"github.com/stretchr/testify/require"
)

func TestCommitteeRootMatchesSSZ(t *testing.T) {
	c := lctest.NewCommittee(params.SyncCommitteeSize, 1)

	var sc altair.SyncCommittee
	for i := 0; i < c.Size(); i++ {
		var key zrntcommon.BLSPubkey
		copy(key[:], c.Serialized.Pubkey(i))
		sc.Pubkeys = append(sc.Pubkeys, key)
	}
	copy(sc.AggregatePubkey[:], c.Serialized.AggregatePubkey())

	want := sc.HashTreeRoot(configs.Mainnet, tree.GetHashFn())
	require.Equal(t, [32]byte(want), [32]byte(c.Root()))
}

func TestCommitteeDeserialize(t *testing.T) {
	c := lctest.NewCommittee(32, 2)
	sc, err := c.Serialized.Deserialize()
	require.NoError(t, err)
	require.Equal(t, 32, sc.Size())

	// Swapping the aggregate for a member key breaks the aggregate check.
	tampered := append(types.SerializedSyncCommittee{}, c.Serialized...)
	copy(tampered[32*params.BLSPubkeySize:], c.Serialized.Pubkey(0))
	_, err = tampered.Deserialize()
	require.ErrorIs(t, err, types.ErrAggregateMismatch)

	_, err = types.SerializedSyncCommittee(c.Serialized[:100]).Deserialize()
	require.ErrorIs(t, err, types.ErrCommitteeSize)
	require.Error(t, c.Serialized.CheckSize(64))
	require.NoError(t, c.Serialized.CheckSize(32))
}

func TestCommitteeVerifySignature(t *testing.T) {
	var (
		config    = lctest.Config(0)
		c         = lctest.NewCommittee(32, 3)
		other     = lctest.NewCommittee(32, 4)
		header    = lctest.Header(100, [32]byte{1}, [32]byte{2})
		sigSlot   = uint64(101)
		aggregate = c.Sign(config, header, sigSlot, lctest.Signers(25))
	)
	sc, err := c.Serialized.Deserialize()
	require.NoError(t, err)
	require.Equal(t, 25, aggregate.SignerCount())

	root, err := config.SigningRoot(sigSlot, header.Hash())
	require.NoError(t, err)
	require.True(t, sc.VerifySignature(root, &aggregate))

	// Signed by a different committee.
	foreign := other.Sign(config, header, sigSlot, lctest.Signers(25))
	require.False(t, sc.VerifySignature(root, &foreign))

	// Bitfield claiming an extra signer.
	tampered := aggregate
	tampered.Signers = append([]byte{}, aggregate.Signers...)
	tampered.Signers[3] |= 0x80
	require.False(t, sc.VerifySignature(root, &tampered))

	// Different signing root.
	otherHeader := lctest.Header(101, [32]byte{1}, [32]byte{2})
	otherRoot, err := config.SigningRoot(sigSlot, otherHeader.Hash())
	require.NoError(t, err)
	require.False(t, sc.VerifySignature(otherRoot, &aggregate))

	// Bitfield size not matching the committee.
	short := aggregate
	short.Signers = aggregate.Signers[:1]
	require.False(t, sc.VerifySignature(root, &short))
}

func TestSyncAggregateBitfield(t *testing.T) {
	agg := types.SyncAggregate{Signers: make([]byte, 64)}
	bits, err := agg.Bitfield()
	require.NoError(t, err)
	require.Equal(t, uint64(512), bits.Len())

	agg.Signers = make([]byte, 3)
	_, err = agg.Bitfield()
	require.ErrorIs(t, err, types.ErrSignersSize)
}

func TestCommitteeJSON(t *testing.T) {
	c := lctest.NewCommittee(8, 5)
	enc, err := json.Marshal(c.Serialized)
	require.NoError(t, err)

	var dec types.SerializedSyncCommittee
	require.NoError(t, json.Unmarshal(enc, &dec))
	require.Equal(t, c.Serialized, dec)

	enc, err = json.Marshal(types.SerializedSyncCommittee(nil))
	require.NoError(t, err)
	require.Equal(t, "null", string(enc))
}

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

package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ctypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/protolambda/zrnt/eth2/beacon/capella"
	zrntcommon "github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
)

// ErrPayloadHashMismatch is returned when the execution block rebuilt from a
// payload does not hash to the block hash the payload claims.
var ErrPayloadHashMismatch = errors.New("execution payload hash mismatch")

// ExecutionBlock rebuilds the execution block carried by the beacon block and
// checks it against the payload's block hash. Since the payload is part of the
// beacon block root, a verified beacon block yields a verified execution block.
func (b *BeaconBlock) ExecutionBlock() (*ctypes.Block, error) {
	var (
		block    *ctypes.Block
		expected common.Hash
		err      error
	)
	switch obj := b.blockObj.(type) {
	case *capella.BeaconBlock:
		payload := &obj.Body.ExecutionPayload
		block, err = capellaExecutionBlock(payload)
		expected = common.Hash(payload.BlockHash)
	case *deneb.BeaconBlock:
		payload := &obj.Body.ExecutionPayload
		block, err = denebExecutionBlock(payload, common.Hash(obj.ParentRoot))
		expected = common.Hash(payload.BlockHash)
	default:
		panic(fmt.Errorf("unsupported block type %T", b.blockObj))
	}
	if err != nil {
		return nil, err
	}
	if hash := block.Hash(); hash != expected {
		return nil, fmt.Errorf("%w: payload claims %x, rebuilt block has %x", ErrPayloadHashMismatch, expected, hash)
	}
	return block, nil
}

func capellaExecutionBlock(payload *capella.ExecutionPayload) (*ctypes.Block, error) {
	header := &ctypes.Header{
		ParentHash:  common.Hash(payload.ParentHash),
		UncleHash:   ctypes.EmptyUncleHash,
		Coinbase:    common.Address(payload.FeeRecipient),
		Root:        common.Hash(payload.StateRoot),
		ReceiptHash: common.Hash(payload.ReceiptsRoot),
		Bloom:       ctypes.Bloom(payload.LogsBloom),
		Difficulty:  common.Big0,
		Number:      new(big.Int).SetUint64(uint64(payload.BlockNumber)),
		GasLimit:    uint64(payload.GasLimit),
		GasUsed:     uint64(payload.GasUsed),
		Time:        uint64(payload.Timestamp),
		Extra:       []byte(payload.ExtraData),
		MixDigest:   common.Hash(payload.PrevRandao),
		BaseFee:     (*uint256.Int)(&payload.BaseFeePerGas).ToBig(),
	}
	return assembleBlock(header, payload.Transactions, payload.Withdrawals)
}

func denebExecutionBlock(payload *deneb.ExecutionPayload, parentBeaconRoot common.Hash) (*ctypes.Block, error) {
	var (
		blobGasUsed   = uint64(payload.BlobGasUsed)
		excessBlobGas = uint64(payload.ExcessBlobGas)
	)
	header := &ctypes.Header{
		ParentHash:       common.Hash(payload.ParentHash),
		UncleHash:        ctypes.EmptyUncleHash,
		Coinbase:         common.Address(payload.FeeRecipient),
		Root:             common.Hash(payload.StateRoot),
		ReceiptHash:      common.Hash(payload.ReceiptsRoot),
		Bloom:            ctypes.Bloom(payload.LogsBloom),
		Difficulty:       common.Big0,
		Number:           new(big.Int).SetUint64(uint64(payload.BlockNumber)),
		GasLimit:         uint64(payload.GasLimit),
		GasUsed:          uint64(payload.GasUsed),
		Time:             uint64(payload.Timestamp),
		Extra:            []byte(payload.ExtraData),
		MixDigest:        common.Hash(payload.PrevRandao),
		BaseFee:          (*uint256.Int)(&payload.BaseFeePerGas).ToBig(),
		BlobGasUsed:      &blobGasUsed,
		ExcessBlobGas:    &excessBlobGas,
		ParentBeaconRoot: &parentBeaconRoot,
	}
	return assembleBlock(header, payload.Transactions, payload.Withdrawals)
}

// assembleBlock decodes the opaque transactions and the withdrawals and fills
// in the header roots derived from them.
func assembleBlock(header *ctypes.Header, opaqueTxs zrntcommon.PayloadTransactions, list zrntcommon.Withdrawals) (*ctypes.Block, error) {
	txs := make([]*ctypes.Transaction, len(opaqueTxs))
	for i, opaqueTx := range opaqueTxs {
		tx := new(ctypes.Transaction)
		if err := tx.UnmarshalBinary(opaqueTx); err != nil {
			return nil, fmt.Errorf("invalid transaction %d in payload: %v", i, err)
		}
		txs[i] = tx
	}
	withdrawals := make([]*ctypes.Withdrawal, len(list))
	for i, w := range list {
		withdrawals[i] = &ctypes.Withdrawal{
			Index:     uint64(w.Index),
			Validator: uint64(w.ValidatorIndex),
			Address:   common.Address(w.Address),
			Amount:    uint64(w.Amount),
		}
	}
	header.TxHash = ctypes.DeriveSha(ctypes.Transactions(txs), trie.NewStackTrie(nil))
	withdrawalsHash := ctypes.DeriveSha(ctypes.Withdrawals(withdrawals), trie.NewStackTrie(nil))
	header.WithdrawalsHash = &withdrawalsHash

	body := ctypes.Body{Transactions: txs, Withdrawals: withdrawals}
	return ctypes.NewBlockWithHeader(header).WithBody(body), nil
}

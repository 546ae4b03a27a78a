// Package blocktest builds small synthetic block chains and writes them
// out as blocksNNNNN.dat fixtures, for use from other packages' tests.
// It never ships in a release binary; only _test.go files import it.
package blocktest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"blockstream/internal/netparams"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// GenesisHash is netparams' regtest genesis hash, reused here so fixture
// chains built purely in memory (without ever writing genesis itself to
// disk) still link back to the same constant a real pipeline run resolves
// against.
func GenesisHash() chainhash.Hash {
	return netparams.Regtest.GenesisHash
}

// GenesisRecord returns the literal regtest genesis block, for tests that
// need ReadDetect to find height 0 on disk like it would against a real
// blocks directory (spec's height-0 boundary case: genesis itself is
// always the first record a node's blk00000.dat ever holds).
func GenesisRecord() *wire.MsgBlock {
	return netparams.Regtest.GenesisBlock
}

// Coinbase builds a minimal coinbase transaction. extraNonce varies the
// transaction (and hence the block and header hash) between otherwise
// identical-looking blocks, standing in for the real miner's extra-nonce
// field.
func Coinbase(height int32, extraNonce byte, outValue int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	sigScript := []byte{byte(height), extraNonce}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    outValue,
		PkScript: []byte{0x51}, // OP_TRUE, good enough: scripts are never interpreted here
	})
	return tx
}

// Spend builds a transaction spending outpoint (txid, vout) and creating
// one new output of outValue.
func Spend(txid chainhash.Hash, vout uint32, outValue int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: txid, Index: vout},
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: outValue, PkScript: []byte{0x51}})
	return tx
}

// NewBlock assembles a block with the given parent holding a single
// coinbase whose signature script is coinbaseExtraNonce; AddTx appends
// further transactions.
func NewBlock(prev chainhash.Hash, timestampOffset int64, coinbaseExtraNonce []byte) *wire.MsgBlock {
	blk := wire.NewMsgBlock(&wire.BlockHeader{
		Version:    1,
		PrevBlock:  prev,
		Timestamp:  time.Unix(1231006505+timestampOffset, 0),
		Bits:       0x1d00ffff,
		Nonce:      0,
		MerkleRoot: chainhash.Hash{},
	})
	cb := wire.NewMsgTx(wire.TxVersion)
	cb.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  coinbaseExtraNonce,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	cb.AddTxOut(&wire.TxOut{Value: 5000000000, PkScript: []byte{0x51}})
	blk.AddTransaction(cb)
	blk.Header.MerkleRoot = cb.TxHash()
	return blk
}

// Chain builds a linear chain of n blocks (heights 1..n) on top of
// parent, each containing only a coinbase, distinguished by extraNonce.
// It returns the blocks in height order.
func Chain(parent chainhash.Hash, n int, extraNonceBase byte) []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, n)
	prev := parent
	for i := 0; i < n; i++ {
		blk := NewBlock(prev, int64(i+1), []byte{extraNonceBase, byte(i)})
		blocks = append(blocks, blk)
		prev = blk.BlockHash()
	}
	return blocks
}

// ChainFromGenesis returns the regtest genesis record followed by a
// linear chain of n descendants (heights 0..n), suitable for writing
// straight to a blocksNNNNN.dat fixture so ReadDetect discovers height 0
// the same way it would against a real node's blk00000.dat.
func ChainFromGenesis(n int, extraNonceBase byte) []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, n+1)
	blocks = append(blocks, GenesisRecord())
	blocks = append(blocks, Chain(GenesisHash(), n, extraNonceBase)...)
	return blocks
}

// AddTx appends tx to blk and recomputes the (simplistic, unvalidated)
// merkle root as the coinbase hash XOR'd with every other tx hash so blocks
// with different tx lists hash differently; callers never rely on the
// merkle root being consensus-correct, only on BlockHash() and
// PrevBlock/ hash-of-header stability.
func AddTx(blk *wire.MsgBlock, tx *wire.MsgTx) {
	blk.AddTransaction(tx)
	h := blk.Transactions[0].TxHash()
	for _, t := range blk.Transactions[1:] {
		th := t.TxHash()
		for i := range h {
			h[i] ^= th[i]
		}
	}
	blk.Header.MerkleRoot = h
}

// WriteDat serializes blocks (in the given physical order, which need
// not match height order) into path as a magic-delimited blocksNNNNN.dat
// file, padded with a handful of zero bytes between records to exercise
// ReadDetect's padding tolerance.
func WriteDat(path string, magic [4]byte, blocks []*wire.MsgBlock) error {
	var buf bytes.Buffer
	for _, blk := range blocks {
		var body bytes.Buffer
		if err := blk.Serialize(&body); err != nil {
			return err
		}
		buf.Write(magic[:])
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(body.Len()))
		buf.Write(lenBuf[:])
		buf.Write(body.Bytes())
		buf.Write([]byte{0, 0, 0}) // inter-record padding
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

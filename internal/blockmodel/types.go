// Package blockmodel holds the data types shared by every stage of the
// pipeline and re-exported from the root blockstream package. Its only
// dependency inside this module is internal/varint, which imports nothing
// from the module, so the stage packages and the public API stay free of
// import cycles.
package blockmodel

import (
	"io"

	"blockstream/internal/varint"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// OutPoint globally identifies a transaction output.
type OutPoint struct {
	Txid chainhash.Hash
	Vout uint32
}

// TxOut is a transaction output: a satoshi amount and the spending script.
type TxOut struct {
	Value        int64
	ScriptPubkey []byte
}

// Encode writes t using the value+CompactSize-prefixed-script layout used
// for the pipe format. The on-disk UTXO store does not use it; it writes
// its own compacted-script form.
func (t TxOut) Encode(w io.Writer) error {
	var valBuf [8]byte
	for i := 0; i < 8; i++ {
		valBuf[i] = byte(t.Value >> (8 * i))
	}
	if _, err := w.Write(valBuf[:]); err != nil {
		return err
	}
	if err := varint.WriteCompactSize(w, uint64(len(t.ScriptPubkey))); err != nil {
		return err
	}
	_, err := w.Write(t.ScriptPubkey)
	return err
}

// DecodeTxOut reads a TxOut written by Encode.
func DecodeTxOut(r io.Reader) (TxOut, error) {
	var valBuf [8]byte
	if _, err := io.ReadFull(r, valBuf[:]); err != nil {
		return TxOut{}, err
	}
	var value int64
	for i := 0; i < 8; i++ {
		value |= int64(valBuf[i]) << (8 * i)
	}
	n, err := varint.ReadCompactSize(r)
	if err != nil {
		return TxOut{}, err
	}
	script := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, script); err != nil {
			return TxOut{}, err
		}
	}
	return TxOut{Value: value, ScriptPubkey: script}, nil
}

// BlockExtra is the fully enriched block the pipeline ultimately hands to a
// consumer: the parsed block, its assigned height, and the resolved prevout
// for every non-coinbase input.
type BlockExtra struct {
	Block          *wire.MsgBlock
	Height         uint32
	BlockHash      chainhash.Hash
	Size           int
	TxHashes       []chainhash.Hash
	OutpointValues map[OutPoint]TxOut
	NextBlockHash  *chainhash.Hash
}

// Fee returns the sum of (inputs - outputs) over every non-coinbase
// transaction in the block. It is a convenience helper for consumers; the
// pipeline itself never computes or depends on it.
func (b *BlockExtra) Fee() int64 {
	var total int64
	for i, tx := range b.Block.Transactions {
		if i == 0 {
			continue // coinbase
		}
		var in, out int64
		for _, txin := range tx.TxIn {
			op := OutPoint{Txid: txin.PreviousOutPoint.Hash, Vout: txin.PreviousOutPoint.Index}
			in += b.OutpointValues[op].Value
		}
		for _, txout := range tx.TxOut {
			out += txout.Value
		}
		total += in - out
	}
	return total
}

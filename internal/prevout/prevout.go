// Package prevout implements PrevoutJoiner: resolving every non-coinbase
// input in a block to the output it spends. Store is implemented by the
// default in-memory map, the bbolt-backed two-phase disk store, and a
// no-op for --skip-prevout.
package prevout

import (
	"blockstream/internal/blockmodel"

	"github.com/btcsuite/btcd/wire"
)

// Store resolves one block's inputs at a time, in height order. Join
// must be called for blocks strictly in height order: it resolves spends
// against previously-created outputs. MemoryStore's Join also registers
// the block's own outputs for later blocks to spend; DiskStore's outputs
// are registered beforehand by IndexBlock.
type Store interface {
	Join(blk *wire.MsgBlock) (map[blockmodel.OutPoint]blockmodel.TxOut, error)
	Close() error
}

// MemoryStore is the default, single-pass mode: a live map of every
// unspent output created so far by the canonical chain.
type MemoryStore struct {
	live map[blockmodel.OutPoint]blockmodel.TxOut
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{live: make(map[blockmodel.OutPoint]blockmodel.TxOut)}
}

// Join resolves blk's inputs against s.live and then inserts blk's own
// outputs, transaction by transaction so that a transaction spending an
// output created earlier in the same block sees it.
func (s *MemoryStore) Join(blk *wire.MsgBlock) (map[blockmodel.OutPoint]blockmodel.TxOut, error) {
	values := make(map[blockmodel.OutPoint]blockmodel.TxOut)
	for ti, tx := range blk.Transactions {
		if ti > 0 { // the coinbase has no spendable input
			for vi, in := range tx.TxIn {
				op := blockmodel.OutPoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
				out, ok := s.live[op]
				if !ok {
					return nil, &blockmodel.PrevoutMissingError{SpendingTxid: tx.TxHash().String(), VIn: vi, Outpoint: op}
				}
				values[op] = out
				delete(s.live, op)
			}
		}
		txid := tx.TxHash()
		for vout, to := range tx.TxOut {
			s.live[blockmodel.OutPoint{Txid: txid, Vout: uint32(vout)}] = blockmodel.TxOut{
				Value:        to.Value,
				ScriptPubkey: to.PkScript,
			}
		}
	}
	return values, nil
}

// Close is a no-op; MemoryStore owns no external resource.
func (s *MemoryStore) Close() error { return nil }

// NoopStore implements Store for --skip-prevout: it never resolves
// anything, and OutpointValues stays empty on every BlockExtra.
type NoopStore struct{}

// Join always returns an empty map and no error.
func (NoopStore) Join(*wire.MsgBlock) (map[blockmodel.OutPoint]blockmodel.TxOut, error) {
	return nil, nil
}

// Close is a no-op.
func (NoopStore) Close() error { return nil }

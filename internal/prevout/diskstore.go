package prevout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"blockstream/internal/blockmodel"

	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"
)

var utxoBucket = []byte("utxo")

// DiskStore is the two-phase, memory-bounded mode: a bbolt database
// keyed by the packed OutPoint. IndexBlock (pass 1) writes every output
// the chain ever creates; Join (pass 2, satisfying the Store interface)
// re-streams blocks, resolving and deleting spends against the
// fully-populated index.
type DiskStore struct {
	db *bolt.DB
}

// OpenDiskStore creates or opens the bbolt database at path.
func OpenDiskStore(path string) (*DiskStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &blockmodel.IOError{Path: path, Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(utxoBucket)
		return e
	})
	if err != nil {
		db.Close()
		return nil, &blockmodel.IOError{Path: path, Err: err}
	}
	return &DiskStore{db: db}, nil
}

// IndexBlock is pass 1: it writes every output blk creates, without
// consulting or deleting anything. Blocks may be indexed in any order
// since each write is keyed by its own globally-unique OutPoint.
func (s *DiskStore) IndexBlock(blk *wire.MsgBlock) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(utxoBucket)
		for _, txn := range blk.Transactions {
			txid := txn.TxHash()
			for vout, to := range txn.TxOut {
				key := packOutPoint(blockmodel.OutPoint{Txid: txid, Vout: uint32(vout)})
				val, err := encodeTxOut(blockmodel.TxOut{Value: to.Value, ScriptPubkey: to.PkScript})
				if err != nil {
					return err
				}
				if err := b.Put(key, val); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Join is pass 2: it resolves blk's inputs against the index built by
// IndexBlock and deletes each entry once spent, mirroring MemoryStore's
// create-then-spend lifecycle so repeated Join calls keep shrinking the
// database back toward the final live set.
func (s *DiskStore) Join(blk *wire.MsgBlock) (map[blockmodel.OutPoint]blockmodel.TxOut, error) {
	values := make(map[blockmodel.OutPoint]blockmodel.TxOut)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(utxoBucket)
		for ti, txn := range blk.Transactions {
			if ti == 0 {
				continue
			}
			for vi, in := range txn.TxIn {
				op := blockmodel.OutPoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
				key := packOutPoint(op)
				raw := b.Get(key)
				if raw == nil {
					return &blockmodel.PrevoutMissingError{SpendingTxid: txn.TxHash().String(), VIn: vi, Outpoint: op}
				}
				out, err := decodeTxOut(raw)
				if err != nil {
					return err
				}
				values[op] = out
				if err := b.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Close releases the bbolt database.
func (s *DiskStore) Close() error { return s.db.Close() }

func packOutPoint(op blockmodel.OutPoint) []byte {
	buf := make([]byte, 36)
	copy(buf, op.Txid[:])
	binary.LittleEndian.PutUint32(buf[32:], op.Vout)
	return buf
}

// encodeTxOut stores the value as 8 raw bytes followed by the script in
// its chainstate-compacted form (see compactScript), trimming the common
// P2PKH/P2SH/P2PK shapes down to a tag byte and a short payload instead of
// carrying the full script on disk.
func encodeTxOut(t blockmodel.TxOut) ([]byte, error) {
	var buf bytes.Buffer
	var valBuf [8]byte
	binary.LittleEndian.PutUint64(valBuf[:], uint64(t.Value))
	buf.Write(valBuf[:])

	tag, payload := compactScript(t.ScriptPubkey)
	buf.WriteByte(tag)
	buf.Write(payload)
	return buf.Bytes(), nil
}

func decodeTxOut(raw []byte) (blockmodel.TxOut, error) {
	if len(raw) < 9 {
		return blockmodel.TxOut{}, fmt.Errorf("compact txout: short record (%d bytes)", len(raw))
	}
	value := int64(binary.LittleEndian.Uint64(raw[:8]))
	script, err := expandScript(raw[8], raw[9:])
	if err != nil {
		return blockmodel.TxOut{}, err
	}
	return blockmodel.TxOut{Value: value, ScriptPubkey: script}, nil
}

// Package wireformat implements the pipe framing from spec.md §6: each
// emitted BlockExtra is length-prefixed and self-delimiting so a chain
// of processes connected by pipes sees exactly the stream an in-process
// consumer would. Any change to the payload layout is a breaking change
// and must bump FormatVersion.
package wireformat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"blockstream/internal/blockmodel"
	"blockstream/internal/varint"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// FormatVersion tags the payload layout. Bump it on any breaking change;
// consumers built against an older version must be recompiled or asked
// to request the legacy format.
const FormatVersion = 1

var formatMagic = [4]byte{'B', 'S', 'T', FormatVersion}

// Writer serializes BlockExtra values onto an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteBlockExtra writes one length-prefixed frame.
func (w *Writer) WriteBlockExtra(be *blockmodel.BlockExtra) error {
	var payload bytes.Buffer
	payload.Write(formatMagic[:])

	var blockBuf bytes.Buffer
	if err := be.Block.Serialize(&blockBuf); err != nil {
		return fmt.Errorf("serialize block: %w", err)
	}
	if err := varint.WriteCompactSize(&payload, uint64(blockBuf.Len())); err != nil {
		return err
	}
	payload.Write(blockBuf.Bytes())

	var heightBuf [4]byte
	binary.LittleEndian.PutUint32(heightBuf[:], be.Height)
	payload.Write(heightBuf[:])

	if err := varint.WriteCompactSize(&payload, uint64(len(be.OutpointValues))); err != nil {
		return err
	}
	for op, txout := range be.OutpointValues {
		payload.Write(op.Txid[:])
		var voutBuf [4]byte
		binary.LittleEndian.PutUint32(voutBuf[:], op.Vout)
		payload.Write(voutBuf[:])
		if err := txout.Encode(&payload); err != nil {
			return err
		}
	}

	if err := varint.WriteCompactSize(&payload, uint64(len(be.TxHashes))); err != nil {
		return err
	}
	for _, h := range be.TxHashes {
		payload.Write(h[:])
	}

	if be.NextBlockHash != nil {
		payload.WriteByte(1)
		payload.Write(be.NextBlockHash[:])
	} else {
		payload.WriteByte(0)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(payload.Len()))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload.Bytes())
	return err
}

// Reader deserializes BlockExtra values previously written by Writer.
type Reader struct {
	r io.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// ReadBlockExtra reads the next frame, or io.EOF if the stream ended
// cleanly between frames.
func (r *Reader) ReadBlockExtra() (*blockmodel.BlockExtra, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated frame length: %w", err)
		}
		return nil, err // clean io.EOF propagates as-is
	}
	total := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, total)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("truncated frame payload: %w", err)
	}

	pr := bytes.NewReader(payload)
	var magic [4]byte
	if _, err := io.ReadFull(pr, magic[:]); err != nil {
		return nil, err
	}
	if magic != formatMagic {
		return nil, fmt.Errorf("unrecognized pipe format magic %x (want %x)", magic, formatMagic)
	}

	blockLen, err := varint.ReadCompactSize(pr)
	if err != nil {
		return nil, err
	}
	blockBytes := make([]byte, blockLen)
	if _, err := io.ReadFull(pr, blockBytes); err != nil {
		return nil, err
	}
	var blk wire.MsgBlock
	if err := blk.Deserialize(bytes.NewReader(blockBytes)); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}

	var heightBuf [4]byte
	if _, err := io.ReadFull(pr, heightBuf[:]); err != nil {
		return nil, err
	}
	height := binary.LittleEndian.Uint32(heightBuf[:])

	n, err := varint.ReadCompactSize(pr)
	if err != nil {
		return nil, err
	}
	values := make(map[blockmodel.OutPoint]blockmodel.TxOut, n)
	for i := uint64(0); i < n; i++ {
		var txid chainhash.Hash
		if _, err := io.ReadFull(pr, txid[:]); err != nil {
			return nil, err
		}
		var voutBuf [4]byte
		if _, err := io.ReadFull(pr, voutBuf[:]); err != nil {
			return nil, err
		}
		txout, err := blockmodel.DecodeTxOut(pr)
		if err != nil {
			return nil, err
		}
		values[blockmodel.OutPoint{Txid: txid, Vout: binary.LittleEndian.Uint32(voutBuf[:])}] = txout
	}

	nTx, err := varint.ReadCompactSize(pr)
	if err != nil {
		return nil, err
	}
	txHashes := make([]chainhash.Hash, nTx)
	for i := range txHashes {
		if _, err := io.ReadFull(pr, txHashes[i][:]); err != nil {
			return nil, err
		}
	}

	var hasNext [1]byte
	if _, err := io.ReadFull(pr, hasNext[:]); err != nil {
		return nil, err
	}
	var nextHash *chainhash.Hash
	if hasNext[0] == 1 {
		var h chainhash.Hash
		if _, err := io.ReadFull(pr, h[:]); err != nil {
			return nil, err
		}
		nextHash = &h
	}

	return &blockmodel.BlockExtra{
		Block:          &blk,
		Height:         height,
		BlockHash:      blk.BlockHash(),
		Size:           len(blockBytes),
		TxHashes:       txHashes,
		OutpointValues: values,
		NextBlockHash:  nextHash,
	}, nil
}

// Package blockfile implements ReadDetect: scanning a directory of
// Bitcoin Core blocksNNNNN.dat files for magic-delimited records and
// decoding each one into a BlockRecord, in whatever order the files and
// their records happen to appear on disk.
package blockfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"blockstream/internal/blockmodel"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockRecord is one block as ReadDetect found it: its identity, its
// parent link, the raw consensus-encoded bytes, where on disk it came
// from, and (once ChainBuilder has run) its canonical height.
type BlockRecord struct {
	Hash       chainhash.Hash
	PrevHash   chainhash.Hash
	Bytes      []byte
	Block      *wire.MsgBlock
	FileID     uint32
	FileOffset int64
	Length     uint32
	Height     uint32
}

// ScanFile scans one blocksNNNNN.dat file for magic-delimited records. It
// never fails on a malformed record: warn is called with the offset and
// reason, and scanning resumes just past that record's magic and length
// field. A record whose declared length runs past the end of the file is
// taken as a truncated tail: warn is called and scanning of the file
// stops there. It only returns an error if the file itself cannot be read.
func ScanFile(path string, fileID uint32, magic [4]byte, warn func(offset int64, err error)) ([]*BlockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &blockmodel.IOError{Path: path, Err: err}
	}

	var records []*BlockRecord
	pos := 0
	for {
		idx := bytes.Index(data[pos:], magic[:])
		if idx < 0 {
			break
		}
		recStart := pos + idx
		headerEnd := recStart + 4 + 4
		if headerEnd > len(data) {
			break // truncated tail: not even the length field fits
		}
		length := binary.LittleEndian.Uint32(data[recStart+4 : headerEnd])
		bodyEnd := headerEnd + int(length)
		if bodyEnd > len(data) || bodyEnd < headerEnd {
			warn(int64(recStart), fmt.Errorf("declared length %d exceeds remaining file", length))
			break
		}

		body := data[headerEnd:bodyEnd]
		rec, err := decodeRecord(body, fileID, int64(headerEnd), length)
		if err != nil {
			warn(int64(recStart), err)
			pos = headerEnd // resync just past the magic+length we already consumed
			continue
		}
		records = append(records, rec)
		pos = bodyEnd
	}
	return records, nil
}

func decodeRecord(body []byte, fileID uint32, offset int64, length uint32) (*BlockRecord, error) {
	if len(body) < 80 {
		return nil, fmt.Errorf("record shorter than an 80-byte header (%d bytes)", len(body))
	}

	var blk wire.MsgBlock
	r := bytes.NewReader(body)
	if err := blk.Deserialize(r); err != nil {
		return nil, fmt.Errorf("block decode: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d unexpected trailing bytes after block", r.Len())
	}

	return &BlockRecord{
		Hash:       blk.BlockHash(),
		PrevHash:   blk.Header.PrevBlock,
		Bytes:      body,
		Block:      &blk,
		FileID:     fileID,
		FileOffset: offset,
		Length:     length,
	}, nil
}

// Command blockstream-pipe is the companion adapter on the consumer side
// of the pipe format: it reads the frames cmd/blockstream wrote to
// stdout (or that any other in-process producer wrote via
// internal/wireformat) from stdin and re-emits one JSON line per block,
// purely as a debugging aid -- JSON is never the wire format itself.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"blockstream/internal/wireformat"
)

type blockLine struct {
	Height         uint32  `json:"height"`
	BlockHash      string  `json:"block_hash"`
	Size           int     `json:"size"`
	TxCount        int     `json:"tx_count"`
	OutpointValues int     `json:"outpoint_values"`
	NextBlockHash  *string `json:"next_block_hash,omitempty"`
}

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "blockstream-pipe: %s\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	r := wireformat.NewReader(bufio.NewReader(in))
	enc := json.NewEncoder(out)
	for {
		be, err := r.ReadBlockExtra()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line := blockLine{
			Height:         be.Height,
			BlockHash:      be.BlockHash.String(),
			Size:           be.Size,
			TxCount:        len(be.Block.Transactions),
			OutpointValues: len(be.OutpointValues),
		}
		if be.NextBlockHash != nil {
			s := be.NextBlockHash.String()
			line.NextBlockHash = &s
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
}

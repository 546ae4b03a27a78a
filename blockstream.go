// Package blockstream reconstructs the canonical chain from a Bitcoin
// Core blocks directory and streams it height-ordered, with every
// transaction input joined to the output it spends.
//
// Open runs the full ReadDetect -> ChainBuilder -> Reorder ->
// PrevoutJoiner pipeline in the background and returns an Iterator; call
// Next in a loop until it returns io.EOF, then Close.
package blockstream

import (
	"context"
	"io"

	"blockstream/internal/blockmodel"
	"blockstream/internal/pipeline"

	"github.com/rs/zerolog"
)

// Options configures a pipeline run; see blockmodel.Options for field
// documentation.
type Options = blockmodel.Options

// OutPoint, TxOut, and BlockExtra are the public data model; see
// blockmodel for field documentation.
type (
	OutPoint   = blockmodel.OutPoint
	TxOut      = blockmodel.TxOut
	BlockExtra = blockmodel.BlockExtra
)

// Error kinds raised by the pipeline; see blockmodel for field
// documentation.
type (
	IOError             = blockmodel.IOError
	DecodeError         = blockmodel.DecodeError
	ChainError          = blockmodel.ChainError
	PrevoutMissingError = blockmodel.PrevoutMissingError
	ReorderGapError     = blockmodel.ReorderGapError
	ConfigError         = blockmodel.ConfigError
)

// Iterator is a forward-only, restartable-from-start view of the
// enriched, height-ordered block stream.
type Iterator struct {
	cancel context.CancelFunc
	out    <-chan *blockmodel.BlockExtra
	errc   <-chan error
	done   bool
}

// Open validates opts and starts the pipeline in the background; the
// blocks directory is scanned right away, and the returned Iterator hands
// out the resulting blocks as Next is called.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (*Iterator, error) {
	p, err := pipeline.New(opts, log)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	out, errc := p.Run(runCtx)
	return &Iterator{cancel: cancel, out: out, errc: errc}, nil
}

// Next returns the next block in height order, io.EOF on a clean
// end-of-stream, or any other error once the pipeline has halted. That
// terminal error is returned exactly once; every subsequent call returns
// io.EOF.
func (it *Iterator) Next() (*BlockExtra, error) {
	if it.done {
		return nil, io.EOF
	}
	be, ok := <-it.out
	if ok {
		return be, nil
	}
	it.done = true
	if err := <-it.errc; err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close cancels the pipeline and releases its resources. It is safe to
// call Close before the iterator has reached end-of-stream; every
// worker goroutine observes the cancellation on its next queue
// operation and exits.
func (it *Iterator) Close() error {
	it.cancel()
	for range it.out {
		// drain so the producing goroutine's sends don't block forever
	}
	return nil
}

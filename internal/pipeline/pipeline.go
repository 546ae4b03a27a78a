// Package pipeline wires ReadDetect, ChainBuilder, Reorder, and
// PrevoutJoiner into the two sequential passes spec.md describes:
// everything up through ChainBuilder is embarrassingly parallel across
// blocksNNNNN.dat files, everything from Reorder onward is single-
// threaded and strictly ordered.
package pipeline

import (
	"context"
	"fmt"

	"blockstream/internal/blockfile"
	"blockstream/internal/blockmodel"
	"blockstream/internal/chainindex"
	"blockstream/internal/netparams"
	"blockstream/internal/prevout"
	"blockstream/internal/reorder"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultQueueCapacity = 256

// Pipeline runs one end-to-end pass over a blocks directory, emitting a
// height-ordered, prevout-enriched BlockExtra stream.
type Pipeline struct {
	opts blockmodel.Options
	log  zerolog.Logger
	net  netparams.Params
}

// New validates opts and resolves its network before returning a runnable
// Pipeline.
func New(opts blockmodel.Options, log zerolog.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	net, ok := netparams.ByName(opts.Network)
	if !ok {
		return nil, &blockmodel.ConfigError{Field: "Network", Msg: "unknown network " + opts.Network}
	}
	return &Pipeline{opts: opts, log: log, net: net}, nil
}

func (p *Pipeline) maxReorg() uint32 {
	if p.opts.MaxReorg > 0 {
		return p.opts.MaxReorg
	}
	return p.net.DefaultMaxReorg
}

func (p *Pipeline) queueCapacity() int {
	if p.opts.QueueCapacity > 0 {
		return p.opts.QueueCapacity
	}
	return defaultQueueCapacity
}

// Run starts the pipeline in the background and returns the output
// stream and a one-shot error channel. out is closed when the run ends,
// whether cleanly or on error; at most one error is ever sent on errc,
// and only after out has delivered every block that made it through
// before the failure.
func (p *Pipeline) Run(ctx context.Context) (<-chan *blockmodel.BlockExtra, <-chan error) {
	out := make(chan *blockmodel.BlockExtra, p.queueCapacity())
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		var err error
		if p.opts.UTXODBPath != "" {
			err = p.runTwoPhase(ctx, out)
		} else {
			err = p.runSinglePhase(ctx, out)
		}
		if err != nil {
			errc <- err
		}
	}()
	return out, errc
}

func (p *Pipeline) emitLimit(result *chainindex.Result) uint32 {
	limit := result.EmitHeight
	if p.opts.StopAtHeight > 0 && p.opts.StopAtHeight < limit {
		limit = p.opts.StopAtHeight
	}
	return limit
}

func (p *Pipeline) prevoutStore() prevout.Store {
	if p.opts.SkipPrevout {
		return prevout.NoopStore{}
	}
	return prevout.NewMemoryStore()
}

// runSinglePhase scans the directory exactly once, accumulating the
// header graph and every block's bytes in memory, then replays the
// canonical subset through Reorder and the in-memory (or no-op)
// PrevoutJoiner.
func (p *Pipeline) runSinglePhase(ctx context.Context, out chan<- *blockmodel.BlockExtra) error {
	records, err := blockfile.ReadDetect(ctx, p.opts.BlocksDir, p.net.Magic, p.opts.ReadWorkers, p.log)
	if err != nil {
		return err
	}

	builder := chainindex.NewBuilder()
	store := make(map[chainhash.Hash]*blockfile.BlockRecord)
	for rec := range records {
		if err := builder.Add(rec.Hash, rec.PrevHash); err != nil {
			return err
		}
		store[rec.Hash] = rec
	}
	p.log.Info().Str("blocks_scanned", humanize.Comma(int64(len(store)))).Msg("read-detect complete")

	result, err := builder.Build(p.net.GenesisHash, p.maxReorg())
	if err != nil {
		return err
	}
	limit := p.emitLimit(result)
	p.log.Info().Uint32("tip_height", result.TipHeight).Uint32("emit_height", limit).Msg("canonical chain resolved")

	return p.reorderAndJoin(ctx, out, result, limit, p.prevoutStore(), func(push func(*blockfile.BlockRecord) bool) error {
		for hash, rec := range store {
			height, ok := result.Heights[hash]
			if !ok || height > limit {
				continue
			}
			rec.Height = height
			if !push(rec) {
				return ctx.Err()
			}
		}
		return nil
	})
}

// runTwoPhase scans the directory a second time once the canonical chain
// is known, using an on-disk UTXO store so the only thing kept in
// memory across the two reads is the (small) header graph.
func (p *Pipeline) runTwoPhase(ctx context.Context, out chan<- *blockmodel.BlockExtra) error {
	disk, err := prevout.OpenDiskStore(p.opts.UTXODBPath)
	if err != nil {
		return err
	}

	pass1, err := blockfile.ReadDetect(ctx, p.opts.BlocksDir, p.net.Magic, p.opts.ReadWorkers, p.log)
	if err != nil {
		disk.Close()
		return err
	}
	builder := chainindex.NewBuilder()
	var scanned int64
	for rec := range pass1 {
		if err := builder.Add(rec.Hash, rec.PrevHash); err != nil {
			disk.Close()
			return err
		}
		if err := disk.IndexBlock(rec.Block); err != nil {
			disk.Close()
			return fmt.Errorf("utxo-db pass 1: %w", err)
		}
		scanned++
	}
	p.log.Info().Str("blocks_indexed", humanize.Comma(scanned)).Msg("utxo-db pass 1 complete")

	result, err := builder.Build(p.net.GenesisHash, p.maxReorg())
	if err != nil {
		disk.Close()
		return err
	}
	limit := p.emitLimit(result)

	pass2, err := blockfile.ReadDetect(ctx, p.opts.BlocksDir, p.net.Magic, p.opts.ReadWorkers, p.log)
	if err != nil {
		disk.Close()
		return err
	}

	return p.reorderAndJoin(ctx, out, result, limit, disk, func(push func(*blockfile.BlockRecord) bool) error {
		for rec := range pass2 {
			height, ok := result.Heights[rec.Hash]
			if !ok || height > limit {
				continue
			}
			rec.Height = height
			if !push(rec) {
				return ctx.Err()
			}
		}
		return nil
	})
}

// reorderAndJoin runs the shared P2 tail: feed, a producer that pushes
// every emission-eligible record (in whatever order it has them), passes
// through Reorder to regain height order, then through store to attach
// prevouts, emitting BlockExtra on out.
func (p *Pipeline) reorderAndJoin(ctx context.Context, out chan<- *blockmodel.BlockExtra, result *chainindex.Result, limit uint32, store prevout.Store, feed func(push func(*blockfile.BlockRecord) bool) error) error {
	qcap := p.queueCapacity()
	reorderIn := make(chan *blockfile.BlockRecord, qcap)
	reorderOut := make(chan *blockfile.BlockRecord, qcap)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(reorderIn)
		return feed(func(rec *blockfile.BlockRecord) bool {
			select {
			case reorderIn <- rec:
				return true
			case <-gctx.Done():
				return false
			}
		})
	})
	g.Go(func() error {
		defer close(reorderOut)
		return reorder.Run(gctx, reorderIn, reorderOut)
	})
	g.Go(func() error {
		return p.joinAndEmit(gctx, reorderOut, result, limit, out, store)
	})
	return g.Wait()
}

func (p *Pipeline) joinAndEmit(ctx context.Context, in <-chan *blockfile.BlockRecord, result *chainindex.Result, limit uint32, out chan<- *blockmodel.BlockExtra, store prevout.Store) error {
	defer store.Close()
	var emitted int64
	for rec := range in {
		values, err := store.Join(rec.Block)
		if err != nil {
			return err
		}

		txHashes := make([]chainhash.Hash, len(rec.Block.Transactions))
		for i, tx := range rec.Block.Transactions {
			txHashes[i] = tx.TxHash()
		}

		var next *chainhash.Hash
		if n, ok := result.NextHash[rec.Hash]; ok && rec.Height < limit {
			nn := n
			next = &nn
		}

		be := &blockmodel.BlockExtra{
			Block:          rec.Block,
			Height:         rec.Height,
			BlockHash:      rec.Hash,
			Size:           len(rec.Bytes),
			TxHashes:       txHashes,
			OutpointValues: values,
			NextBlockHash:  next,
		}
		select {
		case out <- be:
		case <-ctx.Done():
			return ctx.Err()
		}

		emitted++
		if emitted%50000 == 0 {
			p.log.Info().Str("emitted", humanize.Comma(emitted)).Msg("progress")
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"runtime"

	"blockstream/internal/blockmodel"

	"golang.org/x/sync/errgroup"
)

// ParallelBridge hands each BlockExtra from in to one worker of an
// n-wide pool running fn, letting a downstream consumer parallelize at
// its own discretion without the ordered pipeline itself ever running
// more than one block at a time through PrevoutJoiner. While every fn
// call succeeds it blocks until in is drained and every dispatched call
// has returned. Once an fn call
// fails or ctx is cancelled it stops dispatching, waits for the calls
// already dispatched, and returns without draining the rest of in.
func ParallelBridge(ctx context.Context, in <-chan *blockmodel.BlockExtra, workers int, fn func(*blockmodel.BlockExtra) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for be := range in {
		be := be
		select {
		case <-gctx.Done():
			return g.Wait()
		default:
		}
		g.Go(func() error { return fn(be) })
	}
	return g.Wait()
}

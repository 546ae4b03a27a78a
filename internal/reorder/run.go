package reorder

import (
	"context"

	"blockstream/internal/blockfile"
)

// Run drains in, reordering by Height, and forwards each record to out in
// strictly increasing height order. It returns the Close error (a
// ReorderGapError) if in closes with heights still missing, or ctx.Err()
// if cancelled first.
func Run(ctx context.Context, in <-chan *blockfile.BlockRecord, out chan<- *blockfile.BlockRecord) error {
	r := New()
	for {
		select {
		case rec, ok := <-in:
			if !ok {
				return r.Close()
			}
			r.Push(rec, func(b *blockfile.BlockRecord) {
				select {
				case out <- b:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

package blockfile

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"blockstream/internal/blockmodel"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Discover enumerates blocksNNNNN.dat files in dir, sorted lexically (the
// 5-digit index keeps lexical and numeric order identical). A dir that
// cannot be accessed is reported as an IOError.
func Discover(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, &blockmodel.IOError{Path: dir, Err: err}
	}
	files, err := filepath.Glob(filepath.Join(dir, "blocks[0-9][0-9][0-9][0-9][0-9].dat"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadDetect scans every blocksNNNNN.dat file under dir concurrently
// (bounded by workers, defaulting to one per CPU) and streams every
// record it validates on the returned channel, in no particular order.
// The channel is closed once every file has been scanned or ctx is
// cancelled. A file that cannot be read at all is logged and skipped;
// ReadDetect itself never returns an error once file enumeration has
// succeeded.
func ReadDetect(ctx context.Context, dir string, magic [4]byte, workers int, log zerolog.Logger) (<-chan *BlockRecord, error) {
	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	out := make(chan *BlockRecord, 256)
	if len(files) == 0 {
		close(out)
		return out, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	go func() {
		defer close(out)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, path := range files {
			fileID, path := uint32(i), path
			g.Go(func() error {
				records, err := ScanFile(path, fileID, magic, func(offset int64, e error) {
					log.Warn().Str("file", path).Int64("offset", offset).Err(e).Msg("skipping malformed record")
				})
				if err != nil {
					log.Warn().Str("file", path).Err(err).Msg("skipping unreadable file")
					return nil
				}
				for _, rec := range records {
					select {
					case out <- rec:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out, nil
}

package blockstream_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"blockstream"
	"blockstream/internal/blocktest"
	"blockstream/internal/netparams"
	"blockstream/internal/wireformat"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir string, n int) {
	t.Helper()
	chain := blocktest.ChainFromGenesis(n, 0x99)
	require.NoError(t, blocktest.WriteDat(filepath.Join(dir, "blocks00000.dat"), netparams.Regtest.Magic, chain))
}

func collect(t *testing.T, it *blockstream.Iterator) []*blockstream.BlockExtra {
	t.Helper()
	var got []*blockstream.BlockExtra
	for {
		be, err := it.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return got
		}
		got = append(got, be)
	}
}

func TestOpenIsRestartableFromScratch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 4)
	opts := blockstream.Options{BlocksDir: dir, Network: "regtest"}

	it1, err := blockstream.Open(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)
	first := collect(t, it1)
	require.NoError(t, it1.Close())

	it2, err := blockstream.Open(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)
	second := collect(t, it2)
	require.NoError(t, it2.Close())

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].BlockHash, second[i].BlockHash)
		require.Equal(t, first[i].Height, second[i].Height)
	}
}

func TestPipeRoundTripMatchesInProcessStream(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 3)
	opts := blockstream.Options{BlocksDir: dir, Network: "regtest"}

	it, err := blockstream.Open(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)
	inProcess := collect(t, it)
	require.NoError(t, it.Close())

	it2, err := blockstream.Open(context.Background(), opts, zerolog.Nop())
	require.NoError(t, err)

	var buf bytes.Buffer
	w := wireformat.NewWriter(&buf)
	for {
		be, err := it2.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		require.NoError(t, w.WriteBlockExtra(be))
	}
	require.NoError(t, it2.Close())

	r := wireformat.NewReader(&buf)
	var piped []*blockstream.BlockExtra
	for {
		be, err := r.ReadBlockExtra()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		piped = append(piped, be)
	}

	require.Equal(t, len(inProcess), len(piped))
	for i := range inProcess {
		require.Equal(t, inProcess[i].BlockHash, piped[i].BlockHash)
		require.Equal(t, inProcess[i].Height, piped[i].Height)
	}
}

package blockfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"blockstream/internal/blockfile"
	"blockstream/internal/blocktest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testMagic = [4]byte{0xf9, 0xbe, 0xb4, 0xd9}

func TestReadDetectFindsEveryRecord(t *testing.T) {
	dir := t.TempDir()
	genesis := blocktest.GenesisHash()
	chain := blocktest.Chain(genesis, 5, 0x01)

	require.NoError(t, blocktest.WriteDat(filepath.Join(dir, "blocks00000.dat"), testMagic, chain[:2]))
	require.NoError(t, blocktest.WriteDat(filepath.Join(dir, "blocks00001.dat"), testMagic, chain[2:]))

	ch, err := blockfile.ReadDetect(context.Background(), dir, testMagic, 2, zerolog.Nop())
	require.NoError(t, err)

	var got []*blockfile.BlockRecord
	for rec := range ch {
		got = append(got, rec)
	}
	require.Len(t, got, 5)
}

func TestReadDetectEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	ch, err := blockfile.ReadDetect(context.Background(), dir, testMagic, 0, zerolog.Nop())
	require.NoError(t, err)
	_, ok := <-ch
	require.False(t, ok, "expected an already-closed channel")
}

func TestReadDetectSkipsMalformedRecordButKeepsScanning(t *testing.T) {
	dir := t.TempDir()
	genesis := blocktest.GenesisHash()
	chain := blocktest.Chain(genesis, 2, 0x02)

	path := filepath.Join(dir, "blocks00000.dat")
	require.NoError(t, blocktest.WriteDat(path, testMagic, chain))

	// Append a truncated trailing record: magic + length claiming far
	// more bytes than actually follow.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(append(testMagic[:], 0xff, 0xff, 0xff, 0x7f))
	require.NoError(t, err)

	ch, err := blockfile.ReadDetect(context.Background(), dir, testMagic, 1, zerolog.Nop())
	require.NoError(t, err)

	var got []*blockfile.BlockRecord
	for rec := range ch {
		got = append(got, rec)
	}
	require.Len(t, got, 2, "the two valid records before the truncated tail must still surface")
}

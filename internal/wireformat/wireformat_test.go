package wireformat_test

import (
	"bytes"
	"io"
	"testing"

	"blockstream/internal/blockmodel"
	"blockstream/internal/blocktest"
	"blockstream/internal/wireformat"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	blk := blocktest.NewBlock(blocktest.GenesisHash(), 0, []byte{0x07})
	cbTxid := blk.Transactions[0].TxHash()
	next := blk.BlockHash()

	be := &blockmodel.BlockExtra{
		Block:     blk,
		Height:    0,
		BlockHash: blk.BlockHash(),
		Size:      1234,
		TxHashes:  []chainhash.Hash{cbTxid},
		OutpointValues: map[blockmodel.OutPoint]blockmodel.TxOut{
			{Txid: cbTxid, Vout: 0}: {Value: 5000000000, ScriptPubkey: []byte{0x51}},
		},
		NextBlockHash: &next,
	}

	var buf bytes.Buffer
	require.NoError(t, wireformat.NewWriter(&buf).WriteBlockExtra(be))

	got, err := wireformat.NewReader(&buf).ReadBlockExtra()
	require.NoError(t, err)
	require.Equal(t, be.Height, got.Height)
	require.Equal(t, be.BlockHash, got.BlockHash)
	require.Equal(t, be.OutpointValues, got.OutpointValues)
	require.Equal(t, *be.NextBlockHash, *got.NextBlockHash)

	_, err = wireformat.NewReader(&buf).ReadBlockExtra()
	require.ErrorIs(t, err, io.EOF)
}
